package renderer

import (
	"sync"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/spaghettifunk/kiln/engine/renderer/components"
)

// FrameDescription is what the renderer needs to draw one frame.
type FrameDescription struct {
	CameraMatrices components.CameraMatrices
	RenderExtent   [2]uint32
	SunDirection   mgl32.Vec3
}

// Store is the single exclusive-access boundary around renderer state.
type Store struct {
	mu      sync.Mutex
	backend WorldRenderer
}

func NewStore(backend WorldRenderer) *Store {
	return &Store{backend: backend}
}

// With runs fn holding the renderer lock. Every call into the renderer made
// by fn happens without any other writer interleaving.
func (s *Store) With(fn func(wr WorldRenderer) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.backend)
}

// Submit hands frame to the backend if it accepts frames. Must be called from within With.
func Submit(wr WorldRenderer, frame *FrameDescription) error {
	if fs, ok := wr.(FrameSubmitter); ok {
		return fs.SubmitFrame(frame)
	}
	return nil
}
