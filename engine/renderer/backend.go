package renderer

import (
	"errors"

	"github.com/go-gl/mathgl/mgl32"
)

var (
	// ErrMeshNotFound is returned by AddBakedMesh when no baked asset exists at the path.
	ErrMeshNotFound = errors.New("baked mesh not found")
	ErrUnknownMesh  = errors.New("unknown mesh handle")
)

// Opaque renderer-owned identifiers.
type MeshHandle uint32
type InstanceHandle uint32

const (
	InvalidMeshHandle     MeshHandle     = 4294967295
	InvalidInstanceHandle InstanceHandle = 4294967295
)

type MeshOptions struct {
	// Emissive surfaces of the mesh contribute as light sources.
	UseLights bool
}

// WorldRenderer is the handle based surface of a renderer that owns mesh and
// instance resources. Implementations are not safe for concurrent use; wrap
// them in a Store.
type WorldRenderer interface {
	// AddBakedMesh loads the baked mesh at path, returning the same handle
	// for repeated loads of one path.
	AddBakedMesh(path string, opts MeshOptions) (MeshHandle, error)
	AddInstance(mesh MeshHandle, position mgl32.Vec3, rotation mgl32.Quat) InstanceHandle
	// SetInstanceTransform is a no-op when the transform did not change.
	SetInstanceTransform(instance InstanceHandle, position mgl32.Vec3, rotation mgl32.Quat)
	RemoveInstance(instance InstanceHandle)
	SetWorldGIScale(scale float32)
}

// FrameSubmitter is implemented by renderers that consume a per-frame description.
type FrameSubmitter interface {
	SubmitFrame(frame *FrameDescription) error
}
