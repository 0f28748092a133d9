package headless

import (
	"fmt"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"github.com/spaghettifunk/kiln/engine/core"
	"github.com/spaghettifunk/kiln/engine/renderer"
)

// MeshSource answers whether a baked mesh exists at an asset path such as "/baked/car.mesh".
type MeshSource interface {
	HasAsset(path string) bool
}

// MeshSourceFunc adapts a plain function to MeshSource.
type MeshSourceFunc func(path string) bool

func (f MeshSourceFunc) HasAsset(path string) bool {
	return f(path)
}

type Mesh struct {
	Path string
	// Unique name of the resource, as a GPU backend would label its buffers.
	ResourceID uuid.UUID
	Options    renderer.MeshOptions
}

type Instance struct {
	Mesh     renderer.MeshHandle
	Position mgl32.Vec3
	Rotation mgl32.Quat
}

// Backend is an in-memory renderer. It keeps the same resource tables a GPU
// backend would (meshes deduplicated by path, instances in a reusable handle
// pool) without touching a device.
type Backend struct {
	source     MeshSource
	meshes     []*Mesh
	meshByPath map[string]renderer.MeshHandle
	instances  map[renderer.InstanceHandle]*Instance
	ids        core.IDPool
	giScale    float32

	framesSubmitted uint64
	lastFrame       renderer.FrameDescription
}

func New(source MeshSource) *Backend {
	return &Backend{
		source:     source,
		meshByPath: make(map[string]renderer.MeshHandle),
		instances:  make(map[renderer.InstanceHandle]*Instance),
		giScale:    1.0,
	}
}

func (b *Backend) AddBakedMesh(path string, opts renderer.MeshOptions) (renderer.MeshHandle, error) {
	if h, ok := b.meshByPath[path]; ok {
		return h, nil
	}
	if b.source == nil || !b.source.HasAsset(path) {
		return renderer.InvalidMeshHandle, fmt.Errorf("%w: %s", renderer.ErrMeshNotFound, path)
	}
	h := renderer.MeshHandle(len(b.meshes))
	m := &Mesh{
		Path:       path,
		ResourceID: uuid.New(),
		Options:    opts,
	}
	b.meshes = append(b.meshes, m)
	b.meshByPath[path] = h
	core.LogDebug("headless: loaded mesh '%s' as %d (%s)", strings.TrimPrefix(path, "/"), h, m.ResourceID)
	return h, nil
}

func (b *Backend) AddInstance(mesh renderer.MeshHandle, position mgl32.Vec3, rotation mgl32.Quat) renderer.InstanceHandle {
	if int(mesh) >= len(b.meshes) {
		core.LogError("headless: %s %d", renderer.ErrUnknownMesh, mesh)
		return renderer.InvalidInstanceHandle
	}
	inst := &Instance{
		Mesh:     mesh,
		Position: position,
		Rotation: rotation,
	}
	h := renderer.InstanceHandle(b.ids.Acquire(inst))
	b.instances[h] = inst
	return h
}

func (b *Backend) SetInstanceTransform(instance renderer.InstanceHandle, position mgl32.Vec3, rotation mgl32.Quat) {
	inst, ok := b.instances[instance]
	if !ok {
		core.LogWarn("headless: transform update for unknown instance %d. Nothing was done.", instance)
		return
	}
	inst.Position = position
	inst.Rotation = rotation
}

func (b *Backend) RemoveInstance(instance renderer.InstanceHandle) {
	if _, ok := b.instances[instance]; !ok {
		core.LogWarn("headless: remove of unknown instance %d. Nothing was done.", instance)
		return
	}
	delete(b.instances, instance)
	if err := b.ids.Release(uint32(instance)); err != nil {
		core.LogError(err.Error())
	}
}

func (b *Backend) SetWorldGIScale(scale float32) {
	b.giScale = scale
}

func (b *Backend) SubmitFrame(frame *renderer.FrameDescription) error {
	if frame == nil {
		return fmt.Errorf("headless: nil frame description")
	}
	b.lastFrame = *frame
	b.framesSubmitted++
	return nil
}

func (b *Backend) Instance(h renderer.InstanceHandle) (Instance, bool) {
	inst, ok := b.instances[h]
	if !ok {
		return Instance{}, false
	}
	return *inst, true
}

func (b *Backend) Mesh(h renderer.MeshHandle) (Mesh, bool) {
	if int(h) >= len(b.meshes) {
		return Mesh{}, false
	}
	return *b.meshes[h], true
}

func (b *Backend) InstanceCount() int {
	return len(b.instances)
}

func (b *Backend) MeshCount() int {
	return len(b.meshes)
}

func (b *Backend) GIScale() float32 {
	return b.giScale
}

func (b *Backend) FramesSubmitted() uint64 {
	return b.framesSubmitted
}

func (b *Backend) LastFrame() renderer.FrameDescription {
	return b.lastFrame
}
