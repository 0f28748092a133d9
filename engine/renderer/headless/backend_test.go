package headless

import (
	"errors"
	"io"
	"os"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/spaghettifunk/kiln/engine/core"
	"github.com/spaghettifunk/kiln/engine/renderer"
)

func TestMain(m *testing.M) {
	core.SetLogOutput(io.Discard)
	os.Exit(m.Run())
}

func onlyCar(path string) bool {
	return path == "/baked/car.mesh"
}

func TestAddBakedMeshDedupesByPath(t *testing.T) {
	b := New(MeshSourceFunc(onlyCar))
	first, err := b.AddBakedMesh("/baked/car.mesh", renderer.MeshOptions{})
	if err != nil {
		t.Fatalf("AddBakedMesh() error = %v", err)
	}
	second, err := b.AddBakedMesh("/baked/car.mesh", renderer.MeshOptions{})
	if err != nil {
		t.Fatalf("AddBakedMesh() error = %v", err)
	}
	if first != second {
		t.Errorf("handles differ for one path: %d vs %d", first, second)
	}
	if b.MeshCount() != 1 {
		t.Errorf("MeshCount() = %d, want 1", b.MeshCount())
	}
	m, ok := b.Mesh(first)
	if !ok || m.Path != "/baked/car.mesh" {
		t.Errorf("Mesh(%d) = %+v, %v", first, m, ok)
	}
}

func TestAddBakedMeshNotFound(t *testing.T) {
	b := New(MeshSourceFunc(onlyCar))
	h, err := b.AddBakedMesh("/baked/boat.mesh", renderer.MeshOptions{})
	if !errors.Is(err, renderer.ErrMeshNotFound) {
		t.Fatalf("error = %v, want ErrMeshNotFound", err)
	}
	if h != renderer.InvalidMeshHandle {
		t.Errorf("handle = %d, want invalid", h)
	}
	if b.MeshCount() != 0 {
		t.Errorf("MeshCount() = %d, want 0", b.MeshCount())
	}
}

func TestInstanceLifecycle(t *testing.T) {
	b := New(MeshSourceFunc(onlyCar))
	mesh, _ := b.AddBakedMesh("/baked/car.mesh", renderer.MeshOptions{})

	a := b.AddInstance(mesh, mgl32.Vec3{0, 0, 0}, mgl32.QuatIdent())
	c := b.AddInstance(mesh, mgl32.Vec3{1, 0, 0}, mgl32.QuatIdent())
	if a == c {
		t.Fatal("instances share a handle")
	}

	b.SetInstanceTransform(c, mgl32.Vec3{2, 0, 0}, mgl32.QuatIdent())
	inst, ok := b.Instance(c)
	if !ok || inst.Position != (mgl32.Vec3{2, 0, 0}) {
		t.Errorf("Instance(%d) = %+v, %v", c, inst, ok)
	}
	if inst, _ := b.Instance(a); inst.Position != (mgl32.Vec3{}) {
		t.Errorf("untouched instance moved to %v", inst.Position)
	}

	b.RemoveInstance(a)
	if b.InstanceCount() != 1 {
		t.Errorf("InstanceCount() = %d, want 1", b.InstanceCount())
	}
	if reused := b.AddInstance(mesh, mgl32.Vec3{}, mgl32.QuatIdent()); reused != a {
		t.Errorf("released handle %d not reused, got %d", a, reused)
	}
}

func TestAddInstanceUnknownMesh(t *testing.T) {
	b := New(MeshSourceFunc(onlyCar))
	if h := b.AddInstance(renderer.MeshHandle(3), mgl32.Vec3{}, mgl32.QuatIdent()); h != renderer.InvalidInstanceHandle {
		t.Errorf("AddInstance with unknown mesh = %d, want invalid", h)
	}
}

func TestSubmitFrameThroughStore(t *testing.T) {
	b := New(nil)
	store := renderer.NewStore(b)
	frame := &renderer.FrameDescription{RenderExtent: [2]uint32{640, 480}}
	err := store.With(func(wr renderer.WorldRenderer) error {
		wr.SetWorldGIScale(2.5)
		return renderer.Submit(wr, frame)
	})
	if err != nil {
		t.Fatalf("With() error = %v", err)
	}
	if b.FramesSubmitted() != 1 || b.LastFrame().RenderExtent != frame.RenderExtent {
		t.Errorf("frames = %d, last = %+v", b.FramesSubmitted(), b.LastFrame())
	}
	if b.GIScale() != 2.5 {
		t.Errorf("GIScale() = %f, want 2.5", b.GIScale())
	}
}
