package systems

import (
	"errors"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/spaghettifunk/kiln/engine/renderer"
	"github.com/spaghettifunk/kiln/engine/renderer/components"
	"github.com/spaghettifunk/kiln/engine/world"
)

func at(x, y, z float32) components.Transform {
	return components.TransformFromPosition(mgl32.Vec3{x, y, z})
}

func mustReconcile(t *testing.T, r *Reconciler, wr renderer.WorldRenderer, w *world.World) Report {
	t.Helper()
	report, err := r.Reconcile(wr, w)
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	return report
}

func TestFirstPassLoadsAndCreatesOncePerRecord(t *testing.T) {
	fr := newFakeRenderer("car", "floor")
	w := world.New()
	w.SpawnSceneInstance(0, "floor", at(0, 0, 0))
	id := w.Spawn("car", at(1, 2, 3))

	r := NewReconciler(ReconcilerConfig{}, nil)
	report := mustReconcile(t, r, fr, w)

	if report.Created != 2 || report.Updated != 0 {
		t.Errorf("report = %+v, want 2 created", report)
	}
	if len(fr.loads) != 2 || len(fr.creates) != 2 || len(fr.transforms) != 0 {
		t.Errorf("loads=%d creates=%d transforms=%d, want 2/2/0", len(fr.loads), len(fr.creates), len(fr.transforms))
	}
	if r.Len() != 2 || r.SceneBindings() != 1 || r.EntityBindings() != 1 {
		t.Errorf("bindings total=%d scene=%d entity=%d", r.Len(), r.SceneBindings(), r.EntityBindings())
	}

	b, ok := r.Binding(components.EntityKey(id))
	if !ok {
		t.Fatal("entity binding missing")
	}
	if b.MeshName != "car" || b.Transform != at(1, 2, 3) {
		t.Errorf("binding = %+v", b)
	}
	if fr.instances[b.Instance].Position != (mgl32.Vec3{1, 2, 3}) {
		t.Errorf("renderer instance at %v", fr.instances[b.Instance].Position)
	}
}

func TestSecondPassNeverCreatesAgain(t *testing.T) {
	fr := newFakeRenderer("car")
	w := world.New()
	for i := uint32(0); i < 5; i++ {
		w.SpawnSceneInstance(i, "car", at(float32(i), 0, 0))
	}
	r := NewReconciler(ReconcilerConfig{}, nil)

	mustReconcile(t, r, fr, w)
	sizeAfterFirst := r.SceneBindings()
	fr.resetCalls()

	report := mustReconcile(t, r, fr, w)
	if r.SceneBindings() != sizeAfterFirst {
		t.Errorf("scene registry size %d -> %d", sizeAfterFirst, r.SceneBindings())
	}
	if report.Created != 0 || report.Updated != 5 {
		t.Errorf("report = %+v, want 5 updates", report)
	}
	if len(fr.loads) != 0 || len(fr.creates) != 0 {
		t.Errorf("second pass issued %d loads and %d creates", len(fr.loads), len(fr.creates))
	}
	if len(fr.transforms) != 5 {
		t.Errorf("transform updates = %d, want 5", len(fr.transforms))
	}
	for i := uint32(0); i < 5; i++ {
		b, _ := r.Binding(components.SceneKey(i))
		if n := fr.createsFor(b.Instance); n > 0 {
			t.Errorf("instance %d created again on second pass", b.Instance)
		}
	}
}

func TestRepeatedPassesAreIdempotent(t *testing.T) {
	fr := newFakeRenderer("car")
	w := world.New()
	w.SpawnSceneInstance(0, "car", at(1, 1, 1))
	w.Spawn("car", at(2, 2, 2))
	r := NewReconciler(ReconcilerConfig{}, nil)

	mustReconcile(t, r, fr, w)
	before := len(fr.instances)
	snapshot := make(map[renderer.InstanceHandle]transformCall, len(fr.instances))
	for h, c := range fr.instances {
		snapshot[h] = c
	}

	for i := 0; i < 3; i++ {
		mustReconcile(t, r, fr, w)
	}
	if len(fr.instances) != before {
		t.Errorf("renderer instances %d -> %d", before, len(fr.instances))
	}
	for h, c := range fr.instances {
		if snapshot[h] != c {
			t.Errorf("instance %d changed from %+v to %+v", h, snapshot[h], c)
		}
	}
}

func TestChangedTransformOnlyUpdates(t *testing.T) {
	fr := newFakeRenderer("car")
	w := world.New()
	id := w.Spawn("car", at(0, 0, 0))
	r := NewReconciler(ReconcilerConfig{}, nil)
	mustReconcile(t, r, fr, w)
	fr.resetCalls()

	rot := mgl32.QuatRotate(1, mgl32.Vec3{0, 1, 0})
	moved := components.TransformFromPositionRotation(mgl32.Vec3{5, 0, -1}, rot)
	w.SetTransform(components.EntityKey(id), moved)
	mustReconcile(t, r, fr, w)

	if len(fr.loads) != 0 || len(fr.creates) != 0 {
		t.Errorf("loads=%d creates=%d, want none", len(fr.loads), len(fr.creates))
	}
	if len(fr.transforms) != 1 {
		t.Fatalf("transform updates = %d, want 1", len(fr.transforms))
	}
	b, _ := r.Binding(components.EntityKey(id))
	got := fr.transforms[0]
	if got.Instance != b.Instance || got.Position != moved.Position || got.Rotation != moved.Rotation {
		t.Errorf("transform call = %+v, want %v on %d", got, moved, b.Instance)
	}
	if b.Transform != moved {
		t.Errorf("binding last transform = %v, want %v", b.Transform, moved)
	}
}

func TestSceneAndEntityKeysDoNotCollide(t *testing.T) {
	fr := newFakeRenderer("car", "floor")
	w := world.New()
	w.SpawnSceneInstance(0, "floor", at(0, 0, 0))
	id := w.Spawn("car", at(9, 0, 0))
	if id != 0 {
		t.Fatalf("entity id = %d, want 0 to share the scene index", id)
	}
	r := NewReconciler(ReconcilerConfig{}, nil)
	mustReconcile(t, r, fr, w)

	scene, okScene := r.Binding(components.SceneKey(0))
	entity, okEntity := r.Binding(components.EntityKey(0))
	if !okScene || !okEntity {
		t.Fatalf("bindings present scene=%v entity=%v", okScene, okEntity)
	}
	if scene.Instance == entity.Instance {
		t.Error("scene and entity records share an instance")
	}
	if scene.MeshName != "floor" || entity.MeshName != "car" {
		t.Errorf("meshes scene=%s entity=%s", scene.MeshName, entity.MeshName)
	}
	if len(fr.creates) != 2 {
		t.Errorf("creates = %d, want 2", len(fr.creates))
	}

	// Moving the entity must not touch the scene instance.
	fr.resetCalls()
	w.SetTransform(components.EntityKey(0), at(10, 0, 0))
	mustReconcile(t, r, fr, w)
	if fr.instances[scene.Instance].Position != (mgl32.Vec3{}) {
		t.Errorf("scene instance moved to %v", fr.instances[scene.Instance].Position)
	}
	if fr.instances[entity.Instance].Position != (mgl32.Vec3{10, 0, 0}) {
		t.Errorf("entity instance at %v", fr.instances[entity.Instance].Position)
	}
}

func TestMissingMeshFailAbortsPass(t *testing.T) {
	fr := newFakeRenderer()
	w := world.New()
	w.SpawnSceneInstance(3, "spaceship", at(0, 0, 0))
	r := NewReconciler(ReconcilerConfig{MissingMesh: MissingMeshFail}, nil)

	_, err := r.Reconcile(fr, w)
	if err == nil {
		t.Fatal("Reconcile() error = nil, want mesh load failure")
	}
	if !errors.Is(err, ErrMeshLoad) || !errors.Is(err, renderer.ErrMeshNotFound) {
		t.Errorf("error %v does not match ErrMeshLoad and ErrMeshNotFound", err)
	}
	var loadErr *MeshLoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("error %T is not a *MeshLoadError", err)
	}
	if loadErr.MeshName != "spaceship" || loadErr.Key != components.SceneKey(3) {
		t.Errorf("MeshLoadError = %+v", loadErr)
	}
	if !strings.Contains(err.Error(), "spaceship") {
		t.Errorf("error message %q does not name the mesh", err.Error())
	}
	if r.Len() != 0 || len(fr.creates) != 0 {
		t.Errorf("partial binding inserted: bindings=%d creates=%d", r.Len(), len(fr.creates))
	}
}

func TestMissingMeshSkipRetriesUntilBaked(t *testing.T) {
	fr := newFakeRenderer("car")
	w := world.New()
	w.SpawnSceneInstance(0, "car", at(0, 0, 0))
	w.SpawnSceneInstance(1, "truck", at(1, 0, 0))

	var unresolved int
	obs := ObserverFunc(func(e InstanceEvent) {
		if e.Type == InstanceUnresolved {
			unresolved++
		}
	})
	r := NewReconciler(ReconcilerConfig{MissingMesh: MissingMeshSkip}, obs)

	report := mustReconcile(t, r, fr, w)
	if report.Created != 1 || report.Unresolved != 1 {
		t.Errorf("report = %+v, want 1 created 1 unresolved", report)
	}
	if _, ok := r.Binding(components.SceneKey(1)); ok {
		t.Error("unresolved record got a binding")
	}
	if keys := r.Unresolved(); len(keys) != 1 || keys[0] != components.SceneKey(1) {
		t.Errorf("Unresolved() = %v", keys)
	}

	// Still missing: retried, still unresolved.
	mustReconcile(t, r, fr, w)
	if unresolved != 2 {
		t.Errorf("unresolved events = %d, want 2", unresolved)
	}

	fr.bake("truck")
	fr.resetCalls()
	report = mustReconcile(t, r, fr, w)
	if report.Created != 1 || report.Unresolved != 0 {
		t.Errorf("report after bake = %+v", report)
	}
	if _, ok := r.Binding(components.SceneKey(1)); !ok {
		t.Error("record not bound after its mesh was baked")
	}
	if len(r.Unresolved()) != 0 {
		t.Errorf("Unresolved() = %v, want empty", r.Unresolved())
	}
}

func TestUnresolvedRecordForgottenWhenDespawned(t *testing.T) {
	fr := newFakeRenderer()
	w := world.New()
	id := w.Spawn("ghost", at(0, 0, 0))
	r := NewReconciler(ReconcilerConfig{}, nil)
	mustReconcile(t, r, fr, w)
	if len(r.Unresolved()) != 1 {
		t.Fatalf("Unresolved() = %v", r.Unresolved())
	}
	w.Despawn(id)
	report := mustReconcile(t, r, fr, w)
	if report.Unresolved != 0 || len(r.Unresolved()) != 0 {
		t.Errorf("despawned record still unresolved: %+v", report)
	}
}

func TestDespawnedRecordIsRemoved(t *testing.T) {
	fr := newFakeRenderer("car")
	w := world.New()
	keep := w.Spawn("car", at(0, 0, 0))
	gone := w.Spawn("car", at(1, 0, 0))

	var removed []components.InstanceKey
	r := NewReconciler(ReconcilerConfig{}, ObserverFunc(func(e InstanceEvent) {
		if e.Type == InstanceRemoved {
			removed = append(removed, e.Key)
		}
	}))
	mustReconcile(t, r, fr, w)
	goneBinding, _ := r.Binding(components.EntityKey(gone))

	w.Despawn(gone)
	report := mustReconcile(t, r, fr, w)
	if report.Removed != 1 {
		t.Errorf("report = %+v, want 1 removed", report)
	}
	if len(fr.removes) != 1 || fr.removes[0] != goneBinding.Instance {
		t.Errorf("RemoveInstance calls = %v, want [%d]", fr.removes, goneBinding.Instance)
	}
	if _, ok := r.Binding(components.EntityKey(gone)); ok {
		t.Error("binding for despawned entity still present")
	}
	if _, ok := r.Binding(components.EntityKey(keep)); !ok {
		t.Error("binding for live entity removed")
	}
	if len(removed) != 1 || removed[0] != components.EntityKey(gone) {
		t.Errorf("removed events = %v", removed)
	}

	mustReconcile(t, r, fr, w)
	if len(fr.removes) != 1 {
		t.Errorf("RemoveInstance issued %d times, want once", len(fr.removes))
	}
}

func TestRetainStaleKeepsBindings(t *testing.T) {
	fr := newFakeRenderer("car")
	w := world.New()
	id := w.Spawn("car", at(0, 0, 0))
	r := NewReconciler(ReconcilerConfig{RetainStale: true}, nil)
	mustReconcile(t, r, fr, w)

	w.Despawn(id)
	report := mustReconcile(t, r, fr, w)
	if report.Removed != 0 || len(fr.removes) != 0 || r.Len() != 1 {
		t.Errorf("stale binding removed: report=%+v removes=%d", report, len(fr.removes))
	}
}

func TestMeshChangeRebinds(t *testing.T) {
	fr := newFakeRenderer("car", "truck")
	w := world.New()
	w.SpawnSceneInstance(0, "car", at(0, 0, 0))
	r := NewReconciler(ReconcilerConfig{}, nil)
	mustReconcile(t, r, fr, w)
	old, _ := r.Binding(components.SceneKey(0))

	w.SpawnSceneInstance(0, "truck", at(0, 0, 0))
	report := mustReconcile(t, r, fr, w)
	if report.Created != 1 || report.Removed != 1 {
		t.Errorf("report = %+v, want 1 created 1 removed", report)
	}
	b, _ := r.Binding(components.SceneKey(0))
	if b.MeshName != "truck" || b.Mesh == old.Mesh {
		t.Errorf("binding = %+v, want truck mesh", b)
	}
	if len(fr.removes) != 1 || fr.removes[0] != old.Instance {
		t.Errorf("old instance not removed: %v", fr.removes)
	}
	if r.SceneBindings() != 1 {
		t.Errorf("SceneBindings() = %d, want 1", r.SceneBindings())
	}
}

func TestMeshChangeToMissingMeshFailKeepsBinding(t *testing.T) {
	fr := newFakeRenderer("car")
	w := world.New()
	w.SpawnSceneInstance(0, "car", at(0, 0, 0))
	r := NewReconciler(ReconcilerConfig{MissingMesh: MissingMeshFail}, nil)
	mustReconcile(t, r, fr, w)
	old, _ := r.Binding(components.SceneKey(0))

	w.SpawnSceneInstance(0, "truck", at(0, 0, 0))
	_, err := r.Reconcile(fr, w)
	if !errors.Is(err, ErrMeshLoad) {
		t.Fatalf("Reconcile() error = %v, want ErrMeshLoad", err)
	}
	if len(fr.removes) != 0 {
		t.Errorf("RemoveInstance calls = %v, want none", fr.removes)
	}
	b, ok := r.Binding(components.SceneKey(0))
	if !ok || b.Instance != old.Instance || b.MeshName != "car" {
		t.Errorf("binding = %+v (present %v), want the car binding kept", b, ok)
	}
	if len(fr.instances) != 1 {
		t.Errorf("renderer instances = %d, want 1", len(fr.instances))
	}
}

func TestMeshChangeToMissingMeshSkipKeepsOldMeshUntilBaked(t *testing.T) {
	fr := newFakeRenderer("car")
	w := world.New()
	w.SpawnSceneInstance(0, "car", at(0, 0, 0))
	r := NewReconciler(ReconcilerConfig{}, nil)
	mustReconcile(t, r, fr, w)
	old, _ := r.Binding(components.SceneKey(0))

	w.SpawnSceneInstance(0, "truck", at(5, 0, 0))
	report := mustReconcile(t, r, fr, w)
	if report.Unresolved != 1 || report.Removed != 0 || report.Created != 0 || report.Updated != 1 {
		t.Errorf("report = %+v, want 1 updated 1 unresolved", report)
	}
	b, _ := r.Binding(components.SceneKey(0))
	if b.Instance != old.Instance || b.MeshName != "car" || b.Transform.Position != (mgl32.Vec3{5, 0, 0}) {
		t.Errorf("binding = %+v, want the car instance moved", b)
	}

	fr.bake("truck")
	report = mustReconcile(t, r, fr, w)
	if report.Created != 1 || report.Removed != 1 || report.Unresolved != 0 {
		t.Errorf("report after bake = %+v, want 1 created 1 removed", report)
	}
	b, _ = r.Binding(components.SceneKey(0))
	if b.MeshName != "truck" || len(fr.removes) != 1 || fr.removes[0] != old.Instance {
		t.Errorf("binding = %+v removes = %v", b, fr.removes)
	}
}

func TestDespawnedSceneRecordIsSwept(t *testing.T) {
	fr := newFakeRenderer("car")
	w := world.New()
	w.SpawnSceneInstance(0, "car", at(0, 0, 0))
	w.SpawnSceneInstance(1, "car", at(3, 0, 0))
	r := NewReconciler(ReconcilerConfig{}, nil)
	mustReconcile(t, r, fr, w)
	gone, _ := r.Binding(components.SceneKey(1))

	if !w.DespawnScene(1) {
		t.Fatal("DespawnScene(1) = false")
	}
	if w.DespawnScene(1) {
		t.Error("second DespawnScene(1) = true")
	}
	report := mustReconcile(t, r, fr, w)
	if report.Removed != 1 || r.SceneBindings() != 1 {
		t.Errorf("report = %+v, SceneBindings() = %d", report, r.SceneBindings())
	}
	if len(fr.removes) != 1 || fr.removes[0] != gone.Instance {
		t.Errorf("RemoveInstance calls = %v, want [%d]", fr.removes, gone.Instance)
	}
}

func TestSharedMeshLoadedPerRecordButDeduped(t *testing.T) {
	fr := newFakeRenderer("car")
	w := world.New()
	w.SpawnSceneInstance(0, "car", at(0, 0, 0))
	w.SpawnSceneInstance(1, "car", at(1, 0, 0))
	r := NewReconciler(ReconcilerConfig{}, nil)
	mustReconcile(t, r, fr, w)

	a, _ := r.Binding(components.SceneKey(0))
	b, _ := r.Binding(components.SceneKey(1))
	if a.Instance == b.Instance {
		t.Error("two records share an instance handle")
	}
	if a.Mesh != b.Mesh {
		t.Errorf("mesh handles %d and %d, renderer dedupes by path", a.Mesh, b.Mesh)
	}
	if len(fr.loads) != 2 {
		t.Errorf("load requests = %d, want one per new record", len(fr.loads))
	}
}

func TestResetRemovesEverything(t *testing.T) {
	fr := newFakeRenderer("car")
	w := world.New()
	w.SpawnSceneInstance(0, "car", at(0, 0, 0))
	w.Spawn("car", at(0, 0, 0))
	r := NewReconciler(ReconcilerConfig{}, nil)
	mustReconcile(t, r, fr, w)

	if n := r.Reset(fr); n != 2 {
		t.Errorf("Reset() = %d, want 2", n)
	}
	if r.Len() != 0 || r.SceneBindings() != 0 || r.EntityBindings() != 0 || len(fr.instances) != 0 {
		t.Errorf("after Reset bindings=%d renderer instances=%d", r.Len(), len(fr.instances))
	}
}

func TestParseMissingMeshPolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    MissingMeshPolicy
		wantErr bool
	}{
		{"", MissingMeshSkip, false},
		{"skip", MissingMeshSkip, false},
		{"FAIL", MissingMeshFail, false},
		{"explode", MissingMeshSkip, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMissingMeshPolicy(tt.in)
			if (err != nil) != tt.wantErr || got != tt.want {
				t.Errorf("ParseMissingMeshPolicy(%q) = %v, %v", tt.in, got, err)
			}
		})
	}
}

// nullRenderer accepts every call and keeps nothing, so allocation counts
// only reflect the reconciler.
type nullRenderer struct{ next renderer.InstanceHandle }

func (n *nullRenderer) AddBakedMesh(string, renderer.MeshOptions) (renderer.MeshHandle, error) {
	return 0, nil
}

func (n *nullRenderer) AddInstance(renderer.MeshHandle, mgl32.Vec3, mgl32.Quat) renderer.InstanceHandle {
	n.next++
	return n.next
}

func (n *nullRenderer) SetInstanceTransform(renderer.InstanceHandle, mgl32.Vec3, mgl32.Quat) {}
func (n *nullRenderer) RemoveInstance(renderer.InstanceHandle)                               {}
func (n *nullRenderer) SetWorldGIScale(float32)                                              {}

func TestUpdatePassAllocationsDoNotGrowWithRecords(t *testing.T) {
	allocs := func(records int) float64 {
		w := world.New()
		for i := 0; i < records; i++ {
			w.Spawn("car", at(float32(i), 0, 0))
		}
		wr := &nullRenderer{}
		r := NewReconciler(ReconcilerConfig{}, nil)
		if _, err := r.Reconcile(wr, w); err != nil {
			t.Fatal(err)
		}
		return testing.AllocsPerRun(20, func() {
			_, _ = r.Reconcile(wr, w)
		})
	}
	small, large := allocs(4), allocs(256)
	if large > small {
		t.Errorf("update pass allocations grow with records: %v for 4, %v for 256", small, large)
	}
}
