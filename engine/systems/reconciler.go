package systems

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spaghettifunk/kiln/engine/core"
	"github.com/spaghettifunk/kiln/engine/renderer"
	"github.com/spaghettifunk/kiln/engine/renderer/components"
)

var (
	ErrMeshLoad         = errors.New("mesh load failed")
	ErrInstanceRejected = errors.New("renderer rejected instance")
)

// MeshLoadError carries the mesh a record asked for when its baked asset could not be loaded.
type MeshLoadError struct {
	Key      components.InstanceKey
	MeshName string
	Path     string
	Err      error
}

func (e *MeshLoadError) Error() string {
	return fmt.Sprintf("could not find baked mesh %s (%s) for %s: %v", e.MeshName, e.Path, e.Key, e.Err)
}

func (e *MeshLoadError) Unwrap() []error {
	return []error{ErrMeshLoad, e.Err}
}

// MissingMeshPolicy decides what a pass does with a record whose mesh cannot be loaded.
type MissingMeshPolicy uint8

const (
	// Leave the record unbound, log it and try again on the next pass.
	MissingMeshSkip MissingMeshPolicy = iota
	// Abort the pass with a *MeshLoadError.
	MissingMeshFail
)

func (p MissingMeshPolicy) String() string {
	switch p {
	case MissingMeshSkip:
		return "skip"
	case MissingMeshFail:
		return "fail"
	default:
		return "unknown"
	}
}

func ParseMissingMeshPolicy(s string) (MissingMeshPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "skip":
		return MissingMeshSkip, nil
	case "fail":
		return MissingMeshFail, nil
	default:
		return MissingMeshSkip, fmt.Errorf("unknown missing mesh policy %q (want skip or fail)", s)
	}
}

// RecordSource yields the tracked mesh instances. world.World implements it.
type RecordSource interface {
	Each(fn func(inst *components.MeshInstance) error) error
}

// Binding ties a tracked record to the renderer resources created for it.
type Binding struct {
	Instance  renderer.InstanceHandle
	Mesh      renderer.MeshHandle
	MeshName  string
	Transform components.Transform

	seen uint64
}

type ReconcilerConfig struct {
	MissingMesh MissingMeshPolicy
	// Keep bindings of records that disappeared instead of removing their instances.
	RetainStale bool
	MeshOptions renderer.MeshOptions
}

// Report counts what one pass did.
type Report struct {
	Pass       uint64
	Created    int
	Updated    int
	Removed    int
	Unresolved int
}

// Reconciler keeps renderer instances in step with the tracked records. One
// registry keyed by InstanceKey serves both scene and entity records.
type Reconciler struct {
	config     ReconcilerConfig
	registry   map[components.InstanceKey]*Binding
	unresolved map[components.InstanceKey]uint64
	observer   Observer
	pass       uint64

	sceneBindings  int
	entityBindings int
}

func NewReconciler(config ReconcilerConfig, observer Observer) *Reconciler {
	if observer == nil {
		observer = nopObserver{}
	}
	return &Reconciler{
		config:     config,
		registry:   make(map[components.InstanceKey]*Binding),
		unresolved: make(map[components.InstanceKey]uint64),
		observer:   observer,
	}
}

// Reconcile walks every record once: records with a binding get their
// transform pushed, records without one get their mesh loaded and an instance
// created. Bindings whose record is gone are removed afterwards unless
// RetainStale is set. wr must be held exclusively for the whole call.
func (r *Reconciler) Reconcile(wr renderer.WorldRenderer, records RecordSource) (Report, error) {
	r.pass++
	report := Report{Pass: r.pass}

	err := records.Each(func(inst *components.MeshInstance) error {
		return r.reconcileOne(wr, inst, &report)
	})
	if err != nil {
		return report, err
	}

	if !r.config.RetainStale {
		r.sweep(wr, &report)
	}
	for key, seen := range r.unresolved {
		if seen != r.pass {
			delete(r.unresolved, key)
		}
	}
	report.Unresolved = len(r.unresolved)
	return report, nil
}

func (r *Reconciler) reconcileOne(wr renderer.WorldRenderer, inst *components.MeshInstance, report *Report) error {
	bound, ok := r.registry[inst.Key]
	if ok && bound.MeshName == inst.MeshName {
		r.update(wr, inst.Key, bound, inst.Transform, report)
		return nil
	}

	path := components.MeshPath(inst.MeshName)
	mesh, err := wr.AddBakedMesh(path, r.config.MeshOptions)
	if err != nil {
		loadErr := &MeshLoadError{
			Key:      inst.Key,
			MeshName: inst.MeshName,
			Path:     path,
			Err:      err,
		}
		if r.config.MissingMesh == MissingMeshFail {
			return loadErr
		}
		if _, known := r.unresolved[inst.Key]; !known {
			core.LogWarn("%s; will retry", loadErr.Error())
		}
		r.unresolved[inst.Key] = r.pass
		r.observer.OnInstanceEvent(InstanceEvent{
			Type:      InstanceUnresolved,
			Key:       inst.Key,
			MeshName:  inst.MeshName,
			Transform: inst.Transform,
			Err:       loadErr,
		})
		// Keep showing the previous mesh until the new one is baked.
		if ok {
			r.update(wr, inst.Key, bound, inst.Transform, report)
		}
		return nil
	}

	// The record now shows a different mesh and it loaded: drop the old instance.
	if ok {
		r.unbind(wr, inst.Key, bound, report)
	}

	handle := wr.AddInstance(mesh, inst.Transform.Position, inst.Transform.Rotation)
	if handle == renderer.InvalidInstanceHandle {
		return fmt.Errorf("%w: mesh %s for %s", ErrInstanceRejected, inst.MeshName, inst.Key)
	}
	if _, was := r.unresolved[inst.Key]; was {
		delete(r.unresolved, inst.Key)
		core.LogInfo("baked mesh %s resolved for %s", inst.MeshName, inst.Key)
	}

	r.registry[inst.Key] = &Binding{
		Instance:  handle,
		Mesh:      mesh,
		MeshName:  inst.MeshName,
		Transform: inst.Transform,
		seen:      r.pass,
	}
	r.count(inst.Key.Origin, 1)
	report.Created++
	r.observer.OnInstanceEvent(InstanceEvent{
		Type:      InstanceCreated,
		Key:       inst.Key,
		MeshName:  inst.MeshName,
		Instance:  handle,
		Mesh:      mesh,
		Transform: inst.Transform,
	})
	return nil
}

func (r *Reconciler) update(wr renderer.WorldRenderer, key components.InstanceKey, b *Binding, transform components.Transform, report *Report) {
	b.seen = r.pass
	wr.SetInstanceTransform(b.Instance, transform.Position, transform.Rotation)
	b.Transform = transform
	report.Updated++
	r.observer.OnInstanceEvent(InstanceEvent{
		Type:      InstanceUpdated,
		Key:       key,
		MeshName:  b.MeshName,
		Instance:  b.Instance,
		Mesh:      b.Mesh,
		Transform: transform,
	})
}

func (r *Reconciler) sweep(wr renderer.WorldRenderer, report *Report) {
	for key, b := range r.registry {
		if b.seen != r.pass {
			r.unbind(wr, key, b, report)
		}
	}
}

func (r *Reconciler) unbind(wr renderer.WorldRenderer, key components.InstanceKey, b *Binding, report *Report) {
	wr.RemoveInstance(b.Instance)
	delete(r.registry, key)
	r.count(key.Origin, -1)
	if report != nil {
		report.Removed++
	}
	r.observer.OnInstanceEvent(InstanceEvent{
		Type:      InstanceRemoved,
		Key:       key,
		MeshName:  b.MeshName,
		Instance:  b.Instance,
		Mesh:      b.Mesh,
		Transform: b.Transform,
	})
}

func (r *Reconciler) count(origin components.Origin, delta int) {
	switch origin {
	case components.OriginScene:
		r.sceneBindings += delta
	case components.OriginEntity:
		r.entityBindings += delta
	}
}

// Reset removes every binding and its renderer instance.
func (r *Reconciler) Reset(wr renderer.WorldRenderer) int {
	n := len(r.registry)
	for key, b := range r.registry {
		r.unbind(wr, key, b, nil)
	}
	clear(r.unresolved)
	return n
}

// Binding returns a copy of the binding for key.
func (r *Reconciler) Binding(key components.InstanceKey) (Binding, bool) {
	b, ok := r.registry[key]
	if !ok {
		return Binding{}, false
	}
	return *b, true
}

func (r *Reconciler) Len() int {
	return len(r.registry)
}

// SceneBindings is the size of the scene-file registry.
func (r *Reconciler) SceneBindings() int {
	return r.sceneBindings
}

// EntityBindings is the size of the spawned-entity registry.
func (r *Reconciler) EntityBindings() int {
	return r.entityBindings
}

// Unresolved lists records waiting for their baked mesh.
func (r *Reconciler) Unresolved() []components.InstanceKey {
	keys := make([]components.InstanceKey, 0, len(r.unresolved))
	for k := range r.unresolved {
		keys = append(keys, k)
	}
	return keys
}

func (r *Reconciler) Config() ReconcilerConfig {
	return r.config
}
