package world

import (
	"sync"

	"github.com/spaghettifunk/kiln/engine/renderer/components"
)

// World tracks every mesh instance the renderer should show, from both the
// scene file and runtime spawns. It stands in for the host entity store.
type World struct {
	mu           sync.RWMutex
	instances    map[components.InstanceKey]*components.MeshInstance
	nextEntityID components.EntityID
}

func New() *World {
	return &World{
		instances: make(map[components.InstanceKey]*components.MeshInstance),
	}
}

// SpawnSceneInstance tracks the index-th instance of the loaded scene file.
// An existing record for that index is replaced.
func (w *World) SpawnSceneInstance(index uint32, meshName string, transform components.Transform) components.InstanceKey {
	key := components.SceneKey(index)
	w.mu.Lock()
	w.instances[key] = &components.MeshInstance{
		Key:       key,
		MeshName:  meshName,
		Transform: transform,
	}
	w.mu.Unlock()
	return key
}

// Spawn tracks a dynamically created entity and returns its id.
func (w *World) Spawn(meshName string, transform components.Transform) components.EntityID {
	w.mu.Lock()
	defer w.mu.Unlock()

	id := w.nextEntityID
	w.nextEntityID++
	key := components.EntityKey(id)
	w.instances[key] = &components.MeshInstance{
		Key:       key,
		MeshName:  meshName,
		Transform: transform,
	}
	return id
}

func (w *World) Despawn(id components.EntityID) bool {
	return w.remove(components.EntityKey(id))
}

func (w *World) DespawnScene(index uint32) bool {
	return w.remove(components.SceneKey(index))
}

func (w *World) remove(key components.InstanceKey) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.instances[key]; !ok {
		return false
	}
	delete(w.instances, key)
	return true
}

// Clear drops every record of the given origin.
func (w *World) Clear(origin components.Origin) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for key := range w.instances {
		if key.Origin == origin {
			delete(w.instances, key)
			n++
		}
	}
	return n
}

func (w *World) SetTransform(key components.InstanceKey, transform components.Transform) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	inst, ok := w.instances[key]
	if !ok {
		return false
	}
	inst.Transform = transform
	return true
}

// Update applies fn to the record under key while holding the write lock.
func (w *World) Update(key components.InstanceKey, fn func(inst *components.MeshInstance)) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	inst, ok := w.instances[key]
	if !ok {
		return false
	}
	fn(inst)
	return true
}

func (w *World) Get(key components.InstanceKey) (components.MeshInstance, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	inst, ok := w.instances[key]
	if !ok {
		return components.MeshInstance{}, false
	}
	return *inst, true
}

func (w *World) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.instances)
}

// Each visits every record under the read lock. fn must not call back into the World.
func (w *World) Each(fn func(inst *components.MeshInstance) error) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, inst := range w.instances {
		if err := fn(inst); err != nil {
			return err
		}
	}
	return nil
}
