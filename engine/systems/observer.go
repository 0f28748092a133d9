package systems

import (
	"github.com/spaghettifunk/kiln/engine/core"
	"github.com/spaghettifunk/kiln/engine/renderer"
	"github.com/spaghettifunk/kiln/engine/renderer/components"
)

type InstanceEventType uint8

const (
	InstanceCreated InstanceEventType = iota
	InstanceUpdated
	InstanceRemoved
	InstanceUnresolved
)

func (t InstanceEventType) String() string {
	switch t {
	case InstanceCreated:
		return "created"
	case InstanceUpdated:
		return "updated"
	case InstanceRemoved:
		return "removed"
	case InstanceUnresolved:
		return "unresolved"
	default:
		return "unknown"
	}
}

type InstanceEvent struct {
	Type      InstanceEventType
	Key       components.InstanceKey
	MeshName  string
	Instance  renderer.InstanceHandle
	Mesh      renderer.MeshHandle
	Transform components.Transform
	// Set for InstanceUnresolved.
	Err error
}

// Observer receives one event per instance the reconciler touches. It is
// called while the renderer lock is held and must not block.
type Observer interface {
	OnInstanceEvent(e InstanceEvent)
}

type ObserverFunc func(e InstanceEvent)

func (f ObserverFunc) OnInstanceEvent(e InstanceEvent) {
	f(e)
}

// Observers fans an event out to several observers in order.
type Observers []Observer

func (o Observers) OnInstanceEvent(e InstanceEvent) {
	for _, obs := range o {
		obs.OnInstanceEvent(e)
	}
}

type nopObserver struct{}

func (nopObserver) OnInstanceEvent(InstanceEvent) {}

// LogObserver writes a debug line per created, removed or unresolved instance.
// Transform updates are only logged when Verbose is set since they happen
// for every instance on every frame.
type LogObserver struct {
	Verbose bool
}

func (l LogObserver) OnInstanceEvent(e InstanceEvent) {
	if !core.LogEnabled(core.DebugLevel) || (e.Type == InstanceUpdated && !l.Verbose) {
		return
	}
	logger := core.LogWith("origin", e.Key.Origin, "id", e.Key.ID, "mesh", e.MeshName)
	switch e.Type {
	case InstanceCreated:
		logger.Debug("ADD MESH", "instance", e.Instance, "transform", e.Transform)
	case InstanceUpdated:
		logger.Debug("UPDATE MESH", "instance", e.Instance, "transform", e.Transform)
	case InstanceRemoved:
		logger.Debug("REMOVE MESH", "instance", e.Instance)
	case InstanceUnresolved:
		logger.Debug("UNRESOLVED MESH", "err", e.Err)
	}
}
