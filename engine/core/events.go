package core

import (
	"sync"

	"github.com/spaghettifunk/kiln/engine/containers"
)

// System internal event codes. Application should use codes beyond 255.
type SystemEventCode int

const (
	// Shuts the application down on the next frame.
	EVENT_CODE_APPLICATION_QUIT SystemEventCode = 0x01

	// Resized/resolution changed from the OS.
	/* Context usage:
	 * data := context.Data.(*ResizeEvent)
	 */
	EVENT_CODE_RESIZED SystemEventCode = 0x08

	// A scene description file was created or modified.
	/* Context usage:
	 * data := context.Data.(*AssetEvent)
	 */
	EVENT_CODE_SCENE_CHANGED SystemEventCode = 0x10

	// A baked mesh appeared or was rewritten in the asset directory.
	/* Context usage:
	 * data := context.Data.(*AssetEvent)
	 */
	EVENT_CODE_MESH_BAKED SystemEventCode = 0x11

	// An indexed asset was removed from disk.
	/* Context usage:
	 * data := context.Data.(*AssetEvent)
	 */
	EVENT_CODE_ASSET_REMOVED SystemEventCode = 0x12

	// A scene description finished loading off the frame loop.
	/* Context usage:
	 * desc := context.Data.(*scene.SceneDesc)
	 */
	EVENT_CODE_SCENE_LOADED SystemEventCode = 0x13

	MAX_EVENT_CODE SystemEventCode = 0xFF
)

// This should be more than enough codes...
const MAX_MESSAGE_CODES = 16384

// Pending events beyond this are dropped with a warning.
const DEFAULT_EVENT_QUEUE_SIZE = 256

type EventContext struct {
	Type SystemEventCode
	Data interface{}
}

type ResizeEvent struct {
	WindowWidth  uint32
	WindowHeight uint32
}

type AssetEvent struct {
	// Rooted asset path, e.g. "/baked/car.mesh".
	Path string
}

// Should return true if handled.
type FnOnEvent func(context EventContext) bool

type registeredEvent struct {
	listener interface{}
	callback FnOnEvent
}

// EventSystem dispatches events to listeners registered per code. Events can
// be fired synchronously or posted from any goroutine and dispatched later
// on the frame loop.
type EventSystem struct {
	mu         sync.Mutex
	registered map[SystemEventCode][]registeredEvent

	queueMu sync.Mutex
	pending *containers.RingQueue[EventContext]
}

func NewEventSystem(queueSize int) *EventSystem {
	if queueSize <= 0 {
		queueSize = DEFAULT_EVENT_QUEUE_SIZE
	}
	return &EventSystem{
		registered: make(map[SystemEventCode][]registeredEvent),
		pending:    containers.NewRingQueue[EventContext](queueSize),
	}
}

/**
 * Register to listen for when events are sent with the provided code. A listener
 * can only be registered once per code; a duplicate returns false.
 */
func (es *EventSystem) Register(code SystemEventCode, listener interface{}, onEvent FnOnEvent) bool {
	if code < 0 || code >= MAX_MESSAGE_CODES || onEvent == nil {
		return false
	}
	es.mu.Lock()
	defer es.mu.Unlock()

	for _, e := range es.registered[code] {
		if e.listener == listener {
			LogWarn("listener already registered for event code %d", code)
			return false
		}
	}
	es.registered[code] = append(es.registered[code], registeredEvent{
		listener: listener,
		callback: onEvent,
	})
	return true
}

// Unregister removes the listener for the code. Returns false if it was not registered.
func (es *EventSystem) Unregister(code SystemEventCode, listener interface{}) bool {
	es.mu.Lock()
	defer es.mu.Unlock()

	events := es.registered[code]
	for i, e := range events {
		if e.listener == listener {
			es.registered[code] = append(events[:i], events[i+1:]...)
			return true
		}
	}
	return false
}

/**
 * Fires an event to listeners of the given code. If an event handler returns
 * true, the event is considered handled and is not passed on to any more listeners.
 */
func (es *EventSystem) Fire(context EventContext) bool {
	es.mu.Lock()
	events := make([]registeredEvent, len(es.registered[context.Type]))
	copy(events, es.registered[context.Type])
	es.mu.Unlock()

	for _, e := range events {
		if e.callback(context) {
			return true
		}
	}
	return false
}

// Post queues the event for the next Dispatch. Safe from any goroutine.
func (es *EventSystem) Post(context EventContext) error {
	es.queueMu.Lock()
	defer es.queueMu.Unlock()

	if err := es.pending.Enqueue(context); err != nil {
		LogWarn("event queue full, dropping event code %d", context.Type)
		return err
	}
	return nil
}

// Dispatch fires every posted event in order and returns how many were fired.
func (es *EventSystem) Dispatch() int {
	n := 0
	for {
		es.queueMu.Lock()
		context, err := es.pending.Dequeue()
		es.queueMu.Unlock()
		if err != nil {
			return n
		}
		es.Fire(context)
		n++
	}
}

func (es *EventSystem) Shutdown() error {
	es.mu.Lock()
	es.registered = make(map[SystemEventCode][]registeredEvent)
	es.mu.Unlock()

	es.queueMu.Lock()
	for !es.pending.IsEmpty() {
		_, _ = es.pending.Dequeue()
	}
	es.queueMu.Unlock()
	return nil
}
