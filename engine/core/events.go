package core

import "sync"

// EventCode identifies a kind of event. Application codes start at
// EventCodeUser.
type EventCode uint16

const (
	// Shuts the application down on the next frame.
	EventCodeApplicationQuit EventCode = iota + 1
	// Key holds the key code.
	EventCodeKeyPressed
	EventCodeKeyReleased
	// Width and Height hold the new framebuffer size.
	EventCodeResized
	// Path holds the changed shader file.
	EventCodeShaderChanged

	EventCodeUser EventCode = 0xFF
)

// EventContext is the payload passed to listeners.
type EventContext struct {
	Key    int
	Width  uint32
	Height uint32
	Path   string
}

// FnOnEvent returns true when the event was handled and must not reach
// later listeners.
type FnOnEvent func(code EventCode, sender interface{}, listener interface{}, data EventContext) bool

type registeredEvent struct {
	listener interface{}
	callback FnOnEvent
}

// EventSystem dispatches events synchronously on the goroutine that fires
// them, in registration order.
type EventSystem struct {
	mu         sync.RWMutex
	registered map[EventCode][]registeredEvent
}

func NewEventSystem() *EventSystem {
	return &EventSystem{
		registered: make(map[EventCode][]registeredEvent),
	}
}

// Register adds a listener for code. A listener can be registered once per
// code; a second registration returns false.
func (es *EventSystem) Register(code EventCode, listener interface{}, onEvent FnOnEvent) bool {
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

func (es *EventSystem) Unregister(code EventCode, listener interface{}) bool {
	es.mu.Lock()
	defer es.mu.Unlock()

	events := es.registered[code]
	for i, e := range events {
		if e.listener == listener {
			es.registered[code] = append(events[:i:i], events[i+1:]...)
			return true
		}
	}
	return false
}

// Fire delivers the event to listeners of code until one handles it.
func (es *EventSystem) Fire(code EventCode, sender interface{}, data EventContext) bool {
	es.mu.RLock()
	events := append([]registeredEvent(nil), es.registered[code]...)
	es.mu.RUnlock()

	for _, e := range events {
		if e.callback(code, sender, e.listener, data) {
			return true
		}
	}
	return false
}

// Shutdown drops every registration.
func (es *EventSystem) Shutdown() {
	es.mu.Lock()
	defer es.mu.Unlock()
	es.registered = make(map[EventCode][]registeredEvent)
}
