package event

import (
	"sync"
)

// AllEvents subscribes a handler to every event name
const AllEvents = "*"

// EventHandler handles domain events
type EventHandler interface {
	// Handle processes the event
	Handle(event DomainEvent) error
	// HandledEvents returns the event names this handler handles
	HandledEvents() []string
}

// EventDispatcher dispatches domain events to registered handlers
type EventDispatcher interface {
	Dispatch(event DomainEvent)
	DispatchAll(events []DomainEvent)
	Subscribe(handler EventHandler)
	Unsubscribe(handler EventHandler)
}

// HandlerFunc adapts a function to EventHandler for a fixed set of names
type HandlerFunc struct {
	names []string
	fn    func(DomainEvent) error
}

// NewHandlerFunc creates a handler that calls fn for the given event names
func NewHandlerFunc(fn func(DomainEvent) error, names ...string) *HandlerFunc {
	return &HandlerFunc{names: names, fn: fn}
}

// Handle calls the wrapped function
func (h *HandlerFunc) Handle(event DomainEvent) error {
	return h.fn(event)
}

// HandledEvents returns the configured names
func (h *HandlerFunc) HandledEvents() []string {
	return h.names
}

// InMemoryDispatcher is an in-memory implementation of EventDispatcher.
// Synchronous dispatch runs handlers on the caller's goroutine in
// subscription order.
type InMemoryDispatcher struct {
	handlers map[string][]EventHandler
	mu       sync.RWMutex
	async    bool
	onError  func(DomainEvent, error)
}

// NewInMemoryDispatcher creates a new InMemoryDispatcher
func NewInMemoryDispatcher(async bool) *InMemoryDispatcher {
	return &InMemoryDispatcher{
		handlers: make(map[string][]EventHandler),
		async:    async,
	}
}

// OnError registers a callback for handler failures
func (d *InMemoryDispatcher) OnError(fn func(DomainEvent, error)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onError = fn
}

// Dispatch sends an event to all registered handlers
func (d *InMemoryDispatcher) Dispatch(event DomainEvent) {
	d.mu.RLock()
	named := d.handlers[event.EventName()]
	wildcard := d.handlers[AllEvents]
	combined := make([]EventHandler, 0, len(named)+len(wildcard))
	combined = append(combined, named...)
	combined = append(combined, wildcard...)
	onError := d.onError
	d.mu.RUnlock()

	run := func(h EventHandler) {
		if err := h.Handle(event); err != nil && onError != nil {
			onError(event, err)
		}
	}

	for _, handler := range combined {
		if d.async {
			go run(handler)
		} else {
			run(handler)
		}
	}
}

// DispatchAll dispatches multiple events
func (d *InMemoryDispatcher) DispatchAll(events []DomainEvent) {
	for _, event := range events {
		d.Dispatch(event)
	}
}

// Subscribe registers a handler for events
func (d *InMemoryDispatcher) Subscribe(handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, eventName := range handler.HandledEvents() {
		d.handlers[eventName] = append(d.handlers[eventName], handler)
	}
}

// Unsubscribe removes a handler
func (d *InMemoryDispatcher) Unsubscribe(handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, eventName := range handler.HandledEvents() {
		handlers := d.handlers[eventName]
		for i, h := range handlers {
			if h == handler {
				d.handlers[eventName] = append(handlers[:i:i], handlers[i+1:]...)
				break
			}
		}
	}
}

// NullDispatcher is a no-op dispatcher for when events are not needed
type NullDispatcher struct{}

// NewNullDispatcher creates a new NullDispatcher
func NewNullDispatcher() *NullDispatcher {
	return &NullDispatcher{}
}

func (d *NullDispatcher) Dispatch(event DomainEvent)       {}
func (d *NullDispatcher) DispatchAll(events []DomainEvent) {}
func (d *NullDispatcher) Subscribe(handler EventHandler)   {}
func (d *NullDispatcher) Unsubscribe(handler EventHandler) {}
