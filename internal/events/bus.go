package events

import (
	"context"
	"slices"
	"sync"

	"github.com/rs/zerolog/log"
)

// HandlerFunc is a function that handles an event.
type HandlerFunc func(ctx context.Context, event Event) error

// EventBus is an asynchronous publish-subscribe hub. The world publishes
// player and server events; persistence, MQTT and notifications subscribe
// to them. Handler names are unique per event type.
type EventBus struct {
	mu       sync.RWMutex
	handlers map[EventType][]handlerEntry
	stopCh   chan struct{}
	stopped  bool
	inflight sync.WaitGroup
}

type handlerEntry struct {
	name    string
	handler HandlerFunc
}

// NewEventBus creates a new EventBus instance.
func NewEventBus() *EventBus {
	return &EventBus{
		handlers: make(map[EventType][]handlerEntry),
		stopCh:   make(chan struct{}),
	}
}

// Subscribe registers handler for eventType under name. A handler already
// registered under the same name is replaced.
func (eb *EventBus) Subscribe(eventType EventType, name string, handler HandlerFunc) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	entry := handlerEntry{name: name, handler: handler}
	entries := eb.handlers[eventType]
	if i := slices.IndexFunc(entries, func(h handlerEntry) bool { return h.name == name }); i >= 0 {
		entries[i] = entry
	} else {
		eb.handlers[eventType] = append(entries, entry)
	}

	log.Debug().Str("event", string(eventType)).Str("handler", name).Msg("subscribed to event")
}

// Unsubscribe removes a named handler from a specific event type.
func (eb *EventBus) Unsubscribe(eventType EventType, name string) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	before := len(eb.handlers[eventType])
	eb.handlers[eventType] = slices.DeleteFunc(eb.handlers[eventType], func(h handlerEntry) bool {
		return h.name == name
	})
	if len(eb.handlers[eventType]) != before {
		log.Debug().Str("event", string(eventType)).Str("handler", name).Msg("unsubscribed from event")
	}
}

// snapshot returns the handlers of eventType, or nil once the bus stopped.
// The caller's wait group is incremented under the lock so Stop cannot
// miss a delivery that is about to start.
func (eb *EventBus) snapshot(eventType EventType, wg *sync.WaitGroup) []handlerEntry {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if eb.stopped || len(eb.handlers[eventType]) == 0 {
		return nil
	}
	handlers := slices.Clone(eb.handlers[eventType])
	wg.Add(len(handlers))
	return handlers
}

// invoke runs one handler, converting a panic into a logged error.
func invoke(ctx context.Context, h handlerEntry, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("event", string(event.Type)).
				Str("handler", h.name).
				Interface("panic", r).
				Msg("handler panicked")
			err = nil
		}
	}()

	if err = h.handler(ctx, event); err != nil {
		log.Error().
			Err(err).
			Str("event", string(event.Type)).
			Str("handler", h.name).
			Msg("handler returned error")
	}
	return err
}

// Emit delivers event to every handler, each in its own goroutine, and
// returns immediately.
func (eb *EventBus) Emit(ctx context.Context, event Event) {
	handlers := eb.snapshot(event.Type, &eb.inflight)
	if len(handlers) == 0 {
		return
	}

	log.Trace().
		Str("event", string(event.Type)).
		Str("source", event.Source).
		Int("handlers", len(handlers)).
		Msg("emitting event")

	for _, h := range handlers {
		go func() {
			defer eb.inflight.Done()
			invoke(ctx, h, event)
		}()
	}
}

// EmitSync delivers event to every handler concurrently and waits for all
// of them. It returns the first handler error.
func (eb *EventBus) EmitSync(ctx context.Context, event Event) error {
	var wg sync.WaitGroup
	handlers := eb.snapshot(event.Type, &wg)
	if len(handlers) == 0 {
		return nil
	}

	errs := make([]error, len(handlers))
	for i, h := range handlers {
		go func() {
			defer wg.Done()
			errs[i] = invoke(ctx, h, event)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// Publish is shorthand for an asynchronous Emit with a background context.
func (eb *EventBus) Publish(eventType EventType, source string, payload interface{}) {
	eb.Emit(context.Background(), Event{Type: eventType, Source: source, Payload: payload})
}

// Stop rejects further events and waits for in-flight asynchronous
// deliveries. Calling Stop twice is harmless.
func (eb *EventBus) Stop() {
	eb.mu.Lock()
	if eb.stopped {
		eb.mu.Unlock()
		return
	}
	eb.stopped = true
	close(eb.stopCh)
	eb.mu.Unlock()

	eb.inflight.Wait()
	log.Info().Msg("event bus stopped")
}

// StopCh returns a channel that is closed when the EventBus is stopped.
func (eb *EventBus) StopCh() <-chan struct{} {
	return eb.stopCh
}

// HandlerCount returns the number of handlers registered for eventType.
func (eb *EventBus) HandlerCount(eventType EventType) int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return len(eb.handlers[eventType])
}
