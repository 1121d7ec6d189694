package channel

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/grovetools/storybook/logging"
)

// Handler receives an event's arguments.
type Handler func(args ...any)

// Channel is the event contract between the preview and its manager.
type Channel interface {
	Emit(event string, args ...any)
	On(event string, handler Handler) (off func())
}

type registration struct {
	id      uint64
	handler Handler
}

// Bus is the in-process Channel. Handlers run synchronously on the emitting
// goroutine in registration order. Transports subscribe to receive every
// emitted event as an envelope.
type Bus struct {
	mu          sync.RWMutex
	nextID      uint64
	handlers    map[string][]registration
	subscribers map[chan Event]struct{}
	logger      *logrus.Entry
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		handlers:    make(map[string][]registration),
		subscribers: make(map[chan Event]struct{}),
		logger:      logging.NewLogger("channel"),
	}
}

// On registers a handler and returns a function that removes it.
func (b *Bus) On(event string, handler Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.handlers[event] = append(b.handlers[event], registration{id: id, handler: handler})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		regs := b.handlers[event]
		for i, r := range regs {
			if r.id == id {
				b.handlers[event] = append(regs[:i:i], regs[i+1:]...)
				return
			}
		}
	}
}

// Emit runs local handlers and forwards the event to every subscriber.
func (b *Bus) Emit(event string, args ...any) {
	b.dispatch(event, args)

	b.mu.RLock()
	defer b.mu.RUnlock()
	ev := Event{Type: event, Args: args}
	for ch := range b.subscribers {
		select {
		case ch <- ev:
		default:
			// Non-blocking send to prevent slow clients from stalling the preview
			b.logger.WithField("event", event).Debug("Dropped event for slow subscriber")
		}
	}
}

// Dispatch delivers an event that arrived from a transport to local
// handlers only.
func (b *Bus) Dispatch(ev Event) {
	b.dispatch(ev.Type, ev.Args)
}

func (b *Bus) dispatch(event string, args []any) {
	b.mu.RLock()
	regs := append([]registration(nil), b.handlers[event]...)
	b.mu.RUnlock()

	b.logger.WithField("event", event).Trace("Dispatching event")
	for _, r := range regs {
		r.handler(args...)
	}
}

// Subscribe creates a new subscription channel for emitted events.
func (b *Bus) Subscribe() chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Event, 100)
	b.subscribers[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Bus) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subscribers[ch]; !ok {
		return
	}
	delete(b.subscribers, ch)
	close(ch)
}
