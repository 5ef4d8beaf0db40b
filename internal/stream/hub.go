package stream

import (
	"sync"
	"sync/atomic"
)

// TypeAll subscribes a handler to every event type.
const TypeAll = "all"

// Handler receives a decoded frame. Handlers run on the dispatching
// goroutine; they must not block.
type Handler func(Frame)

type subscription struct {
	id      uint64
	handler Handler
}

// Hub fans decoded frames out to subscribers keyed by event type.
// Dispatch order follows subscription order within a type; handlers
// subscribed to TypeAll run after type-specific handlers.
type Hub struct {
	mu        sync.RWMutex
	nextID    uint64
	subs      map[string][]subscription
	connected atomic.Bool
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string][]subscription)}
}

// Subscribe registers a handler for frames of the given type (or TypeAll).
// The returned function removes the subscription; calling it more than once
// is safe.
func (h *Hub) Subscribe(frameType string, handler Handler) func() {
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.subs[frameType] = append(h.subs[frameType], subscription{id: id, handler: handler})
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			subs := h.subs[frameType]
			for i, s := range subs {
				if s.id == id {
					h.subs[frameType] = append(subs[:i:i], subs[i+1:]...)
					break
				}
			}
		})
	}
}

// Publish delivers a frame to all handlers for its type, then to TypeAll
// handlers.
func (h *Hub) Publish(f Frame) {
	h.mu.RLock()
	typed := h.subs[f.Type]
	all := h.subs[TypeAll]
	handlers := make([]Handler, 0, len(typed)+len(all))
	for _, s := range typed {
		handlers = append(handlers, s.handler)
	}
	for _, s := range all {
		handlers = append(handlers, s.handler)
	}
	h.mu.RUnlock()

	for _, fn := range handlers {
		fn(f)
	}
}

// SetConnected records the connectivity flag maintained by the engine.
func (h *Hub) SetConnected(up bool) {
	h.connected.Store(up)
}

// Connected reports whether the event channel is currently up.
func (h *Hub) Connected() bool {
	return h.connected.Load()
}
