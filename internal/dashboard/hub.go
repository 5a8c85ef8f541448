package dashboard

import (
	"sync"

	"rtsched/internal/sched"
)

// Hub fans scheduler notifications out to live subscribers. A slow
// subscriber loses events instead of stalling the simulation.
type Hub struct {
	mu     sync.Mutex
	subs   map[chan sched.StatusEvent]struct{}
	buffer int
}

// NewHub creates a hub whose subscriber channels hold buffer events.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{subs: make(map[chan sched.StatusEvent]struct{}), buffer: buffer}
}

// Subscribe registers a subscriber. Call cancel to unsubscribe; the channel
// is closed afterwards.
func (h *Hub) Subscribe() (events <-chan sched.StatusEvent, cancel func()) {
	ch := make(chan sched.StatusEvent, h.buffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Notify implements sched.Observer.
func (h *Hub) Notify(ev sched.StatusEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribers returns the number of live subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
