package events

import (
	"sync"

	"steadrent/core/types"
)

// Feed fans committed payload events out to live subscribers. Slow
// subscribers miss events rather than stall the producer.
type Feed struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan *types.Event
}

// NewFeed returns an empty feed.
func NewFeed() *Feed {
	return &Feed{subs: make(map[int]chan *types.Event)}
}

// Subscribe registers a subscriber with the given channel buffer. The
// returned cancel func closes the channel.
func (f *Feed) Subscribe(buffer int) (<-chan *types.Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan *types.Event, buffer)
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.subs[id] = ch
	f.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, id)
			f.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Emit implements Emitter.
func (f *Feed) Emit(evt Event) {
	payload, ok := evt.(Payload)
	if !ok || payload.Event() == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subs {
		select {
		case ch <- payload.Event().Clone():
		default:
		}
	}
}

// Subscribers reports the number of live subscribers.
func (f *Feed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}
