package heartrate

import (
	"log"
	"sync"
)

// Feed fans values out to any number of subscribers without replay: a late
// subscriber sees only what is published after it joins. Delivery is
// non-blocking; a slow subscriber drops messages rather than stalling the
// engine. Publishing to a closed feed reopens it and delivers to whoever is
// subscribed next, so a transient teardown never silences the live display
// for the rest of the session.
type Feed[T any] struct {
	mu     sync.Mutex
	subs   map[int]chan T
	nextID int
	closed bool
}

func NewFeed[T any]() *Feed[T] {
	return &Feed[T]{subs: make(map[int]chan T)}
}

// Subscribe returns a receive channel and a cancel function. The channel is
// closed by cancel or by Feed.Close.
func (f *Feed[T]) Subscribe() (<-chan T, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		f.reopenLocked()
	}

	id := f.nextID
	f.nextID++
	ch := make(chan T, 16)
	f.subs[id] = ch

	cancel := func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if sub, ok := f.subs[id]; ok {
			delete(f.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish delivers v to every current subscriber. A closed feed is
// recreated first and the emission retried against the fresh state.
func (f *Feed[T]) Publish(v T) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		log.Printf("heartrate: publishing to closed feed, recreating")
		f.reopenLocked()
	}

	for _, ch := range f.subs {
		select {
		case ch <- v:
		default:
		}
	}
}

// Close tears the feed down, closing every subscriber channel. A later
// Publish or Subscribe reopens it.
func (f *Feed[T]) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	for id, ch := range f.subs {
		delete(f.subs, id)
		close(ch)
	}
}

// Closed reports whether the feed is currently torn down.
func (f *Feed[T]) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *Feed[T]) reopenLocked() {
	f.closed = false
	f.subs = make(map[int]chan T)
}
