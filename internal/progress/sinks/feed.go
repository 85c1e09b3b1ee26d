package sinks

import (
	"context"
	"sync"

	"github.com/JakeFAU/clipdl/internal/progress"
)

// DefaultFeedCapacity bounds the feed when no capacity is configured.
const DefaultFeedCapacity = 256

// Feed is the display surface: a ring buffer of recent events plus the last
// reported queue index. Events that arrive before MarkReady are discarded,
// matching a window that has not finished loading.
type Feed struct {
	mu       sync.RWMutex
	ready    bool
	buf      []progress.Event
	next     int
	full     bool
	index    int
	dropped  int64
	capacity int
}

// NewFeed allocates a feed holding up to capacity events.
func NewFeed(capacity int) *Feed {
	if capacity <= 0 {
		capacity = DefaultFeedCapacity
	}
	return &Feed{
		buf:      make([]progress.Event, capacity),
		index:    progress.IdleIndex,
		capacity: capacity,
	}
}

// MarkReady starts accepting events.
func (f *Feed) MarkReady() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ready = true
}

// Ready reports whether the feed accepts events.
func (f *Feed) Ready() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.ready
}

// Consume appends batch to the ring, overwriting the oldest entries.
func (f *Feed) Consume(_ context.Context, batch []progress.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.ready {
		f.dropped += int64(len(batch))
		return nil
	}
	for _, evt := range batch {
		if evt.Stage == progress.StageQueueIndex {
			f.index = evt.Index
		}
		f.buf[f.next] = evt
		f.next = (f.next + 1) % f.capacity
		if f.next == 0 {
			f.full = true
		}
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (f *Feed) Close(context.Context) error {
	return nil
}

// Index returns the last queue index received.
func (f *Feed) Index() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.index
}

// Dropped returns how many events arrived before the feed was ready.
func (f *Feed) Dropped() int64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

// Since returns buffered events with Seq greater than seq, oldest first,
// capped at limit entries (0 means no cap).
func (f *Feed) Since(seq uint64, limit int) []progress.Event {
	f.mu.RLock()
	defer f.mu.RUnlock()

	ordered := f.ordered()
	out := make([]progress.Event, 0, len(ordered))
	for _, evt := range ordered {
		if evt.Seq > seq {
			out = append(out, evt)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

func (f *Feed) ordered() []progress.Event {
	if !f.full {
		return f.buf[:f.next]
	}
	out := make([]progress.Event, 0, f.capacity)
	out = append(out, f.buf[f.next:]...)
	return append(out, f.buf[:f.next]...)
}
