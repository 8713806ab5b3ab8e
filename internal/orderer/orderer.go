// Package orderer implements the Event Orderer (§4.9): it merges each
// partition's keyed matcher output into the globally key-sorted order
// the wire contract requires, without materializing the full merged
// sequence — a k-way merge over per-partition streams bounded to one
// record of lookahead per partition, the same shape as merging already-
// sorted spill-backend cursors.
package orderer

import (
	"container/heap"
	"sort"

	"csvdiff/internal/diffcore"
)

// KeyedEvent pairs an event with the key tuple it sorts by. Positional
// and multiset matchers never need this package (§4.9: "no reordering
// required"); only the keyed matcher's per-partition output does.
type KeyedEvent struct {
	Key   diffcore.KeyTuple
	Event diffcore.Event
}

// Stream is a pull-based, single-pass source of one partition's events,
// already sorted ascending by key — the shape Partition's own per-
// partition output already satisfies except for the B-arrival-order
// Added/Changed events interleaved with the key-sorted Removed tail, so
// callers collect a partition's events into a Buffer and sort once
// before merging across partitions.
type Stream interface {
	// Next returns the next event in ascending key order, or ok=false
	// once the stream is exhausted.
	Next() (KeyedEvent, bool)
}

// Buffer accumulates one partition's keyed events as they're emitted by
// the matcher, then exposes them as a Stream sorted by key. Partition
// buffers are small enough to fit one partition's worth of events; the
// Spill Backend, not this package, is what bounds memory for data that
// doesn't fit.
type Buffer struct {
	events []KeyedEvent
}

// NewBuffer returns an empty per-partition buffer.
func NewBuffer() *Buffer { return &Buffer{} }

// Add appends one event to the buffer in whatever order the matcher
// produced it; Sorted() imposes key order before merging.
func (b *Buffer) Add(key diffcore.KeyTuple, ev diffcore.Event) {
	b.events = append(b.events, KeyedEvent{Key: key, Event: ev})
}

// Sorted returns a Stream over the buffer's events in ascending key
// order. Keys are unique by the time they reach here (duplicate_key is
// fatal earlier), so there is no tie-break to define.
func (b *Buffer) Sorted() Stream {
	sorted := append([]KeyedEvent(nil), b.events...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Key.Less(sorted[j].Key) })
	return &sliceStream{events: sorted}
}

type sliceStream struct {
	events []KeyedEvent
	pos    int
}

func (s *sliceStream) Next() (KeyedEvent, bool) {
	if s.pos >= len(s.events) {
		return KeyedEvent{}, false
	}
	ev := s.events[s.pos]
	s.pos++
	return ev, true
}

// Merge performs a k-way merge of streams (one per partition, each
// already in ascending key order) and calls emit for every event in
// globally ascending key order. Only one event per stream is held in
// memory at a time via a min-heap keyed on the lookahead record —
// the bounded-lookahead merge §4.9 requires.
func Merge(streams []Stream, emit func(diffcore.Event)) {
	h := &mergeHeap{}
	heap.Init(h)
	for i, s := range streams {
		if ev, ok := s.Next(); ok {
			heap.Push(h, heapItem{ev: ev, streamIdx: i})
		}
	}
	for h.Len() > 0 {
		top := heap.Pop(h).(heapItem)
		emit(top.ev.Event)
		if next, ok := streams[top.streamIdx].Next(); ok {
			heap.Push(h, heapItem{ev: next, streamIdx: top.streamIdx})
		}
	}
}

type heapItem struct {
	ev        KeyedEvent
	streamIdx int
}

type mergeHeap []heapItem

func (h mergeHeap) Len() int            { return len(h) }
func (h mergeHeap) Less(i, j int) bool  { return h[i].ev.Key.Less(h[j].ev.Key) }
func (h mergeHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *mergeHeap) Push(x interface{}) { *h = append(*h, x.(heapItem)) }
func (h *mergeHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
