package pager

import "sort"

// FreeQueue accumulates the offsets a single tree operation has made
// obsolete. It is handed to Pager.FreePages once the operation's new root
// has been committed.
//
// Add is idempotent and keeps the queue sorted ascending: a mutation can
// enqueue the same offset twice (e.g. a subtree rewritten and then its
// parent rewritten again within one recursion), and the on-disk free-list
// is itself sorted by offset, so deduping on insert avoids corrupting it.
type FreeQueue struct {
	offsets []Offset
}

// NewFreeQueue returns an empty queue.
func NewFreeQueue() *FreeQueue {
	return &FreeQueue{}
}

// Add schedules offset for reclamation, if it isn't already queued.
func (q *FreeQueue) Add(offset Offset) {
	i := sort.Search(len(q.offsets), func(i int) bool { return q.offsets[i] >= offset })
	if i < len(q.offsets) && q.offsets[i] == offset {
		return
	}
	q.offsets = append(q.offsets, 0)
	copy(q.offsets[i+1:], q.offsets[i:])
	q.offsets[i] = offset
}

// Drain returns the queued offsets in ascending order and empties the
// queue. Meant to be called exactly once, by Pager.FreePages.
func (q *FreeQueue) Drain() []Offset {
	out := q.offsets
	q.offsets = nil
	return out
}
