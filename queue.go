// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package comform

import "container/heap"

// callRecord is one enqueued, not-yet-sent call.
type callRecord struct {
	id          string
	priority    int
	seq         int64
	commandName string
	returnMode  string
	errorMode   string
	posArgs     []any
	kwArgs      map[string]any
}

// callQueueItem is the heap element; index is maintained by the heap
// interface for container/heap's O(log n) removal, unused here but kept for
// parity with the standard library's PriorityQueue example shape.
type callQueueItem struct {
	call  *callRecord
	index int
}

// callHeap orders items by ascending priority, then by ascending sequence
// number (insertion order) within the same priority.
type callHeap []*callQueueItem

func (h callHeap) Len() int { return len(h) }

func (h callHeap) Less(i, j int) bool {
	if h[i].call.priority != h[j].call.priority {
		return h[i].call.priority < h[j].call.priority
	}
	return h[i].call.seq < h[j].call.seq
}

func (h callHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *callHeap) Push(x any) {
	item := x.(*callQueueItem)
	item.index = len(*h)
	*h = append(*h, item)
}

func (h *callHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[:n-1]
	return item
}

// callQueue is a bounded priority queue of call records. It is not safe for
// concurrent use on its own; Client guards it with its own mutex.
type callQueue struct {
	h   callHeap
	cap int
}

func newCallQueue(capacity int) *callQueue {
	q := &callQueue{cap: capacity}
	heap.Init(&q.h)
	return q
}

func (q *callQueue) len() int { return q.h.Len() }

func (q *callQueue) full() bool { return q.cap > 0 && q.h.Len() >= q.cap }

func (q *callQueue) push(rec *callRecord) {
	heap.Push(&q.h, &callQueueItem{call: rec})
}

func (q *callQueue) pop() (*callRecord, bool) {
	if q.h.Len() == 0 {
		return nil, false
	}
	item := heap.Pop(&q.h).(*callQueueItem)
	return item.call, true
}
