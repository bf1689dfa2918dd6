package jobqueue

import (
	"container/heap"
	"time"
)

// jobEntry is the Job Store record of a job owned by a queue.
type jobEntry struct {
	job   *Job
	index int         // position in the pending heap, -1 when absent
	timer *time.Timer // delayed promotion or retry backoff
}

func (e *jobEntry) stopTimer() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

// pendingHeap orders PENDING jobs by priority rank, then creation order.
type pendingHeap []*jobEntry

func (h pendingHeap) Len() int { return len(h) }

func (h pendingHeap) Less(i, j int) bool {
	ri, rj := h[i].job.Priority.Rank(), h[j].job.Priority.Rank()
	if ri != rj {
		return ri < rj
	}
	return h[i].job.seq < h[j].job.seq
}

func (h pendingHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *pendingHeap) Push(x any) {
	e := x.(*jobEntry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *pendingHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

func (h *pendingHeap) push(e *jobEntry) {
	heap.Push(h, e)
}

func (h *pendingHeap) pop() *jobEntry {
	return heap.Pop(h).(*jobEntry)
}

func (h *pendingHeap) remove(e *jobEntry) {
	if e.index >= 0 && e.index < h.Len() && (*h)[e.index] == e {
		heap.Remove(h, e.index)
	}
}
