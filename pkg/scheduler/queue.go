package scheduler

import (
	"container/heap"
	"sort"
)

// requestQueue is a max-heap on (priority, -sequence): higher priority
// first, FIFO within a priority.
type requestQueue []*entry

var _ heap.Interface = (*requestQueue)(nil)

func (q requestQueue) Len() int { return len(q) }

func (q requestQueue) Less(i, j int) bool {
	if q[i].req.Priority != q[j].req.Priority {
		return q[i].req.Priority > q[j].req.Priority
	}
	return q[i].seq < q[j].seq
}

func (q requestQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *requestQueue) Push(x any) {
	e := x.(*entry)
	e.index = len(*q)
	*q = append(*q, e)
}

func (q *requestQueue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*q = old[:n-1]
	return e
}

// peek returns the entry that Pop would return next.
func (q requestQueue) peek() *entry {
	if len(q) == 0 {
		return nil
	}
	return q[0]
}

// truncate keeps the keep most recently inserted entries and returns the
// dropped ones, oldest first.
func (q *requestQueue) truncate(keep int) []*entry {
	if keep < 0 {
		keep = 0
	}
	if len(*q) <= keep {
		return nil
	}
	all := append([]*entry(nil), (*q)...)
	sort.Slice(all, func(i, j int) bool { return all[i].seq < all[j].seq })

	cut := len(all) - keep
	dropped := all[:cut]
	kept := all[cut:]

	for _, e := range dropped {
		e.index = -1
	}
	*q = (*q)[:0]
	for _, e := range kept {
		e.index = len(*q)
		*q = append(*q, e)
	}
	heap.Init(q)
	return dropped
}
