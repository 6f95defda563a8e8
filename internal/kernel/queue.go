package kernel

import "slices"

// threadQueue is an ordered collection of threads. Insertion keeps the
// queue sorted by the strict less function; a new element goes after
// all elements it is not strictly less than, so equal elements keep
// arrival order (FIFO among peers).
//
// The ready queue orders by effective priority, descending; the sleep
// queue by wake deadline, ascending. Both are mutated only with
// preemption disabled.
type threadQueue struct {
	items []*Thread
	less  func(a, b *Thread) bool
}

func byPriorityDesc(a, b *Thread) bool { return a.priority > b.priority }
func byDeadlineAsc(a, b *Thread) bool  { return a.wakeTick < b.wakeTick }

func (q *threadQueue) insertOrdered(t *Thread) {
	i := 0
	for i < len(q.items) && !q.less(t, q.items[i]) {
		i++
	}
	q.items = slices.Insert(q.items, i, t)
}

func (q *threadQueue) popFront() *Thread {
	t := q.items[0]
	q.items = q.items[1:]
	return t
}

func (q *threadQueue) front() *Thread { return q.items[0] }

func (q *threadQueue) remove(t *Thread) bool {
	for i, it := range q.items {
		if it == t {
			q.items = slices.Delete(q.items, i, i+1)
			return true
		}
	}
	return false
}

// resort restores ordering after element keys changed in place
// (donation or an MLFQS sweep touching queued threads). The sort is
// stable, so peers keep their arrival order.
func (q *threadQueue) resort() {
	slices.SortStableFunc(q.items, func(a, b *Thread) int {
		switch {
		case q.less(a, b):
			return -1
		case q.less(b, a):
			return 1
		default:
			return 0
		}
	})
}

func (q *threadQueue) Len() int { return len(q.items) }

func (q *threadQueue) empty() bool { return len(q.items) == 0 }
