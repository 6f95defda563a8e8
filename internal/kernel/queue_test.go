package kernel

import "testing"

func TestQueuePriorityOrderWithFIFOTies(t *testing.T) {
	q := threadQueue{less: byPriorityDesc}
	a := newThread("a", 10)
	b := newThread("b", 20)
	c := newThread("c", 10)
	d := newThread("d", 30)

	q.insertOrdered(a)
	q.insertOrdered(b)
	q.insertOrdered(c)
	q.insertOrdered(d)

	want := []*Thread{d, b, a, c} // a before c: same priority, inserted first
	for i, w := range want {
		got := q.popFront()
		if got != w {
			t.Fatalf("pop %d = %q, want %q", i, got.name, w.name)
		}
	}
	if !q.empty() {
		t.Fatal("queue not empty after draining")
	}
}

func TestQueueDeadlineOrder(t *testing.T) {
	q := threadQueue{less: byDeadlineAsc}
	late := newThread("late", PriDefault)
	late.wakeTick = 90
	soon := newThread("soon", PriDefault)
	soon.wakeTick = 10

	q.insertOrdered(late)
	q.insertOrdered(soon)

	if got := q.front(); got != soon {
		t.Fatalf("front = %q, want soon", got.name)
	}
}

func TestQueueRemove(t *testing.T) {
	q := threadQueue{less: byPriorityDesc}
	a := newThread("a", 10)
	b := newThread("b", 20)
	q.insertOrdered(a)
	q.insertOrdered(b)

	q.remove(a)
	if q.Len() != 1 || q.front() != b {
		t.Fatalf("unexpected queue state after remove")
	}
	// Removing a thread that is not queued is a no-op.
	q.remove(a)
	if q.Len() != 1 {
		t.Fatal("remove of absent thread changed the queue")
	}
}

func TestQueueResortAfterPriorityChange(t *testing.T) {
	q := threadQueue{less: byPriorityDesc}
	a := newThread("a", 10)
	b := newThread("b", 20)
	q.insertOrdered(a)
	q.insertOrdered(b)

	a.priority = 40
	q.resort()
	if got := q.front(); got != a {
		t.Fatalf("front after resort = %q, want a", got.name)
	}
}
