package kernel

import "slices"

// The synchronization primitives live alongside the scheduler core the
// way the original kernel keeps them: they are the only callers of the
// donation hooks, and the semaphore is the blocking primitive every
// other one builds on. All of them may suspend the caller and are
// therefore forbidden in interrupt context.

// donationDepthMax bounds chained donation through nested locks: a
// waiter's priority propagates at most this many holders up.
const donationDepthMax = 8

// Semaphore is a counting semaphore with priority-aware wakeup: Up
// unblocks the highest-priority waiter and yields to it when it
// outranks the running thread.
type Semaphore struct {
	k       *Kernel
	value   int
	waiters threadQueue
}

// NewSemaphore creates a semaphore with the given initial value.
func (k *Kernel) NewSemaphore(value int) *Semaphore {
	kassert(value >= 0, "negative semaphore value %d", value)
	return &Semaphore{k: k, value: value, waiters: threadQueue{less: byPriorityDesc}}
}

// Down decrements the semaphore, blocking until the value is positive.
func (s *Semaphore) Down() {
	k := s.k
	old := k.IntrDisable()
	kassert(!k.cpu.inIntr, "semaphore down from interrupt context")
	for s.value == 0 {
		s.waiters.insertOrdered(k.Current())
		k.Block()
	}
	s.value--
	k.IntrSetLevel(old)
}

// TryDown decrements without blocking and reports whether it could.
func (s *Semaphore) TryDown() bool {
	k := s.k
	old := k.IntrDisable()
	ok := s.value > 0
	if ok {
		s.value--
	}
	k.IntrSetLevel(old)
	return ok
}

// Up increments the semaphore and wakes its highest-priority waiter,
// if any. Waiters are re-sorted first: donation may have shifted their
// priorities while they slept.
func (s *Semaphore) Up() {
	k := s.k
	old := k.IntrDisable()
	s.value++
	if !s.waiters.empty() {
		s.waiters.resort()
		t := s.waiters.popFront()
		k.unblockLocked(t)
		if t.priority > k.running.priority && !k.cpu.inIntr {
			k.Yield()
		}
	}
	k.IntrSetLevel(old)
}

// Lock is a mutual-exclusion lock. It carries the donation state the
// scheduler core reads: the maximum effective priority among the
// threads currently waiting for it.
type Lock struct {
	k        *Kernel
	holder   *Thread
	sema     *Semaphore
	priority int // max priority among waiters; PriMin when none
}

// NewLock creates an unheld lock.
func (k *Kernel) NewLock() *Lock {
	return &Lock{k: k, sema: k.NewSemaphore(1), priority: PriMin}
}

// HeldByCurrent reports whether the running thread holds l.
func (l *Lock) HeldByCurrent() bool {
	return l.holder == l.k.Current()
}

// Acquire takes the lock, blocking while another thread holds it.
// Under the priority policy a blocked acquirer donates its priority
// into the lock and up the holder chain: thread A waiting on a lock
// held by B, who waits on a lock held by C, raises both B and C.
// The walk is bounded by donationDepthMax hops.
func (l *Lock) Acquire() {
	k := l.k
	old := k.IntrDisable()
	kassert(!k.cpu.inIntr, "lock acquire from interrupt context")
	kassert(!l.HeldByCurrent(), "recursive lock acquire")

	cur := k.Current()
	if l.holder != nil && !k.cfg.MLFQS {
		cur.waitingOn = l
		w := l
		for depth := 0; w != nil && w.holder != nil && cur.priority > w.priority; depth++ {
			if depth == donationDepthMax {
				break
			}
			w.priority = cur.priority
			k.Donate(w.holder)
			w = w.holder.waitingOn
		}
	}

	l.sema.Down()

	cur.waitingOn = nil
	l.holder = cur
	// The new holder left the wait queue; rederive the carrier from
	// the waiters still in line.
	l.priority = PriMin
	if !l.sema.waiters.empty() {
		l.sema.waiters.resort()
		l.priority = l.sema.waiters.front().priority
	}
	if !k.cfg.MLFQS {
		k.onLockAcquired(l)
	}
	k.IntrSetLevel(old)
}

// TryAcquire takes the lock without blocking; reports whether it did.
func (l *Lock) TryAcquire() bool {
	k := l.k
	old := k.IntrDisable()
	ok := l.sema.TryDown()
	if ok {
		l.holder = k.Current()
		if !k.cfg.MLFQS {
			k.onLockAcquired(l)
		}
	}
	k.IntrSetLevel(old)
	return ok
}

// Release gives up the lock, reverting any donation it carried into
// the holder, and wakes the highest-priority waiter.
func (l *Lock) Release() {
	k := l.k
	old := k.IntrDisable()
	kassert(l.HeldByCurrent(), "release of lock not held")
	l.holder = nil
	if !k.cfg.MLFQS {
		k.onLockReleased(l)
	}
	l.sema.Up()
	k.IntrSetLevel(old)
}

// Cond is a condition variable: Wait atomically releases the paired
// lock and blocks until signalled. Each waiter blocks on its own
// semaphore; Signal wakes the highest-priority waiter first.
type Cond struct {
	k       *Kernel
	waiters []*condWaiter
}

type condWaiter struct {
	sema     *Semaphore
	priority int
}

// NewCond creates a condition variable.
func (k *Kernel) NewCond() *Cond {
	return &Cond{k: k}
}

// Wait releases l, blocks until signalled, then reacquires l.
func (c *Cond) Wait(l *Lock) {
	k := c.k
	old := k.IntrDisable()
	kassert(!k.cpu.inIntr, "cond wait from interrupt context")
	kassert(l.HeldByCurrent(), "cond wait without holding the lock")

	w := &condWaiter{sema: k.NewSemaphore(0), priority: k.Current().priority}
	c.waiters = append(c.waiters, w)
	l.Release()
	w.sema.Down()
	l.Acquire()
	k.IntrSetLevel(old)
}

// Signal wakes the highest-priority waiter, if any. The caller must
// hold l.
func (c *Cond) Signal(l *Lock) {
	k := c.k
	old := k.IntrDisable()
	kassert(l.HeldByCurrent(), "cond signal without holding the lock")
	if len(c.waiters) > 0 {
		best := 0
		for i, w := range c.waiters {
			if w.priority > c.waiters[best].priority {
				best = i
			}
		}
		w := c.waiters[best]
		c.waiters = slices.Delete(c.waiters, best, best+1)
		w.sema.Up()
	}
	k.IntrSetLevel(old)
}

// Broadcast wakes every waiter, highest priority first.
func (c *Cond) Broadcast(l *Lock) {
	k := c.k
	old := k.IntrDisable()
	for len(c.waiters) > 0 {
		c.Signal(l)
	}
	k.IntrSetLevel(old)
}
