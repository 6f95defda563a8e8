package kernel

import "slices"

// Priority donation bounds priority inversion: while a high-priority
// thread waits on a lock, the holder runs at the waiter's priority.
// The hooks here are driven by the lock module. This core supplies
// only the single-thread recomputation primitive; the lock module
// walks holder chains, calling Donate once per hop.

// onLockAcquired records that the running thread now holds l, keeping
// heldLocks ordered by donated priority, and takes any donation the
// lock already carries. Raising the running thread's priority is
// followed by an unconditional yield: a higher-priority waiter
// elsewhere must get its chance, and yielding is always safe.
func (k *Kernel) onLockAcquired(l *Lock) {
	old := k.IntrDisable()
	cur := k.Current()

	i := 0
	for i < len(cur.heldLocks) && cur.heldLocks[i].priority >= l.priority {
		i++
	}
	cur.heldLocks = slices.Insert(cur.heldLocks, i, l)

	if l.priority > cur.priority {
		cur.priority = l.priority
		k.Yield()
	}
	k.IntrSetLevel(old)
}

// onLockReleased drops l from the running thread's held set and
// re-derives its effective priority, reverting any donation l carried.
func (k *Kernel) onLockReleased(l *Lock) {
	old := k.IntrDisable()
	cur := k.Current()
	for i, h := range cur.heldLocks {
		if h == l {
			cur.heldLocks = slices.Delete(cur.heldLocks, i, i+1)
			break
		}
	}
	k.recompute(cur)
	k.IntrSetLevel(old)
}

// recompute derives t's effective priority: the base priority, raised
// to the highest priority donated through a held lock. Held locks are
// re-sorted first since a lock's donated priority may have changed
// since insertion.
func (k *Kernel) recompute(t *Thread) {
	old := k.IntrDisable()
	t.priority = t.basePriority
	if len(t.heldLocks) > 0 {
		slices.SortStableFunc(t.heldLocks, func(a, b *Lock) int {
			return b.priority - a.priority
		})
		if p := t.heldLocks[0].priority; p > t.priority {
			t.priority = p
		}
	}
	k.IntrSetLevel(old)
}

// Donate re-derives t's effective priority and, if t sits in the ready
// queue and the priority changed, repositions it so the queue ordering
// invariant holds.
func (k *Kernel) Donate(t *Thread) {
	old := k.IntrDisable()
	was := t.priority
	k.recompute(t)
	if t.status == StatusReady && t.priority != was {
		k.ready.remove(t)
		k.ready.insertOrdered(t)
	}
	k.IntrSetLevel(old)
}

// SetPriority sets the running thread's base priority. The effective
// priority never drops below an active donation: with locks held, a
// lower base takes effect only once the donating locks are released.
// With no locks held the new value applies immediately, followed by a
// yield so any now-higher thread can run. No-op under MLFQS, where
// priority is derived, not set.
func (k *Kernel) SetPriority(priority int) {
	if k.cfg.MLFQS {
		return
	}
	kassert(priority >= PriMin && priority <= PriMax, "priority %d out of range", priority)

	old := k.IntrDisable()
	cur := k.Current()
	cur.basePriority = priority
	if len(cur.heldLocks) == 0 || priority > cur.priority {
		cur.priority = priority
		k.Yield()
	}
	k.IntrSetLevel(old)
}

// Priority returns the running thread's effective priority.
func (k *Kernel) Priority() int {
	old := k.IntrDisable()
	p := k.Current().priority
	k.IntrSetLevel(old)
	return p
}
