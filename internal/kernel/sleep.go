package kernel

// SleepUntil blocks the running thread until the timer reaches
// deadline, an absolute tick count. Must be called by the running
// thread with preemption disabled; calling from interrupt context is
// fatal. The thread wakes only by deadline expiry; there is no
// cancellation at this layer.
func (k *Kernel) SleepUntil(deadline int64) {
	kassert(!k.cpu.inIntr, "sleep from interrupt context")
	kassert(k.cpu.level == IntrOff, "sleep with preemption enabled")

	cur := k.Current()
	cur.wakeTick = deadline
	k.sleep.insertOrdered(cur)
	if k.tracer != nil {
		k.tracer.ThreadEvent(k.ticks, cur.id, cur.name, "sleep")
	}
	k.Block()
}

// SleepTicks blocks the running thread for n ticks of virtual time.
// Nonpositive n returns immediately.
func (k *Kernel) SleepTicks(n int64) {
	if n <= 0 {
		return
	}
	old := k.IntrDisable()
	k.SleepUntil(k.ticks + n)
	k.IntrSetLevel(old)
}

// sleepAdvanceLocked wakes every sleeper whose deadline has passed,
// in deadline order, resetting each deadline as it goes. The queue is
// deadline-ordered, so the scan stops at the first thread still in the
// future: cost is proportional to the number of threads that actually
// woke.
func (k *Kernel) sleepAdvanceLocked(now int64) {
	for !k.sleep.empty() {
		t := k.sleep.front()
		if t.wakeTick > now {
			break
		}
		k.sleep.popFront()
		t.wakeTick = 0
		k.unblockLocked(t)
		if t.priority > k.running.priority {
			k.yieldPending = true
		}
		if k.tracer != nil {
			k.tracer.ThreadEvent(now, t.id, t.name, "wake")
		}
	}
}
