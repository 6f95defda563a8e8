package kernel

// Tick delivers one timer interrupt. It is the entry point for the
// external timer source and runs in interrupt context: it must never
// block, and instead of yielding it marks a preemption that the
// running thread takes as soon as it re-enables preemption or hits a
// Preempt point.
//
// Per tick: bump the global and per-category tick counters, run the
// MLFQS updates when that policy is active, wake expired sleepers, and
// enforce the time slice.
func (k *Kernel) Tick() {
	k.cpu.mu.Lock()
	k.cpu.inIntr = true

	kassert(k.running != nil, "tick before Start")

	k.ticks++
	cur := k.running
	if cur == k.idle {
		k.idleTicks++
	} else {
		k.kernelTicks++
	}

	if k.cfg.MLFQS {
		k.mlfqsTickLocked(cur)
	}

	k.sleepAdvanceLocked(k.ticks)

	if k.tracer != nil && k.ticks%int64(k.cfg.TimerFreq) == 0 {
		k.tracer.Sample(k.ticks, k.loadAvg.MulInt(100).Round(), k.ready.Len(), cur.name)
	}

	k.sliceTicks++
	if k.sliceTicks >= k.cfg.TimeSlice {
		k.yieldPending = true
	}

	k.cpu.inIntr = false
	k.cpu.mu.Unlock()
}
