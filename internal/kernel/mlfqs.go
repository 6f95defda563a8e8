package kernel

import "github.com/me/kosched/internal/fixedpoint"

// MLFQS derives every thread's priority from measured CPU usage,
// niceness, and system load. All statistics are 17.16 fixed point.
//
//	priority   = PriMax - recent_cpu/4 - 2*nice       (truncated, clamped)
//	load_avg   = (59/60)*load_avg + (1/60)*ready      (once per second)
//	recent_cpu = decay*recent_cpu + nice,
//	    decay  = 2*load_avg / (2*load_avg + 1)        (once per second)

// priUpdateInterval is how often, in ticks, the running thread's
// priority is rederived from its accumulated usage.
const priUpdateInterval = 4

// mlfqsTickLocked runs the per-tick MLFQS work from the tick handler:
// charge the running thread one tick of CPU, then either the full
// per-second recomputation or, on every 4th tick in between, a
// priority refresh for the running thread alone.
func (k *Kernel) mlfqsTickLocked(cur *Thread) {
	if cur != k.idle {
		cur.recentCPU = cur.recentCPU.AddInt(1)
	}
	switch {
	case k.ticks%int64(k.cfg.TimerFreq) == 0:
		k.mlfqsUpdateAllLocked()
	case k.ticks%priUpdateInterval == 0 && cur != k.idle:
		k.mlfqsSetPriority(cur)
	}
}

// mlfqsSetPriority rederives t's priority from recent_cpu and nice,
// truncating toward the integer part and clamping to the valid range.
func (k *Kernel) mlfqsSetPriority(t *Thread) {
	kassert(k.cfg.MLFQS, "mlfqs priority update under priority policy")
	kassert(t != k.idle, "mlfqs priority update of the idle thread")

	p := fixedpoint.Fix(PriMax).Sub(t.recentCPU.DivInt(4)).SubInt(2 * t.nice).Int()
	if p < PriMin {
		p = PriMin
	}
	if p > PriMax {
		p = PriMax
	}
	t.priority = p
}

// mlfqsUpdateLoadAvgLocked folds the current runnable count into the
// exponentially decayed load average. The count is the ready queue
// plus the running thread, unless that is the idle thread.
func (k *Kernel) mlfqsUpdateLoadAvgLocked() {
	ready := k.ready.Len()
	if k.running != k.idle {
		ready++
	}
	k.loadAvg = k.loadAvg.MulInt(59).DivInt(60).Add(fixedpoint.Quot(ready, 60))
}

// mlfqsUpdateAllLocked is the once-per-second recomputation: a fresh
// load average, then a decayed recent_cpu and rederived priority for
// every thread except idle. The ready queue is resorted afterwards so
// its ordering reflects the new priorities.
func (k *Kernel) mlfqsUpdateAllLocked() {
	k.mlfqsUpdateLoadAvgLocked()

	twice := k.loadAvg.MulInt(2)
	decay := twice.Div(twice.AddInt(1))
	for _, t := range k.all {
		if t == k.idle {
			continue
		}
		t.recentCPU = decay.Mul(t.recentCPU).AddInt(t.nice)
		k.mlfqsSetPriority(t)
	}
	k.ready.resort()
}

// SetNice sets the running thread's niceness, clamped to the valid
// range, rederives its priority, and yields if the priority dropped.
// Only meaningful under MLFQS.
func (k *Kernel) SetNice(nice int) {
	kassert(k.cfg.MLFQS, "SetNice under priority policy")
	if nice < NiceMin {
		nice = NiceMin
	}
	if nice > NiceMax {
		nice = NiceMax
	}

	old := k.IntrDisable()
	cur := k.Current()
	cur.nice = nice
	was := cur.priority
	k.mlfqsSetPriority(cur)
	if cur.priority < was {
		k.Yield()
	}
	k.IntrSetLevel(old)
}

// CurrentNice returns the running thread's niceness.
func (k *Kernel) CurrentNice() int {
	old := k.IntrDisable()
	n := k.Current().nice
	k.IntrSetLevel(old)
	return n
}

// LoadAvg100 reports 100 times the system load average, rounded to
// the nearest integer.
func (k *Kernel) LoadAvg100() int {
	old := k.IntrDisable()
	v := k.loadAvg.MulInt(100).Round()
	k.IntrSetLevel(old)
	return v
}

// RecentCPU100 reports 100 times the running thread's recent CPU
// usage, rounded to the nearest integer.
func (k *Kernel) RecentCPU100() int {
	old := k.IntrDisable()
	v := k.Current().recentCPU.MulInt(100).Round()
	k.IntrSetLevel(old)
	return v
}
