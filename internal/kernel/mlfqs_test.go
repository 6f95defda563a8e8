package kernel

import "testing"

func mlfqsConfig() Config {
	cfg := DefaultConfig()
	cfg.MLFQS = true
	return cfg
}

func TestMLFQSIdleThreadReachesMaxPriority(t *testing.T) {
	k := testKernel(t, mlfqsConfig())

	// A thread that never runs accumulates no CPU; at nice 0 the
	// per-second recomputation pins it to the ceiling.
	id, err := k.Create("calm", PriMin, func() {})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	for i := 0; i < k.cfg.TimerFreq; i++ {
		k.Tick()
	}

	old := k.IntrDisable()
	calm, ok := k.Lookup(id)
	if !ok {
		t.Fatal("thread missing from registry")
	}
	if got := calm.Priority(); got != PriMax {
		t.Errorf("idle-handed thread priority = %d, want %d", got, PriMax)
	}
	k.IntrSetLevel(old)
}

func TestMLFQSChargesRunningThread(t *testing.T) {
	k := testKernel(t, mlfqsConfig())

	for i := 0; i < 3; i++ {
		k.Tick()
	}
	if got := k.RecentCPU100(); got != 300 {
		t.Errorf("recent_cpu after 3 ticks = %d, want 300", got)
	}

	// The 4th tick also rederives our priority: 63 - 4/4 - 0 = 62.
	k.Tick()
	if got := k.RecentCPU100(); got != 400 {
		t.Errorf("recent_cpu after 4 ticks = %d, want 400", got)
	}
	if got := k.Priority(); got != 62 {
		t.Errorf("priority after 4 ticks = %d, want 62", got)
	}
}

func TestMLFQSPriorityMonotoneInNice(t *testing.T) {
	k := testKernel(t, mlfqsConfig())

	th := newThread("probe", PriDefault)
	prev := PriMax + 1
	for nice := NiceMin; nice <= NiceMax; nice += 5 {
		th.nice = nice
		k.mlfqsSetPriority(th)
		if th.priority > prev {
			t.Fatalf("priority rose from %d to %d as nice went to %d", prev, th.priority, nice)
		}
		if th.priority < PriMin || th.priority > PriMax {
			t.Fatalf("priority %d out of range at nice %d", th.priority, nice)
		}
		prev = th.priority
	}
}

func TestMLFQSLoadAvgConvergesToReadyCount(t *testing.T) {
	k := testKernel(t, mlfqsConfig())

	// One runnable thread (us). The first fold contributes 1/60.
	old := k.IntrDisable()
	k.mlfqsUpdateLoadAvgLocked()
	k.IntrSetLevel(old)
	if got := k.LoadAvg100(); got != 2 {
		t.Fatalf("load_avg after one step = %d, want 2", got)
	}

	old = k.IntrDisable()
	for i := 0; i < 500; i++ {
		k.mlfqsUpdateLoadAvgLocked()
	}
	k.IntrSetLevel(old)
	if got := k.LoadAvg100(); got < 95 || got > 100 {
		t.Fatalf("load_avg after convergence = %d, want ~100", got)
	}
}

func TestMLFQSSetNiceLowersPriorityAndYields(t *testing.T) {
	k := testKernel(t, mlfqsConfig())

	done := false
	if _, err := k.Create("peer", 45, func() {
		k.SetNice(20)
		// 63 - 0 - 40 = 23: below the creator, so this runs last.
		done = true
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	// peer preempted us at 45, dropped itself to 23 and yielded back.
	if done {
		t.Fatal("peer kept running after dropping its priority")
	}

	// Dropping ourselves the same way hands the CPU back to peer.
	k.SetNice(20)
	if !done {
		t.Fatal("peer did not finish after our own drop")
	}
	if got := k.CurrentNice(); got != 20 {
		t.Errorf("nice = %d, want 20", got)
	}
}

func TestMLFQSSetNiceClampsRange(t *testing.T) {
	k := testKernel(t, mlfqsConfig())

	k.SetNice(100)
	if got := k.CurrentNice(); got != NiceMax {
		t.Errorf("nice = %d, want %d", got, NiceMax)
	}
	k.SetNice(-100)
	if got := k.CurrentNice(); got != NiceMin {
		t.Errorf("nice = %d, want %d", got, NiceMin)
	}
}

func TestMLFQSSetPriorityIsNoOp(t *testing.T) {
	k := testKernel(t, mlfqsConfig())

	before := k.Priority()
	k.SetPriority(PriMin)
	if got := k.Priority(); got != before {
		t.Errorf("priority changed from %d to %d under mlfqs", before, got)
	}
}
