package kernel

import "runtime"

// Create allocates and starts a new thread named name that runs fn at
// the given priority. The thread is created blocked, assigned a fresh
// identifier, registered, and immediately unblocked into the ready
// queue. If it outranks the creator, the creator yields before
// returning, so higher-priority arrivals preempt immediately.
//
// Returns ErrNoPage when the thread arena is exhausted.
func (k *Kernel) Create(name string, priority int, fn Func) (ID, error) {
	kassert(fn != nil, "nil thread entry function")
	kassert(priority >= PriMin && priority <= PriMax, "priority %d out of range", priority)

	pg := k.pool.allocZeroed()
	if pg == nil {
		return 0, ErrNoPage
	}

	t := newThread(name, priority)
	t.page = pg
	t.entry = fn
	t.id = k.allocateID()

	old := k.IntrDisable()
	k.registryInsert(t)
	if k.tracer != nil {
		k.tracer.ThreadEvent(k.ticks, t.id, t.name, "created")
	}
	k.IntrSetLevel(old)

	go k.threadEntry(t)

	k.Unblock(t)

	old = k.IntrDisable()
	preempt := priority > k.running.priority
	k.IntrSetLevel(old)
	if preempt {
		k.Yield()
	}
	return t.id, nil
}

// threadEntry is the trampoline every thread goroutine starts in: it
// parks until first scheduled, finishes the switch that resumed it,
// re-enables preemption, runs the entry function, and exits if the
// entry function returns.
func (k *Kernel) threadEntry(t *Thread) {
	<-t.park
	k.scheduleTail(k.takePrev())
	k.IntrEnable()
	t.entry()
	k.Exit()
}

// Exit terminates the running thread and never returns. The thread is
// removed from the registry and marked dying; the dispatcher reclaims
// its storage only after the next switch away, so the goroutine is
// never torn down under its own feet.
func (k *Kernel) Exit() {
	cur := k.Current()
	k.IntrDisable()
	kassert(!k.cpu.inIntr, "exit from interrupt context")
	k.registryRemove(cur)
	cur.status = StatusDying
	if k.tracer != nil {
		k.tracer.ThreadEvent(k.ticks, cur.id, cur.name, "exited")
	}
	k.schedule()
	// not reached
}

// Block marks the running thread blocked and dispatches another. The
// caller must have disabled preemption and arranged the wakeup that
// will eventually Unblock the thread.
func (k *Kernel) Block() {
	kassert(k.cpu.level == IntrOff, "block with preemption enabled")
	kassert(!k.cpu.inIntr, "block from interrupt context")
	k.Current().status = StatusBlocked
	k.schedule()
}

// Unblock transitions a blocked thread to ready. It does not preempt
// the running thread: a caller that disabled preemption may atomically
// unblock and keep updating its own state.
func (k *Kernel) Unblock(t *Thread) {
	old := k.IntrDisable()
	k.unblockLocked(t)
	k.IntrSetLevel(old)
}

func (k *Kernel) unblockLocked(t *Thread) {
	kassert(isThread(t), "unblock of invalid thread")
	kassert(t.status == StatusBlocked, "unblock of %s thread %q", t.status, t.name)
	k.ready.insertOrdered(t)
	t.status = StatusReady
}

// Yield relinquishes the CPU voluntarily. The running thread rejoins
// the ready queue at its current priority and may be rescheduled
// immediately.
func (k *Kernel) Yield() {
	old := k.IntrDisable()
	kassert(!k.cpu.inIntr, "yield from interrupt context")
	cur := k.Current()
	if cur != k.idle {
		k.ready.insertOrdered(cur)
	}
	cur.status = StatusReady
	k.schedule()
	k.IntrSetLevel(old)
}

// nextThreadToRun pops the front of the ready queue, or returns the
// idle thread when nothing is runnable. The idle thread itself is
// never queued.
func (k *Kernel) nextThreadToRun() *Thread {
	if k.ready.empty() {
		kassert(k.idle != nil, "nothing runnable before the idle thread exists")
		return k.idle
	}
	return k.ready.popFront()
}

// schedule switches to the next thread to run. At entry preemption is
// off and the running thread's status has already been changed away
// from running. Control returns (on the calling thread's own stack)
// whenever this thread is next scheduled, except for dying threads,
// whose goroutine is unwound once a successor owns the CPU.
func (k *Kernel) schedule() {
	cur := k.running
	next := k.nextThreadToRun()

	kassert(k.preemptionOff(), "schedule with preemption enabled")
	kassert(!k.cpu.inIntr, "schedule from interrupt context")
	kassert(cur.status != StatusRunning, "schedule of still-running thread %q", cur.name)
	kassert(isThread(next), "next thread record is corrupted")

	if cur == next {
		k.scheduleTail(nil)
		return
	}

	k.prev = cur
	k.running = next
	next.park <- struct{}{}

	if cur.status == StatusDying {
		// This goroutine's stack is the dying thread's execution
		// context; unwind it now that a successor owns the CPU. The
		// arena page is freed by the successor in scheduleTail.
		runtime.Goexit()
	}

	<-cur.park
	k.scheduleTail(k.takePrev())
}

func (k *Kernel) takePrev() *Thread {
	prev := k.prev
	k.prev = nil
	return prev
}

// scheduleTail finishes a switch on the resumed thread's side: mark it
// running, start a fresh time slice, activate its address space, and
// reclaim the previous thread's storage if it was dying. The bootstrap
// thread's storage is never reclaimed; it did not come from the arena.
func (k *Kernel) scheduleTail(prev *Thread) {
	cur := k.running
	kassert(k.preemptionOff(), "schedule tail with preemption enabled")

	cur.status = StatusRunning
	k.sliceTicks = 0
	if k.activate != nil {
		k.activate(cur)
	}

	if prev != nil && prev.status == StatusDying && !prev.bootstrap {
		kassert(prev != cur, "dying thread rescheduled")
		k.pool.freePage(prev.page)
		prev.page = nil
		prev.magic = 0
		if k.tracer != nil {
			k.tracer.ThreadEvent(k.ticks, prev.id, prev.name, "reclaimed")
		}
	}
}

// idleLoop is the idle thread's body. It records itself, releases the
// startup handshake, and then alternates between blocking (which
// dispatches any ready thread) and briefly re-enabling preemption so
// the timer can fire. nextThreadToRun returns the idle thread whenever
// the ready queue is empty.
func (k *Kernel) idleLoop(started *Semaphore) {
	old := k.IntrDisable()
	k.idle = k.Current()
	k.IntrSetLevel(old)
	started.Up()

	for {
		k.IntrDisable()
		k.Block()
		// Window for the timer interrupt before blocking again.
		k.IntrEnable()
		runtime.Gosched()
	}
}
