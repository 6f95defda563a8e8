// Package kernel implements the thread scheduler core of a single-CPU
// preemptive kernel: thread lifecycle and registry, priority-ordered
// ready queue, deadline-ordered sleep queue, priority donation across
// locks, and a multi-level feedback queue (MLFQS) policy that derives
// priorities from measured CPU usage and system load.
//
// Each kernel thread is backed by one goroutine parked on a per-thread
// channel; at most one thread goroutine is unparked at a time, so the
// package models a single logical CPU. "Interrupts disabled" is a
// mutex held across context switches (see intrGate). The timer source
// is external: some driver calls Tick once per virtual timer tick.
// Only the single running thread's goroutine may call the other
// kernel entry points.
//
// Deterministic drivers (tests) call Tick from the running thread's
// own goroutine and follow it with Preempt so a pending time-slice
// expiry takes effect; paced drivers call Tick from a separate
// goroutine and let running threads pick the preemption up at their
// next kernel call.
package kernel

import (
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/me/kosched/internal/fixedpoint"
)

// Config carries the boot-time scheduler parameters. The policy flag
// is read once at startup; there is no runtime policy switch.
type Config struct {
	TimerFreq  int  // timer ticks per second; drives the per-second MLFQS update
	TimeSlice  int  // ticks in one scheduling quantum
	MaxThreads int  // thread arena capacity (the bootstrap thread is not counted)
	MLFQS      bool // MLFQS policy instead of priority scheduling with donation
}

// DefaultConfig returns the standard parameters.
func DefaultConfig() Config {
	return Config{TimerFreq: 100, TimeSlice: 4, MaxThreads: 64}
}

// Kernel is the process-wide scheduler context. Create one, call
// Start from the goroutine that is to become the main thread, and
// drive Tick from a timer source. There is no teardown; an abandoned
// kernel quiesces because every non-running thread stays parked.
type Kernel struct {
	logger *slog.Logger
	tracer Tracer
	cfg    Config

	cpu  intrGate
	pool *pool

	tidMu  sync.Mutex
	nextID ID

	// all is the registry of live threads: priority descending,
	// arrival order among peers. Ordering here is for consistent
	// iteration only.
	all   []*Thread
	ready threadQueue
	sleep threadQueue

	running *Thread
	idle    *Thread
	boot    *Thread
	prev    *Thread // thread switched away from, consumed by scheduleTail

	ticks       int64
	idleTicks   int64
	kernelTicks int64

	sliceTicks   int
	yieldPending bool

	// preemptPoints counts outermost preemption re-enables by thread
	// goroutines. Atomic so a timer source can read it without the
	// gate; the unpaced driver uses it to keep virtual time from
	// outrunning thread progress.
	preemptPoints atomic.Int64

	loadAvg fixedpoint.Value

	// activate is the address-space activation hook, a no-op for pure
	// kernel threads.
	activate func(*Thread)

	started bool
}

// Option configures optional Kernel dependencies.
type Option func(*Kernel)

// WithTracer sets the observer for thread lifecycle events and
// per-second samples.
func WithTracer(tr Tracer) Option {
	return func(k *Kernel) { k.tracer = tr }
}

// WithActivate sets the address-space activation hook, invoked for the
// incoming thread after every switch.
func WithActivate(fn func(*Thread)) Option {
	return func(k *Kernel) { k.activate = fn }
}

// New creates a scheduler with preemption disabled. Start enables it.
func New(cfg Config, logger *slog.Logger, opts ...Option) *Kernel {
	def := DefaultConfig()
	if cfg.TimerFreq <= 0 {
		cfg.TimerFreq = def.TimerFreq
	}
	if cfg.TimeSlice <= 0 {
		cfg.TimeSlice = def.TimeSlice
	}
	if cfg.MaxThreads <= 0 {
		cfg.MaxThreads = def.MaxThreads
	}
	k := &Kernel{
		logger: logger.With("component", "kernel"),
		cfg:    cfg,
		pool:   newPool(cfg.MaxThreads),
		ready:  threadQueue{less: byPriorityDesc},
		sleep:  threadQueue{less: byDeadlineAsc},
	}
	for _, opt := range opts {
		opt(k)
	}
	k.cpu.mu.Lock()
	k.cpu.level = IntrOff
	return k
}

// Start turns the calling goroutine into the bootstrap "main" thread
// and begins preemptive scheduling: it creates the idle thread,
// enables preemption, and waits for idle to finish initializing.
// The caller returns as the running main thread.
func (k *Kernel) Start() {
	kassert(!k.started, "Start called twice")
	kassert(k.cpu.level == IntrOff, "Start with preemption enabled")

	boot := newThread("main", PriDefault)
	boot.bootstrap = true
	boot.id = k.allocateID()
	boot.status = StatusRunning
	k.registryInsert(boot)
	k.boot = boot
	k.running = boot
	k.started = true

	idleStarted := k.NewSemaphore(0)
	if _, err := k.Create("idle", PriMin, func() { k.idleLoop(idleStarted) }); err != nil {
		kernelPanic("create idle thread: %v", err)
	}
	k.IntrEnable()
	idleStarted.Down()

	k.logger.Debug("scheduler started",
		"policy", k.PolicyName(),
		"timer_freq", k.cfg.TimerFreq,
		"time_slice", k.cfg.TimeSlice)
}

// MLFQS reports whether the MLFQS policy is active.
func (k *Kernel) MLFQS() bool { return k.cfg.MLFQS }

// PolicyName names the active scheduling policy.
func (k *Kernel) PolicyName() string {
	if k.cfg.MLFQS {
		return "mlfqs"
	}
	return "priority"
}

// Current returns the running thread. It is fatal to call before
// Start, or when the running thread's record fails its guard check.
func (k *Kernel) Current() *Thread {
	t := k.running
	if t == nil {
		kernelPanic("thread system not started")
	}
	if !isThread(t) {
		kernelPanic("corrupted thread record (stack overflow?)")
	}
	kassert(t.status == StatusRunning, "current thread %q is %s", t.name, t.status)
	return t
}

// allocateID hands out the next thread identifier.
func (k *Kernel) allocateID() ID {
	k.tidMu.Lock()
	defer k.tidMu.Unlock()
	k.nextID++
	return k.nextID
}

// registryInsert requires preemption disabled.
func (k *Kernel) registryInsert(t *Thread) {
	i := 0
	for i < len(k.all) && k.all[i].priority >= t.priority {
		i++
	}
	k.all = slices.Insert(k.all, i, t)
}

func (k *Kernel) registryRemove(t *Thread) {
	for i, it := range k.all {
		if it == t {
			k.all = slices.Delete(k.all, i, i+1)
			return
		}
	}
	kernelPanic("thread %d not in registry", t.id)
}

// Lookup finds a live thread by id; a miss is a normal result, not an
// error. Must be called with preemption disabled.
func (k *Kernel) Lookup(id ID) (*Thread, bool) {
	kassert(k.preemptionOff(), "Lookup with preemption enabled")
	for _, t := range k.all {
		if t.id == id {
			return t, true
		}
	}
	return nil, false
}

// ForEach invokes fn on every registered thread. Must be called with
// preemption disabled, since fn sees every thread's mutable fields.
func (k *Kernel) ForEach(fn func(*Thread)) {
	kassert(k.preemptionOff(), "ForEach with preemption enabled")
	for _, t := range k.all {
		fn(t)
	}
}

// Ticks returns the number of timer ticks since boot.
func (k *Kernel) Ticks() int64 {
	old := k.IntrDisable()
	n := k.ticks
	k.IntrSetLevel(old)
	return n
}

// ThreadInfo is a point-in-time view of one thread.
type ThreadInfo struct {
	ID           ID     `json:"id"`
	Name         string `json:"name"`
	Status       string `json:"status"`
	Priority     int    `json:"priority"`
	BasePriority int    `json:"base_priority"`
	Nice         int    `json:"nice"`
	RecentCPU100 int    `json:"recent_cpu_100"`
}

// Threads snapshots the registry.
func (k *Kernel) Threads() []ThreadInfo {
	old := k.IntrDisable()
	infos := make([]ThreadInfo, 0, len(k.all))
	for _, t := range k.all {
		infos = append(infos, ThreadInfo{
			ID:           t.id,
			Name:         t.name,
			Status:       t.status.String(),
			Priority:     t.priority,
			BasePriority: t.basePriority,
			Nice:         t.nice,
			RecentCPU100: t.recentCPU.MulInt(100).Round(),
		})
	}
	k.IntrSetLevel(old)
	return infos
}

// LogStats logs tick totals by category.
func (k *Kernel) LogStats() {
	old := k.IntrDisable()
	ticks, idle, kern := k.ticks, k.idleTicks, k.kernelTicks
	k.IntrSetLevel(old)
	k.logger.Info("thread statistics", "ticks", ticks, "idle_ticks", idle, "kernel_ticks", kern)
}
