package kernel

import (
	"fmt"
	"sync"
)

// Level is the preemption (interrupt) state of the single CPU.
type Level bool

const (
	// IntrOn: the timer may fire between any two operations.
	IntrOn Level = true
	// IntrOff: preemption disabled; the sole mutual exclusion for all
	// scheduler state.
	IntrOff Level = false
)

func (l Level) String() string {
	if l == IntrOn {
		return "on"
	}
	return "off"
}

// intrGate models the CPU interrupt flag. The mutex is held exactly
// while preemption is disabled: the running thread holds it inside
// critical sections, and Tick holds it for the duration of the
// handler. The mutex deliberately crosses goroutines during a context
// switch: the thread switching away parks while still holding it, and
// the thread switched to releases it when it re-enables preemption.
//
// level is touched only by the single unparked thread goroutine, so it
// needs no synchronization of its own; the park-channel handoff
// between threads orders all accesses. The tick handler never reads
// it; handler code runs with the mutex held and calls the *Locked
// internals directly instead of re-entering IntrDisable.
type intrGate struct {
	mu     sync.Mutex
	level  Level
	inIntr bool // true while the tick handler runs; guarded by mu
}

// IntrDisable disables preemption and returns the previous level.
// Nested-safe: disabling inside a disabled region is a no-op that
// still reports the prior level for IntrSetLevel to restore. Must be
// called from thread context, never from the tick handler.
func (k *Kernel) IntrDisable() Level {
	if k.cpu.level == IntrOff {
		return IntrOff
	}
	k.cpu.mu.Lock()
	k.cpu.level = IntrOff
	return IntrOn
}

// IntrSetLevel restores a level previously returned by IntrDisable.
// Restoring the outermost region re-enables preemption and takes any
// preemption the tick handler requested while the region was closed.
func (k *Kernel) IntrSetLevel(old Level) {
	if old != IntrOn || k.cpu.level == IntrOn {
		return
	}
	pending := k.yieldPending && k.running != nil
	if pending {
		k.yieldPending = false
	}
	k.cpu.level = IntrOn
	k.preemptPoints.Add(1)
	k.cpu.mu.Unlock()
	if pending {
		k.Yield()
	}
}

// PreemptPoints reports how many times a thread has re-enabled
// preemption since boot. A timer source may compare readings to tell
// whether any thread ran between two ticks.
func (k *Kernel) PreemptPoints() int64 {
	return k.preemptPoints.Load()
}

// IntrEnable enables preemption.
func (k *Kernel) IntrEnable() {
	k.IntrSetLevel(IntrOn)
}

// IntrLevel returns the current preemption level.
func (k *Kernel) IntrLevel() Level {
	return k.cpu.level
}

// Preempt is an explicit preemption point. A time-slice expiry
// observed by the tick handler takes effect at the running thread's
// next Preempt call or its next re-enable of preemption, the
// simulation analogue of yielding as the interrupt returns. Compute
// loops that make no kernel calls should call it periodically.
func (k *Kernel) Preempt() {
	old := k.IntrDisable()
	k.IntrSetLevel(old)
}

// preemptionOff reports whether scheduler state may be touched:
// either the running thread disabled preemption, or the caller is the
// tick handler itself. Meaningful only once the gate is held.
func (k *Kernel) preemptionOff() bool {
	return k.cpu.level == IntrOff || k.cpu.inIntr
}

// kernelPanic halts on a broken scheduler invariant. These are
// impossible-state checks, not recoverable errors; continuing past one
// would mean running on corrupted state.
func kernelPanic(format string, args ...any) {
	panic(fmt.Sprintf("kernel: "+format, args...))
}

func kassert(cond bool, format string, args ...any) {
	if !cond {
		kernelPanic(format, args...)
	}
}
