package kernel

import (
	"unicode/utf8"

	"github.com/me/kosched/internal/fixedpoint"
)

// Priority range. Donation and MLFQS both clamp to it.
const (
	PriMin     = 0
	PriMax     = 63
	PriDefault = 31
)

// Niceness range under MLFQS.
const (
	NiceMin = -20
	NiceMax = 20
)

// nameMax bounds a thread's informational name.
const nameMax = 16

// threadMagic is the guard value stored in every live thread record.
// A mismatch means the record was corrupted (in the original system, a
// thread overflowing its stack); Current treats it as fatal.
const threadMagic uint32 = 0xcd6abf4b

// ID identifies a thread. IDs are positive and monotonically increasing.
type ID int

// Func is a thread entry function. When it returns, the thread exits.
type Func func()

// Status is a thread lifecycle state.
type Status int

const (
	// StatusBlocked: not runnable; waiting on a wakeup (sleep deadline,
	// semaphore up, explicit Unblock). Threads are also created blocked.
	StatusBlocked Status = iota
	// StatusReady: runnable, sitting in the ready queue.
	StatusReady
	// StatusRunning: the one thread currently executing.
	StatusRunning
	// StatusDying: exited; storage reclaimed after the next switch away.
	StatusDying
)

func (s Status) String() string {
	switch s {
	case StatusBlocked:
		return "blocked"
	case StatusReady:
		return "ready"
	case StatusRunning:
		return "running"
	case StatusDying:
		return "dying"
	default:
		return "invalid"
	}
}

// Thread is a thread control block. One goroutine backs each thread;
// the goroutine is parked on the park channel whenever the thread is
// not running, so at most one thread executes at a time.
type Thread struct {
	id     ID
	name   string
	status Status

	basePriority int // set by the owner
	priority     int // effective: base raised by donation, or MLFQS-derived

	nice      int
	recentCPU fixedpoint.Value

	// wakeTick is the wake deadline, valid only while on the sleep queue.
	wakeTick int64

	// heldLocks are the locks this thread holds, ordered by donated
	// priority, descending. waitingOn is the lock this thread is blocked
	// acquiring, if any; the lock module walks it for chained donation.
	heldLocks []*Lock
	waitingOn *Lock

	entry Func

	// park is the thread's execution context handle. Sending wakes the
	// thread's goroutine; receiving suspends it. Buffered so a thread
	// can be scheduled before its goroutine has started running.
	park chan struct{}

	// page is the arena slot backing this thread; nil for the bootstrap
	// thread, whose storage the dispatcher never reclaims.
	page      *page
	bootstrap bool

	magic uint32
}

// ID returns the thread identifier.
func (t *Thread) ID() ID { return t.id }

// Name returns the thread's informational name.
func (t *Thread) Name() string { return t.name }

// Status returns the thread's lifecycle state.
func (t *Thread) Status() Status { return t.status }

// Priority returns the effective priority.
func (t *Thread) Priority() int { return t.priority }

// BasePriority returns the owner-set priority, before donation.
func (t *Thread) BasePriority() int { return t.basePriority }

// Nice returns the thread's niceness.
func (t *Thread) Nice() int { return t.nice }

// isThread reports whether t looks like a valid thread record.
func isThread(t *Thread) bool {
	return t != nil && t.magic == threadMagic
}

// truncateName bounds a name to nameMax bytes without splitting a
// rune, so names stay valid UTF-8 in logs and the trace.
func truncateName(name string) string {
	if len(name) <= nameMax {
		return name
	}
	cut := nameMax
	for cut > 0 && !utf8.RuneStart(name[cut]) {
		cut--
	}
	return name[:cut]
}

func newThread(name string, priority int) *Thread {
	name = truncateName(name)
	return &Thread{
		name:         name,
		status:       StatusBlocked,
		basePriority: priority,
		priority:     priority,
		park:         make(chan struct{}, 1),
		magic:        threadMagic,
	}
}
