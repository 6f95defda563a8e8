package scenario

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/me/kosched/internal/kernel"
)

// waitPollTicks is how often, in virtual time, the bootstrap thread
// rechecks whether all spawned threads have exited.
const waitPollTicks = 5

// Executor runs a parsed scenario on a started kernel. It must be
// driven from the kernel's bootstrap thread while some external source
// delivers ticks; Run blocks in virtual time until every spawned
// thread has exited.
type Executor struct {
	k      *kernel.Kernel
	logger *slog.Logger
	locks  map[string]*kernel.Lock
	semas  map[string]*kernel.Semaphore
}

// NewExecutor creates an executor bound to a kernel.
func NewExecutor(k *kernel.Kernel, logger *slog.Logger) *Executor {
	return &Executor{
		k:      k,
		logger: logger.With("component", "scenario"),
		locks:  map[string]*kernel.Lock{},
		semas:  map[string]*kernel.Semaphore{},
	}
}

// Run creates the scenario's synchronization objects and threads, then
// waits for every spawned thread to exit. Cancelling ctx abandons the
// wait; threads still blocked at that point stay parked and are never
// scheduled again once ticking stops.
func (e *Executor) Run(ctx context.Context, sc *Scenario) error {
	for name, value := range sc.Semaphores {
		e.semas[name] = e.k.NewSemaphore(value)
	}
	for _, name := range sc.LockNames() {
		e.locks[name] = e.k.NewLock()
	}

	ids := make([]kernel.ID, 0, len(sc.Threads))
	for _, decl := range sc.Threads {
		decl := decl
		id, err := e.k.Create(decl.Name, decl.Priority, func() {
			e.runPlan(decl.Name, decl.Ops)
		})
		if err != nil {
			return fmt.Errorf("spawn %s: %w", decl.Name, err)
		}
		e.logger.Debug("spawned", "thread", decl.Name, "priority", decl.Priority)
		ids = append(ids, id)
	}

	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("scenario %s aborted: %w", sc.Name, err)
		}
		if e.aliveCount(ids) == 0 {
			return nil
		}
		e.k.SleepTicks(waitPollTicks)
	}
}

func (e *Executor) aliveCount(ids []kernel.ID) int {
	alive := 0
	old := e.k.IntrDisable()
	for _, id := range ids {
		if _, ok := e.k.Lookup(id); ok {
			alive++
		}
	}
	e.k.IntrSetLevel(old)
	return alive
}

// runPlan interprets one thread's plan. It runs on that thread's own
// goroutine under normal preemption.
func (e *Executor) runPlan(thread string, ops []Op) {
	for _, op := range ops {
		switch op.Kind {
		case OpSpin:
			e.spin(op.Ticks)
		case OpSleep:
			e.k.SleepTicks(op.Ticks)
		case OpYield:
			e.k.Yield()
		case OpAcquire:
			e.locks[op.Name].Acquire()
		case OpRelease:
			e.locks[op.Name].Release()
		case OpDown:
			e.semas[op.Name].Down()
		case OpUp:
			e.semas[op.Name].Up()
		case OpSetPriority:
			e.k.SetPriority(op.Value)
		case OpSetNice:
			if e.k.MLFQS() {
				e.k.SetNice(op.Value)
			}
		case OpLog:
			e.logger.Info(op.Msg, "thread", thread, "tick", e.k.Ticks())
		case OpRepeat:
			for i := 0; i < op.Value; i++ {
				e.runPlan(thread, op.Body)
			}
		case OpExit:
			e.k.Exit()
		default:
			e.logger.Warn("unknown op skipped", "thread", thread, "op", string(op.Kind))
		}
	}
}

// spin burns CPU until n ticks have elapsed, taking preemption at
// every iteration so the time slice is enforced.
func (e *Executor) spin(n int64) {
	deadline := e.k.Ticks() + n
	for e.k.Ticks() < deadline {
		e.k.Preempt()
	}
}
