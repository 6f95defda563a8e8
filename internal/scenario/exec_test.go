package scenario

import (
	"context"
	"testing"
	"time"

	"github.com/me/kosched/internal/kernel"
	"github.com/me/kosched/internal/logging"
)

// startTicker drives the kernel's timer from a separate goroutine, the
// way the paced run driver does. Stopped via t.Cleanup.
func startTicker(t *testing.T, k *kernel.Kernel) {
	t.Helper()
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(100 * time.Microsecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				k.Tick()
			}
		}
	}()
	t.Cleanup(func() {
		close(stop)
		<-done
	})
}

func execKernel(t *testing.T, mlfqs bool) *kernel.Kernel {
	t.Helper()
	cfg := kernel.DefaultConfig()
	cfg.MLFQS = mlfqs
	k := kernel.New(cfg, logging.Nop())
	k.Start()
	startTicker(t, k)
	return k
}

func TestRunCompletesAllThreads(t *testing.T) {
	src := `
sema("ready", 0);
spawn("producer", 40, [spin(4), up("ready")]);
spawn("consumer", 35, [down("ready"), spin(2)]);
spawn("sleeper", 20, [sleep(10)]);
`
	sc, err := Parse("mix.js", src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	k := execKernel(t, false)
	if err := NewExecutor(k, logging.Nop()).Run(context.Background(), sc); err != nil {
		t.Fatalf("run: %v", err)
	}
	if k.Ticks() == 0 {
		t.Error("no virtual time elapsed")
	}
}

func TestRunLockContention(t *testing.T) {
	// A low-priority holder and a high-priority waiter on the same
	// lock; donation lets the holder finish so the run terminates.
	src := `
sema("held", 0);
spawn("holder", 10, [acquire("m"), up("held"), spin(8), release("m")]);
spawn("waiter", 50, [down("held"), acquire("m"), release("m")]);
`
	sc, err := Parse("contend.js", src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	k := execKernel(t, false)
	if err := NewExecutor(k, logging.Nop()).Run(context.Background(), sc); err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestRunExitOpTerminatesEarly(t *testing.T) {
	src := `spawn("quitter", 40, [spin(2), exit(), spin(100000)]);`
	sc, err := Parse("quit.js", src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	k := execKernel(t, false)
	if err := NewExecutor(k, logging.Nop()).Run(context.Background(), sc); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := k.Ticks(); got > 1000 {
		t.Errorf("exit op did not cut the plan short, ran %d ticks", got)
	}
}

func TestRunUnderMLFQS(t *testing.T) {
	src := `
spawn("nice", 31, [setNice(5), spin(4)]);
spawn("busy", 31, [spin(8)]);
`
	sc, err := Parse("mlfqs.js", src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	k := execKernel(t, true)
	if err := NewExecutor(k, logging.Nop()).Run(context.Background(), sc); err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestRunAbortsOnCancel(t *testing.T) {
	// The sleeper never wakes within the test window; cancellation
	// must unblock the wait loop.
	src := `spawn("forever", 40, [sleep(100000000)]);`
	sc, err := Parse("stuck.js", src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	k := execKernel(t, false)
	err = NewExecutor(k, logging.Nop()).Run(ctx, sc)
	if err == nil {
		t.Fatal("run returned nil despite cancellation")
	}
}
