package sim

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"github.com/me/kosched/internal/kernel"
)

// Driver is the virtual timer: it delivers ticks to a kernel from its
// own goroutine, paced by a wall-clock interval, until stopped. Hitting
// the tick limit calls the onLimit hook (which aborts the scenario) but
// ticking continues until Stop, so threads already unblocked can keep
// making progress while the run winds down.
type Driver struct {
	k        *kernel.Kernel
	interval time.Duration
	maxTicks int64
	onLimit  func()
	logger   *slog.Logger
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewDriver creates a timer driver. interval <= 0 runs unpaced,
// delivering each tick once a thread has passed a preemption point
// since the previous one; maxTicks <= 0 means no limit.
func NewDriver(k *kernel.Kernel, interval time.Duration, maxTicks int64, onLimit func(), logger *slog.Logger) *Driver {
	return &Driver{
		k:        k,
		interval: interval,
		maxTicks: maxTicks,
		onLimit:  onLimit,
		logger:   logger.With("component", "driver"),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins delivering ticks. Blocks until ctx is cancelled or Stop
// is called; run it on its own goroutine.
func (d *Driver) Start(ctx context.Context) error {
	d.logger.Debug("timer started", "interval", d.interval, "max_ticks", d.maxTicks)
	defer close(d.doneCh)

	var ticks int64
	var points int64
	limited := false

	var tickC <-chan time.Time
	if d.interval > 0 {
		ticker := time.NewTicker(d.interval)
		defer ticker.Stop()
		tickC = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			d.logger.Debug("timer stopping (context cancelled)", "ticks", ticks)
			return ctx.Err()
		case <-d.stopCh:
			d.logger.Debug("timer stopping (stop called)", "ticks", ticks)
			return nil
		default:
		}

		if tickC != nil {
			select {
			case <-ctx.Done():
				continue
			case <-d.stopCh:
				continue
			case <-tickC:
			}
		} else if ticks > 0 && d.k.PreemptPoints() == points {
			// Unpaced mode still waits for the running thread to pass a
			// preemption point between ticks. Without the handshake the
			// tick loop reacquires the interrupt gate back to back and
			// virtual time outruns thread progress, burning the tick
			// budget before the scenario can finish.
			runtime.Gosched()
			continue
		}

		d.k.Tick()
		points = d.k.PreemptPoints()
		ticks++
		if !limited && d.maxTicks > 0 && ticks >= d.maxTicks {
			limited = true
			d.logger.Warn("tick limit reached", "ticks", ticks)
			if d.onLimit != nil {
				d.onLimit()
			}
		}
	}
}

// Stop halts the timer and waits for the tick loop to exit.
func (d *Driver) Stop() error {
	close(d.stopCh)
	<-d.doneCh
	return nil
}
