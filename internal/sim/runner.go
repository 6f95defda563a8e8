// Package sim orchestrates one scheduler simulation: it boots a fresh
// kernel, drives its timer from a paced goroutine, executes a scenario
// on the bootstrap thread, and persists the recorded trace.
package sim

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/me/kosched/internal/kernel"
	"github.com/me/kosched/internal/scenario"
	"github.com/me/kosched/internal/store"
	"github.com/me/kosched/pkg/model"
)

// Config holds the per-run parameters.
type Config struct {
	Kernel       kernel.Config
	TickInterval time.Duration // wall-clock pacing per tick; <= 0 runs unpaced
	MaxTicks     int64         // abort the scenario after this many ticks; <= 0 unlimited
}

// Runner executes scenarios and records their traces. A Runner may be
// reused; every Run boots a fresh kernel.
type Runner struct {
	store  store.Store // nil disables persistence
	cfg    Config
	logger *slog.Logger
}

// NewRunner creates a runner. st may be nil, in which case traces stay
// in memory only.
func NewRunner(st store.Store, cfg Config, logger *slog.Logger) *Runner {
	return &Runner{
		store:  st,
		cfg:    cfg,
		logger: logger.With("component", "sim"),
	}
}

// Run executes one scenario to completion and returns the finished run
// record. The calling goroutine becomes the kernel's bootstrap thread
// for the duration. A scenario aborted by the tick limit or by ctx
// comes back as a failed run together with the error.
func (r *Runner) Run(ctx context.Context, sc *scenario.Scenario) (*model.Run, error) {
	run := &model.Run{
		ID:        "run_" + uuid.New().String(),
		Scenario:  sc.Name,
		State:     model.RunStateRunning,
		TimerFreq: r.kernelTimerFreq(),
		TimeSlice: r.kernelTimeSlice(),
		StartedAt: time.Now().UTC(),
	}

	rec := NewRecorder()
	k := kernel.New(r.cfg.Kernel, r.logger, kernel.WithTracer(rec))
	run.Policy = k.PolicyName()

	if r.store != nil {
		if err := r.store.CreateRun(ctx, run); err != nil {
			return nil, fmt.Errorf("create run: %w", err)
		}
	}
	r.logger.Info("run started", "run_id", run.ID, "scenario", sc.Name, "policy", run.Policy)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	k.Start()
	drv := NewDriver(k, r.cfg.TickInterval, r.cfg.MaxTicks, cancel, r.logger)
	go drv.Start(runCtx)

	execErr := scenario.NewExecutor(k, r.logger).Run(runCtx, sc)

	if err := drv.Stop(); err != nil {
		r.logger.Error("stop driver", "error", err)
	}
	k.LogStats()

	now := time.Now().UTC()
	run.Ticks = k.Ticks()
	run.FinishedAt = &now
	if execErr != nil {
		run.State = model.RunStateFailed
		run.Error = execErr.Error()
	} else {
		run.State = model.RunStateCompleted
	}

	if err := r.persist(ctx, run, rec); err != nil {
		return run, err
	}

	r.logger.Info("run finished",
		"run_id", run.ID, "state", run.State, "ticks", run.Ticks,
		"events", len(rec.Events()))
	if execErr != nil {
		return run, execErr
	}
	return run, nil
}

// persist writes the finished run and its trace. Uses a background
// context deadline so a cancelled run still gets recorded.
func (r *Runner) persist(ctx context.Context, run *model.Run, rec *Recorder) error {
	if r.store == nil {
		return nil
	}
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
	}

	if err := r.store.UpdateRun(ctx, run); err != nil {
		return fmt.Errorf("finalize run: %w", err)
	}
	if err := r.store.AppendEvents(ctx, run.ID, rec.Events()); err != nil {
		return fmt.Errorf("persist events: %w", err)
	}
	if err := r.store.AppendSamples(ctx, run.ID, rec.Samples()); err != nil {
		return fmt.Errorf("persist samples: %w", err)
	}
	return nil
}

func (r *Runner) kernelTimerFreq() int {
	if r.cfg.Kernel.TimerFreq > 0 {
		return r.cfg.Kernel.TimerFreq
	}
	return kernel.DefaultConfig().TimerFreq
}

func (r *Runner) kernelTimeSlice() int {
	if r.cfg.Kernel.TimeSlice > 0 {
		return r.cfg.Kernel.TimeSlice
	}
	return kernel.DefaultConfig().TimeSlice
}
