package sim

import (
	"context"
	"testing"
	"time"

	"github.com/me/kosched/internal/kernel"
	"github.com/me/kosched/internal/logging"
	"github.com/me/kosched/internal/scenario"
	"github.com/me/kosched/internal/store"
	"github.com/me/kosched/pkg/model"
)

func testRunStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLiteStore(":memory:", logging.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func parseScenario(t *testing.T, name, src string) *scenario.Scenario {
	t.Helper()
	sc, err := scenario.Parse(name, src)
	if err != nil {
		t.Fatalf("parse %s: %v", name, err)
	}
	return sc
}

func TestRunnerPersistsCompletedRun(t *testing.T) {
	st := testRunStore(t)
	sc := parseScenario(t, "basic.js", `
spawn("worker", 40, [spin(4), sleep(5), log("done")]);
`)

	r := NewRunner(st, Config{MaxTicks: 100000}, logging.Nop())
	run, err := r.Run(context.Background(), sc)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if run.State != model.RunStateCompleted {
		t.Errorf("state = %s, want COMPLETED", run.State)
	}
	if run.Ticks == 0 {
		t.Error("run recorded zero ticks")
	}
	if run.Policy != "priority" {
		t.Errorf("policy = %q, want priority", run.Policy)
	}
	if run.FinishedAt == nil {
		t.Error("finished_at not set")
	}

	stored, err := st.GetRun(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if stored == nil {
		t.Fatal("run not in store")
	}
	if stored.State != model.RunStateCompleted || stored.Ticks != run.Ticks {
		t.Errorf("stored run mismatch: %+v", stored)
	}

	events, total, err := st.ListEvents(context.Background(), run.ID, model.ListOptions{Limit: 200})
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if total == 0 {
		t.Fatal("no events persisted")
	}
	kinds := map[string]bool{}
	for _, ev := range events {
		kinds[ev.Kind] = true
	}
	for _, want := range []string{"created", "sleep", "wake", "exited", "reclaimed"} {
		if !kinds[want] {
			t.Errorf("missing event kind %q", want)
		}
	}
}

func TestRunnerWithoutStore(t *testing.T) {
	sc := parseScenario(t, "nostore.js", `spawn("w", 40, [spin(2)]);`)

	r := NewRunner(nil, Config{}, logging.Nop())
	run, err := r.Run(context.Background(), sc)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if run.State != model.RunStateCompleted {
		t.Errorf("state = %s, want COMPLETED", run.State)
	}
}

func TestRunnerUnpacedStaysWithinTickBudget(t *testing.T) {
	// An unpaced driver must not burn the tick budget faster than
	// threads can run: a short scenario has to finish well inside a
	// modest limit instead of being aborted at it.
	sc := parseScenario(t, "short.js", `spawn("w", 40, [spin(4), sleep(5), log("done")]);`)

	r := NewRunner(nil, Config{MaxTicks: 2000}, logging.Nop())
	run, err := r.Run(context.Background(), sc)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if run.State != model.RunStateCompleted {
		t.Fatalf("state = %s (error %q), want COMPLETED", run.State, run.Error)
	}
	if run.Ticks >= 2000 {
		t.Errorf("run consumed %d ticks, tick limit should not have been reached", run.Ticks)
	}
}

func TestRunnerTickLimitFailsRun(t *testing.T) {
	st := testRunStore(t)
	sc := parseScenario(t, "runaway.js", `spawn("stuck", 40, [sleep(100000000)]);`)

	r := NewRunner(st, Config{MaxTicks: 200}, logging.Nop())
	run, err := r.Run(context.Background(), sc)
	if err == nil {
		t.Fatal("runaway scenario did not fail")
	}
	if run.State != model.RunStateFailed {
		t.Errorf("state = %s, want FAILED", run.State)
	}
	if run.Error == "" {
		t.Error("error field empty on failed run")
	}

	// The failure is still recorded.
	stored, serr := st.GetRun(context.Background(), run.ID)
	if serr != nil || stored == nil {
		t.Fatalf("failed run not stored: %v", serr)
	}
	if stored.State != model.RunStateFailed {
		t.Errorf("stored state = %s, want FAILED", stored.State)
	}
}

func TestRunnerMLFQSPolicyRecorded(t *testing.T) {
	sc := parseScenario(t, "mlfqs.js", `spawn("w", 31, [spin(4)]);`)

	cfg := Config{MaxTicks: 100000}
	cfg.Kernel = kernel.Config{MLFQS: true}
	r := NewRunner(nil, cfg, logging.Nop())
	run, err := r.Run(context.Background(), sc)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if run.Policy != "mlfqs" {
		t.Errorf("policy = %q, want mlfqs", run.Policy)
	}
}

func TestRunnerPacedDriver(t *testing.T) {
	sc := parseScenario(t, "paced.js", `spawn("w", 40, [sleep(20)]);`)

	r := NewRunner(nil, Config{TickInterval: 100 * time.Microsecond, MaxTicks: 100000}, logging.Nop())
	start := time.Now()
	run, err := r.Run(context.Background(), sc)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if run.State != model.RunStateCompleted {
		t.Errorf("state = %s, want COMPLETED", run.State)
	}
	// 20 virtual ticks at 100us each needs at least 2ms of wall time.
	if time.Since(start) < 2*time.Millisecond {
		t.Error("paced run finished implausibly fast")
	}
}

func TestRecorderRoundTrip(t *testing.T) {
	rec := NewRecorder()
	rec.ThreadEvent(5, 2, "w", "created")
	rec.Sample(100, 50, 2, "main")

	evs := rec.Events()
	if len(evs) != 1 || evs[0].Kind != "created" || evs[0].Tick != 5 {
		t.Errorf("events = %+v", evs)
	}
	sms := rec.Samples()
	if len(sms) != 1 || sms[0].LoadAvg100 != 50 || sms[0].Running != "main" {
		t.Errorf("samples = %+v", sms)
	}

	// Returned slices are copies.
	evs[0].Kind = "mutated"
	if rec.Events()[0].Kind != "created" {
		t.Error("Events returned a live reference")
	}
}
