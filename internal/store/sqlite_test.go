package store

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/me/kosched/pkg/model"
)

func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}))
	st, err := NewSQLiteStore(":memory:", logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func sampleRun(id string) *model.Run {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &model.Run{
		ID:        id,
		Scenario:  "alarm.js",
		Policy:    "priority",
		State:     model.RunStateRunning,
		TimerFreq: 100,
		TimeSlice: 4,
		StartedAt: now,
	}
}

func TestRunCRUD(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	run := sampleRun("run_test-1")
	if err := st.CreateRun(ctx, run); err != nil {
		t.Fatalf("create run: %v", err)
	}

	got, err := st.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if got == nil {
		t.Fatal("run not found after create")
	}
	if got.Scenario != "alarm.js" || got.Policy != "priority" {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if got.State != model.RunStateRunning {
		t.Errorf("state = %q, want RUNNING", got.State)
	}
	if got.FinishedAt != nil {
		t.Errorf("finished_at = %v, want nil", got.FinishedAt)
	}

	finished := time.Now().UTC().Truncate(time.Millisecond)
	run.State = model.RunStateCompleted
	run.Ticks = 500
	run.FinishedAt = &finished
	if err := st.UpdateRun(ctx, run); err != nil {
		t.Fatalf("update run: %v", err)
	}
	got, err = st.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("get run after update: %v", err)
	}
	if got.State != model.RunStateCompleted || got.Ticks != 500 {
		t.Errorf("update not persisted: %+v", got)
	}
	if got.FinishedAt == nil || !got.FinishedAt.Equal(finished) {
		t.Errorf("finished_at = %v, want %v", got.FinishedAt, finished)
	}

	if err := st.DeleteRun(ctx, run.ID); err != nil {
		t.Fatalf("delete run: %v", err)
	}
	got, err = st.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	if got != nil {
		t.Error("run still present after delete")
	}
}

func TestGetRunMissingReturnsNil(t *testing.T) {
	st := testStore(t)

	got, err := st.GetRun(context.Background(), "nope")
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if got != nil {
		t.Errorf("got %+v, want nil", got)
	}
}

func TestUpdateRunMissing(t *testing.T) {
	st := testStore(t)

	err := st.UpdateRun(context.Background(), sampleRun("ghost"))
	if err == nil {
		t.Fatal("update of missing run succeeded")
	}
}

func TestListRunsFilterAndPaging(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		run := sampleRun(fmt.Sprintf("run_%d", i))
		run.StartedAt = run.StartedAt.Add(time.Duration(i) * time.Second)
		if i%2 == 0 {
			run.State = model.RunStateCompleted
		}
		if err := st.CreateRun(ctx, run); err != nil {
			t.Fatalf("create run %d: %v", i, err)
		}
	}

	runs, total, err := st.ListRuns(ctx, model.ListOptions{Limit: 2})
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if total != 5 {
		t.Errorf("total = %d, want 5", total)
	}
	if len(runs) != 2 {
		t.Fatalf("page size = %d, want 2", len(runs))
	}
	// Newest first.
	if runs[0].ID != "run_4" {
		t.Errorf("first run = %s, want run_4", runs[0].ID)
	}

	runs, total, err = st.ListRuns(ctx, model.ListOptions{Limit: 10, State: "COMPLETED"})
	if err != nil {
		t.Fatalf("list completed: %v", err)
	}
	if total != 3 || len(runs) != 3 {
		t.Errorf("completed: total=%d len=%d, want 3/3", total, len(runs))
	}
}

func TestEventsAppendAndList(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	run := sampleRun("run_ev")
	if err := st.CreateRun(ctx, run); err != nil {
		t.Fatalf("create run: %v", err)
	}

	events := []model.Event{
		{Tick: 0, ThreadID: 2, Thread: "worker", Kind: "created"},
		{Tick: 10, ThreadID: 2, Thread: "worker", Kind: "sleep"},
		{Tick: 20, ThreadID: 2, Thread: "worker", Kind: "wake"},
		{Tick: 25, ThreadID: 2, Thread: "worker", Kind: "exited"},
	}
	if err := st.AppendEvents(ctx, run.ID, events); err != nil {
		t.Fatalf("append events: %v", err)
	}
	// Appending nothing is fine.
	if err := st.AppendEvents(ctx, run.ID, nil); err != nil {
		t.Fatalf("append empty: %v", err)
	}

	got, total, err := st.ListEvents(ctx, run.ID, model.ListOptions{Limit: 10})
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if total != 4 || len(got) != 4 {
		t.Fatalf("events: total=%d len=%d, want 4/4", total, len(got))
	}
	// Insertion order is preserved.
	kinds := []string{"created", "sleep", "wake", "exited"}
	for i, ev := range got {
		if ev.Kind != kinds[i] {
			t.Errorf("event %d kind = %q, want %q", i, ev.Kind, kinds[i])
		}
		if ev.RunID != run.ID {
			t.Errorf("event %d run_id = %q", i, ev.RunID)
		}
	}

	// Paging.
	got, _, err = st.ListEvents(ctx, run.ID, model.ListOptions{Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("list page 2: %v", err)
	}
	if len(got) != 2 || got[0].Kind != "wake" {
		t.Errorf("page 2 = %v", got)
	}
}

func TestSamplesAppendAndList(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	run := sampleRun("run_sm")
	if err := st.CreateRun(ctx, run); err != nil {
		t.Fatalf("create run: %v", err)
	}

	samples := []model.Sample{
		{Tick: 100, LoadAvg100: 12, ReadyCount: 1, Running: "main"},
		{Tick: 200, LoadAvg100: 25, ReadyCount: 2, Running: "worker"},
	}
	if err := st.AppendSamples(ctx, run.ID, samples); err != nil {
		t.Fatalf("append samples: %v", err)
	}

	got, err := st.ListSamples(ctx, run.ID)
	if err != nil {
		t.Fatalf("list samples: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("samples = %d, want 2", len(got))
	}
	if got[0].Tick != 100 || got[1].LoadAvg100 != 25 {
		t.Errorf("sample round trip mismatch: %+v, %+v", got[0], got[1])
	}
}

func TestDeleteRunRemovesTraceRows(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	run := sampleRun("run_del")
	if err := st.CreateRun(ctx, run); err != nil {
		t.Fatalf("create run: %v", err)
	}
	if err := st.AppendEvents(ctx, run.ID, []model.Event{{Tick: 1, ThreadID: 2, Thread: "w", Kind: "created"}}); err != nil {
		t.Fatalf("append events: %v", err)
	}
	if err := st.AppendSamples(ctx, run.ID, []model.Sample{{Tick: 100, Running: "main"}}); err != nil {
		t.Fatalf("append samples: %v", err)
	}

	if err := st.DeleteRun(ctx, run.ID); err != nil {
		t.Fatalf("delete run: %v", err)
	}

	evs, total, err := st.ListEvents(ctx, run.ID, model.ListOptions{})
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if total != 0 || len(evs) != 0 {
		t.Error("events survived run deletion")
	}
	sms, err := st.ListSamples(ctx, run.ID)
	if err != nil {
		t.Fatalf("list samples: %v", err)
	}
	if len(sms) != 0 {
		t.Error("samples survived run deletion")
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	st := testStore(t)
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}
