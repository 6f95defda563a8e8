// Package model defines the shared types persisted by the trace store
// and served by the inspection API: simulation runs, per-thread
// lifecycle events, and scheduler samples.
package model

import "time"

// RunState represents the lifecycle state of a simulation run.
type RunState string

const (
	RunStateRunning   RunState = "RUNNING"
	RunStateCompleted RunState = "COMPLETED"
	RunStateFailed    RunState = "FAILED"
)

// String returns the string representation of the run state.
func (s RunState) String() string {
	return string(s)
}

// IsTerminal returns true if the run is in a final state.
func (s RunState) IsTerminal() bool {
	switch s {
	case RunStateCompleted, RunStateFailed:
		return true
	}
	return false
}

// Run is one recorded execution of a scenario against the scheduler.
type Run struct {
	ID         string     `json:"id"`
	Scenario   string     `json:"scenario"`
	Policy     string     `json:"policy"`
	State      RunState   `json:"state"`
	TimerFreq  int        `json:"timer_freq"`
	TimeSlice  int        `json:"time_slice"`
	Ticks      int64      `json:"ticks"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
}

// Event is one thread lifecycle event observed during a run. Kind is
// one of created, exited, reclaimed, sleep, wake.
type Event struct {
	Seq      int64  `json:"seq"`
	RunID    string `json:"run_id"`
	Tick     int64  `json:"tick"`
	ThreadID int    `json:"thread_id"`
	Thread   string `json:"thread"`
	Kind     string `json:"kind"`
}

// Sample is a once-per-second snapshot of scheduler load: the load
// average scaled by 100, the ready-queue depth, and the thread that
// held the CPU when the sample was taken.
type Sample struct {
	RunID      string `json:"run_id"`
	Tick       int64  `json:"tick"`
	LoadAvg100 int    `json:"load_avg_100"`
	ReadyCount int    `json:"ready_count"`
	Running    string `json:"running"`
}
