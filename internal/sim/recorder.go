package sim

import (
	"sync"

	"github.com/me/kosched/internal/kernel"
	"github.com/me/kosched/pkg/model"
)

// Recorder buffers trace callbacks from the kernel in memory. The
// callbacks run inside the scheduler's critical sections, so the
// recorder only appends under a local mutex and is flushed to the
// store after the run finishes.
type Recorder struct {
	mu      sync.Mutex
	events  []model.Event
	samples []model.Sample
}

var _ kernel.Tracer = (*Recorder)(nil)

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// ThreadEvent implements kernel.Tracer.
func (r *Recorder) ThreadEvent(tick int64, id kernel.ID, name, kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, model.Event{
		Tick:     tick,
		ThreadID: int(id),
		Thread:   name,
		Kind:     kind,
	})
}

// Sample implements kernel.Tracer.
func (r *Recorder) Sample(tick int64, loadAvg100, readyCount int, running string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = append(r.samples, model.Sample{
		Tick:       tick,
		LoadAvg100: loadAvg100,
		ReadyCount: readyCount,
		Running:    running,
	})
}

// Events returns a copy of the recorded lifecycle events.
func (r *Recorder) Events() []model.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Event, len(r.events))
	copy(out, r.events)
	return out
}

// Samples returns a copy of the recorded load samples.
func (r *Recorder) Samples() []model.Sample {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Sample, len(r.samples))
	copy(out, r.samples)
	return out
}
