package store

import (
	"context"

	"github.com/me/kosched/pkg/model"
)

// Store defines the persistence layer for recorded scheduler runs.
type Store interface {
	// Run CRUD
	CreateRun(ctx context.Context, run *model.Run) error
	GetRun(ctx context.Context, id string) (*model.Run, error)
	ListRuns(ctx context.Context, opts model.ListOptions) ([]*model.Run, int, error)
	UpdateRun(ctx context.Context, run *model.Run) error
	DeleteRun(ctx context.Context, id string) error

	// Trace data, append-only per run
	AppendEvents(ctx context.Context, runID string, events []model.Event) error
	ListEvents(ctx context.Context, runID string, opts model.ListOptions) ([]*model.Event, int, error)
	AppendSamples(ctx context.Context, runID string, samples []model.Sample) error
	ListSamples(ctx context.Context, runID string) ([]*model.Sample, error)

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}
