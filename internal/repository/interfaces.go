package repository

import (
	"context"

	"github.com/DrRalph1/API-AUTOMATION-sub006/internal/domain"
)

// JobStore is the durable record of import jobs. It is the single
// source of truth for job ownership: every mutation after creation goes
// through CompareAndSwap, which succeeds only if the stored version is
// unchanged since the caller read its snapshot.
type JobStore interface {
	// Create persists a new pending job at version 1.
	Create(ctx context.Context, job *domain.ImportJob) error
	// Get returns the job or nil when the id is unknown.
	Get(ctx context.Context, id string) (*domain.ImportJob, error)
	// CompareAndSwap writes job iff the stored version equals
	// expectedVersion, bumping job.Version to expectedVersion+1.
	// history, when non-nil, is appended in the same transaction so a
	// terminal status write and its history record commit atomically.
	// publishRef, when non-empty, flips that staged graph visible in the
	// same transaction; a successful completion is therefore never
	// observable without its graph.
	CompareAndSwap(ctx context.Context, job *domain.ImportJob, expectedVersion int64, history *domain.ImportHistory, publishRef string) (bool, error)
}

// HistoryFilter narrows a history listing. Zero-value fields are not
// applied.
type HistoryFilter struct {
	JobID        string
	CollectionID string
	EndpointID   string
	Limit        int
}

// HistoryStore reads the append-only import history.
type HistoryStore interface {
	ListHistory(ctx context.Context, filter HistoryFilter) ([]domain.ImportHistory, error)
}

// GraphStore persists generated collection graphs. Writes are staged
// invisible first and flipped visible in one step, so readers never see
// a partially written graph.
type GraphStore interface {
	// Stage writes the graph under a not-yet-visible staging reference.
	Stage(ctx context.Context, col *domain.Collection) (ref string, err error)
	// Publish makes a staged graph visible. The terminal commit flips
	// the graph through JobStore.CompareAndSwap instead; this is the
	// repair path for a graph somehow left staged behind a completed job.
	Publish(ctx context.Context, ref string) error
	// Discard deletes a staged graph after a failed commit.
	Discard(ctx context.Context, ref string) error
	// GetCollection loads a published collection graph, or nil when
	// the id is unknown or still staged.
	GetCollection(ctx context.Context, id string) (*domain.Collection, error)
}
