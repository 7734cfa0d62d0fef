package repository

import (
	"context"

	"pricedesk-api/internal/model"
)

// FloorRepository defines price floor table data access methods. The floor
// table lives independently of the catalog cache: floors survive reloads.
type FloorRepository interface {
	// Load returns the whole floor table. A missing table yields an empty
	// map, not an error.
	Load(ctx context.Context) (map[string]model.FloorEntry, error)

	// Upsert inserts or replaces one floor entry, preserving all others.
	Upsert(ctx context.Context, entry model.FloorEntry) error

	// Merge upserts entries but keeps any existing floor value: an entry
	// already present only has its name/price refreshed.
	Merge(ctx context.Context, entries []model.FloorEntry) error

	// Close closes the repository connection.
	Close() error
}

// ScheduleRepository persists schedule records so active schedules can be
// restored after a process restart.
type ScheduleRepository interface {
	// Save replaces the persisted schedule set with the given snapshot.
	Save(ctx context.Context, schedules []model.Schedule) error

	// Load returns the persisted schedule set (empty if absent).
	Load(ctx context.Context) ([]model.Schedule, error)
}

// RunLogRepository records bulk price update runs for auditing.
type RunLogRepository interface {
	// Insert stores one run record.
	Insert(ctx context.Context, run *model.PriceRun) error

	// List returns recent runs, newest first, with the total count.
	List(ctx context.Context, limit, offset int) ([]model.PriceRun, int64, error)

	// Close closes the repository connection.
	Close() error
}
