package service

import (
	"context"
	"sync"

	"pricedesk-api/internal/model"
)

// fakeFloorRepo is an in-memory FloorRepository for tests.
type fakeFloorRepo struct {
	mu      sync.Mutex
	table   map[string]model.FloorEntry
	loadErr error
}

func newFakeFloorRepo() *fakeFloorRepo {
	return &fakeFloorRepo{table: make(map[string]model.FloorEntry)}
}

func (r *fakeFloorRepo) Load(ctx context.Context) (map[string]model.FloorEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loadErr != nil {
		return nil, r.loadErr
	}
	out := make(map[string]model.FloorEntry, len(r.table))
	for k, v := range r.table {
		out[k] = v
	}
	return out, nil
}

func (r *fakeFloorRepo) Upsert(ctx context.Context, entry model.FloorEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.table[entry.ID] = entry
	return nil
}

func (r *fakeFloorRepo) Merge(ctx context.Context, entries []model.FloorEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, in := range entries {
		if cur, ok := r.table[in.ID]; ok {
			cur.Name = in.Name
			cur.Price = in.Price
			r.table[in.ID] = cur
			continue
		}
		r.table[in.ID] = in
	}
	return nil
}

func (r *fakeFloorRepo) Close() error { return nil }

func (r *fakeFloorRepo) set(entry model.FloorEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.table[entry.ID] = entry
}

func (r *fakeFloorRepo) get(id string) (model.FloorEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.table[id]
	return e, ok
}

// fakeScheduleStore is an in-memory ScheduleRepository for tests.
type fakeScheduleStore struct {
	mu    sync.Mutex
	saved []model.Schedule
}

func (s *fakeScheduleStore) Save(ctx context.Context, schedules []model.Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append([]model.Schedule(nil), schedules...)
	return nil
}

func (s *fakeScheduleStore) Load(ctx context.Context) ([]model.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Schedule(nil), s.saved...), nil
}

func floatPtr(v float64) *float64 { return &v }
