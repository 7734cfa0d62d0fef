package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"pricedesk-api/internal/model"
)

// FileScheduleRepository snapshots schedule records to a JSON file so active
// schedules survive a restart. Writes are temp-then-rename.
type FileScheduleRepository struct {
	path string
	mu   sync.Mutex
}

// NewFileScheduleRepository creates a file-backed schedule repository.
func NewFileScheduleRepository(path string) (*FileScheduleRepository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &FileScheduleRepository{path: path}, nil
}

// Save replaces the persisted schedule set with the given snapshot.
func (r *FileScheduleRepository) Save(ctx context.Context, schedules []model.Schedule) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := json.MarshalIndent(schedules, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode schedules: %w", err)
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write schedule temp file: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("failed to replace schedule file: %w", err)
	}
	return nil
}

// Load returns the persisted schedule set (empty if absent).
func (r *FileScheduleRepository) Load(ctx context.Context) ([]model.Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	raw, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read schedule file: %w", err)
	}

	var schedules []model.Schedule
	if err := json.Unmarshal(raw, &schedules); err != nil {
		return nil, fmt.Errorf("failed to parse schedule file: %w", err)
	}
	return schedules, nil
}

// Ensure FileScheduleRepository implements ScheduleRepository
var _ ScheduleRepository = (*FileScheduleRepository)(nil)
