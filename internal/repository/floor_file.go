package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"pricedesk-api/internal/model"
)

// FileFloorRepository stores the floor table as a JSON array on disk.
// Writes go to a temp file first and replace the target atomically; the prior
// version is copied to a .backup file before each write.
type FileFloorRepository struct {
	path string
	mu   sync.Mutex
}

// NewFileFloorRepository creates a file-backed floor repository, creating the
// parent directory if needed.
func NewFileFloorRepository(path string) (*FileFloorRepository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	log.Printf("[FileFloorRepository] Initialized with file: %s", path)
	return &FileFloorRepository{path: path}, nil
}

func (r *FileFloorRepository) backupPath() string {
	ext := filepath.Ext(r.path)
	return strings.TrimSuffix(r.path, ext) + ".backup" + ext
}

// readAll reads the current table. A missing file yields an empty slice.
func (r *FileFloorRepository) readAll() ([]model.FloorEntry, error) {
	raw, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read floor file: %w", err)
	}

	var entries []model.FloorEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse floor file: %w", err)
	}
	return entries, nil
}

// writeAll backs up the prior version and atomically replaces the file.
func (r *FileFloorRepository) writeAll(entries []model.FloorEntry) error {
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode floor table: %w", err)
	}

	if prior, err := os.ReadFile(r.path); err == nil {
		if err := os.WriteFile(r.backupPath(), prior, 0o644); err != nil {
			return fmt.Errorf("failed to write floor backup: %w", err)
		}
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write floor temp file: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("failed to replace floor file: %w", err)
	}
	return nil
}

// Load returns the whole floor table, keyed by offer id.
func (r *FileFloorRepository) Load(ctx context.Context) (map[string]model.FloorEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.readAll()
	if err != nil {
		return nil, err
	}

	table := make(map[string]model.FloorEntry, len(entries))
	for _, e := range entries {
		table[e.ID] = e
	}
	return table, nil
}

// Upsert inserts or replaces one floor entry.
func (r *FileFloorRepository) Upsert(ctx context.Context, entry model.FloorEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.readAll()
	if err != nil {
		return err
	}

	replaced := false
	for i := range entries {
		if entries[i].ID == entry.ID {
			entries[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		entries = append(entries, entry)
	}

	return r.writeAll(entries)
}

// Merge upserts entries, preserving the floor value of any existing entry.
func (r *FileFloorRepository) Merge(ctx context.Context, incoming []model.FloorEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.readAll()
	if err != nil {
		return err
	}

	existing := make(map[string]int, len(entries))
	for i, e := range entries {
		existing[e.ID] = i
	}

	for _, in := range incoming {
		if i, ok := existing[in.ID]; ok {
			// Existing floor wins; refresh the descriptive fields only.
			entries[i].Name = in.Name
			entries[i].Price = in.Price
			continue
		}
		entries = append(entries, in)
	}

	return r.writeAll(entries)
}

// Close is a no-op for the file backend.
func (r *FileFloorRepository) Close() error {
	return nil
}

// Ensure FileFloorRepository implements FloorRepository
var _ FloorRepository = (*FileFloorRepository)(nil)
