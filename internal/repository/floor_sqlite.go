package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"

	"pricedesk-api/internal/model"

	_ "modernc.org/sqlite" // Pure Go SQLite driver - no CGO required
)

// SQLiteFloorRepository implements FloorRepository using SQLite.
// Thread-safe with WAL mode for high-concurrency reads.
type SQLiteFloorRepository struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteFloorRepository creates a new SQLite floor repository.
// dbPath is the path to the SQLite database file (e.g., "./data/floors.db")
func NewSQLiteFloorRepository(dbPath string) (*SQLiteFloorRepository, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}

	// SQLite only supports 1 writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := createFloorTable(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	log.Printf("[SQLiteFloorRepository] Initialized with database: %s", dbPath)
	return &SQLiteFloorRepository{db: db}, nil
}

func createFloorTable(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS price_floors (
		offer_id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		price REAL NOT NULL DEFAULT 0,
		minimum_price_limit REAL NOT NULL DEFAULT 0
	);`
	_, err := db.Exec(query)
	return err
}

// Load returns the whole floor table, keyed by offer id.
func (r *SQLiteFloorRepository) Load(ctx context.Context) (map[string]model.FloorEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rows, err := r.db.QueryContext(ctx,
		`SELECT offer_id, name, price, minimum_price_limit FROM price_floors`)
	if err != nil {
		return nil, fmt.Errorf("failed to load floors: %w", err)
	}
	defer rows.Close()

	table := make(map[string]model.FloorEntry)
	for rows.Next() {
		var e model.FloorEntry
		if err := rows.Scan(&e.ID, &e.Name, &e.Price, &e.MinimumPriceLimit); err != nil {
			return nil, fmt.Errorf("failed to scan floor entry: %w", err)
		}
		table[e.ID] = e
	}
	return table, rows.Err()
}

// Upsert inserts or replaces one floor entry.
func (r *SQLiteFloorRepository) Upsert(ctx context.Context, entry model.FloorEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	query := `
		INSERT INTO price_floors (offer_id, name, price, minimum_price_limit)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(offer_id) DO UPDATE SET
			name = excluded.name,
			price = excluded.price,
			minimum_price_limit = excluded.minimum_price_limit`

	_, err := r.db.ExecContext(ctx, query, entry.ID, entry.Name, entry.Price, entry.MinimumPriceLimit)
	if err != nil {
		return fmt.Errorf("failed to upsert floor: %w", err)
	}
	return nil
}

// Merge upserts entries, preserving the floor value of any existing entry.
func (r *SQLiteFloorRepository) Merge(ctx context.Context, entries []model.FloorEntry) error {
	if len(entries) == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO price_floors (offer_id, name, price, minimum_price_limit)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(offer_id) DO UPDATE SET
			name = excluded.name,
			price = excluded.price`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.ID, e.Name, e.Price, e.MinimumPriceLimit); err != nil {
			return fmt.Errorf("failed to merge floor %s: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *SQLiteFloorRepository) Close() error {
	return r.db.Close()
}

// Ensure SQLiteFloorRepository implements FloorRepository
var _ FloorRepository = (*SQLiteFloorRepository)(nil)
