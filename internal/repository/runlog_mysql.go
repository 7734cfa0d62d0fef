package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"pricedesk-api/internal/model"
)

// MySQLRunLogRepository implements RunLogRepository using MySQL. The run log
// is an audit trail of every bulk price update run, manual or scheduled.
type MySQLRunLogRepository struct {
	db *sql.DB
}

// NewMySQLRunLogRepository creates a new MySQL run log repository on an
// already-open connection.
func NewMySQLRunLogRepository(db *sql.DB) (*MySQLRunLogRepository, error) {
	query := `
	CREATE TABLE IF NOT EXISTS price_runs (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		trigger_source VARCHAR(32) NOT NULL,
		adjustment DOUBLE NOT NULL,
		success INT NOT NULL,
		failed INT NOT NULL,
		skipped INT NOT NULL,
		below_limit INT NOT NULL,
		total INT NOT NULL,
		duration_ms BIGINT NOT NULL,
		error_message TEXT,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		INDEX idx_created_at (created_at)
	)`
	if _, err := db.Exec(query); err != nil {
		return nil, fmt.Errorf("failed to create price_runs table: %w", err)
	}

	log.Printf("[MySQLRunLogRepository] Initialized")
	return &MySQLRunLogRepository{db: db}, nil
}

// Insert stores one run record.
func (r *MySQLRunLogRepository) Insert(ctx context.Context, run *model.PriceRun) error {
	query := `
		INSERT INTO price_runs
			(trigger_source, adjustment, success, failed, skipped, below_limit, total, duration_ms, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	res, err := r.db.ExecContext(ctx, query,
		run.Trigger, run.Adjustment, run.Success, run.Failed, run.Skipped,
		run.BelowLimit, run.Total, run.DurationMs, nullableString(run.Error))
	if err != nil {
		return fmt.Errorf("failed to insert price run: %w", err)
	}

	if id, err := res.LastInsertId(); err == nil {
		run.ID = id
	}
	return nil
}

// List returns recent runs, newest first, with the total count.
func (r *MySQLRunLogRepository) List(ctx context.Context, limit, offset int) ([]model.PriceRun, int64, error) {
	query := `
		SELECT id, trigger_source, adjustment, success, failed, skipped, below_limit,
		       total, duration_ms, error_message, created_at
		FROM price_runs
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?`

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list price runs: %w", err)
	}
	defer rows.Close()

	runs := []model.PriceRun{}
	for rows.Next() {
		var run model.PriceRun
		var errMsg sql.NullString
		if err := rows.Scan(&run.ID, &run.Trigger, &run.Adjustment, &run.Success,
			&run.Failed, &run.Skipped, &run.BelowLimit, &run.Total,
			&run.DurationMs, &errMsg, &run.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan price run: %w", err)
		}
		if errMsg.Valid {
			run.Error = errMsg.String
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM price_runs`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count price runs: %w", err)
	}

	return runs, total, nil
}

// Close closes the database connection.
func (r *MySQLRunLogRepository) Close() error {
	return r.db.Close()
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Ensure MySQLRunLogRepository implements RunLogRepository
var _ RunLogRepository = (*MySQLRunLogRepository)(nil)
