package model

import "time"

// BulkResult is the outcome of one bulk price update run. The accounting
// invariant success+failed+skipped+belowLimit == total holds for every run.
type BulkResult struct {
	Success       int      `json:"success"`
	Failed        int      `json:"failed"`
	Skipped       int      `json:"skipped"`
	BelowLimit    int      `json:"belowLimit"`
	Total         int      `json:"total"`
	FailedIDs     []string `json:"failedIds"`
	BelowLimitIDs []string `json:"belowLimitIds"`
}

// PriceRun is a persisted record of one bulk update run.
type PriceRun struct {
	ID         int64     `json:"id"`
	Trigger    string    `json:"trigger"` // manual or schedule
	Adjustment float64   `json:"adjustment"`
	Success    int       `json:"success"`
	Failed     int       `json:"failed"`
	Skipped    int       `json:"skipped"`
	BelowLimit int       `json:"below_limit"`
	Total      int       `json:"total"`
	DurationMs int64     `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
