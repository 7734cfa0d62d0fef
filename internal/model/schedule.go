package model

import "time"

// ScheduleAction is the direction of a scheduled price change.
type ScheduleAction string

const (
	ActionIncrease ScheduleAction = "increase"
	ActionDecrease ScheduleAction = "decrease"
)

// Valid reports whether the action is one of the known directions.
func (a ScheduleAction) Valid() bool {
	return a == ActionIncrease || a == ActionDecrease
}

// Schedule is a recurring bulk price-adjustment job. The system maintains at
// most one schedule under a well-known id.
type Schedule struct {
	ID                   string         `json:"id"`
	IntervalMinutes      int            `json:"interval"`
	IsActive             bool           `json:"isActive"`
	LastRunTime          *time.Time     `json:"lastRunTime"`
	NextRunTime          *time.Time     `json:"nextRunTime"`
	Adjustment           float64        `json:"adjustment"`
	Action               ScheduleAction `json:"action"`
	IsCurrentlyExecuting bool           `json:"isCurrentlyExecuting"`
}

// Interval returns the schedule interval as a duration.
func (s *Schedule) Interval() time.Duration {
	return time.Duration(s.IntervalMinutes) * time.Minute
}
