package uid

import "github.com/google/uuid"

// New returns a fresh identifier for tagging requests and log lines.
func New() string {
	return uuid.New().String()
}
