package stores

import (
	"context"
	"time"
)

// RunStatus represents the outcome of a patch run
type RunStatus string

const (
	RunStatusChanged     RunStatus = "changed"
	RunStatusUnchanged   RunStatus = "unchanged"
	RunStatusWouldChange RunStatus = "would_change"
	RunStatusFailed      RunStatus = "failed"
)

// Run is a journal entry for one patch run against one file
type Run struct {
	ID             string        `json:"id"`
	Path           string        `json:"path"`
	Recipe         string        `json:"recipe,omitempty"`
	Block          string        `json:"block"`
	Status         RunStatus     `json:"status"`
	Neutralized    int           `json:"neutralized"`
	Inserted       bool          `json:"inserted"`
	ChecksumBefore string        `json:"checksum_before,omitempty"`
	ChecksumAfter  string        `json:"checksum_after,omitempty"`
	BackupPath     string        `json:"backup_path,omitempty"`
	Error          *string       `json:"error,omitempty"`
	StartedAt      time.Time     `json:"started_at"`
	Duration       time.Duration `json:"duration"`
}

// RunFilter narrows ListRuns results
type RunFilter struct {
	// Path restricts results to one file. Empty means all files.
	Path string

	// Status restricts results to one status. Empty means all statuses.
	Status RunStatus

	// Limit caps the number of results; 0 means DefaultListLimit.
	Limit int
}

// DefaultListLimit is the number of runs returned when no limit is given
const DefaultListLimit = 50

// Store is the journal persistence interface
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error
	HealthCheck(ctx context.Context) error

	// Runs
	CreateRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]*Run, error)
}
