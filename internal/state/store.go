// Package state records leapfm run history in SQLite.
// Each saved run keeps its settings, status and the computed series so
// earlier results can be listed, shown and compared.
package state

import "time"

// RunStatus is the lifecycle state of a saved run.
type RunStatus string

// Run statuses.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run is one recorded pipeline execution.
type Run struct {
	ID          string     `json:"id"`
	Model       string     `json:"model"`
	Scenario    string     `json:"scenario"`
	Months      int        `json:"months"`
	Years       int        `json:"years"`
	Status      RunStatus  `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// Store is the run history interface used by the CLI.
type Store interface {
	Open(path string) error
	Close() error
	Migrate() error

	CreateRun(model, scenario string, months, years int) (*Run, error)
	CompleteRun(id string, status RunStatus, errMsg string) error
	GetRun(id string) (*Run, error)
	GetLatestRun(model string) (*Run, error)
	ListRuns(limit int) ([]*Run, error)

	SaveSeries(runID string, series map[string][]float64) error
	GetSeries(runID string) (map[string][]float64, error)
	SaveLineItems(runID string, items map[string][]float64) error
	GetLineItems(runID string) (map[string][]float64, error)
}
