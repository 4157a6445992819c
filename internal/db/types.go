package db

import (
	"time"

	"github.com/google/uuid"
)

// Run statuses.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
	RunStatusCancelled = "cancelled"
)

// Step statuses.
const (
	StepStatusPending    = "pending"
	StepStatusInProgress = "in_progress"
	StepStatusCompleted  = "completed"
	StepStatusFailed     = "failed"
	StepStatusSkipped    = "skipped"
)

// Run represents a pipeline run record
type Run struct {
	ID             uuid.UUID  `json:"id"`
	SchemaID       string     `json:"schema_id"`
	OperatorID     string     `json:"operator_id,omitempty"`
	Status         string     `json:"status"`
	SignalStrength int        `json:"signal_strength"`
	WindowStatus   string     `json:"window_status"`
	ResultCount    int        `json:"result_count"`
	ErrorMessage   *string    `json:"error_message,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// RunStep tracks one stage of a pipeline run.
type RunStep struct {
	ID           uuid.UUID  `json:"id"`
	RunID        uuid.UUID  `json:"run_id"`
	Step         string     `json:"step"`
	Status       string     `json:"status"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	DurationMs   *int       `json:"duration_ms,omitempty"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// StoredResult is one persisted match result row.
type StoredResult struct {
	RunID        uuid.UUID `json:"run_id"`
	RecordKey    string    `json:"record_key"`
	Position     int       `json:"position"`
	Company      string    `json:"company"`
	Domain       string    `json:"domain"`
	Score        int       `json:"score"`
	WindowStatus string    `json:"window_status"`
	DealValue    int       `json:"deal_value"`
	Probability  int       `json:"probability"`
}
