package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/pzielinski/tourney-api/internal/task"
)

// TaskResponse is the external view of a task. The result blob itself is
// not exposed here, only its presence; callers fetch results through
// whatever channel the job body delivered them to (export download,
// report page).
type TaskResponse struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
	HasResult   bool       `json:"has_result"`
}

// NewTaskResponse converts an engine record into its API representation.
func NewTaskResponse(rec *task.Record) TaskResponse {
	return TaskResponse{
		ID:          rec.ID,
		Name:        rec.Name,
		Description: rec.Description,
		Status:      string(rec.Status),
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
		CompletedAt: rec.CompletedAt,
		Error:       rec.Error,
		HasResult:   len(rec.Result) > 0,
	}
}

// CancelResponse reports the outcome of a cancellation request.
type CancelResponse struct {
	ID        uuid.UUID `json:"id"`
	Cancelled bool      `json:"cancelled"`
}

// CleanupRequest triggers a retention sweep with an explicit cutoff.
type CleanupRequest struct {
	OlderThanDays int `json:"older_than_days"`
}

// CleanupResponse reports how many expired tasks were removed.
type CleanupResponse struct {
	Removed int `json:"removed"`
}

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}
