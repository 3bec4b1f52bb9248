package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/pzielinski/tourney-api/internal/store"
	"github.com/pzielinski/tourney-api/internal/task"
)

// TaskService is the slice of the task engine the HTTP layer consumes.
// Submission is not exposed over HTTP: jobs are closures and can only be
// constructed in-process.
type TaskService interface {
	GetStatus(ctx context.Context, id uuid.UUID) (*task.Record, error)
	Cancel(ctx context.Context, id uuid.UUID) bool
	ListForOwner(ctx context.Context, owner uuid.UUID, status *task.Status, limit int) ([]*task.Record, error)
	Cleanup(ctx context.Context, olderThan time.Duration) (int, error)
	QueueStats() task.Stats
}

// TaskHandler serves the task status/control endpoints.
type TaskHandler struct {
	service TaskService
	logger  *slog.Logger
}

// NewTaskHandler creates a TaskHandler.
func NewTaskHandler(service TaskService, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{
		service: service,
		logger:  logger.With("component", "task_handler"),
	}
}

// RegisterRoutes mounts the task endpoints on the given router.
func (h *TaskHandler) RegisterRoutes(r chi.Router) {
	r.Get("/tasks", h.ListTasks)
	r.Get("/tasks/stats", h.GetStats)
	r.Post("/tasks/cleanup", h.Cleanup)
	r.Get("/tasks/{id}", h.GetTask)
	r.Delete("/tasks/{id}", h.CancelTask)
}

// GetTask handles GET /tasks/{id}.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	rec, err := h.service.GetStatus(r.Context(), id)
	if err != nil {
		if store.IsNotFoundError(err) {
			respondWithError(w, http.StatusNotFound, "task not found")
			return
		}
		h.logger.Error("failed to get task", "task_id", id, "error", err)
		respondWithError(w, http.StatusInternalServerError, "failed to get task")
		return
	}

	respondWithJSON(w, http.StatusOK, NewTaskResponse(rec))
}

// CancelTask handles DELETE /tasks/{id}. Cancellation only succeeds while
// the task is still pending; anything else reports a conflict.
func (h *TaskHandler) CancelTask(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	cancelled := h.service.Cancel(r.Context(), id)
	if !cancelled {
		respondWithJSON(w, http.StatusConflict, CancelResponse{ID: id, Cancelled: false})
		return
	}

	respondWithJSON(w, http.StatusOK, CancelResponse{ID: id, Cancelled: true})
}

// ListTasks handles GET /tasks?owner=<uuid>&status=<status>&limit=<n>.
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	ownerParam := r.URL.Query().Get("owner")
	owner, err := uuid.Parse(ownerParam)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "owner query parameter must be a valid UUID")
		return
	}

	var status *task.Status
	if s := r.URL.Query().Get("status"); s != "" {
		st := task.Status(s)
		if !st.Valid() {
			respondWithError(w, http.StatusBadRequest, "unknown status filter")
			return
		}
		status = &st
	}

	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		limit, err = strconv.Atoi(l)
		if err != nil || limit < 0 {
			respondWithError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
	}

	recs, err := h.service.ListForOwner(r.Context(), owner, status, limit)
	if err != nil {
		h.logger.Error("failed to list tasks", "owner_id", owner, "error", err)
		respondWithError(w, http.StatusInternalServerError, "failed to list tasks")
		return
	}

	out := make([]TaskResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, NewTaskResponse(rec))
	}
	respondWithJSON(w, http.StatusOK, out)
}

// GetStats handles GET /tasks/stats.
func (h *TaskHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.service.QueueStats())
}

// Cleanup handles POST /tasks/cleanup.
func (h *TaskHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	var req CleanupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.OlderThanDays <= 0 {
		respondWithError(w, http.StatusBadRequest, "older_than_days must be positive")
		return
	}

	removed, err := h.service.Cleanup(r.Context(), time.Duration(req.OlderThanDays)*24*time.Hour)
	if err != nil {
		h.logger.Error("cleanup failed", "error", err)
		respondWithError(w, http.StatusInternalServerError, "cleanup failed")
		return
	}

	respondWithJSON(w, http.StatusOK, CleanupResponse{Removed: removed})
}

// pathID extracts and validates the {id} path parameter, writing a 400
// response on failure.
func (h *TaskHandler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "task id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

// respondWithJSON writes a JSON response with the given status code.
func respondWithJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// respondWithError writes a uniform JSON error payload.
func respondWithError(w http.ResponseWriter, status int, message string) {
	respondWithJSON(w, status, ErrorResponse{Error: message})
}
