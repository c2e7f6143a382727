package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jsvoboda/photo-curator/internal/database"
	"github.com/jsvoboda/photo-curator/internal/jobs"
)

// JobsHandler exposes the durable job queue: enqueue, inspect, cancel
// and an SSE stream of pool events.
type JobsHandler struct {
	store  database.JobStore
	events *jobs.Broadcaster
}

// NewJobsHandler creates a jobs handler.
func NewJobsHandler(store database.JobStore, events *jobs.Broadcaster) *JobsHandler {
	return &JobsHandler{store: store, events: events}
}

type enqueueRequest struct {
	Kind    database.JobKind    `json:"kind"`
	Backend database.JobBackend `json:"backend,omitempty"`
	Project string              `json:"project"`
	Payload json.RawMessage     `json:"payload,omitempty"`
}

// jobResponse is the wire shape of a job record.
type jobResponse struct {
	ID              string     `json:"id"`
	Kind            string     `json:"kind"`
	Status          string     `json:"status"`
	Backend         string     `json:"backend"`
	Project         string     `json:"project"`
	WorkerID        string     `json:"worker_id,omitempty"`
	Progress        float64    `json:"progress"`
	Error           string     `json:"error,omitempty"`
	CancelRequested bool       `json:"cancel_requested,omitempty"`
	LeaseExpiresAt  *time.Time `json:"lease_expires_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

func toJobResponse(j *database.Job) jobResponse {
	return jobResponse{
		ID:              j.ID,
		Kind:            string(j.Kind),
		Status:          string(j.Status),
		Backend:         string(j.Backend),
		Project:         j.Project,
		WorkerID:        j.WorkerID,
		Progress:        j.Progress,
		Error:           j.Error,
		CancelRequested: j.CancelRequested,
		LeaseExpiresAt:  j.LeaseExpiresAt,
		CreatedAt:       j.CreatedAt,
	}
}

func validKind(kind database.JobKind) bool {
	switch kind {
	case database.KindDetectFaces, database.KindEmbed, database.KindCluster, database.KindCaption:
		return true
	}
	return false
}

// Enqueue inserts a queued job. Cluster jobs are exclusive per project;
// a concurrent one is rejected with 409.
func (h *JobsHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if !validKind(req.Kind) {
		respondError(w, http.StatusBadRequest, "unknown job kind")
		return
	}
	if req.Project == "" {
		respondError(w, http.StatusBadRequest, "project is required")
		return
	}
	if req.Backend == "" {
		req.Backend = database.BackendCPU
	}

	id, err := h.store.Enqueue(r.Context(), req.Kind, req.Backend, req.Project, req.Payload)
	if err != nil {
		if errors.Is(err, database.ErrClusterJobActive) {
			respondError(w, http.StatusConflict, err.Error())
			return
		}
		log.Printf("enqueue failed: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to enqueue job")
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]string{"id": id})
}

// List returns recent jobs, newest first.
func (h *JobsHandler) List(w http.ResponseWriter, r *http.Request) {
	project := r.URL.Query().Get("project")
	limit := queryInt(r, "limit", 50)

	list, err := h.store.List(r.Context(), project, limit)
	if err != nil {
		log.Printf("listing jobs failed: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}

	out := make([]jobResponse, 0, len(list))
	for i := range list {
		out = append(out, toJobResponse(&list[i]))
	}
	respondJSON(w, http.StatusOK, map[string]any{"jobs": out})
}

// Get returns one job by id.
func (h *JobsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, err := h.store.Get(r.Context(), id)
	if err != nil {
		log.Printf("loading job %s failed: %v", sanitizeForLog(id), err)
		respondError(w, http.StatusInternalServerError, "failed to load job")
		return
	}
	if job == nil {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}
	respondJSON(w, http.StatusOK, toJobResponse(job))
}

// Cancel requests cooperative cancellation. The handler observes the
// flag at its next heartbeat; cancelling a terminal job is a no-op.
func (h *JobsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, err := h.store.Get(r.Context(), id)
	if err != nil {
		log.Printf("loading job %s failed: %v", sanitizeForLog(id), err)
		respondError(w, http.StatusInternalServerError, "failed to load job")
		return
	}
	if job == nil {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}

	if err := h.store.RequestCancel(r.Context(), id); err != nil {
		log.Printf("cancelling job %s failed: %v", sanitizeForLog(id), err)
		respondError(w, http.StatusInternalServerError, "failed to cancel job")
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "cancel requested"})
}

// Recover marks running jobs with expired leases as failed. The pool
// does this at startup; the endpoint exists for operators.
func (h *JobsHandler) Recover(w http.ResponseWriter, r *http.Request) {
	recovered, err := h.store.RecoverZombies(r.Context(), time.Now())
	if err != nil {
		log.Printf("crash recovery failed: %v", err)
		respondError(w, http.StatusInternalServerError, "recovery failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"recovered": recovered})
}

// Events streams pool events over SSE, optionally filtered by project.
func (h *JobsHandler) Events(w http.ResponseWriter, r *http.Request) {
	streamEvents(w, r, h.events, r.URL.Query().Get("project"))
}
