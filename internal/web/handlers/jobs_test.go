package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jsvoboda/photo-curator/internal/database"
	"github.com/jsvoboda/photo-curator/internal/jobs"
)

func TestEnqueueJob(t *testing.T) {
	store := newFakeJobStore()
	h := NewJobsHandler(store, jobs.NewBroadcaster())

	body := `{"kind":"detect_faces","project":"vacation","payload":{"photo_uids":["p1"]}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Enqueue(rec, req)

	assertStatusCode(t, rec, http.StatusAccepted)
	var resp map[string]string
	parseJSONResponse(t, rec, &resp)
	if resp["id"] == "" {
		t.Fatal("no job id returned")
	}

	job, _ := store.Get(context.Background(), resp["id"])
	if job == nil || job.Status != database.JobQueued {
		t.Errorf("enqueued job not queued: %+v", job)
	}
	if job.Backend != database.BackendCPU {
		t.Errorf("backend defaulted to %q, want cpu", job.Backend)
	}
}

func TestEnqueueRejectsUnknownKind(t *testing.T) {
	h := NewJobsHandler(newFakeJobStore(), jobs.NewBroadcaster())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", strings.NewReader(`{"kind":"mine_bitcoin","project":"x"}`))
	rec := httptest.NewRecorder()
	h.Enqueue(rec, req)

	assertStatusCode(t, rec, http.StatusBadRequest)
	assertJSONError(t, rec, "unknown job kind")
}

func TestEnqueueRequiresProject(t *testing.T) {
	h := NewJobsHandler(newFakeJobStore(), jobs.NewBroadcaster())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", strings.NewReader(`{"kind":"embed"}`))
	rec := httptest.NewRecorder()
	h.Enqueue(rec, req)

	assertStatusCode(t, rec, http.StatusBadRequest)
}

func TestEnqueueSecondClusterJobConflicts(t *testing.T) {
	store := newFakeJobStore()
	h := NewJobsHandler(store, jobs.NewBroadcaster())

	body := `{"kind":"cluster","project":"vacation"}`
	rec := httptest.NewRecorder()
	h.Enqueue(rec, httptest.NewRequest(http.MethodPost, "/api/v1/jobs", strings.NewReader(body)))
	assertStatusCode(t, rec, http.StatusAccepted)

	rec = httptest.NewRecorder()
	h.Enqueue(rec, httptest.NewRequest(http.MethodPost, "/api/v1/jobs", strings.NewReader(body)))
	assertStatusCode(t, rec, http.StatusConflict)
}

func TestGetJob(t *testing.T) {
	store := newFakeJobStore()
	h := NewJobsHandler(store, jobs.NewBroadcaster())
	id, _ := store.Enqueue(context.Background(), database.KindEmbed, database.BackendCPU, "vacation", nil)

	req := requestWithChiParams(httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+id, nil), map[string]string{"id": id})
	rec := httptest.NewRecorder()
	h.Get(rec, req)

	assertStatusCode(t, rec, http.StatusOK)
	var resp jobResponse
	parseJSONResponse(t, rec, &resp)
	if resp.ID != id || resp.Kind != "embed" || resp.Status != "queued" {
		t.Errorf("unexpected job response %+v", resp)
	}
}

func TestGetJobNotFound(t *testing.T) {
	h := NewJobsHandler(newFakeJobStore(), jobs.NewBroadcaster())

	req := requestWithChiParams(httptest.NewRequest(http.MethodGet, "/api/v1/jobs/nope", nil), map[string]string{"id": "nope"})
	rec := httptest.NewRecorder()
	h.Get(rec, req)

	assertStatusCode(t, rec, http.StatusNotFound)
}

func TestCancelSetsFlag(t *testing.T) {
	store := newFakeJobStore()
	h := NewJobsHandler(store, jobs.NewBroadcaster())
	id, _ := store.Enqueue(context.Background(), database.KindEmbed, database.BackendCPU, "vacation", nil)

	req := requestWithChiParams(httptest.NewRequest(http.MethodDelete, "/api/v1/jobs/"+id, nil), map[string]string{"id": id})
	rec := httptest.NewRecorder()
	h.Cancel(rec, req)

	assertStatusCode(t, rec, http.StatusAccepted)
	job, _ := store.Get(context.Background(), id)
	if !job.CancelRequested {
		t.Error("cancel flag not set")
	}
}

func TestListJobs(t *testing.T) {
	store := newFakeJobStore()
	h := NewJobsHandler(store, jobs.NewBroadcaster())
	ctx := context.Background()
	store.Enqueue(ctx, database.KindEmbed, database.BackendCPU, "vacation", nil)
	store.Enqueue(ctx, database.KindCluster, database.BackendCPU, "work", nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs?project=vacation", nil)
	rec := httptest.NewRecorder()
	h.List(rec, req)

	assertStatusCode(t, rec, http.StatusOK)
	var resp struct {
		Jobs []jobResponse `json:"jobs"`
	}
	parseJSONResponse(t, rec, &resp)
	if len(resp.Jobs) != 1 || resp.Jobs[0].Project != "vacation" {
		t.Errorf("unexpected jobs list %+v", resp.Jobs)
	}
}

func TestRecoverEndpoint(t *testing.T) {
	store := newFakeJobStore()
	h := NewJobsHandler(store, jobs.NewBroadcaster())
	ctx := context.Background()

	id, _ := store.Enqueue(ctx, database.KindEmbed, database.BackendCPU, "vacation", nil)
	expired := time.Now().Add(-time.Minute)
	store.mu.Lock()
	store.jobs[id].Status = database.JobRunning
	store.jobs[id].LeaseExpiresAt = &expired
	store.mu.Unlock()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs/recover", nil)
	rec := httptest.NewRecorder()
	h.Recover(rec, req)

	assertStatusCode(t, rec, http.StatusOK)
	var resp map[string]int
	parseJSONResponse(t, rec, &resp)
	if resp["recovered"] != 1 {
		t.Errorf("recovered = %d, want 1", resp["recovered"])
	}
}
