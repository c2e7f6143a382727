package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jsvoboda/photo-curator/internal/database"
)

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}

// fakeJobStore is an in-memory JobStore for handler tests.
type fakeJobStore struct {
	mu    sync.Mutex
	seq   int
	order []string
	jobs  map[string]*database.Job
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{jobs: make(map[string]*database.Job)}
}

func (s *fakeJobStore) Enqueue(ctx context.Context, kind database.JobKind, backend database.JobBackend, project string, payload []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if kind == database.KindCluster {
		for _, j := range s.jobs {
			if j.Kind == database.KindCluster && j.Project == project && !j.Status.IsTerminal() {
				return "", database.ErrClusterJobActive
			}
		}
	}
	s.seq++
	id := fmt.Sprintf("job-%d", s.seq)
	s.jobs[id] = &database.Job{
		ID:        id,
		Kind:      kind,
		Status:    database.JobQueued,
		Backend:   backend,
		Project:   project,
		Payload:   payload,
		CreatedAt: time.Now(),
	}
	s.order = append(s.order, id)
	return id, nil
}

func (s *fakeJobStore) NextQueued(ctx context.Context) (*database.Job, error) { return nil, nil }

func (s *fakeJobStore) Claim(ctx context.Context, jobID, workerID string, leaseSeconds int) (bool, error) {
	return false, nil
}

func (s *fakeJobStore) Heartbeat(ctx context.Context, jobID, workerID string, progress float64, leaseSeconds int) (database.HeartbeatState, error) {
	return database.HeartbeatState{}, nil
}

func (s *fakeJobStore) Complete(ctx context.Context, jobID string, success bool, errMsg string) error {
	return nil
}

func (s *fakeJobStore) RequestCancel(ctx context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[jobID]; ok {
		j.CancelRequested = true
	}
	return nil
}

func (s *fakeJobStore) RecoverZombies(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	recovered := 0
	for _, j := range s.jobs {
		if j.Status == database.JobRunning && j.LeaseExpiresAt != nil && j.LeaseExpiresAt.Before(now) {
			j.Status = database.JobFailed
			j.Error = "lease expired"
			recovered++
		}
	}
	return recovered, nil
}

func (s *fakeJobStore) Get(ctx context.Context, jobID string) (*database.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok {
		return nil, nil
	}
	copied := *j
	return &copied, nil
}

func (s *fakeJobStore) List(ctx context.Context, project string, limit int) ([]database.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []database.Job
	for i := len(s.order) - 1; i >= 0 && len(out) < limit; i-- {
		j := s.jobs[s.order[i]]
		if project == "" || j.Project == project {
			out = append(out, *j)
		}
	}
	return out, nil
}

func (s *fakeJobStore) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int, error) {
	return 0, nil
}

// fakeClusterStore is an in-memory ClusterStore for handler tests.
type fakeClusterStore struct {
	mu       sync.Mutex
	clusters map[int64]*database.Cluster
}

func newFakeClusterStore() *fakeClusterStore {
	return &fakeClusterStore{clusters: make(map[int64]*database.Cluster)}
}

func (s *fakeClusterStore) Create(ctx context.Context, project string) (int64, error) {
	return 0, nil
}

func (s *fakeClusterStore) Get(ctx context.Context, id int64) (*database.Cluster, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clusters[id]
	if !ok {
		return nil, nil
	}
	copied := *c
	return &copied, nil
}

func (s *fakeClusterStore) ListByProject(ctx context.Context, project string) ([]database.Cluster, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []database.Cluster
	for _, c := range s.clusters {
		if c.Project == project {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (s *fakeClusterStore) SetLabel(ctx context.Context, id int64, label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.clusters[id]; ok {
		c.Label = label
	}
	return nil
}

func (s *fakeClusterStore) UpdateStats(ctx context.Context, id int64, memberCount int, representativeFaceID int64) error {
	return nil
}

func (s *fakeClusterStore) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clusters, id)
	return nil
}

// fakeFaceLister serves cluster membership queries.
type fakeFaceLister struct {
	byCluster map[int64][]database.StoredFace
	faceCount int
}

func (s *fakeFaceLister) ReplaceFaces(ctx context.Context, project, photoUID string, faces []database.StoredFace) error {
	return nil
}

func (s *fakeFaceLister) GetFaces(ctx context.Context, photoUID string) ([]database.StoredFace, error) {
	return nil, nil
}

func (s *fakeFaceLister) ListByProject(ctx context.Context, project string) ([]database.StoredFace, error) {
	return nil, nil
}

func (s *fakeFaceLister) ListByCluster(ctx context.Context, clusterID int64) ([]database.StoredFace, error) {
	return s.byCluster[clusterID], nil
}

func (s *fakeFaceLister) HasFaces(ctx context.Context, photoUID string) (bool, error) {
	return false, nil
}

func (s *fakeFaceLister) AssignClusters(ctx context.Context, assignments map[int64]int64, unclustered []int64) error {
	return nil
}

func (s *fakeFaceLister) CountByProject(ctx context.Context, project string) (int, error) {
	return s.faceCount, nil
}
