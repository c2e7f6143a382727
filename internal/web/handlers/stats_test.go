package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jsvoboda/photo-curator/internal/database"
	"github.com/jsvoboda/photo-curator/internal/perf"
)

type fakeRunStore struct {
	byKind map[database.JobKind][]database.RunSample
}

func (s *fakeRunStore) Record(ctx context.Context, sample *database.RunSample) error {
	return nil
}

func (s *fakeRunStore) RecentByKind(ctx context.Context, kind database.JobKind, limit int) ([]database.RunSample, error) {
	samples := s.byKind[kind]
	if len(samples) > limit {
		samples = samples[:limit]
	}
	return samples, nil
}

type fakeEmbeddingCounter struct {
	count int
}

func (s *fakeEmbeddingCounter) Save(ctx context.Context, emb *database.StoredEmbedding) error {
	return nil
}

func (s *fakeEmbeddingCounter) Has(ctx context.Context, photoUID, modelID, embeddingType string) (bool, error) {
	return false, nil
}

func (s *fakeEmbeddingCounter) CountByProject(ctx context.Context, project string) (int, error) {
	return s.count, nil
}

func TestStatsReportsCountsAndTrends(t *testing.T) {
	// Two full windows of embed samples: recent ones five times slower.
	runs := &fakeRunStore{byKind: map[database.JobKind][]database.RunSample{}}
	for i := 0; i < 2; i++ {
		runs.byKind[database.KindEmbed] = append(runs.byKind[database.KindEmbed],
			database.RunSample{Kind: database.KindEmbed, DurationMs: 5000, Success: true},
		)
	}
	for i := 0; i < 2; i++ {
		runs.byKind[database.KindEmbed] = append(runs.byKind[database.KindEmbed],
			database.RunSample{Kind: database.KindEmbed, DurationMs: 1000, Success: true},
		)
	}

	h := NewStatsHandler(
		&fakeFaceLister{faceCount: 42},
		&fakeEmbeddingCounter{count: 17},
		perf.NewTracker(runs),
	)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats?project=vacation&window=2", nil)
	rec := httptest.NewRecorder()
	h.Get(rec, req)

	assertStatusCode(t, rec, http.StatusOK)
	var resp statsResponse
	parseJSONResponse(t, rec, &resp)
	if resp.Faces != 42 || resp.Embeddings != 17 {
		t.Errorf("counters = %d/%d, want 42/17", resp.Faces, resp.Embeddings)
	}
	if len(resp.Trends) != 4 {
		t.Fatalf("got %d trends, want one per job kind", len(resp.Trends))
	}

	var embedTrend *trendResponse
	for i := range resp.Trends {
		if resp.Trends[i].Kind == "embed" {
			embedTrend = &resp.Trends[i]
		}
	}
	if embedTrend == nil {
		t.Fatal("no embed trend")
	}
	if !embedTrend.Conclusive || !embedTrend.Regression {
		t.Errorf("embed trend should flag a regression: %+v", embedTrend)
	}

	// Kinds with no samples stay inconclusive.
	for _, tr := range resp.Trends {
		if tr.Kind != "embed" && tr.Conclusive {
			t.Errorf("trend for %s marked conclusive without samples", tr.Kind)
		}
	}
}

func TestStatsRequiresProject(t *testing.T) {
	h := NewStatsHandler(&fakeFaceLister{}, &fakeEmbeddingCounter{}, perf.NewTracker(&fakeRunStore{}))

	rec := httptest.NewRecorder()
	h.Get(rec, httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil))
	assertStatusCode(t, rec, http.StatusBadRequest)
}
