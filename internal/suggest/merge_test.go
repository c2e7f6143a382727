package suggest

import (
	"context"
	"testing"
	"time"

	"github.com/jsvoboda/photo-curator/internal/config"
	"github.com/jsvoboda/photo-curator/internal/database"
)

type fakeFaceStore struct {
	faces []database.StoredFace
}

func (f *fakeFaceStore) ReplaceFaces(ctx context.Context, project, photoUID string, faces []database.StoredFace) error {
	return nil
}

func (f *fakeFaceStore) GetFaces(ctx context.Context, photoUID string) ([]database.StoredFace, error) {
	return nil, nil
}

func (f *fakeFaceStore) ListByProject(ctx context.Context, project string) ([]database.StoredFace, error) {
	return f.faces, nil
}

func (f *fakeFaceStore) ListByCluster(ctx context.Context, clusterID int64) ([]database.StoredFace, error) {
	var out []database.StoredFace
	for i := range f.faces {
		if f.faces[i].ClusterID == clusterID {
			out = append(out, f.faces[i])
		}
	}
	return out, nil
}

func (f *fakeFaceStore) HasFaces(ctx context.Context, photoUID string) (bool, error) {
	return len(f.faces) > 0, nil
}

func (f *fakeFaceStore) AssignClusters(ctx context.Context, assignments map[int64]int64, unclustered []int64) error {
	for i := range f.faces {
		if id, ok := assignments[f.faces[i].ID]; ok {
			f.faces[i].ClusterID = id
		}
	}
	return nil
}

func (f *fakeFaceStore) CountByProject(ctx context.Context, project string) (int, error) {
	return len(f.faces), nil
}

type fakeClusterStore struct {
	clusters map[int64]*database.Cluster
}

func (c *fakeClusterStore) Create(ctx context.Context, project string) (int64, error) {
	return 0, nil
}

func (c *fakeClusterStore) Get(ctx context.Context, id int64) (*database.Cluster, error) {
	return c.clusters[id], nil
}

func (c *fakeClusterStore) ListByProject(ctx context.Context, project string) ([]database.Cluster, error) {
	var out []database.Cluster
	for id := int64(0); id < 100; id++ {
		if cl, ok := c.clusters[id]; ok {
			out = append(out, *cl)
		}
	}
	return out, nil
}

func (c *fakeClusterStore) SetLabel(ctx context.Context, id int64, label string) error {
	c.clusters[id].Label = label
	return nil
}

func (c *fakeClusterStore) UpdateStats(ctx context.Context, id int64, memberCount int, representativeFaceID int64) error {
	c.clusters[id].MemberCount = memberCount
	c.clusters[id].RepresentativeFaceID = representativeFaceID
	return nil
}

func (c *fakeClusterStore) Delete(ctx context.Context, id int64) error {
	delete(c.clusters, id)
	return nil
}

type fakePhotoStore struct{}

func (p *fakePhotoStore) Upsert(ctx context.Context, photo *database.Photo) error { return nil }

func (p *fakePhotoStore) Get(ctx context.Context, uid string) (*database.Photo, error) {
	return nil, nil
}

func (p *fakePhotoStore) GetBatch(ctx context.Context, uids []string) (map[string]*database.Photo, error) {
	out := make(map[string]*database.Photo)
	for _, uid := range uids {
		out[uid] = &database.Photo{UID: uid, Width: 100, Height: 100, ImportedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	}
	return out, nil
}

func (p *fakePhotoStore) ListByProject(ctx context.Context, project string) ([]database.Photo, error) {
	return nil, nil
}

func (p *fakePhotoStore) SetCaption(ctx context.Context, uid, caption string) error { return nil }

func clusterFace(id, clusterID int64, embedding ...float32) database.StoredFace {
	return database.StoredFace{ID: id, PhotoUID: "photo", ClusterID: clusterID, Embedding: embedding, Quality: 0.9}
}

func fixture(faces []database.StoredFace, clusters map[int64]*database.Cluster, cfg config.MergeConfig) (*MergeService, *fakeFaceStore, *fakeClusterStore) {
	faceStore := &fakeFaceStore{faces: faces}
	clusterStore := &fakeClusterStore{clusters: clusters}
	return NewMergeService(faceStore, clusterStore, &fakePhotoStore{}, cfg), faceStore, clusterStore
}

func defaultMergeConfig() config.MergeConfig {
	return config.MergeConfig{SimilarityThreshold: 0.85, MaxCandidates: 5}
}

func TestSuggestionsAboveThreshold(t *testing.T) {
	faces := []database.StoredFace{
		// Clusters 1 and 2 point the same way, cluster 3 is orthogonal.
		clusterFace(1, 1, 1, 0.01, 0),
		clusterFace(2, 1, 1, 0.02, 0),
		clusterFace(3, 2, 1, 0.03, 0),
		clusterFace(4, 2, 1, 0.04, 0),
		clusterFace(5, 3, 0, 1, 0),
	}
	clusters := map[int64]*database.Cluster{
		1: {ID: 1, Label: "Alice"},
		2: {ID: 2},
		3: {ID: 3},
	}
	svc, _, _ := fixture(faces, clusters, defaultMergeConfig())

	suggestions, err := svc.Suggestions(context.Background(), "proj")
	if err != nil {
		t.Fatalf("Suggestions failed: %v", err)
	}
	if len(suggestions) != 1 {
		t.Fatalf("expected 1 suggestion, got %d: %+v", len(suggestions), suggestions)
	}
	s := suggestions[0]
	if s.ClusterID != 1 || s.OtherID != 2 {
		t.Errorf("expected suggestion for clusters 1 and 2, got %d and %d", s.ClusterID, s.OtherID)
	}
	if s.Similarity < 0.85 {
		t.Errorf("suggestion below threshold: %f", s.Similarity)
	}
}

func TestSuggestionsSkipBothLabeled(t *testing.T) {
	faces := []database.StoredFace{
		clusterFace(1, 1, 1, 0.01, 0),
		clusterFace(2, 2, 1, 0.02, 0),
	}
	clusters := map[int64]*database.Cluster{
		1: {ID: 1, Label: "Alice"},
		2: {ID: 2, Label: "Alena"},
	}
	svc, _, _ := fixture(faces, clusters, defaultMergeConfig())

	suggestions, err := svc.Suggestions(context.Background(), "proj")
	if err != nil {
		t.Fatalf("Suggestions failed: %v", err)
	}
	if len(suggestions) != 0 {
		t.Errorf("expected no suggestions for two labeled clusters, got %+v", suggestions)
	}
}

func TestSuggestionsPerClusterCap(t *testing.T) {
	// Four near-identical clusters produce six candidate pairs.
	faces := []database.StoredFace{
		clusterFace(1, 1, 1, 0.01, 0),
		clusterFace(2, 2, 1, 0.02, 0),
		clusterFace(3, 3, 1, 0.03, 0),
		clusterFace(4, 4, 1, 0.04, 0),
	}
	clusters := map[int64]*database.Cluster{
		1: {ID: 1}, 2: {ID: 2}, 3: {ID: 3}, 4: {ID: 4},
	}
	cfg := config.MergeConfig{SimilarityThreshold: 0.85, MaxCandidates: 1}
	svc, _, _ := fixture(faces, clusters, cfg)

	suggestions, err := svc.Suggestions(context.Background(), "proj")
	if err != nil {
		t.Fatalf("Suggestions failed: %v", err)
	}
	counts := make(map[int64]int)
	for _, s := range suggestions {
		counts[s.ClusterID]++
		counts[s.OtherID]++
	}
	for id, n := range counts {
		if n > 1 {
			t.Errorf("cluster %d appears in %d suggestions, cap is 1", id, n)
		}
	}
}

func TestSuggestionsRankedBySimilarity(t *testing.T) {
	faces := []database.StoredFace{
		clusterFace(1, 1, 1, 0, 0),
		clusterFace(2, 2, 1, 0.02, 0),  // very close to cluster 1
		clusterFace(3, 3, 0.9, 0.4, 0), // close but less so
	}
	clusters := map[int64]*database.Cluster{
		1: {ID: 1}, 2: {ID: 2}, 3: {ID: 3},
	}
	cfg := config.MergeConfig{SimilarityThreshold: 0.5, MaxCandidates: 5}
	svc, _, _ := fixture(faces, clusters, cfg)

	suggestions, err := svc.Suggestions(context.Background(), "proj")
	if err != nil {
		t.Fatalf("Suggestions failed: %v", err)
	}
	for i := 1; i < len(suggestions); i++ {
		if suggestions[i].Similarity > suggestions[i-1].Similarity {
			t.Errorf("suggestions not ranked descending: %+v", suggestions)
		}
	}
}

func TestAcceptLabeledSurvives(t *testing.T) {
	faces := []database.StoredFace{
		clusterFace(1, 1, 1, 0.01, 0),
		clusterFace(2, 1, 1, 0.02, 0),
		clusterFace(3, 2, 1, 0.03, 0),
	}
	clusters := map[int64]*database.Cluster{
		1: {ID: 1},
		2: {ID: 2, Label: "Alice"},
	}
	svc, faceStore, clusterStore := fixture(faces, clusters, defaultMergeConfig())

	if err := svc.Accept(context.Background(), 1, 2); err != nil {
		t.Fatalf("Accept failed: %v", err)
	}

	if _, ok := clusterStore.clusters[1]; ok {
		t.Error("unlabeled cluster should have been absorbed")
	}
	survivor := clusterStore.clusters[2]
	if survivor == nil {
		t.Fatal("labeled cluster missing after merge")
	}
	if survivor.MemberCount != 3 {
		t.Errorf("expected 3 members after merge, got %d", survivor.MemberCount)
	}
	if survivor.RepresentativeFaceID == 0 {
		t.Error("expected representative recomputed after merge")
	}
	for i := range faceStore.faces {
		if faceStore.faces[i].ClusterID != 2 {
			t.Errorf("face %d not moved to surviving cluster", faceStore.faces[i].ID)
		}
	}
}

func TestAcceptLowerIDSurvivesWhenUnlabeled(t *testing.T) {
	faces := []database.StoredFace{
		clusterFace(1, 5, 1, 0.01, 0),
		clusterFace(2, 9, 1, 0.02, 0),
	}
	clusters := map[int64]*database.Cluster{
		5: {ID: 5},
		9: {ID: 9},
	}
	svc, _, clusterStore := fixture(faces, clusters, defaultMergeConfig())

	if err := svc.Accept(context.Background(), 9, 5); err != nil {
		t.Fatalf("Accept failed: %v", err)
	}
	if _, ok := clusterStore.clusters[5]; !ok {
		t.Error("expected lower id to survive")
	}
	if _, ok := clusterStore.clusters[9]; ok {
		t.Error("expected higher id to be absorbed")
	}
}

func TestAcceptUnknownCluster(t *testing.T) {
	svc, _, _ := fixture(nil, map[int64]*database.Cluster{}, defaultMergeConfig())
	if err := svc.Accept(context.Background(), 1, 2); err != database.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
