package clustering

import (
	"math/rand"
	"reflect"
	"testing"

	"github.com/jsvoboda/photo-curator/internal/database"
)

func face(id int64, embedding ...float32) database.StoredFace {
	return database.StoredFace{ID: id, PhotoUID: "photo", Embedding: embedding}
}

// Two tight groups on orthogonal axes plus one far outlier.
func twoGroupFaces() []database.StoredFace {
	return []database.StoredFace{
		face(1, 1, 0.01, 0, 0),
		face(2, 1, 0.02, 0, 0),
		face(3, 1, 0, 0.01, 0),
		face(4, 0.01, 1, 0, 0),
		face(5, 0.02, 1, 0, 0),
		face(6, 0, 1, 0.01, 0),
		face(7, 0, 0, 0, 1),
	}
}

func TestClusterTwoGroups(t *testing.T) {
	result := Cluster(twoGroupFaces(), Params{Eps: 0.35, MinSamples: 2})

	if result.NumClusters != 2 {
		t.Fatalf("expected 2 clusters, got %d", result.NumClusters)
	}
	if result.Labels[1] != result.Labels[2] || result.Labels[2] != result.Labels[3] {
		t.Errorf("group A split across clusters: %v", result.Labels)
	}
	if result.Labels[4] != result.Labels[5] || result.Labels[5] != result.Labels[6] {
		t.Errorf("group B split across clusters: %v", result.Labels)
	}
	if result.Labels[1] == result.Labels[4] {
		t.Error("distinct groups merged into one cluster")
	}
	if len(result.Unclustered) != 1 || result.Unclustered[0] != 7 {
		t.Errorf("expected face 7 as noise, got %v", result.Unclustered)
	}
}

func TestClusterNoiseNeverDropped(t *testing.T) {
	result := Cluster(twoGroupFaces(), Params{Eps: 0.35, MinSamples: 2})

	seen := make(map[int64]bool)
	for id := range result.Labels {
		seen[id] = true
	}
	for _, id := range result.Unclustered {
		if seen[id] {
			t.Errorf("face %d is both clustered and unclustered", id)
		}
		seen[id] = true
	}
	if len(seen) != 7 {
		t.Errorf("expected all 7 faces accounted for, got %d", len(seen))
	}
}

func TestClusterDeterministic(t *testing.T) {
	first := Cluster(twoGroupFaces(), Params{Eps: 0.35, MinSamples: 2})
	for i := 0; i < 5; i++ {
		again := Cluster(twoGroupFaces(), Params{Eps: 0.35, MinSamples: 2})
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d differs: %+v vs %+v", i, again, first)
		}
	}
}

// largeFaceSet exceeds bruteForceLimit so neighborhoods come from the
// vector index: three groups around orthogonal centers plus scattered
// noise, generated from a fixed seed.
func largeFaceSet() []database.StoredFace {
	rng := rand.New(rand.NewSource(99))
	const dim = 8

	var faces []database.StoredFace
	id := int64(0)
	for center := 0; center < 3; center++ {
		for i := 0; i < 400; i++ {
			emb := make([]float32, dim)
			emb[center] = 1
			for d := range emb {
				emb[d] += (rng.Float32() - 0.5) * 0.1
			}
			id++
			faces = append(faces, face(id, emb...))
		}
	}
	for i := 0; i < 30; i++ {
		emb := make([]float32, dim)
		for d := range emb {
			emb[d] = rng.Float32() - 0.5
		}
		id++
		faces = append(faces, face(id, emb...))
	}
	return faces
}

func TestClusterDeterministicAboveBruteForceLimit(t *testing.T) {
	faces := largeFaceSet()
	if len(faces) <= bruteForceLimit {
		t.Fatalf("face set too small to exercise the index path: %d", len(faces))
	}
	params := Params{Eps: 0.2, MinSamples: 4}

	first := Cluster(faces, params)
	if first.NumClusters < 3 {
		t.Fatalf("expected at least 3 clusters, got %d", first.NumClusters)
	}
	for i := 0; i < 3; i++ {
		again := Cluster(faces, params)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d differs on the index-backed path", i)
		}
	}
}

func TestClusterMinSamplesRaisesNoise(t *testing.T) {
	faces := []database.StoredFace{
		face(1, 1, 0.01, 0, 0),
		face(2, 1, 0.02, 0, 0),
	}

	// A pair is a cluster at min_samples=2 but noise at 3.
	result := Cluster(faces, Params{Eps: 0.35, MinSamples: 2})
	if result.NumClusters != 1 {
		t.Errorf("expected 1 cluster at min_samples=2, got %d", result.NumClusters)
	}

	result = Cluster(faces, Params{Eps: 0.35, MinSamples: 3})
	if result.NumClusters != 0 {
		t.Errorf("expected no clusters at min_samples=3, got %d", result.NumClusters)
	}
	if len(result.Unclustered) != 2 {
		t.Errorf("expected both faces unclustered, got %v", result.Unclustered)
	}
}

func TestClusterSkipsCorruptEmbeddings(t *testing.T) {
	faces := []database.StoredFace{
		face(1, 1, 0.01, 0, 0),
		face(2, 1, 0.02, 0, 0),
		face(3), // missing embedding
		{ID: 4, PhotoUID: "photo", Embedding: []float32{1, 0}}, // wrong length
	}

	result := Cluster(faces, Params{Eps: 0.35, MinSamples: 2})
	if result.NumClusters != 1 {
		t.Fatalf("expected 1 cluster, got %d", result.NumClusters)
	}
	if _, ok := result.Labels[3]; ok {
		t.Error("face with missing embedding was clustered")
	}
	if _, ok := result.Labels[4]; ok {
		t.Error("face with corrupt embedding was clustered")
	}
	if len(result.Unclustered) != 2 {
		t.Errorf("expected 2 unclustered faces, got %v", result.Unclustered)
	}
}

func TestClusterEmptyInput(t *testing.T) {
	result := Cluster(nil, Params{Eps: 0.35, MinSamples: 2})
	if result.NumClusters != 0 || len(result.Labels) != 0 || len(result.Unclustered) != 0 {
		t.Errorf("expected empty result, got %+v", result)
	}
}
