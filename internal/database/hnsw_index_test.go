package database

import (
	"math/rand"
	"reflect"
	"testing"
)

func syntheticFaces(n, dim int) []StoredFace {
	rng := rand.New(rand.NewSource(7))
	faces := make([]StoredFace, n)
	for i := range faces {
		emb := make([]float32, dim)
		for d := range emb {
			emb[d] = rng.Float32()
		}
		faces[i] = StoredFace{ID: int64(i + 1), Embedding: emb}
	}
	return faces
}

func TestVectorIndexNeighborhoodRespectsEps(t *testing.T) {
	faces := []StoredFace{
		{ID: 1, Embedding: []float32{1, 0.01, 0}},
		{ID: 2, Embedding: []float32{1, 0.02, 0}},
		{ID: 3, Embedding: []float32{0, 1, 0}},
	}
	index := NewVectorIndex()
	index.Build(faces)

	ids := index.Neighborhood([]float32{1, 0, 0}, 0.1, 10)
	for _, id := range ids {
		if id == 3 {
			t.Errorf("face 3 is outside eps but was returned: %v", ids)
		}
	}
	if len(ids) != 2 {
		t.Errorf("expected faces 1 and 2 in the neighborhood, got %v", ids)
	}
}

// Rebuilding from the same faces must produce the same graph, so that
// neighborhood queries, and everything clustered on top of them, are
// reproducible run to run.
func TestVectorIndexRebuildConsistent(t *testing.T) {
	faces := syntheticFaces(1500, 8)

	first := NewVectorIndex()
	first.Build(faces)
	second := NewVectorIndex()
	second.Build(faces)

	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 20; i++ {
		query := faces[rng.Intn(len(faces))].Embedding
		a := first.Neighborhood(query, 0.3, 64)
		b := second.Neighborhood(query, 0.3, 64)
		if !reflect.DeepEqual(a, b) {
			t.Fatalf("query %d: rebuilt index disagrees: %v vs %v", i, a, b)
		}
	}
}
