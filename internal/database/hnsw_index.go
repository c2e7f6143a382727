package database

import (
	"math/rand"
	"sync"

	"github.com/coder/hnsw"
)

// HNSWMaxNeighbors is the M parameter of the HNSW graph.
const HNSWMaxNeighbors = 16

// hnswSeed fixes the level-generation RNG. Insertion order is already
// deterministic, so with a fixed seed identical face sets build identical
// graphs and repeated clustering runs agree.
const hnswSeed = 1

// hnswOverfetch controls how many candidates an eps-neighborhood query
// fetches before filtering by distance. Region queries over an HNSW graph
// are approximate; over-fetching keeps the recall high enough for DBSCAN.
const hnswOverfetch = 4

// VectorIndex is an in-memory HNSW index over face embeddings. The
// clustering engine uses it for eps-neighborhood queries so DBSCAN does
// not degrade to O(n^2) on large collections.
type VectorIndex struct {
	graph      *hnsw.Graph[int64]
	embeddings map[int64][]float32
	mu         sync.RWMutex
}

// NewVectorIndex creates an empty index.
func NewVectorIndex() *VectorIndex {
	return &VectorIndex{
		embeddings: make(map[int64][]float32),
	}
}

// Build replaces the index contents with the given faces. Faces with empty
// embeddings are ignored.
func (v *VectorIndex) Build(faces []StoredFace) {
	v.mu.Lock()
	defer v.mu.Unlock()

	g := hnsw.NewGraph[int64]()
	g.M = HNSWMaxNeighbors
	g.Ml = 1.0 / float64(HNSWMaxNeighbors) // Standard HNSW formula
	g.Distance = hnsw.CosineDistance
	g.Rng = rand.New(rand.NewSource(hnswSeed))

	v.embeddings = make(map[int64][]float32, len(faces))
	for i := range faces {
		face := &faces[i]
		if len(face.Embedding) == 0 {
			continue
		}
		g.Add(hnsw.MakeNode(face.ID, face.Embedding))
		v.embeddings[face.ID] = face.Embedding
	}
	v.graph = g
}

// Len returns the number of indexed embeddings.
func (v *VectorIndex) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.embeddings)
}

// Neighborhood returns the ids of indexed faces whose exact cosine distance
// to the query is at most eps, up to max results. Distances are recomputed
// from the stored embeddings, so the approximate graph only affects recall,
// never correctness of the reported distances.
func (v *VectorIndex) Neighborhood(query []float32, eps float64, max int) []int64 {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.graph == nil || len(v.embeddings) == 0 {
		return nil
	}

	k := max * hnswOverfetch
	if k > len(v.embeddings) {
		k = len(v.embeddings)
	}

	neighbors := v.graph.Search(query, k)
	ids := make([]int64, 0, max)
	for _, n := range neighbors {
		if CosineDistance(query, n.Value) <= eps {
			ids = append(ids, n.Key)
			if len(ids) >= max {
				break
			}
		}
	}
	return ids
}

// Embedding returns the stored embedding for an id, or nil if unknown.
func (v *VectorIndex) Embedding(id int64) []float32 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.embeddings[id]
}
