package clustering

import (
	"sort"

	"github.com/jsvoboda/photo-curator/internal/database"
)

// Below this face count neighborhoods are computed exactly by pairwise
// scan; above it the HNSW index takes over.
const bruteForceLimit = 1000

// Cap on neighborhood size for index queries. DBSCAN only needs to know
// whether a point is a core point and which points are reachable; clusters
// denser than this still connect through their members.
const neighborhoodCap = 256

// Result is the outcome of one DBSCAN run over a face set.
type Result struct {
	// Labels maps face id to a run-local cluster number starting at 1.
	// Noise faces are absent from the map.
	Labels map[int64]int
	// Unclustered lists faces that did not satisfy the density criterion
	// plus faces whose embedding was unusable. Never silently dropped.
	Unclustered []int64
	NumClusters int
}

// Cluster runs density-based clustering over cosine distance between face
// embeddings. Deterministic given identical faces and parameters: faces
// are visited in input order and neighborhoods expand in face-id order.
func Cluster(faces []database.StoredFace, params Params) *Result {
	result := &Result{Labels: make(map[int64]int)}

	valid := make([]database.StoredFace, 0, len(faces))
	dim := 0
	for i := range faces {
		f := &faces[i]
		if len(f.Embedding) == 0 {
			result.Unclustered = append(result.Unclustered, f.ID)
			continue
		}
		if dim == 0 {
			dim = len(f.Embedding)
		}
		if len(f.Embedding) != dim {
			// Corrupt blob of unexpected length; skip the item, not the run.
			result.Unclustered = append(result.Unclustered, f.ID)
			continue
		}
		valid = append(valid, *f)
	}
	if len(valid) == 0 {
		return result
	}

	neighbors := makeNeighborFunc(valid, params.Eps)

	visited := make(map[int64]bool, len(valid))
	noise := make(map[int64]bool)

	for i := range valid {
		id := valid[i].ID
		if visited[id] {
			continue
		}
		visited[id] = true

		n := neighbors(id)
		if len(n) < params.MinSamples {
			noise[id] = true
			continue
		}

		result.NumClusters++
		cluster := result.NumClusters
		result.Labels[id] = cluster

		// Expand the cluster breadth-first.
		queue := n
		for len(queue) > 0 {
			q := queue[0]
			queue = queue[1:]

			if noise[q] {
				// Border point adopted by the cluster.
				delete(noise, q)
				result.Labels[q] = cluster
			}
			if visited[q] {
				continue
			}
			visited[q] = true
			result.Labels[q] = cluster

			qn := neighbors(q)
			if len(qn) >= params.MinSamples {
				queue = append(queue, qn...)
			}
		}
	}

	for i := range valid {
		if noise[valid[i].ID] {
			result.Unclustered = append(result.Unclustered, valid[i].ID)
		}
	}
	return result
}

// makeNeighborFunc returns an eps-neighborhood lookup over the face set.
// The returned neighbor lists include the query point itself and are
// sorted by face id.
func makeNeighborFunc(faces []database.StoredFace, eps float64) func(int64) []int64 {
	if len(faces) <= bruteForceLimit {
		embeddings := make(map[int64][]float32, len(faces))
		ids := make([]int64, 0, len(faces))
		for i := range faces {
			embeddings[faces[i].ID] = faces[i].Embedding
			ids = append(ids, faces[i].ID)
		}
		sort.Slice(ids, func(a, b int) bool { return ids[a] < ids[b] })

		return func(id int64) []int64 {
			query := embeddings[id]
			var n []int64
			for _, other := range ids {
				if database.CosineDistance(query, embeddings[other]) <= eps {
					n = append(n, other)
				}
			}
			return n
		}
	}

	index := database.NewVectorIndex()
	index.Build(faces)

	return func(id int64) []int64 {
		n := index.Neighborhood(index.Embedding(id), eps, neighborhoodCap)
		sort.Slice(n, func(a, b int) bool { return n[a] < n[b] })
		return n
	}
}
