package clustering

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/jsvoboda/photo-curator/internal/config"
	"github.com/jsvoboda/photo-curator/internal/database"
)

// Engine runs the full clustering pipeline for a project: adaptive DBSCAN
// over face embeddings, label-preserving reconciliation against existing
// clusters and representative selection.
type Engine struct {
	faces    database.FaceStore
	clusters database.ClusterStore
	photos   database.PhotoStore
	buckets  []config.ParamBucket
}

// NewEngine creates a clustering engine.
func NewEngine(faces database.FaceStore, clusters database.ClusterStore, photos database.PhotoStore, buckets []config.ParamBucket) *Engine {
	return &Engine{
		faces:    faces,
		clusters: clusters,
		photos:   photos,
		buckets:  buckets,
	}
}

// Summary describes one clustering run.
type Summary struct {
	TotalFaces  int
	NumClusters int
	Unclustered int
	Params      Params
}

// Recluster recomputes cluster assignments for every face of a project.
// Unnamed clusters are cleared and rebuilt from scratch; when keepNames is
// true (the default for scheduled runs), clusters that carry a user label
// survive by re-associating the new cluster closest to their previous
// centroid. Idempotent and deterministic given identical embeddings and
// parameters.
func (e *Engine) Recluster(ctx context.Context, project string, keepNames bool) (*Summary, error) {
	faces, err := e.faces.ListByProject(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("list faces: %w", err)
	}

	params := OptimalParams(len(faces), e.buckets)
	result := Cluster(faces, params)

	existing, err := e.clusters.ListByProject(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("list clusters: %w", err)
	}

	// Previous centroids of labeled clusters, computed from the current
	// assignments before they are cleared.
	labeledCentroids := make(map[int64][]float32)
	if keepNames {
		byCluster := make(map[int64][][]float32)
		for i := range faces {
			if faces[i].ClusterID != 0 {
				byCluster[faces[i].ClusterID] = append(byCluster[faces[i].ClusterID], faces[i].Embedding)
			}
		}
		for i := range existing {
			if existing[i].Labeled() {
				if c := database.Centroid(byCluster[existing[i].ID]); c != nil {
					labeledCentroids[existing[i].ID] = c
				}
			}
		}
	}

	members := make(map[int][]database.StoredFace)
	for i := range faces {
		if label, ok := result.Labels[faces[i].ID]; ok {
			members[label] = append(members[label], faces[i])
		}
	}

	clusterIDs, err := e.resolveClusterIDs(ctx, project, result.NumClusters, members, labeledCentroids, params.Eps)
	if err != nil {
		return nil, err
	}

	assignments := make(map[int64]int64, len(result.Labels))
	for faceID, label := range result.Labels {
		assignments[faceID] = clusterIDs[label]
	}
	if err := e.faces.AssignClusters(ctx, assignments, result.Unclustered); err != nil {
		return nil, fmt.Errorf("assign clusters: %w", err)
	}

	if err := e.updateClusterStats(ctx, clusterIDs, members); err != nil {
		return nil, err
	}

	// Clusters that received no members this run are empty now; drop them.
	used := make(map[int64]bool, len(clusterIDs))
	for _, id := range clusterIDs {
		used[id] = true
	}
	for i := range existing {
		if !used[existing[i].ID] {
			if err := e.clusters.Delete(ctx, existing[i].ID); err != nil {
				return nil, fmt.Errorf("delete empty cluster %d: %w", existing[i].ID, err)
			}
		}
	}

	return &Summary{
		TotalFaces:  len(faces),
		NumClusters: result.NumClusters,
		Unclustered: len(result.Unclustered),
		Params:      params,
	}, nil
}

// resolveClusterIDs maps run-local cluster labels to database cluster ids.
// Each labeled previous cluster adopts the closest new cluster within eps
// of its old centroid, so user-applied names survive re-clustering; every
// other label gets a fresh cluster row.
func (e *Engine) resolveClusterIDs(ctx context.Context, project string, numClusters int, members map[int][]database.StoredFace, labeledCentroids map[int64][]float32, eps float64) (map[int]int64, error) {
	clusterIDs := make(map[int]int64, numClusters)

	centroids := make(map[int][]float32, numClusters)
	for label := 1; label <= numClusters; label++ {
		embeddings := make([][]float32, 0, len(members[label]))
		for i := range members[label] {
			embeddings = append(embeddings, members[label][i].Embedding)
		}
		centroids[label] = database.Centroid(embeddings)
	}

	// Deterministic matching: previous labeled clusters in id order, each
	// taking its best unclaimed match.
	oldIDs := make([]int64, 0, len(labeledCentroids))
	for id := range labeledCentroids {
		oldIDs = append(oldIDs, id)
	}
	sort.Slice(oldIDs, func(a, b int) bool { return oldIDs[a] < oldIDs[b] })

	for _, oldID := range oldIDs {
		bestLabel := 0
		bestDist := eps
		for label := 1; label <= numClusters; label++ {
			if _, taken := clusterIDs[label]; taken {
				continue
			}
			d := database.CosineDistance(labeledCentroids[oldID], centroids[label])
			if d < bestDist || (d == bestDist && bestLabel == 0) {
				bestDist = d
				bestLabel = label
			}
		}
		if bestLabel != 0 {
			clusterIDs[bestLabel] = oldID
		}
	}

	for label := 1; label <= numClusters; label++ {
		if _, ok := clusterIDs[label]; ok {
			continue
		}
		id, err := e.clusters.Create(ctx, project)
		if err != nil {
			return nil, fmt.Errorf("create cluster: %w", err)
		}
		clusterIDs[label] = id
	}
	return clusterIDs, nil
}

// updateClusterStats recomputes member count and representative for every
// cluster touched by the run.
func (e *Engine) updateClusterStats(ctx context.Context, clusterIDs map[int]int64, members map[int][]database.StoredFace) error {
	labels := make([]int, 0, len(clusterIDs))
	for label := range clusterIDs {
		labels = append(labels, label)
	}
	sort.Ints(labels)

	for _, label := range labels {
		faces := members[label]

		uids := make([]string, 0, len(faces))
		seen := make(map[string]bool, len(faces))
		for i := range faces {
			if !seen[faces[i].PhotoUID] {
				seen[faces[i].PhotoUID] = true
				uids = append(uids, faces[i].PhotoUID)
			}
		}
		photos, err := e.photos.GetBatch(ctx, uids)
		if err != nil {
			// Representative selection degrades without metadata but the
			// assignments are already durable; do not fail the run.
			log.Printf("warning: failed to load photos for representative selection: %v", err)
			photos = map[string]*database.Photo{}
		}

		rep := SelectRepresentative(faces, photos)
		if err := e.clusters.UpdateStats(ctx, clusterIDs[label], len(faces), rep); err != nil {
			return fmt.Errorf("update cluster %d stats: %w", clusterIDs[label], err)
		}
	}
	return nil
}
