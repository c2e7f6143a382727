package suggest

import (
	"context"
	"fmt"
	"sort"

	"github.com/jsvoboda/photo-curator/internal/clustering"
	"github.com/jsvoboda/photo-curator/internal/config"
	"github.com/jsvoboda/photo-curator/internal/database"
)

// MergeService proposes merging clusters whose centroids are close.
// Suggestions are advisory only; a merge happens when a user accepts one.
type MergeService struct {
	faces         database.FaceStore
	clusters      database.ClusterStore
	photos        database.PhotoStore
	threshold     float64
	maxCandidates int
}

// NewMergeService creates a merge suggestion service.
func NewMergeService(faces database.FaceStore, clusters database.ClusterStore, photos database.PhotoStore, cfg config.MergeConfig) *MergeService {
	return &MergeService{
		faces:         faces,
		clusters:      clusters,
		photos:        photos,
		threshold:     cfg.SimilarityThreshold,
		maxCandidates: cfg.MaxCandidates,
	}
}

// Suggestions computes merge candidates for a project, ranked by centroid
// similarity descending. Pairs where both clusters carry a user label are
// skipped: two deliberately named people are never proposed for merging.
// Each cluster appears in at most maxCandidates suggestions so large
// libraries do not drown the review surface.
func (s *MergeService) Suggestions(ctx context.Context, project string) ([]database.MergeSuggestion, error) {
	clusters, err := s.clusters.ListByProject(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("list clusters: %w", err)
	}
	if len(clusters) < 2 {
		return nil, nil
	}

	centroids := make(map[int64][]float32, len(clusters))
	for i := range clusters {
		members, err := s.faces.ListByCluster(ctx, clusters[i].ID)
		if err != nil {
			return nil, fmt.Errorf("list cluster %d members: %w", clusters[i].ID, err)
		}
		embeddings := make([][]float32, 0, len(members))
		for j := range members {
			embeddings = append(embeddings, members[j].Embedding)
		}
		centroids[clusters[i].ID] = database.Centroid(embeddings)
	}

	var all []database.MergeSuggestion
	for i := range clusters {
		for j := i + 1; j < len(clusters); j++ {
			a, b := &clusters[i], &clusters[j]
			if a.Labeled() && b.Labeled() {
				continue
			}
			sim := database.CosineSimilarity(centroids[a.ID], centroids[b.ID])
			if sim < s.threshold {
				continue
			}
			all = append(all, database.MergeSuggestion{
				Project:    project,
				ClusterID:  a.ID,
				OtherID:    b.ID,
				Similarity: sim,
			})
		}
	}

	sort.Slice(all, func(a, b int) bool {
		if all[a].Similarity != all[b].Similarity {
			return all[a].Similarity > all[b].Similarity
		}
		if all[a].ClusterID != all[b].ClusterID {
			return all[a].ClusterID < all[b].ClusterID
		}
		return all[a].OtherID < all[b].OtherID
	})

	// Cap per cluster; a pair consumes budget on both sides.
	counts := make(map[int64]int)
	kept := all[:0]
	for _, sug := range all {
		if s.maxCandidates > 0 &&
			(counts[sug.ClusterID] >= s.maxCandidates || counts[sug.OtherID] >= s.maxCandidates) {
			continue
		}
		counts[sug.ClusterID]++
		counts[sug.OtherID]++
		kept = append(kept, sug)
	}
	return kept, nil
}

// Accept merges two clusters: the members of both end up under a single
// surviving id with a recomputed representative. When exactly one cluster
// is labeled it survives; otherwise the lower id does.
func (s *MergeService) Accept(ctx context.Context, clusterID, otherID int64) error {
	a, err := s.clusters.Get(ctx, clusterID)
	if err != nil {
		return fmt.Errorf("get cluster %d: %w", clusterID, err)
	}
	b, err := s.clusters.Get(ctx, otherID)
	if err != nil {
		return fmt.Errorf("get cluster %d: %w", otherID, err)
	}
	if a == nil || b == nil {
		return database.ErrNotFound
	}

	survivor, absorbed := a, b
	if (b.Labeled() && !a.Labeled()) || (a.Labeled() == b.Labeled() && b.ID < a.ID) {
		survivor, absorbed = b, a
	}

	moved, err := s.faces.ListByCluster(ctx, absorbed.ID)
	if err != nil {
		return fmt.Errorf("list cluster %d members: %w", absorbed.ID, err)
	}
	assignments := make(map[int64]int64, len(moved))
	for i := range moved {
		assignments[moved[i].ID] = survivor.ID
	}
	if err := s.faces.AssignClusters(ctx, assignments, nil); err != nil {
		return fmt.Errorf("reassign members: %w", err)
	}

	members, err := s.faces.ListByCluster(ctx, survivor.ID)
	if err != nil {
		return fmt.Errorf("list merged members: %w", err)
	}

	uids := make([]string, 0, len(members))
	seen := make(map[string]bool, len(members))
	for i := range members {
		if !seen[members[i].PhotoUID] {
			seen[members[i].PhotoUID] = true
			uids = append(uids, members[i].PhotoUID)
		}
	}
	photos, err := s.photos.GetBatch(ctx, uids)
	if err != nil {
		return fmt.Errorf("load photos: %w", err)
	}

	rep := clustering.SelectRepresentative(members, photos)
	if err := s.clusters.UpdateStats(ctx, survivor.ID, len(members), rep); err != nil {
		return fmt.Errorf("update merged cluster: %w", err)
	}
	if err := s.clusters.Delete(ctx, absorbed.ID); err != nil {
		return fmt.Errorf("delete absorbed cluster: %w", err)
	}
	return nil
}
