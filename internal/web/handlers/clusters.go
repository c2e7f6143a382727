package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jsvoboda/photo-curator/internal/database"
)

// MergeSuggester proposes and applies cluster merges.
type MergeSuggester interface {
	Suggestions(ctx context.Context, project string) ([]database.MergeSuggestion, error)
	Accept(ctx context.Context, clusterID, otherID int64) error
}

// ClustersHandler exposes person clusters: listing, naming and merge
// suggestions. Cluster membership itself is only changed by the cluster
// job and by accepted merges.
type ClustersHandler struct {
	clusters database.ClusterStore
	faces    database.FaceStore
	merges   MergeSuggester
}

// NewClustersHandler creates a clusters handler.
func NewClustersHandler(clusters database.ClusterStore, faces database.FaceStore, merges MergeSuggester) *ClustersHandler {
	return &ClustersHandler{clusters: clusters, faces: faces, merges: merges}
}

type clusterResponse struct {
	ID                   int64     `json:"id"`
	Project              string    `json:"project"`
	Label                string    `json:"label,omitempty"`
	RepresentativeFaceID int64     `json:"representative_face_id,omitempty"`
	MemberCount          int       `json:"member_count"`
	CreatedAt            time.Time `json:"created_at"`
}

func toClusterResponse(c *database.Cluster) clusterResponse {
	return clusterResponse{
		ID:                   c.ID,
		Project:              c.Project,
		Label:                c.Label,
		RepresentativeFaceID: c.RepresentativeFaceID,
		MemberCount:          c.MemberCount,
		CreatedAt:            c.CreatedAt,
	}
}

func clusterIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

// List returns all clusters of a project.
func (h *ClustersHandler) List(w http.ResponseWriter, r *http.Request) {
	project := r.URL.Query().Get("project")
	if project == "" {
		respondError(w, http.StatusBadRequest, "project is required")
		return
	}

	list, err := h.clusters.ListByProject(r.Context(), project)
	if err != nil {
		log.Printf("listing clusters failed: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to list clusters")
		return
	}

	out := make([]clusterResponse, 0, len(list))
	for i := range list {
		out = append(out, toClusterResponse(&list[i]))
	}
	respondJSON(w, http.StatusOK, map[string]any{"clusters": out})
}

// Get returns one cluster with its member face ids.
func (h *ClustersHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := clusterIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid cluster id")
		return
	}

	cluster, err := h.clusters.Get(r.Context(), id)
	if err != nil {
		log.Printf("loading cluster %d failed: %v", id, err)
		respondError(w, http.StatusInternalServerError, "failed to load cluster")
		return
	}
	if cluster == nil {
		respondError(w, http.StatusNotFound, "cluster not found")
		return
	}

	members, err := h.faces.ListByCluster(r.Context(), id)
	if err != nil {
		log.Printf("listing members of cluster %d failed: %v", id, err)
		respondError(w, http.StatusInternalServerError, "failed to load cluster members")
		return
	}

	faceIDs := make([]int64, 0, len(members))
	photoUIDs := make([]string, 0, len(members))
	for _, f := range members {
		faceIDs = append(faceIDs, f.ID)
		photoUIDs = append(photoUIDs, f.PhotoUID)
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"cluster":    toClusterResponse(cluster),
		"face_ids":   faceIDs,
		"photo_uids": photoUIDs,
	})
}

type renameRequest struct {
	Label string `json:"label"`
}

// Rename names a cluster. Named clusters survive re-clustering; an empty
// label clears the name.
func (h *ClustersHandler) Rename(w http.ResponseWriter, r *http.Request) {
	id, err := clusterIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid cluster id")
		return
	}

	var req renameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	cluster, err := h.clusters.Get(r.Context(), id)
	if err != nil {
		log.Printf("loading cluster %d failed: %v", id, err)
		respondError(w, http.StatusInternalServerError, "failed to load cluster")
		return
	}
	if cluster == nil {
		respondError(w, http.StatusNotFound, "cluster not found")
		return
	}

	if err := h.clusters.SetLabel(r.Context(), id, req.Label); err != nil {
		log.Printf("renaming cluster %d failed: %v", id, err)
		respondError(w, http.StatusInternalServerError, "failed to rename cluster")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// MergeSuggestions returns ranked merge candidates for a project.
func (h *ClustersHandler) MergeSuggestions(w http.ResponseWriter, r *http.Request) {
	project := r.URL.Query().Get("project")
	if project == "" {
		respondError(w, http.StatusBadRequest, "project is required")
		return
	}

	suggestions, err := h.merges.Suggestions(r.Context(), project)
	if err != nil {
		log.Printf("merge suggestions failed: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to compute merge suggestions")
		return
	}

	out := make([]mergeSuggestionResponse, 0, len(suggestions))
	for _, s := range suggestions {
		out = append(out, mergeSuggestionResponse{
			ClusterID:  s.ClusterID,
			OtherID:    s.OtherID,
			Similarity: s.Similarity,
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{"suggestions": out})
}

type mergeSuggestionResponse struct {
	ClusterID  int64   `json:"cluster_id"`
	OtherID    int64   `json:"other_id"`
	Similarity float64 `json:"similarity"`
}

type mergeRequest struct {
	OtherID int64 `json:"other_id"`
}

// AcceptMerge absorbs one cluster into another. The labeled cluster
// survives; between two unnamed clusters the lower id wins.
func (h *ClustersHandler) AcceptMerge(w http.ResponseWriter, r *http.Request) {
	id, err := clusterIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid cluster id")
		return
	}

	var req mergeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.OtherID == 0 || req.OtherID == id {
		respondError(w, http.StatusBadRequest, "other_id must reference a different cluster")
		return
	}

	if err := h.merges.Accept(r.Context(), id, req.OtherID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, "cluster not found")
			return
		}
		log.Printf("merging clusters %d and %d failed: %v", id, req.OtherID, err)
		respondError(w, http.StatusInternalServerError, "failed to merge clusters")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "merged"})
}
