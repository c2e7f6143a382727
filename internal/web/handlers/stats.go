package handlers

import (
	"log"
	"net/http"

	"github.com/jsvoboda/photo-curator/internal/database"
	"github.com/jsvoboda/photo-curator/internal/perf"
)

// StatsHandler reports project counters and the performance trend per
// job kind.
type StatsHandler struct {
	faces      database.FaceStore
	embeddings database.EmbeddingStore
	tracker    *perf.Tracker
}

// NewStatsHandler creates a stats handler.
func NewStatsHandler(faces database.FaceStore, embeddings database.EmbeddingStore, tracker *perf.Tracker) *StatsHandler {
	return &StatsHandler{faces: faces, embeddings: embeddings, tracker: tracker}
}

type trendResponse struct {
	Kind              string  `json:"kind"`
	Window            int     `json:"window"`
	RecentAvgMs       float64 `json:"recent_avg_ms"`
	PriorAvgMs        float64 `json:"prior_avg_ms"`
	RecentFailureRate float64 `json:"recent_failure_rate"`
	PriorFailureRate  float64 `json:"prior_failure_rate"`
	Regression        bool    `json:"regression"`
	Conclusive        bool    `json:"conclusive"`
}

type statsResponse struct {
	Project    string          `json:"project"`
	Faces      int             `json:"faces"`
	Embeddings int             `json:"embeddings"`
	Trends     []trendResponse `json:"trends"`
}

var trackedKinds = []database.JobKind{
	database.KindDetectFaces,
	database.KindEmbed,
	database.KindCluster,
	database.KindCaption,
}

// Get returns counters for a project and recent-vs-prior performance
// trends for every job kind.
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	project := r.URL.Query().Get("project")
	if project == "" {
		respondError(w, http.StatusBadRequest, "project is required")
		return
	}
	window := queryInt(r, "window", 10)

	faceCount, err := h.faces.CountByProject(r.Context(), project)
	if err != nil {
		log.Printf("counting faces failed: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}
	embeddingCount, err := h.embeddings.CountByProject(r.Context(), project)
	if err != nil {
		log.Printf("counting embeddings failed: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}

	stats := statsResponse{
		Project:    project,
		Faces:      faceCount,
		Embeddings: embeddingCount,
		Trends:     make([]trendResponse, 0, len(trackedKinds)),
	}
	for _, kind := range trackedKinds {
		trend, err := h.tracker.Trend(r.Context(), kind, window)
		if err != nil {
			log.Printf("computing trend for %s failed: %v", kind, err)
			respondError(w, http.StatusInternalServerError, "failed to compute stats")
			return
		}
		stats.Trends = append(stats.Trends, trendResponse{
			Kind:              string(trend.Kind),
			Window:            trend.Window,
			RecentAvgMs:       trend.RecentAvgMs,
			PriorAvgMs:        trend.PriorAvgMs,
			RecentFailureRate: trend.RecentFailureRate,
			PriorFailureRate:  trend.PriorFailureRate,
			Regression:        trend.Regression,
			Conclusive:        trend.Conclusive,
		})
	}

	respondJSON(w, http.StatusOK, stats)
}
