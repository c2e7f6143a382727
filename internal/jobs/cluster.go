package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/jsvoboda/photo-curator/internal/clustering"
)

// ClusterPayload configures a cluster job.
type ClusterPayload struct {
	// KeepNames preserves user-labeled clusters across the run. Defaults
	// to true; set false to rebuild everything from scratch.
	KeepNames *bool `json:"keep_names,omitempty"`
}

// ClusterHandler reclusters a project's faces. The store rejects a second
// cluster job for the same project while one is queued or running, so the
// handler never races itself.
type ClusterHandler struct {
	engine *clustering.Engine
}

// NewClusterHandler creates a cluster handler.
func NewClusterHandler(engine *clustering.Engine) *ClusterHandler {
	return &ClusterHandler{engine: engine}
}

func (h *ClusterHandler) Run(ctx context.Context, rc *RunContext) error {
	var payload ClusterPayload
	if len(rc.Job.Payload) > 0 {
		if err := json.Unmarshal(rc.Job.Payload, &payload); err != nil {
			return fmt.Errorf("invalid cluster payload: %w", err)
		}
	}
	keepNames := payload.KeepNames == nil || *payload.KeepNames

	if err := rc.Heartbeat(ctx, 0); err != nil {
		return err
	}

	summary, err := h.engine.Recluster(ctx, rc.Job.Project, keepNames)
	if err != nil {
		return err
	}
	log.Printf("clustered project %s: %d faces, %d clusters, %d unclustered (eps=%.2f min_samples=%d)",
		rc.Job.Project, summary.TotalFaces, summary.NumClusters, summary.Unclustered,
		summary.Params.Eps, summary.Params.MinSamples)
	rc.AddItems(summary.TotalFaces)

	rc.Events().Send(Event{
		Type:    EventClustersChanged,
		Project: rc.Job.Project,
		Message: fmt.Sprintf("%d clusters", summary.NumClusters),
	})
	return rc.Heartbeat(ctx, 1)
}
