package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/jsvoboda/photo-curator/internal/compute"
	"github.com/jsvoboda/photo-curator/internal/database"
	"github.com/jsvoboda/photo-curator/internal/quality"
)

// DetectPayload selects the photos a detect_faces job processes.
type DetectPayload struct {
	PhotoUIDs []string `json:"photo_uids"`
}

// DetectHandler runs face detection over a photo set: for every photo it
// calls the compute service, scores each face and replaces the stored
// detections. Per-photo failures are logged and skipped, never aborting
// the batch.
type DetectHandler struct {
	compute *compute.Client
	photos  database.PhotoStore
	faces   database.FaceStore
}

// NewDetectHandler creates a detect_faces handler.
func NewDetectHandler(client *compute.Client, photos database.PhotoStore, faces database.FaceStore) *DetectHandler {
	return &DetectHandler{compute: client, photos: photos, faces: faces}
}

func (h *DetectHandler) Run(ctx context.Context, rc *RunContext) error {
	var payload DetectPayload
	if err := json.Unmarshal(rc.Job.Payload, &payload); err != nil {
		return fmt.Errorf("invalid detect payload: %w", err)
	}
	if len(payload.PhotoUIDs) == 0 {
		return nil
	}

	for i, uid := range payload.PhotoUIDs {
		if err := rc.MaybeHeartbeat(ctx, float64(i)/float64(len(payload.PhotoUIDs))); err != nil {
			return err
		}

		photo, err := h.photos.Get(ctx, uid)
		if err != nil {
			return fmt.Errorf("load photo %s: %w", uid, err)
		}
		if photo == nil {
			log.Printf("warning: skipping unknown photo %s", uid)
			continue
		}

		imageData, err := os.ReadFile(photo.Path)
		if err != nil {
			log.Printf("warning: skipping unreadable photo %s: %v", uid, err)
			continue
		}

		resp, err := h.compute.DetectFaces(ctx, imageData)
		if err != nil {
			log.Printf("warning: face detection failed for photo %s: %v", uid, err)
			continue
		}

		faces := make([]database.StoredFace, 0, len(resp.Faces))
		for _, f := range resp.Faces {
			faces = append(faces, database.StoredFace{
				Project:   rc.Job.Project,
				PhotoUID:  uid,
				FaceIndex: f.FaceIndex,
				Embedding: f.Embedding,
				BBox:      f.BBox,
				DetScore:  f.DetScore,
				Quality:   quality.Score(imageData, f.BBox, f.DetScore),
				Model:     resp.Model,
				Dim:       f.Dim,
			})
		}
		if err := h.faces.ReplaceFaces(ctx, rc.Job.Project, uid, faces); err != nil {
			return fmt.Errorf("store faces for %s: %w", uid, err)
		}
		rc.AddItems(1)
	}

	return rc.Heartbeat(ctx, 1)
}
