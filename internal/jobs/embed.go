package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/jsvoboda/photo-curator/internal/compute"
	"github.com/jsvoboda/photo-curator/internal/database"
)

// EmbedPayload selects the photos an embed job processes.
type EmbedPayload struct {
	PhotoUIDs []string `json:"photo_uids"`
	// Force recomputes embeddings that already exist.
	Force bool `json:"force,omitempty"`
}

// EmbedHandler computes whole-image embeddings for a photo set and stores
// them under the (photo_uid, model_id, embedding_type) composite key.
type EmbedHandler struct {
	compute    *compute.Client
	photos     database.PhotoStore
	embeddings database.EmbeddingStore
	model      string
}

// NewEmbedHandler creates an embed handler. model is the configured model
// id used to check for existing embeddings before calling the compute
// service.
func NewEmbedHandler(client *compute.Client, photos database.PhotoStore, embeddings database.EmbeddingStore, model string) *EmbedHandler {
	return &EmbedHandler{compute: client, photos: photos, embeddings: embeddings, model: model}
}

func (h *EmbedHandler) Run(ctx context.Context, rc *RunContext) error {
	var payload EmbedPayload
	if err := json.Unmarshal(rc.Job.Payload, &payload); err != nil {
		return fmt.Errorf("invalid embed payload: %w", err)
	}
	if len(payload.PhotoUIDs) == 0 {
		return nil
	}

	for i, uid := range payload.PhotoUIDs {
		if err := rc.MaybeHeartbeat(ctx, float64(i)/float64(len(payload.PhotoUIDs))); err != nil {
			return err
		}

		if !payload.Force {
			exists, err := h.embeddings.Has(ctx, uid, h.model, "image")
			if err != nil {
				return fmt.Errorf("check embedding for %s: %w", uid, err)
			}
			if exists {
				continue
			}
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

		result, err := h.compute.EmbedImage(ctx, imageData)
		if err != nil {
			log.Printf("warning: embedding failed for photo %s: %v", uid, err)
			continue
		}

		err = h.embeddings.Save(ctx, &database.StoredEmbedding{
			PhotoUID:      uid,
			Project:       rc.Job.Project,
			ModelID:       h.model,
			EmbeddingType: "image",
			Embedding:     result.Embedding,
			Dim:           result.Dim,
		})
		if err != nil {
			return fmt.Errorf("store embedding for %s: %w", uid, err)
		}
		rc.AddItems(1)
	}

	return rc.Heartbeat(ctx, 1)
}
