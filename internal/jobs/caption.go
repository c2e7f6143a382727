package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/jsvoboda/photo-curator/internal/ai"
	"github.com/jsvoboda/photo-curator/internal/database"
	"github.com/jsvoboda/photo-curator/internal/tags"
)

// Labels below this confidence are not turned into tag suggestions.
const suggestionConfidenceThreshold = 0.8

// CaptionPayload selects the photos a caption job processes.
type CaptionPayload struct {
	PhotoUIDs []string `json:"photo_uids"`
}

// CaptionHandler describes photos with the configured AI provider: the
// description is stored on the photo and confident labels become tag
// suggestions, subject to the reconciliation rules.
type CaptionHandler struct {
	provider ai.Provider
	photos   database.PhotoStore
	tags     *tags.Engine
}

// NewCaptionHandler creates a caption handler.
func NewCaptionHandler(provider ai.Provider, photos database.PhotoStore, tagEngine *tags.Engine) *CaptionHandler {
	return &CaptionHandler{provider: provider, photos: photos, tags: tagEngine}
}

func (h *CaptionHandler) Run(ctx context.Context, rc *RunContext) error {
	var payload CaptionPayload
	if err := json.Unmarshal(rc.Job.Payload, &payload); err != nil {
		return fmt.Errorf("invalid caption payload: %w", err)
	}
	if len(payload.PhotoUIDs) == 0 {
		return nil
	}

	suggested := 0
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

		facts, err := h.tags.Facts(ctx, rc.Job.Project, uid)
		if err != nil {
			return fmt.Errorf("load tags for %s: %w", uid, err)
		}
		known := make([]string, 0, len(facts))
		for _, f := range facts {
			known = append(known, f.Tag)
		}

		caption, err := h.provider.Caption(ctx, imageData, known)
		if err != nil {
			log.Printf("warning: captioning failed for photo %s: %v", uid, err)
			continue
		}

		if caption.Description != "" {
			if err := h.photos.SetCaption(ctx, uid, caption.Description); err != nil {
				return fmt.Errorf("store caption for %s: %w", uid, err)
			}
		}

		for _, label := range caption.Labels {
			if label.Confidence < suggestionConfidenceThreshold {
				continue
			}
			stored, err := h.tags.Suggest(ctx, &database.TagSuggestion{
				Project:  rc.Job.Project,
				PhotoUID: uid,
				Tag:      label.Name,
				ModelID:  h.provider.Name(),
				Score:    label.Confidence,
			})
			if err != nil {
				return fmt.Errorf("store suggestion for %s: %w", uid, err)
			}
			if stored {
				suggested++
			}
		}
		rc.AddItems(1)
	}

	if suggested > 0 {
		rc.Events().Send(Event{
			Type:    EventSuggestionsChanged,
			Project: rc.Job.Project,
			Message: fmt.Sprintf("%d new tag suggestions", suggested),
		})
	}
	return rc.Heartbeat(ctx, 1)
}
