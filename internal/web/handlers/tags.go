package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jsvoboda/photo-curator/internal/database"
	"github.com/jsvoboda/photo-curator/internal/tags"
)

// TagsHandler exposes the tag reconciliation surface. Facts are the only
// authoritative record and only user actions touch them; suggestions are
// machine output awaiting a confirm or reject.
type TagsHandler struct {
	engine *tags.Engine
}

// NewTagsHandler creates a tags handler.
func NewTagsHandler(engine *tags.Engine) *TagsHandler {
	return &TagsHandler{engine: engine}
}

type tagFactResponse struct {
	Tag       string `json:"tag"`
	CreatedAt string `json:"created_at"`
}

// Facts returns the confirmed tags of a photo.
func (h *TagsHandler) Facts(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	project := r.URL.Query().Get("project")
	if project == "" {
		respondError(w, http.StatusBadRequest, "project is required")
		return
	}

	facts, err := h.engine.Facts(r.Context(), project, uid)
	if err != nil {
		log.Printf("listing tags for %s failed: %v", sanitizeForLog(uid), err)
		respondError(w, http.StatusInternalServerError, "failed to list tags")
		return
	}

	out := make([]tagFactResponse, 0, len(facts))
	for _, f := range facts {
		out = append(out, tagFactResponse{Tag: f.Tag, CreatedAt: f.CreatedAt.Format(time.RFC3339)})
	}
	respondJSON(w, http.StatusOK, map[string]any{"tags": out})
}

type addTagRequest struct {
	Project string `json:"project"`
	Tag     string `json:"tag"`
}

// Add writes a tag fact directly. Manual tagging is never gated by the
// suggestion machinery.
func (h *TagsHandler) Add(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	var req addTagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Project == "" {
		respondError(w, http.StatusBadRequest, "project is required")
		return
	}

	if err := h.engine.ManualAdd(r.Context(), req.Project, uid, req.Tag); err != nil {
		log.Printf("adding tag to %s failed: %v", sanitizeForLog(uid), err)
		respondError(w, http.StatusBadRequest, "failed to add tag")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"status": "ok"})
}

// Remove deletes a tag fact. A previously confirmed tag gets the longer
// suppression window so the same suggestion does not resurface at once.
func (h *TagsHandler) Remove(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	tag, err := url.PathUnescape(chi.URLParam(r, "tag"))
	if err != nil || tag == "" {
		respondError(w, http.StatusBadRequest, "invalid tag")
		return
	}
	project := r.URL.Query().Get("project")
	if project == "" {
		respondError(w, http.StatusBadRequest, "project is required")
		return
	}

	if err := h.engine.Remove(r.Context(), project, uid, tag); err != nil {
		log.Printf("removing tag from %s failed: %v", sanitizeForLog(uid), err)
		respondError(w, http.StatusInternalServerError, "failed to remove tag")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type tagSuggestionResponse struct {
	PhotoUID string  `json:"photo_uid"`
	Tag      string  `json:"tag"`
	ModelID  string  `json:"model_id"`
	Score    float64 `json:"score"`
}

func toSuggestionResponse(s *database.TagSuggestion) tagSuggestionResponse {
	return tagSuggestionResponse{
		PhotoUID: s.PhotoUID,
		Tag:      s.Tag,
		ModelID:  s.ModelID,
		Score:    s.Score,
	}
}

// Pending returns tag suggestions awaiting a decision, already filtered
// for suppression windows and existing facts.
func (h *TagsHandler) Pending(w http.ResponseWriter, r *http.Request) {
	project := r.URL.Query().Get("project")
	if project == "" {
		respondError(w, http.StatusBadRequest, "project is required")
		return
	}

	pending, err := h.engine.Pending(r.Context(), project)
	if err != nil {
		log.Printf("listing suggestions failed: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to list suggestions")
		return
	}

	out := make([]tagSuggestionResponse, 0, len(pending))
	for i := range pending {
		out = append(out, toSuggestionResponse(&pending[i]))
	}
	respondJSON(w, http.StatusOK, map[string]any{"suggestions": out})
}

type decisionRequest struct {
	Project      string `json:"project"`
	PhotoUID     string `json:"photo_uid"`
	Tag          string `json:"tag"`
	ModelID      string `json:"model_id"`
	SuppressDays int    `json:"suppress_days,omitempty"`
}

func (h *TagsHandler) decodeDecision(w http.ResponseWriter, r *http.Request) (*decisionRequest, bool) {
	var req decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return nil, false
	}
	if req.Project == "" || req.PhotoUID == "" || req.Tag == "" {
		respondError(w, http.StatusBadRequest, "project, photo_uid and tag are required")
		return nil, false
	}
	return &req, true
}

// Confirm turns a suggestion into a fact.
func (h *TagsHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeDecision(w, r)
	if !ok {
		return
	}

	if err := h.engine.Confirm(r.Context(), req.Project, req.PhotoUID, req.Tag, req.ModelID); err != nil {
		log.Printf("confirming suggestion failed: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to confirm suggestion")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "confirmed"})
}

// Reject discards a suggestion and suppresses it for suppress_days
// (the default window when omitted).
func (h *TagsHandler) Reject(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeDecision(w, r)
	if !ok {
		return
	}

	if err := h.engine.Reject(r.Context(), req.Project, req.PhotoUID, req.Tag, req.ModelID, req.SuppressDays); err != nil {
		log.Printf("rejecting suggestion failed: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to reject suggestion")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "rejected"})
}
