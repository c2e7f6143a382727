package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jsvoboda/photo-curator/internal/database"
)

// PhotosHandler registers scanner-provided photo metadata and serves it
// back. The curator never reads photo files through this surface; paths
// are only dereferenced by job handlers on the local filesystem.
type PhotosHandler struct {
	photos database.PhotoStore
}

// NewPhotosHandler creates a photos handler.
func NewPhotosHandler(photos database.PhotoStore) *PhotosHandler {
	return &PhotosHandler{photos: photos}
}

type registerPhotoRequest struct {
	UID          string     `json:"uid"`
	Project      string     `json:"project"`
	Path         string     `json:"path"`
	Width        int        `json:"width"`
	Height       int        `json:"height"`
	FileSize     int64      `json:"file_size"`
	TakenAt      *time.Time `json:"taken_at,omitempty"`
	IsScreenshot bool       `json:"is_screenshot,omitempty"`
}

// Register upserts a photo record. Re-registration refreshes metadata;
// faces, embeddings and tags are untouched.
func (h *PhotosHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerPhotoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.UID == "" || req.Project == "" || req.Path == "" {
		respondError(w, http.StatusBadRequest, "uid, project and path are required")
		return
	}

	photo := &database.Photo{
		UID:          req.UID,
		Project:      req.Project,
		Path:         req.Path,
		Width:        req.Width,
		Height:       req.Height,
		FileSize:     req.FileSize,
		TakenAt:      req.TakenAt,
		IsScreenshot: req.IsScreenshot,
		ImportedAt:   time.Now(),
	}
	if err := h.photos.Upsert(r.Context(), photo); err != nil {
		log.Printf("registering photo %s failed: %v", sanitizeForLog(req.UID), err)
		respondError(w, http.StatusInternalServerError, "failed to register photo")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"status": "ok"})
}

type photoResponse struct {
	UID          string     `json:"uid"`
	Project      string     `json:"project"`
	Path         string     `json:"path"`
	Width        int        `json:"width"`
	Height       int        `json:"height"`
	FileSize     int64      `json:"file_size"`
	TakenAt      *time.Time `json:"taken_at,omitempty"`
	IsScreenshot bool       `json:"is_screenshot,omitempty"`
	Caption      string     `json:"caption,omitempty"`
	ImportedAt   time.Time  `json:"imported_at"`
}

// Get returns one photo record.
func (h *PhotosHandler) Get(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	photo, err := h.photos.Get(r.Context(), uid)
	if err != nil {
		log.Printf("loading photo %s failed: %v", sanitizeForLog(uid), err)
		respondError(w, http.StatusInternalServerError, "failed to load photo")
		return
	}
	if photo == nil {
		respondError(w, http.StatusNotFound, "photo not found")
		return
	}

	respondJSON(w, http.StatusOK, photoResponse{
		UID:          photo.UID,
		Project:      photo.Project,
		Path:         photo.Path,
		Width:        photo.Width,
		Height:       photo.Height,
		FileSize:     photo.FileSize,
		TakenAt:      photo.TakenAt,
		IsScreenshot: photo.IsScreenshot,
		Caption:      photo.Caption,
		ImportedAt:   photo.ImportedAt,
	})
}
