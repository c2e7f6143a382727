package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/jsvoboda/photo-curator/internal/database"
)

type fakePhotoStore struct {
	mu     sync.Mutex
	photos map[string]*database.Photo
}

func newFakePhotoStore() *fakePhotoStore {
	return &fakePhotoStore{photos: make(map[string]*database.Photo)}
}

func (s *fakePhotoStore) Upsert(ctx context.Context, photo *database.Photo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.photos[photo.UID] = photo
	return nil
}

func (s *fakePhotoStore) Get(ctx context.Context, uid string) (*database.Photo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.photos[uid], nil
}

func (s *fakePhotoStore) GetBatch(ctx context.Context, uids []string) (map[string]*database.Photo, error) {
	return nil, nil
}

func (s *fakePhotoStore) ListByProject(ctx context.Context, project string) ([]database.Photo, error) {
	return nil, nil
}

func (s *fakePhotoStore) SetCaption(ctx context.Context, uid, caption string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.photos[uid]; ok {
		p.Caption = caption
	}
	return nil
}

func TestRegisterPhoto(t *testing.T) {
	store := newFakePhotoStore()
	h := NewPhotosHandler(store)

	body := `{"uid":"p1","project":"vacation","path":"/photos/p1.jpg","width":4000,"height":3000,"file_size":123456}`
	rec := httptest.NewRecorder()
	h.Register(rec, httptest.NewRequest(http.MethodPost, "/api/v1/photos", strings.NewReader(body)))

	assertStatusCode(t, rec, http.StatusCreated)
	p := store.photos["p1"]
	if p == nil || p.Width != 4000 || p.Project != "vacation" {
		t.Errorf("photo not stored: %+v", p)
	}
	if p.ImportedAt.IsZero() {
		t.Error("imported_at not set")
	}
}

func TestRegisterPhotoRequiresIdentity(t *testing.T) {
	h := NewPhotosHandler(newFakePhotoStore())

	rec := httptest.NewRecorder()
	h.Register(rec, httptest.NewRequest(http.MethodPost, "/api/v1/photos", strings.NewReader(`{"uid":"p1"}`)))
	assertStatusCode(t, rec, http.StatusBadRequest)
}

func TestGetPhoto(t *testing.T) {
	store := newFakePhotoStore()
	store.photos["p1"] = &database.Photo{UID: "p1", Project: "vacation", Path: "/photos/p1.jpg", Caption: "a beach"}
	h := NewPhotosHandler(store)

	req := requestWithChiParams(httptest.NewRequest(http.MethodGet, "/api/v1/photos/p1", nil), map[string]string{"uid": "p1"})
	rec := httptest.NewRecorder()
	h.Get(rec, req)

	assertStatusCode(t, rec, http.StatusOK)
	var resp photoResponse
	parseJSONResponse(t, rec, &resp)
	if resp.UID != "p1" || resp.Caption != "a beach" {
		t.Errorf("unexpected photo %+v", resp)
	}
}

func TestGetPhotoNotFound(t *testing.T) {
	h := NewPhotosHandler(newFakePhotoStore())

	req := requestWithChiParams(httptest.NewRequest(http.MethodGet, "/api/v1/photos/nope", nil), map[string]string{"uid": "nope"})
	rec := httptest.NewRecorder()
	h.Get(rec, req)
	assertStatusCode(t, rec, http.StatusNotFound)
}
