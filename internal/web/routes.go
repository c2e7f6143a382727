package web

import (
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jsvoboda/photo-curator/internal/web/handlers"
	"github.com/jsvoboda/photo-curator/internal/web/static"
)

func (s *Server) setupRoutes() {
	jobsHandler := handlers.NewJobsHandler(s.deps.Jobs, s.deps.Events)
	clustersHandler := handlers.NewClustersHandler(s.deps.Clusters, s.deps.Faces, s.deps.Merges)
	tagsHandler := handlers.NewTagsHandler(s.deps.Tags)
	photosHandler := handlers.NewPhotosHandler(s.deps.Photos)
	statsHandler := handlers.NewStatsHandler(s.deps.Faces, s.deps.Embeddings, s.deps.Tracker)

	// Health check
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	// API routes
	s.router.Route("/api/v1", func(r chi.Router) {
		// Jobs (durable queue)
		r.Post("/jobs", jobsHandler.Enqueue)
		r.Get("/jobs", jobsHandler.List)
		r.Get("/jobs/{id}", jobsHandler.Get)
		r.Delete("/jobs/{id}", jobsHandler.Cancel)
		r.Post("/jobs/recover", jobsHandler.Recover)
		r.Get("/events", jobsHandler.Events)

		// Clusters
		r.Get("/clusters", clustersHandler.List)
		r.Get("/clusters/{id}", clustersHandler.Get)
		r.Put("/clusters/{id}", clustersHandler.Rename)
		r.Get("/clusters/merge-suggestions", clustersHandler.MergeSuggestions)
		r.Post("/clusters/{id}/merge", clustersHandler.AcceptMerge)

		// Photos (scanner registration + metadata)
		r.Post("/photos", photosHandler.Register)
		r.Get("/photos/{uid}", photosHandler.Get)

		// Tags: facts are user-owned, suggestions await a decision
		r.Get("/photos/{uid}/tags", tagsHandler.Facts)
		r.Post("/photos/{uid}/tags", tagsHandler.Add)
		r.Delete("/photos/{uid}/tags/{tag}", tagsHandler.Remove)
		r.Get("/suggestions", tagsHandler.Pending)
		r.Post("/suggestions/confirm", tagsHandler.Confirm)
		r.Post("/suggestions/reject", tagsHandler.Reject)

		// Stats
		r.Get("/stats", statsHandler.Get)
	})

	// Serve static files for frontend (SPA)
	s.router.Get("/*", s.serveSPA)
}

// serveSPA serves the single-page application from the embedded dist
// directory, falling back to index.html for client-side routes.
func (s *Server) serveSPA(w http.ResponseWriter, r *http.Request) {
	if !static.HasDist() {
		http.NotFound(w, r)
		return
	}

	fs := static.GetFileSystem()
	path := r.URL.Path
	if path == "/" {
		path = "/index.html"
	}

	f, err := fs.Open(path)
	if err == nil {
		defer f.Close()
		if stat, err := f.Stat(); err == nil && !stat.IsDir() {
			w.Header().Set("Content-Type", contentTypeFor(path))
			if strings.HasPrefix(path, "/assets/") {
				w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
			}
			w.WriteHeader(http.StatusOK)
			io.Copy(w, f)
			return
		}
	}

	// For SPA routing, serve index.html for non-asset paths
	if strings.HasPrefix(path, "/assets/") {
		http.NotFound(w, r)
		return
	}
	indexFile, err := fs.Open("/index.html")
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer indexFile.Close()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.Copy(w, indexFile)
}

func contentTypeFor(path string) string {
	switch {
	case strings.HasSuffix(path, ".html"):
		return "text/html; charset=utf-8"
	case strings.HasSuffix(path, ".css"):
		return "text/css; charset=utf-8"
	case strings.HasSuffix(path, ".js"):
		return "application/javascript; charset=utf-8"
	case strings.HasSuffix(path, ".json"):
		return "application/json"
	case strings.HasSuffix(path, ".svg"):
		return "image/svg+xml"
	case strings.HasSuffix(path, ".png"):
		return "image/png"
	case strings.HasSuffix(path, ".jpg"), strings.HasSuffix(path, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(path, ".ico"):
		return "image/x-icon"
	case strings.HasSuffix(path, ".woff2"):
		return "font/woff2"
	case strings.HasSuffix(path, ".woff"):
		return "font/woff"
	}
	return "application/octet-stream"
}
