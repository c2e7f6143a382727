package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/jsvoboda/photo-curator/internal/ai"
	"github.com/jsvoboda/photo-curator/internal/clustering"
	"github.com/jsvoboda/photo-curator/internal/compute"
	"github.com/jsvoboda/photo-curator/internal/config"
	"github.com/jsvoboda/photo-curator/internal/database"
	"github.com/jsvoboda/photo-curator/internal/database/postgres"
	"github.com/jsvoboda/photo-curator/internal/jobs"
	"github.com/jsvoboda/photo-curator/internal/perf"
	"github.com/jsvoboda/photo-curator/internal/suggest"
	"github.com/jsvoboda/photo-curator/internal/tags"
	"github.com/jsvoboda/photo-curator/internal/web"
)

// app bundles the repositories and services every command wires up the
// same way.
type app struct {
	cfg  *config.Config
	pool *postgres.Pool

	jobs       *postgres.JobRepository
	faces      *postgres.FaceRepository
	clusters   *postgres.ClusterRepository
	photos     *postgres.PhotoRepository
	embeddings *postgres.EmbeddingRepository
	tagRepo    *postgres.TagRepository
	runs       *postgres.RunRepository

	tagEngine *tags.Engine
	tracker   *perf.Tracker
	merges    *suggest.MergeService
	engine    *clustering.Engine
	events    *jobs.Broadcaster
}

// initApp connects to PostgreSQL, runs migrations and builds the service
// graph shared by serve, work and the operator commands.
func initApp() (*app, error) {
	cfg := config.Load()
	if cfg.Database.URL == "" {
		return nil, errors.New("DATABASE_URL environment variable is required")
	}

	pool, err := postgres.Initialize(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}

	a := &app{
		cfg:        cfg,
		pool:       pool,
		jobs:       postgres.NewJobRepository(pool),
		faces:      postgres.NewFaceRepository(pool),
		clusters:   postgres.NewClusterRepository(pool),
		photos:     postgres.NewPhotoRepository(pool),
		embeddings: postgres.NewEmbeddingRepository(pool),
		tagRepo:    postgres.NewTagRepository(pool),
		runs:       postgres.NewRunRepository(pool),
		events:     jobs.NewBroadcaster(),
	}
	a.tagEngine = tags.NewEngine(a.tagRepo, cfg.Worker.RemovalSuppressDays)
	a.tracker = perf.NewTracker(a.runs)
	a.merges = suggest.NewMergeService(a.faces, a.clusters, a.photos, cfg.Clustering.Merge)
	a.engine = clustering.NewEngine(a.faces, a.clusters, a.photos, cfg.Clustering.Buckets)
	return a, nil
}

func (a *app) close() {
	if err := a.pool.Close(); err != nil {
		log.Printf("closing database pool: %v", err)
	}
}

// newWorkerPool builds a job pool with every handler registered. The
// caption handler is skipped when no AI provider is configured; caption
// jobs then fail with a clear error instead of silently hanging queued.
func (a *app) newWorkerPool(ctx context.Context) *jobs.Pool {
	pool := jobs.NewPool(a.jobs, a.tagRepo, a.tracker, a.events, a.cfg.Worker)

	client := compute.NewClient(a.cfg.Compute.URL)
	pool.Register(database.KindDetectFaces, jobs.NewDetectHandler(client, a.photos, a.faces))
	pool.Register(database.KindEmbed, jobs.NewEmbedHandler(client, a.photos, a.embeddings, a.cfg.Compute.Model))
	pool.Register(database.KindCluster, jobs.NewClusterHandler(a.engine))

	provider, err := ai.SelectProvider(ctx, a.cfg)
	if err != nil {
		log.Printf("caption jobs disabled: %v", err)
	} else {
		log.Printf("caption provider: %s", provider.Name())
		pool.Register(database.KindCaption, jobs.NewCaptionHandler(provider, a.photos, a.tagEngine))
	}

	return pool
}

// webDeps exposes the service graph to the web layer.
func (a *app) webDeps() web.Deps {
	return web.Deps{
		Jobs:       a.jobs,
		Faces:      a.faces,
		Clusters:   a.clusters,
		Photos:     a.photos,
		Embeddings: a.embeddings,
		Tags:       a.tagEngine,
		Merges:     a.merges,
		Tracker:    a.tracker,
		Events:     a.events,
	}
}
