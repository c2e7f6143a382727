package config

import (
	"os"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	os.Unsetenv("WORKER_SLOTS")
	os.Unsetenv("WORKER_LEASE_SECONDS")
	os.Unsetenv("DATABASE_MAX_OPEN_CONNS")

	cfg := Load()

	if cfg.Worker.Slots != 2 {
		t.Errorf("expected default worker slots 2, got %d", cfg.Worker.Slots)
	}
	if cfg.Worker.LeaseSeconds != 60 {
		t.Errorf("expected default lease seconds 60, got %d", cfg.Worker.LeaseSeconds)
	}
	if cfg.Worker.RemovalSuppressDays != 90 {
		t.Errorf("expected default removal suppress days 90, got %d", cfg.Worker.RemovalSuppressDays)
	}
	if cfg.Database.MaxOpenConns != 25 {
		t.Errorf("expected default max open conns 25, got %d", cfg.Database.MaxOpenConns)
	}
}

func TestLoadEmbeddedClusteringTable(t *testing.T) {
	cfg := Load()

	if len(cfg.Clustering.Buckets) != 5 {
		t.Fatalf("expected 5 clustering buckets, got %d", len(cfg.Clustering.Buckets))
	}

	first := cfg.Clustering.Buckets[0]
	if first.MaxFaces != 50 || first.Eps != 0.42 || first.MinSamples != 2 {
		t.Errorf("unexpected first bucket: %+v", first)
	}

	last := cfg.Clustering.Buckets[4]
	if last.MaxFaces != 0 || last.Eps != 0.30 || last.MinSamples != 3 {
		t.Errorf("unexpected last bucket: %+v", last)
	}

	if cfg.Clustering.Merge.SimilarityThreshold != 0.85 {
		t.Errorf("expected merge threshold 0.85, got %f", cfg.Clustering.Merge.SimilarityThreshold)
	}
	if cfg.Clustering.Merge.MaxCandidates != 5 {
		t.Errorf("expected max candidates 5, got %d", cfg.Clustering.Merge.MaxCandidates)
	}
}

func TestEnvIntInvalid(t *testing.T) {
	os.Setenv("WORKER_SLOTS", "not-a-number")
	defer os.Unsetenv("WORKER_SLOTS")

	cfg := Load()
	if cfg.Worker.Slots != 2 {
		t.Errorf("expected fallback to default 2 for invalid value, got %d", cfg.Worker.Slots)
	}
}

func TestMergeThresholdOverride(t *testing.T) {
	os.Setenv("MERGE_SIMILARITY_THRESHOLD", "0.9")
	defer os.Unsetenv("MERGE_SIMILARITY_THRESHOLD")

	cfg := Load()
	if cfg.Clustering.Merge.SimilarityThreshold != 0.9 {
		t.Errorf("expected overridden threshold 0.9, got %f", cfg.Clustering.Merge.SimilarityThreshold)
	}
}
