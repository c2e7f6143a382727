package database

import (
	"context"
	"time"
)

// JobStore is the durable job table plus the lease protocol over it.
// Claim, Heartbeat and Complete are single conditional updates so they stay
// race-free under concurrent workers.
type JobStore interface {
	// Enqueue inserts a queued job and returns its id. For cluster jobs the
	// insert is conditional: it fails with ErrClusterJobActive while another
	// cluster job for the same project is queued or running.
	Enqueue(ctx context.Context, kind JobKind, backend JobBackend, project string, payload []byte) (string, error)
	// NextQueued returns the oldest queued job, or nil if the queue is empty.
	NextQueued(ctx context.Context) (*Job, error)
	// Claim atomically transitions queued->running for this worker and sets
	// the lease. Returns false if another worker won the race.
	Claim(ctx context.Context, jobID, workerID string, leaseSeconds int) (bool, error)
	// Heartbeat extends the lease and records progress. The returned state
	// tells the handler whether it still owns the job and whether a cancel
	// was requested.
	Heartbeat(ctx context.Context, jobID, workerID string, progress float64, leaseSeconds int) (HeartbeatState, error)
	// Complete transitions running->done or running->failed and clears the
	// lease. A second call is a no-op.
	Complete(ctx context.Context, jobID string, success bool, errMsg string) error
	// RequestCancel sets the cooperative cancel flag. Handlers observe it at
	// the next heartbeat.
	RequestCancel(ctx context.Context, jobID string) error
	// RecoverZombies marks running jobs with expired leases as failed and
	// returns how many were affected. It never re-runs anything.
	RecoverZombies(ctx context.Context, now time.Time) (int, error)
	// Get returns a job by id, or nil if it does not exist.
	Get(ctx context.Context, jobID string) (*Job, error)
	// List returns the most recent jobs, newest first.
	List(ctx context.Context, project string, limit int) ([]Job, error)
	// DeleteTerminalBefore deletes done/failed/cancelled jobs older than the
	// cutoff (retention cleanup).
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// FaceStore persists face detections and their cluster assignments.
type FaceStore interface {
	// ReplaceFaces replaces all faces for a photo (re-detection supersedes).
	ReplaceFaces(ctx context.Context, project, photoUID string, faces []StoredFace) error
	// GetFaces retrieves all faces for a photo ordered by face index.
	GetFaces(ctx context.Context, photoUID string) ([]StoredFace, error)
	// ListByProject returns every face of a project ordered by id.
	ListByProject(ctx context.Context, project string) ([]StoredFace, error)
	// ListByCluster returns the member faces of a cluster ordered by id.
	ListByCluster(ctx context.Context, clusterID int64) ([]StoredFace, error)
	// HasFaces checks whether face detection ran for a photo.
	HasFaces(ctx context.Context, photoUID string) (bool, error)
	// AssignClusters rewrites cluster assignments for the given face ids.
	// Faces listed in unclustered get their assignment cleared.
	AssignClusters(ctx context.Context, assignments map[int64]int64, unclustered []int64) error
	// CountByProject returns the number of faces in a project.
	CountByProject(ctx context.Context, project string) (int, error)
}

// ClusterStore persists person clusters.
type ClusterStore interface {
	// Create inserts a cluster row and returns its id.
	Create(ctx context.Context, project string) (int64, error)
	// Get returns a cluster by id, or nil if it does not exist.
	Get(ctx context.Context, id int64) (*Cluster, error)
	// ListByProject returns all clusters of a project ordered by id.
	ListByProject(ctx context.Context, project string) ([]Cluster, error)
	// SetLabel names a cluster (user action).
	SetLabel(ctx context.Context, id int64, label string) error
	// UpdateStats stores the recomputed member count and representative.
	UpdateStats(ctx context.Context, id int64, memberCount int, representativeFaceID int64) error
	// Delete removes a cluster row. Member faces must be reassigned first;
	// clusters are destroyed when their member count reaches zero.
	Delete(ctx context.Context, id int64) error
}

// PhotoStore keeps scanner-provided photo metadata.
type PhotoStore interface {
	// Upsert registers or refreshes a photo record.
	Upsert(ctx context.Context, photo *Photo) error
	// Get returns a photo by uid, or nil if unknown.
	Get(ctx context.Context, uid string) (*Photo, error)
	// GetBatch returns photos for the given uids keyed by uid.
	GetBatch(ctx context.Context, uids []string) (map[string]*Photo, error)
	// ListByProject returns all photos of a project ordered by imported_at.
	ListByProject(ctx context.Context, project string) ([]Photo, error)
	// SetCaption stores a machine-generated caption.
	SetCaption(ctx context.Context, uid, caption string) error
}

// EmbeddingStore persists whole-image and text embeddings keyed by
// (photo_uid, model_id, embedding_type).
type EmbeddingStore interface {
	Save(ctx context.Context, emb *StoredEmbedding) error
	Has(ctx context.Context, photoUID, modelID, embeddingType string) (bool, error)
	CountByProject(ctx context.Context, project string) (int, error)
}

// TagStore implements the three-tier tag model: facts are authoritative,
// suggestions are ephemeral machine output, decisions are append-only audit
// and suppression records. Each transition method runs in one transaction
// so a fact is never written without its decision or vice versa.
type TagStore interface {
	// SaveSuggestion upserts a machine suggestion (newer runs supersede).
	SaveSuggestion(ctx context.Context, s *TagSuggestion) error
	// ActiveSuggestions returns suggestions whose (photo, tag) pair has no
	// unexpired reject decision.
	ActiveSuggestions(ctx context.Context, project string, now time.Time) ([]TagSuggestion, error)
	// Confirm writes the fact, appends a confirm decision and deletes the
	// suggestion row, all atomically.
	Confirm(ctx context.Context, project, photoUID, tag, modelID string) error
	// Reject appends a reject decision with the suppression deadline and
	// deletes the suggestion row. Facts are untouched.
	Reject(ctx context.Context, project, photoUID, tag, modelID string, suppressUntil time.Time) error
	// AddFact writes a fact directly (manual tagging). No decision row.
	AddFact(ctx context.Context, project, photoUID, tag string) error
	// RemoveFact deletes a fact. If a prior confirm decision exists for the
	// pair, an implicit reject with the given deadline is appended so the
	// suggestion does not immediately resurface.
	RemoveFact(ctx context.Context, project, photoUID, tag string, resuppressUntil time.Time) error
	// HasFact reports whether the tag is confirmed for the photo.
	HasFact(ctx context.Context, project, photoUID, tag string) (bool, error)
	// ListFacts returns all facts for a photo.
	ListFacts(ctx context.Context, project, photoUID string) ([]TagFact, error)
	// HasActiveReject reports whether the pair is under active suppression.
	HasActiveReject(ctx context.Context, project, photoUID, tag string, now time.Time) (bool, error)
	// SweepExpired deletes decision rows whose suppression has passed,
	// allowing those tags to be suggested again.
	SweepExpired(ctx context.Context, now time.Time) (int, error)
}

// RunStore records job executions for performance tracking.
type RunStore interface {
	Record(ctx context.Context, sample *RunSample) error
	// RecentByKind returns the newest samples for a kind, newest first.
	RecentByKind(ctx context.Context, kind JobKind, limit int) ([]RunSample, error)
}
