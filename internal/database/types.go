package database

import (
	"time"
)

// JobKind identifies the handler that executes a job.
type JobKind string

const (
	KindDetectFaces JobKind = "detect_faces"
	KindEmbed       JobKind = "embed"
	KindCluster     JobKind = "cluster"
	KindCaption     JobKind = "caption"
)

// JobStatus represents the lifecycle state of a job. Exactly one status
// holds at any time; done, failed and cancelled are terminal.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobDone      JobStatus = "done"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// IsTerminal returns true for statuses that will never change again.
func (s JobStatus) IsTerminal() bool {
	return s == JobDone || s == JobFailed || s == JobCancelled
}

// JobBackend selects the compute backend a job should run on.
type JobBackend string

const (
	BackendCPU       JobBackend = "cpu"
	BackendGPULocal  JobBackend = "gpu_local"
	BackendGPURemote JobBackend = "gpu_remote"
)

// Job is a durable job record. worker_id and lease_expires_at are non-null
// iff the job is running; the lease expiry is the sole crash signal.
type Job struct {
	ID              string
	Kind            JobKind
	Status          JobStatus
	Backend         JobBackend
	Project         string
	Payload         []byte // opaque JSON parameters for the handler
	WorkerID        string // empty unless running
	LeaseExpiresAt  *time.Time
	LastHeartbeatAt *time.Time
	Progress        float64 // 0.0 - 1.0
	Error           string
	CancelRequested bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// HeartbeatState is returned to the running handler on every heartbeat.
// Owned=false means the lease was lost (recovery reclaimed the job) and the
// handler must stop working on it.
type HeartbeatState struct {
	Owned           bool
	CancelRequested bool
}

// StoredFace is one face detection with its embedding. Only ClusterID and
// Quality are ever updated after creation; re-detection replaces rows.
type StoredFace struct {
	ID        int64
	Project   string
	PhotoUID  string
	FaceIndex int
	Embedding []float32
	BBox      []float64 // [x1, y1, x2, y2] in raw pixel coordinates
	DetScore  float64
	Quality   float64
	ClusterID int64 // 0 = unclustered
	Model     string
	Dim       int
	CreatedAt time.Time
}

// Cluster groups face detections believed to depict the same person.
// Label is empty until a user names the cluster.
type Cluster struct {
	ID                   int64
	Project              string
	Label                string
	RepresentativeFaceID int64 // 0 = none selected yet
	MemberCount          int
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Labeled returns true if a user has named this cluster.
func (c *Cluster) Labeled() bool {
	return c.Label != ""
}

// Photo is scanner-provided metadata for a library photo. The fields beyond
// path exist for representative selection (resolution, size, dates, source).
type Photo struct {
	UID          string
	Project      string
	Path         string
	Width        int
	Height       int
	FileSize     int64
	TakenAt      *time.Time
	IsScreenshot bool
	Caption      string
	ImportedAt   time.Time
}

// PixelArea returns the photo resolution in pixels.
func (p *Photo) PixelArea() int64 {
	return int64(p.Width) * int64(p.Height)
}

// StoredEmbedding is a whole-image or text embedding, keyed by
// (photo_uid, model_id, embedding_type) so multiple embedding kinds per
// photo never collide.
type StoredEmbedding struct {
	PhotoUID      string
	Project       string
	ModelID       string
	EmbeddingType string // "image" or "text"
	Embedding     []float32
	Dim           int
	CreatedAt     time.Time
}

// TagFact is the sole authoritative record of a confirmed tag.
type TagFact struct {
	Project   string
	PhotoUID  string
	Tag       string
	CreatedAt time.Time
}

// TagSuggestion is ephemeral machine output awaiting a user decision.
type TagSuggestion struct {
	Project   string
	PhotoUID  string
	Tag       string
	ModelID   string
	Score     float64
	CreatedAt time.Time
}

// TagDecisionKind is the user's verdict on a suggestion.
type TagDecisionKind string

const (
	DecisionConfirm TagDecisionKind = "confirm"
	DecisionReject  TagDecisionKind = "reject"
)

// TagDecision is an append-only audit/suppression record. Rejects carry a
// suppression window that keeps the same suggestion from resurfacing.
type TagDecision struct {
	ID            int64
	Project       string
	PhotoUID      string
	Tag           string
	Decision      TagDecisionKind
	SourceModelID string
	SuppressUntil *time.Time
	CreatedAt     time.Time
}

// MergeSuggestion proposes merging two clusters whose centroids are close.
type MergeSuggestion struct {
	Project    string
	ClusterID  int64
	OtherID    int64
	Similarity float64
}

// RunSample records one job execution for performance tracking.
type RunSample struct {
	ID         int64
	JobID      string
	Kind       JobKind
	Backend    JobBackend
	DurationMs int64
	Items      int
	Success    bool
	Error      string
	CreatedAt  time.Time
}
