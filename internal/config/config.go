package config

import (
	_ "embed"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

//go:embed clustering.yaml
var clusteringYAML []byte

type Config struct {
	Database   DatabaseConfig
	Compute    ComputeConfig
	Worker     WorkerConfig
	Clustering ClusteringConfig
	OpenAI     OpenAIConfig
	Gemini     GeminiConfig
	Ollama     OllamaConfig
	LlamaCpp   LlamaCppConfig
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type ComputeConfig struct {
	URL   string // base URL of the compute service (defaults to http://localhost:8000)
	Model string // model name for embedding bookkeeping (defaults to clip)
	Dim   int    // embedding dimension for image/text embeddings (defaults to 768)
}

type WorkerConfig struct {
	Slots               int // number of concurrent job slots (default 2)
	LeaseSeconds        int // job lease TTL (default 60)
	HeartbeatSeconds    int // heartbeat interval, must stay well below the lease TTL (default 10)
	PollMillis          int // queue poll interval when idle (default 1000)
	RetentionDays       int // terminal jobs older than this are deleted by the janitor (default 30)
	RemovalSuppressDays int // suppression window after removing a previously confirmed tag (default 90)
}

type OpenAIConfig struct {
	Token string
}

type GeminiConfig struct {
	APIKey string
}

type OllamaConfig struct {
	URL   string // defaults to http://localhost:11434
	Model string // defaults to llama3.2-vision:11b
}

type LlamaCppConfig struct {
	URL   string // defaults to http://localhost:8080
	Model string // defaults to llava
}

// ClusteringConfig holds the adaptive parameter table and merge defaults.
// Loaded from the embedded clustering.yaml.
type ClusteringConfig struct {
	Buckets []ParamBucket `yaml:"buckets"`
	Merge   MergeConfig   `yaml:"merge"`
}

// ParamBucket maps a face-count range to DBSCAN parameters.
// MaxFaces of 0 means no upper bound.
type ParamBucket struct {
	MaxFaces   int     `yaml:"max_faces"`
	Eps        float64 `yaml:"eps"`
	MinSamples int     `yaml:"min_samples"`
}

type MergeConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	MaxCandidates       int     `yaml:"max_candidates"`
}

// envDefault reads an environment variable with a fallback for the empty case.
func envDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

func Load() *Config {
	var clustering ClusteringConfig
	if err := yaml.Unmarshal(clusteringYAML, &clustering); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded clustering.yaml: " + err.Error())
	}
	if t := os.Getenv("MERGE_SIMILARITY_THRESHOLD"); t != "" {
		if f, err := strconv.ParseFloat(t, 64); err == nil && f > 0 && f <= 1 {
			clustering.Merge.SimilarityThreshold = f
		}
	}
	clustering.Merge.MaxCandidates = envInt("MERGE_MAX_CANDIDATES", clustering.Merge.MaxCandidates)

	return &Config{
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Compute: ComputeConfig{
			URL:   os.Getenv("COMPUTE_URL"),
			Model: envDefault("COMPUTE_MODEL", "clip"),
			Dim:   envInt("COMPUTE_EMBEDDING_DIM", 768),
		},
		Worker: WorkerConfig{
			Slots:               envInt("WORKER_SLOTS", 2),
			LeaseSeconds:        envInt("WORKER_LEASE_SECONDS", 60),
			HeartbeatSeconds:    envInt("WORKER_HEARTBEAT_SECONDS", 10),
			PollMillis:          envInt("WORKER_POLL_MILLIS", 1000),
			RetentionDays:       envInt("JOB_RETENTION_DAYS", 30),
			RemovalSuppressDays: envInt("TAG_REMOVAL_SUPPRESS_DAYS", 90),
		},
		Clustering: clustering,
		OpenAI: OpenAIConfig{
			Token: os.Getenv("OPENAI_TOKEN"),
		},
		Gemini: GeminiConfig{
			APIKey: os.Getenv("GEMINI_API_KEY"),
		},
		Ollama: OllamaConfig{
			URL:   os.Getenv("OLLAMA_URL"),
			Model: os.Getenv("OLLAMA_MODEL"),
		},
		LlamaCpp: LlamaCppConfig{
			URL:   os.Getenv("LLAMACPP_URL"),
			Model: os.Getenv("LLAMACPP_MODEL"),
		},
	}
}
