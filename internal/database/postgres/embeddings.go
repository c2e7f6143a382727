package postgres

import (
	"context"
	"fmt"

	"github.com/jsvoboda/photo-curator/internal/database"
	"github.com/pgvector/pgvector-go"
)

// EmbeddingRepository persists whole-image and text embeddings. The
// composite (photo_uid, model_id, embedding_type) key allows multiple
// embedding kinds per photo without collision.
type EmbeddingRepository struct {
	pool *Pool
}

// NewEmbeddingRepository creates a new PostgreSQL embedding repository.
func NewEmbeddingRepository(pool *Pool) *EmbeddingRepository {
	return &EmbeddingRepository{pool: pool}
}

// Save upserts an embedding.
func (r *EmbeddingRepository) Save(ctx context.Context, emb *database.StoredEmbedding) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO embeddings (photo_uid, project, model_id, embedding_type, embedding, dim)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (photo_uid, model_id, embedding_type) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			dim = EXCLUDED.dim,
			created_at = NOW()
	`, emb.PhotoUID, emb.Project, emb.ModelID, emb.EmbeddingType,
		pgvector.NewVector(emb.Embedding), emb.Dim)
	if err != nil {
		return fmt.Errorf("save embedding for %s: %w", emb.PhotoUID, err)
	}
	return nil
}

// Has checks whether an embedding exists for the composite key.
func (r *EmbeddingRepository) Has(ctx context.Context, photoUID, modelID, embeddingType string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM embeddings
			WHERE photo_uid = $1 AND model_id = $2 AND embedding_type = $3
		)
	`, photoUID, modelID, embeddingType).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check embedding exists: %w", err)
	}
	return exists, nil
}

// CountByProject returns the number of embeddings in a project.
func (r *EmbeddingRepository) CountByProject(ctx context.Context, project string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM embeddings WHERE project = $1", project).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count embeddings: %w", err)
	}
	return count, nil
}
