package postgres

import (
	"context"
	"fmt"

	"github.com/jsvoboda/photo-curator/internal/database"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// FaceRepository provides PostgreSQL-backed face detection storage.
type FaceRepository struct {
	pool *Pool
}

// NewFaceRepository creates a new PostgreSQL face repository.
func NewFaceRepository(pool *Pool) *FaceRepository {
	return &FaceRepository{pool: pool}
}

const faceColumns = `id, project, photo_uid, face_index, embedding, bbox,
	det_score, quality, cluster_id, model, dim, created_at`

// ReplaceFaces replaces all faces for a photo in one transaction.
// Re-detection supersedes prior detections, it never merges with them.
func (r *FaceRepository) ReplaceFaces(ctx context.Context, project, photoUID string, faces []database.StoredFace) error {
	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM faces WHERE photo_uid = $1", photoUID); err != nil {
		return fmt.Errorf("delete prior faces for %s: %w", photoUID, err)
	}

	for _, face := range faces {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO faces (project, photo_uid, face_index, embedding, bbox, det_score, quality, model, dim)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, project, photoUID, face.FaceIndex, pgvector.NewVector(face.Embedding),
			pq.Array(face.BBox), face.DetScore, face.Quality, face.Model, face.Dim)
		if err != nil {
			return fmt.Errorf("insert face %d for %s: %w", face.FaceIndex, photoUID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit faces for %s: %w", photoUID, err)
	}
	return nil
}

// GetFaces retrieves all faces for a photo ordered by face index.
func (r *FaceRepository) GetFaces(ctx context.Context, photoUID string) ([]database.StoredFace, error) {
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM faces WHERE photo_uid = $1 ORDER BY face_index
	`, faceColumns), photoUID)
	if err != nil {
		return nil, fmt.Errorf("query faces: %w", err)
	}
	defer rows.Close()

	return scanFaces(rows)
}

// ListByProject returns every face of a project ordered by id, so repeated
// clustering runs always see members in the same order.
func (r *FaceRepository) ListByProject(ctx context.Context, project string) ([]database.StoredFace, error) {
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM faces WHERE project = $1 ORDER BY id
	`, faceColumns), project)
	if err != nil {
		return nil, fmt.Errorf("query project faces: %w", err)
	}
	defer rows.Close()

	return scanFaces(rows)
}

// ListByCluster returns the member faces of a cluster ordered by id.
func (r *FaceRepository) ListByCluster(ctx context.Context, clusterID int64) ([]database.StoredFace, error) {
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM faces WHERE cluster_id = $1 ORDER BY id
	`, faceColumns), clusterID)
	if err != nil {
		return nil, fmt.Errorf("query cluster faces: %w", err)
	}
	defer rows.Close()

	return scanFaces(rows)
}

// HasFaces checks whether face detection ran for a photo.
func (r *FaceRepository) HasFaces(ctx context.Context, photoUID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM faces WHERE photo_uid = $1)", photoUID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check faces exist: %w", err)
	}
	return exists, nil
}

// AssignClusters rewrites cluster assignments in one transaction so a
// half-applied clustering run is never visible.
func (r *FaceRepository) AssignClusters(ctx context.Context, assignments map[int64]int64, unclustered []int64) error {
	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for faceID, clusterID := range assignments {
		if _, err := tx.ExecContext(ctx,
			"UPDATE faces SET cluster_id = $2 WHERE id = $1", faceID, clusterID); err != nil {
			return fmt.Errorf("assign face %d to cluster %d: %w", faceID, clusterID, err)
		}
	}

	if len(unclustered) > 0 {
		if _, err := tx.ExecContext(ctx,
			"UPDATE faces SET cluster_id = 0 WHERE id = ANY($1)", pq.Array(unclustered)); err != nil {
			return fmt.Errorf("clear cluster assignments: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit cluster assignments: %w", err)
	}
	return nil
}

// CountByProject returns the number of faces in a project.
func (r *FaceRepository) CountByProject(ctx context.Context, project string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM faces WHERE project = $1", project).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count faces: %w", err)
	}
	return count, nil
}

func scanFaces(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]database.StoredFace, error) {
	var faces []database.StoredFace
	for rows.Next() {
		var face database.StoredFace
		var embedding pgvector.Vector
		var bbox pq.Float64Array

		err := rows.Scan(
			&face.ID, &face.Project, &face.PhotoUID, &face.FaceIndex, &embedding,
			&bbox, &face.DetScore, &face.Quality, &face.ClusterID, &face.Model,
			&face.Dim, &face.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan face: %w", err)
		}
		face.Embedding = embedding.Slice()
		face.BBox = bbox
		faces = append(faces, face)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate faces: %w", err)
	}
	return faces, nil
}
