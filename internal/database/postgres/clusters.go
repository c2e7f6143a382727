package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jsvoboda/photo-curator/internal/database"
)

// ClusterRepository provides PostgreSQL-backed person cluster storage.
type ClusterRepository struct {
	pool *Pool
}

// NewClusterRepository creates a new PostgreSQL cluster repository.
func NewClusterRepository(pool *Pool) *ClusterRepository {
	return &ClusterRepository{pool: pool}
}

const clusterColumns = `id, project, label, representative_face_id, member_count, created_at, updated_at`

// Create inserts an unnamed cluster row and returns its id.
func (r *ClusterRepository) Create(ctx context.Context, project string) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		"INSERT INTO clusters (project) VALUES ($1) RETURNING id", project).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create cluster: %w", err)
	}
	return id, nil
}

// Get returns a cluster by id, or nil if it does not exist.
func (r *ClusterRepository) Get(ctx context.Context, id int64) (*database.Cluster, error) {
	row := r.pool.QueryRow(ctx,
		fmt.Sprintf("SELECT %s FROM clusters WHERE id = $1", clusterColumns), id)

	var c database.Cluster
	err := row.Scan(&c.ID, &c.Project, &c.Label, &c.RepresentativeFaceID,
		&c.MemberCount, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cluster %d: %w", id, err)
	}
	return &c, nil
}

// ListByProject returns all clusters of a project ordered by id.
func (r *ClusterRepository) ListByProject(ctx context.Context, project string) ([]database.Cluster, error) {
	rows, err := r.pool.Query(ctx,
		fmt.Sprintf("SELECT %s FROM clusters WHERE project = $1 ORDER BY id", clusterColumns), project)
	if err != nil {
		return nil, fmt.Errorf("list clusters: %w", err)
	}
	defer rows.Close()

	var clusters []database.Cluster
	for rows.Next() {
		var c database.Cluster
		err := rows.Scan(&c.ID, &c.Project, &c.Label, &c.RepresentativeFaceID,
			&c.MemberCount, &c.CreatedAt, &c.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan cluster: %w", err)
		}
		clusters = append(clusters, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate clusters: %w", err)
	}
	return clusters, nil
}

// SetLabel names a cluster. Naming is a user action and protects the
// cluster from being destroyed by re-clustering.
func (r *ClusterRepository) SetLabel(ctx context.Context, id int64, label string) error {
	result, err := r.pool.Exec(ctx,
		"UPDATE clusters SET label = $2, updated_at = NOW() WHERE id = $1", id, label)
	if err != nil {
		return fmt.Errorf("set cluster label: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set cluster label rows affected: %w", err)
	}
	if affected == 0 {
		return database.ErrNotFound
	}
	return nil
}

// UpdateStats stores the recomputed member count and representative face.
func (r *ClusterRepository) UpdateStats(ctx context.Context, id int64, memberCount int, representativeFaceID int64) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE clusters
		SET member_count = $2, representative_face_id = $3, updated_at = NOW()
		WHERE id = $1
	`, id, memberCount, representativeFaceID)
	if err != nil {
		return fmt.Errorf("update cluster stats: %w", err)
	}
	return nil
}

// Delete removes a cluster row.
func (r *ClusterRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, "DELETE FROM clusters WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete cluster %d: %w", id, err)
	}
	return nil
}
