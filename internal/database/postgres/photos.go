package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jsvoboda/photo-curator/internal/database"
	"github.com/lib/pq"
)

// PhotoRepository keeps scanner-provided photo metadata.
type PhotoRepository struct {
	pool *Pool
}

// NewPhotoRepository creates a new PostgreSQL photo repository.
func NewPhotoRepository(pool *Pool) *PhotoRepository {
	return &PhotoRepository{pool: pool}
}

const photoColumns = `uid, project, path, width, height, file_size, taken_at, is_screenshot, caption, imported_at`

// Upsert registers or refreshes a photo record. The scanner calls this for
// every discovered file; imported_at survives re-registration.
func (r *PhotoRepository) Upsert(ctx context.Context, photo *database.Photo) error {
	var takenAt sql.NullTime
	if photo.TakenAt != nil {
		takenAt = sql.NullTime{Time: *photo.TakenAt, Valid: true}
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO photos (uid, project, path, width, height, file_size, taken_at, is_screenshot)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (uid) DO UPDATE SET
			project = EXCLUDED.project,
			path = EXCLUDED.path,
			width = EXCLUDED.width,
			height = EXCLUDED.height,
			file_size = EXCLUDED.file_size,
			taken_at = EXCLUDED.taken_at,
			is_screenshot = EXCLUDED.is_screenshot
	`, photo.UID, photo.Project, photo.Path, photo.Width, photo.Height,
		photo.FileSize, takenAt, photo.IsScreenshot)
	if err != nil {
		return fmt.Errorf("upsert photo %s: %w", photo.UID, err)
	}
	return nil
}

// Get returns a photo by uid, or nil if unknown.
func (r *PhotoRepository) Get(ctx context.Context, uid string) (*database.Photo, error) {
	row := r.pool.QueryRow(ctx,
		fmt.Sprintf("SELECT %s FROM photos WHERE uid = $1", photoColumns), uid)
	photo, err := scanPhoto(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get photo %s: %w", uid, err)
	}
	return photo, nil
}

// GetBatch returns photos for the given uids keyed by uid.
func (r *PhotoRepository) GetBatch(ctx context.Context, uids []string) (map[string]*database.Photo, error) {
	result := make(map[string]*database.Photo, len(uids))
	if len(uids) == 0 {
		return result, nil
	}

	rows, err := r.pool.Query(ctx,
		fmt.Sprintf("SELECT %s FROM photos WHERE uid = ANY($1)", photoColumns), pq.Array(uids))
	if err != nil {
		return nil, fmt.Errorf("get photos batch: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		photo, err := scanPhoto(rows)
		if err != nil {
			return nil, fmt.Errorf("scan photo: %w", err)
		}
		result[photo.UID] = photo
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate photos: %w", err)
	}
	return result, nil
}

// ListByProject returns all photos of a project ordered by import time.
func (r *PhotoRepository) ListByProject(ctx context.Context, project string) ([]database.Photo, error) {
	rows, err := r.pool.Query(ctx,
		fmt.Sprintf("SELECT %s FROM photos WHERE project = $1 ORDER BY imported_at, uid", photoColumns), project)
	if err != nil {
		return nil, fmt.Errorf("list photos: %w", err)
	}
	defer rows.Close()

	var photos []database.Photo
	for rows.Next() {
		photo, err := scanPhoto(rows)
		if err != nil {
			return nil, fmt.Errorf("scan photo: %w", err)
		}
		photos = append(photos, *photo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate photos: %w", err)
	}
	return photos, nil
}

// SetCaption stores a machine-generated caption for a photo.
func (r *PhotoRepository) SetCaption(ctx context.Context, uid, caption string) error {
	_, err := r.pool.Exec(ctx, "UPDATE photos SET caption = $2 WHERE uid = $1", uid, caption)
	if err != nil {
		return fmt.Errorf("set caption for %s: %w", uid, err)
	}
	return nil
}

func scanPhoto(row rowScanner) (*database.Photo, error) {
	var photo database.Photo
	var takenAt sql.NullTime

	err := row.Scan(&photo.UID, &photo.Project, &photo.Path, &photo.Width,
		&photo.Height, &photo.FileSize, &takenAt, &photo.IsScreenshot,
		&photo.Caption, &photo.ImportedAt)
	if err != nil {
		return nil, err
	}
	if takenAt.Valid {
		photo.TakenAt = &takenAt.Time
	}
	return &photo, nil
}
