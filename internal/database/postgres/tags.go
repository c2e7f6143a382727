package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jsvoboda/photo-curator/internal/database"
)

// TagRepository implements the three-tier tag model. Facts in photo_tags
// are the sole authoritative record; suggestions are ephemeral; decisions
// are append-only. Every state transition runs in one transaction so a
// fact is never written without its audit decision or vice versa.
type TagRepository struct {
	pool *Pool
}

// NewTagRepository creates a new PostgreSQL tag repository.
func NewTagRepository(pool *Pool) *TagRepository {
	return &TagRepository{pool: pool}
}

// SaveSuggestion upserts a machine suggestion; a newer suggestion run
// supersedes the previous row for the same pair.
func (r *TagRepository) SaveSuggestion(ctx context.Context, s *database.TagSuggestion) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO tag_suggestions (project, photo_uid, tag, model_id, score)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (project, photo_uid, tag) DO UPDATE SET
			model_id = EXCLUDED.model_id,
			score = EXCLUDED.score,
			created_at = NOW()
	`, s.Project, s.PhotoUID, s.Tag, s.ModelID, s.Score)
	if err != nil {
		return fmt.Errorf("save suggestion: %w", err)
	}
	return nil
}

// ActiveSuggestions returns suggestions not under active suppression and
// not already confirmed as facts, ranked by score.
func (r *TagRepository) ActiveSuggestions(ctx context.Context, project string, now time.Time) ([]database.TagSuggestion, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT s.project, s.photo_uid, s.tag, s.model_id, s.score, s.created_at
		FROM tag_suggestions s
		WHERE s.project = $1
		  AND NOT EXISTS (
			SELECT 1 FROM tag_decisions d
			WHERE d.project = s.project AND d.photo_uid = s.photo_uid AND d.tag = s.tag
			  AND d.decision = 'reject' AND d.suppress_until IS NOT NULL AND d.suppress_until > $2
		  )
		  AND NOT EXISTS (
			SELECT 1 FROM photo_tags t
			WHERE t.project = s.project AND t.photo_uid = s.photo_uid AND t.tag = s.tag
		  )
		ORDER BY s.score DESC, s.photo_uid, s.tag
	`, project, now)
	if err != nil {
		return nil, fmt.Errorf("query active suggestions: %w", err)
	}
	defer rows.Close()

	var suggestions []database.TagSuggestion
	for rows.Next() {
		var s database.TagSuggestion
		if err := rows.Scan(&s.Project, &s.PhotoUID, &s.Tag, &s.ModelID, &s.Score, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan suggestion: %w", err)
		}
		suggestions = append(suggestions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate suggestions: %w", err)
	}
	return suggestions, nil
}

// Confirm writes the fact, appends a confirm decision and deletes the
// suggestion row atomically. The fact insert is idempotent.
func (r *TagRepository) Confirm(ctx context.Context, project, photoUID, tag, modelID string) error {
	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO photo_tags (project, photo_uid, tag)
		VALUES ($1, $2, $3) ON CONFLICT DO NOTHING
	`, project, photoUID, tag)
	if err != nil {
		return fmt.Errorf("insert fact: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tag_decisions (project, photo_uid, tag, decision, source_model_id)
		VALUES ($1, $2, $3, 'confirm', $4)
	`, project, photoUID, tag, modelID)
	if err != nil {
		return fmt.Errorf("insert confirm decision: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM tag_suggestions WHERE project = $1 AND photo_uid = $2 AND tag = $3
	`, project, photoUID, tag)
	if err != nil {
		return fmt.Errorf("delete suggestion: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit confirm: %w", err)
	}
	return nil
}

// Reject appends a reject decision with the suppression deadline and
// deletes the suggestion row. The facts table is untouched.
func (r *TagRepository) Reject(ctx context.Context, project, photoUID, tag, modelID string, suppressUntil time.Time) error {
	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tag_decisions (project, photo_uid, tag, decision, source_model_id, suppress_until)
		VALUES ($1, $2, $3, 'reject', $4, $5)
	`, project, photoUID, tag, modelID, suppressUntil)
	if err != nil {
		return fmt.Errorf("insert reject decision: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM tag_suggestions WHERE project = $1 AND photo_uid = $2 AND tag = $3
	`, project, photoUID, tag)
	if err != nil {
		return fmt.Errorf("delete suggestion: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reject: %w", err)
	}
	return nil
}

// AddFact writes a fact directly (manual tagging). Suggestions and
// decisions never gate this path.
func (r *TagRepository) AddFact(ctx context.Context, project, photoUID, tag string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO photo_tags (project, photo_uid, tag)
		VALUES ($1, $2, $3) ON CONFLICT DO NOTHING
	`, project, photoUID, tag)
	if err != nil {
		return fmt.Errorf("add fact: %w", err)
	}
	return nil
}

// RemoveFact deletes a fact. When a prior confirm decision exists for the
// pair, an implicit reject with the given suppression deadline is appended
// so the same suggestion does not immediately resurface.
func (r *TagRepository) RemoveFact(ctx context.Context, project, photoUID, tag string, resuppressUntil time.Time) error {
	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		DELETE FROM photo_tags WHERE project = $1 AND photo_uid = $2 AND tag = $3
	`, project, photoUID, tag)
	if err != nil {
		return fmt.Errorf("delete fact: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete fact rows affected: %w", err)
	}
	if affected == 0 {
		return database.ErrNotFound
	}

	var sourceModel sql.NullString
	err = tx.QueryRowContext(ctx, `
		SELECT source_model_id FROM tag_decisions
		WHERE project = $1 AND photo_uid = $2 AND tag = $3 AND decision = 'confirm'
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, project, photoUID, tag).Scan(&sourceModel)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("look up prior confirm: %w", err)
	}

	if err == nil {
		// The tag was once confirmed from a suggestion; suppress it.
		_, err = tx.ExecContext(ctx, `
			INSERT INTO tag_decisions (project, photo_uid, tag, decision, source_model_id, suppress_until)
			VALUES ($1, $2, $3, 'reject', $4, $5)
		`, project, photoUID, tag, sourceModel.String, resuppressUntil)
		if err != nil {
			return fmt.Errorf("insert implicit reject: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit remove: %w", err)
	}
	return nil
}

// HasFact reports whether the tag is confirmed for the photo.
func (r *TagRepository) HasFact(ctx context.Context, project, photoUID, tag string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM photo_tags WHERE project = $1 AND photo_uid = $2 AND tag = $3
		)
	`, project, photoUID, tag).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check fact exists: %w", err)
	}
	return exists, nil
}

// ListFacts returns all facts for a photo.
func (r *TagRepository) ListFacts(ctx context.Context, project, photoUID string) ([]database.TagFact, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT project, photo_uid, tag, created_at
		FROM photo_tags
		WHERE project = $1 AND photo_uid = $2
		ORDER BY tag
	`, project, photoUID)
	if err != nil {
		return nil, fmt.Errorf("list facts: %w", err)
	}
	defer rows.Close()

	var facts []database.TagFact
	for rows.Next() {
		var f database.TagFact
		if err := rows.Scan(&f.Project, &f.PhotoUID, &f.Tag, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan fact: %w", err)
		}
		facts = append(facts, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate facts: %w", err)
	}
	return facts, nil
}

// HasActiveReject reports whether the pair is under active suppression.
func (r *TagRepository) HasActiveReject(ctx context.Context, project, photoUID, tag string, now time.Time) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM tag_decisions
			WHERE project = $1 AND photo_uid = $2 AND tag = $3
			  AND decision = 'reject' AND suppress_until IS NOT NULL AND suppress_until > $4
		)
	`, project, photoUID, tag, now).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check active reject: %w", err)
	}
	return exists, nil
}

// SweepExpired deletes decision rows whose suppression window has passed,
// allowing those tags to be suggested again.
func (r *TagRepository) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	result, err := r.pool.Exec(ctx, `
		DELETE FROM tag_decisions
		WHERE decision = 'reject' AND suppress_until IS NOT NULL AND suppress_until <= $1
	`, now)
	if err != nil {
		return 0, fmt.Errorf("sweep expired decisions: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sweep expired rows affected: %w", err)
	}
	return int(affected), nil
}
