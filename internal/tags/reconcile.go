package tags

import (
	"context"
	"fmt"
	"time"

	"github.com/jsvoboda/photo-curator/internal/database"
)

// Default suppression window applied when a user rejects a suggestion.
const defaultSuppressDays = 30

// Engine governs the lifecycle of a (photo, tag) pair: machine suggestions
// are ephemeral, user decisions are append-only and the photo_tags facts
// are the only authoritative record. Every transition is atomic in the
// store, so a fact never exists without its audit decision or vice versa.
type Engine struct {
	store               database.TagStore
	removalSuppressDays int
	now                 func() time.Time
}

// NewEngine creates a reconciliation engine. removalSuppressDays is the
// longer suppression window applied when a previously confirmed tag is
// removed again.
func NewEngine(store database.TagStore, removalSuppressDays int) *Engine {
	if removalSuppressDays <= 0 {
		removalSuppressDays = 90
	}
	return &Engine{
		store:               store,
		removalSuppressDays: removalSuppressDays,
		now:                 time.Now,
	}
}

// Suggest records a machine suggestion unless the pair is already a fact
// or under active suppression. Returns true if the suggestion was stored.
func (e *Engine) Suggest(ctx context.Context, s *database.TagSuggestion) (bool, error) {
	s.Tag = NormalizeTag(s.Tag)
	if s.Tag == "" {
		return false, nil
	}

	has, err := e.store.HasFact(ctx, s.Project, s.PhotoUID, s.Tag)
	if err != nil {
		return false, fmt.Errorf("check fact: %w", err)
	}
	if has {
		return false, nil
	}

	suppressed, err := e.store.HasActiveReject(ctx, s.Project, s.PhotoUID, s.Tag, e.now())
	if err != nil {
		return false, fmt.Errorf("check suppression: %w", err)
	}
	if suppressed {
		return false, nil
	}

	if err := e.store.SaveSuggestion(ctx, s); err != nil {
		return false, err
	}
	return true, nil
}

// Pending returns the suggestions awaiting a decision, already filtered
// for suppression and existing facts.
func (e *Engine) Pending(ctx context.Context, project string) ([]database.TagSuggestion, error) {
	return e.store.ActiveSuggestions(ctx, project, e.now())
}

// Confirm turns a suggestion into a fact.
func (e *Engine) Confirm(ctx context.Context, project, photoUID, tag, modelID string) error {
	return e.store.Confirm(ctx, project, photoUID, NormalizeTag(tag), modelID)
}

// Reject discards a suggestion and suppresses it for suppressDays
// (the default window when zero).
func (e *Engine) Reject(ctx context.Context, project, photoUID, tag, modelID string, suppressDays int) error {
	if suppressDays <= 0 {
		suppressDays = defaultSuppressDays
	}
	until := e.now().Add(time.Duration(suppressDays) * 24 * time.Hour)
	return e.store.Reject(ctx, project, photoUID, NormalizeTag(tag), modelID, until)
}

// ManualAdd writes a fact directly. No decision row; the machinery never
// second-guesses a manual tag.
func (e *Engine) ManualAdd(ctx context.Context, project, photoUID, tag string) error {
	tag = NormalizeTag(tag)
	if tag == "" {
		return fmt.Errorf("empty tag")
	}
	return e.store.AddFact(ctx, project, photoUID, tag)
}

// Remove deletes a fact. If the tag had been confirmed from a suggestion,
// the store appends an implicit reject with the longer removal window so
// the same suggestion does not immediately resurface.
func (e *Engine) Remove(ctx context.Context, project, photoUID, tag string) error {
	until := e.now().Add(time.Duration(e.removalSuppressDays) * 24 * time.Hour)
	return e.store.RemoveFact(ctx, project, photoUID, NormalizeTag(tag), until)
}

// Facts returns the confirmed tags of a photo.
func (e *Engine) Facts(ctx context.Context, project, photoUID string) ([]database.TagFact, error) {
	return e.store.ListFacts(ctx, project, photoUID)
}

// Sweep deletes decision rows whose suppression window has passed so the
// affected tags may be suggested again. Runs at startup and daily.
func (e *Engine) Sweep(ctx context.Context) (int, error) {
	return e.store.SweepExpired(ctx, e.now())
}
