package clustering

import (
	"testing"
	"time"

	"github.com/jsvoboda/photo-curator/internal/database"
)

func repPhoto(uid string, width, height int, fileSize int64, takenAt *time.Time, screenshot bool, importedAt time.Time) *database.Photo {
	return &database.Photo{
		UID:          uid,
		Width:        width,
		Height:       height,
		FileSize:     fileSize,
		TakenAt:      takenAt,
		IsScreenshot: screenshot,
		ImportedAt:   importedAt,
	}
}

func memberFace(id int64, photoUID string, quality float64) database.StoredFace {
	return database.StoredFace{ID: id, PhotoUID: photoUID, Quality: quality}
}

func TestSelectRepresentativeResolutionWins(t *testing.T) {
	imported := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	members := []database.StoredFace{
		memberFace(1, "small", 0.9),
		memberFace(2, "large", 0.9),
	}
	photos := map[string]*database.Photo{
		"small": repPhoto("small", 1000, 1000, 999999, nil, false, imported),
		"large": repPhoto("large", 4000, 3000, 100, nil, false, imported.Add(time.Hour)),
	}
	if got := SelectRepresentative(members, photos); got != 2 {
		t.Errorf("expected higher resolution photo to win, got face %d", got)
	}
}

func TestSelectRepresentativeTieBreakChain(t *testing.T) {
	imported := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	early := time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)
	late := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)

	// Same resolution; file size decides.
	photos := map[string]*database.Photo{
		"a": repPhoto("a", 2000, 2000, 500, nil, false, imported),
		"b": repPhoto("b", 2000, 2000, 900, nil, false, imported),
	}
	members := []database.StoredFace{memberFace(1, "a", 0.9), memberFace(2, "b", 0.9)}
	if got := SelectRepresentative(members, photos); got != 2 {
		t.Errorf("expected larger file to win, got face %d", got)
	}

	// Same resolution and size; earlier capture date decides.
	photos = map[string]*database.Photo{
		"a": repPhoto("a", 2000, 2000, 500, &late, false, imported),
		"b": repPhoto("b", 2000, 2000, 500, &early, false, imported),
	}
	if got := SelectRepresentative(members, photos); got != 2 {
		t.Errorf("expected earlier capture date to win, got face %d", got)
	}

	// Same until source type; non-screenshot wins.
	photos = map[string]*database.Photo{
		"a": repPhoto("a", 2000, 2000, 500, &early, true, imported),
		"b": repPhoto("b", 2000, 2000, 500, &early, false, imported),
	}
	if got := SelectRepresentative(members, photos); got != 2 {
		t.Errorf("expected non-screenshot to win, got face %d", got)
	}

	// Same everything; earlier import time is the final tie-break.
	photos = map[string]*database.Photo{
		"a": repPhoto("a", 2000, 2000, 500, &early, false, imported.Add(time.Hour)),
		"b": repPhoto("b", 2000, 2000, 500, &early, false, imported),
	}
	if got := SelectRepresentative(members, photos); got != 2 {
		t.Errorf("expected earlier import to win, got face %d", got)
	}
}

func TestSelectRepresentativeQualityBand(t *testing.T) {
	imported := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	// The blurry face sits on a much better photo, but it is outside the
	// quality band and must not be chosen.
	members := []database.StoredFace{
		memberFace(1, "best", 0.30),
		memberFace(2, "worse", 0.90),
	}
	photos := map[string]*database.Photo{
		"best":  repPhoto("best", 8000, 6000, 9999999, nil, false, imported),
		"worse": repPhoto("worse", 800, 600, 1000, nil, false, imported),
	}
	if got := SelectRepresentative(members, photos); got != 2 {
		t.Errorf("expected quality band to exclude blurry face, got face %d", got)
	}
}

func TestSelectRepresentativeMissingMetadata(t *testing.T) {
	imported := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	members := []database.StoredFace{
		memberFace(1, "unknown", 0.9),
		memberFace(2, "known", 0.9),
	}
	photos := map[string]*database.Photo{
		"known": repPhoto("known", 100, 100, 10, nil, false, imported),
	}
	if got := SelectRepresentative(members, photos); got != 2 {
		t.Errorf("expected face with metadata to win, got face %d", got)
	}
}

func TestSelectRepresentativeEmpty(t *testing.T) {
	if got := SelectRepresentative(nil, nil); got != 0 {
		t.Errorf("expected 0 for empty member set, got %d", got)
	}
}
