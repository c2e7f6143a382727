package clustering

import (
	"sort"

	"github.com/jsvoboda/photo-curator/internal/database"
)

// Candidate faces within this quality distance of the best member compete
// for the representative slot; clearly worse faces are excluded up front.
const representativeQualityBand = 0.15

// SelectRepresentative picks the face that should stand for a cluster.
// Among members inside the quality band, the face whose source photo wins
// the following ordering is chosen: higher resolution, then larger file
// size, then earlier capture date, then non-screenshot over screenshot,
// then earlier import time. Import timestamps make this a total order, so
// the selection is deterministic. Returns 0 for an empty member set.
func SelectRepresentative(members []database.StoredFace, photos map[string]*database.Photo) int64 {
	if len(members) == 0 {
		return 0
	}

	best := 0.0
	for i := range members {
		if members[i].Quality > best {
			best = members[i].Quality
		}
	}

	candidates := make([]database.StoredFace, 0, len(members))
	for i := range members {
		if members[i].Quality >= best-representativeQualityBand {
			candidates = append(candidates, members[i])
		}
	}
	if len(candidates) == 0 {
		candidates = members
	}

	sort.Slice(candidates, func(a, b int) bool {
		return faceLess(&candidates[a], &candidates[b], photos)
	})
	return candidates[0].ID
}

// faceLess orders candidate faces by the representative priority chain.
// Faces whose photo metadata is missing sort last; face id breaks the
// final tie between faces of the same photo.
func faceLess(a, b *database.StoredFace, photos map[string]*database.Photo) bool {
	pa := photos[a.PhotoUID]
	pb := photos[b.PhotoUID]
	if pa == nil || pb == nil {
		if pa != nil {
			return true
		}
		if pb != nil {
			return false
		}
		return a.ID < b.ID
	}

	if pa.PixelArea() != pb.PixelArea() {
		return pa.PixelArea() > pb.PixelArea()
	}
	if pa.FileSize != pb.FileSize {
		return pa.FileSize > pb.FileSize
	}
	if ta, tb := pa.TakenAt, pb.TakenAt; ta != nil || tb != nil {
		switch {
		case ta == nil:
			return false
		case tb == nil:
			return true
		case !ta.Equal(*tb):
			return ta.Before(*tb)
		}
	}
	if pa.IsScreenshot != pb.IsScreenshot {
		return !pa.IsScreenshot
	}
	if !pa.ImportedAt.Equal(pb.ImportedAt) {
		return pa.ImportedAt.Before(pb.ImportedAt)
	}
	return a.ID < b.ID
}
