package clustering

import "github.com/jsvoboda/photo-curator/internal/config"

// Fallback parameters when the bucket table is empty.
const (
	defaultEps        = 0.35
	defaultMinSamples = 2
)

// Params are the DBSCAN parameters for one clustering run.
type Params struct {
	Eps        float64
	MinSamples int
}

// OptimalParams selects DBSCAN parameters for the given face count from the
// bucket table. Buckets are ordered by max_faces ascending with an unbounded
// bucket (max_faces=0) last; the first bucket whose upper bound exceeds the
// face count wins.
func OptimalParams(faceCount int, buckets []config.ParamBucket) Params {
	for _, b := range buckets {
		if b.MaxFaces == 0 || faceCount < b.MaxFaces {
			return Params{Eps: b.Eps, MinSamples: b.MinSamples}
		}
	}
	return Params{Eps: defaultEps, MinSamples: defaultMinSamples}
}
