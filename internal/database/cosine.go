package database

import "math"

// CosineDistance computes the cosine distance between two vectors.
// Returns a value between 0 (identical) and 2 (opposite).
// Cosine distance = 1 - cosine similarity.
func CosineDistance(a, b []float32) float64 {
	return 1 - CosineSimilarity(a, b)
}

// CosineSimilarity computes the cosine similarity between two vectors,
// clamped to [-1, 1]. Invalid input (mismatched lengths, zero vectors)
// yields -1, i.e. maximum distance.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return -1
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return -1
	}

	similarity := dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
	// Clamp to [-1, 1] to handle floating point errors.
	if similarity > 1 {
		similarity = 1
	}
	if similarity < -1 {
		similarity = -1
	}
	return similarity
}

// Centroid computes the arithmetic mean of the given vectors. All vectors
// must share the same length; shorter or empty vectors are skipped.
// Returns nil if no usable vector was found.
func Centroid(vectors [][]float32) []float32 {
	var centroid []float32
	count := 0
	for _, v := range vectors {
		if len(v) == 0 {
			continue
		}
		if centroid == nil {
			centroid = make([]float32, len(v))
		}
		if len(v) != len(centroid) {
			continue
		}
		for i, x := range v {
			centroid[i] += x
		}
		count++
	}
	if count == 0 {
		return nil
	}
	inv := 1 / float32(count)
	for i := range centroid {
		centroid[i] *= inv
	}
	return centroid
}
