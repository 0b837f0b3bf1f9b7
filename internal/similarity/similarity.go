// Package similarity provides distance and nearest-neighbor primitives over
// plain numeric vectors. All functions are pure and allocation-light; they are
// used by callers that rank already-embedded content without any external index.
package similarity

import (
	"fmt"
	"math"
	"sort"
)

// Metric identifies a supported distance/similarity function.
type Metric string

const (
	MetricCosine    Metric = "cosine"
	MetricEuclidean Metric = "euclidean"
	MetricManhattan Metric = "manhattan"
)

// Cosine returns the cosine similarity between a and b in [-1, 1].
// Returns 0 for zero-magnitude vectors rather than NaN.
func Cosine(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector length mismatch: %d vs %d", len(a), len(b))
	}

	var dot, magA, magB float64
	for i := range a {
		dot += a[i] * b[i]
		magA += a[i] * a[i]
		magB += b[i] * b[i]
	}

	if magA == 0 || magB == 0 {
		return 0, nil
	}

	return dot / (math.Sqrt(magA) * math.Sqrt(magB)), nil
}

// Euclidean returns the L2 distance between a and b.
func Euclidean(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector length mismatch: %d vs %d", len(a), len(b))
	}

	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum), nil
}

// Manhattan returns the L1 distance between a and b.
func Manhattan(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector length mismatch: %d vs %d", len(a), len(b))
	}

	var sum float64
	for i := range a {
		sum += math.Abs(a[i] - b[i])
	}
	return sum, nil
}

// Neighbor is a scored candidate returned by NearestNeighbors.
type Neighbor struct {
	Index int     // Index into the candidates slice
	Score float64 // Similarity (cosine) or negated distance (euclidean/manhattan)
}

// NearestNeighbors returns the k candidates closest to query under the given
// metric, best first. Distance metrics are negated so a higher score always
// means a closer match. Candidates with mismatched dimensions are skipped.
func NearestNeighbors(query []float64, candidates [][]float64, k int, metric Metric) []Neighbor {
	if k <= 0 || len(candidates) == 0 {
		return nil
	}

	neighbors := make([]Neighbor, 0, len(candidates))
	for i, c := range candidates {
		var score float64
		var err error
		switch metric {
		case MetricEuclidean:
			score, err = Euclidean(query, c)
			score = -score
		case MetricManhattan:
			score, err = Manhattan(query, c)
			score = -score
		default:
			score, err = Cosine(query, c)
		}
		if err != nil {
			continue
		}
		neighbors = append(neighbors, Neighbor{Index: i, Score: score})
	}

	// Ties resolve by candidate order so results are deterministic.
	sort.SliceStable(neighbors, func(i, j int) bool {
		return neighbors[i].Score > neighbors[j].Score
	})

	if k > len(neighbors) {
		k = len(neighbors)
	}
	return neighbors[:k]
}
