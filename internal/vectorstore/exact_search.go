package vectorstore

import (
	"math"
	"sort"
	"time"
)

// cosineEpsilon is the floor applied to the norm product so that a zero
// vector scores 0 instead of dividing by zero.
const cosineEpsilon = 1e-8

// ExactSearch ranks every vector in snap by cosine similarity to query and
// returns the top k.
//
// Results are ordered by score descending; equal scores are ordered by id
// ascending so the output is deterministic. The result length is
// min(k, len(snap)); k <= 0 or an empty snapshot yield an empty slice.
// ExactSearch does not modify snap.
func ExactSearch(query Vector, snap Snapshot, k int) []SearchResult {
	start := time.Now()
	defer func() {
		SearchDuration.Observe(time.Since(start).Seconds())
	}()

	if k <= 0 || len(snap) == 0 {
		return []SearchResult{}
	}

	scored := make([]SearchResult, 0, len(snap))
	for id, v := range snap {
		scored = append(scored, SearchResult{
			ID:    id,
			Score: CosineSimilarity(query, v),
		})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].ID < scored[j].ID
	})

	if k < len(scored) {
		scored = scored[:k]
	}
	return scored
}

// CosineSimilarity computes dot(a,b) / max(|a|*|b|, 1e-8).
//
// Only the common prefix of a and b is considered. The result is in
// [-1, 1]; a zero vector on either side scores 0.
func CosineSimilarity(a, b Vector) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var dot, magA, magB float64
	for i := 0; i < n; i++ {
		va := float64(a[i])
		vb := float64(b[i])
		dot += va * vb
		magA += va * va
		magB += vb * vb
	}

	denom := math.Sqrt(magA) * math.Sqrt(magB)
	if denom < cosineEpsilon {
		denom = cosineEpsilon
	}
	return dot / denom
}
