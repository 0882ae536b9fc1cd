// Package similarity implements cosine similarity ranking over embedding
// vectors.
package similarity

import (
	"errors"
	"log/slog"
	"math"
	"sort"

	"github.com/caardbot/caard/internal/types"
)

var (
	// ErrDimensionMismatch is returned when the two vectors differ in length.
	ErrDimensionMismatch = errors.New("similarity: vector dimensions do not match")
	// ErrZeroMagnitude is returned when either vector has zero magnitude.
	ErrZeroMagnitude = errors.New("similarity: vector has zero magnitude")
)

// Cosine computes the cosine similarity between two vectors, in [-1, 1].
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, ErrDimensionMismatch
	}
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0, ErrZeroMagnitude
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB)), nil
}

// Comparable reports whether two embeddings live in the same semantic
// space: same producing model and same dimensionality.
func Comparable(a, b types.Embedding) bool {
	if a.IsZero() || b.IsZero() {
		return false
	}
	if a.Model != "" && b.Model != "" && a.Model != b.Model {
		return false
	}
	return len(a.Values) == len(b.Values)
}

// Ranked pairs a candidate with its similarity score against the query.
type Ranked[T any] struct {
	Item  T
	Score float64
}

// RankByQuery scores every candidate against the query embedding and
// returns them in descending score order. The sort is stable, so ties
// keep their original order. Candidates that cannot be compared to the
// query (missing embedding, model or dimension mismatch) are skipped.
func RankByQuery[T any](query types.Embedding, candidates []T, embeddingOf func(T) types.Embedding) []Ranked[T] {
	ranked := make([]Ranked[T], 0, len(candidates))
	for _, c := range candidates {
		emb := embeddingOf(c)
		if !Comparable(query, emb) {
			slog.Warn("skipping incomparable embedding",
				"query_model", query.Model, "candidate_model", emb.Model,
				"query_dim", len(query.Values), "candidate_dim", len(emb.Values))
			continue
		}
		score, err := Cosine(query.Values, emb.Values)
		if err != nil {
			slog.Warn("failed to score candidate", "error", err.Error())
			continue
		}
		ranked = append(ranked, Ranked[T]{Item: c, Score: score})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

// FilterByThreshold keeps only candidates scoring at or above the
// threshold. The input order is preserved.
func FilterByThreshold[T any](ranked []Ranked[T], threshold float64) []Ranked[T] {
	kept := make([]Ranked[T], 0, len(ranked))
	for _, r := range ranked {
		if r.Score >= threshold {
			kept = append(kept, r)
		}
	}
	return kept
}
