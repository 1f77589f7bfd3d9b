// Package retrieval ranks notebook chunks against a query embedding using
// brute-force cosine similarity. At notebook scale (hundreds of chunks per
// user) an exhaustive scan is faster than maintaining an ANN index.
package retrieval

import (
	"math"
	"sort"
)

// Candidate is a chunk of notebook text with its stored embedding.
type Candidate struct {
	SourceID    string
	SourceTitle string
	Text        string
	Embedding   []float32
}

// Scored pairs a candidate with its similarity to the query.
type Scored struct {
	Candidate
	Score float64
}

// Cosine returns the cosine similarity between two vectors. Mismatched
// lengths or a zero-magnitude vector score 0 rather than erroring, so one
// bad embedding cannot fail a whole retrieval pass.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, aSq, bSq float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		aSq += float64(a[i]) * float64(a[i])
		bSq += float64(b[i]) * float64(b[i])
	}
	if aSq == 0 || bSq == 0 {
		return 0
	}
	return dot / (math.Sqrt(aSq) * math.Sqrt(bSq))
}

// Rank scores every candidate against the query vector and returns the top-K
// by descending similarity. Ties keep their input order.
func Rank(query []float32, candidates []Candidate, topK int) []Scored {
	if topK <= 0 || len(candidates) == 0 {
		return nil
	}

	scored := make([]Scored, 0, len(candidates))
	for _, c := range candidates {
		scored = append(scored, Scored{Candidate: c, Score: Cosine(query, c.Embedding)})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored
}
