package query

import "math"

// CosineTerm is one term of the hybrid score: cosine similarity shifted by
// +1.0 into [0, 2]. It reports false when either vector is empty, the lengths
// differ or a vector has zero magnitude; such a term contributes nothing.
func CosineTerm(q, d []float32) (float64, bool) {
	if len(q) == 0 || len(d) == 0 || len(q) != len(d) {
		return 0, false
	}

	var dot, normQ, normD float64
	for i := range q {
		dot += float64(q[i]) * float64(d[i])
		normQ += float64(q[i]) * float64(q[i])
		normD += float64(d[i]) * float64(d[i])
	}
	if normQ == 0 || normD == 0 {
		return 0, false
	}

	cos := dot / math.Sqrt(normQ*normD)
	cos = math.Max(-1, math.Min(1, cos))
	return cos + 1.0, true
}

// HybridScore is the score the script_score query assigns to a document:
// the sum of the text and image terms that are present.
func HybridScore(textQ, imageQ, docText, docImage []float32) float64 {
	var score float64
	if s, ok := CosineTerm(textQ, docText); ok {
		score += s
	}
	if s, ok := CosineTerm(imageQ, docImage); ok {
		score += s
	}
	return score
}
