package scoring

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/tensorplex-labs/novelty/internal/sparse"
)

// CalculateCosineSimilarity returns the cosine similarity of two dense
// vectors. Mismatched lengths and zero vectors have similarity 0.
func CalculateCosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0.0
	}

	dotProduct := floats.Dot(a, b)
	normA := floats.Norm(a, 2)
	normB := floats.Norm(b, 2)

	if normA == 0 || normB == 0 {
		return 0.0
	}

	return Finite(dotProduct / (normA * normB))
}

// CosineDistance is 1 - cosine similarity.
func CosineDistance(a, b []float64) float64 {
	return 1 - CalculateCosineSimilarity(a, b)
}

// CalculateSparseCosineSimilarity computes the cosine similarity of two
// sparse rows whose columns are sorted ascending.
func CalculateSparseCosineSimilarity(a, b sparse.Row) float64 {
	if len(a.Cols) == 0 || len(b.Cols) == 0 {
		return 0.0
	}

	var dotProduct float64
	i, j := 0, 0
	for i < len(a.Cols) && j < len(b.Cols) {
		switch {
		case a.Cols[i] < b.Cols[j]:
			i++
		case a.Cols[i] > b.Cols[j]:
			j++
		default:
			dotProduct += a.Vals[i] * b.Vals[j]
			i++
			j++
		}
	}

	normA := floats.Norm(a.Vals, 2)
	normB := floats.Norm(b.Vals, 2)
	if normA == 0 || normB == 0 {
		return 0.0
	}

	return Finite(dotProduct / (normA * normB))
}

// Finite maps NaN and infinities to 0.
func Finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0.0
	}
	return v
}

// SafeDiv divides num by den, resolving division by zero and non-finite
// results to 0.
func SafeDiv(num, den float64) float64 {
	if den == 0 {
		return 0.0
	}
	return Finite(num / den)
}
