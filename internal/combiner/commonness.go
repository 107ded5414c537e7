package combiner

import (
	"github.com/tensorplex-labs/novelty/internal/scoring"
	"github.com/tensorplex-labs/novelty/internal/sparse"
)

// Commonness returns the association ratio of every observed pair,
// obs(i,j) * total / (marginal(i) * marginal(j)), computed on the full
// symmetric matrix.
func Commonness(observed *sparse.Matrix) *sparse.Matrix {
	total := observed.Sum()
	marginals := observed.RowSums()

	return observed.Map(func(c sparse.Coord, obs float64) float64 {
		return scoring.SafeDiv(obs*total, marginals[c.I]*marginals[c.J])
	})
}
