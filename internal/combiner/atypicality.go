package combiner

import (
	"github.com/tensorplex-labs/novelty/internal/nullmodel"
	"github.com/tensorplex-labs/novelty/internal/scoring"
	"github.com/tensorplex-labs/novelty/internal/sparse"
)

// Atypicality returns the z-score of every observed count against the null
// ensemble: (observed - mean) / sd, or 0 where sd is 0.
func Atypicality(observed *sparse.Matrix, stats *nullmodel.Stats) (*sparse.Matrix, error) {
	if err := sameUniverse(observed, stats.Mean, stats.SD); err != nil {
		return nil, err
	}

	return observed.Map(func(c sparse.Coord, obs float64) float64 {
		i, j := int(c.I), int(c.J)
		return scoring.SafeDiv(obs-stats.Mean.At(i, j), stats.SD.At(i, j))
	}), nil
}
