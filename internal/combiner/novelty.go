package combiner

import (
	"github.com/tensorplex-labs/novelty/internal/config"
	"github.com/tensorplex-labs/novelty/internal/scoring"
	"github.com/tensorplex-labs/novelty/internal/sparse"
)

// Windows are the year ranges, inclusive, feeding the novelty combiner for
// a focal year.
type Windows struct {
	PastFrom, PastTo             int
	FutureFrom, FutureTo         int
	DifficultyFrom, DifficultyTo int
}

// NoveltyWindows derives the past, future and difficulty windows around
// focalYear. The difficulty window ends the year before the focal year.
func NoveltyWindows(cfg config.WangConfig, focalYear int) Windows {
	return Windows{
		PastFrom:       focalYear - cfg.PastWindow,
		PastTo:         focalYear - 1,
		FutureFrom:     focalYear + 1,
		FutureTo:       focalYear + cfg.FutureWindow,
		DifficultyFrom: focalYear - cfg.DifficultyWindow,
		DifficultyTo:   focalYear - 1,
	}
}

// Novelty scores pairs of the focal matrix that never occurred in the past
// window and were reused at least ReuseThreshold times in the future window.
// A flagged pair scores 1 - cosine(row i, row j) over the difficulty matrix;
// all other pairs score 0.
func Novelty(current, past, future, difficulty *sparse.Matrix, cfg config.WangConfig) (*sparse.Matrix, error) {
	if err := sameUniverse(current, past, future, difficulty); err != nil {
		return nil, err
	}
	threshold := float64(max(cfg.ReuseThreshold, 1))

	var rows []sparse.Row
	return current.Map(func(c sparse.Coord, _ float64) float64 {
		i, j := int(c.I), int(c.J)
		if past.At(i, j) != 0 || future.At(i, j) < threshold {
			return 0
		}
		if rows == nil {
			rows = difficulty.Rows()
		}
		sim := scoring.CalculateSparseCosineSimilarity(rows[i], rows[j])
		return 1 - sim
	}), nil
}
