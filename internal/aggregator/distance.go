package aggregator

import (
	"context"
	"slices"

	"github.com/tensorplex-labs/novelty/internal/corpus"
	"github.com/tensorplex-labs/novelty/internal/scoring"
)

// VectorSource resolves an item to its embedding. A missing vector is
// reported with ok false and a nil error.
type VectorSource interface {
	Vector(ctx context.Context, id string) (vec []float64, ok bool, err error)
}

// Distance scores a paper by the cosine distances between the embeddings of
// its distinct items, reduced to the percentile ladder. Items without an
// embedding are ignored.
func Distance(ctx context.Context, paper corpus.Paper, src VectorSource, variable string) (corpus.PaperScore, error) {
	names := slices.Clone(paper.Names())
	slices.Sort(names)
	names = slices.Compact(names)

	vectors := make([][]float64, 0, len(names))
	for _, name := range names {
		vec, ok, err := src.Vector(ctx, name)
		if err != nil {
			return corpus.PaperScore{}, err
		}
		if ok && len(vec) > 0 {
			vectors = append(vectors, vec)
		}
	}
	if len(vectors) < 2 {
		return corpus.PaperScore{}, ErrInsufficientItems
	}

	values := make([]float64, 0, len(vectors)*(len(vectors)-1)/2)
	for a := range vectors {
		for b := a + 1; b < len(vectors); b++ {
			values = append(values, scoring.CosineDistance(vectors[a], vectors[b]))
		}
	}

	headline, err := Reduce(corpus.IndicatorDistance, values)
	if err != nil {
		return corpus.PaperScore{}, err
	}
	return corpus.PaperScore{
		PaperID:   paper.ID,
		Year:      paper.Year,
		Indicator: corpus.IndicatorDistance,
		Variable:  variable,
		Headline:  headline,
		Raw:       values,
	}, nil
}
