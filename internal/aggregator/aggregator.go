// Package aggregator reduces pair scores to per-paper statistics.
package aggregator

import (
	"errors"
	"fmt"
	"math"

	"github.com/tensorplex-labs/novelty/internal/cooc"
	"github.com/tensorplex-labs/novelty/internal/corpus"
	"github.com/tensorplex-labs/novelty/internal/scoring"
	"github.com/tensorplex-labs/novelty/internal/sparse"
	"github.com/tensorplex-labs/novelty/internal/universe"
)

var (
	ErrInsufficientItems = errors.New("paper has fewer than two usable items")
	ErrUnknownIndicator  = errors.New("unknown indicator")
)

// PairValues looks up the score of every item pair of paper, enumerated with
// the matrix's own pairing policy. Items outside the universe are ignored.
func PairValues(paper corpus.Paper, m *sparse.Matrix, u *universe.Universe) ([]float64, error) {
	if err := u.Check(m.Fingerprint); err != nil {
		return nil, err
	}

	indices, _ := u.Indices(paper.Names())
	if len(indices) < 2 {
		return nil, ErrInsufficientItems
	}

	pairs := cooc.Pairs(indices, m.Policy.Weighted)
	values := make([]float64, 0, len(pairs))
	for _, p := range pairs {
		if p[0] == p[1] && !m.Policy.KeepDiag {
			continue
		}
		values = append(values, m.At(p[0], p[1]))
	}
	if len(values) == 0 {
		return nil, ErrInsufficientItems
	}
	return values, nil
}

// Aggregate scores one paper against the score matrix of indicator.
func Aggregate(paper corpus.Paper, m *sparse.Matrix, u *universe.Universe, indicator corpus.Indicator) (corpus.PaperScore, error) {
	values, err := PairValues(paper, m, u)
	if err != nil {
		return corpus.PaperScore{}, err
	}
	headline, err := Reduce(indicator, values)
	if err != nil {
		return corpus.PaperScore{}, err
	}
	return corpus.PaperScore{
		PaperID:   paper.ID,
		Year:      paper.Year,
		Indicator: indicator,
		Variable:  u.Version.Variable,
		Headline:  headline,
		Raw:       values,
	}, nil
}

// Reduce computes the headline statistics of indicator from pair values.
func Reduce(indicator corpus.Indicator, values []float64) (map[string]float64, error) {
	headline := map[string]float64{scoring.HeadlinePairs: float64(len(values))}

	switch indicator {
	case corpus.IndicatorAtypicality:
		headline[scoring.HeadlineConventionality] = scoring.Median(values)
		headline[scoring.HeadlineNovelty] = scoring.Percentile(values, 10)
	case corpus.IndicatorCommonness:
		p10 := scoring.Percentile(values, 10)
		if p10 > 0 {
			headline[scoring.HeadlineNovelty] = scoring.Finite(-math.Log(p10))
		} else {
			headline[scoring.HeadlineNovelty] = 0
		}
	case corpus.IndicatorNovelty:
		var sum float64
		for _, v := range values {
			sum += v
		}
		headline[scoring.HeadlineNovelty] = sum
	case corpus.IndicatorFoster:
		headline[scoring.HeadlineNovelty] = scoring.Mean(values)
	case corpus.IndicatorDistance:
		for k, v := range scoring.Ladder(values) {
			headline[k] = v
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownIndicator, indicator)
	}
	return headline, nil
}
