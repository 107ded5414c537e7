package aggregator

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/tensorplex-labs/novelty/internal/corpus"
	"github.com/tensorplex-labs/novelty/internal/metrics"
	"github.com/tensorplex-labs/novelty/internal/sparse"
	"github.com/tensorplex-labs/novelty/internal/universe"
)

// ScoreFunc scores a single paper.
type ScoreFunc func(ctx context.Context, paper corpus.Paper) (corpus.PaperScore, error)

// MatrixScorer scores papers against a score matrix.
func MatrixScorer(m *sparse.Matrix, u *universe.Universe, indicator corpus.Indicator) ScoreFunc {
	return func(_ context.Context, paper corpus.Paper) (corpus.PaperScore, error) {
		return Aggregate(paper, m, u, indicator)
	}
}

// DistanceScorer scores papers by item embedding distances.
func DistanceScorer(src VectorSource, variable string) ScoreFunc {
	return func(ctx context.Context, paper corpus.Paper) (corpus.PaperScore, error) {
		return Distance(ctx, paper, src, variable)
	}
}

type options struct {
	workers int
	metrics *metrics.Metrics
}

type Option func(*options)

func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// AggregateAll scores papers concurrently and returns the scores in input
// order. A paper that cannot be scored is logged, counted and skipped. Only
// a universe mismatch or context cancellation aborts the batch.
func AggregateAll(ctx context.Context, papers []corpus.Paper, indicator corpus.Indicator, score ScoreFunc, opts ...Option) ([]corpus.PaperScore, error) {
	o := options{workers: 1}
	for _, opt := range opts {
		opt(&o)
	}

	results := make([]*corpus.PaperScore, len(papers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(o.workers, 1))
	for k, paper := range papers {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			s, err := score(gctx, paper)
			switch {
			case err == nil:
				results[k] = &s
				o.metrics.Scored(string(indicator))
			case errors.Is(err, universe.ErrMismatch):
				return err
			case errors.Is(err, ErrInsufficientItems):
				o.metrics.Skipped(string(indicator), "insufficient_items")
				log.Trace().Str("paper", paper.ID).Str("indicator", string(indicator)).Msg("skipping paper with fewer than two items")
			case gctx.Err() != nil:
				return gctx.Err()
			default:
				o.metrics.Skipped(string(indicator), "error")
				log.Warn().Err(err).Str("paper", paper.ID).Str("indicator", string(indicator)).Msg("failed to score paper")
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	scores := make([]corpus.PaperScore, 0, len(papers))
	for _, s := range results {
		if s != nil {
			scores = append(scores, *s)
		}
	}
	log.Debug().Str("indicator", string(indicator)).Int("papers", len(papers)).Int("scored", len(scores)).Msg("aggregation complete")
	return scores, nil
}
