// Package pipeline runs the configured indicators over a range of focal
// years: index, count, combine, aggregate and store.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/tensorplex-labs/novelty/internal/aggregator"
	"github.com/tensorplex-labs/novelty/internal/community"
	"github.com/tensorplex-labs/novelty/internal/config"
	"github.com/tensorplex-labs/novelty/internal/docstore"
	"github.com/tensorplex-labs/novelty/internal/metrics"
	"github.com/tensorplex-labs/novelty/internal/store"
	"github.com/tensorplex-labs/novelty/internal/universe"
	"github.com/tensorplex-labs/novelty/internal/utils/logger"
)

var ErrMissingDependency = errors.New("pipeline dependency not provided")

// Deps are the collaborators of a Runner.
type Deps struct {
	Store   store.Store
	Docs    docstore.Store
	Oracle  community.Oracle        // optional, label propagation by default
	Vectors aggregator.VectorSource // required by the distance indicator only
	Metrics *metrics.Metrics        // optional
}

type Runner struct {
	deps        Deps
	indicators  *config.IndicatorsConfig
	workers     int
	yearWorkers int
}

type RunnerOption func(*Runner)

// WithWorkers bounds the concurrency inside one focal year.
func WithWorkers(n int) RunnerOption {
	return func(r *Runner) {
		r.workers = n
	}
}

// WithYearWorkers bounds the number of focal years processed at once.
func WithYearWorkers(n int) RunnerOption {
	return func(r *Runner) {
		r.yearWorkers = n
	}
}

func NewRunner(deps Deps, indicators *config.IndicatorsConfig, opts ...RunnerOption) (*Runner, error) {
	if deps.Store == nil || deps.Docs == nil {
		return nil, fmt.Errorf("%w: store and document store are required", ErrMissingDependency)
	}
	if indicators == nil {
		return nil, fmt.Errorf("indicators configuration cannot be nil")
	}
	if err := indicators.Validate(); err != nil {
		return nil, err
	}
	if indicators.Distance != nil && deps.Vectors == nil {
		return nil, fmt.Errorf("%w: distance indicator needs a vector source", ErrMissingDependency)
	}
	if deps.Oracle == nil {
		var seed uint64
		if indicators.Foster != nil {
			seed = indicators.Foster.Seed
		}
		deps.Oracle = community.LabelPropagation{Seed: seed}
	}

	r := &Runner{deps: deps, indicators: indicators, workers: 1, yearWorkers: 1}
	for _, opt := range opts {
		opt(r)
	}
	r.workers = max(r.workers, 1)
	r.yearWorkers = max(r.yearWorkers, 1)
	return r, nil
}

// Run scores every configured indicator for each focal year in [from, to].
// A failing year does not stop the others; the failures are joined in the
// returned error.
func (r *Runner) Run(ctx context.Context, from, to int) error {
	return r.forEachYear(ctx, from, to, r.RunYear)
}

// Sample only prepares the null-model statistics of the atypicality
// indicator for each focal year in [from, to].
func (r *Runner) Sample(ctx context.Context, from, to int) error {
	if r.indicators.Atypicality == nil {
		return fmt.Errorf("atypicality indicator is not configured")
	}
	return r.forEachYear(ctx, from, to, func(ctx context.Context, year int) error {
		_, err := r.nullStats(ctx, year)
		return err
	})
}

func (r *Runner) forEachYear(ctx context.Context, from, to int, fn func(context.Context, int) error) error {
	if from > to {
		return fmt.Errorf("invalid year range %d-%d", from, to)
	}

	var (
		mu   sync.Mutex
		errs []error
	)
	g := &errgroup.Group{}
	g.SetLimit(r.yearWorkers)
	for year := from; year <= to; year++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fn(ctx, year); err != nil {
				log.Error().Err(err).Int("year", year).Msg("focal year failed")
				mu.Lock()
				errs = append(errs, fmt.Errorf("year %d: %w", year, err))
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return errors.Join(errs...)
}

// RunYear scores every configured indicator for one focal year. The first
// failing indicator aborts the year.
func (r *Runner) RunYear(ctx context.Context, year int) error {
	logger.Sugar().Infow("scoring focal year", "year", year)

	for _, s := range r.steps() {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := s.run(ctx, year)
		if errors.Is(err, universe.ErrEmptyUniverse) {
			log.Info().Int("year", year).Str("indicator", s.name).Msg("no items to score")
			continue
		}
		if err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
		logger.Sugar().Infow("indicator complete", "year", year, "indicator", s.name, "scored", n)
	}
	return nil
}
