package combiner

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/tensorplex-labs/novelty/internal/community"
	"github.com/tensorplex-labs/novelty/internal/config"
	"github.com/tensorplex-labs/novelty/internal/sparse"
)

type fosterOptions struct {
	workers   int
	focalYear int
}

type FosterOption func(*fosterOptions)

// WithWorkers bounds the number of oracle runs in flight.
func WithWorkers(n int) FosterOption {
	return func(o *fosterOptions) {
		o.workers = n
	}
}

// WithFocalYear mixes the focal year into the per-run seeds.
func WithFocalYear(year int) FosterOption {
	return func(o *fosterOptions) {
		o.focalYear = year
	}
}

// Foster runs the community oracle over cfg.Samples independently
// edge-resampled subgraphs of observed. Every observed pair scores
// 1 - (runs placing both items in one community) / Samples.
func Foster(ctx context.Context, observed *sparse.Matrix, oracle community.Oracle, cfg config.FosterConfig, opts ...FosterOption) (*sparse.Matrix, error) {
	o := fosterOptions{workers: 1}
	for _, opt := range opts {
		opt(&o)
	}
	samples := max(cfg.Samples, 1)
	fraction := cfg.EdgeFraction
	if fraction <= 0 {
		fraction = config.DefaultEdgeFraction
	}

	graph := community.FromMatrix(observed)
	partitions := make([]map[int]int, samples)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(o.workers, 1))
	for run := range samples {
		g.Go(func() error {
			rng := rand.New(rand.NewPCG(cfg.Seed, uint64(o.focalYear)<<32|uint64(run)))
			p, err := oracle.Partition(gctx, graph.Sample(rng, fraction))
			if err != nil {
				return fmt.Errorf("community run %d: %w", run, err)
			}
			partitions[run] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	log.Debug().Int("runs", samples).Int("edges", len(graph.Edges)).Msg("community runs complete")

	return observed.Map(func(c sparse.Coord, _ float64) float64 {
		if c.I == c.J {
			return 0
		}
		together := 0
		for _, p := range partitions {
			ci, okI := p[int(c.I)]
			cj, okJ := p[int(c.J)]
			if okI && okJ && ci == cj {
				together++
			}
		}
		return 1 - float64(together)/float64(samples)
	}), nil
}
