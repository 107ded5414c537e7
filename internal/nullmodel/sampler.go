package nullmodel

import (
	"context"
	"errors"
	"fmt"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/tensorplex-labs/novelty/internal/config"
	"github.com/tensorplex-labs/novelty/internal/cooc"
	"github.com/tensorplex-labs/novelty/internal/corpus"
	"github.com/tensorplex-labs/novelty/internal/metrics"
	"github.com/tensorplex-labs/novelty/internal/sparse"
	"github.com/tensorplex-labs/novelty/internal/store"
	"github.com/tensorplex-labs/novelty/internal/universe"
)

var (
	ErrCorruptCheckpoint = errors.New("null statistics checkpoint is corrupt")
	ErrCheckpointWrite   = errors.New("failed to write null statistics checkpoint")
	ErrSampleMissing     = errors.New("null-model sample not yet computed")
)

// Sampler generates the shuffled ensemble for a focal year and accumulates
// its per-cell statistics.
type Sampler struct {
	store     store.Store
	cfg       config.AtypicalityConfig
	opts      cooc.Options
	indicator string
	metrics   *metrics.Metrics
}

type SamplerOption func(*Sampler)

func WithMetrics(m *metrics.Metrics) SamplerOption {
	return func(s *Sampler) {
		s.metrics = m
	}
}

// WithIndicator overrides the indicator name used in artifact keys.
func WithIndicator(name string) SamplerOption {
	return func(s *Sampler) {
		s.indicator = name
	}
}

func NewSampler(st store.Store, cfg config.AtypicalityConfig, opts ...SamplerOption) (*Sampler, error) {
	if st == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	builderOpts, err := cooc.OptionsFromConfig(cfg.MatrixConfig)
	if err != nil {
		return nil, err
	}

	s := &Sampler{
		store:     st,
		cfg:       cfg,
		opts:      builderOpts,
		indicator: string(corpus.IndicatorAtypicality),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Policy is the pairing policy of every matrix the sampler builds.
func (s *Sampler) Policy() sparse.Policy {
	return s.opts.Policy()
}

// Key returns the base artifact key for focalYear.
func (s *Sampler) Key(kind store.Kind, focalYear int) store.Key {
	return store.NewKey(s.indicator, s.cfg.Variable, kind, focalYear)
}

// GenerateSamples builds every missing ensemble member for focalYear from the
// papers published that year. Members already in the store are kept as is;
// Accumulate rejects them if they were built with another policy.
// It returns the number of samples generated.
func (s *Sampler) GenerateSamples(ctx context.Context, papers []corpus.Paper, u *universe.Universe, focalYear int) (int, error) {
	defer s.metrics.Stage(s.indicator, "sample")()

	rows := Flatten(papers)
	base := s.Key(store.KindSample, focalYear)

	missing := make([]int, 0, s.cfg.Samples)
	for i := range s.cfg.Samples {
		ok, err := s.store.Exists(ctx, base.WithSample(i))
		if err != nil {
			return 0, err
		}
		if !ok {
			missing = append(missing, i)
		}
	}
	if len(missing) == 0 {
		log.Debug().Int("year", focalYear).Msg("all null-model samples present")
		return 0, nil
	}

	log.Info().Int("year", focalYear).Int("missing", len(missing)).Int("samples", s.cfg.Samples).
		Int("rows", len(rows)).Msg("generating null-model samples")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for _, i := range missing {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			shuffled := Shuffle(rows, sampleRNG(s.cfg.Seed, focalYear, i))
			m, err := cooc.BuildIndexed(Reassemble(shuffled, len(papers), u), u.Len(), u.Fingerprint, s.opts)
			if err != nil {
				return fmt.Errorf("building sample %d: %w", i, err)
			}
			if err := store.PutMatrix(gctx, s.store, base.WithSample(i), m); err != nil {
				return fmt.Errorf("persisting sample %d: %w", i, err)
			}
			s.metrics.Sampled(s.indicator)
			log.Debug().Int("year", focalYear).Int("sample", i).Int("nnz", m.NNZ()).Msg("null-model sample stored")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return len(missing), nil
}

// loadSamples reads the whole ensemble. A missing member is reported as
// ErrSampleMissing, never as an empty matrix.
func (s *Sampler) loadSamples(ctx context.Context, u *universe.Universe, focalYear int) ([]*sparse.Matrix, error) {
	base := s.Key(store.KindSample, focalYear)
	samples := make([]*sparse.Matrix, s.cfg.Samples)
	for i := range samples {
		m, err := store.GetMatrix(ctx, s.store, base.WithSample(i))
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("year %d sample %d: %w", focalYear, i, ErrSampleMissing)
		}
		if err != nil {
			return nil, err
		}
		if err := checkArtifact(m, u, s.opts.Policy()); err != nil {
			return nil, fmt.Errorf("year %d sample %d: %w", focalYear, i, err)
		}
		samples[i] = m
	}
	return samples, nil
}

// Accumulate computes the null statistics of focalYear's ensemble, resuming
// from the last checkpoint when one exists. Coordinates are processed in
// batches of CheckpointEvery; a checkpoint is written after every batch.
func (s *Sampler) Accumulate(ctx context.Context, u *universe.Universe, focalYear int) (*Stats, error) {
	defer s.metrics.Stage(s.indicator, "accumulate")()

	samples, err := s.loadSamples(ctx, u, focalYear)
	if err != nil {
		return nil, err
	}
	coords := Union(samples)

	ckKey := s.Key(store.KindCheckpoint, focalYear)
	state, err := s.loadCheckpoint(ctx, ckKey, u, len(coords))
	if err != nil {
		return nil, err
	}
	if state.Cursor() > 0 {
		log.Info().Int("year", focalYear).Int("cursor", state.Cursor()).Int("total", len(coords)).
			Msg("resuming null statistics from checkpoint")
	}

	for cursor := state.Cursor(); cursor < len(coords); {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(cursor+s.cfg.CheckpointEvery, len(coords))
		start := time.Now()

		mean, sd, err := accumulateBatch(ctx, samples, coords[cursor:end], s.cfg.Workers)
		if err != nil {
			return nil, err
		}
		state.Mean = append(state.Mean, mean...)
		state.SD = append(state.SD, sd...)

		if err := s.store.Put(ctx, ckKey, state.marshal()); err != nil {
			s.metrics.Checkpoint("error")
			return nil, pkgerrors.Wrapf(ErrCheckpointWrite, "year %d cursor %d: %v", focalYear, end, err)
		}
		s.metrics.Checkpoint("ok")
		s.metrics.Coordinates(s.indicator, end-cursor)

		log.Debug().Int("year", focalYear).Int("cursor", end).Int("total", len(coords)).
			Dur("elapsed", time.Since(start)).Msg("null statistics checkpoint written")
		cursor = end
	}

	policy := s.opts.Policy()
	stats := &Stats{
		Mean: sparse.FromSorted(u.Len(), policy, u.Fingerprint, coords, state.Mean),
		SD:   sparse.FromSorted(u.Len(), policy, u.Fingerprint, coords, state.SD),
	}
	if err := stats.Save(ctx, s.store, s.Key(store.KindNullMean, focalYear)); err != nil {
		return nil, err
	}
	if err := s.store.Delete(ctx, ckKey); err != nil {
		log.Warn().Err(err).Int("year", focalYear).Msg("failed to remove completed checkpoint")
	}

	log.Info().Int("year", focalYear).Int("coordinates", len(coords)).Msg("null statistics complete")
	return stats, nil
}

func (s *Sampler) loadCheckpoint(ctx context.Context, key store.Key, u *universe.Universe, total int) (*checkpoint, error) {
	fresh := &checkpoint{Fingerprint: u.Fingerprint, Total: uint64(total), Samples: uint32(s.cfg.Samples)}

	data, err := s.store.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return fresh, nil
	}
	if err != nil {
		return nil, err
	}

	state, err := unmarshalCheckpoint(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	if state.Fingerprint != u.Fingerprint || state.Total != uint64(total) ||
		state.Samples != uint32(s.cfg.Samples) || state.Cursor() > total {
		return nil, pkgerrors.Wrapf(ErrCorruptCheckpoint, "%s does not match the current ensemble", key)
	}
	return state, nil
}

// Run generates any missing samples and accumulates their statistics, or
// loads previously completed statistics.
func (s *Sampler) Run(ctx context.Context, papers []corpus.Paper, u *universe.Universe, focalYear int) (*Stats, error) {
	stats, err := LoadStats(ctx, s.store, s.Key(store.KindNullMean, focalYear), u, s.opts.Policy())
	if err == nil {
		return stats, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if _, err := s.GenerateSamples(ctx, papers, u, focalYear); err != nil {
		return nil, err
	}
	return s.Accumulate(ctx, u, focalYear)
}
