package pipeline

import (
	"context"
	"fmt"
	"strconv"

	"github.com/tensorplex-labs/novelty/internal/aggregator"
	"github.com/tensorplex-labs/novelty/internal/combiner"
	"github.com/tensorplex-labs/novelty/internal/config"
	"github.com/tensorplex-labs/novelty/internal/cooc"
	"github.com/tensorplex-labs/novelty/internal/corpus"
	"github.com/tensorplex-labs/novelty/internal/docstore"
	"github.com/tensorplex-labs/novelty/internal/nullmodel"
	"github.com/tensorplex-labs/novelty/internal/sparse"
	"github.com/tensorplex-labs/novelty/internal/store"
	"github.com/tensorplex-labs/novelty/internal/universe"
)

type step struct {
	name string
	run  func(ctx context.Context, year int) (int, error)
}

func (r *Runner) steps() []step {
	var steps []step
	if r.indicators.Atypicality != nil {
		steps = append(steps, step{string(corpus.IndicatorAtypicality), r.atypicality})
	}
	if r.indicators.Commonness != nil {
		steps = append(steps, step{string(corpus.IndicatorCommonness), r.commonness})
	}
	if r.indicators.Novelty != nil {
		steps = append(steps, step{string(corpus.IndicatorNovelty), r.novelty})
	}
	if r.indicators.Foster != nil {
		steps = append(steps, step{string(corpus.IndicatorFoster), r.foster})
	}
	if r.indicators.Distance != nil {
		steps = append(steps, step{string(corpus.IndicatorDistance), r.distance})
	}
	return steps
}

// focal is the indexed, counted input of one indicator for one year.
type focal struct {
	papers   []corpus.Paper
	universe *universe.Universe
	observed *sparse.Matrix
	key      store.Key
}

func (r *Runner) prepare(ctx context.Context, indicator corpus.Indicator, mc config.MatrixConfig, year int, requireYear bool) (*focal, error) {
	defer r.deps.Metrics.Stage(string(indicator), "prepare")()

	papers, err := r.deps.Docs.FindPapers(ctx, docstore.Filter{YearFrom: year, YearTo: year})
	if err != nil {
		return nil, err
	}
	if requireYear {
		// undated occurrences cannot be resampled, so they are not counted either
		papers = nullmodel.DatedPapers(papers)
	}
	opts, err := cooc.OptionsFromConfig(mc)
	if err != nil {
		return nil, err
	}

	version := universe.Version{Variable: mc.Variable, Window: strconv.Itoa(year), Weighted: mc.Weighted, KeepDiag: mc.KeepDiag}
	u, err := universe.FromPapers(ctx, papers, universe.WithVersion(version), universe.WithRequireYear(requireYear))
	if err != nil {
		return nil, err
	}
	key := store.NewKey(string(indicator), mc.Variable, store.KindUniverse, year)
	if err := store.PutUniverse(ctx, r.deps.Store, key, u); err != nil {
		return nil, err
	}

	observed, err := cooc.Build(papers, u, opts)
	if err != nil {
		return nil, err
	}
	if err := store.PutMatrix(ctx, r.deps.Store, key.WithKind(store.KindCooc), observed); err != nil {
		return nil, err
	}
	return &focal{papers: papers, universe: u, observed: observed, key: key}, nil
}

// finish persists the score matrix, aggregates it to papers and stores the
// paper scores.
func (r *Runner) finish(ctx context.Context, indicator corpus.Indicator, f *focal, score *sparse.Matrix) (int, error) {
	if err := combiner.Persist(ctx, r.deps.Store, f.key, score); err != nil {
		return 0, err
	}
	return r.aggregate(ctx, indicator, f.papers, aggregator.MatrixScorer(score, f.universe, indicator))
}

func (r *Runner) aggregate(ctx context.Context, indicator corpus.Indicator, papers []corpus.Paper, score aggregator.ScoreFunc) (int, error) {
	defer r.deps.Metrics.Stage(string(indicator), "aggregate")()

	scores, err := aggregator.AggregateAll(ctx, papers, indicator, score,
		aggregator.WithWorkers(r.workers), aggregator.WithMetrics(r.deps.Metrics))
	if err != nil {
		return 0, err
	}
	if err := r.deps.Docs.UpsertScores(ctx, scores); err != nil {
		return 0, err
	}
	return len(scores), nil
}

func (r *Runner) sampler() (*nullmodel.Sampler, error) {
	cfg := *r.indicators.Atypicality
	if cfg.Workers <= 1 {
		cfg.Workers = r.workers
	}
	return nullmodel.NewSampler(r.deps.Store, cfg, nullmodel.WithMetrics(r.deps.Metrics))
}

type nullResult struct {
	focal *focal
	stats *nullmodel.Stats
}

func (r *Runner) nullStats(ctx context.Context, year int) (*nullResult, error) {
	cfg := r.indicators.Atypicality
	f, err := r.prepare(ctx, corpus.IndicatorAtypicality, cfg.MatrixConfig, year, true)
	if err != nil {
		return nil, err
	}
	s, err := r.sampler()
	if err != nil {
		return nil, err
	}
	stats, err := s.Run(ctx, f.papers, f.universe, year)
	if err != nil {
		return nil, err
	}
	return &nullResult{focal: f, stats: stats}, nil
}

func (r *Runner) atypicality(ctx context.Context, year int) (int, error) {
	res, err := r.nullStats(ctx, year)
	if err != nil {
		return 0, err
	}
	score, err := combiner.Atypicality(res.focal.observed, res.stats)
	if err != nil {
		return 0, err
	}
	return r.finish(ctx, corpus.IndicatorAtypicality, res.focal, score)
}

func (r *Runner) commonness(ctx context.Context, year int) (int, error) {
	f, err := r.prepare(ctx, corpus.IndicatorCommonness, r.indicators.Commonness.MatrixConfig, year, false)
	if err != nil {
		return 0, err
	}
	return r.finish(ctx, corpus.IndicatorCommonness, f, combiner.Commonness(f.observed))
}

func (r *Runner) foster(ctx context.Context, year int) (int, error) {
	cfg := *r.indicators.Foster
	f, err := r.prepare(ctx, corpus.IndicatorFoster, cfg.MatrixConfig, year, false)
	if err != nil {
		return 0, err
	}
	score, err := combiner.Foster(ctx, f.observed, r.deps.Oracle, cfg,
		combiner.WithWorkers(r.workers), combiner.WithFocalYear(year))
	if err != nil {
		return 0, err
	}
	return r.finish(ctx, corpus.IndicatorFoster, f, score)
}

// novelty indexes every paper of the past, focal and future windows so that
// all four matrices share one universe.
func (r *Runner) novelty(ctx context.Context, year int) (int, error) {
	cfg := *r.indicators.Novelty
	defer r.deps.Metrics.Stage(string(corpus.IndicatorNovelty), "combine")()

	w := combiner.NoveltyWindows(cfg, year)
	from := min(w.PastFrom, w.DifficultyFrom)
	papers, err := r.deps.Docs.FindPapers(ctx, docstore.Filter{YearFrom: from, YearTo: w.FutureTo})
	if err != nil {
		return 0, err
	}
	opts, err := cooc.OptionsFromConfig(cfg.MatrixConfig)
	if err != nil {
		return 0, err
	}

	version := universe.Version{
		Variable: cfg.Variable,
		Window:   fmt.Sprintf("%d-%d", from, w.FutureTo),
		Weighted: cfg.Weighted,
		KeepDiag: cfg.KeepDiag,
	}
	u, err := universe.FromPapers(ctx, papers, universe.WithVersion(version))
	if err != nil {
		return 0, err
	}
	key := store.NewKey(string(corpus.IndicatorNovelty), cfg.Variable, store.KindUniverse, year)
	if err := store.PutUniverse(ctx, r.deps.Store, key, u); err != nil {
		return 0, err
	}

	windows := []struct {
		kind     store.Kind
		from, to int
	}{
		{store.KindCooc, year, year},
		{store.KindPast, w.PastFrom, w.PastTo},
		{store.KindFuture, w.FutureFrom, w.FutureTo},
		{store.KindDifficulty, w.DifficultyFrom, w.DifficultyTo},
	}
	matrices := make([]*sparse.Matrix, len(windows))
	for k, win := range windows {
		m, err := cooc.BuildWindow(papers, u, win.from, win.to, opts)
		if err != nil {
			return 0, err
		}
		if err := store.PutMatrix(ctx, r.deps.Store, key.WithKind(win.kind), m); err != nil {
			return 0, err
		}
		matrices[k] = m
	}

	score, err := combiner.Novelty(matrices[0], matrices[1], matrices[2], matrices[3], cfg)
	if err != nil {
		return 0, err
	}

	focalPapers := make([]corpus.Paper, 0, len(papers))
	for _, p := range papers {
		if p.Year == year {
			focalPapers = append(focalPapers, p)
		}
	}
	return r.finish(ctx, corpus.IndicatorNovelty, &focal{papers: focalPapers, universe: u, key: key}, score)
}

func (r *Runner) distance(ctx context.Context, year int) (int, error) {
	papers, err := r.deps.Docs.FindPapers(ctx, docstore.Filter{YearFrom: year, YearTo: year})
	if err != nil {
		return 0, err
	}
	return r.aggregate(ctx, corpus.IndicatorDistance, papers,
		aggregator.DistanceScorer(r.deps.Vectors, r.indicators.Distance.Variable))
}
