package combiner

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tensorplex-labs/novelty/internal/community"
	"github.com/tensorplex-labs/novelty/internal/config"
	"github.com/tensorplex-labs/novelty/internal/cooc"
	"github.com/tensorplex-labs/novelty/internal/corpus"
	"github.com/tensorplex-labs/novelty/internal/nullmodel"
	"github.com/tensorplex-labs/novelty/internal/sparse"
	"github.com/tensorplex-labs/novelty/internal/store"
	"github.com/tensorplex-labs/novelty/internal/universe"
)

func paper(id string, year int, names ...string) corpus.Paper {
	items := make([]corpus.Item, len(names))
	for i, n := range names {
		items[i] = corpus.Item{Name: n}
	}
	return corpus.Paper{ID: id, Year: year, Items: items}
}

func matrix(n int, fp uint64, cells map[sparse.Coord]float64) *sparse.Matrix {
	acc := sparse.NewAccumulator(n)
	for c, v := range cells {
		_ = acc.Add(int(c.I), int(c.J), v)
	}
	return acc.Matrix(sparse.Policy{KeepDiag: true}, fp)
}

func TestAtypicality_ZScore(t *testing.T) {
	obs := matrix(3, 7, map[sparse.Coord]float64{{I: 0, J: 1}: 5, {I: 1, J: 2}: 4})
	stats := &nullmodel.Stats{
		Mean: matrix(3, 7, map[sparse.Coord]float64{{I: 0, J: 1}: 2, {I: 1, J: 2}: 1}),
		SD:   matrix(3, 7, map[sparse.Coord]float64{{I: 0, J: 1}: 1}),
	}

	z, err := Atypicality(obs, stats)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, z.At(0, 1), 1e-12)
	assert.Equal(t, 0.0, z.At(1, 2), "zero sd resolves to 0")
	assert.Equal(t, uint64(7), z.Fingerprint)
}

func TestAtypicality_UniverseMismatch(t *testing.T) {
	obs := matrix(3, 7, map[sparse.Coord]float64{{I: 0, J: 1}: 5})
	stats := &nullmodel.Stats{Mean: matrix(3, 8, nil), SD: matrix(3, 8, nil)}
	_, err := Atypicality(obs, stats)
	assert.ErrorIs(t, err, universe.ErrMismatch)
}

func TestAtypicality_PolicyMismatch(t *testing.T) {
	obs := matrix(3, 7, map[sparse.Coord]float64{{I: 0, J: 1}: 5})
	unweighted := sparse.Empty(3, sparse.Policy{}, 7)
	_, err := Atypicality(obs, &nullmodel.Stats{Mean: unweighted, SD: unweighted})
	assert.ErrorIs(t, err, universe.ErrMismatch)
}

func TestCommonness_FixtureRatio(t *testing.T) {
	papers := []corpus.Paper{
		paper("1", 2000, "A", "B", "B"),
		paper("2", 2000, "A", "D", "E"),
		paper("3", 2000, "C", "D"),
	}
	u, err := universe.FromPapers(context.Background(), papers)
	require.NoError(t, err)
	obs, err := cooc.Build(papers, u, cooc.Options{Weighted: true, KeepDiag: true})
	require.NoError(t, err)

	require.Equal(t, 13.0, obs.Sum())
	a, _ := u.Index("A")
	b, _ := u.Index("B")

	score := Commonness(obs)
	assert.InDelta(t, 2.0*13/(4*3), score.At(a, b), 1e-12)
	assert.Equal(t, obs.Coords, score.Coords)
}

func TestNovelty(t *testing.T) {
	const fp = 1
	// pairs (0,1) new and reused, (0,2) seen in the past, (1,2) never reused
	current := matrix(4, fp, map[sparse.Coord]float64{{I: 0, J: 1}: 1, {I: 0, J: 2}: 1, {I: 1, J: 2}: 1})
	past := matrix(4, fp, map[sparse.Coord]float64{{I: 0, J: 2}: 3})
	future := matrix(4, fp, map[sparse.Coord]float64{{I: 0, J: 1}: 2, {I: 0, J: 2}: 2})
	// row 0 = [0 0 0 1], row 1 = [0 0 1 1] in the full symmetric form
	difficulty := matrix(4, fp, map[sparse.Coord]float64{{I: 0, J: 3}: 1, {I: 1, J: 2}: 1, {I: 1, J: 3}: 1})

	cfg := config.WangConfig{ReuseThreshold: 1}
	got, err := Novelty(current, past, future, difficulty, cfg)
	require.NoError(t, err)

	sim := 1 / (1 * 1.4142135623730951)
	assert.InDelta(t, 1-sim, got.At(0, 1), 1e-12)
	assert.Equal(t, 0.0, got.At(0, 2))
	assert.Equal(t, 0.0, got.At(1, 2))

	cfg.ReuseThreshold = 3
	got, err = Novelty(current, past, future, difficulty, cfg)
	require.NoError(t, err)
	assert.Equal(t, 0, got.NNZ())
}

func TestNovelty_ZeroRowsAreMaximallyDissimilar(t *testing.T) {
	current := matrix(3, 1, map[sparse.Coord]float64{{I: 0, J: 1}: 1})
	future := matrix(3, 1, map[sparse.Coord]float64{{I: 0, J: 1}: 1})
	empty := matrix(3, 1, nil)

	got, err := Novelty(current, empty, future, empty, config.WangConfig{ReuseThreshold: 1})
	require.NoError(t, err)
	assert.Equal(t, 1.0, got.At(0, 1))
}

func TestNovelty_UniverseMismatch(t *testing.T) {
	m := matrix(3, 1, nil)
	_, err := Novelty(m, m, m, matrix(3, 2, nil), config.WangConfig{})
	assert.ErrorIs(t, err, universe.ErrMismatch)
}

func TestNoveltyWindows(t *testing.T) {
	w := NoveltyWindows(config.WangConfig{PastWindow: 3, FutureWindow: 2, DifficultyWindow: 5}, 2000)
	assert.Equal(t, Windows{
		PastFrom: 1997, PastTo: 1999,
		FutureFrom: 2001, FutureTo: 2002,
		DifficultyFrom: 1995, DifficultyTo: 1999,
	}, w)
}

// staticOracle always returns the same partition.
type staticOracle map[int]int

func (s staticOracle) Partition(context.Context, *community.Graph) (map[int]int, error) {
	return s, nil
}

type failingOracle struct{}

func (failingOracle) Partition(context.Context, *community.Graph) (map[int]int, error) {
	return nil, errors.New("oracle down")
}

func TestFoster(t *testing.T) {
	obs := matrix(3, 1, map[sparse.Coord]float64{{I: 0, J: 1}: 2, {I: 1, J: 2}: 1, {I: 1, J: 1}: 1})
	cfg := config.FosterConfig{Samples: 4, EdgeFraction: 0.8, Seed: 1}

	got, err := Foster(context.Background(), obs, staticOracle{0: 0, 1: 0, 2: 1}, cfg, WithWorkers(2))
	require.NoError(t, err)
	assert.Equal(t, 0.0, got.At(0, 1), "always together")
	assert.Equal(t, 1.0, got.At(1, 2), "never together")
	assert.Equal(t, 0.0, got.At(1, 1))
}

func TestFoster_LabelPropagationInRange(t *testing.T) {
	obs := matrix(4, 1, map[sparse.Coord]float64{{I: 0, J: 1}: 5, {I: 2, J: 3}: 5, {I: 1, J: 2}: 1})
	cfg := config.FosterConfig{Samples: 10, EdgeFraction: 0.8, Seed: 2}

	oracle := community.LabelPropagation{Seed: 2}
	a, err := Foster(context.Background(), obs, oracle, cfg, WithFocalYear(2000))
	require.NoError(t, err)
	b, err := Foster(context.Background(), obs, oracle, cfg, WithFocalYear(2000), WithWorkers(4))
	require.NoError(t, err)
	assert.Equal(t, a.Values, b.Values, "runs are seeded")
	for _, v := range a.Values {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
	}
}

func TestFoster_OracleError(t *testing.T) {
	obs := matrix(3, 1, map[sparse.Coord]float64{{I: 0, J: 1}: 2})
	_, err := Foster(context.Background(), obs, failingOracle{}, config.FosterConfig{Samples: 2})
	assert.Error(t, err)
}

func TestPersistAndLoad(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	u := universe.New(universe.Version{}, []string{"A", "B", "C"})
	m := matrix(3, u.Fingerprint, map[sparse.Coord]float64{{I: 0, J: 1}: 0.5})
	key := store.NewKey("commonness", "refs", store.KindCooc, 2000)

	require.NoError(t, Persist(ctx, st, key, m))
	got, err := Load(ctx, st, key, u)
	require.NoError(t, err)
	assert.Equal(t, m.Values, got.Values)

	other := universe.New(universe.Version{}, []string{"X"})
	_, err = Load(ctx, st, key, other)
	assert.ErrorIs(t, err, universe.ErrMismatch)

	_, err = Load(ctx, st, store.NewKey("commonness", "refs", store.KindCooc, 1999), u)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
