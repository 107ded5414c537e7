package pipeline

import (
	"context"
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tensorplex-labs/novelty/internal/config"
	"github.com/tensorplex-labs/novelty/internal/corpus"
	"github.com/tensorplex-labs/novelty/internal/docstore"
	"github.com/tensorplex-labs/novelty/internal/metrics"
	"github.com/tensorplex-labs/novelty/internal/nullmodel"
	"github.com/tensorplex-labs/novelty/internal/scoring"
	"github.com/tensorplex-labs/novelty/internal/sparse"
	"github.com/tensorplex-labs/novelty/internal/store"
)

const indicatorsYAML = `
atypicality:
  variable: refs
  weighted: true
  samples: 4
  checkpointEvery: 5
  seed: 7
commonness:
  variable: refs
novelty:
  variable: refs
  pastWindow: 2
  futureWindow: 2
foster:
  variable: refs
  samples: 3
distance:
  variable: refs
`

func seedCorpus(t *testing.T) *docstore.SQLStore {
	t.Helper()
	docs, err := docstore.Open(context.Background(), "sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = docs.Close() })

	rng := rand.New(rand.NewPCG(3, 4))
	names := []string{"J1", "J2", "J3", "J4", "J5", "J6", "J7"}
	var papers []corpus.Paper
	for year := 1998; year <= 2003; year++ {
		for p := range 12 {
			n := 2 + rng.IntN(3)
			items := make([]corpus.Item, n)
			for k, idx := range rng.Perm(len(names))[:n] {
				items[k] = corpus.Item{Name: names[idx], Year: corpus.IntPtr(1980 + idx%2)}
			}
			papers = append(papers, corpus.Paper{ID: fmt.Sprintf("%d-%02d", year, p), Year: year, Items: items})
		}
	}
	papers = append(papers, corpus.Paper{ID: "2000-lonely", Year: 2000, Items: []corpus.Item{{Name: "J1"}}})
	require.NoError(t, docs.PutPapers(context.Background(), papers))
	return docs
}

type vectors struct{}

func (vectors) Vector(_ context.Context, id string) ([]float64, bool, error) {
	return []float64{float64(len(id)), float64(id[len(id)-1])}, true, nil
}

func newRunner(t *testing.T, docs docstore.Store, st store.Store, m *metrics.Metrics) *Runner {
	t.Helper()
	indicators, err := config.ParseIndicators([]byte(indicatorsYAML))
	require.NoError(t, err)
	r, err := NewRunner(Deps{Store: st, Docs: docs, Vectors: vectors{}, Metrics: m}, indicators,
		WithWorkers(3), WithYearWorkers(2))
	require.NoError(t, err)
	return r
}

func TestNewRunner_RequiresDeps(t *testing.T) {
	indicators, err := config.ParseIndicators([]byte(indicatorsYAML))
	require.NoError(t, err)

	_, err = NewRunner(Deps{}, indicators)
	assert.ErrorIs(t, err, ErrMissingDependency)

	_, err = NewRunner(Deps{Store: store.NewMemoryStore(), Docs: seedCorpus(t)}, indicators)
	assert.ErrorIs(t, err, ErrMissingDependency, "distance needs vectors")
}

func TestRun_ScoresEveryIndicator(t *testing.T) {
	ctx := context.Background()
	docs := seedCorpus(t)
	st := store.NewMemoryStore()
	m := metrics.New(prometheus.NewRegistry())

	r := newRunner(t, docs, st, m)
	require.NoError(t, r.Run(ctx, 2000, 2001))

	for _, ind := range []corpus.Indicator{
		corpus.IndicatorAtypicality, corpus.IndicatorCommonness, corpus.IndicatorNovelty,
		corpus.IndicatorFoster, corpus.IndicatorDistance,
	} {
		scores, err := docs.Scores(ctx, ind, "refs")
		require.NoError(t, err)
		assert.Len(t, scores, 24, ind)
		for _, s := range scores {
			assert.NotEqual(t, "2000-lonely", s.PaperID)
			assert.Contains(t, s.Headline, scoring.HeadlinePairs)
		}
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PapersSkipped.WithLabelValues("commonness", "insufficient_items")))

	ok, err := st.Exists(ctx, store.NewKey("commonness", "refs", store.KindScore, 2000))
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = st.Exists(ctx, store.NewKey("novelty", "refs", store.KindDifficulty, 2001))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRun_IsRepeatable(t *testing.T) {
	ctx := context.Background()
	docs := seedCorpus(t)
	st := store.NewMemoryStore()
	r := newRunner(t, docs, st, nil)

	require.NoError(t, r.Run(ctx, 2000, 2000))
	first, err := docs.Scores(ctx, corpus.IndicatorAtypicality, "refs")
	require.NoError(t, err)

	require.NoError(t, r.Run(ctx, 2000, 2000))
	second, err := docs.Scores(ctx, corpus.IndicatorAtypicality, "refs")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRun_EmptyYearIsSkipped(t *testing.T) {
	r := newRunner(t, seedCorpus(t), store.NewMemoryStore(), nil)
	assert.NoError(t, r.RunYear(context.Background(), 1950))
}

func TestRun_InvalidRange(t *testing.T) {
	r := newRunner(t, seedCorpus(t), store.NewMemoryStore(), nil)
	assert.Error(t, r.Run(context.Background(), 2001, 2000))
}

func TestSample_PersistsNullStats(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	r := newRunner(t, seedCorpus(t), st, nil)

	require.NoError(t, r.Sample(ctx, 1999, 1999))

	for i := range 4 {
		ok, err := st.Exists(ctx, store.NewKey("atypicality", "refs", store.KindSample, 1999).WithSample(i))
		require.NoError(t, err)
		assert.True(t, ok)
	}
	u, err := store.GetUniverse(ctx, st, store.NewKey("atypicality", "refs", store.KindUniverse, 1999))
	require.NoError(t, err)
	_, err = nullmodel.LoadStats(ctx, st, store.NewKey("atypicality", "refs", store.KindNullMean, 1999), u,
		sparse.Policy{Weighted: true})
	assert.NoError(t, err)
}

func TestPrepare_AtypicalityCountsDatedOccurrencesOnly(t *testing.T) {
	ctx := context.Background()
	docs, err := docstore.Open(ctx, "sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = docs.Close() })
	require.NoError(t, docs.PutPapers(ctx, []corpus.Paper{
		{ID: "1", Year: 2010, Items: []corpus.Item{{Name: "A", Year: corpus.IntPtr(1990)}, {Name: "B", Year: corpus.IntPtr(1990)}}},
		{ID: "2", Year: 2010, Items: []corpus.Item{{Name: "A"}, {Name: "B", Year: corpus.IntPtr(1990)}}},
	}))

	r := newRunner(t, docs, store.NewMemoryStore(), nil)
	f, err := r.prepare(ctx, corpus.IndicatorAtypicality, r.indicators.Atypicality.MatrixConfig, 2010, true)
	require.NoError(t, err)

	a, _ := f.universe.Index("A")
	b, _ := f.universe.Index("B")
	assert.Equal(t, 1.0, f.observed.At(a, b))
	assert.Len(t, f.papers[1].Items, 1)

	// commonness keeps undated occurrences
	f, err = r.prepare(ctx, corpus.IndicatorCommonness, r.indicators.Commonness.MatrixConfig, 2010, false)
	require.NoError(t, err)
	a, _ = f.universe.Index("A")
	b, _ = f.universe.Index("B")
	assert.Equal(t, 2.0, f.observed.At(a, b))
}
