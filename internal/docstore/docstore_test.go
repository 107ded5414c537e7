package docstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tensorplex-labs/novelty/internal/corpus"
)

func setupTestStore(t *testing.T) *SQLStore {
	t.Helper()
	s, err := Open(context.Background(), "sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestFindPapers_FiltersByYear(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	papers := []corpus.Paper{
		{ID: "b", Year: 2001, Items: []corpus.Item{{Name: "J1", Year: corpus.IntPtr(1990)}, {Name: "J2"}}},
		{ID: "a", Year: 2001, Items: []corpus.Item{{Name: "J3"}}},
		{ID: "c", Year: 2005},
	}
	require.NoError(t, s.PutPapers(ctx, papers))

	got, err := s.FindPapers(ctx, Filter{YearFrom: 2000, YearTo: 2002})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, papers[0], got[1])

	got, err = s.FindPapers(ctx, Filter{YearFrom: 2010, YearTo: 2020})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMigrate_Idempotent(t *testing.T) {
	s := setupTestStore(t)
	assert.NoError(t, s.Migrate(context.Background()))
}

func TestUpsertScore_Replaces(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	score := corpus.PaperScore{
		PaperID: "p1", Year: 2000, Indicator: corpus.IndicatorCommonness, Variable: "refs",
		Headline: map[string]float64{"novelty": 0.5}, Raw: []float64{1, 2},
	}
	require.NoError(t, s.UpsertScore(ctx, score))

	score.Headline["novelty"] = 0.75
	require.NoError(t, s.UpsertScores(ctx, []corpus.PaperScore{score, {
		PaperID: "p2", Year: 2000, Indicator: corpus.IndicatorCommonness, Variable: "refs",
		Headline: map[string]float64{"novelty": 1},
	}}))

	got, err := s.Scores(ctx, corpus.IndicatorCommonness, "refs")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 0.75, got[0].Headline["novelty"])
	assert.Equal(t, []float64{1, 2}, got[0].Raw)
	assert.Empty(t, got[1].Raw)

	other, err := s.Scores(ctx, corpus.IndicatorFoster, "refs")
	require.NoError(t, err)
	assert.Empty(t, other)
}
