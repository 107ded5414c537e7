package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tensorplex-labs/novelty/internal/sparse"
	"github.com/tensorplex-labs/novelty/internal/universe"
)

func TestKey_String(t *testing.T) {
	k := NewKey("atypicality", "refs", KindSample, 2000)
	assert.Equal(t, "atypicality/refs/sample/2000", k.String())
	assert.Equal(t, "atypicality/refs/sample/2000/7", k.WithSample(7).String())
	assert.Equal(t, "atypicality/refs/nullmean/2000", k.WithSample(7).WithKind(KindNullMean).String())
}

func stores(t *testing.T) map[string]Store {
	fsStore, err := NewFSStore(t.TempDir())
	require.NoError(t, err)
	return map[string]Store{
		"fs":     fsStore,
		"memory": NewMemoryStore(),
		"redis":  NewRedisStore(newFakeRedis(), "novelty:"),
	}
}

func TestStore_Contract(t *testing.T) {
	ctx := context.Background()
	key := NewKey("commonness", "journals", KindScore, 1999)

	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ok, err := s.Exists(ctx, key)
			require.NoError(t, err)
			assert.False(t, ok)

			_, err = s.Get(ctx, key)
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.Put(ctx, key, []byte("v1")))
			require.NoError(t, s.Put(ctx, key, []byte("v2")))

			got, err := s.Get(ctx, key)
			require.NoError(t, err)
			assert.Equal(t, []byte("v2"), got)

			ok, err = s.Exists(ctx, key)
			require.NoError(t, err)
			assert.True(t, ok)

			require.NoError(t, s.Delete(ctx, key))
			require.NoError(t, s.Delete(ctx, key))
			ok, err = s.Exists(ctx, key)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestFSStore_LeavesNoTempFiles(t *testing.T) {
	root := t.TempDir()
	s, err := NewFSStore(root)
	require.NoError(t, err)

	key := NewKey("atypicality", "refs", KindCheckpoint, 2001)
	require.NoError(t, s.Put(context.Background(), key, []byte("state")))

	entries, err := os.ReadDir(filepath.Join(root, "atypicality", "refs", "checkpoint"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "2001.bin", entries[0].Name())
}

func TestMatrixAndUniverseCodec(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	u := universe.New(universe.Version{Variable: "refs"}, []string{"a", "b", "c"})

	acc := sparse.NewAccumulator(u.Len())
	require.NoError(t, acc.Add(0, 1, 3))
	m := acc.Matrix(sparse.Policy{}, u.Fingerprint)

	key := NewKey("atypicality", "refs", KindCooc, 2000)
	require.NoError(t, PutMatrix(ctx, s, key, m))
	require.NoError(t, PutUniverse(ctx, s, key.WithKind(KindUniverse), u))

	gotM, err := GetMatrix(ctx, s, key)
	require.NoError(t, err)
	assert.Equal(t, m, gotM)

	gotU, err := GetUniverse(ctx, s, key.WithKind(KindUniverse))
	require.NoError(t, err)
	assert.Equal(t, u.IndexToName, gotU.IndexToName)
	assert.Equal(t, u.Fingerprint, gotU.Fingerprint)

	require.NoError(t, s.Put(ctx, key, []byte("truncated")))
	_, err = GetMatrix(ctx, s, key)
	assert.ErrorIs(t, err, sparse.ErrCorrupt)
}

type fakeRedis struct {
	data map[string][]byte
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: make(map[string][]byte)}
}

func (f *fakeRedis) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := f.data[key]
	return v, ok, nil
}

func (f *fakeRedis) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	f.data[key] = value
	return nil
}

func (f *fakeRedis) Exists(_ context.Context, key string) (bool, error) {
	_, ok := f.data[key]
	return ok, nil
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}
