package nullmodel

import (
	"context"
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/tensorplex-labs/novelty/internal/sparse"
	"github.com/tensorplex-labs/novelty/internal/store"
	"github.com/tensorplex-labs/novelty/internal/universe"
)

// Stats holds the per-cell mean and population standard deviation of an
// ensemble. A cell absent from both matrices had zero count in every sample.
type Stats struct {
	Mean *sparse.Matrix
	SD   *sparse.Matrix
}

// Save persists the statistics under key's indicator, variable and year.
func (s *Stats) Save(ctx context.Context, st store.Store, key store.Key) error {
	if err := store.PutMatrix(ctx, st, key.WithKind(store.KindNullMean), s.Mean); err != nil {
		return err
	}
	return store.PutMatrix(ctx, st, key.WithKind(store.KindNullSD), s.SD)
}

// checkArtifact rejects a stored matrix indexed by another universe or built
// with another pairing policy.
func checkArtifact(m *sparse.Matrix, u *universe.Universe, policy sparse.Policy) error {
	if err := u.Check(m.Fingerprint); err != nil {
		return err
	}
	if m.Policy != policy {
		return fmt.Errorf("%w: stored policy %+v, want %+v", universe.ErrMismatch, m.Policy, policy)
	}
	return nil
}

// LoadStats reads statistics written by Save and checks them against u and
// the pairing policy they must have been built with.
func LoadStats(ctx context.Context, st store.Store, key store.Key, u *universe.Universe, policy sparse.Policy) (*Stats, error) {
	mean, err := store.GetMatrix(ctx, st, key.WithKind(store.KindNullMean))
	if err != nil {
		return nil, err
	}
	sd, err := store.GetMatrix(ctx, st, key.WithKind(store.KindNullSD))
	if err != nil {
		return nil, err
	}
	for _, m := range []*sparse.Matrix{mean, sd} {
		if err := checkArtifact(m, u, policy); err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
	}
	return &Stats{Mean: mean, SD: sd}, nil
}

// Union returns the sorted set of coordinates stored in any of the matrices.
func Union(ms []*sparse.Matrix) []sparse.Coord {
	if len(ms) == 0 {
		return nil
	}
	sets := make([][]sparse.Coord, len(ms))
	for i, m := range ms {
		sets[i] = m.Coords
	}
	for len(sets) > 1 {
		next := make([][]sparse.Coord, 0, (len(sets)+1)/2)
		for i := 0; i < len(sets); i += 2 {
			if i+1 == len(sets) {
				next = append(next, sets[i])
				continue
			}
			next = append(next, mergeCoords(sets[i], sets[i+1]))
		}
		sets = next
	}
	return slices.Clone(sets[0])
}

func mergeCoords(a, b []sparse.Coord) []sparse.Coord {
	out := make([]sparse.Coord, 0, max(len(a), len(b)))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch c := compare(a[i], b[j]); {
		case c < 0:
			out = append(out, a[i])
			i++
		case c > 0:
			out = append(out, b[j])
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	out = append(out, a[i:]...)
	return append(out, b[j:]...)
}

func compare(a, b sparse.Coord) int {
	switch {
	case a.I != b.I:
		return int(a.I) - int(b.I)
	default:
		return int(a.J) - int(b.J)
	}
}

// accumulateBatch computes mean and SD for coords, which must be sorted.
// The batch is split into contiguous shards, one per worker; within a shard
// each sample is walked with its own cursor.
func accumulateBatch(ctx context.Context, samples []*sparse.Matrix, coords []sparse.Coord, workers int) (mean, sd []float64, err error) {
	mean = make([]float64, len(coords))
	sd = make([]float64, len(coords))
	if len(coords) == 0 {
		return mean, sd, nil
	}

	workers = max(1, min(workers, len(coords)))
	shard := (len(coords) + workers - 1) / workers

	g, gctx := errgroup.WithContext(ctx)
	for lo := 0; lo < len(coords); lo += shard {
		hi := min(lo+shard, len(coords))
		g.Go(func() error {
			return accumulateShard(gctx, samples, coords[lo:hi], mean[lo:hi], sd[lo:hi])
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return mean, sd, nil
}

func accumulateShard(ctx context.Context, samples []*sparse.Matrix, coords []sparse.Coord, mean, sd []float64) error {
	cursors := make([]int, len(samples))
	for s, m := range samples {
		cursors[s], _ = slices.BinarySearchFunc(m.Coords, coords[0], compare)
	}

	values := make([]float64, len(samples))
	for k, c := range coords {
		if k%65536 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		for s, m := range samples {
			pos := cursors[s]
			for pos < len(m.Coords) && compare(m.Coords[pos], c) < 0 {
				pos++
			}
			cursors[s] = pos
			if pos < len(m.Coords) && m.Coords[pos] == c {
				values[s] = m.Values[pos]
			} else {
				values[s] = 0
			}
		}
		mean[k], sd[k] = stat.PopMeanStdDev(values, nil)
	}
	return nil
}
