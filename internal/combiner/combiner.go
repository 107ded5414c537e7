// Package combiner turns observed co-occurrence matrices and their baselines
// into per-pair score matrices for each indicator.
//
// Every combiner returns a matrix over the coordinates of the observed
// matrix, carrying its universe fingerprint and pairing policy. Undefined
// values (zero standard deviation, zero marginals, zero-norm rows) are
// resolved to 0.
package combiner

import (
	"context"
	"fmt"

	"github.com/tensorplex-labs/novelty/internal/sparse"
	"github.com/tensorplex-labs/novelty/internal/store"
	"github.com/tensorplex-labs/novelty/internal/universe"
)

// sameUniverse returns universe.ErrMismatch when any input was indexed by a
// different universe, or built with a different pairing policy, than the
// first.
func sameUniverse(ms ...*sparse.Matrix) error {
	for _, m := range ms[1:] {
		if m.N != ms[0].N || m.Fingerprint != ms[0].Fingerprint {
			return fmt.Errorf("%w: %x vs %x", universe.ErrMismatch, m.Fingerprint, ms[0].Fingerprint)
		}
		if m.Policy != ms[0].Policy {
			return fmt.Errorf("%w: policy %+v vs %+v", universe.ErrMismatch, m.Policy, ms[0].Policy)
		}
	}
	return nil
}

// Persist stores a score matrix under key with kind score.
func Persist(ctx context.Context, st store.Store, key store.Key, m *sparse.Matrix) error {
	return store.PutMatrix(ctx, st, key.WithKind(store.KindScore), m)
}

// Load reads a score matrix written by Persist and checks it against u.
func Load(ctx context.Context, st store.Store, key store.Key, u *universe.Universe) (*sparse.Matrix, error) {
	m, err := store.GetMatrix(ctx, st, key.WithKind(store.KindScore))
	if err != nil {
		return nil, err
	}
	if err := u.Check(m.Fingerprint); err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return m, nil
}
