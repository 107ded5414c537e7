package store

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"

	"github.com/tensorplex-labs/novelty/internal/sparse"
	"github.com/tensorplex-labs/novelty/internal/universe"
)

func PutMatrix(ctx context.Context, s Store, key Key, m *sparse.Matrix) error {
	data, err := m.MarshalBinary()
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	return s.Put(ctx, key, data)
}

// GetMatrix loads a matrix. A missing key yields an error wrapping
// ErrNotFound; a damaged payload wraps sparse.ErrCorrupt.
func GetMatrix(ctx context.Context, s Store, key Key) (*sparse.Matrix, error) {
	data, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	m := &sparse.Matrix{}
	if err := m.UnmarshalBinary(data); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", key, err)
	}
	return m, nil
}

func PutUniverse(ctx context.Context, s Store, key Key, u *universe.Universe) error {
	data, err := sonic.Marshal(u)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	return s.Put(ctx, key, sparse.Compress(data))
}

func GetUniverse(ctx context.Context, s Store, key Key) (*universe.Universe, error) {
	data, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	raw, err := sparse.Decompress(data)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", key, err)
	}
	u := &universe.Universe{}
	if err := sonic.Unmarshal(raw, u); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", key, err)
	}
	if err := u.Restore(); err != nil {
		return nil, fmt.Errorf("restoring %s: %w", key, err)
	}
	return u, nil
}
