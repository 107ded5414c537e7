// Package store persists pipeline artifacts (universes, co-occurrence
// matrices, null-model samples, checkpoints and score matrices) in a
// key-value store keyed by indicator, variable, focal year and sample.
package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
)

var ErrNotFound = errors.New("artifact not found")

// Kind names the artifact family stored under a key.
type Kind string

const (
	KindUniverse   Kind = "universe"
	KindCooc       Kind = "cooc"
	KindPast       Kind = "past"
	KindFuture     Kind = "future"
	KindDifficulty Kind = "difficulty"
	KindSample     Kind = "sample"
	KindNullMean   Kind = "nullmean"
	KindNullSD     Kind = "nullsd"
	KindCheckpoint Kind = "checkpoint"
	KindScore      Kind = "score"
)

// Key addresses one artifact.
type Key struct {
	Indicator string
	Variable  string
	Kind      Kind
	FocalYear int
	Sample    int
	Sampled   bool
}

func NewKey(indicator, variable string, kind Kind, focalYear int) Key {
	return Key{Indicator: indicator, Variable: variable, Kind: kind, FocalYear: focalYear}
}

// WithSample returns a copy of the key addressing ensemble member i.
func (k Key) WithSample(i int) Key {
	k.Sample = i
	k.Sampled = true
	return k
}

// WithKind returns a copy of the key for another artifact family.
func (k Key) WithKind(kind Kind) Key {
	k.Kind = kind
	k.Sample = 0
	k.Sampled = false
	return k
}

// String renders the key as a slash separated path, e.g.
// "atypicality/refs/sample/2000/7".
func (k Key) String() string {
	s := fmt.Sprintf("%s/%s/%s/%d", k.Indicator, k.Variable, k.Kind, k.FocalYear)
	if k.Sampled {
		s += "/" + strconv.Itoa(k.Sample)
	}
	return s
}

// Store is the storage abstraction every component persists through.
// Put must be atomic: a reader never observes a partially written value.
type Store interface {
	Get(ctx context.Context, key Key) ([]byte, error)
	Put(ctx context.Context, key Key, value []byte) error
	Exists(ctx context.Context, key Key) (bool, error)
	Delete(ctx context.Context, key Key) error
}
