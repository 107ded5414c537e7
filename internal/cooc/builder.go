// Package cooc builds co-occurrence matrices from per-paper item lists.
package cooc

import (
	"fmt"
	"slices"

	"github.com/rs/zerolog/log"

	"github.com/tensorplex-labs/novelty/internal/corpus"
	"github.com/tensorplex-labs/novelty/internal/sparse"
	"github.com/tensorplex-labs/novelty/internal/universe"
)

type Mode int

const (
	// ModeCombinatorial enumerates the 2-combinations of each paper's item
	// list; with Weighted set, repeated items inflate the counts.
	ModeCombinatorial Mode = iota
	// ModeBinarizedDot counts the distinct papers containing both items, the
	// product of the binarized paper-item incidence matrix with itself.
	ModeBinarizedDot
)

func (m Mode) String() string {
	switch m {
	case ModeCombinatorial:
		return "combinatorial"
	case ModeBinarizedDot:
		return "binarized_dot"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

type Options struct {
	Mode     Mode
	Weighted bool
	KeepDiag bool
}

func (o Options) Policy() sparse.Policy {
	return sparse.Policy{Weighted: o.Weighted, KeepDiag: o.KeepDiag}
}

// Pairs enumerates the unordered 2-combinations of indices. With weighted
// set the list is treated as a multiset: repeated items pair with every
// other position, including themselves. Otherwise the distinct items are
// paired, giving C(n, 2) pairs for n distinct items.
func Pairs(indices []int, weighted bool) [][2]int {
	list := indices
	if !weighted {
		list = slices.Clone(indices)
		slices.Sort(list)
		list = slices.Compact(list)
	}
	if len(list) < 2 {
		return nil
	}
	pairs := make([][2]int, 0, len(list)*(len(list)-1)/2)
	for a := 0; a < len(list); a++ {
		for b := a + 1; b < len(list); b++ {
			pairs = append(pairs, [2]int{list[a], list[b]})
		}
	}
	return pairs
}

// Build counts co-occurrences for papers indexed by u. Items unknown to the
// universe were dropped by the indexer and are skipped here as well.
func Build(papers []corpus.Paper, u *universe.Universe, opts Options) (*sparse.Matrix, error) {
	lists := make([][]int, 0, len(papers))
	var unknown int
	for _, p := range papers {
		indices, missing := u.Indices(p.Names())
		unknown += len(missing)
		lists = append(lists, indices)
	}
	if unknown > 0 {
		log.Debug().Int("unknown", unknown).Str("variable", u.Version.Variable).Msg("skipped items outside universe")
	}
	return BuildIndexed(lists, u.Len(), u.Fingerprint, opts)
}

// BuildIndexed counts co-occurrences for papers already mapped to indices.
func BuildIndexed(lists [][]int, n int, fingerprint uint64, opts Options) (*sparse.Matrix, error) {
	acc := sparse.NewAccumulator(n)

	for _, indices := range lists {
		switch opts.Mode {
		case ModeBinarizedDot:
			set := slices.Clone(indices)
			slices.Sort(set)
			set = slices.Compact(set)
			for a := range set {
				for b := a; b < len(set); b++ {
					if err := acc.Add(set[a], set[b], 1); err != nil {
						return nil, err
					}
				}
			}
		case ModeCombinatorial:
			for _, pair := range Pairs(indices, opts.Weighted) {
				if err := acc.Add(pair[0], pair[1], 1); err != nil {
					return nil, err
				}
			}
		default:
			return nil, fmt.Errorf("unknown co-occurrence mode %s", opts.Mode)
		}
	}

	return acc.Matrix(opts.Policy(), fingerprint), nil
}

// BuildWindow builds a single matrix over every paper published in
// [from, to]. An empty window yields an empty matrix.
func BuildWindow(papers []corpus.Paper, u *universe.Universe, from, to int, opts Options) (*sparse.Matrix, error) {
	window := make([]corpus.Paper, 0, len(papers))
	for _, p := range papers {
		if p.Year >= from && p.Year <= to {
			window = append(window, p)
		}
	}
	return Build(window, u, opts)
}
