// Package nullmodel estimates per-pair co-occurrence mean and standard
// deviation under a randomized null that keeps every item year's frequency
// distribution but destroys the paper-to-item assignment.
package nullmodel

import (
	"math/rand/v2"
	"slices"

	"github.com/tensorplex-labs/novelty/internal/corpus"
	"github.com/tensorplex-labs/novelty/internal/universe"
)

// Row is one (paper, item) occurrence. Paper is the paper's position in the
// slice passed to Flatten.
type Row struct {
	Paper int
	Name  string
	Year  int
}

// Flatten lists every item occurrence that carries a creation year. Items
// without a year cannot be resampled and are dropped.
func Flatten(papers []corpus.Paper) []Row {
	rows := make([]Row, 0, len(papers)*8)
	for p, paper := range papers {
		for _, it := range paper.Items {
			if it.Name == "" || it.Year == nil {
				continue
			}
			rows = append(rows, Row{Paper: p, Name: it.Name, Year: *it.Year})
		}
	}
	return rows
}

// DatedPapers returns copies of papers keeping only the item occurrences
// Flatten keeps, so observed counts and the ensemble share their marginals.
func DatedPapers(papers []corpus.Paper) []corpus.Paper {
	out := make([]corpus.Paper, len(papers))
	for p, paper := range papers {
		items := make([]corpus.Item, 0, len(paper.Items))
		for _, it := range paper.Items {
			if it.Name != "" && it.Year != nil {
				items = append(items, it)
			}
		}
		paper.Items = items
		out[p] = paper
	}
	return out
}

// Shuffle permutes the item names among rows sharing the same item year,
// leaving each row's paper and year in place. The input is not modified.
func Shuffle(rows []Row, rng *rand.Rand) []Row {
	out := slices.Clone(rows)

	byYear := make(map[int][]int)
	for i, r := range out {
		byYear[r.Year] = append(byYear[r.Year], i)
	}
	years := make([]int, 0, len(byYear))
	for y := range byYear {
		years = append(years, y)
	}
	slices.Sort(years)

	for _, y := range years {
		positions := byYear[y]
		names := make([]string, len(positions))
		for k, pos := range positions {
			names[k] = out[pos].Name
		}
		rng.Shuffle(len(names), func(i, j int) { names[i], names[j] = names[j], names[i] })
		for k, pos := range positions {
			out[pos].Name = names[k]
		}
	}
	return out
}

// Reassemble groups rows back into per-paper index lists for n papers.
func Reassemble(rows []Row, n int, u *universe.Universe) [][]int {
	lists := make([][]int, n)
	for _, r := range rows {
		if i, ok := u.Index(r.Name); ok {
			lists[r.Paper] = append(lists[r.Paper], i)
		}
	}
	return lists
}

// sampleRNG derives a reproducible generator for one ensemble member.
func sampleRNG(seed uint64, focalYear, sample int) *rand.Rand {
	return rand.New(rand.NewPCG(seed, uint64(focalYear)<<32|uint64(sample)))
}
