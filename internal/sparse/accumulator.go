package sparse

import (
	"errors"
	"slices"
)

var (
	ErrShapeMismatch = errors.New("matrices do not share a universe")
	ErrOutOfRange    = errors.New("coordinate out of range")
)

// Accumulator collects cell increments in arbitrary order and produces a
// canonical Matrix. It is not safe for concurrent use.
type Accumulator struct {
	n     int
	cells map[Coord]float64
}

func NewAccumulator(n int) *Accumulator {
	return &Accumulator{n: n, cells: make(map[Coord]float64)}
}

// Add increments cell (i, j) by v. The pair is stored once regardless of
// argument order.
func (a *Accumulator) Add(i, j int, v float64) error {
	if i < 0 || j < 0 || i >= a.n || j >= a.n {
		return ErrOutOfRange
	}
	a.cells[Canonical(i, j)] += v
	return nil
}

// Len returns the number of distinct cells touched so far.
func (a *Accumulator) Len() int {
	return len(a.cells)
}

// Matrix canonicalizes the accumulated cells. The diagonal is dropped unless
// the policy keeps it and explicit zeros are eliminated. The output order
// does not depend on map iteration order.
func (a *Accumulator) Matrix(policy Policy, fingerprint uint64) *Matrix {
	coords := make([]Coord, 0, len(a.cells))
	for c, v := range a.cells {
		if v == 0 || (!policy.KeepDiag && c.I == c.J) {
			continue
		}
		coords = append(coords, c)
	}
	slices.SortFunc(coords, compareCoord)

	values := make([]float64, len(coords))
	for k, c := range coords {
		values[k] = a.cells[c]
	}
	return &Matrix{
		N:           a.n,
		Policy:      policy,
		Fingerprint: fingerprint,
		Coords:      coords,
		Values:      values,
	}
}

// FromSorted wraps coordinates that are already canonical, sorted and
// duplicate-free. Zero values are dropped.
func FromSorted(n int, policy Policy, fingerprint uint64, coords []Coord, values []float64) *Matrix {
	m := &Matrix{N: n, Policy: policy, Fingerprint: fingerprint,
		Coords: make([]Coord, 0, len(coords)), Values: make([]float64, 0, len(values))}
	for k, c := range coords {
		if values[k] == 0 {
			continue
		}
		m.Coords = append(m.Coords, c)
		m.Values = append(m.Values, values[k])
	}
	return m
}
