// Package sparse implements the symmetric sparse matrix used for co-occurrence
// counts, null-model statistics and score matrices.
//
// A Matrix stores only its upper triangle: coordinates are kept sorted in
// row-major order with I <= J and explicit zeros are never stored. Reads are
// symmetric, so At(i, j) == At(j, i).
package sparse

import (
	"cmp"
	"slices"
)

// Coord is a canonical (I <= J) matrix coordinate.
type Coord struct {
	I, J int32
}

// Canonical returns the coordinate with I <= J.
func Canonical(i, j int) Coord {
	if i > j {
		i, j = j, i
	}
	return Coord{I: int32(i), J: int32(j)}
}

func compareCoord(a, b Coord) int {
	if c := cmp.Compare(a.I, b.I); c != 0 {
		return c
	}
	return cmp.Compare(a.J, b.J)
}

// Policy is the declared pairing policy a matrix was built with.
type Policy struct {
	Weighted bool // pairs were enumerated over the full multiset of items
	KeepDiag bool // self-pairs are retained on the diagonal
}

// Matrix is an immutable symmetric sparse matrix in canonical form.
type Matrix struct {
	N           int
	Policy      Policy
	Fingerprint uint64 // fingerprint of the universe the matrix is indexed by
	Coords      []Coord
	Values      []float64
}

// NNZ returns the number of stored (upper-triangle) cells.
func (m *Matrix) NNZ() int {
	return len(m.Coords)
}

func (m *Matrix) find(c Coord) (int, bool) {
	return slices.BinarySearchFunc(m.Coords, c, compareCoord)
}

// At returns the value of cell (i, j); absent cells are zero.
func (m *Matrix) At(i, j int) float64 {
	if pos, ok := m.find(Canonical(i, j)); ok {
		return m.Values[pos]
	}
	return 0
}

// Lookup returns the value of cell (i, j) and whether it is stored.
func (m *Matrix) Lookup(i, j int) (float64, bool) {
	if pos, ok := m.find(Canonical(i, j)); ok {
		return m.Values[pos], true
	}
	return 0, false
}

// DiagSum returns the sum of the diagonal.
func (m *Matrix) DiagSum() float64 {
	var s float64
	for k, c := range m.Coords {
		if c.I == c.J {
			s += m.Values[k]
		}
	}
	return s
}

// UpperSum returns the sum of the strictly upper-triangular cells.
func (m *Matrix) UpperSum() float64 {
	var s float64
	for k, c := range m.Coords {
		if c.I != c.J {
			s += m.Values[k]
		}
	}
	return s
}

// Sum returns the total mass of the full symmetric matrix.
func (m *Matrix) Sum() float64 {
	return 2*m.UpperSum() + m.DiagSum()
}

// RowSums returns the marginals of the full symmetric matrix.
func (m *Matrix) RowSums() []float64 {
	sums := make([]float64, m.N)
	for k, c := range m.Coords {
		v := m.Values[k]
		sums[c.I] += v
		if c.I != c.J {
			sums[c.J] += v
		}
	}
	return sums
}

// Row is one row of the full symmetric matrix with columns in ascending order.
type Row struct {
	Cols []int32
	Vals []float64
}

// Rows expands the canonical form into per-row adjacency lists of the full
// symmetric matrix.
func (m *Matrix) Rows() []Row {
	counts := make([]int, m.N)
	for _, c := range m.Coords {
		counts[c.I]++
		if c.I != c.J {
			counts[c.J]++
		}
	}
	rows := make([]Row, m.N)
	for i, n := range counts {
		rows[i] = Row{Cols: make([]int32, 0, n), Vals: make([]float64, 0, n)}
	}
	// Canonical order visits (j, i) for j < i before (i, k) for k >= i, so
	// appending keeps each row's columns sorted.
	for k, c := range m.Coords {
		v := m.Values[k]
		if c.I != c.J {
			rows[c.J].Cols = append(rows[c.J].Cols, c.I)
			rows[c.J].Vals = append(rows[c.J].Vals, v)
		}
		rows[c.I].Cols = append(rows[c.I].Cols, c.J)
		rows[c.I].Vals = append(rows[c.I].Vals, v)
	}
	return rows
}

// Map returns a new matrix over the same coordinates with fn applied to every
// stored cell. Cells mapped to zero are eliminated.
func (m *Matrix) Map(fn func(c Coord, v float64) float64) *Matrix {
	out := &Matrix{
		N:           m.N,
		Policy:      m.Policy,
		Fingerprint: m.Fingerprint,
		Coords:      make([]Coord, 0, len(m.Coords)),
		Values:      make([]float64, 0, len(m.Values)),
	}
	for k, c := range m.Coords {
		if v := fn(c, m.Values[k]); v != 0 {
			out.Coords = append(out.Coords, c)
			out.Values = append(out.Values, v)
		}
	}
	return out
}

// Add returns the elementwise sum of two matrices sharing a universe.
func Add(a, b *Matrix) (*Matrix, error) {
	if a.N != b.N || a.Fingerprint != b.Fingerprint {
		return nil, ErrShapeMismatch
	}
	out := &Matrix{
		N:           a.N,
		Policy:      a.Policy,
		Fingerprint: a.Fingerprint,
		Coords:      make([]Coord, 0, max(len(a.Coords), len(b.Coords))),
		Values:      make([]float64, 0, max(len(a.Values), len(b.Values))),
	}
	i, j := 0, 0
	push := func(c Coord, v float64) {
		if v != 0 {
			out.Coords = append(out.Coords, c)
			out.Values = append(out.Values, v)
		}
	}
	for i < len(a.Coords) && j < len(b.Coords) {
		switch compareCoord(a.Coords[i], b.Coords[j]) {
		case -1:
			push(a.Coords[i], a.Values[i])
			i++
		case 1:
			push(b.Coords[j], b.Values[j])
			j++
		default:
			push(a.Coords[i], a.Values[i]+b.Values[j])
			i++
			j++
		}
	}
	for ; i < len(a.Coords); i++ {
		push(a.Coords[i], a.Values[i])
	}
	for ; j < len(b.Coords); j++ {
		push(b.Coords[j], b.Values[j])
	}
	return out, nil
}

// Empty returns a matrix with no stored cells.
func Empty(n int, policy Policy, fingerprint uint64) *Matrix {
	return &Matrix{N: n, Policy: policy, Fingerprint: fingerprint}
}
