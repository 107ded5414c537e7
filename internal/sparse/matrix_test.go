package sparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildMatrix(t *testing.T, keepDiag bool) *Matrix {
	t.Helper()
	acc := NewAccumulator(4)
	require.NoError(t, acc.Add(0, 2, 1))
	require.NoError(t, acc.Add(2, 0, 1))
	require.NoError(t, acc.Add(3, 1, 2))
	require.NoError(t, acc.Add(1, 1, 5))
	require.NoError(t, acc.Add(0, 3, 0))
	return acc.Matrix(Policy{KeepDiag: keepDiag}, 42)
}

func TestAccumulator_Canonical(t *testing.T) {
	m := buildMatrix(t, true)

	assert.Equal(t, []Coord{{0, 2}, {1, 1}, {1, 3}}, m.Coords)
	assert.Equal(t, []float64{2, 5, 2}, m.Values)
	assert.Equal(t, 2.0, m.At(2, 0))
	assert.Equal(t, 2.0, m.At(0, 2))
	assert.Equal(t, 0.0, m.At(0, 3))

	_, ok := m.Lookup(0, 3)
	assert.False(t, ok, "explicit zero must be eliminated")
}

func TestAccumulator_DropsDiagonal(t *testing.T) {
	m := buildMatrix(t, false)
	assert.Equal(t, []Coord{{0, 2}, {1, 3}}, m.Coords)
	assert.Equal(t, 0.0, m.DiagSum())
}

func TestAccumulator_OutOfRange(t *testing.T) {
	acc := NewAccumulator(2)
	assert.ErrorIs(t, acc.Add(0, 2, 1), ErrOutOfRange)
}

func TestMatrix_SymmetricMass(t *testing.T) {
	m := buildMatrix(t, true)

	assert.Equal(t, 4.0, m.UpperSum())
	assert.Equal(t, 5.0, m.DiagSum())
	assert.Equal(t, 2*m.UpperSum()+m.DiagSum(), m.Sum())

	var rowTotal float64
	for _, s := range m.RowSums() {
		rowTotal += s
	}
	assert.Equal(t, m.Sum(), rowTotal)
}

func TestMatrix_RowsAreSortedAndSymmetric(t *testing.T) {
	m := buildMatrix(t, true)
	rows := m.Rows()

	require.Len(t, rows, 4)
	assert.Equal(t, []int32{2}, rows[0].Cols)
	assert.Equal(t, []int32{1, 3}, rows[1].Cols)
	assert.Equal(t, []float64{5, 2}, rows[1].Vals)
	assert.Equal(t, []int32{0}, rows[2].Cols)
	assert.Equal(t, []int32{1}, rows[3].Cols)
}

func TestMatrix_MapEliminatesZeros(t *testing.T) {
	m := buildMatrix(t, true)
	out := m.Map(func(c Coord, v float64) float64 {
		if c.I == c.J {
			return 0
		}
		return v * 10
	})
	assert.Equal(t, []Coord{{0, 2}, {1, 3}}, out.Coords)
	assert.Equal(t, []float64{20, 20}, out.Values)
}

func TestAdd(t *testing.T) {
	a := buildMatrix(t, true)
	acc := NewAccumulator(4)
	require.NoError(t, acc.Add(0, 2, -2))
	require.NoError(t, acc.Add(2, 3, 1))
	b := acc.Matrix(Policy{KeepDiag: true}, 42)

	sum, err := Add(a, b)
	require.NoError(t, err)
	assert.Equal(t, []Coord{{1, 1}, {1, 3}, {2, 3}}, sum.Coords)
	assert.Equal(t, []float64{5, 2, 1}, sum.Values)

	b.Fingerprint = 7
	_, err = Add(a, b)
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestCodec_RoundTripAndDeterminism(t *testing.T) {
	m := buildMatrix(t, true)
	m.Policy.Weighted = true

	first, err := m.MarshalBinary()
	require.NoError(t, err)
	second, err := buildMatrixWeighted(t).MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, first, second)

	var decoded Matrix
	require.NoError(t, decoded.UnmarshalBinary(first))
	assert.Equal(t, m, &decoded)
}

func buildMatrixWeighted(t *testing.T) *Matrix {
	m := buildMatrix(t, true)
	m.Policy.Weighted = true
	return m
}

func TestCodec_DetectsCorruption(t *testing.T) {
	m := buildMatrix(t, true)
	data, err := m.MarshalBinary()
	require.NoError(t, err)

	raw, err := Decompress(data)
	require.NoError(t, err)
	raw[headerSize+2] ^= 0xff

	var decoded Matrix
	assert.ErrorIs(t, decoded.UnmarshalBinary(Compress(raw)), ErrCorrupt)
	assert.ErrorIs(t, decoded.UnmarshalBinary([]byte("garbage")), ErrCorrupt)
}
