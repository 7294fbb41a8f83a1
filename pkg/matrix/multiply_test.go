package matrix

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestMultiply_KnownProduct(t *testing.T) {
	a := Matrix{{1, 2}, {3, 4}}
	b := Matrix{{5, 6}, {7, 8}}

	got := Multiply(a, b)

	assert.Equal(t, Matrix{{19, 22}, {43, 50}}, got)
	// inputs are left untouched
	assert.Equal(t, Matrix{{1, 2}, {3, 4}}, a)
	assert.Equal(t, Matrix{{5, 6}, {7, 8}}, b)
}

func TestMultiply_NonSquareShapes(t *testing.T) {
	a := Matrix{{1, 2, 3}, {4, 5, 6}}      // 2x3
	b := Matrix{{7, 8}, {9, 10}, {11, 12}} // 3x2

	got := Multiply(a, b)

	require.Equal(t, 2, got.Rows())
	require.Equal(t, 2, got.Cols())
	assert.Equal(t, Matrix{{58, 64}, {139, 154}}, got)
}

func TestMultiply_Identity(t *testing.T) {
	m := NewRandomGenerator(DefaultMaxValue, 7).Generate(5)
	id := New(5, 5)
	for i := range id {
		id[i][i] = 1
	}

	assert.Equal(t, m, Multiply(m, id))
	assert.Equal(t, m, Multiply(id, m))
}

// The entry formula is checked against gonum's dense product, which is exact
// for the small integer ranges used here.
func TestMultiply_MatchesDenseProduct(t *testing.T) {
	gen := NewRandomGenerator(50, 42)

	shapes := []struct{ rows, inner, cols int }{
		{1, 1, 1},
		{2, 2, 2},
		{3, 5, 2},
		{4, 1, 6},
		{8, 8, 8},
	}

	for _, s := range shapes {
		a := randomRect(gen, s.rows, s.inner)
		b := randomRect(gen, s.inner, s.cols)

		got := Multiply(a, b)

		var want mat.Dense
		want.Mul(toDense(a), toDense(b))

		require.Equal(t, s.rows, got.Rows())
		require.Equal(t, s.cols, got.Cols())
		for i := 0; i < s.rows; i++ {
			for j := 0; j < s.cols; j++ {
				assert.Equal(t, int64(want.At(i, j)), got[i][j], "entry [%d][%d] of %dx%d*%dx%d", i, j, s.rows, s.inner, s.inner, s.cols)
			}
		}
	}
}

func TestMultiplyPair(t *testing.T) {
	got, err := MultiplyPair(Pair{A: Matrix{{2}}, B: Matrix{{3}}})
	require.NoError(t, err)
	assert.Equal(t, Matrix{{6}}, got)

	_, err = MultiplyPair(Pair{A: New(2, 3), B: New(2, 2)})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func BenchmarkMultiply(b *testing.B) {
	gen := NewRandomGenerator(DefaultMaxValue, 1)
	x, y := gen.Generate(64), gen.Generate(64)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Multiply(x, y)
	}
}

func randomRect(gen *RandomGenerator, rows, cols int) Matrix {
	n := rows
	if cols > n {
		n = cols
	}
	sq := gen.Generate(n)
	out := New(rows, cols)
	for i := range out {
		copy(out[i], sq[i][:cols])
	}
	return out
}

func toDense(m Matrix) *mat.Dense {
	data := make([]float64, 0, m.Rows()*m.Cols())
	for _, row := range m {
		for _, v := range row {
			data = append(data, float64(v))
		}
	}
	return mat.NewDense(m.Rows(), m.Cols(), data)
}
