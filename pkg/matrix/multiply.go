package matrix

// Multiply returns a x b. The caller guarantees a.Cols() == b.Rows();
// use Pair.CheckCompatible or MultiplyPair when that is not already known.
func Multiply(a, b Matrix) Matrix {
	rows, cols, inner := a.Rows(), b.Cols(), b.Rows()
	out := New(rows, cols)
	for i := 0; i < rows; i++ {
		ai := a[i]
		oi := out[i]
		for j := 0; j < cols; j++ {
			var sum int64
			for k := 0; k < inner; k++ {
				sum += ai[k] * b[k][j]
			}
			oi[j] = sum
		}
	}
	return out
}

// MultiplyPair checks the pair's shapes and multiplies it
func MultiplyPair(p Pair) (Matrix, error) {
	if err := p.CheckCompatible(); err != nil {
		return nil, err
	}
	return Multiply(p.A, p.B), nil
}
