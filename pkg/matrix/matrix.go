// Package matrix provides the integer matrix type, the pair exchanged between pipeline stages, and multiplication
package matrix

import (
	"errors"
	"fmt"
)

var (
	// ErrDimensionMismatch indicates a pair whose shapes cannot be multiplied
	ErrDimensionMismatch = errors.New("matrix dimension mismatch")

	// ErrEmptyMatrix indicates a matrix with no rows or no columns
	ErrEmptyMatrix = errors.New("matrix is empty")

	// ErrRaggedMatrix indicates rows of differing length
	ErrRaggedMatrix = errors.New("matrix rows have differing lengths")
)

// Matrix is a row-major integer matrix. Values are treated as immutable once built.
type Matrix [][]int64

// New builds a zero-valued rows x cols matrix
func New(rows, cols int) Matrix {
	m := make(Matrix, rows)
	for i := range m {
		m[i] = make([]int64, cols)
	}
	return m
}

// Rows returns the number of rows
func (m Matrix) Rows() int {
	return len(m)
}

// Cols returns the number of columns, taken from the first row
func (m Matrix) Cols() int {
	if len(m) == 0 {
		return 0
	}
	return len(m[0])
}

// IsSquare reports whether the matrix is N x N with N > 0
func (m Matrix) IsSquare() bool {
	return m.Rows() > 0 && m.Rows() == m.Cols()
}

// Validate checks the matrix is non-empty and rectangular
func (m Matrix) Validate() error {
	if m.Rows() == 0 || m.Cols() == 0 {
		return ErrEmptyMatrix
	}
	cols := m.Cols()
	for i, row := range m {
		if len(row) != cols {
			return fmt.Errorf("%w: row %d has %d entries, want %d", ErrRaggedMatrix, i, len(row), cols)
		}
	}
	return nil
}

// Clone returns a deep copy
func (m Matrix) Clone() Matrix {
	out := make(Matrix, len(m))
	for i, row := range m {
		out[i] = append([]int64(nil), row...)
	}
	return out
}

// Equal reports whether both matrices have the same shape and entries
func (m Matrix) Equal(other Matrix) bool {
	if len(m) != len(other) {
		return false
	}
	for i := range m {
		if len(m[i]) != len(other[i]) {
			return false
		}
		for j := range m[i] {
			if m[i][j] != other[i][j] {
				return false
			}
		}
	}
	return true
}

// Shape returns "RxC" for log output
func (m Matrix) Shape() string {
	return fmt.Sprintf("%dx%d", m.Rows(), m.Cols())
}

// Pair is the unit of work handed from the producer to the consumer
type Pair struct {
	// ID correlates log lines for one pair
	ID string
	A  Matrix
	B  Matrix
}

// Compatible reports whether A's column count equals B's row count
func (p Pair) Compatible() bool {
	return p.A.Cols() == p.B.Rows()
}

// CheckCompatible returns ErrDimensionMismatch when the pair cannot be multiplied
func (p Pair) CheckCompatible() error {
	if !p.Compatible() {
		return fmt.Errorf("%w: %s x %s", ErrDimensionMismatch, p.A.Shape(), p.B.Shape())
	}
	return nil
}
