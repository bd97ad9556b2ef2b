package data

import (
	"fmt"

	"github.com/pkg/errors"
)

// A dense matrix of float64 stored column-major: column j occupies
// Vals[j*Rows : (j+1)*Rows].
type Matrix struct {
	Rows int
	Cols int
	Vals []float64
}

// Allocate a zeroed rows x cols matrix
func NewMatrix(rows, cols int) (*Matrix, error) {
	if rows < 0 || cols < 0 {
		return nil, errors.Wrapf(ErrAllocationFailure, "Invalid matrix shape %vx%v", rows, cols)
	}
	if cols != 0 && rows > MaxMatrixValues/cols {
		return nil, errors.Wrapf(ErrAllocationFailure, "Matrix %vx%v is too large", rows, cols)
	}

	return &Matrix{Rows: rows, Cols: cols, Vals: make([]float64, rows*cols)}, nil
}

// Build a matrix from row-major nested slices (the way a CSV file lists it).
// All rows must have the same length.
func MatrixFromRows(rows [][]float64) (*Matrix, error) {
	nrow := len(rows)
	ncol := 0
	if nrow > 0 {
		ncol = len(rows[0])
	}

	m, err := NewMatrix(nrow, ncol)
	if err != nil {
		return nil, err
	}

	for i, row := range rows {
		if len(row) != ncol {
			return nil, fmt.Errorf("Row %v has %v columns, expected %v", i, len(row), ncol)
		}
		for j, v := range row {
			m.Vals[j*nrow+i] = v
		}
	}
	return m, nil
}

// Build a matrix from column-major nested slices. All columns must have the
// same length.
func MatrixFromCols(cols [][]float64) (*Matrix, error) {
	ncol := len(cols)
	nrow := 0
	if ncol > 0 {
		nrow = len(cols[0])
	}

	m, err := NewMatrix(nrow, ncol)
	if err != nil {
		return nil, err
	}

	for j, col := range cols {
		if len(col) != nrow {
			return nil, fmt.Errorf("Column %v has %v rows, expected %v", j, len(col), nrow)
		}
		copy(m.Col(j), col)
	}
	return m, nil
}

// Column j as a slice aliasing the matrix storage
func (self *Matrix) Col(j int) []float64 {
	return self.Vals[j*self.Rows : (j+1)*self.Rows]
}

func (self *Matrix) At(i, j int) float64 {
	return self.Vals[j*self.Rows+i]
}

func (self *Matrix) Set(i, j int, v float64) {
	self.Vals[j*self.Rows+i] = v
}

// Deep copy
func (self *Matrix) Clone() *Matrix {
	vals := make([]float64, len(self.Vals))
	copy(vals, self.Vals)
	return &Matrix{Rows: self.Rows, Cols: self.Cols, Vals: vals}
}

// Shape descriptor sent ahead of every block payload
type Header struct {
	Rows int // Rows in every column of the block
	Cols int // Number of columns assigned to the receiver
}

func (self Header) Len() int {
	return self.Rows * self.Cols
}

// A contiguous range of columns assigned to one worker. A list of BlockRefs
// ordered by Worker covers [0, Cols) of the matrix exactly.
type BlockRef struct {
	Worker int // Rank of the worker that owns the block
	Offset int // First column of the block
	Count  int // Number of columns in the block (may be 0)
}

// Column-major values of the block inside m. The returned slice aliases m.
func (self BlockRef) Slice(m *Matrix) []float64 {
	return m.Vals[self.Offset*m.Rows : (self.Offset+self.Count)*m.Rows]
}

// Loads a full matrix from some source (file, memory, ...)
type Loader interface {
	Load() (*Matrix, error)
}

// Persists a full matrix to some destination
type Writer interface {
	Write(m *Matrix) error
}
