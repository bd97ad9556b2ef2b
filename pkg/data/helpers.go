package data

import (
	"math"
	"math/rand"

	"github.com/pkg/errors"
)

// Copy the columns described by ref out of m into a freshly acquired block
func FetchBlock(m *Matrix, ref BlockRef) (*Block, error) {
	if ref.Offset < 0 || ref.Count < 0 || ref.Offset+ref.Count > m.Cols {
		return nil, errors.Errorf("Block [%v, %v) out of range for %v columns", ref.Offset, ref.Offset+ref.Count, m.Cols)
	}

	blk, err := AllocBlock(Header{Rows: m.Rows, Cols: ref.Count})
	if err != nil {
		return nil, err
	}
	copy(blk.Vals, ref.Slice(m))
	return blk, nil
}

// Write blk back into m at the columns described by ref. The block shape must
// match the reference exactly.
func StoreBlock(m *Matrix, ref BlockRef, blk *Block) error {
	if blk.Rows != m.Rows || blk.Cols != ref.Count {
		return errors.Errorf("Block shape %vx%v does not match reference %vx%v",
			blk.Rows, blk.Cols, m.Rows, ref.Count)
	}
	if ref.Offset < 0 || ref.Offset+ref.Count > m.Cols {
		return errors.Errorf("Block [%v, %v) out of range for %v columns", ref.Offset, ref.Offset+ref.Count, m.Cols)
	}

	copy(ref.Slice(m), blk.Vals)
	return nil
}

// Random rows x cols matrix with values uniform in [0, 100], rounded to two
// decimals so the matrix survives a CSV round-trip unchanged.
func RandomMatrix(rows, cols int, rng *rand.Rand) (*Matrix, error) {
	m, err := NewMatrix(rows, cols)
	if err != nil {
		return nil, err
	}

	for i := range m.Vals {
		m.Vals[i] = math.Round(rng.Float64()*100.0*100.0) / 100.0
	}
	return m, nil
}
