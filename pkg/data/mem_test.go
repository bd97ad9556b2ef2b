package data

import (
	"math/rand"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestMatrixLayout(t *testing.T) {
	m, err := MatrixFromRows([][]float64{
		{5, 2, 9, 1},
		{1, 2, 0, 1},
		{3, 2, 4, 1},
	})
	require.Nil(t, err, "Failed to build matrix")
	require.Equal(t, 3, m.Rows)
	require.Equal(t, 4, m.Cols)

	// Column-major storage
	require.Equal(t, []float64{5, 1, 3}, m.Col(0))
	require.Equal(t, []float64{1, 1, 1}, m.Col(3))
	require.Equal(t, 9.0, m.At(0, 2))

	m.Set(2, 2, 7)
	require.Equal(t, 7.0, m.Col(2)[2], "Set didn't write column-major")

	cols, err := MatrixFromCols([][]float64{{5, 1, 3}, {2, 2, 2}, {9, 0, 7}, {1, 1, 1}})
	require.Nil(t, err)
	require.Equal(t, m, cols, "Row and column constructors disagree")

	_, err = MatrixFromRows([][]float64{{1, 2}, {3}})
	require.NotNil(t, err, "Ragged rows not detected")

	_, err = NewMatrix(-1, 2)
	require.True(t, errors.Is(err, ErrAllocationFailure), "Negative shape should be an allocation failure")
}

func TestBlockPool(t *testing.T) {
	blk, err := AllocBlock(Header{Rows: 4, Cols: 3})
	require.Nil(t, err, "Failed to allocate block")
	require.Equal(t, 12, len(blk.Vals))
	for i := range blk.Vals {
		blk.Vals[i] = (float64)(i)
	}
	require.Equal(t, []float64{4, 5, 6, 7}, blk.Col(1))
	blk.Release()
	require.Nil(t, blk.Vals, "Released block still holds its buffer")

	// Recycled buffers must be resized for the new header
	blk, err = AllocBlock(Header{Rows: 2, Cols: 1})
	require.Nil(t, err)
	require.Equal(t, 2, len(blk.Vals))
	blk.Release()

	empty, err := AllocBlock(Header{Rows: 5, Cols: 0})
	require.Nil(t, err, "Zero-column blocks are valid")
	require.Zero(t, len(empty.Vals))
	empty.Release()

	t.Run("Invalid", func(t *testing.T) {
		_, err := AllocBlock(Header{Rows: -1, Cols: 2})
		require.True(t, errors.Is(err, ErrAllocationFailure))

		_, err = AllocBlock(Header{Rows: MaxBlockValues, Cols: 2})
		require.True(t, errors.Is(err, ErrAllocationFailure), "Oversized block not rejected")

		_, err = NewBlock(Header{Rows: 2, Cols: 2}, []float64{1})
		require.True(t, errors.Is(err, ErrAllocationFailure), "Short payload not rejected")
	})
}

func TestMemStore(t *testing.T) {
	rng := rand.New(rand.NewSource(0))
	m, err := RandomMatrix(5, 3, rng)
	require.Nil(t, err)

	store := NewMemStore(m)
	loaded, err := store.Load()
	require.Nil(t, err, "Failed to load from MemStore")
	require.Equal(t, m, loaded)

	// Loads are copies
	loaded.Vals[0] = -1
	require.NotEqual(t, -1.0, store.Matrix().Vals[0], "Load returned shared storage")

	err = store.Write(loaded)
	require.Nil(t, err)
	require.Equal(t, -1.0, store.Matrix().Vals[0])

	_, err = NewMemStore(nil).Load()
	require.True(t, errors.Is(err, ErrSourceUnreadable), "Empty store should be unreadable")

	err = store.Write(nil)
	require.True(t, errors.Is(err, ErrDestinationUnwritable))
}
