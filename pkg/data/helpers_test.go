package data

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFetchStoreBlock(t *testing.T) {
	rows := 7
	cols := 5
	m, err := RandomMatrix(rows, cols, rand.New(rand.NewSource(1)))
	require.Nil(t, err, "Failed to generate matrix")

	out, err := NewMatrix(rows, cols)
	require.Nil(t, err)

	refs := []BlockRef{
		{Worker: 1, Offset: 0, Count: 2},
		{Worker: 2, Offset: 2, Count: 3},
		{Worker: 3, Offset: 5, Count: 0},
	}

	for _, ref := range refs {
		blk, err := FetchBlock(m, ref)
		require.Nilf(t, err, "Failed to fetch block for worker %v", ref.Worker)
		require.Equal(t, Header{Rows: rows, Cols: ref.Count}, blk.Header)

		for j := 0; j < ref.Count; j++ {
			require.Equal(t, m.Col(ref.Offset+j), blk.Col(j), "Fetched wrong column %v", ref.Offset+j)
		}

		err = StoreBlock(out, ref, blk)
		require.Nilf(t, err, "Failed to store block for worker %v", ref.Worker)
		blk.Release()
	}
	require.Equal(t, m.Vals, out.Vals, "Round trip through blocks changed the matrix")

	t.Run("OutOfRange", func(t *testing.T) {
		_, err := FetchBlock(m, BlockRef{Worker: 1, Offset: 4, Count: 2})
		require.NotNil(t, err, "Fetched past the last column")
	})

	t.Run("ShapeMismatch", func(t *testing.T) {
		blk, err := AllocBlock(Header{Rows: rows, Cols: 1})
		require.Nil(t, err)
		err = StoreBlock(out, BlockRef{Worker: 1, Offset: 0, Count: 2}, blk)
		require.NotNil(t, err, "Stored a block with the wrong column count")
	})
}

func TestRandomMatrix(t *testing.T) {
	m, err := RandomMatrix(16, 16, rand.New(rand.NewSource(2)))
	require.Nil(t, err)

	for i, v := range m.Vals {
		require.GreaterOrEqual(t, v, 0.0, "Value %v out of range", i)
		require.LessOrEqual(t, v, 100.0, "Value %v out of range", i)
	}

	again, err := RandomMatrix(16, 16, rand.New(rand.NewSource(2)))
	require.Nil(t, err)
	require.Equal(t, m, again, "Same seed produced different matrices")
}
