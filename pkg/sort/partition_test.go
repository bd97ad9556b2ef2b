package sort

import (
	"testing"

	"github.com/nathantp/colsort/pkg/data"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestPlan(t *testing.T) {
	cases := []struct {
		ncol    int
		nworker int
		expect  []int
	}{
		{4, 3, []int{2, 1, 1}},
		{10, 3, []int{4, 3, 3}},
		{9, 3, []int{3, 3, 3}},
		{2, 4, []int{1, 1, 0, 0}},
		{0, 2, []int{0, 0}},
		{7, 1, []int{7}},
	}

	for _, c := range cases {
		sizes, err := Plan(c.ncol, c.nworker)
		require.Nilf(t, err, "Plan(%v, %v) failed", c.ncol, c.nworker)
		require.Equalf(t, c.expect, sizes, "Plan(%v, %v)", c.ncol, c.nworker)
	}

	t.Run("Properties", func(t *testing.T) {
		for nworker := 1; nworker < 9; nworker++ {
			for ncol := 0; ncol < 40; ncol++ {
				sizes, err := Plan(ncol, nworker)
				require.Nil(t, err)
				require.Equal(t, nworker, len(sizes))

				sum := 0
				for i, sz := range sizes {
					sum += sz
					require.Truef(t, sz == ncol/nworker || sz == ncol/nworker+1,
						"Worker %v got %v columns (%v/%v)", i, sz, ncol, nworker)
					if i > 0 {
						require.LessOrEqualf(t, sz, sizes[i-1], "Later worker got more columns (%v/%v)", ncol, nworker)
					}
				}
				require.Equal(t, ncol, sum, "Columns lost or duplicated")
			}
		}
	})

	t.Run("InvalidTopology", func(t *testing.T) {
		_, err := Plan(4, 0)
		require.True(t, errors.Is(err, data.ErrInvalidTopology))

		_, err = Plan(-1, 2)
		require.True(t, errors.Is(err, data.ErrInvalidTopology))
	})
}

func TestAssign(t *testing.T) {
	refs, err := Assign(4, 3)
	require.Nil(t, err)
	require.Equal(t, []data.BlockRef{
		{Worker: 1, Offset: 0, Count: 2},
		{Worker: 2, Offset: 2, Count: 1},
		{Worker: 3, Offset: 3, Count: 1},
	}, refs)

	refs, err = Assign(1, 3)
	require.Nil(t, err)
	require.Equal(t, data.BlockRef{Worker: 3, Offset: 1, Count: 0}, refs[2], "Idle worker should start after the last column")

	_, err = Assign(3, 0)
	require.True(t, errors.Is(err, data.ErrInvalidTopology))
}
