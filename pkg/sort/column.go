package sort

import (
	"math"

	"github.com/nathantp/colsort/pkg/data"
)

// Strict ordering used by the column sort. NaN is greater than every other
// value (including +Inf) and equal to other NaNs, so NaNs gather at the end
// of a column in their original order. -0 and +0 are equal.
func greater(a, b float64) bool {
	if math.IsNaN(a) {
		return !math.IsNaN(b)
	}
	if math.IsNaN(b) {
		return false
	}
	return a > b
}

// Sort col in place into non-decreasing order with adjacent compare-and-swap
// passes. Equal elements are never swapped, so the sort is stable. A pass
// without swaps ends the sort early; an already sorted column costs one pass.
func SortColumn(col []float64) {
	n := len(col)
	for i := 0; i < n-1; i++ {
		swapped := false
		for j := 0; j < n-i-1; j++ {
			if greater(col[j], col[j+1]) {
				col[j], col[j+1] = col[j+1], col[j]
				swapped = true
			}
		}
		if !swapped {
			return
		}
	}
}

// Sort every column of blk independently
func SortBlock(blk *data.Block) {
	for j := 0; j < blk.Cols; j++ {
		SortColumn(blk.Col(j))
	}
}
