package sort

import (
	"fmt"
	stdsort "sort"

	"github.com/nathantp/colsort/pkg/data"
	"gonum.org/v1/gonum/floats"
)

// Reference result for orig: a copy with each column stably sorted by the
// library sort under the same ordering SortColumn uses.
func ReferenceSort(orig *data.Matrix) *data.Matrix {
	ref := orig.Clone()
	for j := 0; j < ref.Cols; j++ {
		col := ref.Col(j)
		stdsort.SliceStable(col, func(a, b int) bool { return greater(col[b], col[a]) })
	}
	return ref
}

// Check that new holds exactly the columns of orig, each sorted
func CheckSort(orig *data.Matrix, new *data.Matrix) error {
	if orig.Rows != new.Rows || orig.Cols != new.Cols {
		return fmt.Errorf("Shapes do not match: Expected %vx%v, Got %vx%v", orig.Rows, orig.Cols, new.Rows, new.Cols)
	}

	ref := ReferenceSort(orig)
	for j := 0; j < ref.Cols; j++ {
		if floats.Same(ref.Col(j), new.Col(j)) {
			continue
		}
		for i := 0; i < ref.Rows; i++ {
			if !floats.Same(ref.Col(j)[i:i+1], new.Col(j)[i:i+1]) {
				return fmt.Errorf("Response doesn't match reference at (%v, %v): Expected %v, Got %v", i, j, ref.At(i, j), new.At(i, j))
			}
		}
	}
	return nil
}
