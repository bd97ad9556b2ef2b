package sort

import (
	"github.com/nathantp/colsort/pkg/data"
	"github.com/pkg/errors"
)

// Split ncol columns across nworker workers. Every worker gets ncol/nworker
// columns and the first ncol%nworker workers get one extra, so the sizes
// differ by at most one and earlier workers absorb the remainder. Some
// workers get 0 columns when ncol < nworker.
func Plan(ncol int, nworker int) ([]int, error) {
	if nworker < 1 {
		return nil, errors.Wrapf(data.ErrInvalidTopology, "Can't partition %v columns across %v workers", ncol, nworker)
	}
	if ncol < 0 {
		return nil, errors.Wrapf(data.ErrInvalidTopology, "Negative column count %v", ncol)
	}

	base := ncol / nworker
	extra := ncol % nworker

	sizes := make([]int, nworker)
	for i := range sizes {
		sizes[i] = base
		if i < extra {
			sizes[i]++
		}
	}
	return sizes, nil
}

// Like Plan but returns the block assignment for each worker. Worker ranks
// start at 1 (rank 0 is the coordinator) and offsets are contiguous.
func Assign(ncol int, nworker int) ([]data.BlockRef, error) {
	sizes, err := Plan(ncol, nworker)
	if err != nil {
		return nil, err
	}

	refs := make([]data.BlockRef, nworker)
	offset := 0
	for i, sz := range sizes {
		refs[i] = data.BlockRef{Worker: i + 1, Offset: offset, Count: sz}
		offset += sz
	}
	return refs, nil
}
