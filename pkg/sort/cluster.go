package sort

import (
	"context"

	"github.com/nathantp/colsort/pkg/comm"
	"github.com/nathantp/colsort/pkg/data"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

type ClusterOptions struct {
	Options

	// Maximum number of workers sorting at the same time. 0 means no limit.
	Parallelism int
}

// Run a whole sort inside this process: comms[0] coordinates and every other
// comm gets a worker goroutine. The first failure cancels the others and is
// the error returned.
func RunCluster(ctx context.Context, comms []comm.Comm, in *data.Matrix, opts ClusterOptions) (*data.Matrix, error) {
	if len(comms) == 0 {
		return nil, errors.Wrap(data.ErrInvalidTopology, "No participants")
	}

	wopts := opts.Options
	if opts.Parallelism > 0 && wopts.Slots == nil {
		wopts.Slots = semaphore.NewWeighted(int64(opts.Parallelism))
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range comms[1:] {
		w := NewWorker(c, wopts)
		g.Go(func() error {
			return w.Run(gctx)
		})
	}

	var out *data.Matrix
	coord := NewCoordinator(comms[0], wopts)
	g.Go(func() error {
		var err error
		out, err = coord.Sort(gctx, in)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Sort in across nworker in-process workers connected by channels
func SortLocal(ctx context.Context, in *data.Matrix, nworker int, opts ClusterOptions) (*data.Matrix, error) {
	world, err := comm.NewMemWorld(nworker + 1)
	if err != nil {
		return nil, err
	}

	comms := make([]comm.Comm, len(world))
	for i, c := range world {
		comms[i] = c
		defer c.Close()
	}

	return RunCluster(ctx, comms, in, opts)
}
