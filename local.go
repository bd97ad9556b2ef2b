package main

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/nathantp/colsort/pkg/comm"
	"github.com/nathantp/colsort/pkg/config"
	"github.com/nathantp/colsort/pkg/data"
	"github.com/nathantp/colsort/pkg/sort"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Write a random rows x cols matrix to path
func generateInput(path string, rows, cols int, seed int64) error {
	m, err := data.RandomMatrix(rows, cols, rand.New(rand.NewSource(seed)))
	if err != nil {
		return errors.Wrapf(err, "Failed to generate %vx%v matrix", rows, cols)
	}
	return data.NewCSVFile(path).Write(m)
}

func participantOpts(cfg config.Config, log *logrus.Entry) sort.Options {
	opts := sort.Options{
		Log:    log,
		Source: data.NewCSVFile(cfg.Input),
		Dest:   data.NewCSVFile(cfg.Output),
	}
	if cfg.Parallelism > 0 {
		opts.Slots = semaphore.NewWeighted(int64(cfg.Parallelism))
	}
	return opts
}

// Generate cfg.Input, then sort it into cfg.Output with every participant
// living in this process. Timing covers load, sort and write, like a
// multi-process run would see it.
func runLocal(ctx context.Context, cfg config.Config, log *logrus.Entry, out io.Writer) error {
	if _, err := cfg.LocalTopology(); err != nil {
		return err
	}

	fmt.Fprintf(out, "Generating matrix: %dx%d -> %s\n", cfg.Rows, cfg.Cols, cfg.Input)
	if err := generateInput(cfg.Input, cfg.Rows, cfg.Cols, cfg.Seed); err != nil {
		return err
	}

	world, err := comm.NewWorld(ctx, cfg.Transport, cfg.Size, cfg.AMQP(), log)
	if err != nil {
		return errors.Wrapf(err, "Failed to set up %v transport", cfg.Transport)
	}
	defer func() {
		for _, c := range world {
			c.Close()
		}
	}()

	opts := participantOpts(cfg, log)
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range world {
		p := sort.NewParticipant(c, opts)
		g.Go(func() error {
			return p.Run(gctx)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	elapsed := time.Since(start)
	fmt.Fprintf(out, "Sorted matrix written to %s\n", cfg.Output)
	fmt.Fprintf(out, "Matrix Size: %dx%d, Total Execution Time: %.3f seconds\n", cfg.Rows, cfg.Cols, elapsed.Seconds())
	return nil
}

// Connect this process as participant cfg.Rank of a multi-process run
func dialParticipant(ctx context.Context, cfg config.Config, top config.Topology, log *logrus.Entry) (comm.Comm, error) {
	switch cfg.Transport {
	case config.TransportTCP:
		if top.IsCoordinator() {
			ln, err := comm.ListenTCP(cfg.Addr, log)
			if err != nil {
				return nil, err
			}
			log.Infof("Waiting for %v workers on %v", top.Workers(), ln.Addr())
			return ln.Accept(ctx, top.Size)
		}
		return comm.DialTCP(ctx, cfg.Addr, top.Rank, top.Size, log)
	case config.TransportAMQP:
		return comm.DialAMQP(cfg.AMQP(), top.Rank, top.Size, log)
	default:
		return nil, errors.Errorf("Transport %q can't connect separate processes, use %v or %v",
			cfg.Transport, config.TransportTCP, config.TransportAMQP)
	}
}

// Join a multi-process run as a worker. Rank 0 is refused so a worker
// process never ends up coordinating.
func runWorker(ctx context.Context, cfg config.Config, log *logrus.Entry, out io.Writer) error {
	if cfg.Rank == comm.Coordinator {
		return errors.Wrapf(data.ErrInvalidTopology, "Worker rank must be between 1 and %v, got %v", cfg.Size-1, cfg.Rank)
	}
	return runParticipant(ctx, cfg, log, out)
}

// Play one role of a multi-process run. The coordinator reports the timing
// line on out once the output is written.
func runParticipant(ctx context.Context, cfg config.Config, log *logrus.Entry, out io.Writer) error {
	top, err := cfg.Topology()
	if err != nil {
		return err
	}
	log = log.WithField("rank", top.Rank)

	c, err := dialParticipant(ctx, cfg, top, log)
	if err != nil {
		return errors.Wrap(err, "Failed to join run")
	}
	defer c.Close()

	start := time.Now()
	if err := sort.NewParticipant(c, participantOpts(cfg, log)).Run(ctx); err != nil {
		return err
	}

	if top.IsCoordinator() {
		fmt.Fprintf(out, "Sorted matrix written to %s\n", cfg.Output)
		fmt.Fprintf(out, "Total Execution Time: %.3f seconds\n", time.Since(start).Seconds())
	}
	return nil
}
