package benchmark

import (
	"context"
	"math/rand"
	"runtime"

	"github.com/nathantp/colsort/pkg/comm"
	"github.com/nathantp/colsort/pkg/data"
	"github.com/nathantp/colsort/pkg/sort"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// What to benchmark. Each transport in Transports gets Repeat timed runs
// over the same Rows x Cols input.
type Config struct {
	Rows        int
	Cols        int
	Workers     int
	Parallelism int
	Repeat      int
	Seed        int64
	Transports  []string
	AMQP        comm.AMQPConfig
	Log         *logrus.Entry
}

// One timed sort of in. Connection setup is timed separately (TSetup) from
// the sort itself (TTotal and the per-phase timers).
func BenchOne(ctx context.Context, in *data.Matrix, transport string, cfg Config, stats SortStats) error {
	if cfg.Log == nil {
		cfg.Log = logrus.NewEntry(logrus.StandardLogger())
	}
	TSetup := stats.Timer("TSetup")
	TTotal := stats.Timer("TTotal")

	TSetup.Start()
	world, err := comm.NewWorld(ctx, transport, cfg.Workers+1, cfg.AMQP, cfg.Log)
	TSetup.Record()
	if err != nil {
		return errors.Wrapf(err, "Failed to set up %v transport", transport)
	}
	defer func() {
		for _, c := range world {
			c.Close()
		}
	}()

	opts := sort.ClusterOptions{
		Options:     sort.Options{Log: cfg.Log, Observer: PhaseObserver(stats)},
		Parallelism: cfg.Parallelism,
	}

	TTotal.Start()
	out, err := sort.RunCluster(ctx, world, in, opts)
	TTotal.Record()
	if err != nil {
		return err
	}

	if err := sort.CheckSort(in, out); err != nil {
		return errors.Wrap(err, "Sorted wrong")
	}
	return nil
}

// This runs manual benchmarks (not managed by Go's benchmarking tool)
// Even if an error is returned, the returned stats may be non-nil and contain
// valid results up until the error
func RunBenchmarks(ctx context.Context, cfg Config) (map[string]SortStats, error) {
	stats := make(map[string]SortStats)

	if cfg.Log == nil {
		cfg.Log = logrus.NewEntry(logrus.StandardLogger())
	}

	in, err := data.RandomMatrix(cfg.Rows, cfg.Cols, rand.New(rand.NewSource(cfg.Seed)))
	if err != nil {
		return stats, errors.Wrap(err, "Failed to generate inputs")
	}

	for _, transport := range cfg.Transports {
		runStats := make(SortStats)
		stats[transport] = runStats
		for i := 0; i < cfg.Repeat; i++ {
			if err := BenchOne(ctx, in, transport, cfg, runStats); err != nil {
				return stats, errors.Wrapf(err, "Failed to benchmark %v (iteration %v)", transport, i)
			}
			runtime.GC()
		}
		cfg.Log.Infof("Finished %v runs over %v", cfg.Repeat, transport)
	}
	return stats, nil
}
