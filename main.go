package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"

	"github.com/nathantp/colsort/pkg/benchmark"
	"github.com/nathantp/colsort/pkg/config"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// State shared by all subcommands: flag values as parsed, and the final
// configuration once the file and environment have been merged in
type cli struct {
	cfgPath string
	flags   config.Config
	cfg     config.Config
	log     *logrus.Entry
}

// Flags override the file and environment only when given explicitly
func (self *cli) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(self.cfgPath)
	if err != nil {
		return err
	}

	fs := cmd.Flags()
	overrides := map[string]func(){
		"transport":    func() { cfg.Transport = self.flags.Transport },
		"size":         func() { cfg.Size = self.flags.Size },
		"rank":         func() { cfg.Rank = self.flags.Rank },
		"addr":         func() { cfg.Addr = self.flags.Addr },
		"amqp-url":     func() { cfg.AMQPURL = self.flags.AMQPURL },
		"queue-prefix": func() { cfg.QueuePrefix = self.flags.QueuePrefix },
		"log-level":    func() { cfg.LogLevel = self.flags.LogLevel },
		"parallelism":  func() { cfg.Parallelism = self.flags.Parallelism },
		"seed":         func() { cfg.Seed = self.flags.Seed },
		"input":        func() { cfg.Input = self.flags.Input },
		"output":       func() { cfg.Output = self.flags.Output },
		"rows":         func() { cfg.Rows = self.flags.Rows },
		"cols":         func() { cfg.Cols = self.flags.Cols },
		"repeat":       func() { cfg.Repeat = self.flags.Repeat },
	}
	for name, apply := range overrides {
		if fs.Lookup(name) != nil && fs.Changed(name) {
			apply()
		}
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := cfg.Logger()
	if err != nil {
		return err
	}
	self.cfg = cfg
	self.log = logrus.NewEntry(logger)
	return nil
}

func parseDim(name, v string) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errors.Errorf("Invalid %v %q", name, v)
	}
	return n, nil
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	def := config.Default()

	root := &cobra.Command{
		Use:               "colsort",
		Short:             "Sort every column of a matrix across a coordinator and its workers",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&c.cfgPath, "config", "", "YAML configuration file")
	pf.StringVar(&c.flags.Transport, "transport", def.Transport, "Transport between participants (mem, tcp or amqp)")
	pf.IntVar(&c.flags.Size, "size", def.Size, "Number of participants including the coordinator")
	pf.StringVar(&c.flags.Addr, "addr", def.Addr, "Coordinator address for the tcp transport")
	pf.StringVar(&c.flags.AMQPURL, "amqp-url", def.AMQPURL, "Broker URL for the amqp transport")
	pf.StringVar(&c.flags.QueuePrefix, "queue-prefix", def.QueuePrefix, "Prefix for broker queue names")
	pf.StringVar(&c.flags.LogLevel, "log-level", def.LogLevel, "Log level")
	pf.IntVar(&c.flags.Parallelism, "parallelism", def.Parallelism, "Workers allowed to sort at once in this process (0 for no limit)")
	pf.Int64Var(&c.flags.Seed, "seed", def.Seed, "Seed for generated matrices")

	runCmd := &cobra.Command{
		Use:   "run INPUT OUTPUT [ROWS COLS]",
		Short: "Generate a random matrix into INPUT and sort it into OUTPUT in this process",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 2 && len(args) != 4 {
				return errors.Errorf("Expected INPUT OUTPUT [ROWS COLS], got %v arguments", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := c.cfg
			cfg.Input, cfg.Output = args[0], args[1]
			if len(args) == 4 {
				var err error
				if cfg.Rows, err = parseDim("ROWS", args[2]); err != nil {
					return err
				}
				if cfg.Cols, err = parseDim("COLS", args[3]); err != nil {
					return err
				}
			}
			return runLocal(cmd.Context(), cfg, c.log, cmd.OutOrStdout())
		},
	}

	generateCmd := &cobra.Command{
		Use:   "generate OUTPUT ROWS COLS",
		Short: "Write a random matrix as CSV",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := parseDim("ROWS", args[1])
			if err != nil {
				return err
			}
			cols, err := parseDim("COLS", args[2])
			if err != nil {
				return err
			}
			return generateInput(args[0], rows, cols, c.cfg.Seed)
		},
	}

	coordCmd := &cobra.Command{
		Use:   "coordinator",
		Short: "Coordinate a multi-process run: load --input, dispatch to workers, write --output",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := c.cfg
			cfg.Rank = 0
			return runParticipant(cmd.Context(), cfg, c.log, cmd.OutOrStdout())
		},
	}
	coordCmd.Flags().StringVar(&c.flags.Input, "input", def.Input, "CSV matrix to sort")
	coordCmd.Flags().StringVar(&c.flags.Output, "output", def.Output, "Where to write the sorted matrix")

	workerCmd := &cobra.Command{
		Use:   "worker",
		Short: "Join a multi-process run as worker --rank",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := runWorker(cmd.Context(), c.cfg, c.log, cmd.OutOrStdout())
			if err != nil {
				c.log.WithError(err).Debug("Worker failed")
			}
			return err
		},
	}
	workerCmd.Flags().IntVar(&c.flags.Rank, "rank", def.Rank, "Rank of this worker (1 to size-1)")

	var transports []string
	benchCmd := &cobra.Command{
		Use:   "bench",
		Short: "Time repeated in-process sorts and report per-phase statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			top, err := c.cfg.LocalTopology()
			if err != nil {
				return err
			}

			stats, err := benchmark.RunBenchmarks(cmd.Context(), benchmark.Config{
				Rows:        c.cfg.Rows,
				Cols:        c.cfg.Cols,
				Workers:     top.Workers(),
				Parallelism: c.cfg.Parallelism,
				Repeat:      c.cfg.Repeat,
				Seed:        c.cfg.Seed,
				Transports:  transports,
				AMQP:        c.cfg.AMQP(),
				Log:         c.log,
			})
			for _, transport := range transports {
				if s, ok := stats[transport]; ok {
					fmt.Fprintf(cmd.OutOrStdout(), "%v:\n", transport)
					benchmark.ReportStats(s, cmd.OutOrStdout())
				}
			}
			return err
		},
	}
	benchCmd.Flags().IntVar(&c.flags.Rows, "rows", def.Rows, "Rows of the generated matrix")
	benchCmd.Flags().IntVar(&c.flags.Cols, "cols", def.Cols, "Columns of the generated matrix")
	benchCmd.Flags().IntVar(&c.flags.Repeat, "repeat", def.Repeat, "Timed runs per transport")
	benchCmd.Flags().StringSliceVar(&transports, "transports", []string{config.TransportMem, config.TransportTCP}, "Transports to compare")

	root.AddCommand(runCmd, generateCmd, coordCmd, workerCmd, benchCmd)
	return root
}

// Workers leave the terminal error to the coordinator
func reportError(cmd *cobra.Command, err error) {
	if cmd == nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return
	}
	if cmd.Name() == "worker" {
		return
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
}

func main() {
	retcode := 0
	defer func() { os.Exit(retcode) }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if cmd, err := newRootCmd().ExecuteContextC(ctx); err != nil {
		reportError(cmd, err)
		retcode = 1
	}
}
