// Package config gathers the settings of a colsort run. Values come from
// defaults, then an optional YAML file, then COLSORT_* environment variables;
// the command line applies its flags last.
package config

import (
	"os"
	"strconv"

	"github.com/nathantp/colsort/pkg/comm"
	"github.com/nathantp/colsort/pkg/data"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const EnvPrefix = "COLSORT_"

// Transport names
const (
	TransportMem  = comm.TransportMem
	TransportTCP  = comm.TransportTCP
	TransportAMQP = comm.TransportAMQP
)

type Config struct {
	Transport string `yaml:"transport"`

	// Participants in the run including the coordinator, and this process's
	// place among them. Rank is ignored by single-process commands.
	Size int `yaml:"size"`
	Rank int `yaml:"rank"`

	// Coordinator listen address for the tcp transport
	Addr string `yaml:"addr"`

	AMQPURL     string `yaml:"amqp_url"`
	QueuePrefix string `yaml:"queue_prefix"`

	LogLevel string `yaml:"log_level"`

	// Concurrent sorts allowed inside one process, 0 for no limit
	Parallelism int `yaml:"parallelism"`

	Input  string `yaml:"input"`
	Output string `yaml:"output"`

	// Shape and seed of generated inputs
	Rows int   `yaml:"rows"`
	Cols int   `yaml:"cols"`
	Seed int64 `yaml:"seed"`

	// Timed iterations for bench
	Repeat int `yaml:"repeat"`
}

func Default() Config {
	amqpCfg := comm.DefaultAMQPConfig()
	return Config{
		Transport:   TransportMem,
		Size:        4,
		Rank:        0,
		Addr:        "127.0.0.1:7420",
		AMQPURL:     amqpCfg.URL,
		QueuePrefix: amqpCfg.QueuePrefix,
		LogLevel:    "info",
		Input:       "input.csv",
		Output:      "output.csv",
		Rows:        8,
		Cols:        6,
		Seed:        1,
		Repeat:      5,
	}
}

// Defaults overlaid with the YAML file at path (skipped if path is empty)
// and then the environment
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, errors.Wrapf(err, "Failed to read config file %v", path)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, errors.Wrapf(err, "Failed to parse config file %v", path)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Override fields from COLSORT_* variables found by lookup
func (self *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"TRANSPORT":    &self.Transport,
		"ADDR":         &self.Addr,
		"AMQP_URL":     &self.AMQPURL,
		"QUEUE_PREFIX": &self.QueuePrefix,
		"LOG_LEVEL":    &self.LogLevel,
		"INPUT":        &self.Input,
		"OUTPUT":       &self.Output,
	}
	for name, dst := range strs {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"SIZE":        &self.Size,
		"RANK":        &self.Rank,
		"PARALLELISM": &self.Parallelism,
		"ROWS":        &self.Rows,
		"COLS":        &self.Cols,
		"REPEAT":      &self.Repeat,
	}
	for name, dst := range ints {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(err, "Bad value for %v%v", EnvPrefix, name)
		}
		*dst = n
	}

	if v, ok := lookup(EnvPrefix + "SEED"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return errors.Wrapf(err, "Bad value for %vSEED", EnvPrefix)
		}
		self.Seed = n
	}
	return nil
}

func (self Config) Validate() error {
	switch self.Transport {
	case TransportMem, TransportTCP, TransportAMQP:
	default:
		return errors.Errorf("Unknown transport %q (want %v, %v or %v)", self.Transport, TransportMem, TransportTCP, TransportAMQP)
	}
	if self.Parallelism < 0 {
		return errors.Errorf("Parallelism must not be negative, got %v", self.Parallelism)
	}
	if _, err := logrus.ParseLevel(self.LogLevel); err != nil {
		return errors.Wrap(err, "Bad log level")
	}
	return nil
}

func (self Config) Topology() (Topology, error) {
	t := Topology{Size: self.Size, Rank: self.Rank}
	return t, t.Validate()
}

// Topology for commands that run every participant in this process. Only
// Size matters there; the coordinator is always rank 0.
func (self Config) LocalTopology() (Topology, error) {
	t := Topology{Size: self.Size, Rank: comm.Coordinator}
	return t, t.Validate()
}

func (self Config) AMQP() comm.AMQPConfig {
	return comm.AMQPConfig{URL: self.AMQPURL, QueuePrefix: self.QueuePrefix}
}

// Logger writing to stderr at the configured level
func (self Config) Logger() (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(self.LogLevel)
	if err != nil {
		return nil, errors.Wrap(err, "Bad log level")
	}

	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return logger, nil
}

// Number of participants and this participant's rank. Rank 0 is the
// coordinator and every run needs at least one worker.
type Topology struct {
	Size int
	Rank int
}

func (self Topology) Validate() error {
	if self.Size < 2 {
		return errors.Wrapf(data.ErrInvalidTopology, "Need at least 2 participants, got %v", self.Size)
	}
	if self.Rank < 0 || self.Rank >= self.Size {
		return errors.Wrapf(data.ErrInvalidTopology, "Rank %v out of range for %v participants", self.Rank, self.Size)
	}
	return nil
}

func (self Topology) Workers() int {
	return self.Size - 1
}

func (self Topology) IsCoordinator() bool {
	return self.Rank == comm.Coordinator
}
