package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nathantp/colsort/pkg/data"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func envMap(vars map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}
}

func TestLoad(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		cfg := Default()
		require.Nil(t, cfg.Validate())
		require.Equal(t, 8, cfg.Rows)
		require.Equal(t, 6, cfg.Cols)
	})

	t.Run("File", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "colsort.yaml")
		raw := "transport: tcp\nsize: 5\naddr: 10.0.0.1:9000\nlog_level: debug\nrows: 100\n"
		require.Nil(t, os.WriteFile(path, []byte(raw), 0644))

		cfg, err := Load(path)
		require.Nil(t, err, "Failed to load config")
		require.Equal(t, TransportTCP, cfg.Transport)
		require.Equal(t, 5, cfg.Size)
		require.Equal(t, "10.0.0.1:9000", cfg.Addr)
		require.Equal(t, "debug", cfg.LogLevel)
		require.Equal(t, 100, cfg.Rows)
		require.Equal(t, 6, cfg.Cols, "Unset fields should keep their defaults")
	})

	t.Run("Missing", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		require.NotNil(t, err)
	})

	t.Run("Malformed", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.Nil(t, os.WriteFile(path, []byte("size: [1, 2\n"), 0644))
		_, err := Load(path)
		require.NotNil(t, err)
	})
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(envMap(map[string]string{
		"COLSORT_SIZE":      "3",
		"COLSORT_RANK":      "2",
		"COLSORT_TRANSPORT": "amqp",
		"COLSORT_AMQP_URL":  "amqp://broker:5672/",
		"COLSORT_SEED":      "42",
	}))
	require.Nil(t, err)
	require.Equal(t, 3, cfg.Size)
	require.Equal(t, 2, cfg.Rank)
	require.Equal(t, TransportAMQP, cfg.Transport)
	require.Equal(t, "amqp://broker:5672/", cfg.AMQP().URL)
	require.Equal(t, int64(42), cfg.Seed)

	err = cfg.ApplyEnv(envMap(map[string]string{"COLSORT_SIZE": "many"}))
	require.NotNil(t, err, "Non-numeric size accepted")
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Transport = "carrier-pigeon"
	require.NotNil(t, cfg.Validate())

	cfg = Default()
	cfg.LogLevel = "loud"
	require.NotNil(t, cfg.Validate())

	cfg = Default()
	cfg.Parallelism = -1
	require.NotNil(t, cfg.Validate())

	cfg = Default()
	logger, err := cfg.Logger()
	require.Nil(t, err)
	require.Equal(t, logrus.InfoLevel, logger.GetLevel())
}

func TestTopology(t *testing.T) {
	good := []Topology{{Size: 2, Rank: 0}, {Size: 2, Rank: 1}, {Size: 9, Rank: 8}}
	for _, top := range good {
		require.Nilf(t, top.Validate(), "%+v rejected", top)
	}

	bad := []Topology{{Size: 1, Rank: 0}, {Size: 0, Rank: 0}, {Size: 3, Rank: 3}, {Size: 3, Rank: -1}}
	for _, top := range bad {
		err := top.Validate()
		require.Truef(t, errors.Is(err, data.ErrInvalidTopology), "%+v accepted", top)
	}

	local, err := Config{Size: 4, Rank: 9}.LocalTopology()
	require.Nil(t, err, "Rank should not matter for a local run")
	require.Equal(t, 3, local.Workers())

	_, err = Config{Size: 1, Rank: 0}.LocalTopology()
	require.True(t, errors.Is(err, data.ErrInvalidTopology), "Single participant accepted")

	top, err := Config{Size: 4, Rank: 0}.Topology()
	require.Nil(t, err)
	require.True(t, top.IsCoordinator())
	require.Equal(t, 3, top.Workers())
}
