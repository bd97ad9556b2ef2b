package sort

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/nathantp/colsort/pkg/comm"
	"github.com/nathantp/colsort/pkg/data"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

// Builds a fresh set of connected participants, world[i] having rank i
type WorldFactory func(t *testing.T, size int) []comm.Comm

// Run full sorts over worlds built by newWorld and check the results. Shared
// by every transport so they are held to the same behaviour.
func ClusterSortTest(t *testing.T, newWorld WorldFactory) {
	shapes := []struct {
		name    string
		rows    int
		cols    int
		nworker int
	}{
		{"Even", 17, 12, 4},
		{"Remainder", 31, 11, 3},
		{"MoreWorkersThanCols", 5, 2, 4},
		{"SingleRow", 1, 9, 2},
		{"NoRows", 0, 5, 2},
		{"NoCols", 7, 0, 3},
	}

	rng := rand.New(rand.NewSource(0))
	for _, shape := range shapes {
		t.Run(shape.name, func(t *testing.T) {
			orig, err := data.RandomMatrix(shape.rows, shape.cols, rng)
			require.Nil(t, err, "Failed to generate input")
			in := orig.Clone()

			world := newWorld(t, shape.nworker+1)
			defer closeWorld(world)

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			out, err := RunCluster(ctx, world, in, ClusterOptions{Options: Options{Log: testLog()}})
			require.Nil(t, err, "Sort failed")
			require.Nilf(t, CheckSort(orig, out), "Did not sort correctly")
			require.Equal(t, orig, in, "Input was modified")
		})
	}
}

func closeWorld(world []comm.Comm) {
	for _, c := range world {
		c.Close()
	}
}

func testLog() *logrus.Entry {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	return logrus.NewEntry(logger)
}
