package sort

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"testing"
	"time"

	"github.com/nathantp/colsort/pkg/comm"
	"github.com/nathantp/colsort/pkg/data"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestClusterMem(t *testing.T) {
	ClusterSortTest(t, memWorld)
}

func TestClusterTCP(t *testing.T) {
	ClusterSortTest(t, func(t *testing.T, size int) []comm.Comm {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		world, err := comm.NewTCPWorld(ctx, "127.0.0.1:0", size, testLog())
		require.Nil(t, err, "Failed to bring up TCP world")
		return world
	})
}

func TestClusterAMQP(t *testing.T) {
	url := os.Getenv("COLSORT_AMQP_URL")
	if url == "" {
		t.Skip("COLSORT_AMQP_URL not set, skipping broker tests")
	}

	ClusterSortTest(t, func(t *testing.T, size int) []comm.Comm {
		cfg := comm.AMQPConfig{URL: url, QueuePrefix: fmt.Sprintf("colsort-test-%d", time.Now().UnixNano())}
		world, err := comm.NewAMQPWorld(cfg, size, testLog())
		require.Nil(t, err, "Failed to connect to broker")
		return world
	})
}

func TestSortLocal(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	orig, err := data.RandomMatrix(40, 13, rng)
	require.Nil(t, err)

	t.Run("Parallelism", func(t *testing.T) {
		out, err := SortLocal(testCtx(t), orig, 5, ClusterOptions{Options: Options{Log: testLog()}, Parallelism: 1})
		require.Nil(t, err)
		require.Nil(t, CheckSort(orig, out))
	})

	t.Run("NoWorkers", func(t *testing.T) {
		_, err := SortLocal(testCtx(t), orig, 0, ClusterOptions{Options: Options{Log: testLog()}})
		require.True(t, errors.Is(err, data.ErrInvalidTopology), "Expected InvalidTopology, got %v", err)
	})
}

// Drops every incoming message
type brokenComm struct {
	comm.Comm
}

func (self *brokenComm) Recv(ctx context.Context, src int, tag comm.Tag) (*comm.Message, error) {
	return nil, errors.Wrapf(data.ErrCommunicationFailure, "Link from %v is down", src)
}

// A worker that dies takes the whole run down instead of leaving the
// coordinator waiting
func TestClusterWorkerFailure(t *testing.T) {
	world := memWorld(t, 4)
	defer closeWorld(world)
	world[2] = &brokenComm{Comm: world[2]}

	in, err := data.RandomMatrix(6, 6, rand.New(rand.NewSource(2)))
	require.Nil(t, err)

	_, err = RunCluster(testCtx(t), world, in, ClusterOptions{Options: Options{Log: testLog()}})
	require.True(t, errors.Is(err, data.ErrCommunicationFailure), "Expected CommunicationFailure, got %v", err)
}
