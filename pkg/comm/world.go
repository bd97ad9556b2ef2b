package comm

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Transport names accepted by NewWorld
const (
	TransportMem  = "mem"
	TransportTCP  = "tcp"
	TransportAMQP = "amqp"
)

// Bring up every participant of a size-participant run inside this process
// over the named transport. tcp listens on a loopback port picked by the OS.
func NewWorld(ctx context.Context, transport string, size int, amqpCfg AMQPConfig, log *logrus.Entry) ([]Comm, error) {
	switch transport {
	case TransportMem:
		world, err := NewMemWorld(size)
		if err != nil {
			return nil, err
		}
		comms := make([]Comm, size)
		for i, c := range world {
			comms[i] = c
		}
		return comms, nil
	case TransportTCP:
		return NewTCPWorld(ctx, "127.0.0.1:0", size, log)
	case TransportAMQP:
		return NewAMQPWorld(amqpCfg, size, log)
	default:
		return nil, errors.Errorf("Unknown transport %q", transport)
	}
}
