// Package comm provides the point-to-point message channels used by a sort
// run. Every participant has a rank in [0, Size()); rank 0 is the
// coordinator. Messages between one ordered pair of ranks are delivered
// reliably and in order. Receivers always name the tag they expect, so a
// HEADER can never be mistaken for a PAYLOAD or RESULT.
package comm

import (
	"context"

	"github.com/nathantp/colsort/pkg/data"
	"github.com/pkg/errors"
)

// Rank of the coordinator in every topology
const Coordinator = 0

type Comm interface {
	// This participant's rank
	Rank() int

	// Total number of participants (coordinator included)
	Size() int

	// Queue msg for delivery to dst. Send may return before dst receives it;
	// msg.Vals may be reused once Send returns.
	Send(ctx context.Context, dst int, msg *Message) error

	// Block until the next message from src arrives. It must carry tag,
	// anything else is an ErrCommunicationFailure.
	Recv(ctx context.Context, src int, tag Tag) (*Message, error)

	// Release the transport. Pending receives fail.
	Close() error
}

// Validate a peer rank for an operation on c
func checkPeer(c Comm, peer int) error {
	if peer < 0 || peer >= c.Size() || peer == c.Rank() {
		return errors.Wrapf(data.ErrCommunicationFailure, "Rank %v can't talk to rank %v in a topology of %v", c.Rank(), peer, c.Size())
	}
	return nil
}

// Reject a message that doesn't carry the expected tag
func expectTag(msg *Message, src int, tag Tag) (*Message, error) {
	if msg.Tag != tag {
		return nil, errors.Wrapf(data.ErrCommunicationFailure, "Expected %v from rank %v, got %v", tag, src, msg.Tag)
	}
	return msg, nil
}

// Mark err as a communication failure (context errors keep their identity too)
func commFailure(err error, format string, args ...interface{}) error {
	return data.WithKind(errors.Wrapf(err, format, args...), data.ErrCommunicationFailure)
}
