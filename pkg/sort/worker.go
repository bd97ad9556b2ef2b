package sort

import (
	"context"

	"github.com/nathantp/colsort/pkg/comm"
	"github.com/nathantp/colsort/pkg/data"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

// Receives one block from the coordinator, sorts each of its columns and
// sends it back. A Worker handles exactly one block.
type Worker struct {
	comm  comm.Comm
	log   *logrus.Entry
	slots *semaphore.Weighted
}

func NewWorker(c comm.Comm, opts Options) *Worker {
	return &Worker{comm: c, log: opts.logger(c, "worker"), slots: opts.Slots}
}

func (self *Worker) Run(ctx context.Context) error {
	hdrMsg, err := self.comm.Recv(ctx, comm.Coordinator, comm.TagHeader)
	if err != nil {
		return errors.Wrap(err, "Failed to receive header")
	}
	hdr := hdrMsg.Header

	blk, err := data.AllocBlock(hdr)
	if err != nil {
		return errors.Wrapf(err, "Failed to allocate %vx%v block", hdr.Rows, hdr.Cols)
	}
	defer blk.Release()

	payload, err := self.comm.Recv(ctx, comm.Coordinator, comm.TagPayload)
	if err != nil {
		return errors.Wrap(err, "Failed to receive payload")
	}
	if len(payload.Vals) != hdr.Len() {
		return errors.Wrapf(data.ErrCommunicationFailure, "Payload has %v values, header announced %vx%v",
			len(payload.Vals), hdr.Rows, hdr.Cols)
	}
	copy(blk.Vals, payload.Vals)

	if self.slots != nil {
		if err := self.slots.Acquire(ctx, 1); err != nil {
			return errors.Wrap(err, "Gave up waiting for a sort slot")
		}
	}
	SortBlock(blk)
	if self.slots != nil {
		self.slots.Release(1)
	}
	self.log.Debugf("Sorted %v columns of %v rows", hdr.Cols, hdr.Rows)

	if err := self.comm.Send(ctx, comm.Coordinator, comm.ResultMsg(blk.Vals)); err != nil {
		return errors.Wrap(err, "Failed to return sorted block")
	}
	return nil
}
