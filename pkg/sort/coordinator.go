package sort

import (
	"context"
	"fmt"

	"github.com/nathantp/colsort/pkg/comm"
	"github.com/nathantp/colsort/pkg/data"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Coordinator progress through one run. Every run walks the states in order
// and never re-enters one; Aborted ends a failed run.
type State int

const (
	Idle State = iota
	Planning
	Dispatching
	AwaitingResults
	Reassembling
	Done
	Aborted
)

var stateNames = [...]string{"Idle", "Planning", "Dispatching", "AwaitingResults", "Reassembling", "Done", "Aborted"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// Splits a matrix by columns across the workers of its Comm, collects the
// sorted blocks and reassembles them. A Coordinator performs a single run.
type Coordinator struct {
	comm     comm.Comm
	log      *logrus.Entry
	observer func(State)
	src      data.Loader
	dst      data.Writer

	state State
}

func NewCoordinator(c comm.Comm, opts Options) *Coordinator {
	return &Coordinator{
		comm:     c,
		log:      opts.logger(c, "coordinator"),
		observer: opts.Observer,
		src:      opts.Source,
		dst:      opts.Dest,
	}
}

func (self *Coordinator) State() State {
	return self.state
}

func (self *Coordinator) setState(s State) {
	self.log.Debugf("%v -> %v", self.state, s)
	self.state = s
	if self.observer != nil {
		self.observer(s)
	}
}

func (self *Coordinator) abort(err error) error {
	self.setState(Aborted)
	return err
}

// Load the input from Source, sort it and store the result in Dest
func (self *Coordinator) Run(ctx context.Context) error {
	if self.src == nil || self.dst == nil {
		return errors.New("Coordinator needs both a Source and a Dest to Run")
	}

	in, err := self.src.Load()
	if err != nil {
		return errors.Wrap(err, "Failed to load input matrix")
	}

	out, err := self.Sort(ctx, in)
	if err != nil {
		return err
	}

	if err := self.dst.Write(out); err != nil {
		return errors.Wrap(err, "Failed to write sorted matrix")
	}
	self.log.Infof("Sorted %vx%v matrix across %v workers", out.Rows, out.Cols, self.comm.Size()-1)
	return nil
}

// Return a new matrix where every column of in is sorted ascending. in is
// not modified.
func (self *Coordinator) Sort(ctx context.Context, in *data.Matrix) (*data.Matrix, error) {
	if self.state != Idle {
		return nil, errors.Errorf("Coordinator already used (state %v)", self.state)
	}
	if in == nil {
		return nil, errors.Wrap(data.ErrSourceUnreadable, "No input matrix")
	}

	self.setState(Planning)
	nworker := self.comm.Size() - 1
	if nworker < 1 {
		return nil, self.abort(errors.Wrapf(data.ErrInvalidTopology,
			"Need at least 2 participants, have %v", self.comm.Size()))
	}

	refs, err := Assign(in.Cols, nworker)
	if err != nil {
		return nil, self.abort(err)
	}

	out, err := data.NewMatrix(in.Rows, in.Cols)
	if err != nil {
		return nil, self.abort(err)
	}

	self.setState(Dispatching)
	for _, ref := range refs {
		if err := self.dispatch(ctx, in, ref); err != nil {
			return nil, self.abort(err)
		}
	}

	self.setState(AwaitingResults)
	results := make([]*data.Block, len(refs))
	for i, ref := range refs {
		results[i], err = self.collect(ctx, in.Rows, ref)
		if err != nil {
			return nil, self.abort(err)
		}
	}

	self.setState(Reassembling)
	for i, ref := range refs {
		if err := data.StoreBlock(out, ref, results[i]); err != nil {
			return nil, self.abort(errors.Wrapf(err, "Failed to place block from worker %v", ref.Worker))
		}
	}

	self.setState(Done)
	return out, nil
}

// Send one worker its header followed by its payload. The block buffer is
// released once the transport has it.
func (self *Coordinator) dispatch(ctx context.Context, in *data.Matrix, ref data.BlockRef) error {
	blk, err := data.FetchBlock(in, ref)
	if err != nil {
		return errors.Wrapf(err, "Failed to extract block for worker %v", ref.Worker)
	}
	defer blk.Release()

	if err := self.comm.Send(ctx, ref.Worker, comm.HeaderMsg(blk.Header)); err != nil {
		return errors.Wrapf(err, "Failed to send header to worker %v", ref.Worker)
	}
	if err := self.comm.Send(ctx, ref.Worker, comm.PayloadMsg(blk.Vals)); err != nil {
		return errors.Wrapf(err, "Failed to send payload to worker %v", ref.Worker)
	}

	self.log.WithField("worker", ref.Worker).Debugf("Dispatched columns [%v, %v)", ref.Offset, ref.Offset+ref.Count)
	return nil
}

// Wait for the sorted block of one worker and check its shape
func (self *Coordinator) collect(ctx context.Context, rows int, ref data.BlockRef) (*data.Block, error) {
	res, err := self.comm.Recv(ctx, ref.Worker, comm.TagResult)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to receive result from worker %v", ref.Worker)
	}

	blk, err := data.NewBlock(data.Header{Rows: rows, Cols: ref.Count}, res.Vals)
	if err != nil {
		return nil, data.WithKind(errors.Wrapf(err, "Worker %v returned a malformed block", ref.Worker),
			data.ErrCommunicationFailure)
	}
	return blk, nil
}
