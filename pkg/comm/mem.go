package comm

import (
	"context"
	"sync"

	"github.com/nathantp/colsort/pkg/data"
	"github.com/pkg/errors"
)

// Messages in flight per ordered pair before Send blocks. The protocol never
// has more than a HEADER and a PAYLOAD outstanding on one link.
const memLinkDepth = 2

// In-memory transport. Participants share an address space (goroutines), so
// values are copied on Send to keep the single-owner rule for blocks.
type MemComm struct {
	rank  int
	size  int
	links [][]chan *Message // links[src][dst]

	closeOnce sync.Once
	closed    chan struct{}
}

// Create one connected MemComm per rank in a topology of size participants
func NewMemWorld(size int) ([]*MemComm, error) {
	if size < 1 {
		return nil, errors.Wrapf(data.ErrInvalidTopology, "Can't build a world of %v participants", size)
	}

	links := make([][]chan *Message, size)
	for src := 0; src < size; src++ {
		links[src] = make([]chan *Message, size)
		for dst := 0; dst < size; dst++ {
			if src != dst {
				links[src][dst] = make(chan *Message, memLinkDepth)
			}
		}
	}

	world := make([]*MemComm, size)
	for rank := 0; rank < size; rank++ {
		world[rank] = &MemComm{rank: rank, size: size, links: links, closed: make(chan struct{})}
	}
	return world, nil
}

func (self *MemComm) Rank() int { return self.rank }
func (self *MemComm) Size() int { return self.size }

func (self *MemComm) Send(ctx context.Context, dst int, msg *Message) error {
	if err := checkPeer(self, dst); err != nil {
		return err
	}

	cpy := &Message{Tag: msg.Tag, Header: msg.Header}
	if msg.Vals != nil {
		cpy.Vals = make([]float64, len(msg.Vals))
		copy(cpy.Vals, msg.Vals)
	}

	select {
	case self.links[self.rank][dst] <- cpy:
		return nil
	case <-self.closed:
		return errors.Wrapf(data.ErrCommunicationFailure, "Rank %v closed while sending %v to %v", self.rank, msg.Tag, dst)
	case <-ctx.Done():
		return commFailure(ctx.Err(), "Sending %v to rank %v", msg.Tag, dst)
	}
}

func (self *MemComm) Recv(ctx context.Context, src int, tag Tag) (*Message, error) {
	if err := checkPeer(self, src); err != nil {
		return nil, err
	}

	select {
	case msg := <-self.links[src][self.rank]:
		return expectTag(msg, src, tag)
	case <-self.closed:
		return nil, errors.Wrapf(data.ErrCommunicationFailure, "Rank %v closed while waiting for %v from %v", self.rank, tag, src)
	case <-ctx.Done():
		return nil, commFailure(ctx.Err(), "Waiting for %v from rank %v", tag, src)
	}
}

func (self *MemComm) Close() error {
	self.closeOnce.Do(func() { close(self.closed) })
	return nil
}
