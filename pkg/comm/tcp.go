package comm

import (
	"bufio"
	"context"
	"encoding/binary"
	"io"
	"net"
	"sync"
	"time"

	"github.com/nathantp/colsort/pkg/data"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Workers only ever talk to the coordinator, so a TCP topology is a star:
// the coordinator listens and every worker dials in once, introducing itself
// with a hello (magic, rank, size).
var helloMagic = [4]byte{'C', 'S', 'R', 'T'}

const (
	helloSize = 12

	// Pause between dial attempts while the coordinator isn't up yet
	DialRetryInterval = 100 * time.Millisecond
)

type tcpPeer struct {
	conn net.Conn
	r    *bufio.Reader

	wmtx sync.Mutex
	rmtx sync.Mutex
}

// Point-to-point channels over TCP connections
type TCPComm struct {
	rank  int
	size  int
	peers map[int]*tcpPeer
	log   *logrus.Entry
}

// Coordinator side listening socket
type TCPListener struct {
	ln  net.Listener
	log *logrus.Entry
}

func ListenTCP(addr string, log *logrus.Entry) (*TCPListener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, commFailure(err, "Failed to listen on %v", addr)
	}
	return &TCPListener{ln: ln, log: log}, nil
}

// Address actually bound (useful with port 0)
func (self *TCPListener) Addr() string {
	return self.ln.Addr().String()
}

// Wait for all size-1 workers to connect, then return the coordinator's Comm.
// The listener is closed when Accept returns.
func (self *TCPListener) Accept(ctx context.Context, size int) (*TCPComm, error) {
	defer self.ln.Close()

	if size < 2 {
		return nil, errors.Wrapf(data.ErrInvalidTopology, "Need at least 2 participants, got %v", size)
	}

	stop := context.AfterFunc(ctx, func() { self.ln.Close() })
	defer stop()

	c := &TCPComm{rank: Coordinator, size: size, peers: make(map[int]*tcpPeer), log: self.log}
	for len(c.peers) < size-1 {
		conn, err := self.ln.Accept()
		if err != nil {
			c.Close()
			if ctx.Err() != nil {
				return nil, commFailure(ctx.Err(), "Gave up waiting for workers (%v of %v connected)", len(c.peers), size-1)
			}
			return nil, commFailure(err, "Failed to accept worker connection")
		}

		// A peer that connects but stays silent must not outlive ctx
		helloStop := context.AfterFunc(ctx, func() { conn.SetReadDeadline(time.Unix(1, 0)) })
		rank, err := readHello(conn, size)
		helloStop()
		if ctx.Err() != nil {
			conn.Close()
			c.Close()
			return nil, commFailure(ctx.Err(), "Gave up waiting for hello from %v", conn.RemoteAddr())
		}
		if err != nil {
			conn.Close()
			c.Close()
			return nil, errors.Wrapf(err, "Bad hello from %v", conn.RemoteAddr())
		}
		if _, ok := c.peers[rank]; ok {
			conn.Close()
			c.Close()
			return nil, errors.Wrapf(data.ErrInvalidTopology, "Two workers claim rank %v", rank)
		}

		c.peers[rank] = &tcpPeer{conn: conn, r: bufio.NewReader(conn)}
		self.log.WithField("peer", rank).Debugf("Worker connected from %v", conn.RemoteAddr())
	}
	return c, nil
}

// Connect worker rank to the coordinator at addr, retrying until the
// coordinator accepts or ctx ends.
func DialTCP(ctx context.Context, addr string, rank int, size int, log *logrus.Entry) (*TCPComm, error) {
	if size < 2 || rank < 1 || rank >= size {
		return nil, errors.Wrapf(data.ErrInvalidTopology, "Rank %v is not a worker in a topology of %v", rank, size)
	}

	var dialer net.Dialer
	var conn net.Conn
	var err error
	for {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			break
		}

		log.Debugf("Coordinator at %v not reachable yet: %v", addr, err)
		select {
		case <-ctx.Done():
			return nil, commFailure(err, "Failed to reach coordinator at %v", addr)
		case <-time.After(DialRetryInterval):
		}
	}

	if err := writeHello(conn, rank, size); err != nil {
		conn.Close()
		return nil, err
	}

	peers := map[int]*tcpPeer{Coordinator: {conn: conn, r: bufio.NewReader(conn)}}
	return &TCPComm{rank: rank, size: size, peers: peers, log: log}, nil
}

// Bring up a complete star on addr inside this process: a listener for the
// coordinator plus one dialing goroutine per worker. world[i] has rank i.
func NewTCPWorld(ctx context.Context, addr string, size int, log *logrus.Entry) ([]Comm, error) {
	ln, err := ListenTCP(addr, log)
	if err != nil {
		return nil, err
	}

	world := make([]Comm, size)
	errs := make(chan error, size)
	for rank := 1; rank < size; rank++ {
		go func(rank int) {
			c, err := DialTCP(ctx, ln.Addr(), rank, size, log.WithField("rank", rank))
			if err == nil {
				world[rank] = c
			}
			errs <- err
		}(rank)
	}

	coord, err := ln.Accept(ctx, size)
	for rank := 1; rank < size; rank++ {
		if werr := <-errs; werr != nil && err == nil {
			err = werr
		}
	}
	if err != nil {
		if coord != nil {
			coord.Close()
		}
		for _, c := range world {
			if c != nil {
				c.Close()
			}
		}
		return nil, err
	}

	world[0] = coord
	return world, nil
}

func (self *TCPComm) Rank() int { return self.rank }
func (self *TCPComm) Size() int { return self.size }

func (self *TCPComm) peer(rank int) (*tcpPeer, error) {
	if err := checkPeer(self, rank); err != nil {
		return nil, err
	}
	p, ok := self.peers[rank]
	if !ok {
		return nil, errors.Wrapf(data.ErrCommunicationFailure, "No connection from rank %v to rank %v", self.rank, rank)
	}
	return p, nil
}

func (self *TCPComm) Send(ctx context.Context, dst int, msg *Message) error {
	p, err := self.peer(dst)
	if err != nil {
		return err
	}

	frame, err := EncodeFrame(msg)
	if err != nil {
		return data.WithKind(err, data.ErrCommunicationFailure)
	}

	p.wmtx.Lock()
	defer p.wmtx.Unlock()

	stop := context.AfterFunc(ctx, func() { p.conn.SetWriteDeadline(time.Unix(1, 0)) })
	defer stop()

	if _, err := p.conn.Write(frame); err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return commFailure(err, "Failed to send %v to rank %v", msg.Tag, dst)
	}
	return nil
}

func (self *TCPComm) Recv(ctx context.Context, src int, tag Tag) (*Message, error) {
	p, err := self.peer(src)
	if err != nil {
		return nil, err
	}

	p.rmtx.Lock()
	defer p.rmtx.Unlock()

	stop := context.AfterFunc(ctx, func() { p.conn.SetReadDeadline(time.Unix(1, 0)) })
	defer stop()

	msg, err := ReadFrame(p.r)
	if err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		} else if err == io.EOF {
			err = errors.New("connection closed by peer")
		}
		return nil, commFailure(err, "Failed to receive %v from rank %v", tag, src)
	}
	return expectTag(msg, src, tag)
}

func (self *TCPComm) Close() error {
	var firstErr error
	for rank, p := range self.peers {
		if err := p.conn.Close(); err != nil && firstErr == nil {
			firstErr = errors.Wrapf(err, "Failed to close connection to rank %v", rank)
		}
	}
	return firstErr
}

func writeHello(conn net.Conn, rank int, size int) error {
	var hello [helloSize]byte
	copy(hello[:4], helloMagic[:])
	binary.LittleEndian.PutUint32(hello[4:], uint32(rank))
	binary.LittleEndian.PutUint32(hello[8:], uint32(size))

	if _, err := conn.Write(hello[:]); err != nil {
		return commFailure(err, "Failed to introduce rank %v", rank)
	}
	return nil
}

func readHello(conn net.Conn, size int) (int, error) {
	var hello [helloSize]byte
	if _, err := io.ReadFull(conn, hello[:]); err != nil {
		return 0, commFailure(err, "Failed to read hello")
	}

	if [4]byte(hello[:4]) != helloMagic {
		return 0, errors.Wrap(data.ErrCommunicationFailure, "Peer is not a colsort worker")
	}

	rank := int(binary.LittleEndian.Uint32(hello[4:]))
	peerSize := int(binary.LittleEndian.Uint32(hello[8:]))
	if peerSize != size {
		return 0, errors.Wrapf(data.ErrInvalidTopology, "Worker %v expects %v participants, coordinator has %v", rank, peerSize, size)
	}
	if rank < 1 || rank >= size {
		return 0, errors.Wrapf(data.ErrInvalidTopology, "Worker claims rank %v in a topology of %v", rank, size)
	}
	return rank, nil
}
