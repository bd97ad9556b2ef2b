package data

import (
	"sync"

	"github.com/pkg/errors"
)

// Upper bounds on buffer sizes (in float64 values). A header asking for more
// than MaxBlockValues is treated as an allocation failure rather than an
// attempt to reserve arbitrary memory.
const (
	MaxBlockValues  = 1 << 28
	MaxMatrixValues = 1 << 30
)

// Block buffers are recycled between runs in the same process
var blockPool = sync.Pool{
	New: func() interface{} { return new([]float64) },
}

// The payload of a column block: Rows x Cols values, column-major. A Block is
// owned by exactly one participant at a time. Release returns its buffer and
// must be the owner's last use of it.
type Block struct {
	Header
	Vals []float64

	buf *[]float64
}

// Acquire a buffer sized for hdr. Fails with ErrAllocationFailure for a
// negative or oversized shape.
func AllocBlock(hdr Header) (*Block, error) {
	if hdr.Rows < 0 || hdr.Cols < 0 {
		return nil, errors.Wrapf(ErrAllocationFailure, "Invalid block shape %vx%v", hdr.Rows, hdr.Cols)
	}
	if hdr.Cols != 0 && hdr.Rows > MaxBlockValues/hdr.Cols {
		return nil, errors.Wrapf(ErrAllocationFailure, "Block %vx%v exceeds %v values", hdr.Rows, hdr.Cols, MaxBlockValues)
	}

	n := hdr.Len()
	buf := blockPool.Get().(*[]float64)
	if cap(*buf) < n {
		*buf = make([]float64, n)
	}
	*buf = (*buf)[:n]

	return &Block{Header: hdr, Vals: *buf, buf: buf}, nil
}

// Wrap existing values without taking them from the pool. Release is a nop
// for such blocks.
func NewBlock(hdr Header, vals []float64) (*Block, error) {
	if hdr.Rows < 0 || hdr.Cols < 0 || len(vals) != hdr.Len() {
		return nil, errors.Wrapf(ErrAllocationFailure, "%v values do not fit block %vx%v", len(vals), hdr.Rows, hdr.Cols)
	}
	return &Block{Header: hdr, Vals: vals}, nil
}

// Column j of the block, aliasing the block storage
func (self *Block) Col(j int) []float64 {
	return self.Vals[j*self.Rows : (j+1)*self.Rows]
}

// Give the buffer back. The block must not be used afterwards.
func (self *Block) Release() {
	if self.buf == nil {
		return
	}
	blockPool.Put(self.buf)
	self.buf = nil
	self.Vals = nil
}

// In-memory matrix source/destination. Does not provide any persistence,
// useful for tests and for benchmarking without disk I/O.
type MemStore struct {
	mtx sync.Mutex
	m   *Matrix
}

func NewMemStore(m *Matrix) *MemStore {
	return &MemStore{m: m}
}

// Returns a copy so the caller owns the result
func (self *MemStore) Load() (*Matrix, error) {
	self.mtx.Lock()
	defer self.mtx.Unlock()

	if self.m == nil {
		return nil, errors.Wrap(ErrSourceUnreadable, "MemStore is empty")
	}
	return self.m.Clone(), nil
}

func (self *MemStore) Write(m *Matrix) error {
	if m == nil {
		return errors.Wrap(ErrDestinationUnwritable, "Refusing to store a nil matrix")
	}

	self.mtx.Lock()
	defer self.mtx.Unlock()
	self.m = m.Clone()
	return nil
}

// The last matrix written (nil if none)
func (self *MemStore) Matrix() *Matrix {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	return self.m
}
