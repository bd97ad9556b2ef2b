package comm

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/nathantp/colsort/pkg/data"
	"github.com/pkg/errors"
)

// Purpose of a message. The values match the tags used on the wire.
type Tag uint8

const (
	TagHeader  Tag = 1
	TagPayload Tag = 2
	TagResult  Tag = 3
)

func (t Tag) String() string {
	switch t {
	case TagHeader:
		return "HEADER"
	case TagPayload:
		return "PAYLOAD"
	case TagResult:
		return "RESULT"
	default:
		return fmt.Sprintf("Tag(%d)", uint8(t))
	}
}

// Frame layout: tag (1 byte) | body length in bytes (uint32 LE) | body.
// HEADER bodies hold rows and cols as uint32 LE, PAYLOAD and RESULT bodies
// hold float64 LE values in column-major order.
const (
	frameTagSize    = 1
	frameLenSize    = 4
	frameHeaderSize = frameTagSize + frameLenSize
	headerBodySize  = 8
	valueSize       = 8

	// Largest body we accept, guards against a corrupted length field
	maxBodySize = data.MaxBlockValues * valueSize
)

// One tagged message. Header is meaningful for TagHeader, Vals for
// TagPayload and TagResult.
type Message struct {
	Tag    Tag
	Header data.Header
	Vals   []float64
}

func HeaderMsg(hdr data.Header) *Message {
	return &Message{Tag: TagHeader, Header: hdr}
}

func PayloadMsg(vals []float64) *Message {
	return &Message{Tag: TagPayload, Vals: vals}
}

func ResultMsg(vals []float64) *Message {
	return &Message{Tag: TagResult, Vals: vals}
}

// Serialize msg as one frame
func EncodeFrame(msg *Message) ([]byte, error) {
	var body int
	switch msg.Tag {
	case TagHeader:
		if msg.Header.Rows < 0 || msg.Header.Cols < 0 ||
			uint64(msg.Header.Rows) > math.MaxUint32 || uint64(msg.Header.Cols) > math.MaxUint32 {
			return nil, errors.Errorf("Header %vx%v can't be encoded", msg.Header.Rows, msg.Header.Cols)
		}
		body = headerBodySize
	case TagPayload, TagResult:
		body = len(msg.Vals) * valueSize
		if uint64(body) > maxBodySize {
			return nil, errors.Errorf("%v message with %v values is too large", msg.Tag, len(msg.Vals))
		}
	default:
		return nil, errors.Errorf("Unknown message tag %v", msg.Tag)
	}

	frame := make([]byte, frameHeaderSize+body)
	frame[0] = byte(msg.Tag)
	binary.LittleEndian.PutUint32(frame[frameTagSize:], uint32(body))

	out := frame[frameHeaderSize:]
	if msg.Tag == TagHeader {
		binary.LittleEndian.PutUint32(out[0:], uint32(msg.Header.Rows))
		binary.LittleEndian.PutUint32(out[4:], uint32(msg.Header.Cols))
	} else {
		for i, v := range msg.Vals {
			binary.LittleEndian.PutUint64(out[i*valueSize:], math.Float64bits(v))
		}
	}
	return frame, nil
}

// Parse one complete frame (as produced by EncodeFrame)
func DecodeFrame(frame []byte) (*Message, error) {
	if len(frame) < frameHeaderSize {
		return nil, errors.Errorf("Short frame: %v bytes", len(frame))
	}

	tag := Tag(frame[0])
	body := binary.LittleEndian.Uint32(frame[frameTagSize:])
	if int(body) != len(frame)-frameHeaderSize {
		return nil, errors.Errorf("Frame length field says %v bytes, got %v", body, len(frame)-frameHeaderSize)
	}

	return decodeBody(tag, frame[frameHeaderSize:])
}

// Read exactly one frame from r
func ReadFrame(r io.Reader) (*Message, error) {
	var prefix [frameHeaderSize]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return nil, err
	}

	tag := Tag(prefix[0])
	body := binary.LittleEndian.Uint32(prefix[frameTagSize:])
	if uint64(body) > maxBodySize {
		return nil, errors.Errorf("%v frame body of %v bytes exceeds the limit", tag, body)
	}

	buf := make([]byte, body)
	if _, err := io.ReadFull(r, buf); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, errors.Wrapf(err, "Truncated %v frame", tag)
	}
	return decodeBody(tag, buf)
}

// Write msg to w as one frame
func WriteFrame(w io.Writer, msg *Message) error {
	frame, err := EncodeFrame(msg)
	if err != nil {
		return err
	}
	_, err = w.Write(frame)
	return err
}

func decodeBody(tag Tag, body []byte) (*Message, error) {
	switch tag {
	case TagHeader:
		if len(body) != headerBodySize {
			return nil, errors.Errorf("HEADER body has %v bytes, expected %v", len(body), headerBodySize)
		}
		return HeaderMsg(data.Header{
			Rows: int(binary.LittleEndian.Uint32(body[0:])),
			Cols: int(binary.LittleEndian.Uint32(body[4:])),
		}), nil

	case TagPayload, TagResult:
		if len(body)%valueSize != 0 {
			return nil, errors.Errorf("%v body of %v bytes is not a whole number of values", tag, len(body))
		}
		vals := make([]float64, len(body)/valueSize)
		for i := range vals {
			vals[i] = math.Float64frombits(binary.LittleEndian.Uint64(body[i*valueSize:]))
		}
		return &Message{Tag: tag, Vals: vals}, nil

	default:
		return nil, errors.Errorf("Unknown message tag %v", tag)
	}
}
