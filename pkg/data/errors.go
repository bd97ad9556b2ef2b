package data

import "github.com/pkg/errors"

// Error kinds shared by every participant. All of them are fatal to a run;
// callers wrap them with context and test with errors.Is.
var (
	// Fewer than two participants, a bad rank, or a worker count < 1
	ErrInvalidTopology = errors.New("invalid topology")

	// The input matrix could not be read or parsed
	ErrSourceUnreadable = errors.New("source unreadable")

	// The output matrix could not be persisted
	ErrDestinationUnwritable = errors.New("destination unwritable")

	// A buffer for an incoming block could not be sized
	ErrAllocationFailure = errors.New("allocation failure")

	// A send or receive did not complete as expected
	ErrCommunicationFailure = errors.New("communication failure")
)

// Attach a kind to err while keeping err's message and cause chain. The
// result matches both kind and err under errors.Is.
func WithKind(err error, kind error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, kind) {
		return err
	}
	return &kindError{cause: err, kind: kind}
}

type kindError struct {
	cause error
	kind  error
}

func (self *kindError) Error() string {
	return self.kind.Error() + ": " + self.cause.Error()
}

func (self *kindError) Unwrap() error {
	return self.cause
}

func (self *kindError) Is(target error) bool {
	return target == self.kind
}
