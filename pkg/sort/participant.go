package sort

import (
	"context"

	"github.com/nathantp/colsort/pkg/comm"
	"github.com/nathantp/colsort/pkg/data"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

// Settings shared by both participant roles. The zero value is usable: it
// logs through the standard logrus logger, has no I/O collaborators and no
// limit on concurrent sorting.
type Options struct {
	Log *logrus.Entry

	// Coordinator only: where Run loads the input and stores the output
	Source data.Loader
	Dest   data.Writer

	// Coordinator only: called on every state change
	Observer func(State)

	// Workers take one slot while sorting. Lets several in-process workers
	// share a fixed number of cores.
	Slots *semaphore.Weighted
}

func (self Options) logger(c comm.Comm, role string) *logrus.Entry {
	log := self.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return log.WithFields(logrus.Fields{"rank": c.Rank(), "role": role})
}

// One side of a sort run: a *Coordinator or a *Worker
type Participant interface {
	Run(ctx context.Context) error
}

// Pick the role for c's rank once: rank 0 coordinates, everyone else works
func NewParticipant(c comm.Comm, opts Options) Participant {
	if c.Rank() == comm.Coordinator {
		return NewCoordinator(c, opts)
	}
	return NewWorker(c, opts)
}
