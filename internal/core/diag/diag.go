// Package diag renders job-queue and resolver progress into a stream of
// human-readable lines, the way internal/feedback renders constraint/lock
// feedback: small structured entries, logged through a *log.Logger rather
// than written straight to a writer.
package diag

import (
	"fmt"
	"log"
	"sync"

	"github.com/forgepm/forge/internal/core/id"
	"github.com/forgepm/forge/internal/core/jobqueue"
	"github.com/forgepm/forge/internal/core/unitgraph"
)

// Verb names the action a status line reports.
type Verb string

const (
	VerbCompiling Verb = "Compiling"
	VerbFresh     Verb = "Fresh"
	VerbFinished  Verb = "Finished"
)

// Entry is one rendered progress line.
type Entry struct {
	Verb    Verb
	Package id.PackageId
}

func (e Entry) String() string {
	return fmt.Sprintf("%6s %s", e.Verb, e.Package)
}

// Sink accumulates and logs Entry values, suppressing repeat "Compiling"
// announcements for a package whose library unit and test/bench units are
// all dispatched in the same run (spec.md §4.4 "status output... emitted
// before the job is dispatched", narrowed here to one line per package
// rather than one per unit, mirroring job_queue's note_working_on
// de-duplication by package identity instead of by unit).
type Sink struct {
	logger *log.Logger

	mu        sync.Mutex
	announced map[id.PackageId]bool
}

// NewSink builds a Sink that logs through logger.
func NewSink(logger *log.Logger) *Sink {
	return &Sink{logger: logger, announced: make(map[id.PackageId]bool)}
}

// Diagnostics adapts Sink into the jobqueue.Diagnostics callback set.
func (s *Sink) Diagnostics() jobqueue.Diagnostics {
	return jobqueue.Diagnostics{
		OnStatus: s.onStatus,
		OnLine:   s.onLine,
		OnError:  s.onError,
	}
}

func (s *Sink) onStatus(u *unitgraph.Unit, st jobqueue.Status) {
	var verb Verb
	switch st {
	case jobqueue.StatusCompiling:
		verb = VerbCompiling
		s.mu.Lock()
		already := s.announced[u.Package]
		s.announced[u.Package] = true
		s.mu.Unlock()
		if already {
			return
		}
	case jobqueue.StatusFresh:
		verb = VerbFresh
	case jobqueue.StatusFinished:
		verb = VerbFinished
	default:
		return
	}
	s.logger.Print(Entry{Verb: verb, Package: u.Package})
}

func (s *Sink) onLine(u *unitgraph.Unit, stderr bool, line string) {
	if stderr {
		s.logger.Printf("%s: %s", u.Package, line)
		return
	}
	s.logger.Printf("%s: %s", u.Package, line)
}

func (s *Sink) onError(u *unitgraph.Unit, err error) {
	s.logger.Printf("error: %s: %v", u.Package, err)
}
