// Package jobqueue implements C6: dependency-ordered, token-limited
// parallel execution of a unit graph (spec.md §4.4).
//
// No teacher file drives parallel external-compiler invocations (golang-dep
// vendors; it never compiles), so the coordinator/worker/message-channel
// architecture is grounded directly on spec.md §4.4 and §5's description.
// Uses github.com/sdboyer/constext, vendored by the teacher, to compose the
// caller's cancellation context with the queue's own shutdown context
// (mirroring cmd.go's supervisor.do composing a command context with a
// process context).
package jobqueue

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/sdboyer/constext"

	"github.com/forgepm/forge/internal/core/unitgraph"
)

// Status is the diagnostic line emitted before a unit is dispatched
// (spec.md §4.4 "status output... is emitted before the job is
// dispatched").
type Status uint8

const (
	StatusCompiling Status = iota
	StatusFresh
	StatusFinished
)

// Invoker runs one unit's job to completion, streaming output through the
// provided line handlers, and returns its error (if any). It stands in for
// C7's compiler driver output (spec.md §6 "Compiler invoker").
type Invoker interface {
	Run(ctx context.Context, u *unitgraph.Unit, stdout, stderr func(line string)) error
}

// FreshnessChecker reports whether a unit is already fresh and therefore
// does not need a worker token to "run" (spec.md §4.4 "Fresh vs dirty
// dispatch"). IsFresh must be a pure read: the queue may call it more than
// once for the same unit within a single run (once to decide whether a
// token is needed, again on a later sweep if dispatch was skipped), so it
// must never record the current fingerprint as a side effect — doing so
// would make a unit's second check observe its own first check's write and
// report fresh without ever having been built. Commit is called exactly
// once, after a dirty unit's job has actually finished successfully, to
// persist the record IsFresh will compare against on the next invocation.
type FreshnessChecker interface {
	IsFresh(u *unitgraph.Unit) (bool, error)
	Commit(u *unitgraph.Unit) error
}

// RefreshFunc re-applies a fresh unit's cached side effects (hardlinks,
// build-script outputs) synchronously on the coordinator.
type RefreshFunc func(u *unitgraph.Unit) error

// Diagnostics receives queue progress; nil fields are treated as no-ops.
type Diagnostics struct {
	OnStatus func(u *unitgraph.Unit, s Status)
	OnLine   func(u *unitgraph.Unit, stderr bool, line string)
	OnError  func(u *unitgraph.Unit, err error)
}

func (d Diagnostics) status(u *unitgraph.Unit, s Status) {
	if d.OnStatus != nil {
		d.OnStatus(u, s)
	}
}

func (d Diagnostics) line(u *unitgraph.Unit, stderr bool, l string) {
	if d.OnLine != nil {
		d.OnLine(u, stderr, l)
	}
}

func (d Diagnostics) errorf(u *unitgraph.Unit, err error) {
	if d.OnError != nil {
		d.OnError(u, err)
	}
}

// messageKind discriminates the worker->coordinator message channel
// (spec.md §4.4 "Workers communicate with the coordinator exclusively over
// a multi-producer, single-consumer message channel").
type messageKind uint8

const (
	msgSpawned messageKind = iota
	msgLine
	msgFinished
)

type message struct {
	kind    messageKind
	unit    unitgraph.UnitID
	stderr  bool
	line    string
	err     error
}

// tokenPool models the job-server token abstraction (spec.md §4.4): the
// coordinator always holds one implicit token (itself) and requests the
// rest from a bounded channel-backed pool.
type tokenPool struct {
	tokens chan struct{}
}

func newTokenPool(n int) *tokenPool {
	if n < 0 {
		n = 0
	}
	p := &tokenPool{tokens: make(chan struct{}, n)}
	for i := 0; i < n; i++ {
		p.tokens <- struct{}{}
	}
	return p
}

func (p *tokenPool) tryAcquire() bool {
	select {
	case <-p.tokens:
		return true
	default:
		return false
	}
}

func (p *tokenPool) release() {
	select {
	case p.tokens <- struct{}{}:
	default:
		// Pool at capacity; dropping rather than blocking matches spec.md
		// §4.4 step 4's "drop excess tokens above in-flight-1 back to the
		// pool" — a release that would overflow the pool is itself excess.
	}
}

// Queue executes a unitgraph.Graph at a caller-specified maximum
// concurrency (spec.md §4.4 contract).
type Queue struct {
	graph       *unitgraph.Graph
	invoker     Invoker
	fresh       FreshnessChecker
	refresh     RefreshFunc
	diag        Diagnostics
	concurrency int
}

// New constructs a Queue. concurrency is the total number of simultaneous
// compilations allowed, including the coordinator's own implicit token
// (spec.md §4.4: "the coordinator holds one implicit token... and asks...
// for N-1 more").
func New(graph *unitgraph.Graph, invoker Invoker, fresh FreshnessChecker, refresh RefreshFunc, diag Diagnostics, concurrency int) *Queue {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Queue{graph: graph, invoker: invoker, fresh: fresh, refresh: refresh, diag: diag, concurrency: concurrency}
}

// Run executes the queue to completion, blocking until every job finishes
// or the first failure has drained in-flight work (spec.md §4.4 contract
// and "Failure semantics").
func (q *Queue) Run(parent context.Context) error {
	runCtx, cancel := constext.Cons(parent, context.Background())
	defer cancel()

	finished := make(map[unitgraph.UnitID]bool, len(q.graph.Units))
	inFlight := make(map[unitgraph.UnitID]bool)
	dispatched := make(map[unitgraph.UnitID]bool)
	msgs := make(chan message, 64)
	pool := newTokenPool(q.concurrency - 1)

	var firstErr error
	var wg sync.WaitGroup

	ready := func() []unitgraph.UnitID {
		var out []unitgraph.UnitID
		for uid, u := range q.graph.Units {
			if dispatched[uid] {
				continue
			}
			allDepsFinished := true
			for _, d := range u.Deps {
				if !finished[d] {
					allDepsFinished = false
					break
				}
			}
			if allDepsFinished {
				out = append(out, uid)
			}
		}
		return out
	}

	// complete finalizes uid once its job is known to be done — either a
	// fresh skip decided synchronously on the coordinator, or a msgFinished
	// drained from a worker goroutine. wasInFlight distinguishes the two: a
	// dirty unit that actually ran through the invoker has its fingerprint
	// committed here, after success is known, never inside the freshness
	// check itself (spec.md §4.3/§4.4: checking freshness must not mutate
	// the record a later check in the same run would read).
	complete := func(uid unitgraph.UnitID, err error, wasInFlight bool) {
		u := q.graph.Units[uid]
		if wasInFlight {
			delete(inFlight, uid)
			pool.release()
		}
		finished[uid] = true
		if err != nil {
			q.diag.errorf(u, err)
			if firstErr == nil {
				firstErr = errors.Wrapf(err, "job failed: %s", uid)
			}
			return
		}
		if wasInFlight {
			if cerr := q.fresh.Commit(u); cerr != nil {
				q.diag.errorf(u, cerr)
				if firstErr == nil {
					firstErr = errors.Wrapf(cerr, "commit failed: %s", uid)
				}
				return
			}
		}
		q.diag.status(u, StatusFinished)
	}

	// dispatchOne starts uid's job. isFresh is decided once by the caller
	// (ready-set sweep below) so a unit's freshness is read exactly once
	// per dispatch, never re-queried after a dirty unit's own check.
	dispatchOne := func(uid unitgraph.UnitID, isFresh bool) {
		u := q.graph.Units[uid]
		dispatched[uid] = true

		if isFresh {
			q.diag.status(u, StatusFresh)
			var err error
			if q.refresh != nil {
				err = q.refresh(u)
			}
			// Fresh units run synchronously on the coordinator without
			// consuming a worker token (spec.md §4.4 "Fresh vs dirty
			// dispatch"), and without round-tripping through the message
			// channel: a dispatch sweep can ready more fresh units than the
			// channel's buffer holds, and nothing is draining the channel
			// while this sweep is still running.
			complete(uid, err, false)
			return
		}

		q.diag.status(u, StatusCompiling)
		inFlight[uid] = true
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := q.invoker.Run(runCtx, u,
				func(l string) { msgs <- message{kind: msgLine, unit: uid, line: l} },
				func(l string) { msgs <- message{kind: msgLine, unit: uid, stderr: true, line: l} },
			)
			msgs <- message{kind: msgFinished, unit: uid, err: err}
		}()
	}

	for {
		// Step 1/2: drain the ready set and dispatch. A fresh unit never
		// consumes a token (spec.md §4.4 "Fresh vs dirty dispatch"); a dirty
		// unit dispatches using the coordinator's own implicit token when
		// nothing else is in flight, or a token acquired from the pool
		// otherwise.
		if firstErr == nil {
			for _, uid := range ready() {
				u := q.graph.Units[uid]
				isFresh, err := q.fresh.IsFresh(u)
				if err != nil {
					dispatched[uid] = true
					complete(uid, err, false)
					continue
				}
				if isFresh {
					dispatchOne(uid, true)
					continue
				}
				if len(inFlight) == 0 || pool.tryAcquire() {
					dispatchOne(uid, false)
				}
			}
		}

		// Step 3: terminate once nothing is in flight, and either nothing
		// is pending or a failure has already stopped new dispatch (spec.md
		// §4.4 "Failure semantics": "continues draining until all in-flight
		// jobs complete, then returns the first error").
		if len(inFlight) == 0 && (len(ready()) == 0 || firstErr != nil) {
			break
		}

		// Step 4: block on the channel, handling every message drained in
		// one burst before re-entering step 1. Only in-flight (dirty) jobs
		// ever reach this channel now; fresh skips are completed inline
		// above.
		msg := <-msgs
		drainMessage(q, msg, complete)
	drainMore:
		for {
			select {
			case msg := <-msgs:
				drainMessage(q, msg, complete)
			default:
				break drainMore
			}
		}
	}

	wg.Wait()
	return firstErr
}

func drainMessage(q *Queue, msg message, complete func(uid unitgraph.UnitID, err error, wasInFlight bool)) {
	u := q.graph.Units[msg.unit]
	switch msg.kind {
	case msgLine:
		q.diag.line(u, msg.stderr, msg.line)
	case msgFinished:
		complete(msg.unit, msg.err, true)
	}
}
