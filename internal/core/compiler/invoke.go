package compiler

import (
	"bufio"
	"context"
	"os/exec"
	"sync"

	"github.com/pkg/errors"

	"github.com/forgepm/forge/internal/core/unitgraph"
)

// Planner resolves the BuildPlan and program for one unit; the CLI wires
// this to whatever fingerprint/unitgraph state it has already computed.
type Planner interface {
	Plan(u *unitgraph.Unit) (program string, plan BuildPlan, err error)
}

// ProcessInvoker runs a unit's compiled command as a real child process,
// streaming its stdout/stderr line-by-line to the job queue's callbacks.
// It plays the role golang-dep's monitoredCmd plays for a single VCS
// invocation (an exec.Cmd with its output captured via a dedicated
// buffer/writer pair) generalized to a streaming consumer instead of a
// fixed buffer, since the job queue needs per-line callbacks rather than a
// final combined buffer.
type ProcessInvoker struct {
	Planner Planner
}

// Run implements jobqueue.Invoker.
func (p ProcessInvoker) Run(ctx context.Context, u *unitgraph.Unit, stdout, stderr func(line string)) error {
	program, plan, err := p.Planner.Plan(u)
	if err != nil {
		return errors.Wrapf(err, "cannot plan unit %s", u.ID)
	}

	cmd := Build(u, plan, program)
	c := exec.CommandContext(ctx, cmd.Program, cmd.Args...)
	c.Dir = cmd.Dir
	c.Env = cmd.Env

	outPipe, err := c.StdoutPipe()
	if err != nil {
		return errors.Wrap(err, "cannot open stdout pipe")
	}
	errPipe, err := c.StderrPipe()
	if err != nil {
		return errors.Wrap(err, "cannot open stderr pipe")
	}

	if err := c.Start(); err != nil {
		return errors.Wrapf(err, "cannot start compiler for unit %s", u.ID)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go streamLines(&wg, outPipe, stdout)
	go streamLines(&wg, errPipe, stderr)
	wg.Wait()

	if err := c.Wait(); err != nil {
		return errors.Wrapf(err, "unit %s failed", u.ID)
	}
	return nil
}

func streamLines(wg *sync.WaitGroup, r interface{ Read([]byte) (int, error) }, emit func(string)) {
	defer wg.Done()
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		emit(sc.Text())
	}
}
