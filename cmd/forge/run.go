package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"
	"runtime"

	"github.com/pkg/errors"

	"github.com/forgepm/forge/internal/core/compiler"
	"github.com/forgepm/forge/internal/core/diag"
	"github.com/forgepm/forge/internal/core/fingerprint"
	"github.com/forgepm/forge/internal/core/jobqueue"
	"github.com/forgepm/forge/internal/core/unitgraph"
	"github.com/forgepm/forge/internal/lock"
)

const runShortHelp = `Resolve, build the unit graph, and compile`
const runLongHelp = `
Runs the full pipeline: resolve the dependency graph, lower it into compilation
units, and execute them through the job queue (spec.md execute()).
`

type runCommand struct {
	buildGraphCommand
	outDir      string
	concurrency int
	compilerBin string
}

func (cmd *runCommand) Name() string      { return "run" }
func (cmd *runCommand) Args() string      { return "" }
func (cmd *runCommand) ShortHelp() string { return runShortHelp }
func (cmd *runCommand) LongHelp() string  { return runLongHelp }

func (cmd *runCommand) Register(fs *flag.FlagSet) {
	cmd.buildGraphCommand.Register(fs)
	fs.StringVar(&cmd.outDir, "out", "target", "build output directory")
	fs.IntVar(&cmd.concurrency, "j", runtime.NumCPU(), "maximum simultaneous compilations, including the coordinator's own slot")
	fs.StringVar(&cmd.compilerBin, "compiler", "true", "compiler program to invoke for each unit")
}

func (cmd *runCommand) Run(ctx *Ctx, args []string) error {
	g, err := cmd.buildGraphCommand.plan(ctx)
	if err != nil {
		return err
	}

	outDir := cmd.outDir
	if !filepath.IsAbs(outDir) {
		outDir = filepath.Join(ctx.WorkingDir, outDir)
	}
	if err := os.MkdirAll(outDir, 0777); err != nil {
		return errors.Wrapf(err, "cannot create output directory %s", outDir)
	}

	buildLock := lock.BuildDirLock(outDir)
	if err := buildLock.Lock(); err != nil {
		return err
	}
	defer buildLock.Unlock()

	fresh := &fingerprintFreshness{outDir: outDir, g: g}
	planner := &simplePlanner{outDir: outDir, compiler: cmd.compilerBin}
	sink := diag.NewSink(ctx.Out)

	q := jobqueue.New(g, compiler.ProcessInvoker{Planner: planner}, fresh,
		func(u *unitgraph.Unit) error { return nil }, sink.Diagnostics(), cmd.concurrency)

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := q.Run(runCtx); err != nil {
		return errors.Wrap(err, "execute failed")
	}
	return nil
}

// fingerprintFreshness implements jobqueue.FreshnessChecker over the
// fingerprint engine, treating any unit lacking a persisted record as
// dirty. IsFresh only ever reads; Commit is the sole place that writes a
// record, called by the queue after a unit's job actually succeeds, so a
// later invocation can then skip it.
type fingerprintFreshness struct {
	outDir string
	g      *unitgraph.Graph
}

func (f *fingerprintFreshness) dir(u *unitgraph.Unit, fp fingerprint.Fingerprint) string {
	return fingerprint.Dir(f.outDir, u.Package, fp.Hash)
}

func (f *fingerprintFreshness) compute(u *unitgraph.Unit) fingerprint.Fingerprint {
	in := fingerprint.Inputs{ContentMarker: u.ID.String()}
	return fingerprint.Compute(u, in)
}

// IsFresh is a pure read: it never writes a fingerprint record. The queue
// may call it more than once per unit in a single run (once on every
// dispatch sweep in which the unit is ready but not yet dispatched), and a
// check that persisted on a cache miss would make its own second call see
// the write from the first and report fresh without a build ever having
// happened.
func (f *fingerprintFreshness) IsFresh(u *unitgraph.Unit) (bool, error) {
	depsFresh := true
	for _, d := range u.Deps {
		dep := f.g.Units[d]
		ok, err := f.IsFresh(dep)
		if err != nil {
			return false, err
		}
		if !ok {
			depsFresh = false
		}
	}
	fp := f.compute(u)
	dir := f.dir(u, fp)
	return fingerprint.IsFresh(dir, fp, nil, depsFresh)
}

// Commit persists u's current fingerprint record. The job queue calls this
// only after u's job has actually run and succeeded, never as part of a
// freshness check.
func (f *fingerprintFreshness) Commit(u *unitgraph.Unit) error {
	fp := f.compute(u)
	return fingerprint.Persist(f.dir(u, fp), fp)
}

// simplePlanner builds a minimal BuildPlan: every dependency's library
// artifact lives under outDir/<kind>/deps, named after its UnitID.
type simplePlanner struct {
	outDir   string
	compiler string
}

func (p *simplePlanner) Plan(u *unitgraph.Unit) (string, compiler.BuildPlan, error) {
	depsDir := filepath.Join(p.outDir, u.Kind.String(), "deps")
	plan := compiler.BuildPlan{
		OutDir:    depsDir,
		EmitKinds: []string{"link"},
	}
	for _, d := range u.Deps {
		dep := d
		plan.Externs = append(plan.Externs, compiler.ExternRef{
			Name:     string(dep.Package.Name()),
			Artifact: filepath.Join(depsDir, dep.String()),
		})
	}
	return p.compiler, plan, nil
}
