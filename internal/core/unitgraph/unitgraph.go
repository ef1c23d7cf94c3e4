// Package unitgraph implements C4: lowering a finalized Resolve into the
// directed acyclic graph of compilation units it implies (spec.md §4.2).
//
// No teacher source lowers a resolve into compilation units (golang-dep
// vendors; it never compiles), so this is grounded directly on spec.md
// §4.2's lowering rules and its host/target Kind split.
package unitgraph

import (
	"fmt"

	"github.com/forgepm/forge/internal/core/id"
	"github.com/forgepm/forge/internal/core/model"
	"github.com/forgepm/forge/internal/core/resolver"
)

// TargetKind is the lowering category of one compiled target within a
// package (spec.md §3 "Unit": "target is one of {library, binary, test,
// example, benchmark, build-script, custom}").
type TargetKind uint8

const (
	TargetLibrary TargetKind = iota
	TargetBinary
	TargetTest
	TargetExample
	TargetBenchmark
	TargetBuildScript
	TargetCustom
)

func (k TargetKind) String() string {
	switch k {
	case TargetLibrary:
		return "library"
	case TargetBinary:
		return "binary"
	case TargetTest:
		return "test"
	case TargetExample:
		return "example"
	case TargetBenchmark:
		return "benchmark"
	case TargetBuildScript:
		return "build-script"
	default:
		return "custom"
	}
}

// Kind distinguishes a host-side unit (runs during the build, e.g. a build
// script or proc-macro) from a target-side unit (spec.md §3 "kind ∈ {host,
// target}").
type Kind uint8

const (
	KindTarget Kind = iota
	KindHost
)

func (k Kind) String() string {
	if k == KindHost {
		return "host"
	}
	return "target"
}

// Mode is the compilation mode requested for a unit (spec.md §3 "mode ∈
// {build, check, test, doc, doc-test, run-build-script}").
type Mode uint8

const (
	ModeBuild Mode = iota
	ModeCheck
	ModeTest
	ModeDoc
	ModeDocTest
	ModeRunBuildScript
)

func (m Mode) String() string {
	switch m {
	case ModeCheck:
		return "check"
	case ModeTest:
		return "test"
	case ModeDoc:
		return "doc"
	case ModeDocTest:
		return "doc-test"
	case ModeRunBuildScript:
		return "run-build-script"
	default:
		return "build"
	}
}

// Profile gives the optimization/debug settings a unit compiles under
// (spec.md §3 "profile").
type Profile struct {
	OptLevel      string // e.g. "0", "1", "2", "3", "s", "z"
	DebugInfo     bool
	PanicStrategy string // "unwind" or "abort"
	OverflowChecks bool
	Incremental   bool
	LTO           string // "off", "thin", "fat"
}

// Target describes one compiled target of a package.
type Target struct {
	Name string
	Kind TargetKind
	Path string // source entry point, relative to the package root
}

// Unit.BuildScriptOf points a build-script's companion run-build-script unit
// back at its compiled build unit; see addBuildScript below.

// Unit is one atomic compilation task (spec.md §3 "Unit").
type Unit struct {
	ID      UnitID
	Package id.PackageId
	Target  Target
	Profile Profile
	Kind    Kind
	Mode    Mode

	// Deps lists the units this unit depends on; all must finish before
	// this unit is dispatched (spec.md §4.2's DAG invariant).
	Deps []UnitID

	// BuildScriptOf is set on a run-build-script unit, naming the build
	// unit whose compiled binary it executes (spec.md §4.2's build-script
	// pairing).
	BuildScriptOf UnitID
}

// UnitID is a stable identity for a unit within one Graph: (package,
// target name, target kind, compilation kind, mode) uniquely determines a
// unit, mirroring spec.md §4.3 item 1-4's fingerprint hash components.
type UnitID struct {
	Package id.PackageId
	Target  string
	TKind   TargetKind
	Kind    Kind
	Mode    Mode
}

func (u UnitID) String() string {
	return fmt.Sprintf("%s/%s:%s(%s,%s)", u.Package, u.Target, u.TKind, u.Kind, u.Mode)
}

// Graph is the DAG of units produced by Build.
type Graph struct {
	Roots []UnitID
	Units map[UnitID]*Unit
}

// RequestedTarget names one target a caller wants built (or tested, or
// documented) for a root package.
type RequestedTarget struct {
	Name string
	Kind TargetKind
	Path string
	Mode Mode
}

// PackagePlan lists the targets requested for one selected package plus
// its build-script (if any) and dev-dependency closure needs.
type PackagePlan struct {
	Package      id.PackageId
	Targets      []RequestedTarget
	HasBuildScript bool
	BuildScriptPath string
}

// Build lowers resolve into a unit graph covering exactly the targets
// named in plans, plus the transitive closure of dependency units (spec.md
// §4.2 contract). profile is applied uniformly; per-unit profile
// overrides are a caller concern layered on top.
func Build(resolve *resolver.Resolve, plans []PackagePlan, targetTriple string, profile Profile) (*Graph, error) {
	g := &Graph{Units: make(map[UnitID]*Unit)}

	byPkg := make(map[id.PackageId]PackagePlan, len(plans))
	for _, p := range plans {
		byPkg[p.Package] = p
	}

	var build func(pkg id.PackageId, kind Kind, visiting map[UnitID]bool) ([]UnitID, error)
	build = func(pkg id.PackageId, kind Kind, visiting map[UnitID]bool) ([]UnitID, error) {
		node, ok := resolve.Nodes[pkg]
		if !ok {
			return nil, fmt.Errorf("unitgraph: package %s not present in resolve", pkg)
		}

		var libUnits []UnitID

		// Every package lowers at least its library unit so dependents can
		// link against it, whether or not the caller requested other
		// targets of it directly.
		libID := UnitID{Package: pkg, Target: "lib", TKind: TargetLibrary, Kind: kind, Mode: ModeBuild}
		if !visiting[libID] {
			if _, exists := g.Units[libID]; !exists {
				visiting[libID] = true
				u := &Unit{ID: libID, Package: pkg, Target: Target{Name: "lib", Kind: TargetLibrary}, Profile: profile, Kind: kind, Mode: ModeBuild}
				g.Units[libID] = u

				var buildScriptOut []UnitID
				if plan, ok := byPkg[pkg]; ok && plan.HasBuildScript {
					bsUnits, err := addBuildScript(g, pkg, plan.BuildScriptPath, profile)
					if err != nil {
						return nil, err
					}
					buildScriptOut = bsUnits
				}

				for _, dep := range dependencyEdges(resolve, pkg) {
					// Dev-dependency edges belong only to test/bench units
					// (wired in below, at the root-target loop); a library
					// unit must not depend on them, or a root package built
					// with dev dependencies included in its resolve would
					// incorrectly pull them into its ordinary library build.
					if dep.Kind == devKindMarker {
						continue
					}
					childKind := kind
					if dep.Kind == buildKindMarker {
						childKind = KindHost
					}
					childUnits, err := build(dep.To, childKind, visiting)
					if err != nil {
						return nil, err
					}
					u.Deps = append(u.Deps, childUnits...)
				}
				u.Deps = append(u.Deps, buildScriptOut...)
			}
		}
		libUnits = append(libUnits, libID)
		return libUnits, nil
	}

	for _, plan := range plans {
		for _, t := range plan.Targets {
			libDeps, err := build(plan.Package, KindTarget, make(map[UnitID]bool))
			if err != nil {
				return nil, err
			}

			tid := UnitID{Package: plan.Package, Target: t.Name, TKind: t.Kind, Kind: KindTarget, Mode: t.Mode}
			u := &Unit{ID: tid, Package: plan.Package, Target: Target{Name: t.Name, Kind: t.Kind, Path: t.Path}, Profile: profile, Kind: KindTarget, Mode: t.Mode}

			if t.Kind == TargetLibrary && t.Mode == ModeBuild {
				// The already-built library unit IS this request.
				g.Roots = append(g.Roots, libDeps...)
				continue
			}

			u.Deps = append(u.Deps, libDeps...)
			if t.Kind == TargetTest || t.Kind == TargetBenchmark {
				for _, dep := range dependencyEdges(resolve, plan.Package) {
					if dep.Kind == devKindMarker {
						childUnits, err := build(dep.To, KindTarget, make(map[UnitID]bool))
						if err != nil {
							return nil, err
						}
						u.Deps = append(u.Deps, childUnits...)
					}
				}
			}
			g.Units[tid] = u
			g.Roots = append(g.Roots, tid)
		}
	}

	return g, nil
}

// addBuildScript wires a build-script target's two linked units (spec.md
// §4.2: "a build unit (compiled for the host) and a run-build-script unit
// that consumes the build unit's binary"), returning the run-build-script
// unit's id so library-unit dependents wait on its build-output side
// effects.
func addBuildScript(g *Graph, pkg id.PackageId, path string, profile Profile) ([]UnitID, error) {
	buildID := UnitID{Package: pkg, Target: "build-script-build", TKind: TargetBuildScript, Kind: KindHost, Mode: ModeBuild}
	runID := UnitID{Package: pkg, Target: "build-script-build", TKind: TargetBuildScript, Kind: KindHost, Mode: ModeRunBuildScript}

	if _, exists := g.Units[buildID]; exists {
		return []UnitID{runID}, nil
	}

	g.Units[buildID] = &Unit{
		ID:      buildID,
		Package: pkg,
		Target:  Target{Name: "build-script-build", Kind: TargetBuildScript, Path: path},
		Profile: profile,
		Kind:    KindHost,
		Mode:    ModeBuild,
	}
	g.Units[runID] = &Unit{
		ID:            runID,
		Package:       pkg,
		Target:        Target{Name: "build-script-build", Kind: TargetBuildScript, Path: path},
		Profile:       profile,
		Kind:          KindHost,
		Mode:          ModeRunBuildScript,
		Deps:          []UnitID{buildID},
		BuildScriptOf: buildID,
	}
	return []UnitID{runID}, nil
}

// resolvedEdge is one outgoing edge as dependencyEdges reports it.
// dependencyEdges scans every edge of resolver.Resolve.Edges on each call.
type resolvedEdge struct {
	To   id.PackageId
	Kind depKindMarker
}

type depKindMarker uint8

const (
	normalKindMarker depKindMarker = iota
	buildKindMarker
	devKindMarker
)

func dependencyEdges(resolve *resolver.Resolve, from id.PackageId) []resolvedEdge {
	var out []resolvedEdge
	for _, e := range resolve.Edges {
		if e.From != from {
			continue
		}
		var k depKindMarker
		switch e.Dep.Kind {
		case model.KindBuild:
			k = buildKindMarker
		case model.KindDevelopment:
			k = devKindMarker
		default:
			k = normalKindMarker
		}
		out = append(out, resolvedEdge{To: e.To, Kind: k})
	}
	return out
}
