// Package resolver implements C3: backtracking version/feature resolution
// over a Registry, with semver-compatibility deduplication and optional
// public-dependency visibility checks (spec.md §4.1).
//
// Grounded on internal/gps's solve-adjacent surviving files (registry.go's
// query shape, checks.go's constraint filtering) and, for the parts whose
// golang-dep source did not survive retrieval (the actual backtracking
// loop, activation keys, public-dependency tracking), on spec.md §4.1's
// own description of the search algorithm and feature expansion.
package resolver

import (
	"sort"

	"github.com/forgepm/forge/internal/core/id"
	"github.com/forgepm/forge/internal/core/model"
	"github.com/forgepm/forge/internal/core/registry"
	"github.com/forgepm/forge/internal/core/version"
)

// Options configures a resolve (spec.md §4.1 and §6's resolve() opts
// parameter).
type Options struct {
	// MinimalVersions resolves every dependency to the oldest version
	// satisfying its requirement, instead of the default newest-first
	// search.
	MinimalVersions bool
	// CheckPublicDependencies enables public-dependency visibility
	// tracking.
	CheckPublicDependencies bool
	// IncludeDevDependencies includes the root package's development
	// dependencies in the resolve (spec.md §4.1 step 5: "Skip development
	// dependencies unless the caller opts in (only for the root)").
	IncludeDevDependencies bool
	// TargetTriple restricts platform-predicated dependencies; empty means
	// "consider all platforms".
	TargetTriple string
}

// state carries the mutable bookkeeping threaded through one Solve call;
// PackageIds themselves are interned upstream by whatever Interner the
// Registry was built against (C1), so the solver never mints its own.
type state struct {
	opts  Options
	reg   registry.Registry
	edges []Edge
}

// Solve runs the resolver to completion: given a root Summary, a set of
// root-requested feature names, and a Registry, it returns a finalized
// Resolve or a ResolveError describing the conflict (spec.md §4.1
// contract).
func Solve(root model.Summary, requestedFeatures []string, usesDefaultFeatures bool, opts Options, reg registry.Registry) (*Resolve, error) {
	if err := reg.BlockUntilReady(); err != nil {
		return nil, err
	}

	st := &state{opts: opts, reg: reg}
	ctx := NewContext(opts.CheckPublicDependencies)

	requested := make(map[string]bool, len(requestedFeatures))
	for _, f := range requestedFeatures {
		requested[f] = true
	}

	final, err := st.activate(ctx, root, requested, usesDefaultFeatures, true, nil)
	if err != nil {
		return nil, err
	}

	return st.finalize(final), nil
}

func (st *state) finalize(ctx *Context) *Resolve {
	nodes := make(map[id.PackageId]Node, len(ctx.activations))
	for _, a := range ctx.activations {
		nodes[a.summary.ID] = Node{
			Summary:  a.summary,
			Features: ctx.RequestedFeatures(a.summary.ID),
		}
	}
	return &Resolve{Nodes: nodes, Edges: st.edges}
}

// activate expands pkg's feature set, includes its qualifying dependency
// edges, and recursively resolves each one, returning the Context reached
// after every dependency succeeded.
func (st *state) activate(ctx *Context, pkg model.Summary, requested map[string]bool, usesDefault, isRoot bool, chain []Frame) (*Context, error) {
	ctx.Age++
	frame := make([]Frame, len(chain), len(chain)+1)
	copy(frame, chain)
	frame = append(frame, Frame{Package: pkg.ID})

	exp, err := ExpandFeatures(pkg, requested, usesDefault)
	if err != nil {
		return nil, withChain(err, frame)
	}

	alreadyDone, err := ctx.FlagActivated(pkg, requested)
	if err != nil {
		return nil, withChain(err, frame)
	}
	if alreadyDone {
		return ctx, nil
	}

	included := IncludedDependencies(pkg, exp)
	included = st.filterApplicable(included, isRoot)
	st.orderByScarcity(included)

	for _, dep := range included {
		childFeatures := ChildFeatures(dep, exp, nil)
		next, err := st.resolveDependency(ctx, pkg.ID, dep, childFeatures, frame)
		if err != nil {
			return nil, err
		}
		ctx = next
	}

	// Weak-feature fixed point (spec.md §4.1's promotion rule, SPEC_FULL.md
	// supplemented feature 6): any dependency this package weakly requested
	// a feature of, and which ended up independently activated by the time
	// every strong edge above has settled, gets that feature promoted to a
	// strong request and is re-expanded.
	for depName, feats := range exp.Weak {
		if !activatedByName(ctx, depName) {
			continue
		}
		for _, dep := range pkg.Dependencies {
			if dep.Name != depName && dep.EffectiveName() != depName {
				continue
			}
			promoted, err := st.resolveDependency(ctx, pkg.ID, dep, feats, frame)
			if err != nil {
				return nil, err
			}
			ctx = promoted
		}
	}

	return ctx, nil
}

// activatedByName reports whether some version of name is activated
// anywhere in ctx, independent of which compatibility class.
func activatedByName(ctx *Context, name id.ProjectRoot) bool {
	for _, a := range ctx.activations {
		if a.summary.ID.Name() == name {
			return true
		}
	}
	return false
}

// resolveDependency queries the registry for dep's candidates, filters and
// orders them, and tries each in turn (backtracking via an explicit Context
// clone per attempt) until one successfully activates.
func (st *state) resolveDependency(ctx *Context, parent id.PackageId, dep model.Dependency, childFeatures map[string]bool, chain []Frame) (*Context, error) {
	summaries, err := st.reg.Query(dep, registry.Exact)
	if err != nil {
		return nil, withChain(&ResolveError{Kind: Unsatisfiable, Message: err.Error()}, chain)
	}

	cands := st.filterCandidates(ctx, dep, summaries)
	if len(cands) == 0 {
		return nil, withChain(&ResolveError{
			Kind:    Unsatisfiable,
			Message: "no candidate of " + string(dep.Name) + " satisfies " + dep.Requirement.String(),
		}, chain)
	}

	var lastErr error
	for _, cand := range cands {
		trial := ctx.Clone()
		trial.AddParentEdge(parent, cand.ID, dep.Public)
		if trial.public != nil {
			if perr := trial.public.AddEdge(trial, parent, cand.ID, dep.Public, trial.Age); perr != nil {
				lastErr = withChain(perr, chain)
				continue
			}
		}

		next, err := st.activate(trial, cand, childFeatures, dep.UsesDefaultFeatures, false, chain)
		if err != nil {
			lastErr = err
			continue
		}
		st.edges = append(st.edges, Edge{From: parent, To: cand.ID, Dep: dep})
		return next, nil
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, withChain(&ResolveError{Kind: Unsatisfiable, Message: "exhausted candidates of " + string(dep.Name)}, chain)
}

func (st *state) filterApplicable(deps []model.Dependency, isRoot bool) []model.Dependency {
	out := make([]model.Dependency, 0, len(deps))
	for _, d := range deps {
		if d.Kind == model.KindDevelopment && !(isRoot && st.opts.IncludeDevDependencies) {
			continue
		}
		if st.opts.TargetTriple != "" && !d.Platform.Matches(st.opts.TargetTriple) {
			continue
		}
		out = append(out, d)
	}
	return out
}

// filterCandidates drops candidates whose requirement doesn't match,
// whose compatibility class already has an incompatible activation, or
// whose links claim conflicts with an existing activation (spec.md §4.1
// step 2), and sorts the survivors per the search order.
func (st *state) filterCandidates(ctx *Context, dep model.Dependency, summaries []model.Summary) []model.Summary {
	out := make([]model.Summary, 0, len(summaries))
	for _, s := range summaries {
		v, err := version.Parse(s.ID.VersionString())
		if err != nil || !dep.Requirement.Matches(v) {
			continue
		}
		key := activationsKey(s.ID)
		if existing, ok := ctx.activations[key]; ok && existing.summary.ID != s.ID {
			continue
		}
		if s.Links != "" {
			if prior, ok := ctx.links[s.Links]; ok && prior != s.ID {
				continue
			}
		}
		out = append(out, s)
	}

	sort.Slice(out, func(i, j int) bool {
		vi, _ := version.Parse(out[i].ID.VersionString())
		vj, _ := version.Parse(out[j].ID.VersionString())
		if st.opts.MinimalVersions {
			return vi.LessThan(vj)
		}
		return vj.LessThan(vi)
	})
	return out
}

// orderByScarcity reorders deps so the one with the fewest registry
// candidates is tried first, bounding branching (spec.md §4.1 step 3).
func (st *state) orderByScarcity(deps []model.Dependency) {
	type scored struct {
		dep model.Dependency
		n   int
	}
	ranked := make([]scored, len(deps))
	for i, d := range deps {
		cands, _ := st.reg.Query(d, registry.Exact)
		ranked[i] = scored{dep: d, n: len(cands)}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].n < ranked[j].n })
	for i, r := range ranked {
		deps[i] = r.dep
	}
}

// withChain attaches the root-first dependency chain accumulated during
// descent to err, if it is a ResolveError that doesn't already carry one
// (an inner call may have attached a more specific chain already).
func withChain(err error, chain []Frame) error {
	if re, ok := err.(*ResolveError); ok && re.Chain == nil {
		re.Chain = chain
		return re
	}
	return err
}
