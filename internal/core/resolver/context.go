package resolver

import (
	"github.com/forgepm/forge/internal/core/id"
	"github.com/forgepm/forge/internal/core/model"
	"github.com/forgepm/forge/internal/core/version"
)

// ContextAge is a monotonically increasing counter of decisions made to
// reach a given Context, used to decide how far to backtrack (spec.md
// §4.1 step 6). Grounded on core/resolver/context.rs's ContextAge.
type ContextAge int

// ActivationsKey identifies at most one activation: the resolver never
// holds two semver-incompatible activations under the same key (spec.md
// §4.1 "Semver-compatibility class").
type ActivationsKey struct {
	Name          id.ProjectRoot
	Source        id.Source
	Compatibility version.Compatibility
}

type activation struct {
	summary model.Summary
	age     ContextAge
}

// edgeSet records, for one parent->child dependency edge, whether it is a
// public edge (for public-dependency propagation).
type edgeSet map[id.PackageId]bool

// Context is the resolver's snapshot-capable search state: every field is
// explicitly cloned on branch (Clone), standing in for the persistent/
// copy-on-write maps core/resolver/context.rs builds with im_rc — no
// example repo in this corpus directly imports a persistent-map library
// (go-immutable-radix appears only as an indirect, never-imported
// transitive dependency), so Context uses plain maps copied wholesale at
// each search frame instead.
type Context struct {
	Age ContextAge

	activations Activations

	// resolveFeatures is the union of feature names requested so far for
	// each activated package (spec.md's "union-of-requests" re-expansion
	// rule).
	resolveFeatures map[id.PackageId]map[string]bool

	// links maps a links-attribute name to the package that claims it.
	links map[string]id.PackageId

	// parents maps a package to the set of packages that depend on it and
	// whether that edge is public, for diagnostics and public-dependency
	// propagation.
	parents map[id.PackageId]edgeSet

	public *PublicDependency // nil when public-dependency checking is disabled
}

// Activations is the resolver's (name, source, compat-class) -> activation
// table (spec.md §4.1's "at most one activation per (name, source,
// compatibility class)").
type Activations map[ActivationsKey]activation

// NewContext constructs an empty search context. checkPublicDeps enables
// public-dependency visibility tracking (spec.md §4.1 "Links and public-dep
// checks").
func NewContext(checkPublicDeps bool) *Context {
	c := &Context{
		activations:     make(Activations),
		resolveFeatures: make(map[id.PackageId]map[string]bool),
		links:           make(map[string]id.PackageId),
		parents:         make(map[id.PackageId]edgeSet),
	}
	if checkPublicDeps {
		c.public = newPublicDependency()
	}
	return c
}

// Clone returns an independent copy of c, safe to mutate without affecting
// c (the search frame c was branched from).
func (c *Context) Clone() *Context {
	clone := &Context{
		Age:             c.Age,
		activations:     make(Activations, len(c.activations)),
		resolveFeatures: make(map[id.PackageId]map[string]bool, len(c.resolveFeatures)),
		links:           make(map[string]id.PackageId, len(c.links)),
		parents:         make(map[id.PackageId]edgeSet, len(c.parents)),
	}
	for k, v := range c.activations {
		clone.activations[k] = v
	}
	for k, v := range c.resolveFeatures {
		cp := make(map[string]bool, len(v))
		for f := range v {
			cp[f] = true
		}
		clone.resolveFeatures[k] = cp
	}
	for k, v := range c.links {
		clone.links[k] = v
	}
	for k, v := range c.parents {
		cp := make(edgeSet, len(v))
		for p, pub := range v {
			cp[p] = pub
		}
		clone.parents[k] = cp
	}
	if c.public != nil {
		clone.public = c.public.clone()
	}
	return clone
}

func activationsKey(pid id.PackageId) ActivationsKey {
	v, err := version.Parse(pid.VersionString())
	var compat version.Compatibility
	if err == nil {
		compat = v.Compatibility()
	}
	return ActivationsKey{Name: pid.Name(), Source: pid.Source(), Compatibility: compat}
}

// IsActive reports the ContextAge at which pid's compatibility class was
// activated, if it was activated as exactly pid.
func (c *Context) IsActive(pid id.PackageId) (ContextAge, bool) {
	a, ok := c.activations[activationsKey(pid)]
	if !ok || a.summary.ID != pid {
		return 0, false
	}
	return a.age, true
}

// FlagActivated records summary as activated. It reports whether the
// exact same (package, feature-set) combination was already activated
// (in which case the caller should not recurse into it again), and an
// error if a links conflict arises.
func (c *Context) FlagActivated(summary model.Summary, requested map[string]bool) (alreadyDone bool, err error) {
	key := activationsKey(summary.ID)
	newlyActivated := false
	if existing, ok := c.activations[key]; ok {
		if existing.summary.ID != summary.ID {
			return false, &ResolveError{
				Kind:    Unsatisfiable,
				Message: "two semver-compatible versions of " + string(summary.ID.Name()) + " cannot both be activated",
			}
		}
	} else {
		if summary.Links != "" {
			if prior, ok := c.links[summary.Links]; ok && prior != summary.ID {
				return false, &ResolveError{
					Kind:    LinksConflict,
					Message: "multiple packages link native library `" + summary.Links + "`: " + prior.String() + " and " + summary.ID.String(),
				}
			}
			c.links[summary.Links] = summary.ID
		}
		c.activations[key] = activation{summary: summary, age: c.Age}
		newlyActivated = true
	}

	prev := c.resolveFeatures[summary.ID]
	if prev == nil {
		prev = make(map[string]bool)
		c.resolveFeatures[summary.ID] = prev
	}
	grew := false
	for f := range requested {
		if !prev[f] {
			prev[f] = true
			grew = true
		}
	}
	return !newlyActivated && !grew, nil
}

// RequestedFeatures returns the union of feature names ever requested for
// pid.
func (c *Context) RequestedFeatures(pid id.PackageId) map[string]bool {
	return c.resolveFeatures[pid]
}

// AddParentEdge records that child was reached from parent via a
// dependency edge with the given public flag.
func (c *Context) AddParentEdge(parent, child id.PackageId, public bool) {
	set := c.parents[child]
	if set == nil {
		set = make(edgeSet)
		c.parents[child] = set
	}
	set[parent] = set[parent] || public
}

// Parents returns the set of packages that depend on pid, mapped to
// whether that edge is public.
func (c *Context) Parents(pid id.PackageId) edgeSet {
	return c.parents[pid]
}

// StillApplies reports the ContextAge at which pid is active in c, or false
// if it is not; it is IsActive under another name. The solver keeps no
// cache of conflicting sets, so no candidate is rejected through it.
func (c *Context) StillApplies(pid id.PackageId) (ContextAge, bool) {
	return c.IsActive(pid)
}
