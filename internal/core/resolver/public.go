package resolver

import (
	"fmt"

	"github.com/forgepm/forge/internal/core/id"
)

// visibility is one entry in a package's "names I can see" map: which
// PackageId a given name resolves to, and the ages at which that became
// true (spec.md §4.1: "age when first visible, age when first publicly
// exposed", and SUPPLEMENTED FEATURE 2 in SPEC_FULL.md).
type visibility struct {
	pkg           id.PackageId
	firstVisible  ContextAge
	firstExported *ContextAge
}

// PublicDependency tracks, for every activated package, which other
// packages are visible to it by name — directly, or transitively through a
// chain of public dependency edges — so that two different versions of the
// same transitively-public dependency can never become visible to the same
// package (spec.md §4.1 "Links and public-dep checks").
//
// The reference implementation of this check (core/resolver/context.rs's
// PublicDependency type) is not present in this source tree; this follows
// the behavior spec.md §4.1 describes directly, using the same
// can_see_item/publicly_exports_item naming context.rs's surviving call
// sites use for the query side.
type PublicDependency struct {
	seenBy map[id.PackageId]map[id.ProjectRoot]visibility
}

func newPublicDependency() *PublicDependency {
	return &PublicDependency{seenBy: make(map[id.PackageId]map[id.ProjectRoot]visibility)}
}

func (pd *PublicDependency) clone() *PublicDependency {
	clone := newPublicDependency()
	for owner, names := range pd.seenBy {
		cp := make(map[id.ProjectRoot]visibility, len(names))
		for n, v := range names {
			cp[n] = v
		}
		clone.seenBy[owner] = cp
	}
	return clone
}

// canSeeItem reports the age at which owner first saw name resolve to pid,
// or false if owner has never seen that name at all, or if it currently
// resolves to a different package.
func (pd *PublicDependency) canSeeItem(owner id.PackageId, pid id.PackageId) (ContextAge, bool) {
	v, ok := pd.seenBy[owner][pid.Name()]
	if !ok || v.pkg != pid {
		return 0, false
	}
	return v.firstVisible, true
}

// publiclyExportsItem reports the age at which owner first publicly
// exported name as pid, or false if it never did (or currently exports a
// different package under that name).
func (pd *PublicDependency) publiclyExportsItem(owner id.PackageId, pid id.PackageId) (ContextAge, bool) {
	v, ok := pd.seenBy[owner][pid.Name()]
	if !ok || v.pkg != pid || v.firstExported == nil {
		return 0, false
	}
	return *v.firstExported, true
}

func (pd *PublicDependency) visit(owner, pkg id.PackageId, age ContextAge, exported bool) error {
	names := pd.seenBy[owner]
	if names == nil {
		names = make(map[id.ProjectRoot]visibility)
		pd.seenBy[owner] = names
	}

	v, ok := names[pkg.Name()]
	if !ok {
		v = visibility{pkg: pkg, firstVisible: age}
		if exported {
			a := age
			v.firstExported = &a
		}
		names[pkg.Name()] = v
		return nil
	}

	if v.pkg != pkg {
		return &ResolveError{
			Kind: PublicDependencyConflict,
			Message: fmt.Sprintf(
				"%s sees two different versions of %s publicly exported: %s and %s",
				owner, pkg.Name(), v.pkg, pkg,
			),
		}
	}
	if exported && v.firstExported == nil {
		a := age
		v.firstExported = &a
		names[pkg.Name()] = v
	}
	return nil
}

// AddEdge records that parent depends on child with the given public flag,
// at the given age, and propagates child's visibility to every ancestor of
// parent reached through an unbroken chain of public edges (spec.md §4.1:
// "the resolver walks Q's ancestors whose edge to Q was public
// (transitively) and attempts to make C visible to them").
func (pd *PublicDependency) AddEdge(ctx *Context, parent, child id.PackageId, public bool, age ContextAge) error {
	if err := pd.visit(parent, child, age, public); err != nil {
		return err
	}
	if !public {
		return nil
	}
	for _, anc := range publicAncestors(ctx, parent, make(map[id.PackageId]bool)) {
		if err := pd.visit(anc, child, age, true); err != nil {
			return err
		}
	}
	return nil
}

// publicAncestors returns every package reachable from pkg by following
// parent edges recorded as public, transitively, deduplicated.
func publicAncestors(ctx *Context, pkg id.PackageId, seen map[id.PackageId]bool) []id.PackageId {
	var out []id.PackageId
	for parent, public := range ctx.Parents(pkg) {
		if !public || seen[parent] {
			continue
		}
		seen[parent] = true
		out = append(out, parent)
		out = append(out, publicAncestors(ctx, parent, seen)...)
	}
	return out
}
