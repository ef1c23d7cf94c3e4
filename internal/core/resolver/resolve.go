package resolver

import (
	"sort"

	"github.com/forgepm/forge/internal/core/id"
	"github.com/forgepm/forge/internal/core/model"
)

// Node is one activated package in a Resolve: its selected Summary and the
// final set of activated feature names.
type Node struct {
	Summary  model.Summary
	Features map[string]bool
}

// Edge is one fulfilled dependency edge in a Resolve.
type Edge struct {
	From id.PackageId
	To   id.PackageId
	Dep  model.Dependency
}

// Resolve is the finalized output of the resolver (spec.md §3 "Resolve"):
// read-only after construction.
type Resolve struct {
	Nodes map[id.PackageId]Node
	Edges []Edge
}

// SortedNodes returns the resolve's nodes ordered stably by name, then
// version, then source (spec.md §4.1 step 7).
func (r *Resolve) SortedNodes() []Node {
	out := make([]Node, 0, len(r.Nodes))
	for _, n := range r.Nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Summary.ID, out[j].Summary.ID
		if a.Name() != b.Name() {
			return a.Name() < b.Name()
		}
		if a.VersionString() != b.VersionString() {
			return a.VersionString() < b.VersionString()
		}
		return a.Source().String() < b.Source().String()
	})
	return out
}

// Features returns the activated feature set for pid, or nil if pid was not
// activated.
func (r *Resolve) Features(pid id.PackageId) map[string]bool {
	return r.Nodes[pid].Features
}
