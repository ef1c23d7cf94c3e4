// Package registry implements the C2 registry façade: an abstract query
// interface returning candidate Summaries for a Dependency, plus a
// persistent disk cache over it.
//
// Grounded on internal/gps/registry.go (registrySource, rawVersions — the
// query shape) and internal/gps/source_cache_bolt.go (the persistent-cache
// pattern, directly importing github.com/boltdb/bolt as the teacher does).
package registry

import (
	"github.com/pkg/errors"

	"github.com/forgepm/forge/internal/core/id"
	"github.com/forgepm/forge/internal/core/model"
)

// QueryKind selects how a Registry resolves a dependency's candidates,
// matching spec.md §6's external interface.
type QueryKind uint8

const (
	// Exact returns only non-yanked candidates matching the dependency.
	Exact QueryKind = iota
	// RejectedVersions additionally includes yanked versions, for
	// diagnosing why a previously-working lock no longer resolves.
	RejectedVersions
	// AlternativeNames considers renamed/alias forms of the dependency's
	// name.
	AlternativeNames
	// Normalized applies name normalization (case/hyphen folding) before
	// querying.
	Normalized
)

// ErrNotFound is returned when a registry has no knowledge of a package at
// all (as opposed to having no candidates matching a requirement).
var ErrNotFound = errors.New("package not found in registry")

// Registry is the abstract query interface the resolver consults for
// candidate Summaries. It is the sole boundary between the core and the
// out-of-scope network registry client (spec.md §1, §6).
type Registry interface {
	// Query streams candidate Summaries satisfying dep's name (subject to
	// kind), in no particular order; the resolver sorts them itself
	// (spec.md §4.1 step 1).
	Query(dep model.Dependency, kind QueryKind) ([]model.Summary, error)

	// DescribeSource returns a short, human-readable description of where a
	// PackageId's content comes from, for diagnostics.
	DescribeSource(pid id.PackageId) (string, error)

	// BlockUntilReady lets the registry finish any outstanding background
	// warm-up (e.g. an index sync) before the resolver starts querying it.
	BlockUntilReady() error
}
