package resolver

import (
	"fmt"
	"strings"

	"github.com/forgepm/forge/internal/core/id"
)

// ErrorKind classifies a resolution failure. internal/gps's own solver
// error types (noVersionError and friends) aren't present in this source
// tree, so this follows the taxonomy spec.md §4.1/§7 describes directly:
// one kind enum plus a single carrier type so every resolution failure can
// render a dependency-chain trace uniformly.
type ErrorKind uint8

const (
	// Unsatisfiable: no candidate set exists for some dependency.
	Unsatisfiable ErrorKind = iota
	// CyclicDependency: a non-development cycle was detected.
	CyclicDependency
	// LinksConflict: two activated packages claim the same links name.
	LinksConflict
	// PublicDependencyConflict: two versions of a transitively-public
	// dependency became visible to the same package.
	PublicDependencyConflict
	// FeatureNotFound: a requested feature or dependency-feature does not
	// exist on the package it was requested against.
	FeatureNotFound
)

func (k ErrorKind) String() string {
	switch k {
	case Unsatisfiable:
		return "unsatisfiable"
	case CyclicDependency:
		return "cyclic dependency"
	case LinksConflict:
		return "links conflict"
	case PublicDependencyConflict:
		return "public dependency conflict"
	case FeatureNotFound:
		return "feature not found"
	default:
		return "resolution error"
	}
}

// Frame is one link in the dependency chain that led to a ResolveError,
// outermost (the root) first.
type Frame struct {
	Package id.PackageId
	Via     string // e.g. the dependency name/feature edge taken to the next frame
}

// ResolveError is the single error type the resolver returns; Kind
// discriminates the taxonomy, and Chain renders the dependency path that
// produced it (spec.md: "the error must include the dependency chain that
// forced the conflict").
type ResolveError struct {
	Kind    ErrorKind
	Message string
	Chain   []Frame
}

func (e *ResolveError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Kind, e.Message)
	if len(e.Chain) > 0 {
		b.WriteString("\nrequired by:")
		for _, f := range e.Chain {
			if f.Via != "" {
				fmt.Fprintf(&b, "\n  %s (via %s)", f.Package, f.Via)
			} else {
				fmt.Fprintf(&b, "\n  %s", f.Package)
			}
		}
	}
	return b.String()
}

