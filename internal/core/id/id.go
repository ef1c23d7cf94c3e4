// Package id implements the interned package identity used throughout the
// resolver, unit graph, and fingerprint engine: names, sources, and the
// (name, version, source) triple that uniquely identifies one resolvable
// package.
//
// Grounded on internal/gps's ProjectIdentifier/ProjectRoot (constraints.go,
// checks.go) and the PackageId interning scheme spec.md §3 describes,
// used as a cheap copyable hash-map key throughout the resolver.
package id

import (
	"fmt"
	"sync"
)

// ProjectRoot is the import-path-root-like name of a package: the name a
// dependency declares, independent of where it is actually fetched from.
type ProjectRoot string

// SourceKind distinguishes where a package's content is fetched from.
type SourceKind uint8

const (
	// SourceRegistry is the default: content is fetched from the central
	// package registry by (name, version).
	SourceRegistry SourceKind = iota
	// SourcePath is a local filesystem path dependency.
	SourcePath
	// SourcePinned is a dependency pinned to a specific upstream revision
	// (e.g. a VCS commit), bypassing the registry's version list.
	SourcePinned
)

func (k SourceKind) String() string {
	switch k {
	case SourceRegistry:
		return "registry"
	case SourcePath:
		return "path"
	case SourcePinned:
		return "pinned"
	default:
		return "unknown"
	}
}

// Source is a package's opaque origin: a registry URL and kind, a local
// path, or a pinned revision locator.
type Source struct {
	Kind     SourceKind
	Location string // registry URL, filesystem path, or revision locator
}

func (s Source) String() string {
	if s.Location == "" {
		return s.Kind.String()
	}
	return fmt.Sprintf("%s+%s", s.Kind, s.Location)
}

// PackageId is the triple (name, version, source) that uniquely identifies
// one resolvable version of one package. PackageId values returned by Intern
// are comparable with ==, so the resolver can use them directly as cheap
// hash-map keys.
type PackageId struct {
	entry *internedEntry
}

type internedEntry struct {
	name    ProjectRoot
	version string // canonical version string; compared via the version package
	source  Source
}

// Name returns the package's declared name.
func (p PackageId) Name() ProjectRoot { return p.entry.name }

// VersionString returns the canonical string form of the package's version.
func (p PackageId) VersionString() string { return p.entry.version }

// Source returns the package's origin.
func (p PackageId) Source() Source { return p.entry.source }

// IsZero reports whether p is the zero value (no package interned).
func (p PackageId) IsZero() bool { return p.entry == nil }

func (p PackageId) String() string {
	if p.IsZero() {
		return "(nil)"
	}
	return fmt.Sprintf("%s@%s", p.entry.name, p.entry.version)
}

// Interner interns PackageId triples so that equal triples always produce
// identical PackageId values, making equality and use as a map key pointer-
// fast. An Interner is owned by whoever constructs a Registry/Resolver; it
// is deliberately not a package-level singleton (see the "avoid global
// state" design note carried over from the teacher).
type Interner struct {
	mu      sync.Mutex
	entries map[internedEntry]*internedEntry
}

// NewInterner constructs an empty Interner.
func NewInterner() *Interner {
	return &Interner{entries: make(map[internedEntry]*internedEntry)}
}

// Intern returns the canonical PackageId for the given triple, allocating a
// new interned entry only the first time a given triple is seen.
func (in *Interner) Intern(name ProjectRoot, version string, source Source) PackageId {
	key := internedEntry{name: name, version: version, source: source}

	in.mu.Lock()
	defer in.mu.Unlock()
	if e, ok := in.entries[key]; ok {
		return PackageId{entry: e}
	}
	e := key
	in.entries[key] = &e
	return PackageId{entry: &e}
}
