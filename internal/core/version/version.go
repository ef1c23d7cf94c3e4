// Package version wraps semver versions and requirements with the
// compatibility-class logic the resolver depends on (spec.md §4.1).
//
// Grounded on vendor/github.com/sdboyer/gps/constraints.go (the Constraint
// interface, anyConstraint/noneConstraint wildcard types) and the
// compatibility-class enum described in spec.md §4.1. Uses
// github.com/Masterminds/semver/v3, the maintained successor of the
// teacher's vendored Masterminds/semver.
package version

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
	"github.com/pkg/errors"
)

// Version is an immutable, parsed semantic version.
type Version struct {
	sv  *semver.Version
	raw string
}

// Parse parses a semver string into a Version.
func Parse(raw string) (Version, error) {
	sv, err := semver.NewVersion(raw)
	if err != nil {
		return Version{}, errors.Wrapf(err, "invalid version %q", raw)
	}
	return Version{sv: sv, raw: raw}, nil
}

// MustParse is like Parse but panics on error; intended for fixtures/tests.
func MustParse(raw string) Version {
	v, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return v
}

func (v Version) String() string {
	if v.sv == nil {
		return v.raw
	}
	return v.sv.Original()
}

// Compare returns -1, 0, or 1 as v is less than, equal to, or greater than o.
func (v Version) Compare(o Version) int { return v.sv.Compare(o.sv) }

// LessThan reports whether v sorts before o; used to sort candidates
// descending (default) or ascending ("minimal versions" mode, spec.md §4.1
// step 1).
func (v Version) LessThan(o Version) bool { return v.Compare(o) < 0 }

// Compatibility computes the semver-compatibility class of v: the
// left-most non-zero component (major for X>=1, else minor for 0.Y, else
// patch), per spec.md §4.1's definition.
func (v Version) Compatibility() Compatibility {
	if maj := v.sv.Major(); maj != 0 {
		return Compatibility{band: bandMajor, n: maj}
	}
	if min := v.sv.Minor(); min != 0 {
		return Compatibility{band: bandMinor, n: min}
	}
	return Compatibility{band: bandPatch, n: v.sv.Patch()}
}

// Compatibility identifies the semver-compatibility equivalence class of a
// version: two versions are compatible iff their Compatibility values are
// equal. Comparable with ==, so it can key a map directly.
type Compatibility struct {
	band band
	n    uint64
}

type band uint8

const (
	bandMajor band = iota
	bandMinor
	bandPatch
)

func (c Compatibility) String() string {
	switch c.band {
	case bandMajor:
		return fmt.Sprintf("major:%d", c.n)
	case bandMinor:
		return fmt.Sprintf("0.minor:%d", c.n)
	default:
		return fmt.Sprintf("0.0.patch:%d", c.n)
	}
}

// Requirement is a version requirement (a constraint expression as declared
// by a Dependency), e.g. "^1.2", "=2.0.0", "*".
type Requirement struct {
	c   *semver.Constraints
	any bool
	raw string
}

// ParseRequirement parses a requirement string. An empty string or "*"
// produces the wildcard requirement, matching any version.
func ParseRequirement(raw string) (Requirement, error) {
	if raw == "" || raw == "*" {
		return Requirement{any: true, raw: "*"}, nil
	}
	c, err := semver.NewConstraint(raw)
	if err != nil {
		return Requirement{}, errors.Wrapf(err, "invalid version requirement %q", raw)
	}
	return Requirement{c: c, raw: raw}, nil
}

// MustParseRequirement is like ParseRequirement but panics on error;
// intended for fixtures/tests.
func MustParseRequirement(raw string) Requirement {
	r, err := ParseRequirement(raw)
	if err != nil {
		panic(err)
	}
	return r
}

func (r Requirement) String() string {
	if r.any {
		return "*"
	}
	return r.raw
}

// Matches reports whether v satisfies the requirement.
func (r Requirement) Matches(v Version) bool {
	if r.any {
		return true
	}
	return r.c.Check(v.sv)
}

// IsAny reports whether r is the wildcard requirement.
func (r Requirement) IsAny() bool { return r.any }

// SortDescending sorts versions from newest to oldest — the default
// candidate order (spec.md §4.1 step 1).
func SortDescending(vs []Version) {
	sortVersions(vs, func(a, b Version) bool { return b.LessThan(a) })
}

// SortAscending sorts versions from oldest to newest, for the "minimal
// versions" resolution mode (spec.md §4.1 step 1).
func SortAscending(vs []Version) {
	sortVersions(vs, func(a, b Version) bool { return a.LessThan(b) })
}

func sortVersions(vs []Version, less func(a, b Version) bool) {
	// Insertion sort: candidate lists are small (one registry's versions of
	// one package), and a dependency-free sort keeps this package import-
	// clean of sort.Interface boilerplate for a single use site.
	for i := 1; i < len(vs); i++ {
		for j := i; j > 0 && less(vs[j], vs[j-1]); j-- {
			vs[j], vs[j-1] = vs[j-1], vs[j]
		}
	}
}
