// Package model holds the data-model types shared by the registry façade,
// the resolver, and the unit graph builder: Dependency, Summary, and
// feature values (spec.md §3).
package model

import (
	"fmt"

	"github.com/forgepm/forge/internal/core/id"
	"github.com/forgepm/forge/internal/core/version"
)

// DependencyKind classifies when a dependency applies.
type DependencyKind uint8

const (
	// KindNormal dependencies are needed to build the library/binary itself.
	KindNormal DependencyKind = iota
	// KindBuild dependencies are needed only to compile a build script, and
	// always resolve for the host.
	KindBuild
	// KindDevelopment dependencies are needed only for tests/examples/
	// benchmarks, and are skipped entirely unless the package is the root
	// and the resolve opts into development dependencies.
	KindDevelopment
)

func (k DependencyKind) String() string {
	switch k {
	case KindNormal:
		return "normal"
	case KindBuild:
		return "build"
	case KindDevelopment:
		return "dev"
	default:
		return "unknown"
	}
}

// PlatformPredicate is an opaque cfg-like expression restricting a
// dependency to certain target platforms. An empty predicate matches all
// platforms; evaluation is left to the caller (the core treats it as data).
type PlatformPredicate string

// Matches reports whether the predicate admits the given target triple.
// The empty predicate matches everything; a non-empty predicate matches
// only an exact triple string, which is sufficient for the core's purposes
// (richer cfg expressions are an external-collaborator concern, §1).
func (p PlatformPredicate) Matches(targetTriple string) bool {
	return p == "" || string(p) == targetTriple
}

// Dependency is a request: a named, constrained reference to another
// package, as declared by a Summary (spec.md §3 "Dependency").
type Dependency struct {
	Name               id.ProjectRoot     // name as declared by the depender
	Rename             string             // optional local rename; "" if none
	Requirement        version.Requirement
	Kind               DependencyKind
	Platform           PlatformPredicate
	Features           []string // features to enable on the target, beyond defaults
	UsesDefaultFeatures bool
	Optional           bool
	Public             bool
}

// EffectiveName returns the name this dependency is referred to as within
// the depending package (its rename if set, else its declared name).
func (d Dependency) EffectiveName() id.ProjectRoot {
	if d.Rename != "" {
		return id.ProjectRoot(d.Rename)
	}
	return d.Name
}

func (d Dependency) String() string {
	if d.Rename != "" {
		return fmt.Sprintf("%s (as %s) %s", d.Name, d.Rename, d.Requirement)
	}
	return fmt.Sprintf("%s %s", d.Name, d.Requirement)
}

// FeatureValueKind classifies one entry in a feature's value list
// (spec.md §3 "A feature value is one of...").
type FeatureValueKind uint8

const (
	// FeatureBare enables another feature of the same package.
	FeatureBare FeatureValueKind = iota
	// FeatureDep ("dep:<name>") enables the optional dependency as a
	// compiled dep, without enabling a same-named feature.
	FeatureDep
	// FeatureDepFeature ("<dep>/<feat>") enables <dep> and activates <feat>
	// on it.
	FeatureDepFeature
	// FeatureWeakDepFeature ("<dep>?/<feat>") activates <feat> on <dep> only
	// if <dep> is independently enabled.
	FeatureWeakDepFeature
)

// FeatureValue is one parsed entry from a feature's value list.
type FeatureValue struct {
	Kind FeatureValueKind
	// Feature is the bare feature name (FeatureBare), or the target
	// feature name on a dependency (FeatureDepFeature/FeatureWeakDepFeature).
	Feature string
	// Dep is the dependency name (FeatureDep/FeatureDepFeature/
	// FeatureWeakDepFeature).
	Dep string
}

func (fv FeatureValue) String() string {
	switch fv.Kind {
	case FeatureDep:
		return "dep:" + fv.Dep
	case FeatureDepFeature:
		return fv.Dep + "/" + fv.Feature
	case FeatureWeakDepFeature:
		return fv.Dep + "?/" + fv.Feature
	default:
		return fv.Feature
	}
}

// ParseFeatureValue parses one raw feature-table entry into a FeatureValue,
// per spec.md §3's four forms.
func ParseFeatureValue(raw string) FeatureValue {
	if len(raw) > 4 && raw[:4] == "dep:" {
		return FeatureValue{Kind: FeatureDep, Dep: raw[4:]}
	}
	for i := 0; i < len(raw); i++ {
		if raw[i] == '/' {
			if i > 0 && raw[i-1] == '?' {
				return FeatureValue{Kind: FeatureWeakDepFeature, Dep: raw[:i-1], Feature: raw[i+1:]}
			}
			return FeatureValue{Kind: FeatureDepFeature, Dep: raw[:i], Feature: raw[i+1:]}
		}
	}
	return FeatureValue{Kind: FeatureBare, Feature: raw}
}

// FeatureTable maps a feature name to its list of feature values.
type FeatureTable map[string][]FeatureValue

// Summary is a resolvable description of one version of a package
// (spec.md §3 "Summary").
type Summary struct {
	ID           id.PackageId
	Dependencies []Dependency
	Features     FeatureTable
	// Links, if non-empty, names a native library this package uniquely
	// claims; at most one selected package may claim any given name
	// (spec.md §3 invariants).
	Links string
}

// HasDefaultFeature reports whether the summary declares a "default" feature.
func (s Summary) HasDefaultFeature() bool {
	_, ok := s.Features["default"]
	return ok
}
