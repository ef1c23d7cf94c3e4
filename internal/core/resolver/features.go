package resolver

import (
	"fmt"

	"github.com/forgepm/forge/internal/core/id"
	"github.com/forgepm/forge/internal/core/model"
)

// Expansion is the result of expanding one package's requested feature set:
// which of its dependencies must be included, the extra features each must
// be requested with, and which dependency/feature pairs are only weakly
// requested pending that dependency's independent activation (spec.md
// §4.1 "Feature expansion").
type Expansion struct {
	Activate map[id.ProjectRoot]bool
	Strong   map[id.ProjectRoot]map[string]bool
	Weak     map[id.ProjectRoot]map[string]bool
}

func newExpansion() *Expansion {
	return &Expansion{
		Activate: make(map[id.ProjectRoot]bool),
		Strong:   make(map[id.ProjectRoot]map[string]bool),
		Weak:     make(map[id.ProjectRoot]map[string]bool),
	}
}

func (e *Expansion) addStrong(dep id.ProjectRoot, feature string) {
	m := e.Strong[dep]
	if m == nil {
		m = make(map[string]bool)
		e.Strong[dep] = m
	}
	if feature != "" {
		m[feature] = true
	}
}

func (e *Expansion) addWeak(dep id.ProjectRoot, feature string) {
	m := e.Weak[dep]
	if m == nil {
		m = make(map[string]bool)
		e.Weak[dep] = m
	}
	m[feature] = true
}

// ExpandFeatures walks summary's feature table starting from requested
// (plus "default" when usesDefault and summary declares one), following
// bare-feature references and recording dep:/D-feat/D?-feat edges, per
// spec.md §4.1's four feature-value forms.
func ExpandFeatures(summary model.Summary, requested map[string]bool, usesDefault bool) (*Expansion, error) {
	exp := newExpansion()

	worklist := make([]string, 0, len(requested)+1)
	for f := range requested {
		worklist = append(worklist, f)
	}
	if usesDefault && summary.HasDefaultFeature() {
		worklist = append(worklist, "default")
	}

	visited := make(map[string]bool)
	visiting := make(map[string]bool)

	var expand func(name string) error
	expand = func(name string) error {
		if visited[name] {
			return nil
		}
		if visiting[name] {
			return &ResolveError{
				Kind:    CyclicDependency,
				Message: fmt.Sprintf("feature `%s` of %s is defined in terms of itself", name, summary.ID),
			}
		}

		values, ok := summary.Features[name]
		if !ok {
			// A bare name that isn't a declared feature might still name an
			// optional dependency directly; anything else is an error.
			found := false
			for _, d := range summary.Dependencies {
				if d.Optional && string(d.EffectiveName()) == name {
					exp.Activate[d.Name] = true
					found = true
					break
				}
			}
			if !found {
				return &ResolveError{
					Kind:    FeatureNotFound,
					Message: fmt.Sprintf("feature `%s` does not exist on %s", name, summary.ID),
				}
			}
			visited[name] = true
			return nil
		}

		visiting[name] = true
		for _, v := range values {
			switch v.Kind {
			case model.FeatureBare:
				if err := expand(v.Feature); err != nil {
					return err
				}
			case model.FeatureDep:
				exp.Activate[id.ProjectRoot(v.Dep)] = true
			case model.FeatureDepFeature:
				exp.Activate[id.ProjectRoot(v.Dep)] = true
				exp.addStrong(id.ProjectRoot(v.Dep), v.Feature)
			case model.FeatureWeakDepFeature:
				exp.addWeak(id.ProjectRoot(v.Dep), v.Feature)
			}
		}
		delete(visiting, name)
		visited[name] = true
		return nil
	}

	for _, f := range worklist {
		if err := expand(f); err != nil {
			return nil, err
		}
	}

	return exp, nil
}

// IncludedDependencies returns summary's dependency edges that participate
// given exp: every non-optional dependency, plus any optional dependency exp
// marked for activation.
func IncludedDependencies(summary model.Summary, exp *Expansion) []model.Dependency {
	var out []model.Dependency
	for _, d := range summary.Dependencies {
		if !d.Optional || exp.Activate[d.Name] || exp.Activate[d.EffectiveName()] {
			out = append(out, d)
		}
	}
	return out
}

// ChildFeatures computes the requested feature set to activate dep with,
// given exp and dep's own declared Features list, plus any weak features
// promoted to strong because dep ended up independently activated
// elsewhere (promotedWeak may be nil).
func ChildFeatures(dep model.Dependency, exp *Expansion, promotedWeak map[string]bool) map[string]bool {
	out := make(map[string]bool, len(dep.Features))
	for _, f := range dep.Features {
		out[f] = true
	}
	for f := range exp.Strong[dep.Name] {
		out[f] = true
	}
	for f := range exp.Strong[dep.EffectiveName()] {
		out[f] = true
	}
	for f := range promotedWeak {
		out[f] = true
	}
	return out
}
