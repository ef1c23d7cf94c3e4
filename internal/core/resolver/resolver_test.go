package resolver

import (
	"testing"

	"github.com/forgepm/forge/internal/core/id"
	"github.com/forgepm/forge/internal/core/model"
	"github.com/forgepm/forge/internal/core/registry"
	"github.com/forgepm/forge/internal/core/version"
)

// depspec is a tiny fixture-construction helper in the style of
// internal/gps's solve_test.go basicFixtures table: name@version with a
// flat list of (name, requirement) dependency declarations.
func depspec(in *id.Interner, nameAt string, deps ...string) model.Summary {
	name, ver := splitAt(nameAt)
	s := model.Summary{ID: in.Intern(id.ProjectRoot(name), ver, id.Source{Kind: id.SourceRegistry})}
	for _, d := range deps {
		depName, req := splitReq(d)
		s.Dependencies = append(s.Dependencies, model.Dependency{
			Name:        id.ProjectRoot(depName),
			Requirement: version.MustParseRequirement(req),
		})
	}
	return s
}

func splitAt(s string) (name, ver string) {
	for i := 0; i < len(s); i++ {
		if s[i] == '@' {
			return s[:i], s[i+1:]
		}
	}
	return s, "1.0.0"
}

func splitReq(s string) (name, req string) {
	for i := 0; i < len(s); i++ {
		if s[i] == ' ' {
			return s[:i], s[i+1:]
		}
	}
	return s, "*"
}

func TestSolveSimpleChain(t *testing.T) {
	in := id.NewInterner()
	root := depspec(in, "root@0.1.0", "a ^1.0")
	a := depspec(in, "a@1.2.0", "b ^2.0")
	b := depspec(in, "b@2.0.0")

	reg := registry.NewMemory([]model.Summary{a, b})

	resolve, err := Solve(root, nil, true, Options{}, reg)
	if err != nil {
		t.Fatal(err)
	}

	if len(resolve.Nodes) != 3 {
		t.Fatalf("expected 3 activated nodes (root, a, b), got %d", len(resolve.Nodes))
	}
	if _, ok := resolve.Nodes[a.ID]; !ok {
		t.Error("expected a to be activated")
	}
	if _, ok := resolve.Nodes[b.ID]; !ok {
		t.Error("expected b to be activated")
	}
}

func TestSolveUnsatisfiable(t *testing.T) {
	in := id.NewInterner()
	root := depspec(in, "root@0.1.0", "a ^2.0")
	a := depspec(in, "a@1.0.0")

	reg := registry.NewMemory([]model.Summary{a})

	_, err := Solve(root, nil, true, Options{}, reg)
	if err == nil {
		t.Fatal("expected resolution to fail: no candidate of a satisfies ^2.0")
	}
	re, ok := err.(*ResolveError)
	if !ok {
		t.Fatalf("expected *ResolveError, got %T", err)
	}
	if re.Kind != Unsatisfiable {
		t.Fatalf("expected Unsatisfiable, got %v", re.Kind)
	}
}

func TestSolvePicksCompatibleVersionClass(t *testing.T) {
	in := id.NewInterner()
	root := depspec(in, "root@0.1.0", "a ^1.0", "b ^1.0")
	a := depspec(in, "a@1.0.0", "shared ^1.0")
	b := depspec(in, "b@1.0.0", "shared ^1.1")
	sharedOld := depspec(in, "shared@1.0.5")
	sharedNew := depspec(in, "shared@1.2.0")

	reg := registry.NewMemory([]model.Summary{a, b, sharedOld, sharedNew})

	resolve, err := Solve(root, nil, true, Options{}, reg)
	if err != nil {
		t.Fatal(err)
	}

	// Only one semver-compatible activation of "shared" may exist.
	var sharedCount int
	for pid := range resolve.Nodes {
		if pid.Name() == "shared" {
			sharedCount++
		}
	}
	if sharedCount != 1 {
		t.Fatalf("expected exactly one activation of shared, got %d", sharedCount)
	}
}

func TestSolveLinksConflict(t *testing.T) {
	in := id.NewInterner()
	root := depspec(in, "root@0.1.0", "a ^1.0", "b ^1.0")
	a := depspec(in, "a@1.0.0")
	a.Links = "foo"
	b := depspec(in, "b@1.0.0")
	b.Links = "foo"

	reg := registry.NewMemory([]model.Summary{a, b})

	_, err := Solve(root, nil, true, Options{}, reg)
	if err == nil {
		t.Fatal("expected links conflict between a and b")
	}
}

func TestFeatureExpansionDepColon(t *testing.T) {
	in := id.NewInterner()
	root := model.Summary{
		ID: in.Intern("root", "0.1.0", id.Source{}),
		Dependencies: []model.Dependency{
			{Name: "optdep", Requirement: version.MustParseRequirement("*"), Optional: true},
		},
		Features: model.FeatureTable{
			"on": {model.ParseFeatureValue("dep:optdep")},
		},
	}
	optdep := depspec(in, "optdep@1.0.0")

	reg := registry.NewMemory([]model.Summary{optdep})

	resolve, err := Solve(root, []string{"on"}, false, Options{}, reg)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := resolve.Nodes[optdep.ID]; !ok {
		t.Fatal("expected dep:optdep feature to activate the optional dependency")
	}
}
