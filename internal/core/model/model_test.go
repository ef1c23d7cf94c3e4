package model

import "testing"

func TestParseFeatureValue(t *testing.T) {
	cases := []struct {
		raw  string
		kind FeatureValueKind
		dep  string
		feat string
	}{
		{"bare", FeatureBare, "", "bare"},
		{"dep:serde", FeatureDep, "serde", ""},
		{"serde/derive", FeatureDepFeature, "serde", "derive"},
		{"serde?/derive", FeatureWeakDepFeature, "serde", "derive"},
	}

	for _, c := range cases {
		fv := ParseFeatureValue(c.raw)
		if fv.Kind != c.kind || fv.Dep != c.dep || fv.Feature != c.feat {
			t.Errorf("ParseFeatureValue(%q) = %+v, want kind=%v dep=%q feat=%q", c.raw, fv, c.kind, c.dep, c.feat)
		}
		if fv.String() != c.raw {
			t.Errorf("FeatureValue(%q).String() = %q, want %q", c.raw, fv.String(), c.raw)
		}
	}
}

func TestEffectiveName(t *testing.T) {
	d := Dependency{Name: "upstream"}
	if d.EffectiveName() != "upstream" {
		t.Fatalf("expected unrenamed dependency to use its declared name")
	}
	d.Rename = "alias"
	if d.EffectiveName() != "alias" {
		t.Fatalf("expected renamed dependency to use its rename")
	}
}

func TestPlatformPredicateMatches(t *testing.T) {
	var empty PlatformPredicate
	if !empty.Matches("x86_64-unknown-linux-gnu") {
		t.Error("expected empty predicate to match any target")
	}

	p := PlatformPredicate("x86_64-pc-windows-msvc")
	if p.Matches("x86_64-unknown-linux-gnu") {
		t.Error("expected predicate to reject a non-matching target")
	}
	if !p.Matches("x86_64-pc-windows-msvc") {
		t.Error("expected predicate to match its own target")
	}
}

func TestHasDefaultFeature(t *testing.T) {
	s := Summary{Features: FeatureTable{"default": nil}}
	if !s.HasDefaultFeature() {
		t.Fatal("expected HasDefaultFeature to report true")
	}
	s2 := Summary{Features: FeatureTable{}}
	if s2.HasDefaultFeature() {
		t.Fatal("expected HasDefaultFeature to report false")
	}
}
