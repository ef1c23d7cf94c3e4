package version

import "testing"

func TestCompatibility(t *testing.T) {
	cases := []struct {
		a, b    string
		compat  bool
	}{
		{"1.2.3", "1.9.0", true},
		{"1.2.3", "2.0.0", false},
		{"0.2.3", "0.2.9", true},
		{"0.2.3", "0.3.0", false},
		{"0.0.3", "0.0.9", false},
		{"0.0.3", "0.0.4", false},
	}

	for _, c := range cases {
		a, b := MustParse(c.a), MustParse(c.b)
		got := a.Compatibility() == b.Compatibility()
		if got != c.compat {
			t.Errorf("Compatibility(%s) == Compatibility(%s): got %v, want %v", c.a, c.b, got, c.compat)
		}
	}
}

func TestRequirementMatches(t *testing.T) {
	r := MustParseRequirement("^1.2")
	if !r.Matches(MustParse("1.3.0")) {
		t.Error("expected ^1.2 to match 1.3.0")
	}
	if r.Matches(MustParse("2.0.0")) {
		t.Error("expected ^1.2 to reject 2.0.0")
	}
}

func TestAnyRequirement(t *testing.T) {
	r := MustParseRequirement("")
	if !r.IsAny() {
		t.Fatal("expected empty requirement to be IsAny")
	}
	if !r.Matches(MustParse("0.0.1")) {
		t.Error("expected wildcard requirement to match anything")
	}
}

func TestSortDescending(t *testing.T) {
	vs := []Version{MustParse("1.0.0"), MustParse("1.2.0"), MustParse("0.9.0")}
	SortDescending(vs)
	want := []string{"1.2.0", "1.0.0", "0.9.0"}
	for i, w := range want {
		if vs[i].String() != w {
			t.Fatalf("SortDescending[%d] = %s, want %s", i, vs[i], w)
		}
	}
}

func TestSortAscending(t *testing.T) {
	vs := []Version{MustParse("1.0.0"), MustParse("1.2.0"), MustParse("0.9.0")}
	SortAscending(vs)
	want := []string{"0.9.0", "1.0.0", "1.2.0"}
	for i, w := range want {
		if vs[i].String() != w {
			t.Fatalf("SortAscending[%d] = %s, want %s", i, vs[i], w)
		}
	}
}

func TestParseInvalidVersion(t *testing.T) {
	if _, err := Parse("not-a-version"); err == nil {
		t.Fatal("expected error parsing invalid version")
	}
}
