package id

import "testing"

func TestInternReturnsCanonicalValue(t *testing.T) {
	in := NewInterner()
	src := Source{Kind: SourceRegistry, Location: "https://example.test/index"}

	a := in.Intern("example.com/foo", "1.2.3", src)
	b := in.Intern("example.com/foo", "1.2.3", src)

	if a != b {
		t.Fatalf("expected interned PackageIds to compare equal, got %v != %v", a, b)
	}
}

func TestInternDistinguishesVersion(t *testing.T) {
	in := NewInterner()
	src := Source{Kind: SourceRegistry}

	a := in.Intern("example.com/foo", "1.0.0", src)
	b := in.Intern("example.com/foo", "1.0.1", src)

	if a == b {
		t.Fatal("expected different versions to intern to different PackageIds")
	}
}

func TestZeroPackageId(t *testing.T) {
	var p PackageId
	if !p.IsZero() {
		t.Fatal("expected zero-value PackageId to report IsZero")
	}
	if p.String() != "(nil)" {
		t.Fatalf("unexpected String() for zero PackageId: %q", p.String())
	}
}

func TestSourceString(t *testing.T) {
	s := Source{Kind: SourcePath, Location: "/tmp/foo"}
	if got, want := s.String(), "path+/tmp/foo"; got != want {
		t.Fatalf("Source.String() = %q, want %q", got, want)
	}

	empty := Source{Kind: SourceRegistry}
	if got, want := empty.String(), "registry"; got != want {
		t.Fatalf("Source.String() = %q, want %q", got, want)
	}
}
