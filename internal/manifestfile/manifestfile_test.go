package manifestfile

import (
	"testing"

	"github.com/forgepm/forge/internal/core/id"
)

const sampleManifest = `
[package]
name = "widget"
version = "1.2.0"
links = "widget_native"

[dependencies]
serializer = { version = "^2.0", features = ["derive"] }
logger = { version = "*", optional = true, default-features = false }

[build-dependencies]
codegen = { version = "~1.0" }

[dev-dependencies]
harness = { version = "1.0.0" }

[features]
default = ["derive"]
derive = ["dep:serializer"]
`

func TestParseBasicManifest(t *testing.T) {
	in := id.NewInterner()
	summary, err := Parse(in, []byte(sampleManifest))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if summary.ID.Name() != "widget" {
		t.Fatalf("expected package name widget, got %s", summary.ID.Name())
	}
	if summary.ID.VersionString() != "1.2.0" {
		t.Fatalf("expected version 1.2.0, got %s", summary.ID.VersionString())
	}
	if summary.Links != "widget_native" {
		t.Fatalf("expected links widget_native, got %s", summary.Links)
	}
	if len(summary.Dependencies) != 4 {
		t.Fatalf("expected 4 dependencies, got %d", len(summary.Dependencies))
	}

	var sawLogger, sawCodegen, sawHarness bool
	for _, d := range summary.Dependencies {
		switch d.Name {
		case "logger":
			sawLogger = true
			if !d.Optional || d.UsesDefaultFeatures {
				t.Fatal("expected logger to be optional with default-features disabled")
			}
		case "codegen":
			sawCodegen = true
			if d.Kind.String() != "build" {
				t.Fatalf("expected codegen to be a build dependency, got %s", d.Kind)
			}
		case "harness":
			sawHarness = true
			if d.Kind.String() != "dev" {
				t.Fatalf("expected harness to be a dev dependency, got %s", d.Kind)
			}
		}
	}
	if !sawLogger || !sawCodegen || !sawHarness {
		t.Fatal("missing an expected dependency entry")
	}

	if _, ok := summary.Features["default"]; !ok {
		t.Fatal("expected a default feature entry")
	}
}

func TestParseMissingPackageName(t *testing.T) {
	in := id.NewInterner()
	_, err := Parse(in, []byte("[package]\nversion = \"1.0.0\"\n"))
	if err == nil {
		t.Fatal("expected an error for a manifest missing [package].name")
	}
}

func TestParseInvalidRequirement(t *testing.T) {
	in := id.NewInterner()
	bad := `
[package]
name = "widget"
version = "1.0.0"

[dependencies]
broken = { version = "not a version" }
`
	if _, err := Parse(in, []byte(bad)); err == nil {
		t.Fatal("expected an error for an unparsable dependency requirement")
	}
}
