package compiler

import (
	"strings"
	"testing"

	"github.com/forgepm/forge/internal/core/id"
	"github.com/forgepm/forge/internal/core/unitgraph"
)

func testUnit(t *testing.T) *unitgraph.Unit {
	t.Helper()
	in := id.NewInterner()
	pid := in.Intern("widget", "1.0.0", id.Source{Kind: id.SourceRegistry})
	return &unitgraph.Unit{
		Package: pid,
		Target:  unitgraph.Target{Name: "lib", Kind: unitgraph.TargetLibrary, Path: "src/lib.rs"},
	}
}

func TestBuildOrdersFeaturesAndExterns(t *testing.T) {
	u := testUnit(t)
	plan := BuildPlan{
		OutDir:   "/out/host/deps",
		Features: []string{"zeta", "alpha"},
		Externs: []ExternRef{
			{Name: "zlib", Artifact: "/out/libzlib.rlib"},
			{Name: "abc", Artifact: "/out/libabc.rlib"},
		},
		EmitKinds: []string{"link"},
	}
	cmd := Build(u, plan, "forge-compile")

	joined := strings.Join(cmd.Args, " ")
	if strings.Index(joined, "alpha") > strings.Index(joined, "zeta") {
		t.Fatalf("features not sorted: %s", joined)
	}
	if strings.Index(joined, "abc") > strings.Index(joined, "zlib") {
		t.Fatalf("externs not sorted: %s", joined)
	}
	if cmd.Program != "forge-compile" {
		t.Fatalf("unexpected program: %s", cmd.Program)
	}
}

func TestBuildSetsOutDirEnv(t *testing.T) {
	u := testUnit(t)
	plan := BuildPlan{OutDir: "/out", BuildScriptOutDir: "/out/build/widget-abc/out"}
	cmd := Build(u, plan, "forge-compile")

	found := false
	for _, e := range cmd.Env {
		if e == "OUT_DIR=/out/build/widget-abc/out" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected OUT_DIR in env, got %v", cmd.Env)
	}
}

func TestSanitizeUnitName(t *testing.T) {
	if got := sanitizeUnitName("my-widget.v2"); got != "my_widget_v2" {
		t.Fatalf("got %q", got)
	}
}
