package fingerprint

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/forgepm/forge/internal/core/id"
	"github.com/forgepm/forge/internal/core/unitgraph"
)

func testUnit() *unitgraph.Unit {
	in := id.NewInterner()
	pid := in.Intern("widget", "1.0.0", id.Source{Kind: id.SourceRegistry})
	return &unitgraph.Unit{
		Package: pid,
		Target:  unitgraph.Target{Name: "lib", Kind: unitgraph.TargetLibrary, Path: "src/lib.rs"},
		Profile: unitgraph.Profile{OptLevel: "0"},
	}
}

func TestComputeIsDeterministic(t *testing.T) {
	u := testUnit()
	in := Inputs{Features: []string{"b", "a"}, HostTriple: "x86_64", ContentMarker: "v1"}

	fp1 := Compute(u, in)
	fp2 := Compute(u, in)
	if fp1.Hash != fp2.Hash {
		t.Fatalf("expected identical hashes for identical inputs, got %s vs %s", fp1.Hash, fp2.Hash)
	}
}

func TestComputeIsSensitiveToFeatureSet(t *testing.T) {
	u := testUnit()
	base := Inputs{Features: []string{"a"}, ContentMarker: "v1"}
	changed := Inputs{Features: []string{"a", "b"}, ContentMarker: "v1"}

	fp1 := Compute(u, base)
	fp2 := Compute(u, changed)
	if fp1.Hash == fp2.Hash {
		t.Fatal("expected different hashes when the feature set changes")
	}
}

func TestComputeIsSensitiveToContentMarker(t *testing.T) {
	u := testUnit()
	fp1 := Compute(u, Inputs{ContentMarker: "v1"})
	fp2 := Compute(u, Inputs{ContentMarker: "v2"})
	if fp1.Hash == fp2.Hash {
		t.Fatal("expected different hashes when the content marker changes")
	}
}

func TestIsFreshRoundTrip(t *testing.T) {
	dir := t.TempDir()
	u := testUnit()
	fp := Compute(u, Inputs{ContentMarker: "v1"})

	if err := Persist(dir, fp); err != nil {
		t.Fatalf("Persist: %v", err)
	}

	fresh, err := IsFresh(dir, fp, nil, true)
	if err != nil {
		t.Fatalf("IsFresh: %v", err)
	}
	if !fresh {
		t.Fatal("expected unit to be fresh immediately after persisting a matching fingerprint")
	}

	stale, err := IsFresh(dir, fp, []FileMarker{{Path: "src/lib.rs", Mtime: time.Now().Add(time.Hour)}}, true)
	if err != nil {
		t.Fatalf("IsFresh: %v", err)
	}
	if stale {
		t.Fatal("expected unit to be stale when a declared input is newer than the watermark")
	}
}

func TestIsFreshFalseWhenDepsNotFresh(t *testing.T) {
	dir := t.TempDir()
	u := testUnit()
	fp := Compute(u, Inputs{ContentMarker: "v1"})
	if err := Persist(dir, fp); err != nil {
		t.Fatalf("Persist: %v", err)
	}

	fresh, err := IsFresh(dir, fp, nil, false)
	if err != nil {
		t.Fatalf("IsFresh: %v", err)
	}
	if fresh {
		t.Fatal("expected unit to be stale when a dependency was not fresh")
	}
}

func TestIsFreshFalseWhenNoRecord(t *testing.T) {
	dir := t.TempDir()
	u := testUnit()
	fp := Compute(u, Inputs{ContentMarker: "v1"})

	fresh, err := IsFresh(dir, fp, nil, true)
	if err != nil {
		t.Fatalf("IsFresh: %v", err)
	}
	if fresh {
		t.Fatal("expected unit to be stale with no persisted record")
	}
}

func TestEnumerateSourceFilesSkipsVendor(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "vendor", "dep"), 0777); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "vendor", "dep", "x.go"), []byte("x"), 0666); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "main.go"), []byte("package main"), 0666); err != nil {
		t.Fatal(err)
	}

	files, err := EnumerateSourceFiles(root)
	if err != nil {
		t.Fatalf("EnumerateSourceFiles: %v", err)
	}
	for _, f := range files {
		if filepath.Base(filepath.Dir(f.Path)) == "dep" {
			t.Fatalf("expected vendor directory to be skipped, found %s", f.Path)
		}
	}
	foundMain := false
	for _, f := range files {
		if filepath.Base(f.Path) == "main.go" {
			foundMain = true
		}
	}
	if !foundMain {
		t.Fatal("expected main.go to be enumerated")
	}
}
