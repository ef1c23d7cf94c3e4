// Package fingerprint implements C5: computing and comparing per-unit
// content/environment hashes to decide build freshness (spec.md §4.3).
//
// Grounded on spec.md §4.3's ordered hash-input list directly (no teacher
// file performs this; golang-dep never compiles). Persisted-record shape
// (hash + description + mtime watermark) follows internal/gps's general
// small-on-disk-record pattern; enumerates path-dependency source files
// with github.com/karrick/godirwalk, the teacher's vendored fast walker,
// instead of filepath.Walk.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/karrick/godirwalk"
	"github.com/pkg/errors"

	"github.com/forgepm/forge/internal/core/id"
	"github.com/forgepm/forge/internal/core/unitgraph"
)

// CompilerIdentity names the compiler whose output a fingerprint is valid
// for (spec.md §4.3 item 6).
type CompilerIdentity struct {
	Version      string
	HostTriple   string
}

// EnvVar is a (name, value-or-unset) pair the unit's source reads via an
// env-intrinsic (spec.md §4.3 item 10).
type EnvVar struct {
	Name    string
	Value   string
	IsUnset bool
}

// Inputs bundles everything Compute needs beyond the unit and its already-
// computed dependency fingerprints.
type Inputs struct {
	Features         []string
	HostTriple       string
	TargetTriple     string
	CompilerFlags    []string
	Compiler         CompilerIdentity
	DependencyPrints []string // hex digests of each dependency unit's already-computed fingerprint
	// SourceFiles lists (path, mtime) pairs for editable/local sources;
	// empty when ContentMarker is set instead (spec.md §4.3 item 8).
	SourceFiles   []FileMarker
	ContentMarker string
	// BuildScriptInputs are extra file paths discovered after the unit's
	// build script ran (spec.md §4.3 item 9).
	BuildScriptInputs []FileMarker
	EnvVars           []EnvVar
}

// FileMarker is a (path, modification marker) pair.
type FileMarker struct {
	Path  string
	Mtime time.Time
}

// Fingerprint is the computed content/environment hash for one unit plus
// enough metadata to render a diagnostic description.
type Fingerprint struct {
	Hash        string
	Description string
}

// Compute hashes u and in's fields in the exact order spec.md §4.3
// prescribes, so that any change to an earlier-listed input cannot be
// masked by a later one being equal.
func Compute(u *unitgraph.Unit, in Inputs) Fingerprint {
	h := sha256.New()

	writeString(h, string(u.Package.Name()))
	writeString(h, u.Package.VersionString())
	writeString(h, u.Package.Source().String())

	sorted := append([]string(nil), in.Features...)
	sort.Strings(sorted)
	for _, f := range sorted {
		writeString(h, f)
	}

	writeString(h, u.Target.Name)
	writeString(h, u.Target.Kind.String())
	writeString(h, u.Target.Path)

	writeString(h, u.Profile.OptLevel)
	writeBool(h, u.Profile.DebugInfo)
	writeString(h, u.Profile.PanicStrategy)
	writeBool(h, u.Profile.OverflowChecks)
	writeBool(h, u.Profile.Incremental)
	writeString(h, u.Profile.LTO)

	writeString(h, in.HostTriple)
	writeString(h, in.TargetTriple)
	for _, f := range in.CompilerFlags {
		writeString(h, f)
	}

	writeString(h, in.Compiler.Version)
	writeString(h, in.Compiler.HostTriple)

	for _, dp := range in.DependencyPrints {
		writeString(h, dp)
	}

	if in.ContentMarker != "" {
		writeString(h, in.ContentMarker)
	} else {
		for _, fm := range in.SourceFiles {
			writeString(h, fm.Path)
			writeString(h, fm.Mtime.UTC().Format(time.RFC3339Nano))
		}
	}

	for _, fm := range in.BuildScriptInputs {
		writeString(h, fm.Path)
		writeString(h, fm.Mtime.UTC().Format(time.RFC3339Nano))
	}

	for _, e := range in.EnvVars {
		writeString(h, e.Name)
		if e.IsUnset {
			writeString(h, "<unset>")
		} else {
			writeString(h, e.Value)
		}
	}

	sum := hex.EncodeToString(h.Sum(nil))
	return Fingerprint{
		Hash:        sum,
		Description: fmt.Sprintf("%s %s (%s, %s)", u.Package, u.Target.Name, u.Target.Kind, u.Mode),
	}
}

func writeString(h interface{ Write([]byte) (int, error) }, s string) {
	h.Write([]byte{0}) // field separator, so "ab","c" != "a","bc"
	h.Write([]byte(s))
}

func writeBool(h interface{ Write([]byte) (int, error) }, b bool) {
	if b {
		writeString(h, "1")
	} else {
		writeString(h, "0")
	}
}

// record is the on-disk persisted form of a Fingerprint (spec.md §4.3:
// "The on-disk record includes the hash, a human-readable description, and
// an mtime watermark").
type record struct {
	Hash        string    `json:"hash"`
	Description string    `json:"description"`
	Watermark   time.Time `json:"watermark"`
}

// Dir returns the fingerprint directory for a unit, per spec.md §6's
// persisted-state layout: "<out>/.../.fingerprint/<package>-<hash>/".
func Dir(outDir string, pkg id.PackageId, unitHash string) string {
	return filepath.Join(outDir, ".fingerprint", fmt.Sprintf("%s-%s", pkg.Name(), unitHash[:16]))
}

func recordPath(dir string) string { return filepath.Join(dir, "fingerprint.json") }

// Persist writes fp's record to dir, stamping the watermark with the
// current time (the mtime that subsequent freshness checks compare
// declared inputs against).
func Persist(dir string, fp Fingerprint) error {
	if err := os.MkdirAll(dir, 0777); err != nil {
		return errors.Wrapf(err, "cannot create fingerprint dir %s", dir)
	}
	rec := record{Hash: fp.Hash, Description: fp.Description, Watermark: time.Now()}
	buf, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "cannot marshal fingerprint record")
	}
	if err := os.WriteFile(recordPath(dir), buf, 0666); err != nil {
		return errors.Wrapf(err, "cannot write fingerprint record in %s", dir)
	}
	return nil
}

func load(dir string) (record, bool, error) {
	buf, err := os.ReadFile(recordPath(dir))
	if err != nil {
		if os.IsNotExist(err) {
			return record{}, false, nil
		}
		return record{}, false, errors.Wrapf(err, "cannot read fingerprint record in %s", dir)
	}
	var rec record
	if err := json.Unmarshal(buf, &rec); err != nil {
		// A corrupt record degrades to "no record", forcing a rebuild
		// rather than failing the whole invocation.
		return record{}, false, nil
	}
	return rec, true, nil
}

// IsFresh implements spec.md §4.3's freshness decision: the unit is fresh
// iff its current hash matches the stored hash, the stored record's
// watermark is at or after every declared input's mtime, and every
// dependency was itself fresh (depsFresh is computed by the caller, which
// owns the traversal order).
func IsFresh(dir string, current Fingerprint, declaredInputs []FileMarker, depsFresh bool) (bool, error) {
	if !depsFresh {
		return false, nil
	}

	rec, ok, err := load(dir)
	if err != nil {
		return false, err
	}
	if !ok || rec.Hash != current.Hash {
		return false, nil
	}

	for _, in := range declaredInputs {
		if in.Mtime.After(rec.Watermark) {
			return false, nil
		}
	}
	return true, nil
}

// EnumerateSourceFiles walks root (a path/editable source's tree) and
// returns a (path, mtime) FileMarker per regular file, skipping .git, .hg,
// .bzr, .svn and vendor directories, using godirwalk for the traversal.
func EnumerateSourceFiles(root string) ([]FileMarker, error) {
	var out []FileMarker
	err := godirwalk.Walk(root, &godirwalk.Options{
		Unsorted: false,
		Callback: func(osPathname string, de *godirwalk.Dirent) error {
			if de.IsDir() {
				switch filepath.Base(osPathname) {
				case ".git", ".hg", ".bzr", ".svn", "vendor":
					return filepath.SkipDir
				}
				return nil
			}
			fi, err := os.Stat(osPathname)
			if err != nil {
				return err
			}
			out = append(out, FileMarker{Path: osPathname, Mtime: fi.ModTime()})
			return nil
		},
	})
	if err != nil {
		return nil, errors.Wrapf(err, "cannot enumerate source files under %s", root)
	}
	return out, nil
}
