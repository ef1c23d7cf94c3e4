// Package compiler implements C7: building one unit's command line,
// environment, and streaming output handlers (spec.md §4.5). The driver is
// stateless; every exported function takes everything it needs and returns
// a fresh value.
package compiler

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/forgepm/forge/internal/core/unitgraph"
)

// Command is everything needed to launch one unit's external compiler
// invocation (spec.md §4.5 "the external compiler command line (flags,
// --extern references to dependency artifacts, output directory, emit
// kinds), the environment block").
type Command struct {
	Program string
	Args    []string
	Env     []string
	Dir     string
}

// ExternRef is one --extern-equivalent reference to a built dependency
// artifact.
type ExternRef struct {
	Name     string
	Artifact string
}

// BuildPlan carries the per-unit facts the driver needs beyond the unit
// itself: where its dependency artifacts live, what OUT_DIR to expose (if
// its package ran a build script), and which features are active.
type BuildPlan struct {
	OutDir       string // <out>/host/deps or <out>/<triple>/deps
	Externs      []ExternRef
	BuildScriptOutDir string // "" if the package has no build script
	Features     []string
	EmitKinds    []string // e.g. "link", "metadata", "dep-info"
	ExtraEnv     map[string]string
}

// Build constructs the command line and environment for u (spec.md §4.5
// contract).
func Build(u *unitgraph.Unit, plan BuildPlan, program string) Command {
	args := []string{
		"--unit-name", sanitizeUnitName(string(u.Package.Name())),
		u.Target.Path,
		"--out-dir", plan.OutDir,
	}

	sortedFeatures := append([]string(nil), plan.Features...)
	sort.Strings(sortedFeatures)
	for _, f := range sortedFeatures {
		args = append(args, "--cfg", fmt.Sprintf("feature=%q", f))
	}

	sort.Slice(plan.Externs, func(i, j int) bool { return plan.Externs[i].Name < plan.Externs[j].Name })
	for _, e := range plan.Externs {
		args = append(args, "--extern", fmt.Sprintf("%s=%s", e.Name, e.Artifact))
	}

	for _, kind := range plan.EmitKinds {
		args = append(args, "--emit", kind)
	}

	env := []string{}
	if plan.BuildScriptOutDir != "" {
		env = append(env, "OUT_DIR="+plan.BuildScriptOutDir)
	}
	keys := make([]string, 0, len(plan.ExtraEnv))
	for k := range plan.ExtraEnv {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+plan.ExtraEnv[k])
	}

	return Command{
		Program: program,
		Args:    args,
		Env:     env,
		Dir:     filepath.Dir(u.Target.Path),
	}
}

func sanitizeUnitName(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_':
			out = append(out, c)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}

// LineHandlers are the per-line stdout/stderr callbacks the job queue
// passes to an Invoker, and which the driver forwards compiler output
// through (spec.md §4.5's "streaming handlers that forward the compiler's
// line-oriented JSON/text output to the job-queue coordinator").
type LineHandlers struct {
	Stdout func(line string)
	Stderr func(line string)
}
