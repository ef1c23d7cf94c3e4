package main

import (
	"flag"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/forgepm/forge/internal/core/id"
	"github.com/forgepm/forge/internal/core/resolver"
	"github.com/forgepm/forge/internal/manifestfile"
)

const resolveShortHelp = `Resolve the dependency graph for the current package`
const resolveLongHelp = `
Reads the package manifest in the current directory (or at -manifest), resolves
its dependency graph against an offline index, and prints the selected
version of every package.
`

type resolveCommand struct {
	manifest string
	index    string
	cache    string
	minimal  bool
	dev      bool
}

func (cmd *resolveCommand) Name() string      { return "resolve" }
func (cmd *resolveCommand) Args() string      { return "" }
func (cmd *resolveCommand) ShortHelp() string { return resolveShortHelp }
func (cmd *resolveCommand) LongHelp() string  { return resolveLongHelp }

func (cmd *resolveCommand) Register(fs *flag.FlagSet) {
	fs.StringVar(&cmd.manifest, "manifest", manifestfile.FileName, "path to the package manifest")
	fs.StringVar(&cmd.index, "index", "", "directory of manifest files forming an offline registry index")
	fs.StringVar(&cmd.cache, "cache", "", "directory for the persistent registry cache (disabled if empty)")
	fs.BoolVar(&cmd.minimal, "minimal-versions", false, "resolve every dependency to its oldest satisfying version")
	fs.BoolVar(&cmd.dev, "dev", false, "include the root package's development dependencies")
}

func (cmd *resolveCommand) Run(ctx *Ctx, args []string) error {
	resolve, _, _, err := cmd.solve(ctx)
	if err != nil {
		return err
	}
	for _, n := range resolve.SortedNodes() {
		ctx.Out.Printf("%s", n.Summary.ID)
	}
	return nil
}

// solve runs resolve() (spec.md §6) and returns the Resolve, the root
// package's identity, and the interner it was built against, so other
// commands (build-graph, run) can share the same package identities and
// know which resolved node is the root.
func (cmd *resolveCommand) solve(ctx *Ctx) (resolve *resolver.Resolve, rootID id.PackageId, in *id.Interner, err error) {
	in = id.NewInterner()

	manifestPath := cmd.manifest
	if !filepath.IsAbs(manifestPath) {
		manifestPath = filepath.Join(ctx.WorkingDir, manifestPath)
	}
	root, err := manifestfile.Load(in, manifestPath)
	if err != nil {
		return nil, id.PackageId{}, nil, errors.Wrap(err, "cannot load root manifest")
	}

	reg, err := buildRegistry(in, cmd.index, cmd.cache)
	if err != nil {
		return nil, id.PackageId{}, nil, err
	}
	if closer, ok := reg.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	opts := resolver.Options{
		MinimalVersions:         cmd.minimal,
		CheckPublicDependencies: true,
		IncludeDevDependencies:  cmd.dev,
	}

	resolve, err = resolver.Solve(root, defaultFeatures(root), true, opts, reg)
	if err != nil {
		return nil, id.PackageId{}, nil, errors.Wrap(err, "resolve failed")
	}
	return resolve, root.ID, in, nil
}

func defaultFeatures(root interface{ HasDefaultFeature() bool }) []string {
	if root.HasDefaultFeature() {
		return []string{"default"}
	}
	return nil
}
