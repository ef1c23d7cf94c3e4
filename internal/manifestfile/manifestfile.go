// Package manifestfile reads a package's TOML manifest file into the core
// model types (spec.md §3's Summary/Dependency), the ambient on-disk
// counterpart to the teacher's own toml.go/manifest.go root-manifest
// handling, ported from its custom Tree-query style to go-toml's
// struct-tag Marshal/Unmarshal, since this manifest's shape is fixed and
// known in advance rather than queried ad hoc.
package manifestfile

import (
	"os"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"

	"github.com/forgepm/forge/internal/core/id"
	"github.com/forgepm/forge/internal/core/model"
	"github.com/forgepm/forge/internal/core/version"
)

// FileName is the manifest's conventional basename.
const FileName = "forge.toml"

type rawPackage struct {
	Name  string `toml:"name"`
	Version string `toml:"version"`
	Links string `toml:"links,omitempty"`
}

type rawDependency struct {
	Version  string   `toml:"version,omitempty"`
	Path     string   `toml:"path,omitempty"`
	Rename   string   `toml:"package,omitempty"`
	Optional bool     `toml:"optional,omitempty"`
	Default  *bool    `toml:"default-features,omitempty"`
	Features []string `toml:"features,omitempty"`
	Public   bool     `toml:"public,omitempty"`
}

type rawManifest struct {
	Package      rawPackage               `toml:"package"`
	Dependencies map[string]rawDependency `toml:"dependencies,omitempty"`
	BuildDeps    map[string]rawDependency `toml:"build-dependencies,omitempty"`
	DevDeps      map[string]rawDependency `toml:"dev-dependencies,omitempty"`
	Features     map[string][]string      `toml:"features,omitempty"`
}

// Load reads and parses the manifest at path, interning its package
// identity with in and translating every dependency table into
// model.Dependency values.
func Load(in *id.Interner, path string) (model.Summary, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return model.Summary{}, errors.Wrapf(err, "cannot read manifest %s", path)
	}
	return Parse(in, buf)
}

// Parse decodes manifest source already read into memory; Load is a thin
// wrapper around it for the common on-disk case.
func Parse(in *id.Interner, buf []byte) (model.Summary, error) {
	var raw rawManifest
	if err := toml.Unmarshal(buf, &raw); err != nil {
		return model.Summary{}, errors.Wrap(err, "cannot parse manifest")
	}
	if raw.Package.Name == "" {
		return model.Summary{}, errors.New("manifest is missing [package].name")
	}
	if raw.Package.Version == "" {
		return model.Summary{}, errors.New("manifest is missing [package].version")
	}

	pid := in.Intern(id.ProjectRoot(raw.Package.Name), raw.Package.Version, id.Source{Kind: id.SourcePath, Location: "."})

	var deps []model.Dependency
	for _, group := range []struct {
		table map[string]rawDependency
		kind  model.DependencyKind
	}{
		{raw.Dependencies, model.KindNormal},
		{raw.BuildDeps, model.KindBuild},
		{raw.DevDeps, model.KindDevelopment},
	} {
		d, err := toDependencies(group.table, group.kind)
		if err != nil {
			return model.Summary{}, err
		}
		deps = append(deps, d...)
	}

	features := make(model.FeatureTable, len(raw.Features))
	for name, values := range raw.Features {
		parsed := make([]model.FeatureValue, 0, len(values))
		for _, v := range values {
			parsed = append(parsed, model.ParseFeatureValue(v))
		}
		features[name] = parsed
	}

	return model.Summary{
		ID:           pid,
		Dependencies: deps,
		Features:     features,
		Links:        raw.Package.Links,
	}, nil
}

func toDependencies(table map[string]rawDependency, kind model.DependencyKind) ([]model.Dependency, error) {
	out := make([]model.Dependency, 0, len(table))
	for name, rd := range table {
		req, err := version.ParseRequirement(rd.Version)
		if err != nil {
			return nil, errors.Wrapf(err, "dependency %q", name)
		}
		usesDefault := true
		if rd.Default != nil {
			usesDefault = *rd.Default
		}
		out = append(out, model.Dependency{
			Name:                id.ProjectRoot(name),
			Rename:              rd.Rename,
			Requirement:         req,
			Kind:                kind,
			Features:            rd.Features,
			UsesDefaultFeatures: usesDefault,
			Optional:            rd.Optional,
			Public:              rd.Public,
		})
	}
	return out, nil
}
