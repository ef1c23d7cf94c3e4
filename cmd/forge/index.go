package main

import (
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/forgepm/forge/internal/core/id"
	"github.com/forgepm/forge/internal/core/model"
	"github.com/forgepm/forge/internal/core/registry"
	"github.com/forgepm/forge/internal/manifestfile"
)

// loadIndex reads every *.toml file in dir as a manifestfile package
// description and returns the resulting Summaries, for feeding a
// registry.Memory in offline/example use. A real network registry client
// is out of this core's scope (spec.md §1, §6); this is the smallest thing
// that exercises the Registry interface end to end.
func loadIndex(in *id.Interner, dir string) ([]model.Summary, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.toml"))
	if err != nil {
		return nil, errors.Wrapf(err, "cannot glob index dir %s", dir)
	}
	out := make([]model.Summary, 0, len(matches))
	for _, m := range matches {
		s, err := manifestfile.Load(in, m)
		if err != nil {
			return nil, errors.Wrapf(err, "cannot load index entry %s", m)
		}
		out = append(out, s)
	}
	return out, nil
}

func buildRegistry(in *id.Interner, indexDir, cacheDir string) (registry.Registry, error) {
	var summaries []model.Summary
	if indexDir != "" {
		var err error
		summaries, err = loadIndex(in, indexDir)
		if err != nil {
			return nil, err
		}
	}
	mem := registry.NewMemory(summaries)
	if cacheDir == "" {
		return mem, nil
	}
	return registry.NewCachedRegistry(mem, cacheDir)
}
