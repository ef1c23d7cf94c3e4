package registry

import (
	"fmt"

	"github.com/forgepm/forge/internal/core/id"
	"github.com/forgepm/forge/internal/core/model"
)

// Memory is an in-memory Registry over a fixed package universe, for tests
// and small example programs. It mirrors the "depspec" fixture style
// internal/gps's solve_test.go builds its basicFixtures table from: a flat
// list of (name, version) -> Summary, with no network or VCS behind it.
type Memory struct {
	byName map[id.ProjectRoot][]model.Summary
	yanked map[id.PackageId]bool
}

// NewMemory builds a Memory registry from a flat list of Summaries.
func NewMemory(summaries []model.Summary) *Memory {
	m := &Memory{
		byName: make(map[id.ProjectRoot][]model.Summary),
		yanked: make(map[id.PackageId]bool),
	}
	for _, s := range summaries {
		m.byName[s.ID.Name()] = append(m.byName[s.ID.Name()], s)
	}
	return m
}

// Yank marks a version unavailable to Exact queries, matching a registry's
// yank operation (the yank workflow itself is out of scope, §1; Memory only
// needs to model its observable effect on queries).
func (m *Memory) Yank(pid id.PackageId) { m.yanked[pid] = true }

// Query implements Registry.
func (m *Memory) Query(dep model.Dependency, kind QueryKind) ([]model.Summary, error) {
	cands := m.byName[dep.Name]
	if len(cands) == 0 {
		return nil, nil
	}

	out := make([]model.Summary, 0, len(cands))
	for _, s := range cands {
		if kind != RejectedVersions && m.yanked[s.ID] {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// DescribeSource implements Registry. A pinned (VCS-checked-out) source
// delegates to DescribeVCSSource for a richer description (repository type,
// location, detected revision); every other source kind gets a flat string
// naming this fixture, since Memory has nothing to query against.
func (m *Memory) DescribeSource(pid id.PackageId) (string, error) {
	if pid.Source().Kind == id.SourcePinned {
		return DescribeVCSSource(pid)
	}
	return fmt.Sprintf("in-memory fixture (%s)", pid.Source()), nil
}

// BlockUntilReady implements Registry.
func (m *Memory) BlockUntilReady() error { return nil }
