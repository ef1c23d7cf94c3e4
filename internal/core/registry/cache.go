package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/boltdb/bolt"
	"github.com/pkg/errors"

	"github.com/forgepm/forge/internal/core/id"
	"github.com/forgepm/forge/internal/core/model"
	"github.com/forgepm/forge/internal/core/version"
)

var cacheBucket = []byte("query-results")

// CachedRegistry wraps another Registry with a persistent on-disk cache of
// Query results, keyed by (dependency name, kind). It is the disk-cache
// layer over whatever upstream registry client the caller wires in —
// itself out of scope (§1) — directly grounded on internal/gps's
// boltCache/source_cache_bolt.go, which imports github.com/boltdb/bolt for
// exactly this purpose.
type CachedRegistry struct {
	upstream Registry
	db       *bolt.DB
}

// NewCachedRegistry opens (creating if necessary) a bolt-backed cache file
// under cacheDir, wrapping upstream.
func NewCachedRegistry(upstream Registry, cacheDir string) (*CachedRegistry, error) {
	if err := os.MkdirAll(cacheDir, 0777); err != nil {
		return nil, errors.Wrapf(err, "cannot create cache dir %s", cacheDir)
	}

	dbpath := filepath.Join(cacheDir, "registry-cache.db")
	db, err := bolt.Open(dbpath, 0600, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open registry cache %s", dbpath)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(cacheBucket)
		return err
	}); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "cannot initialize registry cache bucket")
	}

	return &CachedRegistry{upstream: upstream, db: db}, nil
}

// Close releases the underlying bolt database handle.
func (c *CachedRegistry) Close() error {
	return c.db.Close()
}

func cacheKey(dep model.Dependency, kind QueryKind) []byte {
	return []byte(fmt.Sprintf("%s|%d", dep.Name, kind))
}

// summaryDTO is the wire form of model.Summary used for cache persistence;
// Requirement and Version values are round-tripped through their string
// forms since the underlying semver types carry unexported state.
type summaryDTO struct {
	Name    string            `json:"name"`
	Version string            `json:"version"`
	Source  id.Source         `json:"source"`
	Links   string            `json:"links,omitempty"`
	Deps    []dependencyDTO   `json:"deps,omitempty"`
	Feats   map[string][]string `json:"features,omitempty"`
}

type dependencyDTO struct {
	Name        string   `json:"name"`
	Rename      string   `json:"rename,omitempty"`
	Requirement string   `json:"requirement"`
	Kind        uint8    `json:"kind"`
	Platform    string   `json:"platform,omitempty"`
	Features    []string `json:"features,omitempty"`
	UsesDefault bool     `json:"uses_default"`
	Optional    bool     `json:"optional"`
	Public      bool     `json:"public"`
}

func encodeSummaries(in *id.Interner, summaries []model.Summary) ([]byte, error) {
	dtos := make([]summaryDTO, len(summaries))
	for i, s := range summaries {
		feats := make(map[string][]string, len(s.Features))
		for name, vals := range s.Features {
			strs := make([]string, len(vals))
			for j, v := range vals {
				strs[j] = v.String()
			}
			feats[name] = strs
		}

		deps := make([]dependencyDTO, len(s.Dependencies))
		for j, d := range s.Dependencies {
			deps[j] = dependencyDTO{
				Name:        string(d.Name),
				Rename:      d.Rename,
				Requirement: d.Requirement.String(),
				Kind:        uint8(d.Kind),
				Platform:    string(d.Platform),
				Features:    d.Features,
				UsesDefault: d.UsesDefaultFeatures,
				Optional:    d.Optional,
				Public:      d.Public,
			}
		}

		dtos[i] = summaryDTO{
			Name:    string(s.ID.Name()),
			Version: s.ID.VersionString(),
			Source:  s.ID.Source(),
			Links:   s.Links,
			Deps:    deps,
			Feats:   feats,
		}
	}
	return json.Marshal(dtos)
}

func decodeSummaries(in *id.Interner, raw []byte) ([]model.Summary, error) {
	var dtos []summaryDTO
	if err := json.Unmarshal(raw, &dtos); err != nil {
		return nil, err
	}

	out := make([]model.Summary, len(dtos))
	for i, dto := range dtos {
		feats := make(model.FeatureTable, len(dto.Feats))
		for name, vals := range dto.Feats {
			fv := make([]model.FeatureValue, len(vals))
			for j, raw := range vals {
				fv[j] = model.ParseFeatureValue(raw)
			}
			feats[name] = fv
		}

		deps := make([]model.Dependency, len(dto.Deps))
		for j, d := range dto.Deps {
			req, err := version.ParseRequirement(d.Requirement)
			if err != nil {
				return nil, errors.Wrapf(err, "decoding cached requirement for %s", d.Name)
			}
			deps[j] = model.Dependency{
				Name:                id.ProjectRoot(d.Name),
				Rename:              d.Rename,
				Requirement:         req,
				Kind:                model.DependencyKind(d.Kind),
				Platform:            model.PlatformPredicate(d.Platform),
				Features:            d.Features,
				UsesDefaultFeatures: d.UsesDefault,
				Optional:            d.Optional,
				Public:              d.Public,
			}
		}

		out[i] = model.Summary{
			ID:           in.Intern(id.ProjectRoot(dto.Name), dto.Version, dto.Source),
			Dependencies: deps,
			Features:     feats,
			Links:        dto.Links,
		}
	}
	return out, nil
}

// Query implements Registry, consulting the disk cache before falling
// through to the upstream registry and populating the cache on miss.
func (c *CachedRegistry) Query(dep model.Dependency, kind QueryKind) ([]model.Summary, error) {
	key := cacheKey(dep, kind)

	var cached []byte
	if err := c.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(cacheBucket).Get(key); v != nil {
			cached = append([]byte(nil), v...)
		}
		return nil
	}); err != nil {
		return nil, errors.Wrap(err, "reading registry cache")
	}

	interner := id.NewInterner()
	if cached != nil {
		summaries, err := decodeSummaries(interner, cached)
		if err == nil {
			return summaries, nil
		}
		// Corrupt cache entry: degrade to upstream rather than fail the
		// resolve, consistent with the core's general "cache failures
		// degrade, they don't abort" posture (spec.md §7, applied here by
		// analogy from the fingerprint engine's read-failure handling).
	}

	summaries, err := c.upstream.Query(dep, kind)
	if err != nil {
		return nil, err
	}

	enc, err := encodeSummaries(interner, summaries)
	if err == nil {
		_ = c.db.Update(func(tx *bolt.Tx) error {
			return tx.Bucket(cacheBucket).Put(key, enc)
		})
	}

	return summaries, nil
}

// DescribeSource implements Registry by delegating to upstream.
func (c *CachedRegistry) DescribeSource(pid id.PackageId) (string, error) {
	return c.upstream.DescribeSource(pid)
}

// BlockUntilReady implements Registry by delegating to upstream.
func (c *CachedRegistry) BlockUntilReady() error {
	return c.upstream.BlockUntilReady()
}
