// Package cache is the persistent artifact store shared across runs.
//
// Entries are addressed by (region, stage, sub-key) and live at
// deterministic paths under the cache root:
//
//	{root}/
//	  raw_data/{region}_{subKey}_raw.nc   FORCING raw acquisitions
//	  topos/{region}_topo.nc              BATHY rasters (sub-key "primary")
//
// The presence of the expected path is the only validity signal; there is
// no content hash, so a corrupted file at the right path is served as a
// hit. The cache assumes a single writer: concurrent runs against the same
// root are not supported.
package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/vk/oceanbaselines/internal/ctxlog"
	"github.com/vk/oceanbaselines/internal/fsutil"
	"github.com/vk/oceanbaselines/internal/stage"
)

const (
	// RawDataDir holds cached raw forcing acquisitions.
	RawDataDir = "raw_data"
	// ToposDir holds cached bathymetry rasters.
	ToposDir = "topos"
	// PrimaryKey is the single sub-key of non-composite stages.
	PrimaryKey = "primary"
	// Ext is the file extension of every cached artifact.
	Ext = ".nc"
)

// errCacheIncomplete marks a composite stage with some, but not all, of its
// sub-artifacts cached. It never leaves this package: callers see a Miss.
var errCacheIncomplete = errors.New("composite cache entry incomplete")

// ErrNotCacheable is returned when asking for a cache slot of a stage that
// has none (GRID and VGRID are cheap to rebuild and never cached).
var ErrNotCacheable = errors.New("stage has no cache slot")

// Cacheable reports whether s has a persistent cache slot.
func Cacheable(s stage.Stage) bool {
	return s == stage.Bathy || s == stage.Forcing
}

// Lookup is the result of Get. Locations is populated only on a hit and
// then holds every requested sub-key; a miss never exposes partial paths.
type Lookup struct {
	Hit       bool
	Locations map[string]string
	// Missing lists the sub-keys that were absent on a miss.
	Missing []string
}

// Cache is a filesystem-backed artifact cache rooted at one directory.
type Cache struct {
	root string
}

// New creates a cache rooted at root. Nothing is created on disk until Put.
func New(root string) *Cache {
	return &Cache{root: root}
}

// Root returns the cache root directory.
func (c *Cache) Root() string {
	return c.root
}

// Path returns the canonical location of a cache entry.
func (c *Cache) Path(regionName string, s stage.Stage, subKey string) (string, error) {
	if strings.ContainsAny(subKey, `/\`) || subKey == "" {
		return "", fmt.Errorf("invalid cache sub-key %q", subKey)
	}
	switch s {
	case stage.Bathy:
		if subKey != PrimaryKey {
			return "", fmt.Errorf("stage %s only has the %q sub-key, got %q", s, PrimaryKey, subKey)
		}
		return filepath.Join(c.root, ToposDir, regionName+"_topo"+Ext), nil
	case stage.Forcing:
		return filepath.Join(c.root, RawDataDir, RawName(regionName, subKey, Ext)), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrNotCacheable, s)
	}
}

// RawName is the canonical cached file name of a raw acquisition.
func RawName(regionName, subKey, ext string) string {
	return regionName + "_" + subKey + "_raw" + ext
}

// Get looks up every sub-key of a stage. The stage is a Hit only when all
// of them are present; otherwise the whole stage is a Miss.
func (c *Cache) Get(ctx context.Context, regionName string, s stage.Stage, subKeys []string) (Lookup, error) {
	logger := ctxlog.FromContext(ctx)
	if len(subKeys) == 0 {
		return Lookup{}, fmt.Errorf("cache lookup for %s/%s needs at least one sub-key", regionName, s)
	}

	found := make(map[string]string, len(subKeys))
	var missing []string
	for _, key := range subKeys {
		path, err := c.Path(regionName, s, key)
		if err != nil {
			return Lookup{}, err
		}
		ok, err := fsutil.Exists(path)
		if err != nil {
			return Lookup{}, fmt.Errorf("checking cache entry %s: %w", path, err)
		}
		if ok {
			found[key] = path
		} else {
			missing = append(missing, key)
		}
	}

	if len(missing) == 0 {
		logger.Debug("Cache hit.", "region", regionName, "stage", s, "entries", len(found))
		return Lookup{Hit: true, Locations: found}, nil
	}
	if len(found) > 0 {
		logger.Debug("Treating partial cache entry as a miss.",
			"region", regionName, "stage", s, "missing", missing, "reason", errCacheIncomplete)
	} else {
		logger.Debug("Cache miss.", "region", regionName, "stage", s)
	}
	return Lookup{Missing: missing}, nil
}

// Put promotes src into the cache under its canonical name. An existing
// entry is never overwritten: a duplicate Put is a silent no-op. It returns
// the canonical path and whether a copy happened.
func (c *Cache) Put(ctx context.Context, regionName string, s stage.Stage, subKey, src string) (string, bool, error) {
	dst, err := c.Path(regionName, s, subKey)
	if err != nil {
		return "", false, err
	}
	copied, err := fsutil.CopyFileNoClobber(src, dst)
	if err != nil {
		return "", false, fmt.Errorf("caching %s as %s: %w", src, dst, err)
	}
	if copied {
		ctxlog.FromContext(ctx).Debug("Cached artifact.", "region", regionName, "stage", s, "sub_key", subKey, "path", dst)
	}
	return dst, copied, nil
}

// Evict deletes the entries of the given sub-keys of a stage. A composite
// stage that is about to be re-acquired is evicted first, so the cache never
// ends up holding sub-artifacts from two different acquisitions. Absent
// entries are ignored. It returns the paths that were removed.
func (c *Cache) Evict(ctx context.Context, regionName string, s stage.Stage, subKeys []string) ([]string, error) {
	var removed []string
	for _, key := range subKeys {
		path, err := c.Path(regionName, s, key)
		if err != nil {
			return removed, err
		}
		if err := os.Remove(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return removed, fmt.Errorf("evicting cache entry %s: %w", path, err)
		}
		removed = append(removed, path)
	}
	if len(removed) > 0 {
		ctxlog.FromContext(ctx).Debug("Evicted cache entries.", "region", regionName, "stage", s, "paths", removed)
	}
	return removed, nil
}
