// Package lifecycle reconciles scratch workspaces with the persistent cache.
//
// Both operations are idempotent and are run once before a pipeline run
// (to recover raw acquisitions left behind by an interrupted run) and once
// after it (to leave the cache root minimal). Scratch directories are found
// by their naming convention here because a previous process's workspace
// handles no longer exist.
package lifecycle

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vk/oceanbaselines/internal/cache"
	"github.com/vk/oceanbaselines/internal/ctxlog"
	"github.com/vk/oceanbaselines/internal/fsutil"
	"github.com/vk/oceanbaselines/internal/workspace"
)

// Summary reports what one lifecycle operation did.
type Summary struct {
	// Promoted lists cache paths written by Consolidate.
	Promoted []string
	// AlreadyCached counts raw files whose cache entry already held the same bytes.
	AlreadyCached int
	// Conflicted lists scratch input dirs Consolidate left unpromoted
	// because a file differed from an existing cache entry.
	Conflicted []string
	// Removed lists scratch directories deleted by PurgeScratch.
	Removed []string
}

// Manager consolidates and purges scratch output under a cache root.
type Manager struct{}

// New creates a lifecycle manager.
func New() *Manager {
	return &Manager{}
}

type rawState int

const (
	rawMissing  rawState = iota // no cache entry yet
	rawCached                   // cache entry holds the same bytes
	rawConflict                 // cache entry holds different bytes
)

// rawFile is one unprocessed acquisition found in a scratch input dir.
type rawFile struct {
	src, dst string
	subKey   string
	state    rawState
}

// Consolidate promotes the unprocessed raw files found in `{region}_input`
// directories under cacheRoot into raw_data/{region}_{subKey}_raw{ext}.
// Existing cache entries are never overwritten.
//
// A scratch input dir holds the files of one acquisition, so it is promoted
// as a unit: if any of its files differs from an existing cache entry, none
// of them is promoted, since the result would combine two acquisitions.
// The region's incomplete cache entry is then a miss for the next run.
func (m *Manager) Consolidate(ctx context.Context, cacheRoot string) (Summary, error) {
	logger := ctxlog.FromContext(ctx)
	var sum Summary

	inputDirs, err := fsutil.FindDirs(cacheRoot,
		func(name string) bool {
			_, ok := workspace.InputRegion(name)
			return ok
		},
		func(name string) bool {
			return name == cache.RawDataDir || name == cache.ToposDir
		},
	)
	if err != nil {
		return sum, fmt.Errorf("scanning %s for scratch inputs: %w", cacheRoot, err)
	}
	logger.Debug("Scanned cache root for scratch inputs.", "root", cacheRoot, "count", len(inputDirs))

	for _, dir := range inputDirs {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		regionName, _ := workspace.InputRegion(filepath.Base(dir))
		files, err := scanInputs(cacheRoot, regionName, dir)
		if err != nil {
			return sum, err
		}

		var conflicts []string
		for _, f := range files {
			if f.state == rawConflict {
				conflicts = append(conflicts, f.subKey)
			}
		}
		if len(conflicts) > 0 {
			logger.Warn("Scratch acquisition differs from cached entries; not promoting it.",
				"region", regionName, "dir", dir, "sub_keys", conflicts)
			sum.Conflicted = append(sum.Conflicted, dir)
			continue
		}

		for _, f := range files {
			if f.state == rawCached {
				sum.AlreadyCached++
				continue
			}
			copied, err := fsutil.CopyFileNoClobber(f.src, f.dst)
			if err != nil {
				return sum, fmt.Errorf("promoting %s: %w", f.src, err)
			}
			if copied {
				logger.Info("Recovered raw acquisition into cache.", "region", regionName, "sub_key", f.subKey, "path", f.dst)
				sum.Promoted = append(sum.Promoted, f.dst)
			}
		}
	}
	return sum, nil
}

// scanInputs lists the raw files of one scratch input dir with their cache
// destinations.
func scanInputs(cacheRoot, regionName, dir string) ([]rawFile, error) {
	paths, err := fsutil.FindFiles(dir, func(name string) bool {
		_, _, ok := workspace.ParseRawName(name)
		return ok
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", dir, err)
	}

	files := make([]rawFile, 0, len(paths))
	for _, src := range paths {
		subKey, ext, _ := workspace.ParseRawName(filepath.Base(src))
		f := rawFile{src: src, subKey: subKey, dst: filepath.Join(cacheRoot, cache.RawDataDir, cache.RawName(regionName, subKey, ext))}

		exists, err := fsutil.Exists(f.dst)
		if err != nil {
			return nil, err
		}
		if exists {
			same, err := fsutil.SameContent(src, f.dst)
			if err != nil {
				return nil, fmt.Errorf("comparing %s with %s: %w", src, f.dst, err)
			}
			f.state = rawConflict
			if same {
				f.state = rawCached
			}
		}
		files = append(files, f)
	}
	return files, nil
}

// PurgeScratch deletes every top-level `*_input` and `*_case` directory of cacheRoot.
func (m *Manager) PurgeScratch(ctx context.Context, cacheRoot string) (Summary, error) {
	logger := ctxlog.FromContext(ctx)
	var sum Summary

	entries, err := os.ReadDir(cacheRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return sum, nil
		}
		return sum, fmt.Errorf("listing %s: %w", cacheRoot, err)
	}

	for _, e := range entries {
		if !e.IsDir() || !workspace.IsScratchDir(e.Name()) {
			continue
		}
		dir := filepath.Join(cacheRoot, e.Name())
		if err := os.RemoveAll(dir); err != nil {
			return sum, fmt.Errorf("removing scratch dir %s: %w", dir, err)
		}
		logger.Debug("Removed scratch directory.", "path", dir)
		sum.Removed = append(sum.Removed, dir)
	}
	return sum, nil
}

// Reconcile runs Consolidate followed by PurgeScratch.
func (m *Manager) Reconcile(ctx context.Context, cacheRoot string) (Summary, error) {
	consolidated, err := m.Consolidate(ctx, cacheRoot)
	if err != nil {
		return consolidated, err
	}
	purged, err := m.PurgeScratch(ctx, cacheRoot)
	consolidated.Removed = purged.Removed
	return consolidated, err
}
