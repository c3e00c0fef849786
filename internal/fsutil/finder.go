// Package fsutil provides file system utility functions shared by the cache,
// the scratch workspaces and the lifecycle manager.
package fsutil

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// FindDirs recursively searches root for directories whose base name
// satisfies match. A matching directory is returned but not descended into;
// directories rejected by skip are neither returned nor descended into.
// Results are sorted. A missing root yields no results.
func FindDirs(root string, match, skip func(name string) bool) ([]string, error) {
	if match == nil {
		panic("match must not be nil")
	}

	var dirs []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root && errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipAll
			}
			return err
		}
		if !d.IsDir() || path == root {
			return nil
		}
		if skip != nil && skip(d.Name()) {
			return filepath.SkipDir
		}
		if match(d.Name()) {
			dirs = append(dirs, path)
			return filepath.SkipDir
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(dirs)
	return dirs, nil
}

// FindFiles recursively lists regular files under root whose base name
// satisfies match, sorted.
func FindFiles(root string, match func(name string) bool) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() && match(d.Name()) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

// Exists reports whether path exists. Errors other than "not exist" are returned.
func Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}
