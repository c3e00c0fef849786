// Package workspace manages the transient per-region scratch directories a
// stage computes into. A Scratch is never authoritative: anything worth
// keeping is promoted into the cache before the handle is released.
package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	// InputSuffix names a region's raw-input scratch directory.
	InputSuffix = "_input"
	// CaseSuffix names a region's working-case scratch directory.
	CaseSuffix = "_case"
	// RawTag marks raw acquisition files that have not been processed yet.
	RawTag = "_unprocessed"
)

// Scratch is the explicit handle to one region's scratch directories. The
// orchestrator creates it, passes it to the stages, and releases it.
type Scratch struct {
	region string
	root   string
}

// ErrUnreconciled is returned by Create when the input directory still
// holds raw acquisitions that were never promoted into the cache.
var ErrUnreconciled = errors.New("scratch holds unpromoted raw files")

// Create prepares fresh, empty scratch directories for regionName under
// root. Leftover by-products of an interrupted run are removed, but raw
// acquisitions are not: if the input directory still holds any, Create
// fails with ErrUnreconciled and the lifecycle manager must consolidate
// them first.
func Create(root, regionName string) (*Scratch, error) {
	s := &Scratch{region: regionName, root: root}
	if raw, err := s.rawFiles(); err != nil {
		return nil, err
	} else if len(raw) > 0 {
		return nil, fmt.Errorf("%w: %s has %s", ErrUnreconciled, s.InputDir(), strings.Join(raw, ", "))
	}
	for _, dir := range []string{s.InputDir(), s.CaseDir()} {
		if err := os.RemoveAll(dir); err != nil {
			return nil, fmt.Errorf("resetting scratch dir %s: %w", dir, err)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating scratch dir %s: %w", dir, err)
		}
	}
	return s, nil
}

func (s *Scratch) rawFiles() ([]string, error) {
	entries, err := os.ReadDir(s.InputDir())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("inspecting scratch dir %s: %w", s.InputDir(), err)
	}
	var raw []string
	for _, e := range entries {
		if _, _, ok := ParseRawName(e.Name()); ok && e.Type().IsRegular() {
			raw = append(raw, e.Name())
		}
	}
	return raw, nil
}

// InputDir holds raw acquisitions for the region.
func (s *Scratch) InputDir() string {
	return filepath.Join(s.root, s.region+InputSuffix)
}

// CaseDir holds intermediate products built from the inputs.
func (s *Scratch) CaseDir() string {
	return filepath.Join(s.root, s.region+CaseSuffix)
}

// RawPath is where the raw file for subKey lives inside InputDir.
func (s *Scratch) RawPath(subKey, ext string) string {
	return filepath.Join(s.InputDir(), RawName(subKey, ext))
}

// Release deletes both scratch directories. It is safe to call twice.
func (s *Scratch) Release() error {
	var errs []string
	for _, dir := range []string{s.InputDir(), s.CaseDir()} {
		if err := os.RemoveAll(dir); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("releasing scratch for %s: %s", s.region, strings.Join(errs, "; "))
	}
	return nil
}

// RawName is the scratch file name of an unprocessed raw acquisition.
func RawName(subKey, ext string) string {
	return subKey + RawTag + ext
}

// ParseRawName is the inverse of RawName.
func ParseRawName(name string) (subKey, ext string, ok bool) {
	ext = filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	subKey, found := strings.CutSuffix(stem, RawTag)
	if !found || subKey == "" {
		return "", "", false
	}
	return subKey, ext, true
}

// InputRegion returns the region name encoded in an input scratch directory name.
func InputRegion(dirName string) (string, bool) {
	name, ok := strings.CutSuffix(dirName, InputSuffix)
	return name, ok && name != ""
}

// IsScratchDir reports whether dirName follows the scratch naming convention.
func IsScratchDir(dirName string) bool {
	for _, suffix := range []string{InputSuffix, CaseSuffix} {
		if name, ok := strings.CutSuffix(dirName, suffix); ok && name != "" {
			return true
		}
	}
	return false
}
