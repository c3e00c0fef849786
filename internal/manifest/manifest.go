// Package manifest records what a run produced: every file written under
// the output directory with its size and BLAKE3 digest, plus the per-region
// and per-stage outcome.
package manifest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/vk/oceanbaselines/internal/fsutil"
	"github.com/vk/oceanbaselines/internal/pipeline"
)

// FileName is the manifest's base name before the run prefix.
const FileName = "manifest.yaml"

// Manifest is the YAML document written next to the baselines.
type Manifest struct {
	RunID     string    `yaml:"run_id"`
	CreatedAt time.Time `yaml:"created_at"`
	OutDir    string    `yaml:"out_dir"`
	Prefix    string    `yaml:"prefix,omitempty"`
	CacheRoot string    `yaml:"cache_root"`
	Stages    []string  `yaml:"stages"`
	Regions   []Region  `yaml:"regions"`
}

// Region is one region's outcome.
type Region struct {
	Name   string  `yaml:"name"`
	Status string  `yaml:"status"`
	Error  string  `yaml:"error,omitempty"`
	Stages []Stage `yaml:"stages"`
}

// Stage is one stage's outcome.
type Stage struct {
	Stage    string `yaml:"stage"`
	Mode     string `yaml:"mode"`
	State    string `yaml:"state"`
	Source   string `yaml:"source,omitempty"`
	Strategy string `yaml:"strategy,omitempty"`
	Files    []File `yaml:"files,omitempty"`
}

// File is one output file. Path is relative to the output directory.
type File struct {
	Path   string `yaml:"path"`
	Size   int64  `yaml:"size"`
	BLAKE3 string `yaml:"blake3"`
}

// Status values.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Path is where the manifest of a run lives.
func Path(outDir, prefix string) string {
	return filepath.Join(outDir, pipeline.Prefixed(prefix, FileName))
}

// Build assembles the manifest of a finished run, hashing every output.
func Build(runID uuid.UUID, createdAt time.Time, run pipeline.Run, cacheRoot string, report *pipeline.Report) (*Manifest, error) {
	m := &Manifest{
		RunID:     runID.String(),
		CreatedAt: createdAt.UTC(),
		OutDir:    run.OutDir,
		Prefix:    run.Prefix,
		CacheRoot: cacheRoot,
	}
	for _, s := range run.Stages.Sorted() {
		m.Stages = append(m.Stages, s.String())
	}

	for _, rr := range report.Results {
		entry := Region{Name: rr.Region, Status: StatusOK}
		if rr.Failed() {
			entry.Status = StatusFailed
			entry.Error = rr.Err.Error()
		}
		for _, sr := range rr.Stages {
			st := Stage{
				Stage:    sr.Stage.String(),
				Mode:     sr.Mode.String(),
				State:    sr.State.String(),
				Source:   string(sr.Source),
				Strategy: string(sr.Strategy),
			}
			for _, p := range sr.Outputs {
				f, err := describe(run.OutDir, p)
				if err != nil {
					return nil, err
				}
				st.Files = append(st.Files, f)
			}
			entry.Stages = append(entry.Stages, st)
		}
		m.Regions = append(m.Regions, entry)
	}
	return m, nil
}

func describe(outDir, path string) (File, error) {
	digest, size, err := fsutil.Digest(path)
	if err != nil {
		return File{}, err
	}
	rel, err := filepath.Rel(outDir, path)
	if err != nil {
		return File{}, err
	}
	return File{Path: filepath.ToSlash(rel), Size: size, BLAKE3: digest}, nil
}

// Write stores m as YAML at path.
func Write(path string, m *Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Read loads a manifest.
func Read(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding manifest %s: %w", path, err)
	}
	return &m, nil
}

// Verify re-hashes every file listed in m relative to outDir and returns
// the paths that are missing or whose digest changed.
func Verify(m *Manifest, outDir string) ([]string, error) {
	var changed []string
	for _, r := range m.Regions {
		for _, s := range r.Stages {
			for _, f := range s.Files {
				digest, _, err := fsutil.Digest(filepath.Join(outDir, filepath.FromSlash(f.Path)))
				if errors.Is(err, fs.ErrNotExist) {
					changed = append(changed, f.Path)
					continue
				}
				if err != nil {
					return nil, err
				}
				if digest != f.BLAKE3 {
					changed = append(changed, f.Path)
				}
			}
		}
	}
	return changed, nil
}
