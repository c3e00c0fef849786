package hcl_adapter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/vk/oceanbaselines/internal/config"
	"github.com/vk/oceanbaselines/internal/ctxlog"
	"github.com/vk/oceanbaselines/internal/fsutil"
	"github.com/vk/oceanbaselines/internal/schema"
)

// Loader is the HCL-specific implementation of the config.Loader interface.
type Loader struct{}

// NewLoader creates a new HCL configuration loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses every .hcl file under paths and merges them into one model.
// Region blocks accumulate in file order; each of the settings, bathymetry,
// vgrid and forcing blocks may appear at most once across all files.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path_count", len(paths))

	hclFiles, err := l.findAllHCLFiles(paths)
	if err != nil {
		return nil, err
	}
	logger.Debug("Discovered HCL files.", "count", len(hclFiles))

	model := &config.Model{}
	seen := map[string]string{}
	once := func(block, file string, present bool) error {
		if !present {
			return nil
		}
		if prev, dup := seen[block]; dup {
			return fmt.Errorf("%s: %s block already defined in %s", file, block, prev)
		}
		seen[block] = file
		return nil
	}

	parser := hclparse.NewParser()
	for _, file := range hclFiles {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
		}

		var root schema.File
		diags = gohcl.DecodeBody(hclFile.Body, nil, &root)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode HCL file %s: %w", file, diags)
		}

		for _, r := range root.Regions {
			reg, err := translateRegion(r)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", file, err)
			}
			model.Regions = append(model.Regions, reg)
		}

		for block, present := range map[string]bool{
			"settings":   root.Settings != nil,
			"bathymetry": root.Bathymetry != nil,
			"vgrid":      root.VGrid != nil,
			"forcing":    root.Forcing != nil,
		} {
			if err := once(block, file, present); err != nil {
				return nil, err
			}
		}
		if root.Settings != nil {
			model.Settings = translateSettings(root.Settings)
		}
		if root.Bathymetry != nil {
			model.Bathymetry = translateBathymetry(root.Bathymetry)
		}
		if root.VGrid != nil {
			model.VGrid = translateVGrid(root.VGrid)
		}
		if root.Forcing != nil {
			f, err := translateForcing(root.Forcing)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", file, err)
			}
			model.Forcing = f
		}
	}

	logger.Debug("HCL loading complete.", "files", len(hclFiles), "regions", len(model.Regions))
	return model, nil
}

// findAllHCLFiles expands paths into a flat, de-duplicated list of .hcl
// files. Directories are searched recursively.
func (l *Loader) findAllHCLFiles(paths []string) ([]string, error) {
	var allFiles []string
	seen := make(map[string]struct{})
	add := func(p string) {
		if _, wasSeen := seen[p]; !wasSeen {
			allFiles = append(allFiles, p)
			seen[p] = struct{}{}
		}
	}

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("error accessing config path %s: %w", path, err)
		}
		if !info.IsDir() {
			add(path)
			continue
		}
		files, err := fsutil.FindFiles(path, func(name string) bool { return filepath.Ext(name) == ".hcl" })
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			add(f)
		}
	}
	return allFiles, nil
}
