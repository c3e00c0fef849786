package pipeline

import (
	"path/filepath"

	"github.com/vk/oceanbaselines/internal/stage"
)

// Ext is the extension of every baseline file.
const Ext = ".nc"

var suffixes = map[stage.Stage]string{
	stage.Grid:    "",
	stage.VGrid:   "_vgrid",
	stage.Bathy:   "_bathy",
	stage.Forcing: "_forcing",
}

// Prefixed joins prefix and name with an underscore; an empty prefix adds nothing.
func Prefixed(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "_" + name
}

// OutputPath is where a single-file stage writes its baseline:
// {outDir}/{prefix_}{region}{suffix}.nc.
func OutputPath(outDir, prefix, regionName string, s stage.Stage) string {
	return filepath.Join(outDir, Prefixed(prefix, regionName+suffixes[s]+Ext))
}

// ForcingDir is the directory forcing files are published into.
func ForcingDir(outDir, prefix, regionName string) string {
	return filepath.Join(outDir, Prefixed(prefix, regionName+suffixes[stage.Forcing]))
}

var publishPatterns = []string{"forcing_*", "*_ic*", "init_*"}

// Publishable reports whether a file built in the case directory is a
// forcing product to copy into the output directory.
func Publishable(name string) bool {
	for _, pattern := range publishPatterns {
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
	}
	return false
}
