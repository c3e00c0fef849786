// Package schema holds the HCL decoding targets of the configuration file.
// Unknown blocks and attributes are decode errors.
package schema

import "github.com/zclconf/go-cty/cty"

// File represents every top-level block a configuration file may contain.
type File struct {
	Regions    []*Region   `hcl:"region,block"`
	Settings   *Settings   `hcl:"settings,block"`
	Bathymetry *Bathymetry `hcl:"bathymetry,block"`
	VGrid      *VGrid      `hcl:"vgrid,block"`
	Forcing    *Forcing    `hcl:"forcing,block"`
}

// Region represents a `region` block. Extents are two-element numeric
// lists, e.g. longitude = [304, 307].
type Region struct {
	Name       string    `hcl:"name,label"`
	Longitude  cty.Value `hcl:"longitude"`
	Latitude   cty.Value `hcl:"latitude"`
	Resolution float64   `hcl:"resolution"`
	SizeClass  string    `hcl:"size_class,optional"`
	VGrid      *VGrid    `hcl:"vgrid,block"`
}

// Settings represents the `settings` block.
type Settings struct {
	OutDir    string `hcl:"out_dir,optional"`
	Prefix    string `hcl:"prefix,optional"`
	CacheRoot string `hcl:"cache_root,optional"`
}

// Coords names the raster's coordinate variables.
type Coords struct {
	Longitude string `hcl:"longitude,optional"`
	Latitude  string `hcl:"latitude,optional"`
	Elevation string `hcl:"elevation,optional"`
}

// Bathymetry represents the `bathymetry` block.
type Bathymetry struct {
	Source           string   `hcl:"source,optional"`
	MinDepth         *float64 `hcl:"min_depth,optional"`
	PlaceholderDepth *float64 `hcl:"placeholder_depth,optional"`
	Coords           *Coords  `hcl:"coords,block"`
}

// VGrid represents a `vgrid` block, at top level or inside a region.
type VGrid struct {
	Layers int     `hcl:"layers"`
	Depth  float64 `hcl:"depth"`
	Ratio  float64 `hcl:"ratio"`
}

// Forcing represents the `forcing` block. Dates are YYYY-MM-DD and the
// attempt timeout is a Go duration string.
type Forcing struct {
	BaseURL        string            `hcl:"base_url,optional"`
	Start          string            `hcl:"start,optional"`
	End            string            `hcl:"end,optional"`
	Boundaries     []string          `hcl:"boundaries,optional"`
	Variables      map[string]string `hcl:"variables,optional"`
	Attempts       int               `hcl:"attempts,optional"`
	AttemptTimeout string            `hcl:"attempt_timeout,optional"`
}
