// Package region defines the named geographic regions that baselines are
// produced for. Regions are plain immutable values; a Catalog holds them in
// a fixed order with unique names.
package region

import (
	"fmt"
	"math"
	"regexp"
)

// SizeClass tags regions whose bathymetry is too expensive to derive from
// the raster and gets a constant-depth placeholder instead.
type SizeClass string

const (
	Standard  SizeClass = "standard"
	Oversized SizeClass = "oversized"
)

// Valid reports whether c is a known size class.
func (c SizeClass) Valid() bool {
	return c == Standard || c == Oversized
}

// Extent is a closed coordinate interval in degrees.
type Extent struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// Span returns the width of the interval.
func (e Extent) Span() float64 {
	return e.Max - e.Min
}

// VGridSpec overrides the vertical grid parameters for one region. The
// zero value means "use the run defaults".
type VGridSpec struct {
	Layers int
	Depth  float64
	Ratio  float64
}

// IsZero reports whether no override is set.
func (v VGridSpec) IsZero() bool {
	return v == VGridSpec{}
}

// Region is a named spatial extent and resolution. Values are copied, never shared.
type Region struct {
	Name       string
	Longitude  Extent
	Latitude   Extent
	Resolution float64 // degrees
	SizeClass  SizeClass
	VGrid      VGridSpec
}

// Region names end up in file names, so they are restricted to a safe alphabet.
var nameRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

// Validate checks that r can drive the pipeline.
func (r Region) Validate() error {
	if !nameRe.MatchString(r.Name) {
		return fmt.Errorf("region name %q must match %s", r.Name, nameRe)
	}
	if !(r.Longitude.Min < r.Longitude.Max) {
		return fmt.Errorf("region %q: longitude extent [%g, %g] is empty or inverted", r.Name, r.Longitude.Min, r.Longitude.Max)
	}
	if !(r.Latitude.Min < r.Latitude.Max) {
		return fmt.Errorf("region %q: latitude extent [%g, %g] is empty or inverted", r.Name, r.Latitude.Min, r.Latitude.Max)
	}
	if r.Latitude.Min < -90 || r.Latitude.Max > 90 {
		return fmt.Errorf("region %q: latitude extent [%g, %g] outside [-90, 90]", r.Name, r.Latitude.Min, r.Latitude.Max)
	}
	if r.Resolution <= 0 || math.IsNaN(r.Resolution) || math.IsInf(r.Resolution, 0) {
		return fmt.Errorf("region %q: resolution must be positive, got %g", r.Name, r.Resolution)
	}
	if !r.SizeClass.Valid() {
		return fmt.Errorf("region %q: unknown size class %q", r.Name, r.SizeClass)
	}
	if !r.VGrid.IsZero() {
		if r.VGrid.Layers <= 0 || r.VGrid.Depth <= 0 || r.VGrid.Ratio <= 0 {
			return fmt.Errorf("region %q: vgrid override needs positive layers, depth and ratio", r.Name)
		}
	}
	return nil
}

// Oversized reports whether r takes the constant-depth bathymetry path.
func (r Region) Oversized() bool {
	return r.SizeClass == Oversized
}
