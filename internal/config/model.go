package config

import (
	"time"

	"github.com/vk/oceanbaselines/internal/ocean"
	"github.com/vk/oceanbaselines/internal/region"
)

// Model is the unified, format-agnostic representation of a configuration
// file: the region catalog plus the collaborator settings shared by every
// region. Zero fields mean "use the default".
type Model struct {
	// Regions replaces the built-in catalog when non-empty.
	Regions    []region.Region
	Settings   Settings
	Bathymetry Bathymetry
	VGrid      ocean.VGridParams
	Forcing    Forcing
}

// Settings are run-level options that the CLI may also set.
type Settings struct {
	OutDir    string
	Prefix    string
	CacheRoot string
}

// Bathymetry configures the raster and the placeholder strategy.
type Bathymetry struct {
	Source           string
	Coords           ocean.Coords
	MinDepth         float64
	PlaceholderDepth float64
}

// Forcing configures raw-data acquisition.
type Forcing struct {
	BaseURL        string
	Start          time.Time
	End            time.Time
	Boundaries     []string
	Variables      ocean.VarMap
	Attempts       int
	AttemptTimeout time.Duration
}

// Defaults used when neither the file nor the CLI sets a value.
const (
	DefaultOutDir           = "baselines"
	DefaultCacheRoot        = ".baseline_cache"
	DefaultMinDepth         = 9.5
	DefaultPlaceholderDepth = 1000.0
)

// DefaultVGrid is the vertical grid used when no vgrid block is given.
func DefaultVGrid() ocean.VGridParams {
	return ocean.VGridParams{Layers: 75, Depth: 4500, Ratio: 20}
}

// DefaultDates is the forcing window used when the forcing block omits one.
func DefaultDates() ocean.DateRange {
	return ocean.DateRange{
		Start: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2020, 1, 9, 0, 0, 0, 0, time.UTC),
	}
}

// WithDefaults returns a copy of m with every unset field filled in.
func (m Model) WithDefaults() Model {
	if m.Settings.OutDir == "" {
		m.Settings.OutDir = DefaultOutDir
	}
	if m.Settings.CacheRoot == "" {
		m.Settings.CacheRoot = DefaultCacheRoot
	}

	defCoords := ocean.DefaultCoords()
	c := &m.Bathymetry.Coords
	if c.Longitude == "" {
		c.Longitude = defCoords.Longitude
	}
	if c.Latitude == "" {
		c.Latitude = defCoords.Latitude
	}
	if c.Elevation == "" {
		c.Elevation = defCoords.Elevation
	}
	if m.Bathymetry.MinDepth == 0 {
		m.Bathymetry.MinDepth = DefaultMinDepth
	}
	if m.Bathymetry.PlaceholderDepth == 0 {
		m.Bathymetry.PlaceholderDepth = DefaultPlaceholderDepth
	}

	if m.VGrid == (ocean.VGridParams{}) {
		m.VGrid = DefaultVGrid()
	}

	dates := DefaultDates()
	if m.Forcing.Start.IsZero() {
		m.Forcing.Start = dates.Start
	}
	if m.Forcing.End.IsZero() {
		m.Forcing.End = dates.End
	}
	if len(m.Forcing.Boundaries) == 0 {
		m.Forcing.Boundaries = ocean.DefaultBoundaries()
	}
	vars := ocean.DefaultVarMap()
	for role, name := range m.Forcing.Variables {
		vars[role] = name
	}
	m.Forcing.Variables = vars
	return m
}

// Dates returns the configured forcing window.
func (f Forcing) Dates() ocean.DateRange {
	return ocean.DateRange{Start: f.Start, End: f.End}
}
