// Package ocean declares the capabilities the pipeline consumes from the
// model-setup tooling: building and writing grids, deriving bathymetry from
// a raster, and producing initial/boundary forcing. The pipeline only sees
// these interfaces; internal/refengine is one binding of them.
package ocean

import (
	"fmt"
	"time"
)

// Grid is a horizontal supergrid. Lon and Lat hold the node coordinates
// along each axis (supergrids carry twice the cell resolution).
type Grid struct {
	Name string
	Lon  []float64
	Lat  []float64
}

// Cells returns the number of model cells along each axis.
func (g *Grid) Cells() (nx, ny int) {
	return (len(g.Lon) - 1) / 2, (len(g.Lat) - 1) / 2
}

// VGridParams configures the vertical coordinate.
type VGridParams struct {
	Layers int
	Depth  float64
	Ratio  float64
}

// VerticalGrid holds layer thicknesses from the surface down.
type VerticalGrid struct {
	Thickness []float64
}

// Bathymetry is a depth field on a grid's cells, row-major (lat, lon),
// positive down, in metres.
type Bathymetry struct {
	Grid  string
	NX    int
	NY    int
	Depth []float64
}

// Coords names the coordinate and elevation variables inside a raster.
type Coords struct {
	Longitude string
	Latitude  string
	Elevation string
}

// DefaultCoords are the variable names used by GEBCO rasters.
func DefaultCoords() Coords {
	return Coords{Longitude: "lon", Latitude: "lat", Elevation: "elevation"}
}

// RasterSource points at the bathymetry raster a region is derived from.
type RasterSource struct {
	Path     string
	Coords   Coords
	MinDepth float64
}

// DateRange bounds the forcing acquisition window.
type DateRange struct {
	Start time.Time
	End   time.Time
}

func (d DateRange) String() string {
	return fmt.Sprintf("%s..%s", d.Start.Format(time.DateOnly), d.End.Format(time.DateOnly))
}

// VarMap maps model variable roles (e.g. "temp", "u") to the variable names
// used in the raw reanalysis files.
type VarMap map[string]string

// DefaultVarMap matches the GLORYS reanalysis naming.
func DefaultVarMap() VarMap {
	return VarMap{
		"time":      "time",
		"longitude": "longitude",
		"latitude":  "latitude",
		"depth":     "depth",
		"eta":       "zos",
		"u":         "uo",
		"v":         "vo",
		"salt":      "so",
		"temp":      "thetao",
	}
}

// InitialConditionKey is the forcing sub-key of the raw initial-condition file.
const InitialConditionKey = "ic"

// DefaultBoundaries are the open-boundary directions fetched for forcing.
func DefaultBoundaries() []string {
	return []string{"north", "south", "east", "west"}
}
