package refengine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/vk/oceanbaselines/internal/ocean"
)

// Raster is a gridded elevation dataset: named 1-D coordinate variables
// and a row-major (lat, lon) elevation variable, positive up.
type Raster struct {
	Variables map[string][]float64 `cbor:"variables"`
}

// NewRaster builds a raster using the given coordinate names.
func NewRaster(c ocean.Coords, lon, lat, elevation []float64) *Raster {
	return &Raster{Variables: map[string][]float64{
		c.Longitude: lon,
		c.Latitude:  lat,
		c.Elevation: elevation,
	}}
}

// WriteRaster persists r.
func WriteRaster(path string, r *Raster) error {
	return WriteFile(path, KindRaster, r)
}

type rasterView struct {
	lon, lat, elev []float64
}

func (v rasterView) at(i, j int) float64 {
	return v.elev[j*len(v.lon)+i]
}

// BathymetryEngine derives bathymetry from rasters written by WriteRaster.
type BathymetryEngine struct{}

type bathyFile struct {
	Grid  string    `cbor:"grid"`
	NX    int       `cbor:"nx"`
	NY    int       `cbor:"ny"`
	Depth []float64 `cbor:"depth"`
}

// open reads src and resolves its coordinate variables. Every failure is a
// source-access failure.
func open(src ocean.RasterSource) (rasterView, error) {
	var r Raster
	if err := ReadFile(src.Path, KindRaster, &r); err != nil {
		return rasterView{}, &ocean.SourceAccessError{Op: "open", Path: src.Path, Err: err}
	}
	coords := src.Coords
	if coords == (ocean.Coords{}) {
		coords = ocean.DefaultCoords()
	}
	v := rasterView{
		lon:  r.Variables[coords.Longitude],
		lat:  r.Variables[coords.Latitude],
		elev: r.Variables[coords.Elevation],
	}
	for name, values := range map[string][]float64{coords.Longitude: v.lon, coords.Latitude: v.lat, coords.Elevation: v.elev} {
		if len(values) == 0 {
			return rasterView{}, &ocean.SourceAccessError{Op: "variable", Path: src.Path, Err: fmt.Errorf("missing variable %q", name)}
		}
	}
	if len(v.elev) != len(v.lon)*len(v.lat) {
		return rasterView{}, &ocean.SourceAccessError{Op: "variable", Path: src.Path,
			Err: fmt.Errorf("elevation has %d values, want %dx%d", len(v.elev), len(v.lat), len(v.lon))}
	}
	if !sort.Float64sAreSorted(v.lon) || !sort.Float64sAreSorted(v.lat) {
		return rasterView{}, &ocean.SourceAccessError{Op: "variable", Path: src.Path, Err: errors.New("coordinates must be ascending")}
	}
	return v, nil
}

// toDepth converts elevation (positive up) to depth (positive down). Land
// is 0; ocean shallower than minDepth is deepened to minDepth.
func toDepth(elevation, minDepth float64) float64 {
	d := -elevation
	switch {
	case d <= 0:
		return 0
	case d < minDepth:
		return minDepth
	default:
		return d
	}
}

// ExtractFromDataset samples the raster at each cell center using the
// nearest raster point. The grid must lie inside the raster.
func (BathymetryEngine) ExtractFromDataset(ctx context.Context, g *ocean.Grid, src ocean.RasterSource) (*ocean.Bathymetry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v, err := open(src)
	if err != nil {
		return nil, err
	}
	xs, ys := cellCenters(g.Lon), cellCenters(g.Lat)
	if !covers(v.lon, xs) || !covers(v.lat, ys) {
		return nil, &ocean.SourceAccessError{Op: "extract", Path: src.Path,
			Err: fmt.Errorf("grid %s is not inside the raster bounds", g.Name)}
	}

	b := newBathymetry(g.Name, len(xs), len(ys))
	for j, y := range ys {
		jj := nearest(v.lat, y)
		for i, x := range xs {
			b.Depth[j*b.NX+i] = toDepth(v.at(nearest(v.lon, x), jj), src.MinDepth)
		}
	}
	return b, nil
}

// InterpolateFromFile bilinearly interpolates the raster onto the cell
// centers, clamping points outside the raster to its edges.
func (BathymetryEngine) InterpolateFromFile(ctx context.Context, g *ocean.Grid, src ocean.RasterSource) (*ocean.Bathymetry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v, err := open(src)
	if err != nil {
		return nil, err
	}
	xs, ys := cellCenters(g.Lon), cellCenters(g.Lat)
	b := newBathymetry(g.Name, len(xs), len(ys))
	for j, y := range ys {
		j0, j1, ty := bracket(v.lat, y)
		for i, x := range xs {
			i0, i1, tx := bracket(v.lon, x)
			e := (1-tx)*(1-ty)*v.at(i0, j0) + tx*(1-ty)*v.at(i1, j0) +
				(1-tx)*ty*v.at(i0, j1) + tx*ty*v.at(i1, j1)
			b.Depth[j*b.NX+i] = toDepth(e, src.MinDepth)
		}
	}
	return b, nil
}

// ConstantDepth fills every cell with depth.
func (BathymetryEngine) ConstantDepth(ctx context.Context, g *ocean.Grid, depth float64) (*ocean.Bathymetry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if depth <= 0 {
		return nil, fmt.Errorf("constant depth must be positive, got %g", depth)
	}
	nx, ny := g.Cells()
	b := newBathymetry(g.Name, nx, ny)
	for i := range b.Depth {
		b.Depth[i] = depth
	}
	return b, nil
}

// WriteBathymetry persists b.
func (BathymetryEngine) WriteBathymetry(ctx context.Context, b *ocean.Bathymetry, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return WriteFile(path, KindBathymetry, bathyFile{Grid: b.Grid, NX: b.NX, NY: b.NY, Depth: b.Depth})
}

// ReadBathymetry loads a bathymetry file and checks it fits g.
func (BathymetryEngine) ReadBathymetry(ctx context.Context, g *ocean.Grid, path string) (*ocean.Bathymetry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var f bathyFile
	if err := ReadFile(path, KindBathymetry, &f); err != nil {
		return nil, err
	}
	nx, ny := g.Cells()
	if f.NX != nx || f.NY != ny || len(f.Depth) != nx*ny {
		return nil, fmt.Errorf("%s: bathymetry is %dx%d, grid %s is %dx%d", path, f.NX, f.NY, g.Name, nx, ny)
	}
	return &ocean.Bathymetry{Grid: g.Name, NX: f.NX, NY: f.NY, Depth: f.Depth}, nil
}

func newBathymetry(grid string, nx, ny int) *ocean.Bathymetry {
	return &ocean.Bathymetry{Grid: grid, NX: nx, NY: ny, Depth: make([]float64, nx*ny)}
}

func covers(axis, points []float64) bool {
	if len(points) == 0 {
		return true
	}
	return points[0] >= axis[0] && points[len(points)-1] <= axis[len(axis)-1]
}

// nearest returns the index of the axis value closest to x.
func nearest(axis []float64, x float64) int {
	i := sort.SearchFloat64s(axis, x)
	switch {
	case i == 0:
		return 0
	case i == len(axis):
		return len(axis) - 1
	case math.Abs(axis[i]-x) < math.Abs(x-axis[i-1]):
		return i
	default:
		return i - 1
	}
}

// bracket returns the indices around x and x's fractional position
// between them, clamped to the axis ends.
func bracket(axis []float64, x float64) (int, int, float64) {
	last := len(axis) - 1
	if last == 0 || x <= axis[0] {
		return 0, 0, 0
	}
	if x >= axis[last] {
		return last, last, 0
	}
	i := sort.SearchFloat64s(axis, x)
	if axis[i] == x {
		return i, i, 0
	}
	return i - 1, i, (x - axis[i-1]) / (axis[i] - axis[i-1])
}
