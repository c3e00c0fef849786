package ocean

import (
	"context"

	"github.com/vk/oceanbaselines/internal/region"
)

// GridBuilder constructs and persists horizontal grids.
type GridBuilder interface {
	BuildGrid(ctx context.Context, r region.Region) (*Grid, error)
	WriteGrid(ctx context.Context, g *Grid, path string) error
}

// VerticalGridBuilder constructs and persists vertical coordinates.
type VerticalGridBuilder interface {
	BuildVerticalGrid(ctx context.Context, p VGridParams) (*VerticalGrid, error)
	WriteVerticalGrid(ctx context.Context, v *VerticalGrid, path string) error
}

// BathymetryEngine derives bathymetry for a grid.
//
// ExtractFromDataset is the primary strategy. Implementations signal a
// problem with the raster itself (format, coordinates, I/O) by returning an
// error that matches ErrSourceAccess; any other error is treated as fatal.
type BathymetryEngine interface {
	ExtractFromDataset(ctx context.Context, g *Grid, src RasterSource) (*Bathymetry, error)
	InterpolateFromFile(ctx context.Context, g *Grid, src RasterSource) (*Bathymetry, error)
	ConstantDepth(ctx context.Context, g *Grid, depth float64) (*Bathymetry, error)
	WriteBathymetry(ctx context.Context, b *Bathymetry, path string) error
	ReadBathymetry(ctx context.Context, g *Grid, path string) (*Bathymetry, error)
}

// ForcingEngine acquires raw reanalysis data and turns it into model forcing.
type ForcingEngine interface {
	// FetchRawBoundaryData downloads one raw file per sub-key (the initial
	// condition plus each boundary) into destDir and returns their paths.
	FetchRawBoundaryData(ctx context.Context, r region.Region, subKeys []string, dates DateRange, destDir string) (map[string]string, error)
	BuildInitialCondition(ctx context.Context, rawFile string, vars VarMap, outDir string) ([]string, error)
	BuildBoundaryForcing(ctx context.Context, rawDir string, vars VarMap, bathy *Bathymetry, outDir string) ([]string, error)
}

// Engines bundles one binding of every collaborator.
type Engines struct {
	Grid       GridBuilder
	VGrid      VerticalGridBuilder
	Bathymetry BathymetryEngine
	Forcing    ForcingEngine
}
