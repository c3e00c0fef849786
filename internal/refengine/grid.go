// Package refengine is a self-contained binding of the ocean collaborators.
// It produces small, deterministic artifacts suitable as regression
// fixtures: evenly spaced supergrids, stretched vertical grids, bathymetry
// sampled from a gridded raster, and forcing files wrapping raw downloads.
package refengine

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/vk/oceanbaselines/internal/ocean"
	"github.com/vk/oceanbaselines/internal/region"
)

// GridBuilder builds evenly spaced supergrids.
type GridBuilder struct{}

type gridFile struct {
	Name string    `cbor:"name"`
	Lon  []float64 `cbor:"lon"`
	Lat  []float64 `cbor:"lat"`
}

// BuildGrid lays out a supergrid with nodes every half cell, so a region of
// N cells along an axis has 2N+1 nodes.
func (GridBuilder) BuildGrid(ctx context.Context, r region.Region) (*ocean.Grid, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.Resolution <= 0 {
		return nil, fmt.Errorf("region %s: resolution must be positive", r.Name)
	}
	lon, err := supergridAxis(r.Longitude, r.Resolution)
	if err != nil {
		return nil, fmt.Errorf("region %s longitude: %w", r.Name, err)
	}
	lat, err := supergridAxis(r.Latitude, r.Resolution)
	if err != nil {
		return nil, fmt.Errorf("region %s latitude: %w", r.Name, err)
	}
	return &ocean.Grid{Name: r.Name, Lon: lon, Lat: lat}, nil
}

func supergridAxis(e region.Extent, res float64) ([]float64, error) {
	cells := int(math.Round(e.Span() / res))
	if cells < 1 {
		return nil, errors.New("extent is smaller than one cell")
	}
	step := e.Span() / float64(2*cells)
	nodes := make([]float64, 2*cells+1)
	for i := range nodes {
		nodes[i] = e.Min + float64(i)*step
	}
	nodes[len(nodes)-1] = e.Max
	return nodes, nil
}

// WriteGrid persists g.
func (GridBuilder) WriteGrid(ctx context.Context, g *ocean.Grid, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return WriteFile(path, KindGrid, gridFile{Name: g.Name, Lon: g.Lon, Lat: g.Lat})
}

// cellCenters returns the supergrid nodes at odd indices.
func cellCenters(nodes []float64) []float64 {
	out := make([]float64, 0, len(nodes)/2)
	for i := 1; i < len(nodes); i += 2 {
		out = append(out, nodes[i])
	}
	return out
}
