package refengine

import (
	"context"
	"fmt"
	"math"

	"github.com/vk/oceanbaselines/internal/ocean"
)

// VerticalGridBuilder builds geometrically stretched layer profiles.
type VerticalGridBuilder struct{}

type vgridFile struct {
	Thickness []float64 `cbor:"dz"`
	Interface []float64 `cbor:"zi"`
}

// BuildVerticalGrid returns Layers thicknesses growing geometrically from
// the surface so the bottom layer is Ratio times the top one and the
// layers sum to Depth.
func (VerticalGridBuilder) BuildVerticalGrid(ctx context.Context, p ocean.VGridParams) (*ocean.VerticalGrid, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch {
	case p.Layers < 1:
		return nil, fmt.Errorf("vertical grid needs at least one layer, got %d", p.Layers)
	case p.Depth <= 0:
		return nil, fmt.Errorf("vertical grid depth must be positive, got %g", p.Depth)
	case p.Ratio < 1:
		return nil, fmt.Errorf("vertical grid ratio must be at least 1, got %g", p.Ratio)
	}

	dz := make([]float64, p.Layers)
	if p.Layers == 1 {
		dz[0] = p.Depth
		return &ocean.VerticalGrid{Thickness: dz}, nil
	}

	q := math.Pow(p.Ratio, 1/float64(p.Layers-1))
	sum := 0.0
	for k := range dz {
		dz[k] = math.Pow(q, float64(k))
		sum += dz[k]
	}
	for k := range dz {
		dz[k] *= p.Depth / sum
	}
	return &ocean.VerticalGrid{Thickness: dz}, nil
}

// WriteVerticalGrid persists v with its interface depths.
func (VerticalGridBuilder) WriteVerticalGrid(ctx context.Context, v *ocean.VerticalGrid, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	zi := make([]float64, len(v.Thickness)+1)
	for k, dz := range v.Thickness {
		zi[k+1] = zi[k] + dz
	}
	return WriteFile(path, KindVGrid, vgridFile{Thickness: v.Thickness, Interface: zi})
}
