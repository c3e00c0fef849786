package hcl_adapter

import (
	"errors"
	"fmt"
	"time"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"

	"github.com/vk/oceanbaselines/internal/config"
	"github.com/vk/oceanbaselines/internal/ocean"
	"github.com/vk/oceanbaselines/internal/region"
	"github.com/vk/oceanbaselines/internal/schema"
)

// translateRegion converts a region block and validates it.
func translateRegion(r *schema.Region) (region.Region, error) {
	lon, err := decodeExtent(r.Longitude)
	if err != nil {
		return region.Region{}, fmt.Errorf("region %q: longitude: %w", r.Name, err)
	}
	lat, err := decodeExtent(r.Latitude)
	if err != nil {
		return region.Region{}, fmt.Errorf("region %q: latitude: %w", r.Name, err)
	}

	reg := region.Region{
		Name:       r.Name,
		Longitude:  lon,
		Latitude:   lat,
		Resolution: r.Resolution,
		SizeClass:  region.SizeClass(r.SizeClass),
	}
	if reg.SizeClass == "" {
		reg.SizeClass = region.Standard
	}
	if r.VGrid != nil {
		reg.VGrid = region.VGridSpec{Layers: r.VGrid.Layers, Depth: r.VGrid.Depth, Ratio: r.VGrid.Ratio}
	}
	if err := reg.Validate(); err != nil {
		return region.Region{}, err
	}
	return reg, nil
}

// decodeExtent reads a [min, max] pair from any numeric list or tuple.
func decodeExtent(v cty.Value) (region.Extent, error) {
	if v.IsNull() || !v.IsWhollyKnown() {
		return region.Extent{}, errors.New("must be set")
	}
	list, err := convert.Convert(v, cty.List(cty.Number))
	if err != nil {
		return region.Extent{}, fmt.Errorf("must be a list of two numbers: %w", err)
	}
	var pair []float64
	if err := gocty.FromCtyValue(list, &pair); err != nil {
		return region.Extent{}, err
	}
	if len(pair) != 2 {
		return region.Extent{}, fmt.Errorf("must have exactly two elements, got %d", len(pair))
	}
	return region.Extent{Min: pair[0], Max: pair[1]}, nil
}

func translateSettings(s *schema.Settings) config.Settings {
	return config.Settings{OutDir: s.OutDir, Prefix: s.Prefix, CacheRoot: s.CacheRoot}
}

func translateBathymetry(b *schema.Bathymetry) config.Bathymetry {
	out := config.Bathymetry{Source: b.Source}
	if b.MinDepth != nil {
		out.MinDepth = *b.MinDepth
	}
	if b.PlaceholderDepth != nil {
		out.PlaceholderDepth = *b.PlaceholderDepth
	}
	if b.Coords != nil {
		out.Coords = ocean.Coords{Longitude: b.Coords.Longitude, Latitude: b.Coords.Latitude, Elevation: b.Coords.Elevation}
	}
	return out
}

func translateVGrid(v *schema.VGrid) ocean.VGridParams {
	return ocean.VGridParams{Layers: v.Layers, Depth: v.Depth, Ratio: v.Ratio}
}

func translateForcing(f *schema.Forcing) (config.Forcing, error) {
	out := config.Forcing{
		BaseURL:    f.BaseURL,
		Boundaries: f.Boundaries,
		Attempts:   f.Attempts,
	}
	if len(f.Variables) > 0 {
		out.Variables = ocean.VarMap(f.Variables)
	}

	var err error
	if out.Start, err = parseDate("start", f.Start); err != nil {
		return config.Forcing{}, err
	}
	if out.End, err = parseDate("end", f.End); err != nil {
		return config.Forcing{}, err
	}
	if !out.Start.IsZero() && !out.End.IsZero() && out.End.Before(out.Start) {
		return config.Forcing{}, fmt.Errorf("forcing: end %s is before start %s", f.End, f.Start)
	}
	if f.AttemptTimeout != "" {
		if out.AttemptTimeout, err = time.ParseDuration(f.AttemptTimeout); err != nil {
			return config.Forcing{}, fmt.Errorf("forcing: attempt_timeout: %w", err)
		}
	}
	if f.Attempts < 0 {
		return config.Forcing{}, fmt.Errorf("forcing: attempts must not be negative, got %d", f.Attempts)
	}
	return out, nil
}

func parseDate(attr, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("forcing: %s: %w", attr, err)
	}
	return t, nil
}
