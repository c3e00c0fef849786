package bathy

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/oceanbaselines/internal/ocean"
	"github.com/vk/oceanbaselines/internal/region"
	"github.com/vk/oceanbaselines/internal/testutil"
)

func request(r region.Region) Request {
	return Request{
		Region: r,
		Grid:   &ocean.Grid{Name: r.Name},
		Source: ocean.RasterSource{Path: "gebco.nc", Coords: ocean.DefaultCoords()},
	}
}

func TestResolve_OversizedUsesPlaceholderOnly(t *testing.T) {
	fakes := testutil.NewFakeEngines()
	r := testutil.Square("big", 0, 0)
	r.SizeClass = region.Oversized

	res, err := NewResolver(fakes, WithPlaceholderDepth(4000)).Resolve(context.Background(), request(r))
	require.NoError(t, err)
	assert.Equal(t, Placeholder, res.Strategy)
	assert.Equal(t, []float64{4000}, res.Bathymetry.Depth)
	assert.Equal(t, []string{"ConstantDepth:big"}, fakes.Calls(), "oversized regions never touch the raster")
}

func TestResolve_PrimarySuccess(t *testing.T) {
	fakes := testutil.NewFakeEngines()

	res, err := NewResolver(fakes).Resolve(context.Background(), request(testutil.Square("A", 0, 0)))
	require.NoError(t, err)
	assert.Equal(t, Primary, res.Strategy)
	assert.Equal(t, []string{"ExtractFromDataset:A"}, fakes.Calls())
	assert.Len(t, res.Attempts, 1)
}

func TestResolve_SourceAccessFailureFallsBack(t *testing.T) {
	fakes := testutil.NewFakeEngines()
	fakes.ExtractErr["A"] = &ocean.SourceAccessError{Op: "decode", Path: "gebco.nc", Err: errors.New("coordinate lon not found")}

	res, err := NewResolver(fakes).Resolve(context.Background(), request(testutil.Square("A", 0, 0)))
	require.NoError(t, err)
	assert.Equal(t, Fallback, res.Strategy)
	assert.Equal(t, []float64{200}, res.Bathymetry.Depth)
	assert.Equal(t, []string{"ExtractFromDataset:A", "InterpolateFromFile:A"}, fakes.Calls())
	require.Len(t, res.Attempts, 2)
	assert.Equal(t, Recoverable, res.Attempts[0].Kind)
	assert.Equal(t, Success, res.Attempts[1].Kind)
}

func TestResolve_UnrelatedErrorDoesNotFallBack(t *testing.T) {
	fakes := testutil.NewFakeEngines()
	boom := errors.New("grid has no cells")
	fakes.ExtractErr["A"] = boom

	_, err := NewResolver(fakes).Resolve(context.Background(), request(testutil.Square("A", 0, 0)))
	require.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "primary bathymetry strategy for A")
	assert.Equal(t, []string{"ExtractFromDataset:A"}, fakes.Calls())
}

func TestResolve_FallbackFailureIsFatal(t *testing.T) {
	fakes := testutil.NewFakeEngines()
	primaryErr := &ocean.SourceAccessError{Op: "open", Path: "gebco.nc", Err: errors.New("permission denied")}
	fallbackErr := errors.New("window outside raster")
	fakes.ExtractErr["A"] = primaryErr
	fakes.InterpolateErr["A"] = fallbackErr

	_, err := NewResolver(fakes).Resolve(context.Background(), request(testutil.Square("A", 0, 0)))

	var fe *FallbackError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "A", fe.Region)
	assert.ErrorIs(t, err, fallbackErr)
	assert.ErrorIs(t, err, ocean.ErrSourceAccess)
	assert.Equal(t, []string{"ExtractFromDataset:A", "InterpolateFromFile:A"}, fakes.Calls(), "no strategy is retried")
}

func TestResolve_RequiresGrid(t *testing.T) {
	_, err := NewResolver(testutil.NewFakeEngines()).Resolve(context.Background(), Request{Region: testutil.Square("A", 0, 0)})
	assert.ErrorContains(t, err, "needs a grid")
}

func TestResolve_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fakes := testutil.NewFakeEngines()

	_, err := NewResolver(fakes).Resolve(ctx, request(testutil.Square("A", 0, 0)))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, fakes.Calls())
}
