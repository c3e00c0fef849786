package refengine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/oceanbaselines/internal/acquire"
	"github.com/vk/oceanbaselines/internal/ocean"
	"github.com/vk/oceanbaselines/internal/testutil"
)

func readGrid(path string) (*ocean.Grid, error) {
	var f gridFile
	if err := ReadFile(path, KindGrid, &f); err != nil {
		return nil, err
	}
	return &ocean.Grid{Name: f.Name, Lon: f.Lon, Lat: f.Lat}, nil
}

func readProduct(path string) (*Product, error) {
	var p Product
	if err := ReadFile(path, KindForcing, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// linearRaster covers [0,2]x[0,2] every 0.5° with depth 100 + 40*lon + 400*lat,
// which bilinear interpolation reproduces exactly.
func linearRaster(t *testing.T, coords ocean.Coords) string {
	t.Helper()
	axis := []float64{0, 0.5, 1, 1.5, 2}
	elev := make([]float64, 0, len(axis)*len(axis))
	for _, lat := range axis {
		for _, lon := range axis {
			elev = append(elev, -(100 + 40*lon + 400*lat))
		}
	}
	path := filepath.Join(t.TempDir(), "raster.nc")
	require.NoError(t, WriteRaster(path, NewRaster(coords, axis, axis, elev)))
	return path
}

func buildGrid(t *testing.T, lon, lat float64) *ocean.Grid {
	t.Helper()
	g, err := GridBuilder{}.BuildGrid(context.Background(), testutil.Square("A", lon, lat))
	require.NoError(t, err)
	return g
}

func TestBuildGrid_Supergrid(t *testing.T) {
	g := buildGrid(t, 0, 0)

	want := []float64{0, 0.125, 0.25, 0.375, 0.5, 0.625, 0.75, 0.875, 1}
	if diff := cmp.Diff(want, g.Lon, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("Lon mismatch (-want +got):\n%s", diff)
	}
	nx, ny := g.Cells()
	assert.Equal(t, 4, nx)
	assert.Equal(t, 4, ny)
}

func TestBuildGrid_TooSmall(t *testing.T) {
	r := testutil.Square("tiny", 0, 0)
	r.Resolution = 5

	_, err := GridBuilder{}.BuildGrid(context.Background(), r)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "smaller than one cell")
}

func TestGrid_WriteRead(t *testing.T) {
	g := buildGrid(t, 0, 0)
	path := filepath.Join(t.TempDir(), "A.nc")

	require.NoError(t, GridBuilder{}.WriteGrid(context.Background(), g, path))
	got, err := readGrid(path)

	require.NoError(t, err)
	assert.Equal(t, g, got)
}

func TestBuildVerticalGrid_Stretched(t *testing.T) {
	v, err := VerticalGridBuilder{}.BuildVerticalGrid(context.Background(), ocean.VGridParams{Layers: 4, Depth: 100, Ratio: 8})
	require.NoError(t, err)
	require.Len(t, v.Thickness, 4)

	sum := 0.0
	for k, dz := range v.Thickness {
		sum += dz
		if k > 0 {
			assert.Greater(t, dz, v.Thickness[k-1], "layers thicken with depth")
		}
	}
	assert.InDelta(t, 100, sum, 1e-9)
	assert.InDelta(t, 8, v.Thickness[3]/v.Thickness[0], 1e-9)
}

func TestBuildVerticalGrid_Invalid(t *testing.T) {
	for _, p := range []ocean.VGridParams{
		{Layers: 0, Depth: 100, Ratio: 1},
		{Layers: 3, Depth: 0, Ratio: 1},
		{Layers: 3, Depth: 100, Ratio: 0.5},
	} {
		_, err := VerticalGridBuilder{}.BuildVerticalGrid(context.Background(), p)
		assert.Error(t, err, "%+v", p)
	}
}

func TestExtractFromDataset_NearestNeighbour(t *testing.T) {
	src := ocean.RasterSource{Path: linearRaster(t, ocean.DefaultCoords()), MinDepth: 9.5}

	b, err := BathymetryEngine{}.ExtractFromDataset(context.Background(), buildGrid(t, 0, 0), src)

	require.NoError(t, err)
	assert.Equal(t, 4, b.NX)
	assert.Equal(t, 4, b.NY)
	// Center (0.125, 0.125) snaps to raster point (0, 0); (0.875, 0.875) to (1, 1).
	assert.InDelta(t, 100, b.Depth[0], 1e-9)
	assert.InDelta(t, 540, b.Depth[15], 1e-9)
}

func TestExtractFromDataset_SourceAccessFailures(t *testing.T) {
	ctx := context.Background()
	good := linearRaster(t, ocean.DefaultCoords())
	notRaster := filepath.Join(t.TempDir(), "grid.nc")
	require.NoError(t, GridBuilder{}.WriteGrid(ctx, buildGrid(t, 0, 0), notRaster))

	testCases := []struct {
		name string
		grid *ocean.Grid
		src  ocean.RasterSource
	}{
		{"missing file", buildGrid(t, 0, 0), ocean.RasterSource{Path: filepath.Join(t.TempDir(), "nope.nc")}},
		{"wrong artifact kind", buildGrid(t, 0, 0), ocean.RasterSource{Path: notRaster}},
		{"missing coordinate variable", buildGrid(t, 0, 0), ocean.RasterSource{Path: good, Coords: ocean.Coords{Longitude: "x", Latitude: "lat", Elevation: "elevation"}}},
		{"grid outside raster", buildGrid(t, 5, 5), ocean.RasterSource{Path: good}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := BathymetryEngine{}.ExtractFromDataset(ctx, tc.grid, tc.src)

			require.Error(t, err)
			assert.True(t, ocean.IsSourceAccess(err), "got %v", err)
		})
	}
}

func TestInterpolateFromFile_Bilinear(t *testing.T) {
	src := ocean.RasterSource{Path: linearRaster(t, ocean.DefaultCoords())}

	b, err := BathymetryEngine{}.InterpolateFromFile(context.Background(), buildGrid(t, 0, 0), src)

	require.NoError(t, err)
	assert.InDelta(t, 100+40*0.125+400*0.125, b.Depth[0], 1e-9)
	assert.InDelta(t, 100+40*0.875+400*0.625, b.Depth[2*4+3], 1e-9)
}

func TestInterpolateFromFile_ClampsOutsideRaster(t *testing.T) {
	src := ocean.RasterSource{Path: linearRaster(t, ocean.DefaultCoords())}

	b, err := BathymetryEngine{}.InterpolateFromFile(context.Background(), buildGrid(t, 1.5, 1.5), src)

	require.NoError(t, err)
	// The top-right cell center (2.375, 2.375) is clamped to the raster corner (2, 2).
	assert.InDelta(t, 100+40*2+400*2, b.Depth[len(b.Depth)-1], 1e-9)
}

func TestToDepth(t *testing.T) {
	assert.Equal(t, 0.0, toDepth(12, 9.5), "land")
	assert.Equal(t, 9.5, toDepth(-3, 9.5), "shallow ocean is deepened")
	assert.Equal(t, 250.0, toDepth(-250, 9.5))
}

func TestBathymetry_WriteReadChecksShape(t *testing.T) {
	ctx := context.Background()
	g := buildGrid(t, 0, 0)
	b, err := BathymetryEngine{}.ConstantDepth(ctx, g, 1000)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "A_bathy.nc")
	require.NoError(t, BathymetryEngine{}.WriteBathymetry(ctx, b, path))

	got, err := BathymetryEngine{}.ReadBathymetry(ctx, g, path)
	require.NoError(t, err)
	assert.Equal(t, b, got)

	other := buildGrid(t, 0, 0)
	other.Lon = other.Lon[:5]
	_, err = BathymetryEngine{}.ReadBathymetry(ctx, other, path)
	assert.ErrorContains(t, err, "bathymetry is 4x4")
}

func TestDecode_WrongKind(t *testing.T) {
	data, err := Encode(KindGrid, gridFile{Name: "A"})
	require.NoError(t, err)

	var b bathyFile
	err = Decode(data, KindBathymetry, &b)

	assert.True(t, errors.Is(err, ErrKind))
}

func TestFetchRawBoundaryData(t *testing.T) {
	// Arrange
	var mu sync.Mutex
	var requested []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requested = append(requested, r.URL.String())
		mu.Unlock()
		fmt.Fprintf(w, "raw %s", r.URL.Path)
	}))
	defer srv.Close()
	engine := NewForcingEngine(srv.URL+"/", acquire.NewClient(srv.Client(), acquire.Policy{Attempts: 1}))
	dates := ocean.DateRange{Start: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), End: time.Date(2020, 1, 9, 0, 0, 0, 0, time.UTC)}
	dest := t.TempDir()

	// Act
	files, err := engine.FetchRawBoundaryData(context.Background(), testutil.Square("A", 0, 0), []string{"ic", "north"}, dates, dest)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, []string{
		"/A/ic?end=2020-01-09&start=2020-01-01",
		"/A/north?end=2020-01-09&start=2020-01-01",
	}, requested)
	require.Len(t, files, 2)
	data, err := os.ReadFile(files["north"])
	require.NoError(t, err)
	assert.Equal(t, "raw /A/north", string(data))
}

func TestFetchRawBoundaryData_NotServed(t *testing.T) {
	// Arrange
	var mu sync.Mutex
	hits := map[string]int{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits[r.URL.Path]++
		mu.Unlock()
		if r.URL.Path == "/A/north" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, "raw")
	}))
	defer srv.Close()
	policy := acquire.Policy{Attempts: 3, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}
	engine := NewForcingEngine(srv.URL, acquire.NewClient(srv.Client(), policy))
	dates := ocean.DateRange{Start: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), End: time.Date(2020, 1, 9, 0, 0, 0, 0, time.UTC)}

	// Act
	_, err := engine.FetchRawBoundaryData(context.Background(), testutil.Square("A", 0, 0), []string{"ic", "north"}, dates, t.TempDir())

	// Assert
	require.ErrorIs(t, err, ErrNoRawData)
	assert.Contains(t, err.Error(), "A/north")
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, hits["/A/north"], "a missing extract is not retried")
}

func TestFetchRawBoundaryData_NoSource(t *testing.T) {
	engine := NewForcingEngine("", acquire.NewClient(nil, acquire.DefaultPolicy()))

	_, err := engine.FetchRawBoundaryData(context.Background(), testutil.Square("A", 0, 0), []string{"ic"}, ocean.DateRange{}, t.TempDir())

	assert.ErrorIs(t, err, ErrNoForcingSource)
}

func TestBuildForcing(t *testing.T) {
	// Arrange
	ctx := context.Background()
	engine := NewForcingEngine("", nil)
	rawDir, outDir := t.TempDir(), t.TempDir()
	for _, key := range []string{"ic", "west", "north", "east", "south"} {
		require.NoError(t, os.WriteFile(filepath.Join(rawDir, key+"_unprocessed.nc"), []byte("raw "+key), 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(rawDir, "notes.txt"), []byte("ignored"), 0o644))
	bathy := &ocean.Bathymetry{Grid: "A", NX: 2, NY: 2, Depth: []float64{10, 20, 30, 40}}

	// Act
	ic, err := engine.BuildInitialCondition(ctx, filepath.Join(rawDir, "ic_unprocessed.nc"), ocean.DefaultVarMap(), outDir)
	require.NoError(t, err)
	obc, err := engine.BuildBoundaryForcing(ctx, rawDir, ocean.DefaultVarMap(), bathy, outDir)
	require.NoError(t, err)

	// Assert
	require.Len(t, ic, 3)
	tracers, err := readProduct(filepath.Join(outDir, "init_tracers.nc"))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"temp": "thetao", "salt": "so"}, tracers.Variables)
	assert.Equal(t, "raw ic", string(tracers.Payload))

	require.Len(t, obc, 4)
	var got []string
	for _, path := range obc {
		p, err := readProduct(path)
		require.NoError(t, err)
		got = append(got, fmt.Sprintf("%s %s %v", filepath.Base(path), p.Boundary, p.EdgeDepth))
	}
	assert.Equal(t, []string{
		"forcing_obc_segment_001.nc north [30 40]",
		"forcing_obc_segment_002.nc south [10 20]",
		"forcing_obc_segment_003.nc east [20 40]",
		"forcing_obc_segment_004.nc west [10 30]",
	}, got)
}

func TestBuildInitialCondition_IncompleteVarMap(t *testing.T) {
	raw := filepath.Join(t.TempDir(), "ic_unprocessed.nc")
	require.NoError(t, os.WriteFile(raw, []byte("raw"), 0o644))

	_, err := NewForcingEngine("", nil).BuildInitialCondition(context.Background(), raw, ocean.VarMap{"eta": "zos"}, t.TempDir())

	assert.ErrorContains(t, err, `no entry for "u"`)
}

func TestNew_BindsEveryCollaborator(t *testing.T) {
	engines := New(Options{})

	assert.NotNil(t, engines.Grid)
	assert.NotNil(t, engines.VGrid)
	assert.NotNil(t, engines.Bathymetry)
	assert.NotNil(t, engines.Forcing)
}
