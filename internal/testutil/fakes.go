package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/vk/oceanbaselines/internal/ocean"
	"github.com/vk/oceanbaselines/internal/region"
)

// FakeEngines implements every ocean collaborator with tiny text files and
// records each call as "Method:subject" so tests can assert what ran.
type FakeEngines struct {
	mu    sync.Mutex
	calls []string

	// Per-subject (grid or region name) failures to inject.
	ExtractErr     map[string]error
	InterpolateErr map[string]error
	FetchErr       map[string]error
	ForcingErr     map[string]error
	// WriteBathyErr fails WriteBathymetry after a truncated file was written.
	WriteBathyErr map[string]error

	// RawSeen holds, per region, the raw files (name -> content) present in
	// the raw dir when BuildBoundaryForcing ran.
	RawSeen map[string]map[string]string
}

// NewFakeEngines returns fakes that succeed on every call.
func NewFakeEngines() *FakeEngines {
	return &FakeEngines{
		ExtractErr:     map[string]error{},
		InterpolateErr: map[string]error{},
		FetchErr:       map[string]error{},
		ForcingErr:     map[string]error{},
		WriteBathyErr:  map[string]error{},
		RawSeen:        map[string]map[string]string{},
	}
}

// Engines exposes the fakes as an ocean.Engines binding.
func (f *FakeEngines) Engines() ocean.Engines {
	return ocean.Engines{Grid: f, VGrid: f, Bathymetry: f, Forcing: f}
}

func (f *FakeEngines) record(method, subject string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, method+":"+subject)
}

// Calls returns every recorded call in order.
func (f *FakeEngines) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// CallsTo returns the subjects of every call to method, in order.
func (f *FakeEngines) CallsTo(method string) []string {
	var out []string
	for _, c := range f.Calls() {
		if m, subject, _ := strings.Cut(c, ":"); m == method {
			out = append(out, subject)
		}
	}
	return out
}

func writeText(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}

func (f *FakeEngines) BuildGrid(_ context.Context, r region.Region) (*ocean.Grid, error) {
	f.record("BuildGrid", r.Name)
	return &ocean.Grid{Name: r.Name, Lon: []float64{r.Longitude.Min, r.Longitude.Max}, Lat: []float64{r.Latitude.Min, r.Latitude.Max}}, nil
}

func (f *FakeEngines) WriteGrid(_ context.Context, g *ocean.Grid, path string) error {
	f.record("WriteGrid", g.Name)
	return writeText(path, "grid "+g.Name)
}

func (f *FakeEngines) BuildVerticalGrid(_ context.Context, p ocean.VGridParams) (*ocean.VerticalGrid, error) {
	f.record("BuildVerticalGrid", fmt.Sprint(p.Layers))
	return &ocean.VerticalGrid{Thickness: make([]float64, p.Layers)}, nil
}

func (f *FakeEngines) WriteVerticalGrid(_ context.Context, v *ocean.VerticalGrid, path string) error {
	f.record("WriteVerticalGrid", filepath.Base(path))
	return writeText(path, fmt.Sprintf("vgrid %d", len(v.Thickness)))
}

func (f *FakeEngines) ExtractFromDataset(_ context.Context, g *ocean.Grid, src ocean.RasterSource) (*ocean.Bathymetry, error) {
	f.record("ExtractFromDataset", g.Name)
	if err := f.ExtractErr[g.Name]; err != nil {
		return nil, err
	}
	return &ocean.Bathymetry{Grid: g.Name, NX: 1, NY: 1, Depth: []float64{100}}, nil
}

func (f *FakeEngines) InterpolateFromFile(_ context.Context, g *ocean.Grid, src ocean.RasterSource) (*ocean.Bathymetry, error) {
	f.record("InterpolateFromFile", g.Name)
	if err := f.InterpolateErr[g.Name]; err != nil {
		return nil, err
	}
	return &ocean.Bathymetry{Grid: g.Name, NX: 1, NY: 1, Depth: []float64{200}}, nil
}

func (f *FakeEngines) ConstantDepth(_ context.Context, g *ocean.Grid, depth float64) (*ocean.Bathymetry, error) {
	f.record("ConstantDepth", g.Name)
	return &ocean.Bathymetry{Grid: g.Name, NX: 1, NY: 1, Depth: []float64{depth}}, nil
}

func (f *FakeEngines) WriteBathymetry(_ context.Context, b *ocean.Bathymetry, path string) error {
	f.record("WriteBathymetry", b.Grid)
	if err := f.WriteBathyErr[b.Grid]; err != nil {
		if werr := writeText(path, "bat"); werr != nil {
			return werr
		}
		return err
	}
	return writeText(path, fmt.Sprintf("bathy %s %g", b.Grid, b.Depth[0]))
}

func (f *FakeEngines) ReadBathymetry(_ context.Context, g *ocean.Grid, path string) (*ocean.Bathymetry, error) {
	f.record("ReadBathymetry", g.Name)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var name string
	var depth float64
	if _, err := fmt.Sscanf(string(data), "bathy %s %g", &name, &depth); err != nil {
		return nil, fmt.Errorf("parsing fake bathymetry %s: %w", path, err)
	}
	return &ocean.Bathymetry{Grid: g.Name, NX: 1, NY: 1, Depth: []float64{depth}}, nil
}

func (f *FakeEngines) FetchRawBoundaryData(_ context.Context, r region.Region, subKeys []string, dates ocean.DateRange, destDir string) (map[string]string, error) {
	f.record("FetchRawBoundaryData", r.Name)
	if err := f.FetchErr[r.Name]; err != nil {
		return nil, err
	}
	out := make(map[string]string, len(subKeys))
	for _, key := range subKeys {
		// Deliberately non-canonical names; the pipeline must normalise them.
		path := filepath.Join(destDir, fmt.Sprintf("download_%s.nc", key))
		if err := writeText(path, "fetched "+r.Name+" "+key); err != nil {
			return nil, err
		}
		out[key] = path
	}
	return out, nil
}

func (f *FakeEngines) BuildInitialCondition(_ context.Context, rawFile string, vars ocean.VarMap, outDir string) ([]string, error) {
	f.record("BuildInitialCondition", filepath.Base(rawFile))
	var out []string
	for _, name := range []string{"init_eta.nc", "init_vel.nc", "init_tracers.nc"} {
		path := filepath.Join(outDir, name)
		if err := writeText(path, name); err != nil {
			return nil, err
		}
		out = append(out, path)
	}
	return out, nil
}

func (f *FakeEngines) BuildBoundaryForcing(_ context.Context, rawDir string, vars ocean.VarMap, bathy *ocean.Bathymetry, outDir string) ([]string, error) {
	f.record("BuildBoundaryForcing", bathy.Grid)
	if err := f.ForcingErr[bathy.Grid]; err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(rawDir)
	if err != nil {
		return nil, err
	}
	seen := map[string]string{}
	var boundaries []string
	for _, e := range entries {
		data, err := os.ReadFile(filepath.Join(rawDir, e.Name()))
		if err != nil {
			return nil, err
		}
		seen[e.Name()] = string(data)
		if key, ok := strings.CutSuffix(e.Name(), "_unprocessed.nc"); ok && key != ocean.InitialConditionKey {
			boundaries = append(boundaries, key)
		}
	}
	f.mu.Lock()
	f.RawSeen[bathy.Grid] = seen
	f.mu.Unlock()

	sort.Strings(boundaries)
	var out []string
	for i := range boundaries {
		path := filepath.Join(outDir, fmt.Sprintf("forcing_obc_segment_%03d.nc", i+1))
		if err := writeText(path, "obc "+boundaries[i]); err != nil {
			return nil, err
		}
		out = append(out, path)
	}
	// A by-product that must not be published.
	if err := writeText(filepath.Join(outDir, "regrid_weights.nc"), "weights"); err != nil {
		return nil, err
	}
	return out, nil
}
