package refengine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/vk/oceanbaselines/internal/acquire"
	"github.com/vk/oceanbaselines/internal/ctxlog"
	"github.com/vk/oceanbaselines/internal/ocean"
	"github.com/vk/oceanbaselines/internal/region"
	"github.com/vk/oceanbaselines/internal/workspace"
)

var (
	// ErrNoForcingSource is returned by FetchRawBoundaryData when no base URL
	// is configured.
	ErrNoForcingSource = errors.New("no forcing source configured")
	// ErrNoRawData is returned when the server has no extract for a region,
	// sub-key and date range. It is not retried.
	ErrNoRawData = errors.New("no raw forcing data served")
)

// ForcingEngine downloads raw reanalysis extracts over HTTP and wraps them
// into initial-condition and open-boundary forcing artifacts.
type ForcingEngine struct {
	baseURL string
	client  *acquire.Client
}

// NewForcingEngine creates a forcing engine fetching from baseURL.
func NewForcingEngine(baseURL string, client *acquire.Client) *ForcingEngine {
	return &ForcingEngine{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

// Product is the content of one forcing artifact.
type Product struct {
	Name      string            `cbor:"name"`
	Boundary  string            `cbor:"boundary,omitempty"`
	Variables map[string]string `cbor:"variables"`
	Source    string            `cbor:"source"`
	// EdgeDepth is the bathymetry along the boundary, for OBC segments.
	EdgeDepth []float64 `cbor:"edge_depth,omitempty"`
	Payload   []byte    `cbor:"payload"`
}

// URL is where the raw file for one sub-key of a region is served.
func (f *ForcingEngine) URL(regionName, subKey string, dates ocean.DateRange) string {
	q := url.Values{}
	q.Set("start", dates.Start.Format(time.DateOnly))
	q.Set("end", dates.End.Format(time.DateOnly))
	return fmt.Sprintf("%s/%s/%s?%s", f.baseURL, url.PathEscape(regionName), url.PathEscape(subKey), q.Encode())
}

// FetchRawBoundaryData downloads one file per sub-key into destDir.
func (f *ForcingEngine) FetchRawBoundaryData(ctx context.Context, r region.Region, subKeys []string, dates ocean.DateRange, destDir string) (map[string]string, error) {
	if f.baseURL == "" {
		return nil, ErrNoForcingSource
	}
	logger := ctxlog.FromContext(ctx)
	out := make(map[string]string, len(subKeys))
	for _, key := range subKeys {
		dest := filepath.Join(destDir, fmt.Sprintf("%s_%s_%s.nc", r.Name, key, dates.Start.Format("20060102")))
		if err := f.client.Download(ctx, f.URL(r.Name, key, dates), dest); err != nil {
			if acquire.IsStatus(err, http.StatusNotFound) {
				return nil, fmt.Errorf("%w for %s/%s over %s", ErrNoRawData, r.Name, key, dates)
			}
			return nil, fmt.Errorf("fetching %s: %w", key, err)
		}
		logger.Debug("Downloaded raw forcing file.", "sub_key", key, "path", dest)
		out[key] = dest
	}
	return out, nil
}

// initialConditionFiles maps each IC artifact to the variable roles it carries.
var initialConditionFiles = []struct {
	name  string
	roles []string
}{
	{"init_eta", []string{"eta"}},
	{"init_vel", []string{"u", "v"}},
	{"init_tracers", []string{"temp", "salt"}},
}

var boundaryRoles = []string{"eta", "u", "v", "temp", "salt"}

func pick(vars ocean.VarMap, roles []string) (map[string]string, error) {
	out := make(map[string]string, len(roles))
	for _, role := range roles {
		name, ok := vars[role]
		if !ok || name == "" {
			return nil, fmt.Errorf("variable map has no entry for %q", role)
		}
		out[role] = name
	}
	return out, nil
}

// BuildInitialCondition wraps the raw IC file into init_eta, init_vel and
// init_tracers artifacts.
func (f *ForcingEngine) BuildInitialCondition(ctx context.Context, rawFile string, vars ocean.VarMap, outDir string) ([]string, error) {
	payload, err := os.ReadFile(rawFile)
	if err != nil {
		return nil, fmt.Errorf("reading initial condition: %w", err)
	}
	var out []string
	for _, spec := range initialConditionFiles {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		picked, err := pick(vars, spec.roles)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", spec.name, err)
		}
		path := filepath.Join(outDir, spec.name+".nc")
		p := Product{Name: spec.name, Variables: picked, Source: filepath.Base(rawFile), Payload: payload}
		if err := WriteFile(path, KindForcing, p); err != nil {
			return nil, err
		}
		out = append(out, path)
	}
	return out, nil
}

// BuildBoundaryForcing writes one forcing_obc_segment_NNN artifact per raw
// boundary file in rawDir. Segments follow the north, south, east, west
// order; other boundary names follow alphabetically.
func (f *ForcingEngine) BuildBoundaryForcing(ctx context.Context, rawDir string, vars ocean.VarMap, bathy *ocean.Bathymetry, outDir string) ([]string, error) {
	picked, err := pick(vars, boundaryRoles)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(rawDir)
	if err != nil {
		return nil, fmt.Errorf("listing raw boundary data: %w", err)
	}

	files := map[string]string{}
	var boundaries []string
	for _, e := range entries {
		key, _, ok := workspace.ParseRawName(e.Name())
		if !ok || key == ocean.InitialConditionKey || !e.Type().IsRegular() {
			continue
		}
		files[key] = filepath.Join(rawDir, e.Name())
		boundaries = append(boundaries, key)
	}
	if len(boundaries) == 0 {
		return nil, fmt.Errorf("no raw boundary files in %s", rawDir)
	}
	slices.SortFunc(boundaries, compareBoundaries)

	var out []string
	for i, b := range boundaries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		payload, err := os.ReadFile(files[b])
		if err != nil {
			return nil, err
		}
		name := fmt.Sprintf("forcing_obc_segment_%03d", i+1)
		p := Product{
			Name:      name,
			Boundary:  b,
			Variables: picked,
			Source:    filepath.Base(files[b]),
			EdgeDepth: edgeDepth(bathy, b),
			Payload:   payload,
		}
		path := filepath.Join(outDir, name+".nc")
		if err := WriteFile(path, KindForcing, p); err != nil {
			return nil, err
		}
		out = append(out, path)
	}
	return out, nil
}

func compareBoundaries(a, b string) int {
	order := ocean.DefaultBoundaries()
	ia, ib := slices.Index(order, a), slices.Index(order, b)
	switch {
	case ia >= 0 && ib >= 0:
		return ia - ib
	case ia >= 0:
		return -1
	case ib >= 0:
		return 1
	default:
		return strings.Compare(a, b)
	}
}

// edgeDepth returns the bathymetry row or column along a named boundary.
func edgeDepth(b *ocean.Bathymetry, boundary string) []float64 {
	if b == nil || b.NX == 0 || b.NY == 0 {
		return nil
	}
	switch boundary {
	case "south":
		return slices.Clone(b.Depth[:b.NX])
	case "north":
		return slices.Clone(b.Depth[(b.NY-1)*b.NX:])
	case "west", "east":
		col := 0
		if boundary == "east" {
			col = b.NX - 1
		}
		out := make([]float64, b.NY)
		for j := range out {
			out[j] = b.Depth[j*b.NX+col]
		}
		return out
	default:
		return nil
	}
}
