// Package pipeline drives regions through the GRID → VGRID → BATHY → FORCING
// stage sequence, consulting the artifact cache before computing anything
// and isolating failures to the region they happen in.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vk/oceanbaselines/internal/bathy"
	"github.com/vk/oceanbaselines/internal/cache"
	"github.com/vk/oceanbaselines/internal/ctxlog"
	"github.com/vk/oceanbaselines/internal/fsutil"
	"github.com/vk/oceanbaselines/internal/ocean"
	"github.com/vk/oceanbaselines/internal/region"
	"github.com/vk/oceanbaselines/internal/stage"
	"github.com/vk/oceanbaselines/internal/workspace"
)

// Settings are the per-run collaborator parameters shared by all regions.
type Settings struct {
	Raster     ocean.RasterSource
	VGrid      ocean.VGridParams
	Dates      ocean.DateRange
	Boundaries []string
	Vars       ocean.VarMap
}

// Run is a single invocation's configuration.
type Run struct {
	Regions []region.Region
	Stages  stage.Set
	OutDir  string
	Prefix  string
}

// Orchestrator runs regions through the stage pipeline.
type Orchestrator struct {
	engines  ocean.Engines
	cache    *cache.Cache
	resolver *bathy.Resolver
	settings Settings
}

// New creates an orchestrator. The resolver must be bound to the same
// bathymetry engine as engines.
func New(engines ocean.Engines, c *cache.Cache, resolver *bathy.Resolver, settings Settings) *Orchestrator {
	if len(settings.Boundaries) == 0 {
		settings.Boundaries = ocean.DefaultBoundaries()
	}
	if settings.Vars == nil {
		settings.Vars = ocean.DefaultVarMap()
	}
	return &Orchestrator{engines: engines, cache: c, resolver: resolver, settings: settings}
}

// Run processes every region sequentially. The returned error is reserved
// for problems with the run itself; per-region failures are in the Report.
//
// Scratch directories left under the cache root by an interrupted run must
// have been reconciled (see lifecycle.Manager.Reconcile) before Run is
// called. A region whose input scratch still holds unpromoted raw files
// fails with workspace.ErrUnreconciled and the files are left in place.
func (o *Orchestrator) Run(ctx context.Context, run Run) (*Report, error) {
	logger := ctxlog.FromContext(ctx)

	plan, err := stage.NewPlan(run.Stages)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(run.OutDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	logger.Debug("Stage plan derived.", "enabled", run.Stages, "plan", fmt.Sprint(plan))

	report := &Report{Results: make([]RegionResult, 0, len(run.Regions))}
	for _, r := range run.Regions {
		report.Results = append(report.Results, o.runRegion(ctx, run, plan, r))
	}
	return report, nil
}

// regionRun holds the in-memory artifacts of one region as its stages complete.
type regionRun struct {
	o       *Orchestrator
	run     Run
	plan    stage.Plan
	region  region.Region
	scratch *workspace.Scratch

	grid  *ocean.Grid
	vgrid *ocean.VerticalGrid
	bathy *ocean.Bathymetry
}

func (o *Orchestrator) runRegion(ctx context.Context, run Run, plan stage.Plan, r region.Region) RegionResult {
	ctx, logger := ctxlog.With(ctx, "region", r.Name)
	logger.Info("▶️ Starting region")

	result := RegionResult{Region: r.Name, Stages: make([]StageResult, len(plan))}
	for i, step := range plan {
		result.Stages[i] = StageResult{Stage: step.Stage, Mode: step.Mode}
	}

	rr := &regionRun{o: o, run: run, plan: plan, region: r}
	defer rr.release(ctx)

	for _, step := range plan {
		if step.Mode == stage.Skip {
			continue
		}
		sr := result.stage(step.Stage)
		stageCtx, stageLogger := ctxlog.With(ctx, "stage", step.Stage)

		err := ctx.Err()
		if err == nil {
			err = sr.transition(Resolving)
		}
		if err == nil {
			err = rr.runStage(stageCtx, step, sr)
		}
		if err != nil {
			if !sr.State.Terminal() && sr.State != NotStarted {
				_ = sr.transition(Failed)
			}
			sr.Err = err
			result.Err = &StageError{Region: r.Name, Stage: step.Stage, Err: err}
			stageLogger.Error("❌ Region failed", "error", err)
			return result
		}
		stageLogger.Debug("Stage finished.", "state", sr.State, "source", sr.Source)
	}

	logger.Info("✅ Region finished")
	return result
}

func (rr *regionRun) release(ctx context.Context) {
	if rr.scratch == nil {
		return
	}
	if err := rr.scratch.Release(); err != nil {
		ctxlog.FromContext(ctx).Warn("Could not release scratch workspace; it will be purged at the end of the run.", "error", err)
	}
}

func (rr *regionRun) runStage(ctx context.Context, step stage.Step, sr *StageResult) error {
	switch step.Stage {
	case stage.Grid:
		return rr.gridStage(ctx, step.Mode, sr)
	case stage.VGrid:
		return rr.vgridStage(ctx, step.Mode, sr)
	case stage.Bathy:
		return rr.bathyStage(ctx, step.Mode, sr)
	case stage.Forcing:
		return rr.forcingStage(ctx, step.Mode, sr)
	default:
		return fmt.Errorf("unknown stage %s", step.Stage)
	}
}

// missing builds the error for a disabled stage that a later stage needs.
func (rr *regionRun) missing(s stage.Stage) error {
	requiredBy := s
	for _, step := range rr.plan {
		if step.Stage > s && step.Mode == stage.Run {
			requiredBy = step.Stage
			break
		}
	}
	return &MissingDependencyError{Region: rr.region.Name, Stage: s, RequiredBy: requiredBy}
}

func (rr *regionRun) outputPath(s stage.Stage) string {
	return OutputPath(rr.run.OutDir, rr.run.Prefix, rr.region.Name, s)
}

func (rr *regionRun) gridStage(ctx context.Context, mode stage.Mode, sr *StageResult) error {
	if err := sr.transition(CacheMiss); err != nil {
		return err
	}
	if mode == stage.CacheOnly {
		return rr.missing(stage.Grid)
	}
	if err := sr.transition(Computing); err != nil {
		return err
	}

	g, err := rr.o.engines.Grid.BuildGrid(ctx, rr.region)
	if err != nil {
		return fmt.Errorf("building grid: %w", err)
	}
	path := rr.outputPath(stage.Grid)
	if err := rr.o.engines.Grid.WriteGrid(ctx, g, path); err != nil {
		return fmt.Errorf("writing grid: %w", err)
	}

	rr.grid = g
	sr.Source = FromComputed
	sr.Outputs = []string{path}
	ctxlog.FromContext(ctx).Info("Wrote grid.", "path", path)
	return sr.transition(Produced)
}

func (rr *regionRun) vgridStage(ctx context.Context, mode stage.Mode, sr *StageResult) error {
	if err := sr.transition(CacheMiss); err != nil {
		return err
	}
	if mode == stage.CacheOnly {
		return rr.missing(stage.VGrid)
	}
	if err := sr.transition(Computing); err != nil {
		return err
	}

	params := rr.o.settings.VGrid
	if ov := rr.region.VGrid; !ov.IsZero() {
		params = ocean.VGridParams{Layers: ov.Layers, Depth: ov.Depth, Ratio: ov.Ratio}
	}
	v, err := rr.o.engines.VGrid.BuildVerticalGrid(ctx, params)
	if err != nil {
		return fmt.Errorf("building vertical grid: %w", err)
	}
	path := rr.outputPath(stage.VGrid)
	if err := rr.o.engines.VGrid.WriteVerticalGrid(ctx, v, path); err != nil {
		return fmt.Errorf("writing vertical grid: %w", err)
	}

	rr.vgrid = v
	sr.Source = FromComputed
	sr.Outputs = []string{path}
	ctxlog.FromContext(ctx).Info("Wrote vertical grid.", "path", path, "layers", params.Layers)
	return sr.transition(Produced)
}

func (rr *regionRun) bathyStage(ctx context.Context, mode stage.Mode, sr *StageResult) error {
	logger := ctxlog.FromContext(ctx)
	engine := rr.o.engines.Bathymetry
	if rr.grid == nil {
		return errors.New("bathymetry needs the region's grid")
	}

	lookup, err := rr.o.cache.Get(ctx, rr.region.Name, stage.Bathy, []string{cache.PrimaryKey})
	if err != nil {
		return err
	}

	if lookup.Hit {
		if err := sr.transition(CacheHit); err != nil {
			return err
		}
		cached := lookup.Locations[cache.PrimaryKey]
		b, err := engine.ReadBathymetry(ctx, rr.grid, cached)
		if err != nil {
			return fmt.Errorf("loading cached bathymetry %s: %w", cached, err)
		}
		rr.bathy = b
		sr.Source = FromCache
		if mode == stage.Run {
			path := rr.outputPath(stage.Bathy)
			if err := engine.WriteBathymetry(ctx, b, path); err != nil {
				discard(ctx, path)
				return fmt.Errorf("writing bathymetry: %w", err)
			}
			sr.Outputs = []string{path}
			logger.Info("Wrote bathymetry from cache.", "path", path, "cached", cached)
		} else {
			logger.Info("Loaded cached bathymetry for a later stage.", "cached", cached)
		}
		return sr.transition(Loaded)
	}

	if err := sr.transition(CacheMiss); err != nil {
		return err
	}
	if mode == stage.CacheOnly {
		return rr.missing(stage.Bathy)
	}
	if err := sr.transition(Computing); err != nil {
		return err
	}

	res, err := rr.o.resolver.Resolve(ctx, bathy.Request{Region: rr.region, Grid: rr.grid, Source: rr.o.settings.Raster})
	if err != nil {
		return err
	}
	path := rr.outputPath(stage.Bathy)
	if err := engine.WriteBathymetry(ctx, res.Bathymetry, path); err != nil {
		discard(ctx, path)
		return fmt.Errorf("writing bathymetry: %w", err)
	}
	if _, _, err := rr.o.cache.Put(ctx, rr.region.Name, stage.Bathy, cache.PrimaryKey, path); err != nil {
		discard(ctx, path)
		return err
	}

	rr.bathy = res.Bathymetry
	sr.Source = FromComputed
	sr.Strategy = res.Strategy
	sr.Outputs = []string{path}
	logger.Info("Wrote bathymetry.", "path", path, "strategy", res.Strategy)
	return sr.transition(Produced)
}

// forcingKeys are the raw sub-keys FORCING needs: the initial condition
// first, then each boundary.
func (rr *regionRun) forcingKeys() []string {
	return append([]string{ocean.InitialConditionKey}, rr.o.settings.Boundaries...)
}

func (rr *regionRun) forcingStage(ctx context.Context, mode stage.Mode, sr *StageResult) error {
	logger := ctxlog.FromContext(ctx)
	if rr.bathy == nil {
		return errors.New("forcing needs the region's bathymetry")
	}

	keys := rr.forcingKeys()
	lookup, err := rr.o.cache.Get(ctx, rr.region.Name, stage.Forcing, keys)
	if err != nil {
		return err
	}
	if !lookup.Hit && mode == stage.CacheOnly {
		if err := sr.transition(CacheMiss); err != nil {
			return err
		}
		return rr.missing(stage.Forcing)
	}

	scratch, err := workspace.Create(rr.o.cache.Root(), rr.region.Name)
	if err != nil {
		return err
	}
	rr.scratch = scratch

	if lookup.Hit {
		if err := sr.transition(CacheHit); err != nil {
			return err
		}
		for _, key := range keys {
			if err := fsutil.CopyFile(lookup.Locations[key], scratch.RawPath(key, Ext)); err != nil {
				return err
			}
		}
		logger.Info("Raw forcing data served from cache.", "files", len(keys))
		sr.Source = FromCache
		if mode == stage.CacheOnly {
			return sr.transition(Loaded)
		}
	} else {
		if err := sr.transition(CacheMiss); err != nil {
			return err
		}
		evicted, err := rr.o.cache.Evict(ctx, rr.region.Name, stage.Forcing, keys)
		if err != nil {
			return err
		}
		if len(evicted) > 0 {
			logger.Info("Discarded incomplete raw forcing cache before re-acquiring.", "evicted", len(evicted), "missing", lookup.Missing)
		}
		if err := rr.acquire(ctx, scratch, keys); err != nil {
			return err
		}
		sr.Source = FromComputed
	}

	if err := sr.transition(Computing); err != nil {
		return err
	}
	outputs, err := rr.buildForcing(ctx, scratch)
	if err != nil {
		return err
	}
	sr.Outputs = outputs
	logger.Info("Published forcing files.", "count", len(outputs), "dir", ForcingDir(rr.run.OutDir, rr.run.Prefix, rr.region.Name))
	return sr.transition(Produced)
}

// acquire fetches every raw sub-key into the scratch input directory under
// its canonical name and promotes each into the cache.
func (rr *regionRun) acquire(ctx context.Context, scratch *workspace.Scratch, keys []string) error {
	logger := ctxlog.FromContext(ctx)
	dates := rr.o.settings.Dates
	logger.Info("Acquiring raw forcing data.", "sub_keys", keys, "dates", dates.String())

	files, err := rr.o.engines.Forcing.FetchRawBoundaryData(ctx, rr.region, keys, dates, scratch.InputDir())
	if err != nil {
		return &AcquisitionError{Region: rr.region.Name, Err: err}
	}

	for _, key := range keys {
		got, ok := files[key]
		if !ok {
			return &AcquisitionError{Region: rr.region.Name, Err: fmt.Errorf("no raw file returned for %q", key)}
		}
		canonical := scratch.RawPath(key, Ext)
		if filepath.Clean(got) != canonical {
			if err := os.Rename(got, canonical); err != nil {
				return fmt.Errorf("normalising raw file %s: %w", got, err)
			}
		}
		if _, _, err := rr.o.cache.Put(ctx, rr.region.Name, stage.Forcing, key, canonical); err != nil {
			return err
		}
	}
	return nil
}

// buildForcing runs the IC and OBC builders into the case directory and
// publishes the forcing products into the output directory.
func (rr *regionRun) buildForcing(ctx context.Context, scratch *workspace.Scratch) ([]string, error) {
	engine := rr.o.engines.Forcing
	vars := rr.o.settings.Vars

	if _, err := engine.BuildInitialCondition(ctx, scratch.RawPath(ocean.InitialConditionKey, Ext), vars, scratch.CaseDir()); err != nil {
		return nil, fmt.Errorf("building initial condition: %w", err)
	}
	if _, err := engine.BuildBoundaryForcing(ctx, scratch.InputDir(), vars, rr.bathy, scratch.CaseDir()); err != nil {
		return nil, fmt.Errorf("building boundary forcing: %w", err)
	}

	entries, err := os.ReadDir(scratch.CaseDir())
	if err != nil {
		return nil, fmt.Errorf("listing case directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && Publishable(e.Name()) {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return nil, errors.New("forcing builders produced no publishable files")
	}
	return publish(ctx, scratch.CaseDir(), names, ForcingDir(rr.run.OutDir, rr.run.Prefix, rr.region.Name))
}

// copyFile is replaced in tests to inject copy failures.
var copyFile = fsutil.CopyFile

// publish copies names from srcDir into a staging directory next to dest
// and renames it into place, replacing any previous dest. On error nothing
// is left behind.
func publish(ctx context.Context, srcDir string, names []string, dest string) ([]string, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return nil, err
	}
	staging, err := os.MkdirTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".tmp.*")
	if err != nil {
		return nil, fmt.Errorf("creating staging directory: %w", err)
	}
	defer discard(ctx, staging)

	outputs := make([]string, 0, len(names))
	for _, name := range names {
		if err := copyFile(filepath.Join(srcDir, name), filepath.Join(staging, name)); err != nil {
			return nil, fmt.Errorf("publishing %s: %w", name, err)
		}
		outputs = append(outputs, filepath.Join(dest, name))
	}
	if err := os.Chmod(staging, 0o755); err != nil {
		return nil, err
	}
	if err := os.RemoveAll(dest); err != nil {
		return nil, fmt.Errorf("replacing %s: %w", dest, err)
	}
	if err := os.Rename(staging, dest); err != nil {
		return nil, fmt.Errorf("publishing %s: %w", dest, err)
	}
	return outputs, nil
}

// discard removes a partial output. A path that does not exist is fine.
func discard(ctx context.Context, path string) {
	if err := os.RemoveAll(path); err != nil {
		ctxlog.FromContext(ctx).Warn("Could not remove partial output.", "path", path, "error", err)
	}
}
