package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vk/oceanbaselines/internal/ctxlog"
	"github.com/vk/oceanbaselines/internal/manifest"
	"github.com/vk/oceanbaselines/internal/pipeline"
)

// ErrRegionsFailed is returned by Run when at least one region failed.
// Every other region has still been produced.
var ErrRegionsFailed = errors.New("one or more regions failed")

// Run executes one baseline generation: recover any interrupted previous
// run, drive every region through the pipeline, fold the scratch
// workspaces back into the cache, and write the manifest.
func (a *App) Run(ctx context.Context) (*pipeline.Report, error) {
	runID := a.newRunID()
	ctx = ctxlog.WithLogger(ctx, a.logger)
	ctx, logger := ctxlog.With(ctx, "run_id", runID.String())
	logger.Debug("App.Run method started.")

	cacheRoot := a.model.Settings.CacheRoot
	if err := a.reconcile(ctx, "start"); err != nil {
		return nil, err
	}

	run := pipeline.Run{
		Regions: a.catalog.Regions(),
		Stages:  a.config.Stages,
		OutDir:  a.model.Settings.OutDir,
		Prefix:  a.model.Settings.Prefix,
	}
	logger.Info("🚀 Generating baselines...", "regions", a.catalog.Len(), "stages", run.Stages, "out_dir", run.OutDir, "cache_root", cacheRoot)

	report, err := a.orchestrator().Run(ctx, run)
	if err != nil {
		return nil, fmt.Errorf("pipeline failed: %w", err)
	}

	if err := a.reconcile(ctx, "end"); err != nil {
		return report, err
	}

	if !a.config.NoManifest {
		m, err := manifest.Build(runID, a.now(), run, cacheRoot, report)
		if err != nil {
			return report, fmt.Errorf("building manifest: %w", err)
		}
		path := manifest.Path(run.OutDir, run.Prefix)
		if err := manifest.Write(path, m); err != nil {
			return report, fmt.Errorf("writing manifest: %w", err)
		}
		logger.Info("Manifest written.", "path", path)
	}

	for _, rr := range report.Results {
		if rr.Failed() {
			logger.Error("Region failed.", "region", rr.Region, "error", rr.Err)
		} else {
			logger.Info("Region produced.", "region", rr.Region)
		}
	}
	if report.Failed() {
		failed := report.FailedRegions()
		logger.Error("❌ Finished with failures.", "failed", len(failed), "total", len(report.Results))
		return report, fmt.Errorf("%w: %s", ErrRegionsFailed, strings.Join(failed, ", "))
	}
	logger.Info("🏁 All baselines generated.", "outputs", len(report.Outputs()))
	logger.Debug("App.Run method finished.")
	return report, nil
}

// reconcile promotes leftover scratch files into the cache and purges the
// scratch directories.
func (a *App) reconcile(ctx context.Context, when string) error {
	logger := ctxlog.FromContext(ctx)
	sum, err := a.lifecycle.Reconcile(ctx, a.model.Settings.CacheRoot)
	if err != nil {
		return fmt.Errorf("reconciling cache at %s: %w", when, err)
	}
	if len(sum.Promoted) > 0 || len(sum.Conflicted) > 0 || len(sum.Removed) > 0 {
		logger.Info("Reconciled scratch workspaces into the cache.", "when", when,
			"promoted", len(sum.Promoted), "already_cached", sum.AlreadyCached, "conflicted", len(sum.Conflicted), "removed", len(sum.Removed))
	}
	return nil
}
