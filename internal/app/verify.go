package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vk/oceanbaselines/internal/ctxlog"
	"github.com/vk/oceanbaselines/internal/manifest"
)

// ErrDrift is returned by Verify when a published file is missing or its
// digest no longer matches the manifest.
var ErrDrift = errors.New("outputs drifted from the manifest")

// Verify re-hashes every file the manifest in the output directory lists and
// returns the paths, relative to the output directory, that changed. Nothing
// is generated and the cache is not touched.
func (a *App) Verify(ctx context.Context) ([]string, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	logger := ctxlog.FromContext(ctx)

	outDir := a.model.Settings.OutDir
	path := manifest.Path(outDir, a.model.Settings.Prefix)
	m, err := manifest.Read(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	logger.Info("🔍 Verifying baselines...", "manifest", path, "run_id", m.RunID, "regions", len(m.Regions))

	changed, err := manifest.Verify(m, outDir)
	if err != nil {
		return nil, fmt.Errorf("verifying %s: %w", outDir, err)
	}
	if len(changed) > 0 {
		for _, p := range changed {
			logger.Error("File drifted.", "path", p)
		}
		return changed, fmt.Errorf("%w: %s", ErrDrift, strings.Join(changed, ", "))
	}
	logger.Info("🏁 Baselines match the manifest.")
	return nil, nil
}
