package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/oceanbaselines/internal/config"
	"github.com/vk/oceanbaselines/internal/manifest"
	"github.com/vk/oceanbaselines/internal/region"
	"github.com/vk/oceanbaselines/internal/stage"
	"github.com/vk/oceanbaselines/internal/testutil"
)

// stubLoader returns a fixed model.
type stubLoader struct {
	model *config.Model
	err   error
	paths []string
}

func (s *stubLoader) Load(_ context.Context, paths ...string) (*config.Model, error) {
	s.paths = paths
	return s.model, s.err
}

func twoRegions() *config.Model {
	return &config.Model{Regions: []region.Region{testutil.Square("A", 0, 0), testutil.Square("B", 10, 10)}}
}

func TestNewConfig_Validation(t *testing.T) {
	ok := Config{Stages: stage.NewSet(stage.Grid)}
	_, err := NewConfig(ok)
	require.NoError(t, err)

	bad := ok
	bad.LogFormat = "xml"
	_, err = NewConfig(bad)
	assert.ErrorContains(t, err, "invalid log format")

	bad = ok
	bad.LogLevel = "trace"
	_, err = NewConfig(bad)
	assert.ErrorContains(t, err, "invalid log level")

	bad = ok
	bad.Stages = 0
	_, err = NewConfig(bad)
	assert.ErrorContains(t, err, "at least one stage")
}

func TestNewApp_DefaultCatalogWithoutConfig(t *testing.T) {
	loader := &stubLoader{err: errors.New("must not be called")}

	a, _ := SetupAppTest(t, &Config{Stages: stage.NewSet(stage.Grid)}, loader)

	assert.Equal(t, region.Default().Names(), a.Catalog().Names())
	assert.Nil(t, loader.paths)
	assert.Equal(t, config.DefaultOutDir, a.Model().Settings.OutDir)
}

func TestNewApp_FlagsOverrideFile(t *testing.T) {
	model := twoRegions()
	model.Settings = config.Settings{OutDir: "from-file", Prefix: "file", CacheRoot: "file-cache"}
	model.Bathymetry.Source = "file.nc"

	a, _ := SetupAppTest(t, &Config{
		ConfigPaths: []string{"baselines.hcl"},
		Prefix:      "cli",
		BathySource: "cli.nc",
		Regions:     []string{"B"},
		Stages:      stage.NewSet(stage.Grid),
	}, &stubLoader{model: model})

	m := a.Model()
	assert.Equal(t, "from-file", m.Settings.OutDir)
	assert.Equal(t, "cli", m.Settings.Prefix)
	assert.Equal(t, "file-cache", m.Settings.CacheRoot)
	assert.Equal(t, "cli.nc", m.Bathymetry.Source)
	assert.Equal(t, []string{"B"}, a.Catalog().Names())
}

func TestNewApp_ConfigErrors(t *testing.T) {
	dup := &config.Model{Regions: []region.Region{testutil.Square("A", 0, 0), testutil.Square("A", 1, 1)}}

	testCases := []struct {
		name    string
		cfg     Config
		loader  config.Loader
		wantErr string
	}{
		{"loader failure", Config{ConfigPaths: []string{"x.hcl"}}, &stubLoader{err: errors.New("boom")}, "failed to load configuration: boom"},
		{"duplicate regions", Config{ConfigPaths: []string{"x.hcl"}}, &stubLoader{model: dup}, "invalid region catalog"},
		{"unknown region filter", Config{Regions: []string{"atlantis"}}, &stubLoader{}, "atlantis"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tc.cfg.Stages = stage.NewSet(stage.Grid)

			_, err := NewApp(&testutil.SafeBuffer{}, &tc.cfg, tc.loader)

			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func newRunApp(t *testing.T, fakes *testutil.FakeEngines, stages stage.Set) (*App, string, string) {
	t.Helper()
	dir := t.TempDir()
	outDir, cacheRoot := filepath.Join(dir, "out"), filepath.Join(dir, "cache")
	a, _ := SetupAppTest(t, &Config{
		ConfigPaths: []string{"baselines.hcl"},
		OutDir:      outDir,
		CacheRoot:   cacheRoot,
		Stages:      stages,
	}, &stubLoader{model: twoRegions()},
		WithEngines(fakes.Engines()),
		WithClock(func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }),
	)
	return a, outDir, cacheRoot
}

func TestRun_WritesBaselinesAndManifest(t *testing.T) {
	// Arrange
	fakes := testutil.NewFakeEngines()
	a, outDir, cacheRoot := newRunApp(t, fakes, stage.NewSet(stage.Grid, stage.VGrid, stage.Bathy, stage.Forcing))

	// Act
	report, err := a.Run(context.Background())

	// Assert
	require.NoError(t, err)
	require.False(t, report.Failed())

	m, err := manifest.Read(manifest.Path(outDir, ""))
	require.NoError(t, err)
	_, err = uuid.Parse(m.RunID)
	assert.NoError(t, err)
	assert.True(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC).Equal(m.CreatedAt))
	require.Len(t, m.Regions, 2)
	changed, err := manifest.Verify(m, outDir)
	require.NoError(t, err)
	assert.Empty(t, changed)

	entries, err := os.ReadDir(cacheRoot)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"raw_data", "topos"}, names, "no scratch directories survive a run")
}

func TestRun_RecoversInterruptedScratch(t *testing.T) {
	// Arrange
	fakes := testutil.NewFakeEngines()
	a, _, cacheRoot := newRunApp(t, fakes, stage.NewSet(stage.Grid, stage.VGrid, stage.Bathy, stage.Forcing))
	for _, key := range []string{"ic", "north", "south", "east", "west"} {
		path := filepath.Join(cacheRoot, "A_input", key+"_unprocessed.nc")
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("leftover "+key), 0o644))
	}

	// Act
	_, err := a.Run(context.Background())

	// Assert
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, fakes.CallsTo("FetchRawBoundaryData"), "A is served from the recovered files")
	assert.Equal(t, "leftover north", fakes.RawSeen["A"]["north_unprocessed.nc"])
}

func TestRun_FailedRegionIsReported(t *testing.T) {
	fakes := testutil.NewFakeEngines()
	fakes.ForcingErr["A"] = errors.New("regridding diverged")
	a, outDir, _ := newRunApp(t, fakes, stage.NewSet(stage.Grid, stage.VGrid, stage.Bathy, stage.Forcing))

	report, err := a.Run(context.Background())

	require.ErrorIs(t, err, ErrRegionsFailed)
	assert.Contains(t, err.Error(), "A")
	assert.Equal(t, []string{"A"}, report.FailedRegions())

	m, err := manifest.Read(manifest.Path(outDir, ""))
	require.NoError(t, err, "the manifest is written even when regions fail")
	assert.Equal(t, manifest.StatusFailed, m.Regions[0].Status)
	assert.Equal(t, manifest.StatusOK, m.Regions[1].Status)
}

func TestRun_NoManifest(t *testing.T) {
	fakes := testutil.NewFakeEngines()
	a, outDir, _ := newRunApp(t, fakes, stage.NewSet(stage.Grid, stage.VGrid))
	a.config.NoManifest = true

	_, err := a.Run(context.Background())

	require.NoError(t, err)
	assert.NoFileExists(t, manifest.Path(outDir, ""))
	assert.FileExists(t, filepath.Join(outDir, "A.nc"))
}

func TestVerify_FreshRunMatches(t *testing.T) {
	// Arrange
	fakes := testutil.NewFakeEngines()
	a, _, _ := newRunApp(t, fakes, stage.NewSet(stage.Grid, stage.VGrid, stage.Bathy))
	_, err := a.Run(context.Background())
	require.NoError(t, err)

	// Act
	changed, err := a.Verify(context.Background())

	// Assert
	require.NoError(t, err)
	assert.Empty(t, changed)
}

func TestVerify_ReportsDrift(t *testing.T) {
	// Arrange
	fakes := testutil.NewFakeEngines()
	a, outDir, _ := newRunApp(t, fakes, stage.NewSet(stage.Grid, stage.VGrid, stage.Bathy))
	_, err := a.Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(outDir, "A_bathy.nc"), []byte("edited by hand"), 0o644))
	require.NoError(t, os.Remove(filepath.Join(outDir, "B_vgrid.nc")))
	calls := len(fakes.Calls())

	// Act
	changed, err := a.Verify(context.Background())

	// Assert
	require.ErrorIs(t, err, ErrDrift)
	assert.ElementsMatch(t, []string{"A_bathy.nc", "B_vgrid.nc"}, changed)
	assert.Len(t, fakes.Calls(), calls, "verify never runs a collaborator")
}

func TestVerify_MissingManifest(t *testing.T) {
	fakes := testutil.NewFakeEngines()
	a, _, _ := newRunApp(t, fakes, stage.NewSet(stage.Grid, stage.VGrid))

	_, err := a.Verify(context.Background())

	require.ErrorIs(t, err, os.ErrNotExist)
	assert.NotErrorIs(t, err, ErrDrift)
}
