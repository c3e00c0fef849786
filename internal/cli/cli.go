package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/pflag"

	"github.com/vk/oceanbaselines/internal/app"
	"github.com/vk/oceanbaselines/internal/stage"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := pflag.NewFlagSet("oceanbaselines", pflag.ContinueOnError)
	flagSet.SetOutput(output)
	flagSet.SortFlags = false

	flagSet.Usage = func() {
		fmt.Fprint(output, `
oceanbaselines - Generates regional ocean-model baseline fixtures.

Usage:
  oceanbaselines [options] [OUT_DIR]
  oceanbaselines --verify [options] [OUT_DIR]

Arguments:
  OUT_DIR
    Directory the baseline files are written to (default "baselines").

Options:
`)
		flagSet.PrintDefaults()
	}

	prefix := flagSet.StringP("prefix", "p", "", "Prefix for every output file name.")
	withBathy := flagSet.Bool("with-bathy", false, "Also generate bathymetry.")
	withForcings := flagSet.Bool("with-forcings", false, "Also generate initial conditions and boundary forcing.")
	configPaths := flagSet.StringSliceP("config", "c", nil, "HCL file or directory with region blocks and settings. Repeatable.")
	regions := flagSet.StringSliceP("region", "r", nil, "Only run the named regions. Repeatable.")
	cacheRoot := flagSet.String("cache-root", "", `Cache directory (default ".baseline_cache").`)
	bathySource := flagSet.String("bathy-source", "", "Bathymetry raster path. Overrides the config file.")
	logLevel := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	logFormat := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	noManifest := flagSet.Bool("no-manifest", false, "Do not write the run manifest.")
	verify := flagSet.Bool("verify", false, "Check OUT_DIR against its manifest and exit 1 if any file drifted.")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	if flagSet.NArg() > 1 {
		return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("expected at most one OUT_DIR argument, got %d", flagSet.NArg())}
	}

	stages := stage.NewSet(stage.Grid, stage.VGrid)
	if *withBathy {
		stages = stages.With(stage.Bathy)
	}
	if *withForcings {
		stages = stages.With(stage.Forcing)
	}

	config, err := app.NewConfig(app.Config{
		OutDir:      flagSet.Arg(0),
		Prefix:      *prefix,
		CacheRoot:   *cacheRoot,
		BathySource: *bathySource,
		ConfigPaths: *configPaths,
		Regions:     *regions,
		Stages:      stages,
		LogFormat:   strings.ToLower(*logFormat),
		LogLevel:    strings.ToLower(*logLevel),
		NoManifest:  *noManifest,
		Verify:      *verify,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}
