// Package bathy decides how a region's bathymetry is produced.
//
// Resolution walks an ordered list of named strategies. Each strategy
// returns an Outcome that says whether it succeeded, failed in a way the
// next strategy may recover from, or failed fatally. Only failures the
// engine classifies as source-access problems are recoverable.
package bathy

import (
	"context"
	"fmt"

	"github.com/vk/oceanbaselines/internal/ocean"
	"github.com/vk/oceanbaselines/internal/region"
)

// StrategyName identifies a bathymetry strategy.
type StrategyName string

const (
	// Placeholder fills the grid with a constant nominal depth.
	Placeholder StrategyName = "placeholder"
	// Primary extracts the raster directly onto the grid.
	Primary StrategyName = "primary"
	// Fallback interpolates from the raster file through a window.
	Fallback StrategyName = "fallback"
)

// OutcomeKind discriminates strategy results.
type OutcomeKind int

const (
	Success OutcomeKind = iota
	Recoverable
	Fatal
)

func (k OutcomeKind) String() string {
	switch k {
	case Success:
		return "success"
	case Recoverable:
		return "recoverable"
	case Fatal:
		return "fatal"
	default:
		return fmt.Sprintf("OutcomeKind(%d)", int(k))
	}
}

// Outcome is what one strategy produced.
type Outcome struct {
	Kind       OutcomeKind
	Bathymetry *ocean.Bathymetry
	Err        error
}

// Request carries everything a strategy may need.
type Request struct {
	Region region.Region
	Grid   *ocean.Grid
	Source ocean.RasterSource
}

// Strategy is one named way of producing bathymetry.
type Strategy struct {
	Name StrategyName
	Run  func(ctx context.Context, req Request) Outcome
}

// classify turns an engine result into an Outcome. Source-access failures
// are recoverable when recoverable is set; everything else is fatal.
func classify(b *ocean.Bathymetry, err error, recoverable bool) Outcome {
	switch {
	case err == nil && b == nil:
		return Outcome{Kind: Fatal, Err: fmt.Errorf("engine returned no bathymetry")}
	case err == nil:
		return Outcome{Kind: Success, Bathymetry: b}
	case recoverable && ocean.IsSourceAccess(err):
		return Outcome{Kind: Recoverable, Err: err}
	default:
		return Outcome{Kind: Fatal, Err: err}
	}
}

func placeholderStrategy(engine ocean.BathymetryEngine, depth float64) Strategy {
	return Strategy{
		Name: Placeholder,
		Run: func(ctx context.Context, req Request) Outcome {
			b, err := engine.ConstantDepth(ctx, req.Grid, depth)
			return classify(b, err, false)
		},
	}
}

func primaryStrategy(engine ocean.BathymetryEngine) Strategy {
	return Strategy{
		Name: Primary,
		Run: func(ctx context.Context, req Request) Outcome {
			b, err := engine.ExtractFromDataset(ctx, req.Grid, req.Source)
			return classify(b, err, true)
		},
	}
}

func fallbackStrategy(engine ocean.BathymetryEngine) Strategy {
	return Strategy{
		Name: Fallback,
		Run: func(ctx context.Context, req Request) Outcome {
			b, err := engine.InterpolateFromFile(ctx, req.Grid, req.Source)
			return classify(b, err, false)
		},
	}
}
