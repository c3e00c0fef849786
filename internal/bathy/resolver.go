package bathy

import (
	"context"
	"errors"
	"fmt"

	"github.com/vk/oceanbaselines/internal/ctxlog"
	"github.com/vk/oceanbaselines/internal/ocean"
)

// DefaultPlaceholderDepth is the nominal depth in metres used for oversized regions.
const DefaultPlaceholderDepth = 1000.0

// FallbackError reports that both the primary and the fallback strategy failed.
type FallbackError struct {
	Region   string
	Primary  error
	Fallback error
}

func (e *FallbackError) Error() string {
	return fmt.Sprintf("bathymetry for %s: primary failed (%v) and fallback failed (%v)", e.Region, e.Primary, e.Fallback)
}

func (e *FallbackError) Unwrap() []error {
	return []error{e.Primary, e.Fallback}
}

// Attempt records one strategy that ran.
type Attempt struct {
	Strategy StrategyName
	Kind     OutcomeKind
	Err      error
}

// Resolution is a successful resolve: the bathymetry, the strategy that
// produced it, and every attempt made on the way.
type Resolution struct {
	Bathymetry *ocean.Bathymetry
	Strategy   StrategyName
	Attempts   []Attempt
}

// Resolver picks and runs bathymetry strategies for a region.
type Resolver struct {
	engine           ocean.BathymetryEngine
	placeholderDepth float64
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithPlaceholderDepth overrides DefaultPlaceholderDepth.
func WithPlaceholderDepth(depth float64) Option {
	return func(r *Resolver) { r.placeholderDepth = depth }
}

// NewResolver creates a resolver backed by engine.
func NewResolver(engine ocean.BathymetryEngine, opts ...Option) *Resolver {
	r := &Resolver{engine: engine, placeholderDepth: DefaultPlaceholderDepth}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Chain returns the ordered strategies tried for req. Oversized regions
// only get the placeholder, chosen up front by region identity.
func (r *Resolver) Chain(req Request) []Strategy {
	if req.Region.Oversized() {
		return []Strategy{placeholderStrategy(r.engine, r.placeholderDepth)}
	}
	return []Strategy{primaryStrategy(r.engine), fallbackStrategy(r.engine)}
}

// Resolve runs the chain for req. Each strategy runs at most once; a
// recoverable outcome moves on to the next strategy, a fatal one stops.
func (r *Resolver) Resolve(ctx context.Context, req Request) (Resolution, error) {
	logger := ctxlog.FromContext(ctx)
	if req.Grid == nil {
		return Resolution{}, errors.New("bathymetry resolve needs a grid")
	}

	var res Resolution
	var recovered error
	for _, strategy := range r.Chain(req) {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		logger.Debug("Trying bathymetry strategy.", "strategy", strategy.Name)
		out := strategy.Run(ctx, req)
		res.Attempts = append(res.Attempts, Attempt{Strategy: strategy.Name, Kind: out.Kind, Err: out.Err})

		switch out.Kind {
		case Success:
			res.Bathymetry = out.Bathymetry
			res.Strategy = strategy.Name
			logger.Info("Bathymetry resolved.", "strategy", strategy.Name)
			return res, nil
		case Recoverable:
			logger.Warn("Bathymetry source access failed, falling back.", "strategy", strategy.Name, "error", out.Err)
			recovered = out.Err
		default:
			if recovered != nil {
				return res, &FallbackError{Region: req.Region.Name, Primary: recovered, Fallback: out.Err}
			}
			return res, fmt.Errorf("%s bathymetry strategy for %s: %w", strategy.Name, req.Region.Name, out.Err)
		}
	}

	// Only reachable when the last strategy in the chain was recoverable.
	return res, fmt.Errorf("bathymetry for %s: no strategy left after %w", req.Region.Name, recovered)
}
