package pipeline

import (
	"github.com/vk/oceanbaselines/internal/bathy"
	"github.com/vk/oceanbaselines/internal/stage"
)

// Source says where a stage's artifact came from.
type Source string

const (
	FromCache    Source = "cache"
	FromComputed Source = "computed"
)

// StageResult is the outcome of one stage for one region.
type StageResult struct {
	Stage    stage.Stage
	Mode     stage.Mode
	State    State
	Source   Source
	Strategy bathy.StrategyName
	// Outputs are the files written under the output directory.
	Outputs []string
	Err     error
}

// RegionResult is the outcome of a region's whole pipeline.
type RegionResult struct {
	Region string
	Stages []StageResult
	// Err is a *StageError when the region failed.
	Err error
}

// Failed reports whether the region stopped on an error.
func (r *RegionResult) Failed() bool {
	return r.Err != nil
}

// Stage returns the result recorded for s.
func (r *RegionResult) Stage(s stage.Stage) (StageResult, bool) {
	for _, sr := range r.Stages {
		if sr.Stage == s {
			return sr, true
		}
	}
	return StageResult{}, false
}

func (r *RegionResult) stage(s stage.Stage) *StageResult {
	for i := range r.Stages {
		if r.Stages[i].Stage == s {
			return &r.Stages[i]
		}
	}
	r.Stages = append(r.Stages, StageResult{Stage: s})
	return &r.Stages[len(r.Stages)-1]
}

// Output is one file the run wrote under the output directory.
type Output struct {
	Region string
	Stage  stage.Stage
	Path   string
	Source Source
}

// Report is the outcome of a whole run, one result per region in run order.
type Report struct {
	Results []RegionResult
}

// Failed reports whether any region failed.
func (r *Report) Failed() bool {
	for i := range r.Results {
		if r.Results[i].Failed() {
			return true
		}
	}
	return false
}

// FailedRegions returns the names of failed regions in run order.
func (r *Report) FailedRegions() []string {
	var out []string
	for i := range r.Results {
		if r.Results[i].Failed() {
			out = append(out, r.Results[i].Region)
		}
	}
	return out
}

// Outputs flattens every written file of every region, including the
// outputs of stages that completed before a region failed.
func (r *Report) Outputs() []Output {
	var out []Output
	for _, rr := range r.Results {
		for _, sr := range rr.Stages {
			for _, p := range sr.Outputs {
				out = append(out, Output{Region: rr.Region, Stage: sr.Stage, Path: p, Source: sr.Source})
			}
		}
	}
	return out
}
