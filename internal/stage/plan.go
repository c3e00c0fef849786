package stage

import (
	"fmt"

	"github.com/vk/oceanbaselines/internal/dag"
)

// Mode says how the orchestrator treats a stage in one run.
type Mode int

const (
	// Skip means the stage is disabled and nothing later needs it.
	Skip Mode = iota
	// CacheOnly means the stage is disabled but a later enabled stage
	// depends on it, so it must be loaded from the cache or the region fails.
	CacheOnly
	// Run means the stage is enabled: cache first, compute on a miss.
	Run
)

func (m Mode) String() string {
	switch m {
	case Skip:
		return "skip"
	case CacheOnly:
		return "cache-only"
	case Run:
		return "run"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Step is one entry of a Plan.
type Step struct {
	Stage Stage
	Mode  Mode
}

// Plan is the ordered list of stages with the mode each runs in.
type Plan []Step

// Graph returns the stage dependency graph: each stage depends on the one
// directly before it, so the ancestors of a stage are all lower stages.
func Graph() *dag.Graph[Stage] {
	g := dag.New[Stage]()
	all := All()
	for _, s := range all {
		g.AddNode(s)
	}
	for i := 1; i < len(all); i++ {
		// Edges between known nodes cannot fail.
		_ = g.AddEdge(all[i-1], all[i])
	}
	return g
}

// NewPlan derives the per-stage mode for a run with the given enabled set.
func NewPlan(enabled Set) (Plan, error) {
	g := Graph()
	order, err := g.TopologicalOrder()
	if err != nil {
		return nil, fmt.Errorf("stage graph: %w", err)
	}

	plan := make(Plan, 0, len(order))
	for _, s := range order {
		if enabled.Contains(s) {
			plan = append(plan, Step{Stage: s, Mode: Run})
			continue
		}
		later, err := g.Descendants(s)
		if err != nil {
			return nil, err
		}
		mode := Skip
		for _, d := range later {
			if enabled.Contains(d) {
				mode = CacheOnly
				break
			}
		}
		plan = append(plan, Step{Stage: s, Mode: mode})
	}
	return plan, nil
}

// Mode returns the mode planned for s.
func (p Plan) Mode(s Stage) Mode {
	for _, step := range p {
		if step.Stage == s {
			return step.Mode
		}
	}
	return Skip
}
