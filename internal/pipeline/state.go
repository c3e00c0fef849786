package pipeline

import "fmt"

// State is where one stage of one region is in its lifecycle:
//
//	NotStarted → Resolving → CacheHit  → Loaded
//	                       ↘ CacheMiss → Computing → Produced
//
// Any non-terminal state may move to Failed. CacheHit may also move to
// Computing when the cached artifacts are inputs the stage still builds
// from (FORCING raw data).
type State int

const (
	NotStarted State = iota
	Resolving
	CacheHit
	CacheMiss
	Loaded
	Computing
	Produced
	Failed
)

var stateNames = [...]string{
	NotStarted: "not-started",
	Resolving:  "resolving",
	CacheHit:   "cache-hit",
	CacheMiss:  "cache-miss",
	Loaded:     "loaded",
	Computing:  "computing",
	Produced:   "produced",
	Failed:     "failed",
}

func (s State) String() string {
	if s >= NotStarted && s <= Failed {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// MarshalText renders states by name in manifests.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal reports whether no further transition is allowed.
func (s State) Terminal() bool {
	return s == Loaded || s == Produced || s == Failed
}

func allowed(from, to State) bool {
	if to == Failed {
		return from != NotStarted && !from.Terminal()
	}
	switch from {
	case NotStarted:
		return to == Resolving
	case Resolving:
		return to == CacheHit || to == CacheMiss
	case CacheHit:
		return to == Loaded || to == Computing
	case CacheMiss:
		return to == Computing
	case Computing:
		return to == Produced
	default:
		return false
	}
}

// transition moves sr to the next state, rejecting invalid moves.
func (sr *StageResult) transition(to State) error {
	if !allowed(sr.State, to) {
		return fmt.Errorf("invalid stage transition %s -> %s for %s", sr.State, to, sr.Stage)
	}
	sr.State = to
	return nil
}
