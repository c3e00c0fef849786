// Package stage defines the ordered product stages every region goes
// through and derives, for a given selection of enabled stages, what the
// pipeline must do with each one.
package stage

import (
	"fmt"
	"strings"
)

// Stage is one step in a region's artifact pipeline. The numeric order is
// the dependency order: a stage requires valid artifacts for all lower ones.
type Stage int

const (
	Grid Stage = iota
	VGrid
	Bathy
	Forcing
)

var names = [...]string{
	Grid:    "GRID",
	VGrid:   "VGRID",
	Bathy:   "BATHY",
	Forcing: "FORCING",
}

// All returns every stage in dependency order.
func All() []Stage {
	return []Stage{Grid, VGrid, Bathy, Forcing}
}

func (s Stage) String() string {
	if s.Valid() {
		return names[s]
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

// Valid reports whether s is one of the known stages.
func (s Stage) Valid() bool {
	return s >= Grid && s <= Forcing
}

// Parse maps a case-insensitive stage name to its Stage.
func Parse(name string) (Stage, error) {
	for _, s := range All() {
		if strings.EqualFold(name, names[s]) {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown stage %q", name)
}

// MarshalText lets stages appear by name in YAML manifests and logs.
func (s Stage) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("cannot marshal invalid stage %d", int(s))
	}
	return []byte(names[s]), nil
}

// UnmarshalText is the inverse of MarshalText.
func (s *Stage) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Set is an immutable set of stages.
type Set uint8

// NewSet builds a Set from the given stages. Invalid stages are ignored.
func NewSet(stages ...Stage) Set {
	var set Set
	for _, s := range stages {
		set = set.With(s)
	}
	return set
}

// With returns a copy of the set that also contains s.
func (set Set) With(s Stage) Set {
	if !s.Valid() {
		return set
	}
	return set | 1<<uint(s)
}

// Contains reports whether s is in the set.
func (set Set) Contains(s Stage) bool {
	return s.Valid() && set&(1<<uint(s)) != 0
}

// Sorted returns the members in dependency order.
func (set Set) Sorted() []Stage {
	var out []Stage
	for _, s := range All() {
		if set.Contains(s) {
			out = append(out, s)
		}
	}
	return out
}

func (set Set) String() string {
	parts := make([]string, 0, 4)
	for _, s := range set.Sorted() {
		parts = append(parts, s.String())
	}
	return "{" + strings.Join(parts, ",") + "}"
}
