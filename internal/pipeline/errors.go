package pipeline

import (
	"fmt"

	"github.com/vk/oceanbaselines/internal/stage"
)

// MissingDependencyError reports that a disabled stage was needed by a
// later enabled stage but had no cached artifact to load.
type MissingDependencyError struct {
	Region     string
	Stage      stage.Stage
	RequiredBy stage.Stage
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("region %s: %s requires %s, which is disabled for this run and not in the cache",
		e.Region, e.RequiredBy, e.Stage)
}

// AcquisitionError reports a failed raw-data fetch for a region.
type AcquisitionError struct {
	Region string
	Err    error
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("acquiring raw forcing data for %s: %v", e.Region, e.Err)
}

func (e *AcquisitionError) Unwrap() error {
	return e.Err
}

// StageError is the error recorded for a region: the stage that stopped it
// and the underlying cause (which may itself be one of the typed errors above).
type StageError struct {
	Region string
	Stage  stage.Stage
	Err    error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("region %s, stage %s: %v", e.Region, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
