package ocean

import (
	"errors"
	"fmt"
)

// ErrSourceAccess classifies failures reading a bathymetry raster: format
// mismatch, missing coordinate variables, or I/O errors.
var ErrSourceAccess = errors.New("bathymetry source access failed")

// SourceAccessError carries the details of an ErrSourceAccess failure.
type SourceAccessError struct {
	Op   string
	Path string
	Err  error
}

func (e *SourceAccessError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *SourceAccessError) Unwrap() error {
	return e.Err
}

// Is makes every SourceAccessError match ErrSourceAccess.
func (e *SourceAccessError) Is(target error) bool {
	return target == ErrSourceAccess
}

// IsSourceAccess reports whether err is a recognised source-access failure.
func IsSourceAccess(err error) bool {
	return errors.Is(err, ErrSourceAccess)
}
