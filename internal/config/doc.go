// Package config defines the format-agnostic configuration model for the
// application: the region catalog and the collaborator settings, along
// with the Loader interface concrete file formats implement.
//
// The HCL implementation lives in internal/hcl_adapter. The app package
// merges a loaded Model with CLI flags and applies WithDefaults.
package config
