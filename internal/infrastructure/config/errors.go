package config

import "errors"

// Domain-specific errors for configuration lookups.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrMissingKey is returned when a section or key is not present.
	ErrMissingKey = errors.New("config: missing key")

	// ErrInvalidValue is returned when a value cannot be converted to the requested type.
	ErrInvalidValue = errors.New("config: invalid value")

	// ErrUnsupportedFormat is returned when the file extension is not .yaml, .yml or .ini.
	ErrUnsupportedFormat = errors.New("config: unsupported file format")
)
