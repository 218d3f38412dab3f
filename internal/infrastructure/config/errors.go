package config

import "errors"

// Sentinel errors for configuration resolution.
//
// All of them are configuration errors: they are reported before any
// network activity takes place.
var (
	// ErrUsage indicates a required command-line option is missing or a
	// flag could not be parsed.
	ErrUsage = errors.New("config: usage error")

	// ErrInvalidPeriod indicates --period is not one of latest, day or all.
	ErrInvalidPeriod = errors.New("config: invalid period")

	// ErrInvalid indicates the generic configuration failed validation.
	ErrInvalid = errors.New("config: invalid configuration")
)
