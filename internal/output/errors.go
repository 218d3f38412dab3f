package output

import "errors"

// Sentinel errors for saving reading tables.
var (
	// ErrUnknownFormat indicates the configured output format is not csv, json or sqlite.
	ErrUnknownFormat = errors.New("output: unknown format")

	// ErrWriteFailed indicates the output file could not be written.
	ErrWriteFailed = errors.New("output: write failed")
)
