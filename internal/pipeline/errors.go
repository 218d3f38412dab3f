package pipeline

import "errors"

var (
	// ErrNoSaver indicates Deps has no table saver.
	ErrNoSaver = errors.New("pipeline: no table saver configured")

	// ErrNoFetcher indicates a live run was requested without an API client.
	ErrNoFetcher = errors.New("pipeline: no API client configured")
)
