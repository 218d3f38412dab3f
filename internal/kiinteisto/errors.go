package kiinteisto

import "errors"

// Sentinel errors for the Kiinteistömittaus API client and parser.
//
// These errors can be checked using errors.Is() for specific handling:
//
//	if errors.Is(err, kiinteisto.ErrMalformedLine) {
//	    // vendor changed the line format
//	}
var (
	// ErrRequestFailed indicates the HTTP request could not be completed.
	ErrRequestFailed = errors.New("kiinteisto: request failed")

	// ErrUnexpectedStatus indicates the API answered with a non-2xx status.
	ErrUnexpectedStatus = errors.New("kiinteisto: unexpected status")

	// ErrInvalidJSON indicates the response (or a saved dump) is not valid JSON.
	ErrInvalidJSON = errors.New("kiinteisto: invalid JSON")

	// ErrMissingLines indicates the response has no "p" array of strings.
	ErrMissingLines = errors.New("kiinteisto: missing measurement lines")

	// ErrMalformedLine indicates a line is not of the form "<timestamp> = <value>".
	ErrMalformedLine = errors.New("kiinteisto: malformed measurement line")

	// ErrBadTimestamp indicates a line's timestamp could not be parsed.
	ErrBadTimestamp = errors.New("kiinteisto: invalid timestamp")

	// ErrBadValue indicates a line's value is not a number.
	ErrBadValue = errors.New("kiinteisto: invalid value")

	// ErrDumpFailed indicates the raw response could not be saved to disk.
	ErrDumpFailed = errors.New("kiinteisto: saving response failed")
)
