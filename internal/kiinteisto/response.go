package kiinteisto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
)

const (
	// DefaultDumpPath is read by Offline sources that do not name a file.
	DefaultDumpPath = "data.json"

	// linesField is the response member holding the measurement lines.
	linesField = "p"

	// dumpIndent matches the one-space indent of dumps produced by earlier tooling.
	dumpIndent = " "

	// dumpPermissions is the file mode for saved responses.
	dumpPermissions = 0o644
)

// RawResponse is the undecoded JSON document returned by the API.
// Only the "p" member is interpreted; everything else is kept verbatim.
type RawResponse struct {
	body json.RawMessage
}

// NewRawResponse validates body as JSON and wraps it.
func NewRawResponse(body []byte) (RawResponse, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || !json.Valid(trimmed) {
		return RawResponse{}, ErrInvalidJSON
	}
	return RawResponse{body: json.RawMessage(trimmed)}, nil
}

// Bytes returns the JSON document as received.
func (r RawResponse) Bytes() []byte {
	return r.body
}

// Lines returns the measurement lines held in the "p" member.
//
// Returns:
//   - []string: Lines in response order
//   - error: ErrMissingLines if "p" is absent, null or not an array of strings
func (r RawResponse) Lines() ([]string, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(r.body, &doc); err != nil {
		return nil, fmt.Errorf("%w: response is not an object", ErrMissingLines)
	}

	raw, ok := doc[linesField]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, fmt.Errorf("%w: no %q member", ErrMissingLines, linesField)
	}

	var lines []string
	if err := json.Unmarshal(raw, &lines); err != nil {
		return nil, fmt.Errorf("%w: %q is not an array of strings", ErrMissingLines, linesField)
	}
	return lines, nil
}

// WriteFile saves the document pretty-printed with a one-space indent,
// overwriting path. Member order is preserved.
func (r RawResponse) WriteFile(path string) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, r.body, "", dumpIndent); err != nil {
		return fmt.Errorf("%w: %w", ErrDumpFailed, err)
	}

	if err := os.WriteFile(path, buf.Bytes(), dumpPermissions); err != nil {
		return fmt.Errorf("%w: %w", ErrDumpFailed, err)
	}
	return nil
}

// Source provides the raw response for a run.
type Source interface {
	Load() (RawResponse, error)
}

// Live is a response fetched from the API during this run.
type Live struct {
	Response RawResponse
}

// Load implements Source.
func (l Live) Load() (RawResponse, error) {
	return l.Response, nil
}

// Offline reads a previously saved response from disk.
type Offline struct {
	// Path is the dump file; empty means DefaultDumpPath.
	Path string
}

// Load implements Source. A missing file is an error.
func (o Offline) Load() (RawResponse, error) {
	path := o.Path
	if path == "" {
		path = DefaultDumpPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return RawResponse{}, fmt.Errorf("reading saved response: %w", err)
	}

	r, err := NewRawResponse(data)
	if err != nil {
		return RawResponse{}, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}
