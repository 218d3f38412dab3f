package kiinteisto

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/nerrad567/watermeter-ingest/internal/meter"
)

// lineSeparator splits a measurement line into timestamp and value.
const lineSeparator = " = "

// Parse decodes every measurement line of a response, in response order.
//
// Parameters:
//   - r: Response holding a "p" array of "<timestamp> = <value>" strings
//
// Returns:
//   - []meter.Point: One point per line, not yet sorted
//   - error: The first format error, annotated with the line index
func Parse(r RawResponse) ([]meter.Point, error) {
	lines, err := r.Lines()
	if err != nil {
		return nil, err
	}

	points := make([]meter.Point, 0, len(lines))
	for i, line := range lines {
		p, err := ParseLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i, err)
		}
		points = append(points, p)
	}
	return points, nil
}

// ParseSource loads a response from src and parses it.
func ParseSource(src Source) ([]meter.Point, error) {
	r, err := src.Load()
	if err != nil {
		return nil, err
	}
	return Parse(r)
}

// parseValue reads a finite decimal value. Hex floats, NaN and Inf are
// rejected although ParseFloat accepts them.
func parseValue(s string) (float64, error) {
	raw := strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if strings.ContainsAny(raw, "xX") {
		return 0, strconv.ErrSyntax
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, strconv.ErrRange
	}
	return v, nil
}

// ParseLine decodes a single "<timestamp> = <value>" line.
//
// Timestamps without a zone are UTC; timestamps with an explicit offset are
// converted to UTC. A comma in the value is read as the decimal separator.
func ParseLine(line string) (meter.Point, error) {
	parts := strings.Split(line, lineSeparator)
	if len(parts) != 2 {
		return meter.Point{}, fmt.Errorf("%w: %q", ErrMalformedLine, line)
	}

	ts, err := dateparse.ParseIn(strings.TrimSpace(parts[0]), time.UTC)
	if err != nil {
		return meter.Point{}, fmt.Errorf("%w: %q: %w", ErrBadTimestamp, parts[0], err)
	}

	value, err := parseValue(parts[1])
	if err != nil {
		return meter.Point{}, fmt.Errorf("%w: %q", ErrBadValue, parts[1])
	}

	return meter.Point{Time: ts.UTC(), Value: value}, nil
}
