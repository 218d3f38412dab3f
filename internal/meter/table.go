package meter

import (
	"math"
	"slices"
	"time"
)

// Column names of a reading table.
const (
	ColumnTime       = "time"
	ColumnWatermeter = "watermeter"
	ColumnDevID      = "dev-id"
	ColumnUsage      = "cnt"
)

// DefaultTagColumns are the columns written as indexed tags to time-series sinks.
var DefaultTagColumns = []string{ColumnDevID}

// Point is a single parsed reading as returned by the vendor.
type Point struct {
	Time  time.Time
	Value float64
}

// Reading is one row of a Table.
type Reading struct {
	Time       time.Time
	Watermeter float64
	DevID      string

	// Usage is the change since the previous row. It is NaN for the first
	// row and for every row until DeriveUsage has run.
	Usage float64
}

// Tag returns the string value of a tag column.
func (r Reading) Tag(column string) (string, bool) {
	if column == ColumnDevID {
		return r.DevID, true
	}
	return "", false
}

// Tags returns the tag set for the given tag columns. Unknown columns are skipped.
func (r Reading) Tags(columns []string) map[string]string {
	tags := make(map[string]string, len(columns))
	for _, c := range columns {
		if v, ok := r.Tag(c); ok {
			tags[c] = v
		}
	}
	return tags
}

// Fields returns the numeric columns of the row. Usage is omitted while it
// is NaN because time-series databases cannot store NaN.
func (r Reading) Fields() map[string]interface{} {
	fields := map[string]interface{}{
		ColumnWatermeter: r.Watermeter,
	}
	if !math.IsNaN(r.Usage) {
		fields[ColumnUsage] = r.Usage
	}
	return fields
}

// Table is a time-ordered set of readings for one device.
type Table struct {
	Readings []Reading

	// HasUsage reports whether the cnt column has been derived.
	HasUsage bool
}

// Len returns the number of rows.
func (t Table) Len() int {
	return len(t.Readings)
}

// Columns returns the data column names in output order, excluding the time index.
func (t Table) Columns() []string {
	if t.HasUsage {
		return []string{ColumnWatermeter, ColumnDevID, ColumnUsage}
	}
	return []string{ColumnWatermeter, ColumnDevID}
}

// Latest returns the newest reading.
func (t Table) Latest() (Reading, bool) {
	if len(t.Readings) == 0 {
		return Reading{}, false
	}
	return t.Readings[len(t.Readings)-1], true
}

// Build assembles parsed points into a table tagged with deviceID and sorted
// by ascending time. The sort is stable and duplicates are kept.
func Build(deviceID string, points []Point) Table {
	readings := make([]Reading, len(points))
	for i, p := range points {
		readings[i] = Reading{
			Time:       p.Time,
			Watermeter: p.Value,
			DevID:      deviceID,
			Usage:      math.NaN(),
		}
	}

	slices.SortStableFunc(readings, func(a, b Reading) int {
		return a.Time.Compare(b.Time)
	})

	return Table{Readings: readings}
}
