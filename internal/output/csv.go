package output

import (
	"encoding/csv"
	"io"
	"math"
	"strconv"

	"github.com/nerrad567/watermeter-ingest/internal/meter"
)

// writeCSV writes a header row followed by one row per reading.
// Times are RFC3339 UTC with fractional seconds when present; a NaN cnt
// is an empty cell.
func writeCSV(w io.Writer, table meter.Table) error {
	cw := csv.NewWriter(w)

	header := append([]string{meter.ColumnTime}, table.Columns()...)
	if err := cw.Write(header); err != nil {
		return err
	}

	row := make([]string, len(header))
	for _, r := range table.Readings {
		row = row[:0]
		row = append(row,
			r.Time.UTC().Format(timeLayout),
			formatFloat(r.Watermeter),
			r.DevID,
		)
		if table.HasUsage {
			if math.IsNaN(r.Usage) {
				row = append(row, "")
			} else {
				row = append(row, formatFloat(r.Usage))
			}
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
