package output

import (
	"encoding/json"
	"io"
	"math"
	"time"

	"github.com/nerrad567/watermeter-ingest/internal/meter"
)

// record is the JSON form of one reading.
type record struct {
	Time       time.Time `json:"time"`
	Watermeter float64   `json:"watermeter"`
	DevID      string    `json:"dev-id"`
}

// usageRecord is record with cnt always present, null when unknown.
type usageRecord struct {
	Time       time.Time `json:"time"`
	Watermeter float64   `json:"watermeter"`
	DevID      string    `json:"dev-id"`
	Usage      *float64  `json:"cnt"`
}

// writeJSON writes the table as an indented array of records.
// Tables without derived usage have no cnt member; otherwise a NaN cnt is null.
func writeJSON(w io.Writer, table meter.Table) error {
	var v any
	if table.HasUsage {
		records := make([]usageRecord, 0, table.Len())
		for _, r := range table.Readings {
			records = append(records, usageRecord{
				Time:       r.Time.UTC(),
				Watermeter: r.Watermeter,
				DevID:      r.DevID,
				Usage:      usagePtr(r.Usage),
			})
		}
		v = records
	} else {
		records := make([]record, 0, table.Len())
		for _, r := range table.Readings {
			records = append(records, record{Time: r.Time.UTC(), Watermeter: r.Watermeter, DevID: r.DevID})
		}
		v = records
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func usagePtr(u float64) *float64 {
	if math.IsNaN(u) {
		return nil
	}
	return &u
}
