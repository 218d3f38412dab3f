package meter

import "math"

// DeriveUsage returns a copy of t with the cnt column filled in:
// row i holds watermeter[i] - watermeter[i-1] and row 0 holds NaN.
//
// The table must already be sorted by time, which Build guarantees.
func DeriveUsage(t Table) Table {
	readings := make([]Reading, len(t.Readings))
	copy(readings, t.Readings)

	for i := range readings {
		if i == 0 {
			readings[i].Usage = math.NaN()
			continue
		}
		readings[i].Usage = readings[i].Watermeter - readings[i-1].Watermeter
	}

	return Table{Readings: readings, HasUsage: true}
}
