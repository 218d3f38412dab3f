package influxdb

import (
	"context"
	"fmt"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/watermeter-ingest/internal/meter"
)

// WriteTable writes one point per reading and waits for the server to accept them.
//
// Each point is timestamped with the reading's time, tagged with tagColumns
// and carries the watermeter and (when known) cnt fields.
//
// Parameters:
//   - ctx: Context for cancellation
//   - measurement: The measurement name; empty uses the configured one
//   - table: Readings to write
//   - tagColumns: Columns written as tags (normally meter.DefaultTagColumns)
//
// Returns:
//   - error: ErrNotConnected, or ErrWriteFailed wrapping the server error
func (c *Client) WriteTable(ctx context.Context, measurement string, table meter.Table, tagColumns []string) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	if table.Len() == 0 {
		return nil
	}
	if measurement == "" {
		measurement = c.cfg.Measurement
	}

	points := make([]*write.Point, 0, table.Len())
	for _, r := range table.Readings {
		points = append(points, write.NewPoint(measurement, r.Tags(tagColumns), r.Fields(), r.Time))
	}

	if err := c.writeAPI.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return nil
}
