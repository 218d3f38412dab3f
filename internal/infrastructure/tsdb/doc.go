// Package tsdb writes reading tables to VictoriaMetrics.
//
// It uses InfluxDB line protocol over HTTP, built with net/http only.
//
// # Usage
//
//	client, err := tsdb.Connect(ctx, cfg.TSDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.WriteTable(ctx, "", table, meter.DefaultTagColumns)
//
// # Data Layout
//
// Same as the influxdb package: one line per reading, dev-id as a tag,
// watermeter and cnt as fields, the reading time as the timestamp.
// VictoriaMetrics stores them as watermeter_watermeter and watermeter_cnt series.
//
// # Error Handling
//
// WriteTable is synchronous. A failed POST is returned wrapped in
// ErrWriteFailed and is not retried.
package tsdb
