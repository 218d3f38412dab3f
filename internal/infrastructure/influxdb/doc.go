// Package influxdb writes reading tables to InfluxDB v2.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, health checks and a synchronous table writer.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.WriteTable(ctx, "watermeter", table, meter.DefaultTagColumns)
//
// # Data Layout
//
// One point per reading: the point time is the reading time, dev-id is a
// tag, watermeter and cnt are fields. The cnt field is left out of the first
// point of a table because it has no previous reading.
//
// # Error Handling
//
// Writes are blocking, so server errors are returned from WriteTable
// wrapped in ErrWriteFailed. A failed write is not retried.
package influxdb
