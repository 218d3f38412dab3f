// Package meter holds the water meter reading table and its derivations.
//
// A Table is built from parsed (time, value) points for a single device.
// Rows are ordered by ascending time; readings that share a timestamp keep
// the order in which the vendor returned them and are never deduplicated.
//
// Column names match what the time-series and file sinks expect:
//
//	time        row timestamp (UTC)
//	watermeter  cumulative meter reading
//	dev-id      device id, written as a tag
//	cnt         usage since the previous reading (after DeriveUsage)
package meter
