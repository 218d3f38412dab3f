// Package output saves reading tables to a file.
//
// Three formats are supported:
//
//	csv     header "time,watermeter,dev-id,cnt", RFC3339 UTC times,
//	        an empty cell where cnt is unknown
//	json    an array of {"time","watermeter","dev-id","cnt"} records,
//	        cnt null where unknown
//	sqlite  rows upserted into meter_readings keyed on (dev_id, time)
//
// The output path may name a file or a directory. For a directory (a
// trailing "/" or an existing directory) the file name is generated from
// the device id and the run time, e.g. "dev1-20230101T000000.csv".
package output
