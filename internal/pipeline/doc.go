// Package pipeline runs one ingestion: fetch (or load), parse, build the
// table, derive usage, then hand the table to every configured sink.
//
// A run is strictly linear and stops at the first error. Sinks that are not
// configured are skipped with an info log.
package pipeline
