// Package logging provides structured logging for the water meter ingestion tool.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the run.
//
// # Features
//
//   - JSON output for cron/systemd runs (machine-parsable)
//   - Text output for interactive use (human-readable)
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//
// # Configuration
//
// Logging is configured via the logging section of watermeter.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stderr"   # stdout, stderr
//
// Logs default to stderr so that stdout stays free for output written to "-".
//
// # Security
//
// Never log the vendor API key or database tokens.
package logging
