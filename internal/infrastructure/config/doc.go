// Package config resolves the configuration of a water meter ingestion run.
//
// This package manages:
//   - Command-line flags (-A/--apikey, -B/--baseurl, -G/--guid, --period, ...)
//   - Loading generic options from a YAML file
//   - Loading secrets from a dotenv file and the environment
//   - Validation of required fields and the query period
//
// Security Considerations:
//   - The API key and database tokens should come from the environment or a
//     dotenv file rather than argv, where they are visible to other users
//   - RunConfig implements slog.LogValuer and never logs the API key
//
// Usage:
//
//	rc, err := config.ParseArgs(os.Args[1:], os.Stderr)
//	if errors.Is(err, config.ErrUsage) {
//	    os.Exit(2)
//	}
//	fmt.Println(rc.DeviceID, rc.Period)
package config
