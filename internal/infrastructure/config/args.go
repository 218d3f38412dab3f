package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Default file locations.
const (
	DefaultConfigPath = "configs/watermeter.yaml"
	DefaultEnvFile    = ".env"
)

// Period selects how much history the vendor API returns.
type Period string

// Supported query periods.
const (
	PeriodLatest Period = "latest"
	PeriodDay    Period = "day"
	PeriodAll    Period = "all"
)

// ParsePeriod validates a --period value.
func ParsePeriod(s string) (Period, error) {
	switch p := Period(s); p {
	case PeriodLatest, PeriodDay, PeriodAll:
		return p, nil
	}
	return "", fmt.Errorf("%w: %q (choose from latest, day, all)", ErrInvalidPeriod, s)
}

// RunConfig is the fully resolved configuration of one ingestion run.
// It is created once at startup and passed by value.
type RunConfig struct {
	APIKey   string
	BaseURL  string
	DeviceID string
	Period   Period

	// SaveJSON, when set, receives a pretty-printed copy of the raw response.
	SaveJSON string

	// FromJSON, when set, replaces the API call with a previously saved dump.
	FromJSON string

	// ConfigPath is the YAML file the generic options came from ("" if none).
	ConfigPath string

	Config Config
}

// LogValue implements slog.LogValuer so the API key never reaches the logs.
func (r RunConfig) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("base_url", r.BaseURL),
		slog.String("device_id", r.DeviceID),
		slog.String("period", string(r.Period)),
		slog.String("save_json", r.SaveJSON),
		slog.String("from_json", r.FromJSON),
		slog.String("config", r.ConfigPath),
	)
}

// cliFlags holds the raw flag values before resolution.
type cliFlags struct {
	apiKey   string
	baseURL  string
	guid     string
	period   string
	saveJSON string
	fromJSON string
	config   string
	envFile  string

	output       string
	format       string
	logLevel     string
	influxURL    string
	influxToken  string
	influxOrg    string
	influxBucket string
	measurement  string
}

// newFlagSet declares the command-line interface.
func newFlagSet(f *cliFlags, stderr io.Writer) *flag.FlagSet {
	flagSet := flag.NewFlagSet("watermeter", flag.ContinueOnError)
	flagSet.SetOutput(stderr)

	flagSet.StringVar(&f.apiKey, "A", "", "Kiinteistömittaus API key (required)")
	flagSet.StringVar(&f.apiKey, "apikey", "", "Kiinteistömittaus API key (required)")
	flagSet.StringVar(&f.baseURL, "B", "", "Kiinteistömittaus API base URL (required)")
	flagSet.StringVar(&f.baseURL, "baseurl", "", "Kiinteistömittaus API base URL (required)")
	flagSet.StringVar(&f.guid, "G", "", "device id (required)")
	flagSet.StringVar(&f.guid, "guid", "", "device id (required)")
	flagSet.StringVar(&f.period, "period", string(PeriodDay), "query period: latest, day or all")
	flagSet.StringVar(&f.saveJSON, "savejson", "", "save the response JSON to `file`")
	flagSet.StringVar(&f.fromJSON, "fromjson", "", "read a saved response JSON `file` instead of calling the API")
	flagSet.StringVar(&f.config, "config", DefaultConfigPath, "YAML configuration `file`")
	flagSet.StringVar(&f.envFile, "env-file", DefaultEnvFile, "dotenv `file` loaded before reading the environment")

	flagSet.StringVar(&f.output, "output", "", "output `path` (file, or directory ending in /)")
	flagSet.StringVar(&f.format, "format", "", "output format: csv, json or sqlite")
	flagSet.StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn or error")
	flagSet.StringVar(&f.influxURL, "influxdb-url", "", "InfluxDB URL (enables the InfluxDB sink)")
	flagSet.StringVar(&f.influxToken, "influxdb-token", "", "InfluxDB token")
	flagSet.StringVar(&f.influxOrg, "influxdb-org", "", "InfluxDB organisation")
	flagSet.StringVar(&f.influxBucket, "influxdb-bucket", "", "InfluxDB bucket")
	flagSet.StringVar(&f.measurement, "measurement", "", "time-series measurement name")

	flagSet.Usage = func() {
		fmt.Fprintf(stderr, "usage: watermeter -A apikey -B baseurl -G guid [options]\n")
		fmt.Fprintf(stderr, "Fetches water meter readings and stores them in the configured outputs.\n\n")
		flagSet.PrintDefaults()
	}
	return flagSet
}

// ParseArgs resolves the RunConfig from command-line arguments, an optional
// dotenv file, the environment and an optional YAML configuration file.
//
// Resolution order for the generic options is defaults, YAML file, environment,
// then flags. The required options may also come from WATERMETER_APIKEY,
// WATERMETER_BASEURL and WATERMETER_GUID.
//
// Parameters:
//   - args: Command-line arguments without the program name
//   - stderr: Destination for flag parse errors and usage text
//
// Returns:
//   - RunConfig: Resolved configuration
//   - error: Wrapping ErrUsage, ErrInvalidPeriod or ErrInvalid on failure
func ParseArgs(args []string, stderr io.Writer) (RunConfig, error) {
	var f cliFlags
	flagSet := newFlagSet(&f, stderr)
	if err := flagSet.Parse(args); err != nil {
		return RunConfig{}, fmt.Errorf("%w: %w", ErrUsage, err)
	}
	if flagSet.NArg() > 0 {
		flagSet.Usage()
		return RunConfig{}, fmt.Errorf("%w: unexpected arguments %q", ErrUsage, flagSet.Args())
	}

	set := make(map[string]bool)
	flagSet.Visit(func(fl *flag.Flag) { set[fl.Name] = true })

	if err := loadEnvFile(f.envFile, set["env-file"]); err != nil {
		return RunConfig{}, err
	}

	rc := RunConfig{
		APIKey:   firstNonEmpty(f.apiKey, os.Getenv("WATERMETER_APIKEY")),
		BaseURL:  firstNonEmpty(f.baseURL, os.Getenv("WATERMETER_BASEURL")),
		DeviceID: firstNonEmpty(f.guid, os.Getenv("WATERMETER_GUID")),
		SaveJSON: f.saveJSON,
		FromJSON: f.fromJSON,
	}

	var missing []string
	if rc.APIKey == "" {
		missing = append(missing, "-A/--apikey")
	}
	if rc.BaseURL == "" {
		missing = append(missing, "-B/--baseurl")
	}
	if rc.DeviceID == "" {
		missing = append(missing, "-G/--guid")
	}
	if len(missing) > 0 {
		flagSet.Usage()
		return RunConfig{}, fmt.Errorf("%w: missing required options: %s", ErrUsage, strings.Join(missing, ", "))
	}

	period, err := ParsePeriod(f.period)
	if err != nil {
		flagSet.Usage()
		return RunConfig{}, err
	}
	rc.Period = period

	cfg, path, err := resolveConfig(f.config, set["config"])
	if err != nil {
		return RunConfig{}, err
	}
	applyFlagOverrides(cfg, &f, set)

	if err := cfg.Validate(); err != nil {
		return RunConfig{}, err
	}

	rc.ConfigPath = path
	rc.Config = *cfg
	return rc, nil
}

// loadEnvFile loads a dotenv file without overriding variables already set.
// A missing default file is ignored; a missing explicit file is an error.
func loadEnvFile(path string, explicit bool) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			return nil
		}
		return fmt.Errorf("%w: env file: %w", ErrUsage, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("%w: loading env file %s: %w", ErrInvalid, path, err)
	}
	return nil
}

// resolveConfig loads the YAML file, or falls back to defaults when the
// default path does not exist.
func resolveConfig(path string, explicit bool) (*Config, string, error) {
	if _, err := os.Stat(path); err != nil && errors.Is(err, fs.ErrNotExist) && !explicit {
		cfg := Default()
		applyEnvOverrides(cfg)
		return cfg, "", nil
	}

	cfg, err := loadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return cfg, path, nil
}

// applyFlagOverrides copies explicitly set generic flags over the loaded config.
func applyFlagOverrides(cfg *Config, f *cliFlags, set map[string]bool) {
	if set["output"] {
		cfg.Output.Path = f.output
	}
	if set["format"] {
		cfg.Output.Format = f.format
	}
	if set["log-level"] {
		cfg.Logging.Level = f.logLevel
	}
	if set["influxdb-url"] {
		cfg.InfluxDB.URL = f.influxURL
		cfg.InfluxDB.Enabled = f.influxURL != ""
	}
	if set["influxdb-token"] {
		cfg.InfluxDB.Token = f.influxToken
	}
	if set["influxdb-org"] {
		cfg.InfluxDB.Org = f.influxOrg
	}
	if set["influxdb-bucket"] {
		cfg.InfluxDB.Bucket = f.influxBucket
	}
	if set["measurement"] {
		cfg.InfluxDB.Measurement = f.measurement
		cfg.TSDB.Measurement = f.measurement
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
