package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the generic (non device-specific) options for an ingestion run.
// It is loaded from YAML and can be overridden by environment variables and flags.
type Config struct {
	Logging  LoggingConfig  `yaml:"logging"`
	Output   OutputConfig   `yaml:"output"`
	Database DatabaseConfig `yaml:"database"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	TSDB     TSDBConfig     `yaml:"tsdb"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// OutputConfig selects where the reading table is saved.
type OutputConfig struct {
	// Path is a file path, or a directory (trailing "/") in which a file
	// name is generated from the device id and run time.
	Path string `yaml:"path"`

	// Format is "csv", "json" or "sqlite". Empty means infer from the
	// path extension, falling back to csv.
	Format string `yaml:"format"`
}

// DatabaseConfig contains SQLite settings used by the sqlite output format.
type DatabaseConfig struct {
	WALMode     bool `yaml:"wal_mode"`
	BusyTimeout int  `yaml:"busy_timeout"`
}

// InfluxDBConfig contains InfluxDB v2 connection settings.
type InfluxDBConfig struct {
	Enabled     bool   `yaml:"enabled"`
	URL         string `yaml:"url"`
	Token       string `yaml:"token"`
	Org         string `yaml:"org"`
	Bucket      string `yaml:"bucket"`
	Measurement string `yaml:"measurement"`
}

// TSDBConfig contains VictoriaMetrics settings (InfluxDB line protocol over HTTP).
type TSDBConfig struct {
	Enabled     bool   `yaml:"enabled"`
	URL         string `yaml:"url"`
	Measurement string `yaml:"measurement"`
}

// MQTTConfig contains MQTT broker settings for publishing readings.
type MQTTConfig struct {
	Enabled     bool             `yaml:"enabled"`
	Broker      MQTTBrokerConfig `yaml:"broker"`
	Auth        MQTTAuthConfig   `yaml:"auth"`
	QoS         int              `yaml:"qos"`
	TopicPrefix string           `yaml:"topic_prefix"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: WATERMETER_SECTION_KEY
// For example: WATERMETER_INFLUXDB_TOKEN, WATERMETER_OUTPUT_PATH
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg, err := loadFile(path)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// loadFile reads defaults, the YAML file and env overrides without validating,
// so that command-line overrides can still be applied on top.
func loadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// Default returns a Config populated with the built-in defaults.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stderr",
		},
		Output: OutputConfig{
			Path: "./data/",
		},
		Database: DatabaseConfig{
			WALMode:     true,
			BusyTimeout: 5,
		},
		InfluxDB: InfluxDBConfig{
			Measurement: "watermeter",
		},
		TSDB: TSDBConfig{
			Measurement: "watermeter",
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "watermeter-ingest",
			},
			QoS:         1,
			TopicPrefix: "watermeter",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: WATERMETER_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Logging
	if v := os.Getenv("WATERMETER_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Output
	if v := os.Getenv("WATERMETER_OUTPUT_PATH"); v != "" {
		cfg.Output.Path = v
	}

	// InfluxDB
	if v := os.Getenv("WATERMETER_INFLUXDB_URL"); v != "" {
		cfg.InfluxDB.URL = v
	}
	if v := os.Getenv("WATERMETER_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// TSDB
	if v := os.Getenv("WATERMETER_TSDB_URL"); v != "" {
		cfg.TSDB.URL = v
	}

	// MQTT
	if v := os.Getenv("WATERMETER_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("WATERMETER_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("WATERMETER_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure (wrapping ErrInvalid), or nil if valid
func (c *Config) Validate() error {
	var errs []string

	switch strings.ToLower(c.Output.Format) {
	case "", "csv", "json", "sqlite":
	default:
		errs = append(errs, fmt.Sprintf("output.format %q must be csv, json or sqlite", c.Output.Format))
	}
	if c.Output.Path == "" {
		errs = append(errs, "output.path is required")
	}

	switch strings.ToLower(c.Logging.Format) {
	case "", "json", "text":
	default:
		errs = append(errs, "logging.format must be json or text")
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Org == "" {
			errs = append(errs, "influxdb.org is required when influxdb is enabled")
		}
		if c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.bucket is required when influxdb is enabled")
		}
		if c.InfluxDB.Measurement == "" {
			errs = append(errs, "influxdb.measurement must not be empty")
		}
	}

	if c.TSDB.Enabled {
		if c.TSDB.URL == "" {
			errs = append(errs, "tsdb.url is required when tsdb is enabled")
		}
		if c.TSDB.Measurement == "" {
			errs = append(errs, "tsdb.measurement must not be empty")
		}
	}

	if c.MQTT.Enabled {
		if c.MQTT.Broker.Host == "" {
			errs = append(errs, "mqtt.broker.host is required when mqtt is enabled")
		}
		if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
			errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
		}
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, "mqtt.qos must be 0, 1, or 2")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(errs, "; "))
	}

	return nil
}
