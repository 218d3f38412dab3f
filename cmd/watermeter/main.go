// watermeter fetches water meter readings from the Kiinteistömittaus API,
// derives per-interval usage and stores the result in a file and, when
// configured, InfluxDB, VictoriaMetrics and MQTT.
//
// Usage:
//
//	watermeter -A apikey -B baseurl -G guid [--period latest|day|all]
//
// Run with -h for all options.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/nerrad567/watermeter-ingest/internal/infrastructure/config"
	"github.com/nerrad567/watermeter-ingest/internal/infrastructure/influxdb"
	"github.com/nerrad567/watermeter-ingest/internal/infrastructure/logging"
	"github.com/nerrad567/watermeter-ingest/internal/infrastructure/mqtt"
	"github.com/nerrad567/watermeter-ingest/internal/infrastructure/tsdb"
	"github.com/nerrad567/watermeter-ingest/internal/kiinteisto"
	"github.com/nerrad567/watermeter-ingest/internal/output"
	"github.com/nerrad567/watermeter-ingest/internal/pipeline"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Process exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err := run(ctx, os.Args[1:], os.Stderr)
	code := exitCode(err)
	if code != exitOK {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	cancel()
	os.Exit(code)
}

// exitCode maps an error returned by run to the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil, errors.Is(err, flag.ErrHelp):
		return exitOK
	case errors.Is(err, config.ErrUsage), errors.Is(err, config.ErrInvalidPeriod):
		return exitUsage
	default:
		return exitFailure
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - args: Command-line arguments without the program name
//   - stderr: Destination for usage text and logs configured for stderr
//
// Returns:
//   - error: nil when every enabled sink was written
func run(ctx context.Context, args []string, stderr io.Writer) error {
	rc, err := config.ParseArgs(args, stderr)
	if err != nil {
		return err
	}

	log := newLogger(rc.Config.Logging, stderr)
	log.Info("starting watermeter",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	api := kiinteisto.NewClient(kiinteisto.WithVersion(version))
	api.SetLogger(log)

	deps := pipeline.Deps{
		Fetcher: api,
		Saver:   output.NewSaver(rc.Config.Output, rc.Config.Database),
		Logger:  log,
	}

	// Only non-nil clients are assigned so disabled sinks stay nil interfaces.
	if rc.Config.InfluxDB.Enabled {
		influxClient, connErr := influxdb.Connect(ctx, rc.Config.InfluxDB)
		if connErr != nil {
			return fmt.Errorf("connecting to influxdb: %w", connErr)
		}
		defer func() {
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing influxdb", "error", closeErr)
			}
		}()
		log.Info("influxdb connected", "url", rc.Config.InfluxDB.URL, "bucket", rc.Config.InfluxDB.Bucket)
		deps.InfluxDB = influxClient
	}

	if rc.Config.TSDB.Enabled {
		tsdbClient, connErr := tsdb.Connect(ctx, rc.Config.TSDB)
		if connErr != nil {
			return fmt.Errorf("connecting to tsdb: %w", connErr)
		}
		defer func() {
			if closeErr := tsdbClient.Close(); closeErr != nil {
				log.Error("error closing tsdb", "error", closeErr)
			}
		}()
		log.Info("tsdb connected", "url", rc.Config.TSDB.URL)
		deps.TSDB = tsdbClient
	}

	if rc.Config.MQTT.Enabled {
		mqttClient, connErr := mqtt.Connect(rc.Config.MQTT)
		if connErr != nil {
			return fmt.Errorf("connecting to mqtt: %w", connErr)
		}
		mqttClient.SetLogger(log)
		defer func() {
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing mqtt", "error", closeErr)
			}
		}()
		log.Info("mqtt connected",
			"broker", fmt.Sprintf("%s:%d", rc.Config.MQTT.Broker.Host, rc.Config.MQTT.Broker.Port),
			"topic", mqttClient.Topics().Reading(rc.DeviceID),
		)
		deps.Publisher = mqttClient
	}

	if err := healthCheck(ctx, deps); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	res, err := pipeline.Run(ctx, rc, deps)
	if err != nil {
		return err
	}

	log.Info("watermeter finished",
		"run_id", res.RunID,
		"rows", res.Rows,
		"output", res.OutputPath,
	)
	return nil
}

// healthChecker is implemented by every sink client.
type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

// healthCheck verifies the enabled sinks before the vendor API is called,
// so a down database does not cost a fetch.
//
// Parameters:
//   - ctx: Context for timeout
//   - deps: Run collaborators; nil sinks are skipped
//
// Returns:
//   - error: First unhealthy sink, or nil
func healthCheck(ctx context.Context, deps pipeline.Deps) error {
	sinks := []struct {
		name string
		sink any
	}{
		{pipeline.SinkInfluxDB, deps.InfluxDB},
		{pipeline.SinkTSDB, deps.TSDB},
		{pipeline.SinkMQTT, deps.Publisher},
	}
	for _, s := range sinks {
		hc, ok := s.sink.(healthChecker)
		if !ok {
			continue
		}
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return nil
}

// newLogger builds the run logger. Output "stdout" is honoured; anything
// else goes to stderr.
func newLogger(cfg config.LoggingConfig, stderr io.Writer) *logging.Logger {
	if cfg.Output == "stdout" {
		return logging.New(cfg, version)
	}
	return logging.NewWithWriter(cfg, version, stderr)
}
