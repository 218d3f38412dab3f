package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/watermeter-ingest/internal/infrastructure/config"
	"github.com/nerrad567/watermeter-ingest/internal/infrastructure/logging"
	"github.com/nerrad567/watermeter-ingest/internal/kiinteisto"
	"github.com/nerrad567/watermeter-ingest/internal/meter"
	"github.com/nerrad567/watermeter-ingest/internal/output"
)

// Sink names reported in Result.Sinks.
const (
	SinkOutput   = "output"
	SinkInfluxDB = "influxdb"
	SinkTSDB     = "tsdb"
	SinkMQTT     = "mqtt"
)

// Fetcher requests the raw response for a run.
type Fetcher interface {
	Fetch(ctx context.Context, rc config.RunConfig) (kiinteisto.RawResponse, error)
}

// TableSaver persists a table to the configured output file.
type TableSaver interface {
	Save(ctx context.Context, table meter.Table, meta output.Meta) (string, error)
}

// TimeSeriesWriter writes a table to a time-series database.
type TimeSeriesWriter interface {
	WriteTable(ctx context.Context, measurement string, table meter.Table, tagColumns []string) error
}

// ReadingPublisher publishes a table's readings to a message bus.
type ReadingPublisher interface {
	PublishReadings(deviceID string, table meter.Table, runID string) (int, error)
}

// Deps are the collaborators of a run. Nil sinks are disabled.
type Deps struct {
	Fetcher   Fetcher
	Saver     TableSaver
	InfluxDB  TimeSeriesWriter
	TSDB      TimeSeriesWriter
	Publisher ReadingPublisher
	Logger    *logging.Logger

	// Now and NewRunID default to time.Now and uuid.NewString.
	Now      func() time.Time
	NewRunID func() string
}

// Result summarises a successful run.
type Result struct {
	RunID      string
	Rows       int
	OutputPath string
	Sinks      []string
	Published  int
	Table      meter.Table
}

// Run executes one ingestion for rc.
//
// Steps, in order: load the response (API, or rc.FromJSON when set), parse,
// build, derive usage, save, write InfluxDB, write TSDB, publish MQTT.
//
// Parameters:
//   - ctx: Context for cancellation
//   - rc: Resolved run configuration
//   - deps: Collaborators; nil sinks are skipped
//
// Returns:
//   - Result: What was written
//   - error: The first failure, wrapped with the step that failed
func Run(ctx context.Context, rc config.RunConfig, deps Deps) (Result, error) {
	if deps.Saver == nil {
		return Result{}, ErrNoSaver
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	newRunID := deps.NewRunID
	if newRunID == nil {
		newRunID = uuid.NewString
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	started := now()
	res := Result{RunID: newRunID()}
	log := logger.With("run_id", res.RunID, "device_id", rc.DeviceID)
	log.Info("run started", "config", rc)

	src, err := source(ctx, rc, deps.Fetcher)
	if err != nil {
		return res, fmt.Errorf("fetching readings: %w", err)
	}

	points, err := kiinteisto.ParseSource(src)
	if err != nil {
		return res, fmt.Errorf("parsing response: %w", err)
	}
	log.Debug("response parsed", "points", len(points))

	table := meter.DeriveUsage(meter.Build(rc.DeviceID, points))
	res.Rows = table.Len()
	res.Table = table
	if latest, ok := table.Latest(); ok {
		log.Info("table built", "rows", table.Len(), "latest_time", latest.Time, "latest_value", latest.Watermeter)
	} else {
		log.Warn("response contained no readings")
	}

	path, err := deps.Saver.Save(ctx, table, output.Meta{RunID: res.RunID, DeviceID: rc.DeviceID, Time: started})
	if err != nil {
		return res, fmt.Errorf("saving table: %w", err)
	}
	res.OutputPath = path
	res.Sinks = append(res.Sinks, SinkOutput)
	log.Info("table saved", "path", path)

	timeSeries := []struct {
		name        string
		w           TimeSeriesWriter
		measurement string
	}{
		{SinkInfluxDB, deps.InfluxDB, rc.Config.InfluxDB.Measurement},
		{SinkTSDB, deps.TSDB, rc.Config.TSDB.Measurement},
	}
	for _, ts := range timeSeries {
		if ts.w == nil {
			log.Info("time-series sink disabled", "sink", ts.name)
			continue
		}
		if err := ts.w.WriteTable(ctx, ts.measurement, table, meter.DefaultTagColumns); err != nil {
			return res, fmt.Errorf("writing %s: %w", ts.name, err)
		}
		res.Sinks = append(res.Sinks, ts.name)
		log.Info("time series written", "sink", ts.name, "measurement", ts.measurement, "rows", table.Len())
	}

	if deps.Publisher == nil {
		log.Info("MQTT publishing disabled")
	} else {
		n, err := deps.Publisher.PublishReadings(rc.DeviceID, table, res.RunID)
		res.Published = n
		if err != nil {
			return res, fmt.Errorf("publishing readings: %w", err)
		}
		res.Sinks = append(res.Sinks, SinkMQTT)
		log.Info("readings published", "count", n)
	}

	log.Info("run complete",
		"rows", res.Rows,
		"sinks", res.Sinks,
		"duration", now().Sub(started),
	)
	return res, nil
}

// source picks the offline dump when rc.FromJSON is set, else calls the API.
func source(ctx context.Context, rc config.RunConfig, f Fetcher) (kiinteisto.Source, error) {
	if rc.FromJSON != "" {
		return kiinteisto.Offline{Path: rc.FromJSON}, nil
	}
	if f == nil {
		return nil, ErrNoFetcher
	}
	raw, err := f.Fetch(ctx, rc)
	if err != nil {
		return nil, err
	}
	return kiinteisto.Live{Response: raw}, nil
}
