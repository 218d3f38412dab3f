package pipeline

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/nerrad567/watermeter-ingest/internal/infrastructure/config"
	"github.com/nerrad567/watermeter-ingest/internal/infrastructure/logging"
	"github.com/nerrad567/watermeter-ingest/internal/kiinteisto"
	"github.com/nerrad567/watermeter-ingest/internal/kiinteisto/kiinteistotest"
	"github.com/nerrad567/watermeter-ingest/internal/meter"
	"github.com/nerrad567/watermeter-ingest/internal/output"
)

const testAPIKey = "pipeline-secret"

var exampleLines = []string{
	"2023-01-01T01:00:00 = 12,0",
	"2023-01-01T00:00:00 = 10,5",
}

// fakeWriter records WriteTable calls.
type fakeWriter struct {
	calls        int
	measurement  string
	table        meter.Table
	err          error
	fieldsHadNaN bool
}

func (f *fakeWriter) WriteTable(_ context.Context, measurement string, table meter.Table, tagColumns []string) error {
	f.calls++
	f.measurement = measurement
	f.table = table
	for _, r := range table.Readings {
		for _, v := range r.Fields() {
			if x, ok := v.(float64); ok && math.IsNaN(x) {
				f.fieldsHadNaN = true
			}
		}
		if r.Tags(tagColumns)[meter.ColumnDevID] == "" {
			f.err = errors.New("missing dev-id tag")
		}
	}
	return f.err
}

// fakePublisher records PublishReadings calls.
type fakePublisher struct {
	calls int
	runID string
	err   error
}

func (f *fakePublisher) PublishReadings(_ string, table meter.Table, runID string) (int, error) {
	f.calls++
	f.runID = runID
	if f.err != nil {
		return 0, f.err
	}
	return table.Len(), nil
}

// cmpNaN treats the NaN usage of first rows as equal.
var cmpNaN = cmpopts.EquateNaNs()

type fixture struct {
	srv    *kiinteistotest.Server
	rc     config.RunConfig
	deps   Deps
	logs   *bytes.Buffer
	outDir string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	srv := kiinteistotest.NewServer(testAPIKey, exampleLines)
	t.Cleanup(srv.Close)

	cfg := config.Default()
	cfg.Output.Path = t.TempDir() + "/"
	cfg.Output.Format = "csv"

	logs := &bytes.Buffer{}
	return &fixture{
		srv: srv,
		rc: config.RunConfig{
			APIKey:   testAPIKey,
			BaseURL:  srv.URL(),
			DeviceID: "dev1",
			Period:   config.PeriodDay,
			Config:   *cfg,
		},
		deps: Deps{
			Fetcher:  kiinteisto.NewClient(),
			Saver:    output.NewSaver(cfg.Output, cfg.Database),
			Logger:   logging.NewWithWriter(config.LoggingConfig{Level: "debug"}, "test", logs),
			Now:      func() time.Time { return time.Date(2023, 1, 2, 3, 4, 5, 0, time.UTC) },
			NewRunID: func() string { return "run-1" },
		},
		logs:   logs,
		outDir: cfg.Output.Path,
	}
}

func TestRun_Example(t *testing.T) {
	f := newFixture(t)
	influx, vm, pub := &fakeWriter{}, &fakeWriter{}, &fakePublisher{}
	f.deps.InfluxDB, f.deps.TSDB, f.deps.Publisher = influx, vm, pub

	res, err := Run(context.Background(), f.rc, f.deps)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if res.RunID != "run-1" || res.Rows != 2 || res.Published != 2 {
		t.Errorf("Run() = %+v", res)
	}
	if diff := cmp.Diff([]string{SinkOutput, SinkInfluxDB, SinkTSDB, SinkMQTT}, res.Sinks); diff != "" {
		t.Errorf("Sinks mismatch (-want +got):\n%s", diff)
	}

	wantPath := filepath.Join(f.outDir, "dev1-20230102T030405.csv")
	if res.OutputPath != wantPath {
		t.Errorf("OutputPath = %q, want %q", res.OutputPath, wantPath)
	}
	data, err := os.ReadFile(res.OutputPath)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	wantCSV := "time,watermeter,dev-id,cnt\n" +
		"2023-01-01T00:00:00Z,10.5,dev1,\n" +
		"2023-01-01T01:00:00Z,12,dev1,1.5\n"
	if string(data) != wantCSV {
		t.Errorf("CSV = %q, want %q", data, wantCSV)
	}

	for name, w := range map[string]*fakeWriter{"influxdb": influx, "tsdb": vm} {
		if w.calls != 1 || w.table.Len() != 2 || w.measurement != "watermeter" {
			t.Errorf("%s: calls=%d rows=%d measurement=%q", name, w.calls, w.table.Len(), w.measurement)
		}
		if w.fieldsHadNaN {
			t.Errorf("%s received NaN fields", name)
		}
	}
	if pub.runID != "run-1" {
		t.Errorf("publisher run id = %q, want run-1", pub.runID)
	}

	if n := len(f.srv.Requests()); n != 1 {
		t.Errorf("API received %d requests, want 1", n)
	}
}

func TestRun_DisabledSinksAreSkipped(t *testing.T) {
	f := newFixture(t)

	res, err := Run(context.Background(), f.rc, f.deps)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if diff := cmp.Diff([]string{SinkOutput}, res.Sinks); diff != "" {
		t.Errorf("Sinks mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(f.logs.String(), "time-series sink disabled") {
		t.Error("expected a log line for the disabled sinks")
	}
}

func TestRun_OfflineMatchesLive(t *testing.T) {
	f := newFixture(t)
	f.rc.SaveJSON = filepath.Join(t.TempDir(), "data.json")

	live, err := Run(context.Background(), f.rc, f.deps)
	if err != nil {
		t.Fatalf("live Run() error = %v", err)
	}

	offlineRC := f.rc
	offlineRC.SaveJSON = ""
	offlineRC.FromJSON = f.rc.SaveJSON
	offlineDeps := f.deps
	offlineDeps.Fetcher = nil

	offline, err := Run(context.Background(), offlineRC, offlineDeps)
	if err != nil {
		t.Fatalf("offline Run() error = %v", err)
	}

	if diff := cmp.Diff(live.Table, offline.Table, cmpNaN); diff != "" {
		t.Errorf("offline table mismatch (-live +offline):\n%s", diff)
	}
	if n := len(f.srv.Requests()); n != 1 {
		t.Errorf("API received %d requests, want 1 (offline run must not call it)", n)
	}
}

func TestRun_EmptyResponseNamedAfterDevice(t *testing.T) {
	f := newFixture(t)
	f.srv.SetLines([]string{})

	res, err := Run(context.Background(), f.rc, f.deps)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Rows != 0 {
		t.Errorf("Rows = %d, want 0", res.Rows)
	}
	if want := filepath.Join(f.outDir, "dev1-20230102T030405.csv"); res.OutputPath != want {
		t.Errorf("OutputPath = %q, want %q", res.OutputPath, want)
	}
}

func TestRun_MalformedLineStopsBeforeSaving(t *testing.T) {
	f := newFixture(t)
	f.srv.SetLines([]string{"2023-01-01T00:00:00 = 1", "2023-01-01T01:00:00=2"})
	influx := &fakeWriter{}
	f.deps.InfluxDB = influx

	_, err := Run(context.Background(), f.rc, f.deps)
	if !errors.Is(err, kiinteisto.ErrMalformedLine) {
		t.Fatalf("Run() error = %v, want ErrMalformedLine", err)
	}

	entries, _ := os.ReadDir(f.outDir)
	if len(entries) != 0 {
		t.Errorf("output directory has %d entries, want 0", len(entries))
	}
	if influx.calls != 0 {
		t.Error("InfluxDB written after a parse failure")
	}
}

func TestRun_APIFailure(t *testing.T) {
	f := newFixture(t)
	f.srv.SetResponse(500, []byte("internal error"))

	_, err := Run(context.Background(), f.rc, f.deps)
	if !errors.Is(err, kiinteisto.ErrUnexpectedStatus) {
		t.Errorf("Run() error = %v, want ErrUnexpectedStatus", err)
	}
}

func TestRun_UnknownFormatWritesNothing(t *testing.T) {
	f := newFixture(t)
	out := f.rc.Config.Output
	out.Format = "xml"
	f.deps.Saver = output.NewSaver(out, f.rc.Config.Database)
	influx := &fakeWriter{}
	f.deps.InfluxDB = influx

	_, err := Run(context.Background(), f.rc, f.deps)
	if !errors.Is(err, output.ErrUnknownFormat) {
		t.Fatalf("Run() error = %v, want ErrUnknownFormat", err)
	}
	if influx.calls != 0 {
		t.Error("InfluxDB written after the save failed")
	}
}

func TestRun_SinkFailureStopsRun(t *testing.T) {
	f := newFixture(t)
	sinkErr := errors.New("bucket not found")
	influx, vm, pub := &fakeWriter{err: sinkErr}, &fakeWriter{}, &fakePublisher{}
	f.deps.InfluxDB, f.deps.TSDB, f.deps.Publisher = influx, vm, pub

	res, err := Run(context.Background(), f.rc, f.deps)
	if !errors.Is(err, sinkErr) {
		t.Fatalf("Run() error = %v, want %v", err, sinkErr)
	}
	if vm.calls != 0 || pub.calls != 0 {
		t.Errorf("later sinks called after failure: tsdb=%d mqtt=%d", vm.calls, pub.calls)
	}
	if res.OutputPath == "" {
		t.Error("OutputPath empty, the table was saved before the failing sink")
	}
}

func TestRun_PublishFailure(t *testing.T) {
	f := newFixture(t)
	pubErr := errors.New("broker gone")
	f.deps.Publisher = &fakePublisher{err: pubErr}

	_, err := Run(context.Background(), f.rc, f.deps)
	if !errors.Is(err, pubErr) {
		t.Errorf("Run() error = %v, want %v", err, pubErr)
	}
}

func TestRun_LogsRunIDButNotAPIKey(t *testing.T) {
	f := newFixture(t)

	if _, err := Run(context.Background(), f.rc, f.deps); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	logs := f.logs.String()
	if !strings.Contains(logs, `"run_id":"run-1"`) {
		t.Errorf("logs do not carry run_id:\n%s", logs)
	}
	if strings.Contains(logs, testAPIKey) {
		t.Errorf("logs contain the API key:\n%s", logs)
	}
}

func TestRun_MissingDeps(t *testing.T) {
	f := newFixture(t)

	noSaver := f.deps
	noSaver.Saver = nil
	if _, err := Run(context.Background(), f.rc, noSaver); !errors.Is(err, ErrNoSaver) {
		t.Errorf("Run() without saver error = %v, want ErrNoSaver", err)
	}

	noFetcher := f.deps
	noFetcher.Fetcher = nil
	if _, err := Run(context.Background(), f.rc, noFetcher); !errors.Is(err, ErrNoFetcher) {
		t.Errorf("Run() without fetcher error = %v, want ErrNoFetcher", err)
	}
}
