package tsdb_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/watermeter-ingest/internal/infrastructure/config"
	"github.com/nerrad567/watermeter-ingest/internal/infrastructure/tsdb"
	"github.com/nerrad567/watermeter-ingest/internal/meter"
)

// testConfig returns a configuration for a local dev VictoriaMetrics.
func testConfig() config.TSDBConfig {
	url := os.Getenv("TSDB_URL")
	if url == "" {
		url = "http://127.0.0.1:8428"
	}
	return config.TSDBConfig{
		Enabled:     true,
		URL:         url,
		Measurement: "watermeter",
	}
}

// skipIfNoTSDB skips the test if VictoriaMetrics is not running.
func skipIfNoTSDB(t *testing.T) {
	t.Helper()
	if os.Getenv("RUN_INTEGRATION") == "" {
		client, err := tsdb.Connect(context.Background(), testConfig())
		if err != nil {
			t.Skip("VictoriaMetrics not available, skipping integration test")
		}
		client.Close()
	}
}

// fakeVM answers /health and records /write bodies.
type fakeVM struct {
	*httptest.Server

	mu          sync.Mutex
	writes      []string
	writeStatus int
}

func newFakeVM(t *testing.T) *fakeVM {
	t.Helper()
	f := &fakeVM{writeStatus: http.StatusNoContent}
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, "OK") //nolint:errcheck // test server
	})
	mux.HandleFunc("/write", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.writes = append(f.writes, string(body))
		status := f.writeStatus
		f.mu.Unlock()
		w.WriteHeader(status)
	})
	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func (f *fakeVM) config() config.TSDBConfig {
	cfg := testConfig()
	cfg.URL = f.URL + "/"
	return cfg
}

func exampleTable() meter.Table {
	return meter.DeriveUsage(meter.Build("dev1", []meter.Point{
		{Time: time.Date(2023, 1, 1, 1, 0, 0, 0, time.UTC), Value: 12.0},
		{Time: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), Value: 10.5},
	}))
}

// =============================================================================
// Connection Tests
// =============================================================================

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false

	client, err := tsdb.Connect(context.Background(), cfg)
	if !errors.Is(err, tsdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
	if client != nil {
		t.Error("Connect() returned non-nil client when disabled")
	}
}

func TestConnect_InvalidURL(t *testing.T) {
	cfg := testConfig()
	cfg.URL = "http://127.0.0.1:59999" // Non-existent port

	_, err := tsdb.Connect(context.Background(), cfg)
	if !errors.Is(err, tsdb.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestConnect_Unhealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.URL = srv.URL

	_, err := tsdb.Connect(context.Background(), cfg)
	if !errors.Is(err, tsdb.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestIsConnected_AfterClose(t *testing.T) {
	f := newFakeVM(t)

	client, err := tsdb.Connect(context.Background(), f.config())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect()")
	}

	client.Close()

	if client.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}
	if err := client.WriteTable(context.Background(), "", exampleTable(), meter.DefaultTagColumns); !errors.Is(err, tsdb.ErrNotConnected) {
		t.Errorf("WriteTable() after Close() error = %v, want ErrNotConnected", err)
	}
}

func TestClose_Nil(t *testing.T) {
	var client *tsdb.Client
	if err := client.Close(); err != nil {
		t.Errorf("Close() on nil client error = %v", err)
	}
}

// =============================================================================
// Write Tests
// =============================================================================

func TestWriteTable(t *testing.T) {
	f := newFakeVM(t)

	client, err := tsdb.Connect(context.Background(), f.config())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if err := client.WriteTable(context.Background(), "", exampleTable(), meter.DefaultTagColumns); err != nil {
		t.Fatalf("WriteTable() error = %v", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.writes) != 1 {
		t.Fatalf("server received %d writes, want 1", len(f.writes))
	}

	want := "watermeter,dev-id=dev1 watermeter=10.5 1672531200000000000\n" +
		"watermeter,dev-id=dev1 cnt=1.5,watermeter=12 1672534800000000000"
	if f.writes[0] != want {
		t.Errorf("write body =\n%s\nwant\n%s", f.writes[0], want)
	}
}

func TestWriteTable_MeasurementOverride(t *testing.T) {
	f := newFakeVM(t)

	client, err := tsdb.Connect(context.Background(), f.config())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if err := client.WriteTable(context.Background(), "water", exampleTable(), meter.DefaultTagColumns); err != nil {
		t.Fatalf("WriteTable() error = %v", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, line := range strings.Split(f.writes[0], "\n") {
		if !strings.HasPrefix(line, "water,") {
			t.Errorf("line = %q, want measurement water", line)
		}
	}
}

func TestWriteTable_Empty(t *testing.T) {
	f := newFakeVM(t)

	client, err := tsdb.Connect(context.Background(), f.config())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if err := client.WriteTable(context.Background(), "", meter.Table{}, meter.DefaultTagColumns); err != nil {
		t.Errorf("WriteTable() error = %v", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.writes) != 0 {
		t.Errorf("server received %d writes, want 0", len(f.writes))
	}
}

func TestWriteTable_ServerError(t *testing.T) {
	f := newFakeVM(t)
	f.writeStatus = http.StatusBadRequest

	client, err := tsdb.Connect(context.Background(), f.config())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	err = client.WriteTable(context.Background(), "", exampleTable(), meter.DefaultTagColumns)
	if !errors.Is(err, tsdb.ErrWriteFailed) {
		t.Errorf("WriteTable() error = %v, want ErrWriteFailed", err)
	}
}

func TestWriteTable_Cancelled(t *testing.T) {
	f := newFakeVM(t)

	client, err := tsdb.Connect(context.Background(), f.config())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = client.WriteTable(ctx, "", exampleTable(), meter.DefaultTagColumns)
	if !errors.Is(err, tsdb.ErrWriteFailed) {
		t.Errorf("WriteTable() error = %v, want ErrWriteFailed", err)
	}
}

// =============================================================================
// Integration Tests
// =============================================================================

func TestWriteTable_Integration(t *testing.T) {
	skipIfNoTSDB(t)

	client, err := tsdb.Connect(context.Background(), testConfig())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.WriteTable(ctx, "", exampleTable(), meter.DefaultTagColumns); err != nil {
		t.Errorf("WriteTable() error = %v", err)
	}
	if err := client.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}
