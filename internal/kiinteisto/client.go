package kiinteisto

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"runtime"
	"strings"

	"github.com/nerrad567/watermeter-ingest/internal/infrastructure/config"
)

// Request constants for the water meter endpoint.
const (
	// commandGetWaterMeterData is the remote procedure name.
	commandGetWaterMeterData = "getwatermeterdata"

	// headerFunctionsKey carries the API key.
	headerFunctionsKey = "x-functions-key"

	// clientID identifies this tool in the user-agent header.
	clientID = "https://github.com/nerrad567/watermeter-ingest api-client"

	// maxErrorBody limits how much of an error response is quoted.
	maxErrorBody = 512
)

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Warn(msg string, args ...any)
}

// request is the JSON body sent to the API.
type request struct {
	Command string   `json:"c"`
	Params  []string `json:"p"`
}

// Client talks to the Kiinteistömittaus API.
//
// A Client makes exactly one request per Fetch call. It does not retry and
// does not set a timeout of its own; cancellation comes from the context.
type Client struct {
	httpClient *http.Client
	userAgent  string
	logger     Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithVersion sets the client version reported in the user-agent header.
func WithVersion(version string) Option {
	return func(c *Client) {
		c.userAgent = UserAgent(version)
	}
}

// NewClient creates a client using http.DefaultClient unless overridden.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: http.DefaultClient,
		userAgent:  UserAgent("dev"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetLogger sets a logger for best-effort failures (saving the raw response).
func (c *Client) SetLogger(logger Logger) {
	c.logger = logger
}

// UserAgent builds the "<client-id>/<version> Go/<runtime version>" header value.
func UserAgent(version string) string {
	return fmt.Sprintf("%s/%s Go/%s", clientID, version, strings.TrimPrefix(runtime.Version(), "go"))
}

// Fetch requests the readings of rc.DeviceID for rc.Period.
//
// When rc.SaveJSON is set the response is also written there, pretty-printed.
// Failing to save is logged and does not fail the fetch.
//
// Parameters:
//   - ctx: Context for cancellation
//   - rc: Run configuration (API key, base URL, device id, period)
//
// Returns:
//   - RawResponse: The decoded JSON document
//   - error: ErrRequestFailed, ErrUnexpectedStatus or ErrInvalidJSON
func (c *Client) Fetch(ctx context.Context, rc config.RunConfig) (RawResponse, error) {
	body, err := json.Marshal(request{
		Command: commandGetWaterMeterData,
		Params:  []string{rc.DeviceID, string(rc.Period)},
	})
	if err != nil {
		return RawResponse{}, fmt.Errorf("%w: encoding request: %w", ErrRequestFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rc.BaseURL, bytes.NewReader(body))
	if err != nil {
		return RawResponse{}, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	req.Header.Set(headerFunctionsKey, rc.APIKey)
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return RawResponse{}, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return RawResponse{}, fmt.Errorf("%w: reading body: %w", ErrRequestFailed, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return RawResponse{}, fmt.Errorf("%w: HTTP %d: %s", ErrUnexpectedStatus, resp.StatusCode, snippet(data))
	}

	raw, err := NewRawResponse(data)
	if err != nil {
		return RawResponse{}, err
	}

	if rc.SaveJSON != "" {
		if err := raw.WriteFile(rc.SaveJSON); err != nil && c.logger != nil {
			c.logger.Warn("could not save raw response", "path", rc.SaveJSON, "error", err)
		}
	}

	return raw, nil
}

// snippet shortens an error body for inclusion in an error message.
func snippet(data []byte) string {
	s := strings.TrimSpace(string(data))
	if len(s) > maxErrorBody {
		return s[:maxErrorBody] + "..."
	}
	return s
}
