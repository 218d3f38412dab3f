package mqtt

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/nerrad567/watermeter-ingest/internal/meter"
)

// Maximum payload size for MQTT messages (1MB).
// This prevents resource exhaustion and aligns with typical broker limits.
const maxPayloadSize = 1 << 20 // 1MB

// Publish sends a message to the specified MQTT topic.
//
// Parameters:
//   - topic: The topic to publish to (e.g., "watermeter/dev1/reading")
//   - payload: The message payload (typically JSON, max 1MB)
//   - qos: Quality of Service level (0, 1, or 2)
//   - retained: Whether the broker should retain the message for new subscribers
//
// Returns:
//   - error: nil on success, or wrapped error describing the failure
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	return nil
}

// ReadingMessage is the JSON payload published for each reading.
type ReadingMessage struct {
	RunID      string    `json:"run_id"`
	DevID      string    `json:"dev_id"`
	Time       time.Time `json:"time"`
	Watermeter float64   `json:"watermeter"`

	// Usage is null for the first reading of a run.
	Usage *float64 `json:"cnt"`
}

// NewReadingMessage converts a table row into its published form.
func NewReadingMessage(r meter.Reading, runID string) ReadingMessage {
	m := ReadingMessage{
		RunID:      runID,
		DevID:      r.DevID,
		Time:       r.Time.UTC(),
		Watermeter: r.Watermeter,
	}
	if !math.IsNaN(r.Usage) {
		u := r.Usage
		m.Usage = &u
	}
	return m
}

// PublishReadings publishes every reading of table in time order on the
// device's reading topic, then retains the newest on its latest topic.
//
// Parameters:
//   - deviceID: Device the table belongs to
//   - table: Readings to publish
//   - runID: Identifier of the ingestion run
//
// Returns:
//   - int: Number of readings published
//   - error: The first publish failure; later readings are not attempted
func (c *Client) PublishReadings(deviceID string, table meter.Table, runID string) (int, error) {
	qos := byte(c.cfg.QoS)
	readingTopic := c.topics.Reading(deviceID)

	published := 0
	for _, r := range table.Readings {
		payload, err := json.Marshal(NewReadingMessage(r, runID))
		if err != nil {
			return published, fmt.Errorf("%w: encoding reading: %w", ErrPublishFailed, err)
		}
		if err := c.Publish(readingTopic, payload, qos, false); err != nil {
			return published, err
		}
		published++
	}

	latest, ok := table.Latest()
	if !ok {
		return published, nil
	}
	payload, err := json.Marshal(NewReadingMessage(latest, runID))
	if err != nil {
		return published, fmt.Errorf("%w: encoding reading: %w", ErrPublishFailed, err)
	}
	return published, c.Publish(c.topics.Latest(deviceID), payload, qos, true)
}
