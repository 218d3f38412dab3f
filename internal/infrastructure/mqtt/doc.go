// Package mqtt publishes water meter readings to an MQTT broker.
//
// This package manages:
//   - A single short-lived connection per run (no auto-reconnect)
//   - Publishing each reading with the configured QoS
//   - A retained "latest" message per device for late subscribers
//   - Last Will and Testament (LWT) on the status topic
//
// # Topics
//
//	<prefix>/<dev-id>/reading   every reading of the run, oldest first
//	<prefix>/<dev-id>/latest    newest reading, retained
//	<prefix>/status             online/offline, retained
//
// Topic levels derived from device ids have "/", "+" and "#" replaced by "_".
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	n, err := client.PublishReadings(rc.DeviceID, table, runID)
//
// # Security Considerations
//
// Use TLS (cfg.Broker.TLS=true) when the broker is not on localhost.
// Payloads carry no secrets.
package mqtt
