package mqtt

import (
	"fmt"
	"strings"
)

// DefaultTopicPrefix is used when no prefix is configured.
const DefaultTopicPrefix = "watermeter"

// topicReplacer removes MQTT separators and wildcards from topic levels.
var topicReplacer = strings.NewReplacer("/", "_", "+", "_", "#", "_")

// Topics builds the topics readings are published on.
//
//	topics := mqtt.NewTopics("watermeter")
//	topics.Reading("dev1") // "watermeter/dev1/reading"
type Topics struct {
	prefix string
}

// NewTopics returns a topic builder rooted at prefix.
func NewTopics(prefix string) Topics {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{prefix: prefix}
}

// Reading returns the topic each reading of a device is published on.
//
// Example: watermeter/dev1/reading
func (t Topics) Reading(deviceID string) string {
	return fmt.Sprintf("%s/%s/reading", t.prefix, level(deviceID))
}

// Latest returns the retained topic holding a device's newest reading.
//
// Example: watermeter/dev1/latest
func (t Topics) Latest(deviceID string) string {
	return fmt.Sprintf("%s/%s/latest", t.prefix, level(deviceID))
}

// Status returns the ingest status topic (online/offline, LWT).
//
// Example: watermeter/status
func (t Topics) Status() string {
	return t.prefix + "/status"
}

// level makes s safe to use as a single topic level.
func level(s string) string {
	return topicReplacer.Replace(s)
}
