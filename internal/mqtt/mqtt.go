// Package mqtt publishes door transitions and daemon lifecycle events to an
// MQTT broker.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/door-monitor/internal/door"
)

// Topic is the MQTT topic for door transitions.
const Topic = "home/garage/door/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "home/garage/door/system"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a door transition to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(tr door.Transition) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool
}

// Payload represents the MQTT message payload for a door transition.
type Payload struct {
	Door DoorPayload `json:"door"`
}

// DoorPayload contains the transition details.
type DoorPayload struct {
	Timestamp   string `json:"timestamp"`
	Event       string `json:"event"`
	State       string `json:"state"`
	Alert       bool   `json:"alert"`
	OpenSeconds int64  `json:"open_seconds,omitempty"`
}

// FormatPayload creates the JSON payload for a door transition.
func FormatPayload(tr door.Transition) ([]byte, error) {
	payload := Payload{
		Door: DoorPayload{
			Timestamp:   tr.Timestamp.UTC().Format(time.RFC3339),
			Event:       string(tr.Type),
			State:       tr.Door.String(),
			Alert:       tr.Alert,
			OpenSeconds: int64(tr.OpenFor.Truncate(time.Second).Seconds()),
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
