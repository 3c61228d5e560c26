// Package door contains the door, alert and motion state machine. It turns
// named events into output changes, remote actions and data-log entries.
package door

import "time"

// State is the door position.
type State int

const (
	StateUnknown State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "OPEN"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// EventKind is the closed set of events the controller understands.
type EventKind int

const (
	EventUnknown EventKind = iota
	EventOpenNormal
	EventOpenAlert
	EventClosed
	EventResetButton
	EventMotion
	EventMotionAlert
	EventPIRActive
	EventPIRInactive
	EventHeartbeat
	EventTestCallback
)

var eventNames = map[EventKind]string{
	EventOpenNormal:   "Open_normal",
	EventOpenAlert:    "Open_alert",
	EventClosed:       "Closed",
	EventResetButton:  "reset_button_pressed",
	EventMotion:       "motion_detected",
	EventMotionAlert:  "motion_detected_alert",
	EventPIRActive:    "garage_PIR_active",
	EventPIRInactive:  "garage_PIR_inactive",
	EventHeartbeat:    "heartbeat",
	EventTestCallback: "test callback",
}

var eventKinds = func() map[string]EventKind {
	m := make(map[string]EventKind, len(eventNames))
	for k, name := range eventNames {
		m[name] = k
	}
	return m
}()

// ParseEvent maps an event name to its kind. Names it does not know map to
// EventUnknown.
func ParseEvent(name string) EventKind {
	return eventKinds[name]
}

func (k EventKind) String() string {
	if name, ok := eventNames[k]; ok {
		return name
	}
	return "unknown"
}

// Output names driven by the controller.
const (
	OutputLights    = "lights_relay"
	OutputBuzzer    = "buzzer"
	OutputHorn      = "horn_relay"
	OutputHeartbeat = "heartbeat_led"
)

// TransitionType identifies a published state change.
type TransitionType string

const (
	TransitionOpened         TransitionType = "DOOR_OPENED"
	TransitionClosed         TransitionType = "DOOR_CLOSED"
	TransitionOpenWarning    TransitionType = "DOOR_OPEN_WARNING"
	TransitionAlertRaised    TransitionType = "ALERT_RAISED"
	TransitionAlertCleared   TransitionType = "ALERT_CLEARED"
	TransitionGarageLightOn  TransitionType = "GARAGE_LIGHT_ON"
	TransitionGarageLightOff TransitionType = "GARAGE_LIGHT_OFF"
)

// Transition is a state change worth telling the outside world about.
type Transition struct {
	Timestamp time.Time
	Type      TransitionType
	Door      State
	Alert     bool
	// OpenFor is how long the door had been open, for closes and warnings.
	OpenFor time.Duration
}

// Snapshot is a point-in-time copy of the controller state.
type Snapshot struct {
	Door             State
	OpenedAt         time.Time
	Lights           bool
	Alert            bool
	AlertSince       time.Time
	MotionCount      int
	GarageLight      bool
	GarageLightSince time.Time
	PIRActive        bool
	Heartbeat        bool
	QuietUntil       time.Time
	LastEvent        string
	LastEventAt      time.Time
	Counts           map[string]int
}
