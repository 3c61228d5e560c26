package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string           `json:"event,omitempty"`
	Reason        string           `json:"reason,omitempty"`
	Door          DoorJSON         `json:"door"`
	Inputs        map[string]bool  `json:"inputs,omitempty"`
	InputsAt      string           `json:"inputs_at,omitempty"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	StartTime     string           `json:"start_time"`
	Timestamp     string           `json:"timestamp"`
	MQTT          MQTTStatus       `json:"mqtt"`
	DataLog       DataLogJSON      `json:"data_log"`
	Counts        map[string]int   `json:"event_counts"`
	Recent        []TransitionJSON `json:"recent,omitempty"`
	Network       *NetworkJSON     `json:"network,omitempty"`
	Config        ConfigJSON       `json:"config"`
}

// DoorJSON is the JSON representation of the controller state.
type DoorJSON struct {
	State            string `json:"state"`
	OpenedAt         string `json:"opened_at,omitempty"`
	OpenSeconds      int64  `json:"open_seconds,omitempty"`
	Lights           bool   `json:"lights"`
	Alert            bool   `json:"alert"`
	AlertSince       string `json:"alert_since,omitempty"`
	MotionCount      int    `json:"motion_count"`
	GarageLight      bool   `json:"garage_light"`
	GarageLightSince string `json:"garage_light_since,omitempty"`
	PIRActive        bool   `json:"pir_active"`
	Heartbeat        bool   `json:"heartbeat"`
	QuietUntil       string `json:"quiet_until,omitempty"`
	LastEvent        string `json:"last_event,omitempty"`
	LastEventAt      string `json:"last_event_at,omitempty"`
}

// TransitionJSON is the JSON representation of a door transition.
type TransitionJSON struct {
	Timestamp   string `json:"timestamp"`
	Type        string `json:"type"`
	Door        string `json:"door"`
	OpenSeconds int64  `json:"open_seconds,omitempty"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// DataLogJSON is the JSON representation of data-log counters.
type DataLogJSON struct {
	Enabled bool  `json:"enabled"`
	Sent    int64 `json:"sent"`
	Failed  int64 `json:"failed"`
	Dropped int64 `json:"dropped"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs        int64  `json:"poll_ms"`
	GPIO          string `json:"gpio"`
	Broker        string `json:"broker"`
	HTTPAddr      string `json:"http_addr"`
	RemoteSignals bool   `json:"remote_signals"`
	Triggers      int    `json:"triggers"`
	Actions       int    `json:"actions"`
}

// timestamp formats t in UTC, or "" for the zero time.
func timestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func buildDoor(snap Snapshot) DoorJSON {
	d := snap.Door
	dj := DoorJSON{
		State:            d.Door.String(),
		OpenedAt:         timestamp(d.OpenedAt),
		Lights:           d.Lights,
		Alert:            d.Alert,
		AlertSince:       timestamp(d.AlertSince),
		MotionCount:      d.MotionCount,
		GarageLight:      d.GarageLight,
		GarageLightSince: timestamp(d.GarageLightSince),
		PIRActive:        d.PIRActive,
		Heartbeat:        d.Heartbeat,
		LastEvent:        d.LastEvent,
		LastEventAt:      timestamp(d.LastEventAt),
	}
	if !d.OpenedAt.IsZero() {
		dj.OpenSeconds = int64(snap.Now.Sub(d.OpenedAt).Truncate(time.Second).Seconds())
	}
	if d.QuietUntil.After(snap.Now) {
		dj.QuietUntil = timestamp(d.QuietUntil)
	}
	return dj
}

func buildInner(snap Snapshot) StatusInner {
	counts := snap.Door.Counts
	if counts == nil {
		counts = map[string]int{}
	}

	inner := StatusInner{
		Door:          buildDoor(snap),
		Inputs:        snap.Inputs,
		InputsAt:      timestamp(snap.InputsAt),
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		DataLog: DataLogJSON{
			Enabled: snap.Config.DataLog,
			Sent:    snap.DataLog.Sent,
			Failed:  snap.DataLog.Failed,
			Dropped: snap.DataLog.Dropped,
		},
		Counts: counts,
		Config: ConfigJSON{
			PollMs:        snap.Config.PollMs,
			GPIO:          snap.Config.GPIO,
			Broker:        snap.Config.Broker,
			HTTPAddr:      snap.Config.HTTPAddr,
			RemoteSignals: snap.Config.RemoteSignals,
			Triggers:      snap.Config.Triggers,
			Actions:       snap.Config.Actions,
		},
	}
	for _, tr := range snap.Recent {
		inner.Recent = append(inner.Recent, TransitionJSON{
			Timestamp:   timestamp(tr.Timestamp),
			Type:        string(tr.Type),
			Door:        tr.Door.String(),
			OpenSeconds: int64(tr.OpenFor.Truncate(time.Second).Seconds()),
		})
	}
	return inner
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
