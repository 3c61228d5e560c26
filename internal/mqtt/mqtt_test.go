package mqtt

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sweeney/door-monitor/internal/door"
)

func TestFormatPayload(t *testing.T) {
	tr := door.Transition{
		Timestamp: time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC),
		Type:      door.TransitionClosed,
		Door:      door.StateClosed,
		OpenFor:   95*time.Second + 300*time.Millisecond,
	}

	payload, err := FormatPayload(tr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed Payload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.Door.Timestamp != "2026-02-02T22:18:12Z" {
		t.Errorf("unexpected timestamp: %s", parsed.Door.Timestamp)
	}
	if parsed.Door.Event != "DOOR_CLOSED" {
		t.Errorf("unexpected event: %s", parsed.Door.Event)
	}
	if parsed.Door.State != "CLOSED" {
		t.Errorf("unexpected state: %s", parsed.Door.State)
	}
	if parsed.Door.OpenSeconds != 95 {
		t.Errorf("unexpected open_seconds: %d", parsed.Door.OpenSeconds)
	}
}

func TestFormatPayloadExactJSON(t *testing.T) {
	tr := door.Transition{
		Timestamp: time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC),
		Type:      door.TransitionAlertRaised,
		Door:      door.StateOpen,
		Alert:     true,
	}

	payload, err := FormatPayload(tr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"door":{"timestamp":"2026-02-02T22:18:12Z","event":"ALERT_RAISED","state":"OPEN","alert":true}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", string(payload), expected)
	}
}

func TestFormatPayloadAllTransitionTypes(t *testing.T) {
	tests := []struct {
		typ       door.TransitionType
		state     door.State
		wantEvent string
		wantState string
	}{
		{door.TransitionOpened, door.StateOpen, "DOOR_OPENED", "OPEN"},
		{door.TransitionClosed, door.StateClosed, "DOOR_CLOSED", "CLOSED"},
		{door.TransitionOpenWarning, door.StateOpen, "DOOR_OPEN_WARNING", "OPEN"},
		{door.TransitionAlertRaised, door.StateClosed, "ALERT_RAISED", "CLOSED"},
		{door.TransitionAlertCleared, door.StateUnknown, "ALERT_CLEARED", "UNKNOWN"},
		{door.TransitionGarageLightOn, door.StateOpen, "GARAGE_LIGHT_ON", "OPEN"},
		{door.TransitionGarageLightOff, door.StateClosed, "GARAGE_LIGHT_OFF", "CLOSED"},
	}

	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			payload, err := FormatPayload(door.Transition{Timestamp: time.Now(), Type: tt.typ, Door: tt.state})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			var parsed Payload
			if err := json.Unmarshal(payload, &parsed); err != nil {
				t.Fatalf("invalid JSON: %v", err)
			}
			if parsed.Door.Event != tt.wantEvent {
				t.Errorf("event: got %s, want %s", parsed.Door.Event, tt.wantEvent)
			}
			if parsed.Door.State != tt.wantState {
				t.Errorf("state: got %s, want %s", parsed.Door.State, tt.wantState)
			}
		})
	}
}

func TestFormatPayloadTimezoneConversion(t *testing.T) {
	loc := time.FixedZone("BST", 3600)
	tr := door.Transition{
		Timestamp: time.Date(2026, 6, 1, 9, 0, 0, 0, loc),
		Type:      door.TransitionOpened,
		Door:      door.StateOpen,
	}

	payload, _ := FormatPayload(tr)

	var parsed Payload
	json.Unmarshal(payload, &parsed)
	if parsed.Door.Timestamp != "2026-06-01T08:00:00Z" {
		t.Errorf("expected UTC timestamp, got %s", parsed.Door.Timestamp)
	}
}

func TestTopics(t *testing.T) {
	if Topic != "home/garage/door/events" {
		t.Errorf("unexpected topic: %s", Topic)
	}
	if TopicSystem != "home/garage/door/system" {
		t.Errorf("unexpected system topic: %s", TopicSystem)
	}
}

func TestFormatSystemPayload(t *testing.T) {
	event := SystemEvent{
		Timestamp: time.Date(2026, 2, 10, 8, 30, 0, 0, time.UTC),
		Event:     "SHUTDOWN",
		Reason:    "SIGTERM",
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"system":{"timestamp":"2026-02-10T08:30:00Z","event":"SHUTDOWN","reason":"SIGTERM"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", string(payload), expected)
	}
}

func TestFormatSystemPayloadOmitsReason(t *testing.T) {
	event := SystemEvent{
		Timestamp: time.Date(2026, 2, 10, 14, 30, 0, 0, time.UTC),
		Event:     "RECONNECTED",
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	system := parsed["system"].(map[string]interface{})
	if _, exists := system["reason"]; exists {
		t.Error("RECONNECTED should not have reason field")
	}
}

func TestFormatSystemPayloadRaw(t *testing.T) {
	raw := []byte(`{"status":{"event":"HEARTBEAT"}}`)

	payload, err := FormatSystemPayload(SystemEvent{Event: "HEARTBEAT", RawPayload: raw})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(payload) != string(raw) {
		t.Errorf("expected raw payload passthrough, got %s", payload)
	}
}

func TestFakePublisher(t *testing.T) {
	f := NewFakePublisher()

	tr := door.Transition{Timestamp: time.Now(), Type: door.TransitionOpened, Door: door.StateOpen}
	if err := f.Publish(tr); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(f.Transitions) != 1 {
		t.Fatalf("expected 1 transition, got %d", len(f.Transitions))
	}
	if f.Transitions[0].Type != door.TransitionOpened {
		t.Errorf("unexpected transition: %v", f.Transitions[0])
	}
	if len(f.Payloads) != 1 {
		t.Fatalf("expected 1 payload, got %d", len(f.Payloads))
	}
}

func TestFakePublisherError(t *testing.T) {
	f := NewFakePublisher()
	f.PublishError = errors.New("broker down")

	err := f.Publish(door.Transition{Type: door.TransitionOpened})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(f.Transitions) != 0 {
		t.Error("failed publish should not record the transition")
	}
}

func TestFakePublisherPublishSystem(t *testing.T) {
	f := NewFakePublisher()

	retained := SystemEvent{Timestamp: time.Now(), Event: "STARTUP", Retained: true}
	plain := SystemEvent{Timestamp: time.Now(), Event: "HEARTBEAT"}
	f.PublishSystem(retained)
	f.PublishSystem(plain)

	if len(f.SystemEvents) != 2 {
		t.Fatalf("expected 2 system events, got %d", len(f.SystemEvents))
	}
	if !f.SystemEvents[0].Retained {
		t.Error("first event should have Retained=true")
	}
	if f.SystemEvents[1].Event != "HEARTBEAT" {
		t.Errorf("unexpected second event: %s", f.SystemEvents[1].Event)
	}
	if len(f.SystemPayloads) != 2 {
		t.Errorf("expected 2 system payloads, got %d", len(f.SystemPayloads))
	}
}

func TestFakePublisherPublishSystemError(t *testing.T) {
	f := NewFakePublisher()
	f.PublishSystemError = errors.New("broker down")

	if err := f.PublishSystem(SystemEvent{Event: "STARTUP"}); err == nil {
		t.Fatal("expected error")
	}
	if len(f.SystemEvents) != 0 {
		t.Error("failed publish should not record the event")
	}
}

func TestFakePublisherPreservesOrder(t *testing.T) {
	f := NewFakePublisher()
	types := []door.TransitionType{
		door.TransitionOpened,
		door.TransitionGarageLightOn,
		door.TransitionAlertRaised,
		door.TransitionClosed,
	}
	for _, typ := range types {
		f.Publish(door.Transition{Type: typ})
	}

	got := f.Published()
	if len(got) != len(types) {
		t.Fatalf("expected %d transitions, got %d", len(types), len(got))
	}
	for i, typ := range types {
		if got[i].Type != typ {
			t.Errorf("transition %d: got %s, want %s", i, got[i].Type, typ)
		}
	}
}

func TestFakePublisherCloseAndReset(t *testing.T) {
	f := NewFakePublisher()
	f.Connected = true
	f.Publish(door.Transition{Type: door.TransitionOpened})
	f.PublishSystem(SystemEvent{Event: "STARTUP"})
	f.Close()

	if !f.Closed {
		t.Error("expected Closed=true")
	}

	f.Reset()

	if f.Closed || f.IsConnected() {
		t.Error("Reset should clear Closed and Connected")
	}
	if len(f.Transitions) != 0 || len(f.SystemEvents) != 0 || len(f.Payloads) != 0 || len(f.SystemPayloads) != 0 {
		t.Error("Reset should clear recorded events")
	}

	if err := f.Publish(door.Transition{Type: door.TransitionClosed}); err != nil {
		t.Fatalf("publish after reset: %v", err)
	}
	if len(f.Transitions) != 1 {
		t.Errorf("expected 1 transition after reset, got %d", len(f.Transitions))
	}
}

func TestPublisherInterfaces(t *testing.T) {
	var _ Publisher = (*FakePublisher)(nil)
	var _ ConnectionStatus = (*FakePublisher)(nil)
	var _ Publisher = (*RealPublisher)(nil)
	var _ ConnectionStatus = (*RealPublisher)(nil)
}
