package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

const pinsJSON = `{
  "inputs": {
    "door_closed": [17, true],
    "motion": [27, false],
    "reset_button": [22, 1]
  },
  "outputs": {
    "lights_relay": 5,
    "buzzer": 6,
    "horn_relay": 13,
    "heartbeat_led": 19
  }
}`

func TestLoadPins(t *testing.T) {
	t.Parallel()

	pins, err := LoadPins(writeFile(t, "pins.json", pinsJSON))
	require.NoError(t, err)

	require.Equal(t, InputPin{Pin: 17, PullUp: true}, pins.Inputs["door_closed"])
	require.Equal(t, InputPin{Pin: 27, PullUp: false}, pins.Inputs["motion"])
	require.Equal(t, InputPin{Pin: 22, PullUp: true}, pins.Inputs["reset_button"])
	require.Equal(t, 13, pins.Outputs["horn_relay"])
	require.Equal(t, []string{"door_closed", "motion", "reset_button"}, pins.InputNames())
	require.Equal(t, []string{"buzzer", "heartbeat_led", "horn_relay", "lights_relay"}, pins.OutputNames())
}

func TestLoadPinsErrors(t *testing.T) {
	t.Parallel()

	_, err := LoadPins(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)

	_, err = LoadPins(writeFile(t, "bad.json", `{"inputs": {"door": [17]}}`))
	require.Error(t, err)

	_, err = LoadPins(writeFile(t, "flag.json", `{"inputs": {"door": [17, 2]}}`))
	require.Error(t, err)

	_, err = LoadPins(writeFile(t, "empty.json", `{"outputs": {"buzzer": 6}}`))
	require.ErrorIs(t, err, ErrNoInputs)
}

const triggersJSON = `[
  {
    "start_time": "00:00:00",
    "end_time": "23:59:59",
    "input_events": [
      {"name": "door_closed", "value": 1, "event": "Closed"},
      {"name": "door_closed", "value": 0, "event": "Open_normal"}
    ]
  },
  {
    "start_time": "22:00:00",
    "end_time": "06:00:00",
    "input_events": [
      {"name": "motion", "value": true, "event": "motion_detected_alert"}
    ]
  }
]`

func TestLoadTriggers(t *testing.T) {
	t.Parallel()

	pins, err := LoadPins(writeFile(t, "pins.json", pinsJSON))
	require.NoError(t, err)

	triggers, err := LoadTriggers(writeFile(t, "triggers.json", triggersJSON), pins)
	require.NoError(t, err)
	require.Len(t, triggers, 2)

	require.Equal(t, TimeOfDay(0), triggers[0].Start)
	require.Equal(t, "23:59:59", triggers[0].End.String())
	require.Equal(t, InputEvent{Name: "door_closed", Value: true, Event: "Closed"}, triggers[0].InputEvents[0])
	require.Equal(t, InputEvent{Name: "door_closed", Value: false, Event: "Open_normal"}, triggers[0].InputEvents[1])

	require.Equal(t, "22:00:00", triggers[1].Start.String())
	require.Equal(t, "06:00:00", triggers[1].End.String())
	require.True(t, triggers[1].InputEvents[0].Value)
}

func TestLoadTriggersUnknownInput(t *testing.T) {
	t.Parallel()

	pins, err := LoadPins(writeFile(t, "pins.json", pinsJSON))
	require.NoError(t, err)

	path := writeFile(t, "triggers.json", `[{"start_time": "00:00:00", "end_time": "12:00:00",
		"input_events": [{"name": "window", "value": 1, "event": "Open_normal"}]}]`)
	_, err = LoadTriggers(path, pins)
	require.ErrorIs(t, err, ErrUnknownInput)
}

func TestLoadTriggersBadTime(t *testing.T) {
	t.Parallel()

	pins, err := LoadPins(writeFile(t, "pins.json", pinsJSON))
	require.NoError(t, err)

	path := writeFile(t, "triggers.json", `[{"start_time": "25:00:00", "end_time": "12:00:00", "input_events": []}]`)
	_, err = LoadTriggers(path, pins)
	require.Error(t, err)
}

func TestActionsValidate(t *testing.T) {
	t.Parallel()

	ok := Actions{
		"garage_light_on":  {Type: "http_get", URL: "http://10.0.0.5/on"},
		"garage_light_off": {Type: "http_get", URL: "http://10.0.0.5/off"},
	}
	require.NoError(t, ok.Validate())
	require.Equal(t, []string{"garage_light_off", "garage_light_on"}, ok.Names())

	require.ErrorIs(t, Actions{"x": {URL: "http://x"}}.Validate(), ErrMissingType)
	require.ErrorIs(t, Actions{"x": {Type: "http_get"}}.Validate(), ErrMissingURL)
}

func TestLoadActions(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "actions.json", `{
		"garage_light_on": {"type": "http_get", "url": "http://10.0.0.5/on"},
		"broken": {"url": "http://10.0.0.5/x"}
	}`)

	actions, err := LoadActions(path)
	require.NoError(t, err)
	require.Len(t, actions, 2)
	require.Equal(t, "http_get", actions["garage_light_on"].Type)
	// Validation is left to the dispatcher.
	require.ErrorIs(t, actions.Validate(), ErrMissingType)
}

func TestLoadSettingsDefaults(t *testing.T) {
	t.Parallel()

	s, err := LoadSettings("")
	require.NoError(t, err)
	require.Equal(t, 3*time.Hour, s.OpenedThreshold1)
	require.Equal(t, 4*time.Hour, s.OpenedThreshold2)
	require.Equal(t, time.Hour, s.ResetLimit)
	require.Equal(t, 5*time.Minute, s.AlertDuration)
	require.Equal(t, 10*time.Second, s.MotionFlushDelay)
	require.Equal(t, 3, s.Dispatch.Retries)
	require.Equal(t, 200*time.Millisecond, s.Dispatch.RetryDelay)
	require.Equal(t, "garage_light_on", s.Actions.GarageLightOn)
	require.Equal(t, "signal_amber_off", s.Actions.SignalAmberOff)
	require.False(t, s.RemoteSignals)
}

func TestLoadSettingsYAML(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "settings.yaml", `
opened_threshold_1: 30m
opened_threshold_2: 1h
alert_duration: 90s
remote_signals: true
actions:
  garage_light_on: lamp_on
dispatch:
  retries: 5
  retry_delay: 50ms
`)

	s, err := LoadSettings(path)
	require.NoError(t, err)
	require.Equal(t, 30*time.Minute, s.OpenedThreshold1)
	require.Equal(t, time.Hour, s.OpenedThreshold2)
	require.Equal(t, 90*time.Second, s.AlertDuration)
	require.True(t, s.RemoteSignals)
	require.Equal(t, "lamp_on", s.Actions.GarageLightOn)
	require.Equal(t, "garage_light_off", s.Actions.GarageLightOff)
	require.Equal(t, 5, s.Dispatch.Retries)
	require.Equal(t, 50*time.Millisecond, s.Dispatch.RetryDelay)
	require.Equal(t, DefaultActionTimeout, s.Dispatch.Timeout)
}

func TestLoadSettingsThresholdOrder(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "settings.yaml", "opened_threshold_1: 2h\nopened_threshold_2: 1h\n")
	_, err := LoadSettings(path)
	require.Error(t, err)
}
