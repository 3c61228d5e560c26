package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Default controller timings.
const (
	DefaultOpenedThreshold1      = 180 * time.Minute
	DefaultOpenedThreshold2      = 240 * time.Minute
	DefaultResetLimit            = time.Hour
	DefaultAlertDuration         = 5 * time.Minute
	DefaultGarageLightOnDuration = 5 * time.Minute
	DefaultMotionFlushDelay      = 10 * time.Second
	DefaultBuzzerPulse           = 400 * time.Millisecond
	DefaultLightBlink            = 500 * time.Millisecond

	DefaultActionRetries    = 3
	DefaultActionRetryDelay = 200 * time.Millisecond
	DefaultActionTimeout    = 5 * time.Second
	DefaultDataLogTimeout   = 5 * time.Second
)

var errThresholdOrder = errors.New("opened_threshold_2 must not be shorter than opened_threshold_1")

// ActionNames are the action definitions the door controller invokes.
type ActionNames struct {
	GarageLightOn  string `yaml:"garage_light_on"`
	GarageLightOff string `yaml:"garage_light_off"`
	SignalFlashing string `yaml:"signal_flashing"`
	SignalOff      string `yaml:"signal_off"`
	SignalAmberOn  string `yaml:"signal_amber_on"`
	SignalAmberOff string `yaml:"signal_amber_off"`
}

// Dispatch holds the retry policy for remote actions.
type Dispatch struct {
	Retries    int           `yaml:"retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`
	Timeout    time.Duration `yaml:"timeout"`
}

// Settings tunes the door controller.
type Settings struct {
	OpenedThreshold1      time.Duration `yaml:"opened_threshold_1"`
	OpenedThreshold2      time.Duration `yaml:"opened_threshold_2"`
	ResetLimit            time.Duration `yaml:"reset_limit"`
	AlertDuration         time.Duration `yaml:"alert_duration"`
	GarageLightOnDuration time.Duration `yaml:"garage_light_on_duration"`
	MotionFlushDelay      time.Duration `yaml:"motion_flush_delay"`
	BuzzerPulse           time.Duration `yaml:"buzzer_pulse"`
	LightBlink            time.Duration `yaml:"light_blink"`
	// RemoteSignals enables the signal_* actions.
	RemoteSignals  bool          `yaml:"remote_signals"`
	Actions        ActionNames   `yaml:"actions"`
	Dispatch       Dispatch      `yaml:"dispatch"`
	DataLogTimeout time.Duration `yaml:"data_log_timeout"`
}

// DefaultSettings returns the settings used when no file is given.
func DefaultSettings() *Settings {
	s := new(Settings)
	// Defaults never fail validation.
	_ = ValidateSettings(s)
	return s
}

// LoadSettings reads YAML settings from path and fills defaults. An empty
// path yields DefaultSettings.
func LoadSettings(path string) (*Settings, error) {
	if path == "" {
		return DefaultSettings(), nil
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var s Settings
	if err := yaml.Unmarshal(contents, &s); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := ValidateSettings(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

// ValidateSettings fills zero values with defaults and checks ordering.
func ValidateSettings(s *Settings) error {
	setDefault(&s.OpenedThreshold1, DefaultOpenedThreshold1)
	setDefault(&s.OpenedThreshold2, DefaultOpenedThreshold2)
	setDefault(&s.ResetLimit, DefaultResetLimit)
	setDefault(&s.AlertDuration, DefaultAlertDuration)
	setDefault(&s.GarageLightOnDuration, DefaultGarageLightOnDuration)
	setDefault(&s.MotionFlushDelay, DefaultMotionFlushDelay)
	setDefault(&s.BuzzerPulse, DefaultBuzzerPulse)
	setDefault(&s.LightBlink, DefaultLightBlink)
	setDefault(&s.Dispatch.RetryDelay, DefaultActionRetryDelay)
	setDefault(&s.Dispatch.Timeout, DefaultActionTimeout)
	setDefault(&s.DataLogTimeout, DefaultDataLogTimeout)
	if s.Dispatch.Retries <= 0 {
		s.Dispatch.Retries = DefaultActionRetries
	}

	a := &s.Actions
	setName(&a.GarageLightOn, "garage_light_on")
	setName(&a.GarageLightOff, "garage_light_off")
	setName(&a.SignalFlashing, "signal_flashing")
	setName(&a.SignalOff, "signal_off")
	setName(&a.SignalAmberOn, "signal_amber_on")
	setName(&a.SignalAmberOff, "signal_amber_off")

	if s.OpenedThreshold2 < s.OpenedThreshold1 {
		return errThresholdOrder
	}
	return nil
}

func setDefault(d *time.Duration, v time.Duration) {
	if *d <= 0 {
		*d = v
	}
}

func setName(s *string, v string) {
	if *s == "" {
		*s = v
	}
}
