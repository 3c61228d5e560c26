// Package config loads the pin layout, event triggers, action definitions and
// controller settings. Everything it returns is read-only after loading.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
)

var (
	// ErrMissingType is returned when an action definition has no type.
	ErrMissingType = errors.New("missing key in action definition: type")
	// ErrMissingURL is returned when an action definition has no url.
	ErrMissingURL = errors.New("missing key in action definition: url")
	// ErrUnknownInput is returned when a trigger refers to an input that is not in the pin settings.
	ErrUnknownInput = errors.New("unknown input")
	// ErrNoInputs is returned when the pin settings declare no inputs.
	ErrNoInputs = errors.New("no inputs defined")
)

// InputPin is a configured input line.
type InputPin struct {
	Pin    int
	PullUp bool
}

// UnmarshalJSON decodes the [pin, pull_up] pair form.
func (p *InputPin) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("input pin: %w", err)
	}
	if len(raw) != 2 {
		return fmt.Errorf("input pin: want [pin, pull_up], got %d elements", len(raw))
	}
	if err := json.Unmarshal(raw[0], &p.Pin); err != nil {
		return fmt.Errorf("input pin number: %w", err)
	}
	pullUp, err := flag(raw[1])
	if err != nil {
		return fmt.Errorf("input pin pull-up: %w", err)
	}
	p.PullUp = pullUp
	return nil
}

// MarshalJSON encodes the [pin, pull_up] pair form.
func (p InputPin) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{p.Pin, p.PullUp})
}

// PinSettings maps logical input and output names to GPIO lines.
type PinSettings struct {
	Inputs  map[string]InputPin `json:"inputs"`
	Outputs map[string]int      `json:"outputs"`
}

// InputNames returns the input names in sorted order.
func (s *PinSettings) InputNames() []string {
	names := make([]string, 0, len(s.Inputs))
	for name := range s.Inputs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// OutputNames returns the output names in sorted order.
func (s *PinSettings) OutputNames() []string {
	names := make([]string, 0, len(s.Outputs))
	for name := range s.Outputs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// InputEvent names the event emitted when an input reads the expected value.
type InputEvent struct {
	Name  string `json:"name"`
	Value bool   `json:"value"`
	Event string `json:"event"`
}

// UnmarshalJSON accepts value as 0/1 or a JSON boolean.
func (e *InputEvent) UnmarshalJSON(b []byte) error {
	var raw struct {
		Name  string          `json:"name"`
		Value json.RawMessage `json:"value"`
		Event string          `json:"event"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	v, err := flag(raw.Value)
	if err != nil {
		return fmt.Errorf("input event %q value: %w", raw.Name, err)
	}
	e.Name, e.Value, e.Event = raw.Name, v, raw.Event
	return nil
}

// Trigger is a time window and the input conditions evaluated inside it.
type Trigger struct {
	Window
	InputEvents []InputEvent `json:"input_events"`
}

// ActionDef describes how a named action is carried out.
type ActionDef struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

// Actions maps action names to their definitions.
type Actions map[string]ActionDef

// Validate checks that every definition has a type and a url.
func (a Actions) Validate() error {
	for _, name := range a.Names() {
		def := a[name]
		if def.Type == "" {
			return fmt.Errorf("action %q: %w", name, ErrMissingType)
		}
		if def.URL == "" {
			return fmt.Errorf("action %q: %w", name, ErrMissingURL)
		}
	}
	return nil
}

// Names returns the action names in sorted order.
func (a Actions) Names() []string {
	names := make([]string, 0, len(a))
	for name := range a {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadPins reads the pin settings file.
func LoadPins(path string) (*PinSettings, error) {
	var s PinSettings
	if err := readJSON(path, &s); err != nil {
		return nil, fmt.Errorf("load pin settings: %w", err)
	}
	if len(s.Inputs) == 0 {
		return nil, fmt.Errorf("load pin settings: %w", ErrNoInputs)
	}
	if s.Outputs == nil {
		s.Outputs = map[string]int{}
	}
	return &s, nil
}

// LoadTriggers reads the event trigger file and checks that every input it
// references exists in pins.
func LoadTriggers(path string, pins *PinSettings) ([]Trigger, error) {
	var triggers []Trigger
	if err := readJSON(path, &triggers); err != nil {
		return nil, fmt.Errorf("load event triggers: %w", err)
	}
	if err := ValidateTriggers(triggers, pins); err != nil {
		return nil, fmt.Errorf("load event triggers: %w", err)
	}
	return triggers, nil
}

// ValidateTriggers checks trigger input references against pins.
func ValidateTriggers(triggers []Trigger, pins *PinSettings) error {
	for i, tr := range triggers {
		for _, ie := range tr.InputEvents {
			if _, ok := pins.Inputs[ie.Name]; !ok {
				return fmt.Errorf("trigger %d: %w %q", i, ErrUnknownInput, ie.Name)
			}
		}
	}
	return nil
}

// LoadActions reads the action definition file. Definitions are validated
// when a dispatcher is built from them.
func LoadActions(path string) (Actions, error) {
	var a Actions
	if err := readJSON(path, &a); err != nil {
		return nil, fmt.Errorf("load actions: %w", err)
	}
	if a == nil {
		a = Actions{}
	}
	return a, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// flag decodes a JSON boolean or a 0/1 number.
func flag(raw json.RawMessage) (bool, error) {
	raw = bytes.TrimSpace(raw)
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b, nil
	}
	n, err := strconv.Atoi(string(raw))
	if err != nil {
		return false, fmt.Errorf("want boolean or 0/1, got %s", raw)
	}
	switch n {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	return false, fmt.Errorf("want boolean or 0/1, got %d", n)
}
