package gpio

import (
	"errors"
	"testing"

	"github.com/sweeney/door-monitor/internal/config"
)

func simSettings() *config.PinSettings {
	return &config.PinSettings{
		Inputs: map[string]config.InputPin{
			"door_closed": {Pin: 17, PullUp: true},
			"motion":      {Pin: 27},
		},
		Outputs: map[string]int{"buzzer": 6},
	}
}

func TestSimPinsDeterministicForSeed(t *testing.T) {
	a := NewSimPins(simSettings(), 42)
	b := NewSimPins(simSettings(), 42)

	sawHigh, sawLow := false, false
	for i := 0; i < 64; i++ {
		va, err := a.Read("motion")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		vb, _ := b.Read("motion")
		if va != vb {
			t.Fatalf("read %d: same seed gave %v and %v", i, va, vb)
		}
		if va {
			sawHigh = true
		} else {
			sawLow = true
		}
	}
	if !sawHigh || !sawLow {
		t.Error("expected both levels over 64 samples")
	}
}

func TestSimPinsOutputs(t *testing.T) {
	s := NewSimPins(simSettings(), 1)
	if err := s.Write("buzzer", true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !s.Output("buzzer") {
		t.Error("expected buzzer high")
	}
	if err := s.Write("horn_relay", true); !errors.Is(err, ErrUnknownPin) {
		t.Errorf("expected ErrUnknownPin, got %v", err)
	}
	if _, err := s.Read("window"); !errors.Is(err, ErrUnknownPin) {
		t.Errorf("expected ErrUnknownPin, got %v", err)
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	if _, err := Open("parport", "", simSettings()); !errors.Is(err, ErrUnknownBackend) {
		t.Errorf("expected ErrUnknownBackend, got %v", err)
	}
	p, err := Open(BackendSim, "", simSettings())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := p.Inputs(); len(got) != 2 || got[0] != "door_closed" {
		t.Errorf("unexpected inputs: %v", got)
	}
}
