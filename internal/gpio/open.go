package gpio

import (
	"fmt"
	"time"

	"github.com/sweeney/door-monitor/internal/config"
)

// Open returns the Pins implementation for backend.
func Open(backend, chip string, settings *config.PinSettings) (Pins, error) {
	switch backend {
	case BackendChip:
		p, err := NewChipPins(chip, settings)
		if err != nil {
			return nil, err
		}
		return p, nil
	case BackendPeriph:
		p, err := NewPeriphPins(settings)
		if err != nil {
			return nil, err
		}
		return p, nil
	case BackendSim:
		return NewSimPins(settings, time.Now().UnixNano()), nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownBackend, backend)
	}
}
