//go:build !linux

package gpio

import (
	"errors"

	"github.com/sweeney/door-monitor/internal/config"
)

// DefaultChip is the GPIO character device used on a Raspberry Pi.
const DefaultChip = "gpiochip0"

var errChipUnsupported = errors.New("gpio: character device not supported on this platform (requires Linux)")

// ChipPins is not available on non-Linux platforms.
type ChipPins struct{}

// NewChipPins returns an error on non-Linux platforms.
func NewChipPins(string, *config.PinSettings) (*ChipPins, error) {
	return nil, errChipUnsupported
}

// Inputs returns nothing on non-Linux platforms.
func (p *ChipPins) Inputs() []string { return nil }

// Read is not implemented on non-Linux platforms.
func (p *ChipPins) Read(string) (bool, error) {
	return false, errChipUnsupported
}

// Write is not implemented on non-Linux platforms.
func (p *ChipPins) Write(string, bool) error {
	return errChipUnsupported
}

// Close is a no-op on non-Linux platforms.
func (p *ChipPins) Close() error {
	return nil
}
