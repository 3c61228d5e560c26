// Package gpio provides named access to input and output lines.
// Hardware backends use the Linux GPIO character device or periph.io; the
// simulated backend returns pseudo-random inputs so the daemon can run without
// hardware; the fake backend is scripted for tests.
package gpio

import "errors"

// Backend names accepted by Open.
const (
	BackendChip   = "chip"
	BackendPeriph = "periph"
	BackendSim    = "sim"
)

var (
	// ErrUnknownPin is returned for a name that is not in the pin settings.
	ErrUnknownPin = errors.New("gpio: unknown pin")
	// ErrUnknownBackend is returned by Open for an unsupported backend name.
	ErrUnknownBackend = errors.New("gpio: unknown backend")
)

// Reader samples input lines by logical name.
type Reader interface {
	// Inputs returns the input names in a stable order.
	Inputs() []string

	// Read returns the raw level of the named input (true = high).
	Read(name string) (bool, error)
}

// Writer drives output lines by logical name.
type Writer interface {
	// Write sets the raw level of the named output (true = high).
	Write(name string, high bool) error
}

// Pins is the full pin-access capability.
type Pins interface {
	Reader
	Writer

	// Close releases the lines.
	Close() error
}

// ReadAll samples every input of r into a name to level snapshot.
func ReadAll(r Reader) (map[string]bool, error) {
	names := r.Inputs()
	snap := make(map[string]bool, len(names))
	for _, name := range names {
		v, err := r.Read(name)
		if err != nil {
			return nil, err
		}
		snap[name] = v
	}
	return snap, nil
}
