package gpio

import (
	"math/rand"
	"sync"

	"github.com/sweeney/door-monitor/internal/config"
)

// SimPins substitutes pseudo-random input levels and records output writes
// instead of touching hardware.
type SimPins struct {
	mu      sync.Mutex
	rnd     *rand.Rand
	names   []string
	outputs map[string]bool
	known   map[string]bool
}

// NewSimPins creates a simulated backend seeded with seed.
func NewSimPins(settings *config.PinSettings, seed int64) *SimPins {
	known := make(map[string]bool, len(settings.Inputs))
	for name := range settings.Inputs {
		known[name] = true
	}
	outputs := make(map[string]bool, len(settings.Outputs))
	for name := range settings.Outputs {
		outputs[name] = false
	}
	return &SimPins{
		rnd:     rand.New(rand.NewSource(seed)), //nolint:gosec // Simulation only.
		names:   settings.InputNames(),
		outputs: outputs,
		known:   known,
	}
}

// Inputs returns the input names in sorted order.
func (s *SimPins) Inputs() []string {
	return s.names
}

// Read returns a pseudo-random level.
func (s *SimPins) Read(name string) (bool, error) {
	if !s.known[name] {
		return false, ErrUnknownPin
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.Intn(2) == 1, nil
}

// Write records the level of the named output.
func (s *SimPins) Write(name string, high bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.outputs[name]; !ok {
		return ErrUnknownPin
	}
	s.outputs[name] = high
	return nil
}

// Output returns the last level written to the named output.
func (s *SimPins) Output(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outputs[name]
}

// Close is a no-op.
func (s *SimPins) Close() error {
	return nil
}
