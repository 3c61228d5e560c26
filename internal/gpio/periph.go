package gpio

import (
	"fmt"

	pgpio "periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/sweeney/door-monitor/internal/config"
)

// PeriphPins drives lines through periph.io, addressing pins by BCM number.
type PeriphPins struct {
	inputs  map[string]pgpio.PinIO
	outputs map[string]pgpio.PinIO
	names   []string
}

// NewPeriphPins initialises the periph host drivers and configures every line.
func NewPeriphPins(settings *config.PinSettings) (*PeriphPins, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}

	p := &PeriphPins{
		inputs:  make(map[string]pgpio.PinIO, len(settings.Inputs)),
		outputs: make(map[string]pgpio.PinIO, len(settings.Outputs)),
		names:   settings.InputNames(),
	}

	for _, name := range p.names {
		in := settings.Inputs[name]
		pin, err := lookupPin(in.Pin)
		if err != nil {
			return nil, fmt.Errorf("input %s: %w", name, err)
		}
		pull := pgpio.Float
		if in.PullUp {
			pull = pgpio.PullUp
		}
		if err := pin.In(pull, pgpio.NoEdge); err != nil {
			return nil, fmt.Errorf("configure input %s: %w", name, err)
		}
		p.inputs[name] = pin
	}

	for _, name := range settings.OutputNames() {
		pin, err := lookupPin(settings.Outputs[name])
		if err != nil {
			return nil, fmt.Errorf("output %s: %w", name, err)
		}
		if err := pin.Out(pgpio.Low); err != nil {
			return nil, fmt.Errorf("configure output %s: %w", name, err)
		}
		p.outputs[name] = pin
	}

	return p, nil
}

func lookupPin(bcm int) (pgpio.PinIO, error) {
	pin := gpioreg.ByName(fmt.Sprintf("GPIO%d", bcm))
	if pin == nil {
		return nil, fmt.Errorf("%w GPIO%d", ErrUnknownPin, bcm)
	}
	return pin, nil
}

// Inputs returns the input names in sorted order.
func (p *PeriphPins) Inputs() []string {
	return p.names
}

// Read returns the raw level of the named input.
func (p *PeriphPins) Read(name string) (bool, error) {
	pin, ok := p.inputs[name]
	if !ok {
		return false, fmt.Errorf("%w %q", ErrUnknownPin, name)
	}
	return pin.Read() == pgpio.High, nil
}

// Write sets the raw level of the named output.
func (p *PeriphPins) Write(name string, high bool) error {
	pin, ok := p.outputs[name]
	if !ok {
		return fmt.Errorf("%w %q", ErrUnknownPin, name)
	}
	if err := pin.Out(pgpio.Level(high)); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// Close drives every output low and halts the pins.
func (p *PeriphPins) Close() error {
	var firstErr error
	for name, pin := range p.outputs {
		if err := pin.Out(pgpio.Low); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("reset output %s: %w", name, err)
		}
		if err := pin.Halt(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("halt output %s: %w", name, err)
		}
	}
	return firstErr
}
