//go:build linux

package gpio

import (
	"errors"
	"fmt"

	"github.com/warthog618/go-gpiocdev"

	"github.com/sweeney/door-monitor/internal/config"
)

// DefaultChip is the GPIO character device used on a Raspberry Pi.
const DefaultChip = "gpiochip0"

// ChipPins drives lines through the Linux GPIO character device.
type ChipPins struct {
	chip    *gpiocdev.Chip
	inputs  map[string]*gpiocdev.Line
	outputs map[string]*gpiocdev.Line
	names   []string
}

// NewChipPins requests every configured line on the named chip. Inputs get a
// pull-up when configured; outputs start low.
func NewChipPins(chipName string, settings *config.PinSettings) (*ChipPins, error) {
	if chipName == "" {
		chipName = DefaultChip
	}
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	p := &ChipPins{
		chip:    chip,
		inputs:  make(map[string]*gpiocdev.Line, len(settings.Inputs)),
		outputs: make(map[string]*gpiocdev.Line, len(settings.Outputs)),
		names:   settings.InputNames(),
	}

	for _, name := range p.names {
		in := settings.Inputs[name]
		opts := []gpiocdev.LineReqOption{gpiocdev.AsInput}
		if in.PullUp {
			opts = append(opts, gpiocdev.WithPullUp)
		}
		line, err := chip.RequestLine(in.Pin, opts...)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("request input %s pin %d: %w", name, in.Pin, err)
		}
		p.inputs[name] = line
	}

	for _, name := range settings.OutputNames() {
		pin := settings.Outputs[name]
		line, err := chip.RequestLine(pin, gpiocdev.AsOutput(0))
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("request output %s pin %d: %w", name, pin, err)
		}
		p.outputs[name] = line
	}

	return p, nil
}

// Inputs returns the input names in sorted order.
func (p *ChipPins) Inputs() []string {
	return p.names
}

// Read returns the raw level of the named input.
func (p *ChipPins) Read(name string) (bool, error) {
	line, ok := p.inputs[name]
	if !ok {
		return false, fmt.Errorf("%w %q", ErrUnknownPin, name)
	}
	v, err := line.Value()
	if err != nil {
		return false, fmt.Errorf("read %s: %w", name, err)
	}
	return v == 1, nil
}

// Write sets the raw level of the named output.
func (p *ChipPins) Write(name string, high bool) error {
	line, ok := p.outputs[name]
	if !ok {
		return fmt.Errorf("%w %q", ErrUnknownPin, name)
	}
	v := 0
	if high {
		v = 1
	}
	if err := line.SetValue(v); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// Close drives outputs low, returns every line to input with pull-down to
// match the Pi boot defaults, and releases the chip.
func (p *ChipPins) Close() error {
	var errs []error

	for name, line := range p.outputs {
		if err := line.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("reset output %s: %w", name, err))
		}
		if err := line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure output %s: %w", name, err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close output %s: %w", name, err))
		}
	}
	for name, line := range p.inputs {
		if err := line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure input %s: %w", name, err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close input %s: %w", name, err))
		}
	}
	if p.chip != nil {
		if err := p.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	return errors.Join(errs...)
}
