package door

import (
	"errors"
	"fmt"
	"time"

	"github.com/sweeney/door-monitor/internal/gpio"
	"github.com/sweeney/door-monitor/internal/logger"
)

// step is one part of an output pattern.
type step func() error

// sequence runs steps in order and stops at the first error.
func sequence(steps ...step) error {
	for _, s := range steps {
		if err := s(); err != nil {
			return err
		}
	}
	return nil
}

// write sets an output level. Outputs missing from the pin layout are logged
// and skipped.
func (c *Controller) write(name string, high bool) error {
	if c.deps.Outputs == nil {
		logger.DebugKV(c.ctx, "Output", "name", name, "high", high)
		return nil
	}

	err := c.deps.Outputs.Write(name, high)
	if errors.Is(err, gpio.ErrUnknownPin) {
		logger.WarnKV(c.ctx, "Output not configured", "name", name)
		return nil
	}
	if err != nil {
		return fmt.Errorf("set %s: %w", name, err)
	}
	return nil
}

// lights switches the lights relay, which is active-low.
func (c *Controller) lights(on bool) step {
	return func() error {
		if err := c.write(OutputLights, !on); err != nil {
			return err
		}
		c.lightsOn = on
		return nil
	}
}

func (c *Controller) horn(on bool) step {
	return func() error {
		return c.write(OutputHorn, on)
	}
}

// buzz sounds n pulses, each high then low for the configured pulse length.
func (c *Controller) buzz(n int) step {
	return func() error {
		for i := 0; i < n; i++ {
			if err := c.write(OutputBuzzer, true); err != nil {
				return err
			}
			c.deps.Clock.Sleep(c.settings.BuzzerPulse)
			if err := c.write(OutputBuzzer, false); err != nil {
				return err
			}
			c.deps.Clock.Sleep(c.settings.BuzzerPulse)
		}
		return nil
	}
}

func (c *Controller) pause(d time.Duration) step {
	return func() error {
		c.deps.Clock.Sleep(d)
		return nil
	}
}

// action runs a remote action and reports success. A missing dispatcher
// counts as failure.
func (c *Controller) action(name string) bool {
	if c.deps.Actions == nil {
		logger.WarnKV(c.ctx, "No action dispatcher, skipping", "action", name)
		return false
	}
	return c.deps.Actions.ProcessAction(c.ctx, name)
}

// signal runs a remote signal action when remote signalling is enabled.
func (c *Controller) signal(name string) {
	if !c.settings.RemoteSignals {
		return
	}
	if !c.action(name) {
		logger.WarnKV(c.ctx, "Remote signal failed", "action", name)
	}
}
