// Package action sends named, logical actions (turning a light on, raising a
// remote signal) to the devices that carry them out.
package action

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/VictoriaMetrics/metrics"

	"github.com/sweeney/door-monitor/internal/clock"
	"github.com/sweeney/door-monitor/internal/config"
	"github.com/sweeney/door-monitor/internal/logger"
)

// TypeHTTPGet is the only supported action type.
const TypeHTTPGet = "http_get"

var (
	// ErrUnknownAction is returned when no definition exists for a name.
	ErrUnknownAction = errors.New("unknown action")
	// ErrUnsupportedType is returned for a definition whose type is not http_get.
	ErrUnsupportedType = errors.New("unsupported action type")
	// ErrStatus is returned for a non-2xx response.
	ErrStatus = errors.New("unexpected HTTP status")
)

// Dispatcher performs actions with a bounded number of attempts. It holds no
// mutable state and is safe for concurrent use.
type Dispatcher struct {
	defs       config.Actions
	client     *http.Client
	clock      clock.Clock
	retries    int
	retryDelay time.Duration
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithRetries sets the maximum number of attempts per call.
func WithRetries(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.retries = n
		}
	}
}

// WithRetryDelay sets the pause between attempts.
func WithRetryDelay(delay time.Duration) Option {
	return func(d *Dispatcher) {
		if delay >= 0 {
			d.retryDelay = delay
		}
	}
}

// WithTimeout sets the per-attempt HTTP timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.client = &http.Client{Timeout: timeout, Transport: d.client.Transport}
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(d *Dispatcher) {
		if c != nil {
			d.client = c
		}
	}
}

// WithClock replaces the clock used for retry pauses.
func WithClock(c clock.Clock) Option {
	return func(d *Dispatcher) {
		if c != nil {
			d.clock = c
		}
	}
}

// NewDispatcher validates defs and returns a Dispatcher. A definition missing
// its type or url is a configuration error.
func NewDispatcher(defs config.Actions, opts ...Option) (*Dispatcher, error) {
	if err := defs.Validate(); err != nil {
		return nil, fmt.Errorf("action definitions: %w", err)
	}

	d := &Dispatcher{
		defs:       defs,
		client:     &http.Client{Timeout: config.DefaultActionTimeout},
		clock:      clock.Real{},
		retries:    config.DefaultActionRetries,
		retryDelay: config.DefaultActionRetryDelay,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Names returns the defined action names in sorted order.
func (d *Dispatcher) Names() []string {
	return d.defs.Names()
}

// Has reports whether name is defined.
func (d *Dispatcher) Has(name string) bool {
	_, ok := d.defs[name]
	return ok
}

// ProcessAction performs the named action and reports success. Failures are
// logged, never returned.
func (d *Dispatcher) ProcessAction(ctx context.Context, name string) bool {
	ctx = logger.WithName(ctx, "action")

	if err := d.Do(ctx, name); err != nil {
		logger.ErrorKV(ctx, "Action failed", "action", name, "error", err)
		return false
	}
	return true
}

// Do performs the named action and returns the last error once every
// attempt has failed.
func (d *Dispatcher) Do(ctx context.Context, name string) error {
	def, ok := d.defs[name]
	if !ok {
		metrics.GetOrCreateCounter(`door_action_unknown_total`).Inc()
		return fmt.Errorf("%w %q", ErrUnknownAction, name)
	}
	if def.Type != TypeHTTPGet {
		return fmt.Errorf("%w %q", ErrUnsupportedType, def.Type)
	}

	var lastErr error
	for attempt := 1; attempt <= d.retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("action %s: %w", name, err)
		}

		metrics.GetOrCreateCounter(fmt.Sprintf(`door_action_attempts_total{action=%q}`, name)).Inc()
		logger.DebugKV(ctx, "Sending action", "action", name, "url", def.URL, "attempt", attempt)

		lastErr = d.get(ctx, def.URL)
		if lastErr == nil {
			return nil
		}

		logger.WarnKV(ctx, "Action attempt failed",
			"action", name, "attempt", attempt, "retries", d.retries, "error", lastErr)

		if attempt < d.retries {
			d.clock.Sleep(d.retryDelay)
		}
	}

	metrics.GetOrCreateCounter(fmt.Sprintf(`door_action_failures_total{action=%q}`, name)).Inc()
	return fmt.Errorf("action %s: giving up after %d attempts: %w", name, d.retries, lastErr)
}

func (d *Dispatcher) get(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", url, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("get %s: %w %d", url, ErrStatus, resp.StatusCode)
	}
	return nil
}
