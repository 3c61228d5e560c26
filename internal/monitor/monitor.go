// Package monitor samples input lines on an interval and turns matching
// trigger conditions into named events for registered listeners.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/VictoriaMetrics/metrics"

	"github.com/sweeney/door-monitor/internal/clock"
	"github.com/sweeney/door-monitor/internal/config"
	"github.com/sweeney/door-monitor/internal/gpio"
	"github.com/sweeney/door-monitor/internal/logger"
)

// SentinelEvent is delivered once to every listener as it is registered.
const SentinelEvent = "test callback"

// DefaultInterval is the pause between polling iterations.
const DefaultInterval = time.Second

var (
	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("monitor already started")
	// ErrListenerPanic wraps a panic recovered from a listener.
	ErrListenerPanic = errors.New("listener panicked")
)

// Listener receives event names. A returned error is fatal to the polling
// loop: the loop exits and Wait reports the error.
type Listener func(event string) error

// Monitor owns the input snapshot and the listener list.
type Monitor struct {
	ctx      context.Context
	pins     gpio.Reader
	triggers []config.Trigger
	clock    clock.Clock
	interval time.Duration
	tick     <-chan time.Time

	mu        sync.Mutex
	listeners []Listener
	snapshot  map[string]bool
	sampledAt time.Time
	started   bool

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
	err      error
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithInterval sets the pause between iterations.
func WithInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithClock replaces the clock used to evaluate trigger windows.
func WithClock(c clock.Clock) Option {
	return func(m *Monitor) {
		if c != nil {
			m.clock = c
		}
	}
}

// WithTick drives iterations from tick instead of an interval ticker.
func WithTick(tick <-chan time.Time) Option {
	return func(m *Monitor) {
		m.tick = tick
	}
}

// New creates a Monitor sampling pins and evaluating triggers in order.
func New(pins gpio.Reader, triggers []config.Trigger, opts ...Option) *Monitor {
	m := &Monitor{
		ctx:      logger.WithName(context.Background(), "monitor"),
		pins:     pins,
		triggers: triggers,
		clock:    clock.Real{},
		interval: DefaultInterval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register calls l once with SentinelEvent and, if that succeeds, adds it
// to the listeners.
func (m *Monitor) Register(l Listener) error {
	if err := call(l, SentinelEvent); err != nil {
		return fmt.Errorf("register listener: %w", err)
	}

	m.mu.Lock()
	m.listeners = append(m.listeners, l)
	n := len(m.listeners)
	m.mu.Unlock()

	logger.InfoKV(m.ctx, "Listener added", "listeners", n)
	return nil
}

// Start launches the polling loop. It returns ErrAlreadyStarted if called
// more than once.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return ErrAlreadyStarted
	}
	m.started = true

	go m.run(ctx)
	return nil
}

// Stop asks the loop to exit after its current iteration.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		logger.Info(m.ctx, "Shutting down event monitoring")
		close(m.stop)
	})
}

// Wait blocks until the loop has exited and returns the listener error that
// ended it, if any. It returns nil immediately when the loop was never started.
func (m *Monitor) Wait() error {
	m.mu.Lock()
	started := m.started
	m.mu.Unlock()
	if !started {
		return nil
	}

	<-m.done
	return m.err
}

// Done is closed when the loop exits.
func (m *Monitor) Done() <-chan struct{} {
	return m.done
}

// Snapshot returns a copy of the most recent input sample and when it was taken.
func (m *Monitor) Snapshot() (map[string]bool, time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := make(map[string]bool, len(m.snapshot))
	for k, v := range m.snapshot {
		snap[k] = v
	}
	return snap, m.sampledAt
}

// Poll runs one iteration: sample every input, then emit the event of every
// matching input condition of every active trigger, in declaration order.
// An input read failure skips the iteration. A listener error is returned.
func (m *Monitor) Poll(now time.Time) error {
	start := time.Now()
	defer metrics.GetOrCreateSummary(`door_poll_duration_seconds`).UpdateDuration(start)

	snap, err := gpio.ReadAll(m.pins)
	if err != nil {
		metrics.GetOrCreateCounter(`door_input_read_errors_total`).Inc()
		logger.WarnKV(m.ctx, "Input read failed, skipping iteration", "error", err)
		return nil
	}

	m.mu.Lock()
	m.snapshot = snap
	m.sampledAt = now
	listeners := append([]Listener(nil), m.listeners...)
	m.mu.Unlock()

	for i := range m.triggers {
		t := &m.triggers[i]
		if !t.Active(now) {
			continue
		}
		for _, ie := range t.InputEvents {
			v, ok := snap[ie.Name]
			if !ok {
				logger.WarnKV(m.ctx, "Trigger refers to unsampled input", "input", ie.Name)
				continue
			}
			if v != ie.Value {
				continue
			}
			if err := emit(listeners, ie.Event); err != nil {
				return err
			}
		}
	}
	return nil
}

func emit(listeners []Listener, event string) error {
	metrics.GetOrCreateCounter(fmt.Sprintf(`door_events_emitted_total{event=%q}`, event)).Inc()
	for _, l := range listeners {
		if err := call(l, event); err != nil {
			return fmt.Errorf("listener for %q: %w", event, err)
		}
	}
	return nil
}

// call invokes l, converting a panic into an error.
func call(l Listener, event string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrListenerPanic, r)
		}
	}()
	return l(event)
}

func (m *Monitor) run(ctx context.Context) {
	defer close(m.done)

	tick := m.tick
	if tick == nil {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	logger.InfoKV(m.ctx, "Event monitoring started", "interval", m.interval, "triggers", len(m.triggers))
	for {
		select {
		case <-m.stop:
			logger.Info(m.ctx, "Event monitoring stopped")
			return
		default:
		}

		if err := m.Poll(m.clock.Now()); err != nil {
			metrics.GetOrCreateCounter(`door_listener_failures_total`).Inc()
			logger.ErrorKV(m.ctx, "Listener failed, stopping event monitoring", "error", err)
			m.err = err
			return
		}

		select {
		case <-m.stop:
			logger.Info(m.ctx, "Event monitoring stopped")
			return
		case <-ctx.Done():
			logger.Info(m.ctx, "Event monitoring cancelled")
			return
		case <-tick:
		}
	}
}
