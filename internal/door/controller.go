package door

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/VictoriaMetrics/metrics"

	"github.com/sweeney/door-monitor/internal/clock"
	"github.com/sweeney/door-monitor/internal/config"
	"github.com/sweeney/door-monitor/internal/datalog"
	"github.com/sweeney/door-monitor/internal/gpio"
	"github.com/sweeney/door-monitor/internal/logger"
)

// Actions carries out named remote actions.
type Actions interface {
	ProcessAction(ctx context.Context, name string) bool
}

// DataLog records door and motion samples.
type DataLog interface {
	Post(e datalog.Entry)
}

// Notifier is told about state changes.
type Notifier interface {
	Notify(t Transition)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Transition)

// Notify calls f(t).
func (f NotifierFunc) Notify(t Transition) { f(t) }

// Deps are the collaborators of a Controller. Nil Actions, DataLog and
// Notifier are skipped; a nil Clock means real time.
type Deps struct {
	Outputs  gpio.Writer
	Actions  Actions
	DataLog  DataLog
	Clock    clock.Clock
	Notifier Notifier
}

// Controller owns the door, alert, motion and garage light state. All of it
// is guarded by one mutex shared between event handling and the motion flush
// timer.
type Controller struct {
	ctx      context.Context
	deps     Deps
	settings config.Settings

	mu          sync.Mutex
	door        State
	openedAt    time.Time
	lightsOn    bool
	alert       bool
	alertAt     time.Time
	motionCount int
	motionTimer clock.Timer
	motionGen   uint64
	garageLight bool
	garageOnAt  time.Time
	pirActive   bool
	heartbeat   bool
	resetAt     time.Time
	lastEvent   string
	lastEventAt time.Time
	counts      map[EventKind]int
}

// NewController creates a Controller in the Unknown door state.
func NewController(deps Deps, settings config.Settings) *Controller {
	if deps.Clock == nil {
		deps.Clock = clock.Real{}
	}
	return &Controller{
		ctx:      logger.WithName(context.Background(), "door"),
		deps:     deps,
		settings: settings,
		counts:   make(map[EventKind]int),
	}
}

// Init drives the lights to their initial Off state.
func (c *Controller) Init() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lights(false)()
}

// Handle processes one named event to completion and then clears an expired
// alert. It is the monitor listener; a returned error means an output could
// not be driven.
func (c *Controller) Handle(event string) error {
	kind := ParseEvent(event)

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.deps.Clock.Now()
	c.lastEvent, c.lastEventAt = event, now
	c.counts[kind]++
	metrics.GetOrCreateCounter(fmt.Sprintf(`door_events_handled_total{event=%q}`, kind)).Inc()

	if err := c.dispatch(kind, event, now); err != nil {
		return fmt.Errorf("%s: %w", event, err)
	}
	if err := c.expireAlert(now); err != nil {
		return fmt.Errorf("clear alert: %w", err)
	}
	return nil
}

func (c *Controller) dispatch(kind EventKind, event string, now time.Time) error {
	switch kind {
	case EventOpenNormal:
		return c.openNormal(now)
	case EventOpenAlert:
		return c.openAlert(now)
	case EventClosed:
		return c.closed(now)
	case EventResetButton:
		return c.resetButton(now)
	case EventMotion:
		c.logMotion()
		return nil
	case EventMotionAlert:
		return c.motionAlert(now)
	case EventPIRActive:
		c.pir(true)
		return nil
	case EventPIRInactive:
		c.pir(false)
		return nil
	case EventHeartbeat:
		return c.beat(now)
	case EventTestCallback:
		logger.Debugf(c.ctx, "Listener check received")
		return nil
	case EventUnknown:
		metrics.GetOrCreateCounter(`door_events_unhandled_total`).Inc()
		logger.WarnKV(c.ctx, "Unhandled event", "event", event)
		return nil
	default:
		panic(fmt.Sprintf("door: no handler for event kind %d", kind))
	}
}

// quiet reports whether a reset quiet period is in force.
func (c *Controller) quiet(now time.Time) bool {
	return !c.resetAt.IsZero() && now.Sub(c.resetAt) < c.settings.ResetLimit
}

func (c *Controller) openNormal(now time.Time) error {
	if c.door != StateOpen {
		c.open(now)
		if err := sequence(c.lights(true), c.buzz(2)); err != nil {
			return err
		}
		c.ensureGarageLight(now)
		return nil
	}

	elapsed := now.Sub(c.openedAt)
	switch {
	case elapsed > c.settings.OpenedThreshold2:
		if c.quiet(now) {
			logger.DebugKV(c.ctx, "Quiet period, warning suppressed", "open_for", elapsed)
			return nil
		}
		logger.WarnKV(c.ctx, "Door left open", "open_for", elapsed.Round(time.Second))
		if err := sequence(c.lights(false), c.buzz(1), c.lights(true)); err != nil {
			return err
		}
		c.signal(c.settings.Actions.SignalFlashing)
		c.notify(now, TransitionOpenWarning, elapsed)
	case elapsed > c.settings.OpenedThreshold1:
		if c.quiet(now) {
			logger.DebugKV(c.ctx, "Quiet period, reminder suppressed", "open_for", elapsed)
			return nil
		}
		logger.InfoKV(c.ctx, "Door open reminder", "open_for", elapsed.Round(time.Second))
		return sequence(c.lights(false), c.pause(c.settings.LightBlink), c.lights(true))
	default:
		logger.DebugKV(c.ctx, "Door open", "open_for", elapsed.Round(time.Second))
	}
	return nil
}

func (c *Controller) openAlert(now time.Time) error {
	wasOpen := c.door == StateOpen
	if wasOpen && c.quiet(now) {
		logger.DebugKV(c.ctx, "Quiet period, attention pattern suppressed")
		return nil
	}

	logger.Info(c.ctx, "Processing open alert")
	if !wasOpen {
		c.open(now)
	}

	err := sequence(
		c.lights(false), c.buzz(1),
		c.lights(true), c.buzz(1),
		c.lights(false), c.buzz(1),
		c.lights(true),
	)
	if err != nil {
		return err
	}
	c.signal(c.settings.Actions.SignalFlashing)

	if !wasOpen {
		c.ensureGarageLight(now)
	}
	return nil
}

// open records the Closed/Unknown to Open transition.
func (c *Controller) open(now time.Time) {
	logger.InfoKV(c.ctx, "Door opened", "was", c.door)
	c.post(datalog.Entry{DoorOpen: true})
	c.door = StateOpen
	c.openedAt = now
	c.notify(now, TransitionOpened, 0)
}

func (c *Controller) closed(now time.Time) error {
	if c.door == StateClosed {
		return nil
	}

	wasOpen := c.door == StateOpen
	var openFor time.Duration
	if wasOpen {
		openFor = now.Sub(c.openedAt)
		logger.InfoKV(c.ctx, "Door closed", "open_for", openFor.Round(time.Second))
		c.post(datalog.Entry{DoorOpen: false})
	} else {
		logger.Info(c.ctx, "Door closed")
	}

	c.door = StateClosed
	c.openedAt = time.Time{}
	if err := sequence(c.lights(false), c.buzz(3)); err != nil {
		return err
	}
	c.signal(c.settings.Actions.SignalOff)
	c.notify(now, TransitionClosed, openFor)
	return nil
}

func (c *Controller) resetButton(now time.Time) error {
	c.resetAt = now
	logger.InfoKV(c.ctx, "Reset button pressed", "quiet_until", now.Add(c.settings.ResetLimit).Format(time.TimeOnly))
	return c.buzz(1)()
}

func (c *Controller) motionAlert(now time.Time) error {
	if !c.alert {
		c.alert = true
		c.alertAt = now
		logger.Warn(c.ctx, "Intruder alert")
		if err := sequence(c.horn(true), c.lights(true)); err != nil {
			return err
		}
		c.signal(c.settings.Actions.SignalFlashing)
		c.notify(now, TransitionAlertRaised, 0)
	}
	c.logMotion()
	return nil
}

// expireAlert clears an alert that has outlived the alert duration.
func (c *Controller) expireAlert(now time.Time) error {
	if !c.alert || now.Sub(c.alertAt) <= c.settings.AlertDuration {
		return nil
	}

	logger.Info(c.ctx, "Cancelling alert: duration exceeded")
	c.alert = false
	if err := sequence(c.horn(false), c.lights(false)); err != nil {
		return err
	}
	c.signal(c.settings.Actions.SignalOff)
	c.notify(now, TransitionAlertCleared, 0)
	return nil
}

// logMotion counts a motion sample and arms the flush timer on the first one.
func (c *Controller) logMotion() {
	c.motionCount++
	logger.DebugKV(c.ctx, "Motion detected", "count", c.motionCount)
	if c.motionCount != 1 {
		return
	}

	if c.motionTimer != nil {
		c.motionTimer.Stop()
	}
	c.motionGen++
	gen := c.motionGen
	c.motionTimer = c.deps.Clock.AfterFunc(c.settings.MotionFlushDelay, func() {
		c.flushMotion(gen)
	})
}

// flushMotion posts the accumulated motion to the data log and resets the
// counter. A flush from a timer that has since been replaced does nothing.
func (c *Controller) flushMotion(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.motionGen || c.motionCount == 0 {
		return
	}

	open := c.door == StateOpen
	logger.InfoKV(c.ctx, "Logging motion", "count", c.motionCount, "door", c.door)
	c.post(datalog.Entry{DoorOpen: open, Motion: true})
	c.post(datalog.Entry{DoorOpen: open, Motion: false})
	c.motionCount = 0
	c.motionTimer = nil
}

// pir toggles the amber signal on edges of the garage PIR.
func (c *Controller) pir(active bool) {
	if c.pirActive == active {
		return
	}
	c.pirActive = active
	logger.InfoKV(c.ctx, "Garage PIR", "active", active)

	if active {
		c.signal(c.settings.Actions.SignalAmberOn)
	} else {
		c.signal(c.settings.Actions.SignalAmberOff)
	}
}

func (c *Controller) beat(now time.Time) error {
	c.heartbeat = !c.heartbeat
	if err := c.write(OutputHeartbeat, c.heartbeat); err != nil {
		return err
	}

	if c.garageLight && now.Sub(c.garageOnAt) > c.settings.GarageLightOnDuration {
		if !c.action(c.settings.Actions.GarageLightOff) {
			logger.Warn(c.ctx, "Garage light off failed, retrying next heartbeat")
			return nil
		}
		c.garageLight = false
		c.garageOnAt = time.Time{}
		c.notify(now, TransitionGarageLightOff, 0)
	}
	return nil
}

// ensureGarageLight turns the garage light on when it is off.
func (c *Controller) ensureGarageLight(now time.Time) {
	if c.garageLight {
		return
	}
	if !c.action(c.settings.Actions.GarageLightOn) {
		logger.Warn(c.ctx, "Garage light on failed")
		return
	}
	c.garageLight = true
	c.garageOnAt = now
	c.notify(now, TransitionGarageLightOn, 0)
}

func (c *Controller) post(e datalog.Entry) {
	if c.deps.DataLog != nil {
		c.deps.DataLog.Post(e)
	}
}

func (c *Controller) notify(now time.Time, typ TransitionType, openFor time.Duration) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`door_transitions_total{type=%q}`, typ)).Inc()
	if c.deps.Notifier == nil {
		return
	}
	c.deps.Notifier.Notify(Transition{
		Timestamp: now,
		Type:      typ,
		Door:      c.door,
		Alert:     c.alert,
		OpenFor:   openFor,
	})
}

// Snapshot returns a copy of the controller state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	counts := make(map[string]int, len(c.counts))
	for k, n := range c.counts {
		counts[k.String()] = n
	}

	s := Snapshot{
		Door:             c.door,
		OpenedAt:         c.openedAt,
		Lights:           c.lightsOn,
		Alert:            c.alert,
		AlertSince:       c.alertAt,
		MotionCount:      c.motionCount,
		GarageLight:      c.garageLight,
		GarageLightSince: c.garageOnAt,
		PIRActive:        c.pirActive,
		Heartbeat:        c.heartbeat,
		LastEvent:        c.lastEvent,
		LastEventAt:      c.lastEventAt,
		Counts:           counts,
	}
	if !c.resetAt.IsZero() {
		s.QuietUntil = c.resetAt.Add(c.settings.ResetLimit)
	}
	if !c.alert {
		s.AlertSince = time.Time{}
	}
	return s
}

// Close cancels a pending motion flush.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.motionTimer != nil {
		c.motionTimer.Stop()
		c.motionTimer = nil
	}
}
