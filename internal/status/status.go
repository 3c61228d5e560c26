// Package status provides a thread-safe status tracker for the door-monitor
// daemon. It is read by the HTTP handlers and the MQTT lifecycle events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/door-monitor/internal/door"
)

// MaxRecent is the number of transitions kept for display.
const MaxRecent = 10

// NetworkInfo contains network state.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	PollMs        int64
	GPIO          string
	Broker        string
	HTTPAddr      string
	DataLog       bool
	RemoteSignals bool
	Triggers      int
	Actions       int
}

// DataLogStats counts data-log outcomes.
type DataLogStats struct {
	Sent    int64
	Failed  int64
	Dropped int64
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and stays valid after the lock is released.
type Snapshot struct {
	Door          door.Snapshot
	Inputs        map[string]bool
	InputsAt      time.Time
	Recent        []door.Transition
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	DataLog       DataLogStats
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
		now: time.Now,
	}
}

// Update stores the controller state and the latest input sample.
func (t *Tracker) Update(d door.Snapshot, inputs map[string]bool, at time.Time) {
	t.mu.Lock()
	t.snap.Door = d
	t.snap.Inputs = inputs
	t.snap.InputsAt = at
	t.mu.Unlock()
}

// Record appends a transition to the recent list, dropping the oldest past
// MaxRecent.
func (t *Tracker) Record(tr door.Transition) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.Recent = append(t.snap.Recent, tr)
	if n := len(t.snap.Recent); n > MaxRecent {
		t.snap.Recent = append([]door.Transition(nil), t.snap.Recent[n-MaxRecent:]...)
	}
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetDataLog sets the data-log counters.
func (t *Tracker) SetDataLog(stats DataLogStats) {
	t.mu.Lock()
	t.snap.DataLog = stats
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Recent = append([]door.Transition(nil), t.snap.Recent...)
	if t.snap.Inputs != nil {
		s.Inputs = make(map[string]bool, len(t.snap.Inputs))
		for k, v := range t.snap.Inputs {
			s.Inputs[k] = v
		}
	}
	t.mu.RUnlock()
	s.Now = t.now()
	return s
}
