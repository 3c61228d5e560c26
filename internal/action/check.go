package action

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sweeney/door-monitor/internal/clock"
	"github.com/sweeney/door-monitor/internal/logger"
)

// invalidNames are exercised by Check to confirm unknown actions fail cleanly.
var invalidNames = []string{"invalid_action", "foo", "bar", "garage_light_explode"}

// CheckResult is the outcome of one action in a Check run.
type CheckResult struct {
	Name string
	OK   bool
}

// Check processes every defined action followed by a fixed set of invalid
// names, writing one line per action to w.
func Check(ctx context.Context, d *Dispatcher, w io.Writer) []CheckResult {
	names := append(d.Names(), invalidNames...)
	results := make([]CheckResult, 0, len(names))

	for _, name := range names {
		ok := d.ProcessAction(ctx, name)
		results = append(results, CheckResult{Name: name, OK: ok})

		status := "OK"
		if !ok {
			status = "Error"
			if !d.Has(name) {
				status = "Error (invalid action?)"
			}
		}
		fmt.Fprintf(w, "%-24s %s\n", name, status)
	}
	return results
}

// SoakOptions configures a Soak run.
type SoakOptions struct {
	// OnAction and OffAction are toggled alternately.
	OnAction  string
	OffAction string
	Duration  time.Duration
	Pause     time.Duration
	Clock     clock.Clock
}

// SoakResult counts the outcomes of a Soak run.
type SoakResult struct {
	Good int
	Fail int
}

// Soak toggles a device between two actions until the duration elapses or
// ctx is cancelled. The device state only flips when an action succeeds.
func Soak(ctx context.Context, d *Dispatcher, opts SoakOptions) SoakResult {
	ctx = logger.WithName(ctx, "soak")
	c := opts.Clock
	if c == nil {
		c = clock.Real{}
	}

	var (
		res   SoakResult
		on    bool
		start = c.Now()
	)

	logger.InfoKV(ctx, "Starting soak test", "duration", opts.Duration, "pause", opts.Pause)
	for ctx.Err() == nil && c.Now().Sub(start) < opts.Duration {
		name := opts.OnAction
		if on {
			name = opts.OffAction
		}

		if d.ProcessAction(ctx, name) {
			on = !on
			res.Good++
			logger.InfoKV(ctx, "Toggled device", "action", name)
		} else {
			res.Fail++
			logger.WarnKV(ctx, "Toggle failed", "action", name)
		}

		logger.InfoKV(ctx, "Soak progress", "good", res.Good, "fail", res.Fail)
		c.Sleep(opts.Pause)
	}
	logger.InfoKV(ctx, "Soak test completed", "good", res.Good, "fail", res.Fail)
	return res
}
