/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

/*
Package cycle orchestrates one wake of the low-power clock: restore or
reset the persisted record, obtain current time, update the drift
estimate, pick the next sync mode, plan the next wake and hand back the
power-down request. The whole cycle is one run-to-completion computation;
the only cross-cycle state is the persisted record.
*/
package cycle

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/lowpower/clock/clockstate"
	"github.com/lowpower/clock/display"
	"github.com/lowpower/clock/scheduler"
	"github.com/lowpower/clock/servo"
)

// WakeCause is why the device powered up
type WakeCause uint8

// Possible wake causes
const (
	// WakeCauseColdStart is any power-up that is not a scheduled timer expiry.
	// The persisted record is not trusted.
	WakeCauseColdStart WakeCause = iota
	// WakeCauseTimer is expiry of a previously requested timed power-down
	WakeCauseTimer
)

func (w WakeCause) String() string {
	switch w {
	case WakeCauseColdStart:
		return "COLD_START"
	case WakeCauseTimer:
		return "TIMER"
	}
	return "UNSUPPORTED"
}

// Retry policy for an unavailable time source. The original device looped
// with the radio on until a query succeeded, which drains the battery; we
// power down between attempts and back off once the fast retries run out.
const (
	maxFastRetries    = 5
	fastRetryInterval = 10 * time.Second
	slowRetryInterval = 5 * time.Minute
)

// TimeSource re-anchors absolute time over the network
type TimeSource interface {
	Query() (time.Time, error)
}

// Display draws the clock face. Render is assumed complete when it
// returns; there is no way to observe a display fault after power-down.
type Display interface {
	Init() error
	Render(f display.Fields) error
}

// Outcome is what a wake cycle hands to the power controller
type Outcome struct {
	// State as persisted at the end of the cycle
	State clockstate.State
	// Sleep is the drift-compensated power-down duration
	Sleep time.Duration
	// RadioOn tells whether the radio must be available on the next wake
	RadioOn bool
	// Rendered tells whether the display was updated this cycle
	Rendered bool
}

// Controller runs one wake cycle at a time. It is the only owner of the
// persisted record: loaded at the start of a cycle, written back at the end.
type Controller struct {
	cfg    *Config
	store  clockstate.Store
	source TimeSource
	disp   Display
	stats  StatsServer
	loc    *time.Location

	// instant the current wake began. The estimator subtracts the
	// milliseconds since then as measurement latency, so the base resets
	// on every wake, not once per process.
	wakeStart     time.Time
	elapsedMillis func() uint64
}

// New creates a Controller wired to its collaborators
func New(cfg *Config, store clockstate.Store, source TimeSource, disp Display, stats StatsServer) (*Controller, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", cfg.Timezone, err)
	}
	c := &Controller{
		cfg:       cfg,
		store:     store,
		source:    source,
		disp:      disp,
		stats:     stats,
		loc:       loc,
		wakeStart: time.Now(),
	}
	c.elapsedMillis = func() uint64 { return uint64(time.Since(c.wakeStart).Milliseconds()) }
	return c, nil
}

// SetElapsedMillisFunc overrides the monotonic elapsed clock. Simulations
// running on virtual time use this so wall-clock latency of the harness is
// not mistaken for measurement latency.
func (c *Controller) SetElapsedMillisFunc(f func() uint64) {
	c.elapsedMillis = f
}

// restore loads the persisted record on a timer wake, or starts from the
// zeroed record on anything else. An absent or invalid record is never a
// hard failure, it just means cold start.
func (c *Controller) restore(cause WakeCause) *clockstate.State {
	if cause == WakeCauseTimer {
		b, err := c.store.Load()
		if err == nil {
			s, serr := clockstate.BytesToState(b)
			if serr == nil {
				// retry wakes after a failed query do not count
				// toward the calibration schedule
				if s.FailedQueries == 0 {
					s.Iterations++
				}
				log.Debugf("restored record: wake time %d, iteration %d", s.WakeTime, s.Iterations)
				return s
			}
			err = serr
		}
		log.Warningf("persisted state not trusted, treating as cold start: %v", err)
		c.stats.Inc("invalid_state")
	}
	log.Info("cold start, resetting clock record")
	c.stats.Inc("cold_start")
	if err := c.disp.Init(); err != nil {
		log.Errorf("initializing display: %v", err)
	}
	return clockstate.ColdStart()
}

// RunCycle performs one full wake cycle and returns the power-down request.
// Every failure is recovered within the cycle; a returned error only means
// the record could not be persisted, and the outcome is still usable.
func (c *Controller) RunCycle(cause WakeCause) (*Outcome, error) {
	log.Infof("waking up, cause: %s", cause)
	c.wakeStart = time.Now()
	s := c.restore(cause)

	// AcquireTime consumes the mode the previous cycle chose
	mode := s.ModeNext
	s.ModeUsed = mode

	var now int64
	switch mode {
	case clockstate.Extrapolate:
		now = s.WakeTime
		c.stats.Inc("extrapolate")
		log.Debug("time set by estimate")
	case clockstate.FullQuery:
		t, err := c.source.Query()
		if err != nil {
			return c.retryOutcome(s, err)
		}
		now = t.Unix()
		c.stats.Inc("full_query")
		log.Debugf("time confirmed by query: %d", now)

		// UpdateDrift: only a confirmed sample with a confirmed
		// predecessor can refine the correction. A prediction stretched
		// by retry power-downs is stale and must not be scored.
		if s.LastConfirmed > 0 {
			if s.FailedQueries > 0 {
				log.Warningf("prediction is %d retry power-downs old, skipping drift update", s.FailedQueries)
			} else {
				s.DriftMicrosPerMinute = servo.Estimate(s.LastConfirmed, now, s.WakeTime, c.elapsedMillis(), s.DriftMicrosPerMinute)
				log.Infof("drift correction now %dms/min", s.DriftMicrosPerMinute/1000)
			}
		}
		s.LastConfirmed = now
		s.FailedQueries = 0
	}

	// ScheduleNext picks the mode for the next wake, not this one
	s.ModeNext = scheduler.Decide(time.Duration(now-s.LastConfirmed)*time.Second, s.Iterations)

	nextWake, powerDownMicros := scheduler.PlanWake(now, s.DriftMicrosPerMinute)
	s.WakeTime = nextWake

	err := c.persist(s)

	fields := display.Format(time.Unix(now, 0), c.loc, s.Iterations, s.DriftMicrosPerMinute)
	if rerr := c.disp.Render(fields); rerr != nil {
		log.Errorf("rendering display: %v", rerr)
	}

	c.stats.SetCounter("iterations", int64(s.Iterations))
	c.stats.SetCounter("drift_us_per_min", s.DriftMicrosPerMinute)
	c.stats.SetCounter("sleep_us", int64(powerDownMicros))

	out := &Outcome{
		State:    *s,
		Sleep:    time.Duration(powerDownMicros) * time.Microsecond,
		RadioOn:  s.ModeNext == clockstate.FullQuery,
		Rendered: true,
	}
	log.Infof("about to power down for %.3fs (next mode %s)", out.Sleep.Seconds(), s.ModeNext)
	return out, err
}

// retryOutcome handles an unavailable time source: no render, no schedule
// advance, no drift update. Power down briefly with the radio left enabled
// and try again, backing off after too many consecutive failures.
func (c *Controller) retryOutcome(s *clockstate.State, cause error) (*Outcome, error) {
	s.FailedQueries++
	s.ModeNext = clockstate.FullQuery
	c.stats.Inc("query_error")
	c.stats.SetCounter("consecutive_query_errors", int64(s.FailedQueries))

	sleep := fastRetryInterval
	if s.FailedQueries > maxFastRetries {
		sleep = slowRetryInterval
	}
	log.Errorf("no response from time source (attempt %d), retrying in %s: %v", s.FailedQueries, sleep, cause)

	err := c.persist(s)
	return &Outcome{
		State:    *s,
		Sleep:    sleep,
		RadioOn:  true,
		Rendered: false,
	}, err
}

func (c *Controller) persist(s *clockstate.State) error {
	b, err := s.Bytes()
	if err != nil {
		return fmt.Errorf("encoding clock record: %w", err)
	}
	if err := c.store.Save(b); err != nil {
		return fmt.Errorf("persisting clock record: %w", err)
	}
	return nil
}
