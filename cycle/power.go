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

package cycle

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

// PowerController models the timed deep sleep. On the real device the call
// never returns and execution restarts from process start on expiry; host
// implementations block instead and report the wake cause.
type PowerController interface {
	PowerDown(ctx context.Context, d time.Duration, radioOn bool) (WakeCause, error)
}

// TimerPower simulates deep sleep with a timer
type TimerPower struct{}

// PowerDown blocks for d and wakes with WakeCauseTimer
func (TimerPower) PowerDown(ctx context.Context, d time.Duration, radioOn bool) (WakeCause, error) {
	log.Debugf("sleeping %s, radio enabled: %v", d, radioOn)
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return WakeCauseColdStart, ctx.Err()
	case <-timer.C:
		return WakeCauseTimer, nil
	}
}

// Run drives wake cycles until ctx is cancelled. The first cycle wakes with
// first as its cause; every later one wakes however the power controller
// says it did.
func Run(ctx context.Context, c *Controller, power PowerController, first WakeCause) error {
	cause := first
	for {
		out, err := c.RunCycle(cause)
		if err != nil {
			log.Error(err)
		}
		cause, err = power.PowerDown(ctx, out.Sleep, out.RadioOn)
		if err != nil {
			return err
		}
	}
}
