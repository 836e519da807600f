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
Package servo turns successive confirmed time samples into a per-minute
sleep correction for an oscillator that drifts during power-down.
*/
package servo

import (
	log "github.com/sirupsen/logrus"
)

// MaxDriftMicrosPerMinute bounds the cumulative correction. 10s/min is far
// beyond any physical oscillator, anything larger is a measurement artifact.
const MaxDriftMicrosPerMinute = int64(10_000_000)

const (
	microsPerMilli   = 1000
	millisPerSecond  = 1000
	secondsPerMinute = 60
)

// Estimate returns the updated cumulative drift correction in microseconds
// per minute of elapsed time.
//
// prevConfirmed and newConfirmed are the two most recent confirmed absolute
// times, predictedAtNew is what the local clock believed when newConfirmed
// was measured, and localElapsedMillis is the monotonic time spent between
// making the prediction and obtaining the sample, so measurement latency is
// not counted as drift. All absolute times are whole seconds since epoch.
//
// The increment is added to existing, not substituted: the previous
// correction was already being applied during the measured interval, so the
// new sample only captures the residual error.
//
// prevConfirmed must be > 0; with nothing to compare against there is no
// estimate and the caller must skip the call. A zero or negative interval
// between samples returns existing unchanged.
func Estimate(prevConfirmed, newConfirmed, predictedAtNew int64, localElapsedMillis uint64, existing int64) int64 {
	intervalSeconds := newConfirmed - prevConfirmed
	if intervalSeconds <= 0 {
		log.Warningf("degenerate interval %ds between confirmed samples, keeping drift %dus/min", intervalSeconds, existing)
		return existing
	}

	driftMillis := (newConfirmed-predictedAtNew)*millisPerSecond - int64(localElapsedMillis)
	increment := microsPerMilli * (secondsPerMinute * driftMillis / intervalSeconds)

	updated := existing + increment
	if updated > MaxDriftMicrosPerMinute || updated < -MaxDriftMicrosPerMinute {
		clamped := MaxDriftMicrosPerMinute
		if updated < 0 {
			clamped = -MaxDriftMicrosPerMinute
		}
		log.Warningf("unreasonable drift %dus/min, clamping to %dus/min", updated, clamped)
		return clamped
	}
	return updated
}
