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
Package scheduler decides when the clock must re-anchor itself against the
network time source, and plans the next drift-compensated wake.
*/
package scheduler

import (
	"time"

	"github.com/lowpower/clock/clockstate"
)

const (
	// CalibrationIterations is how many wake cycles use the short resync
	// interval before drift is considered well characterized
	CalibrationIterations = uint32(12)
	// CalibrationInterval is the resync interval while calibrating
	CalibrationInterval = 10 * time.Minute
	// SteadyStateInterval is the resync interval once drift is calibrated
	SteadyStateInterval = 9 * time.Hour
)

// ResyncInterval returns how long the clock may extrapolate before the
// next full query, for the given wake cycle count
func ResyncInterval(iterations uint32) time.Duration {
	if iterations < CalibrationIterations {
		return CalibrationInterval
	}
	return SteadyStateInterval
}

// Decide picks the sync mode for the upcoming wake cycle. The current
// cycle's time source was chosen when it began; this result only takes
// effect on the next wake. Elapsed time strictly greater than the required
// interval forces a full query.
func Decide(elapsedSinceConfirmed time.Duration, iterations uint32) clockstate.SyncMode {
	if elapsedSinceConfirmed > ResyncInterval(iterations) {
		return clockstate.FullQuery
	}
	return clockstate.Extrapolate
}
