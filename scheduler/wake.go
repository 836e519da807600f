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

package scheduler

import (
	log "github.com/sirupsen/logrus"
)

const (
	secondsPerMinute = 60
	microsPerSecond  = int64(1_000_000)
)

// MinPowerDownMicros is the floor for a sleep request. An uncharacterized
// drift must never turn the request negative or near-zero.
const MinPowerDownMicros = uint64(1_000_000)

// PlanWake rounds currentTime up to the next whole minute boundary and
// returns it together with the power-down duration in microseconds.
//
// The local oscillator is known to gain driftMicrosPerMinute of error per
// minute of sleep. A positive value means the local clock runs slow, so the
// device must sleep less real time for its clock to land on the boundary,
// hence the subtraction.
func PlanWake(currentTime int64, driftMicrosPerMinute int64) (nextWakeTime int64, powerDownMicros uint64) {
	secondsToBoundary := secondsPerMinute - currentTime%secondsPerMinute
	nextWakeTime = currentTime + secondsToBoundary

	micros := secondsToBoundary*microsPerSecond - driftMicrosPerMinute
	if micros < int64(MinPowerDownMicros) {
		log.Warningf("power-down of %dus with drift %dus/min is too short, clamping to %dus", micros, driftMicrosPerMinute, MinPowerDownMicros)
		return nextWakeTime, MinPowerDownMicros
	}
	return nextWakeTime, uint64(micros)
}
