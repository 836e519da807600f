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

package servo

import (
	"math"

	"github.com/eclesh/welford"
)

// Tracker accumulates wake error samples and keeps running aggregates.
// Used by verification tooling to judge how well the drift correction
// converges over a long run.
type Tracker struct {
	stats  *welford.Stats
	count  uint64
	absMax float64
}

// NewTracker creates an empty Tracker
func NewTracker() *Tracker {
	return &Tracker{stats: welford.New()}
}

// Add records one wake error sample
func (t *Tracker) Add(v float64) {
	t.stats.Add(v)
	t.count++
	if math.Abs(v) > t.absMax {
		t.absMax = math.Abs(v)
	}
}

// Count returns the number of samples recorded
func (t *Tracker) Count() uint64 {
	return t.count
}

// Mean returns the mean wake error
func (t *Tracker) Mean() float64 {
	return t.stats.Mean()
}

// Stddev returns the standard deviation of wake errors
func (t *Tracker) Stddev() float64 {
	return t.stats.Stddev()
}

// AbsMax returns the largest absolute wake error seen
func (t *Tracker) AbsMax() float64 {
	return t.absMax
}
