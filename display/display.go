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
Package display formats the once-a-minute clock face: the time and date in
a fixed local-time rule, plus a diagnostic line with the sync counters.
*/
package display

import (
	"fmt"
	"time"
)

// DefaultTimezone is the local-time rule applied when none is configured
const DefaultTimezone = "Europe/London"

// Fields is everything a render pass puts on the panel
type Fields struct {
	TimeText string // HH:MM
	DateText string // Dow D Mon
	DiagText string // seconds within minute, iteration count, drift in ms/min
}

// Format converts now to local time under loc and builds the three
// display fields
func Format(now time.Time, loc *time.Location, iterations uint32, driftMicrosPerMinute int64) Fields {
	local := now.In(loc)
	return Fields{
		TimeText: local.Format("15:04"),
		DateText: local.Format("Mon 2 Jan"),
		DiagText: fmt.Sprintf("s:%02d i:%d d(ms):%d", local.Second(), iterations, driftMicrosPerMinute/1000),
	}
}
