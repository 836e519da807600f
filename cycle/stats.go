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
	"sync"
)

// StatsServer collects per-cycle diagnostic counters. There is no metrics
// endpoint on a device that spends its life powered off; counters end up
// in logs and on the display diagnostic line. The cycle only ever sets
// gauges and counts events, so that is the whole interface.
type StatsServer interface {
	SetCounter(key string, val int64)
	Inc(key string)
}

// Stats is a map-backed StatsServer
type Stats struct {
	mux      sync.RWMutex
	counters map[string]int64
}

// NewStats creates new instance of Stats
func NewStats() *Stats {
	return &Stats{
		counters: map[string]int64{},
	}
}

// Inc adds one to a counter
func (s *Stats) Inc(key string) {
	s.mux.Lock()
	s.counters[key]++
	s.mux.Unlock()
}

// SetCounter will set a counter to the provided value.
func (s *Stats) SetCounter(key string, val int64) {
	s.mux.Lock()
	s.counters[key] = val
	s.mux.Unlock()
}

// Get returns a snapshot of all counters
func (s *Stats) Get() map[string]int64 {
	s.mux.RLock()
	defer s.mux.RUnlock()
	ret := make(map[string]int64, len(s.counters))
	for key, val := range s.counters {
		ret[key] = val
	}
	return ret
}
