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
Package clockstate implements the persistent clock record that survives
a timed power-down. It provides quick and transparent translation between
the fixed-size byte region and a simply accessible struct.
The layout is version-stable: any record written with a different magic
or layout version must be treated as absent, triggering a cold reset.
*/
package clockstate

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// SyncMode selects how a wake cycle obtains its current time
type SyncMode uint8

// Possible sync modes
const (
	// FullQuery means the cycle must re-anchor absolute time from the network time source
	FullQuery SyncMode = 0
	// Extrapolate means the cycle trusts the previously scheduled wake time plus drift compensation
	Extrapolate SyncMode = 1
)

func (m SyncMode) String() string {
	switch m {
	case FullQuery:
		return "FULL_QUERY"
	case Extrapolate:
		return "EXTRAPOLATE"
	}
	return "UNSUPPORTED"
}

const (
	recordMagic   = uint32(0x4C50434B) // "LPCK"
	recordVersion = uint8(2)
)

// RecordSizeBytes is the size of the serialized record
const RecordSizeBytes = 39

// ErrInvalidRecord means the persisted bytes are absent, truncated, or
// were written with an incompatible layout
var ErrInvalidRecord = errors.New("invalid persisted clock record")

// State is the only state that survives power-down.
// All times are seconds since the Unix epoch.
type State struct {
	// WakeTime is when the device is scheduled to next wake.
	// During an extrapolated cycle it doubles as the predicted current time.
	WakeTime int64
	// LastConfirmed is the time of the most recent successful network query, 0 if never
	LastConfirmed int64
	// ModeUsed is how the cycle that wrote this record obtained its time
	ModeUsed SyncMode
	// ModeNext is how the next wake cycle must obtain its time
	ModeNext SyncMode
	// Iterations counts wake cycles since cold reset
	Iterations uint32
	// FailedQueries counts consecutive time source query failures
	FailedQueries uint32
	// DriftMicrosPerMinute is the local clock error accumulated per minute of
	// elapsed time. Positive means the clock runs slow and needs less sleep
	// to land on a target wall time.
	DriftMicrosPerMinute int64
}

// record is the on-disk layout. Field order is the wire format, do not reorder.
type record struct {
	Magic                uint32
	Version              uint8
	WakeTime             int64
	LastConfirmed        int64
	ModeUsed             uint8
	ModeNext             uint8
	Iterations           uint32
	FailedQueries        uint32
	DriftMicrosPerMinute int64
}

// ColdStart returns the zeroed record a cycle starts from when the
// persisted state is absent or not trusted
func ColdStart() *State {
	return &State{
		ModeUsed: FullQuery,
		ModeNext: FullQuery,
	}
}

// Bytes converts State to the fixed-size byte region
func (s *State) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	r := record{
		Magic:                recordMagic,
		Version:              recordVersion,
		WakeTime:             s.WakeTime,
		LastConfirmed:        s.LastConfirmed,
		ModeUsed:             uint8(s.ModeUsed),
		ModeNext:             uint8(s.ModeNext),
		Iterations:           s.Iterations,
		FailedQueries:        s.FailedQueries,
		DriftMicrosPerMinute: s.DriftMicrosPerMinute,
	}
	if err := binary.Write(&buf, binary.BigEndian, &r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BytesToState converts the byte region back into State
func BytesToState(b []byte) (*State, error) {
	if len(b) < RecordSizeBytes {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidRecord, len(b), RecordSizeBytes)
	}
	r := record{}
	if err := binary.Read(bytes.NewReader(b), binary.BigEndian, &r); err != nil {
		return nil, err
	}
	if r.Magic != recordMagic {
		return nil, fmt.Errorf("%w: bad magic 0x%08x", ErrInvalidRecord, r.Magic)
	}
	if r.Version != recordVersion {
		return nil, fmt.Errorf("%w: layout version %d, want %d", ErrInvalidRecord, r.Version, recordVersion)
	}
	if r.ModeUsed > uint8(Extrapolate) || r.ModeNext > uint8(Extrapolate) {
		return nil, fmt.Errorf("%w: unknown sync mode", ErrInvalidRecord)
	}
	return &State{
		WakeTime:             r.WakeTime,
		LastConfirmed:        r.LastConfirmed,
		ModeUsed:             SyncMode(r.ModeUsed),
		ModeNext:             SyncMode(r.ModeNext),
		Iterations:           r.Iterations,
		FailedQueries:        r.FailedQueries,
		DriftMicrosPerMinute: r.DriftMicrosPerMinute,
	}, nil
}
