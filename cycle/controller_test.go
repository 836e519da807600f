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
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lowpower/clock/clockstate"
	"github.com/lowpower/clock/display"
)

type fakeSource struct {
	t     int64
	err   error
	calls int
}

func (f *fakeSource) Query() (time.Time, error) {
	f.calls++
	if f.err != nil {
		return time.Time{}, f.err
	}
	return time.Unix(f.t, 0), nil
}

type fakeDisplay struct {
	inits    int
	rendered []display.Fields
}

func (f *fakeDisplay) Init() error {
	f.inits++
	return nil
}

func (f *fakeDisplay) Render(fields display.Fields) error {
	f.rendered = append(f.rendered, fields)
	return nil
}

func newTestController(t *testing.T, store clockstate.Store, source TimeSource, disp *fakeDisplay) *Controller {
	ctrl, err := New(DefaultConfig(), store, source, disp, NewStats())
	require.NoError(t, err)
	ctrl.SetElapsedMillisFunc(func() uint64 { return 0 })
	return ctrl
}

func seedStore(t *testing.T, store clockstate.Store, s *clockstate.State) {
	b, err := s.Bytes()
	require.NoError(t, err)
	require.NoError(t, store.Save(b))
}

func loadState(t *testing.T, store clockstate.Store) *clockstate.State {
	b, err := store.Load()
	require.NoError(t, err)
	s, err := clockstate.BytesToState(b)
	require.NoError(t, err)
	return s
}

func TestColdStartFirstQuery(t *testing.T) {
	store := &clockstate.MemStore{}
	source := &fakeSource{t: 1_000_000}
	disp := &fakeDisplay{}
	ctrl := newTestController(t, store, source, disp)

	out, err := ctrl.RunCycle(WakeCauseColdStart)
	require.NoError(t, err)
	require.Equal(t, 1, disp.inits)
	require.Equal(t, 1, source.calls)
	require.True(t, out.Rendered)
	require.Len(t, disp.rendered, 1)

	// first confirmed sample anchors the clock but cannot update drift
	require.Equal(t, int64(1_000_000), out.State.LastConfirmed)
	require.Zero(t, out.State.DriftMicrosPerMinute)
	require.Zero(t, out.State.Iterations)
	require.Equal(t, clockstate.FullQuery, out.State.ModeUsed)
	require.Equal(t, clockstate.Extrapolate, out.State.ModeNext)
	require.False(t, out.RadioOn)

	// wake on the next whole minute
	require.Equal(t, int64(1_000_020), out.State.WakeTime)
	require.Equal(t, 20*time.Second, out.Sleep)

	// persisted record matches the outcome
	require.Equal(t, &out.State, loadState(t, store))
}

func TestExtrapolateCycle(t *testing.T) {
	store := &clockstate.MemStore{}
	seedStore(t, store, &clockstate.State{
		WakeTime:             1_000_020,
		LastConfirmed:        1_000_000,
		ModeUsed:             clockstate.FullQuery,
		ModeNext:             clockstate.Extrapolate,
		Iterations:           0,
		DriftMicrosPerMinute: 500_000,
	})
	source := &fakeSource{t: 9_999_999, err: fmt.Errorf("radio is off")}
	disp := &fakeDisplay{}
	ctrl := newTestController(t, store, source, disp)

	out, err := ctrl.RunCycle(WakeCauseTimer)
	require.NoError(t, err)

	// no network access at all
	require.Zero(t, source.calls)
	require.Zero(t, disp.inits)

	// only the schedule moves: one minute ahead, minus compensation
	require.Equal(t, uint32(1), out.State.Iterations)
	require.Equal(t, int64(1_000_000), out.State.LastConfirmed)
	require.Equal(t, int64(500_000), out.State.DriftMicrosPerMinute)
	require.Equal(t, clockstate.Extrapolate, out.State.ModeUsed)
	require.Equal(t, int64(1_000_080), out.State.WakeTime)
	require.Equal(t, 60*time.Second-500*time.Millisecond, out.Sleep)
}

func TestSecondQueryUpdatesDrift(t *testing.T) {
	// device predicted T0+595 when truth was T0+600: 5s slow over 600s
	store := &clockstate.MemStore{}
	seedStore(t, store, &clockstate.State{
		WakeTime:      1_000_595,
		LastConfirmed: 1_000_000,
		ModeUsed:      clockstate.Extrapolate,
		ModeNext:      clockstate.FullQuery,
		Iterations:    9,
	})
	source := &fakeSource{t: 1_000_600}
	disp := &fakeDisplay{}
	ctrl := newTestController(t, store, source, disp)

	out, err := ctrl.RunCycle(WakeCauseTimer)
	require.NoError(t, err)
	require.Equal(t, int64(500_000), out.State.DriftMicrosPerMinute)
	require.Equal(t, int64(1_000_600), out.State.LastConfirmed)
	require.Equal(t, uint32(10), out.State.Iterations)

	// freshly confirmed, next cycle extrapolates
	require.Equal(t, clockstate.Extrapolate, out.State.ModeNext)
	require.False(t, out.RadioOn)

	// 20s to the boundary, shortened by the new correction
	require.Equal(t, int64(1_000_620), out.State.WakeTime)
	require.Equal(t, 19500*time.Millisecond, out.Sleep)
}

func TestElapsedMeasuredPerWake(t *testing.T) {
	// the latency fed to the estimator is the latency of this wake, not
	// the age of the process hosting the controller
	store := &clockstate.MemStore{}
	seedStore(t, store, &clockstate.State{
		WakeTime:      1_000_600,
		LastConfirmed: 1_000_000,
		ModeUsed:      clockstate.Extrapolate,
		ModeNext:      clockstate.FullQuery,
		Iterations:    9,
	})
	source := &fakeSource{t: 1_000_600}
	ctrl, err := New(DefaultConfig(), store, source, &fakeDisplay{}, NewStats())
	require.NoError(t, err)

	// uptime accumulated before the wake must not count as latency
	time.Sleep(50 * time.Millisecond)

	out, err := ctrl.RunCycle(WakeCauseTimer)
	require.NoError(t, err)

	// the prediction was exact, so the correction stays zero
	require.Zero(t, out.State.DriftMicrosPerMinute)
	require.Equal(t, int64(1_000_600), out.State.LastConfirmed)
}

func TestRecoveryQuerySkipsDriftUpdate(t *testing.T) {
	// two retry power-downs stretched the wake 20s past the prediction;
	// that delay is scheduling, not oscillator error
	store := &clockstate.MemStore{}
	seedStore(t, store, &clockstate.State{
		WakeTime:      1_000_600,
		LastConfirmed: 1_000_000,
		ModeUsed:      clockstate.FullQuery,
		ModeNext:      clockstate.FullQuery,
		Iterations:    9,
		FailedQueries: 2,
	})
	source := &fakeSource{t: 1_000_620}
	ctrl := newTestController(t, store, source, &fakeDisplay{})

	out, err := ctrl.RunCycle(WakeCauseTimer)
	require.NoError(t, err)
	require.Zero(t, out.State.DriftMicrosPerMinute)
	require.Equal(t, int64(1_000_620), out.State.LastConfirmed)
	require.Zero(t, out.State.FailedQueries)

	// recovery wakes do not count toward the calibration schedule
	require.Equal(t, uint32(9), out.State.Iterations)
}

func TestRetryWakesKeepCalibrationCount(t *testing.T) {
	// a long startup outage must not walk the scheduler into the
	// steady-state interval before any drift has been measured
	store := &clockstate.MemStore{}
	seedStore(t, store, &clockstate.State{
		ModeNext:      clockstate.FullQuery,
		Iterations:    11,
		FailedQueries: 4,
	})
	source := &fakeSource{err: fmt.Errorf("no response")}
	ctrl := newTestController(t, store, source, &fakeDisplay{})

	out, err := ctrl.RunCycle(WakeCauseTimer)
	require.NoError(t, err)
	require.Equal(t, uint32(11), out.State.Iterations)
	require.Equal(t, uint32(5), out.State.FailedQueries)
}

func TestExtrapolateSchedulesResync(t *testing.T) {
	// 620s since the last confirmed sample, calibration interval is 600s
	store := &clockstate.MemStore{}
	seedStore(t, store, &clockstate.State{
		WakeTime:      1_000_620,
		LastConfirmed: 1_000_000,
		ModeUsed:      clockstate.Extrapolate,
		ModeNext:      clockstate.Extrapolate,
		Iterations:    5,
	})
	disp := &fakeDisplay{}
	ctrl := newTestController(t, store, &fakeSource{}, disp)

	out, err := ctrl.RunCycle(WakeCauseTimer)
	require.NoError(t, err)
	require.Equal(t, clockstate.FullQuery, out.State.ModeNext)
	require.True(t, out.RadioOn)
}

func TestQueryFailureRetries(t *testing.T) {
	store := &clockstate.MemStore{}
	seedStore(t, store, &clockstate.State{
		WakeTime:      1_000_620,
		LastConfirmed: 1_000_000,
		ModeUsed:      clockstate.Extrapolate,
		ModeNext:      clockstate.FullQuery,
		Iterations:    11,
	})
	source := &fakeSource{err: fmt.Errorf("no response")}
	disp := &fakeDisplay{}
	ctrl := newTestController(t, store, source, disp)

	out, err := ctrl.RunCycle(WakeCauseTimer)
	require.NoError(t, err)

	// the failed cycle must not render or advance the schedule
	require.False(t, out.Rendered)
	require.Empty(t, disp.rendered)
	require.Equal(t, int64(1_000_620), out.State.WakeTime)
	require.Equal(t, int64(1_000_000), out.State.LastConfirmed)
	require.Zero(t, out.State.DriftMicrosPerMinute)

	// retry soon with the radio still on
	require.Equal(t, uint32(1), out.State.FailedQueries)
	require.Equal(t, clockstate.FullQuery, out.State.ModeNext)
	require.True(t, out.RadioOn)
	require.Equal(t, fastRetryInterval, out.Sleep)

	// the failure streak is persisted
	require.Equal(t, uint32(1), loadState(t, store).FailedQueries)
}

func TestQueryFailureBackoff(t *testing.T) {
	store := &clockstate.MemStore{}
	seedStore(t, store, &clockstate.State{
		ModeNext:      clockstate.FullQuery,
		FailedQueries: maxFastRetries,
	})
	source := &fakeSource{err: fmt.Errorf("no response")}
	ctrl := newTestController(t, store, source, &fakeDisplay{})

	out, err := ctrl.RunCycle(WakeCauseTimer)
	require.NoError(t, err)
	require.Equal(t, uint32(maxFastRetries+1), out.State.FailedQueries)
	require.Equal(t, slowRetryInterval, out.Sleep)
}

func TestQuerySuccessResetsFailures(t *testing.T) {
	store := &clockstate.MemStore{}
	seedStore(t, store, &clockstate.State{
		ModeNext:      clockstate.FullQuery,
		FailedQueries: 3,
	})
	source := &fakeSource{t: 1_000_000}
	ctrl := newTestController(t, store, source, &fakeDisplay{})

	out, err := ctrl.RunCycle(WakeCauseTimer)
	require.NoError(t, err)
	require.Zero(t, out.State.FailedQueries)
	require.Equal(t, int64(1_000_000), out.State.LastConfirmed)
}

func TestInvalidPersistedStateColdStarts(t *testing.T) {
	store := &clockstate.MemStore{}
	require.NoError(t, store.Save([]byte("definitely not a clock record stored here")))
	source := &fakeSource{t: 1_000_000}
	disp := &fakeDisplay{}
	ctrl := newTestController(t, store, source, disp)

	out, err := ctrl.RunCycle(WakeCauseTimer)
	require.NoError(t, err)
	require.Equal(t, 1, disp.inits)
	require.Zero(t, out.State.Iterations)
	require.Equal(t, clockstate.FullQuery, out.State.ModeUsed)
	require.Equal(t, int64(1_000_000), out.State.LastConfirmed)
}

func TestColdStartIgnoresStoredState(t *testing.T) {
	// power-up without a scheduled wake never trusts the record
	store := &clockstate.MemStore{}
	seedStore(t, store, &clockstate.State{
		WakeTime:             1_000_620,
		LastConfirmed:        1_000_000,
		Iterations:           100,
		DriftMicrosPerMinute: 500_000,
		ModeNext:             clockstate.Extrapolate,
	})
	source := &fakeSource{t: 2_000_000}
	disp := &fakeDisplay{}
	ctrl := newTestController(t, store, source, disp)

	out, err := ctrl.RunCycle(WakeCauseColdStart)
	require.NoError(t, err)
	require.Equal(t, 1, disp.inits)
	require.Equal(t, 1, source.calls)
	require.Zero(t, out.State.Iterations)
	require.Zero(t, out.State.DriftMicrosPerMinute)
	require.Equal(t, int64(2_000_000), out.State.LastConfirmed)
}
