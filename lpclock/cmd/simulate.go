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

package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/lowpower/clock/clockstate"
	"github.com/lowpower/clock/cycle"
	"github.com/lowpower/clock/display"
	"github.com/lowpower/clock/servo"
)

var (
	simCycles int
	simWarmup int
)

// oscillator drift rates to sweep, in microseconds per minute
var simDrifts = []int64{-3000, -1000, -250, 0, 250, 1000, 3000}

func init() {
	RootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().IntVar(&simCycles, "cycles", 2880, "virtual wake cycles per scenario, one per minute")
	simulateCmd.Flags().IntVar(&simWarmup, "warmup", 20, "cycles to skip before recording wake errors")
}

const microsPerSecond = int64(1_000_000)

// simWorld is the truth the simulated device lives in: an absolute time
// and an oscillator with a known error rate
type simWorld struct {
	trueMicros           int64
	driftMicrosPerMinute int64
}

// Query plays the time source: whole-second truth, like the wire format
func (w *simWorld) Query() (time.Time, error) {
	return time.Unix(w.trueMicros/microsPerSecond, 0), nil
}

// sleep advances truth by what the requested local-clock sleep really
// takes. A slow oscillator (positive drift) undercounts elapsed time, so
// real elapsed exceeds the request.
func (w *simWorld) sleep(d time.Duration) {
	local := d.Microseconds()
	w.trueMicros += local * 60 * microsPerSecond / (60*microsPerSecond - w.driftMicrosPerMinute)
}

type simDisplay struct{}

func (simDisplay) Init() error                 { return nil }
func (simDisplay) Render(display.Fields) error { return nil }

type simResult struct {
	drift   int64
	queries int64
	tracker *servo.Tracker
}

func runScenario(drift int64, cycles, warmup int, start int64) (*simResult, error) {
	world := &simWorld{trueMicros: start, driftMicrosPerMinute: drift}
	stats := cycle.NewStats()
	ctrl, err := cycle.New(cycle.DefaultConfig(), &clockstate.MemStore{}, world, simDisplay{}, stats)
	if err != nil {
		return nil, err
	}
	ctrl.SetElapsedMillisFunc(func() uint64 { return 0 })

	tracker := servo.NewTracker()
	cause := cycle.WakeCauseColdStart
	for i := 0; i < cycles; i++ {
		out, err := ctrl.RunCycle(cause)
		if err != nil {
			return nil, err
		}
		world.sleep(out.Sleep)
		cause = cycle.WakeCauseTimer
		if i >= warmup {
			tracker.Add(float64(world.trueMicros - out.State.WakeTime*microsPerSecond))
		}
	}
	return &simResult{
		drift:   drift,
		queries: stats.Get()["full_query"],
		tracker: tracker,
	}, nil
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the wake cycle against simulated oscillators and report wake error",
	Run: func(_ *cobra.Command, _ []string) {
		// per-cycle logging would drown the summary
		log.SetLevel(log.WarnLevel)
		if verbose {
			log.SetLevel(log.DebugLevel)
		}

		start := time.Now().Unix() * microsPerSecond
		results := make([]*simResult, len(simDrifts))
		eg := new(errgroup.Group)
		for i, drift := range simDrifts {
			i, drift := i, drift
			eg.Go(func() error {
				res, err := runScenario(drift, simCycles, simWarmup, start)
				if err != nil {
					return fmt.Errorf("scenario %dus/min: %w", drift, err)
				}
				results[i] = res
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			log.Fatal(err)
		}

		printSimResults(os.Stdout, results)
	},
}

func printSimResults(w io.Writer, results []*simResult) {
	table := tablewriter.NewWriter(w)
	table.Header("oscillator drift", "samples", "queries", "mean err", "stddev", "max abs err")
	for _, r := range results {
		table.Append([]string{
			fmt.Sprintf("%dus/min", r.drift),
			fmt.Sprintf("%d", r.tracker.Count()),
			fmt.Sprintf("%d", r.queries),
			fmt.Sprintf("%.1fms", r.tracker.Mean()/1000),
			fmt.Sprintf("%.1fms", r.tracker.Stddev()/1000),
			fmt.Sprintf("%.1fms", r.tracker.AbsMax()/1000),
		})
	}
	if err := table.Render(); err != nil {
		log.Errorf("rendering table: %v", err)
	}
}
