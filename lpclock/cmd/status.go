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

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/lowpower/clock/clockstate"
	"github.com/lowpower/clock/cycle"
	"github.com/lowpower/clock/scheduler"
)

var statusStateFile string

func init() {
	RootCmd.AddCommand(statusCmd)
	statusCmd.Flags().StringVar(&statusStateFile, "statefile", cycle.DefaultConfig().StateFile, "where the persisted clock record lives")
}

func formatConfirmed(s *clockstate.State) string {
	if s.LastConfirmed == 0 {
		return color.RedString("never")
	}
	age := time.Since(time.Unix(s.LastConfirmed, 0)).Round(time.Second)
	text := fmt.Sprintf("%s (%s ago)", time.Unix(s.LastConfirmed, 0).Format(time.RFC3339), age)
	if age > scheduler.SteadyStateInterval {
		return color.YellowString(text)
	}
	return color.GreenString(text)
}

func printState(w io.Writer, s *clockstate.State) {
	table := tablewriter.NewWriter(w)
	table.Header("field", "value")
	table.Append([]string{"next wake", time.Unix(s.WakeTime, 0).Format(time.RFC3339)})
	table.Append([]string{"last confirmed", formatConfirmed(s)})
	table.Append([]string{"mode used", s.ModeUsed.String()})
	table.Append([]string{"mode next", s.ModeNext.String()})
	table.Append([]string{"iterations", fmt.Sprintf("%d", s.Iterations)})
	table.Append([]string{"failed queries", fmt.Sprintf("%d", s.FailedQueries)})
	table.Append([]string{"drift", fmt.Sprintf("%dus/min", s.DriftMicrosPerMinute)})
	table.Append([]string{"resync interval", scheduler.ResyncInterval(s.Iterations).String()})
	if err := table.Render(); err != nil {
		log.Errorf("rendering table: %v", err)
	}
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Decode and print the persisted clock record",
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()

		store := clockstate.FileStore{Path: statusStateFile}
		b, err := store.Load()
		if err != nil {
			log.Fatalf("loading clock record: %v", err)
		}
		s, err := clockstate.BytesToState(b)
		if err != nil {
			log.Fatalf("decoding clock record: %v", err)
		}
		printState(os.Stdout, s)
	},
}
