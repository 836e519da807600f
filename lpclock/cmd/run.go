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
	"context"
	"errors"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/lowpower/clock/clockstate"
	"github.com/lowpower/clock/cycle"
	"github.com/lowpower/clock/display"
	"github.com/lowpower/clock/ntp"
)

var (
	runCfgPath string
	runCfg     = cycle.DefaultConfig()
	runWarm    bool
)

func init() {
	RootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&runCfgPath, "cfg", "", "path to config, flag values are ignored when set")
	runCmd.Flags().StringVarP(&runCfg.Server, "server", "s", runCfg.Server, "network time source hostname")
	runCmd.Flags().StringVar(&runCfg.StateFile, "statefile", runCfg.StateFile, "where the persisted clock record lives")
	runCmd.Flags().StringVar(&runCfg.Timezone, "timezone", runCfg.Timezone, "IANA timezone for the display")
	runCmd.Flags().DurationVar(&runCfg.QueryTimeout, "timeout", runCfg.QueryTimeout, "bounded wait for a time source response")
	runCmd.Flags().BoolVar(&runWarm, "warm", false, "treat the first wake as a scheduled timer wake and trust the persisted record")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the clock: wake every minute, query or extrapolate, power down",
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()

		cfg := runCfg
		if runCfgPath != "" {
			log.Warningf("using config from %s, flag values are ignored", runCfgPath)
			var err error
			cfg, err = cycle.ReadConfig(runCfgPath)
			if err != nil {
				log.Fatalf("reading config: %v", err)
			}
		}
		if err := cfg.EvalAndValidate(); err != nil {
			log.Fatal(err)
		}

		ctrl, err := cycle.New(
			cfg,
			&clockstate.FileStore{Path: cfg.StateFile},
			&ntp.Client{Server: cfg.Server, Timeout: cfg.QueryTimeout},
			&display.Console{},
			cycle.NewStats(),
		)
		if err != nil {
			log.Fatal(err)
		}

		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		cause := cycle.WakeCauseColdStart
		if runWarm {
			cause = cycle.WakeCauseTimer
		}
		if err := cycle.Run(ctx, ctrl, cycle.TimerPower{}, cause); err != nil && !errors.Is(err, context.Canceled) {
			log.Fatal(err)
		}
	},
}
