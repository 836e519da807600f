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
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/lowpower/clock/ntp"
)

var (
	queryServer  string
	queryTimeout time.Duration
)

func init() {
	RootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringVarP(&queryServer, "server", "s", "uk.pool.ntp.org", "network time source hostname")
	queryCmd.Flags().DurationVar(&queryTimeout, "timeout", ntp.DefaultTimeout, "bounded wait for a response")
}

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "One-shot time source query, for debugging",
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()

		c := ntp.Client{Server: queryServer, Timeout: queryTimeout}
		before := time.Now()
		t, err := c.Query()
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("server time: %s\n", t.UTC().Format(time.RFC3339))
		fmt.Printf("local offset: %s\n", t.Sub(before).Round(time.Millisecond))
	},
}
