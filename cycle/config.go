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
	"os"
	"time"

	yaml "gopkg.in/yaml.v2"

	"github.com/lowpower/clock/display"
	"github.com/lowpower/clock/ntp"
)

// Config represents configuration we expect to read from file
type Config struct {
	Server       string        // network time source hostname
	StateFile    string        // where the persisted clock record lives
	Timezone     string        // IANA name of the fixed local-time rule for the display
	QueryTimeout time.Duration // bounded wait for a time source response
}

// DefaultConfig returns config with defaults matching the original device setup
func DefaultConfig() *Config {
	return &Config{
		Server:       "uk.pool.ntp.org",
		StateFile:    "/var/lib/lpclock/state",
		Timezone:     display.DefaultTimezone,
		QueryTimeout: ntp.DefaultTimeout,
	}
}

// EvalAndValidate makes sure config is valid
func (c *Config) EvalAndValidate() error {
	if c.Server == "" {
		return fmt.Errorf("bad config: 'server' must be specified")
	}
	if c.StateFile == "" {
		return fmt.Errorf("bad config: 'statefile' must be specified")
	}
	if c.QueryTimeout <= 0 {
		return fmt.Errorf("bad config: 'querytimeout' must be >0")
	}
	if c.QueryTimeout > 5*time.Second {
		return fmt.Errorf("bad config: 'querytimeout' over 5s defeats the power budget")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("bad config: 'timezone': %w", err)
	}
	return nil
}

// ReadConfig reads config and unmarshals it from yaml into Config
func ReadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := Config{}
	err = yaml.UnmarshalStrict(data, &c)
	return &c, err
}
