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

package display

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

// Console renders the clock face to a terminal, standing in for the
// e-paper panel
type Console struct {
	// Out defaults to stdout
	Out io.Writer
}

func (c *Console) writer() io.Writer {
	if c.Out != nil {
		return c.Out
	}
	return os.Stdout
}

// Init clears the panel. Called once, on cold reset only.
func (c *Console) Init() error {
	_, err := fmt.Fprintln(c.writer(), color.HiBlackString("--- display initialized ---"))
	return err
}

// Render draws one clock face. Assumed complete when it returns, the
// device powers down right after.
func (c *Console) Render(f Fields) error {
	w := c.writer()
	if _, err := fmt.Fprintln(w, color.GreenString(f.TimeText)); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, f.DateText); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w, color.HiBlackString(f.DiagText))
	return err
}
