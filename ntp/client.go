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

package ntp

import (
	"fmt"
	"net"
	"time"

	log "github.com/sirupsen/logrus"
)

// DefaultTimeout bounds the whole exchange. There are no retries: on a
// battery-powered device a hung radio is worse than a missed sample.
const DefaultTimeout = 1500 * time.Millisecond

// DefaultPort is the NTP UDP port
const DefaultPort = "123"

// Client performs one request/response exchange per Query call
type Client struct {
	// Server is the hostname or address of the time source
	Server string
	// Timeout bounds connection setup and the response wait together.
	// Zero means DefaultTimeout.
	Timeout time.Duration
}

// Query sends a single request and returns the server transmit timestamp.
// The result carries whole-second resolution, which is all the minute clock
// needs; sub-second server fractions only seed the first wake alignment.
func (c *Client) Query() (time.Time, error) {
	timeout := c.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	deadline := time.Now().Add(timeout)

	addr := c.Server
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, DefaultPort)
	}
	conn, err := net.DialTimeout("udp", addr, timeout)
	if err != nil {
		return time.Time{}, fmt.Errorf("connecting to %q: %w", c.Server, err)
	}
	defer conn.Close()
	if err := conn.SetDeadline(deadline); err != nil {
		return time.Time{}, err
	}
	log.Debugf("connected to %s", conn.RemoteAddr())

	req, err := NewRequest().Bytes()
	if err != nil {
		return time.Time{}, err
	}
	if _, err := conn.Write(req); err != nil {
		return time.Time{}, fmt.Errorf("sending request: %w", err)
	}

	buf := make([]byte, PacketSizeBytes)
	n, err := conn.Read(buf)
	if err != nil {
		return time.Time{}, fmt.Errorf("no response from %q: %w", c.Server, err)
	}
	if n < PacketSizeBytes {
		return time.Time{}, fmt.Errorf("short response from %q: %d bytes", c.Server, n)
	}
	response, err := BytesToPacket(buf)
	if err != nil {
		return time.Time{}, err
	}
	if response.TxTimeSec == 0 {
		return time.Time{}, fmt.Errorf("response from %q carries no transmit timestamp", c.Server)
	}
	return Unix(response.TxTimeSec, response.TxTimeFrac), nil
}
