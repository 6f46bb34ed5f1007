/*
SPDX-FileCopyrightText: Copyright (c) 2026 NVIDIA CORPORATION & AFFILIATES. All rights reserved.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.

SPDX-License-Identifier: Apache-2.0
*/

package monitor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/host-bench/rdma-bench/internal/config"
	"github.com/host-bench/rdma-bench/internal/remote"
	"github.com/host-bench/rdma-bench/internal/workload"
)

// DeviceMapCommand lists RDMA devices and their network interfaces.
const DeviceMapCommand = "ibdev2netdev"

// Runner runs a command on a remote host. *remote.Executor satisfies it.
type Runner interface {
	Run(ctx context.Context, host remote.Host, command string) (string, error)
}

// Client measures a role's traffic by invoking the agent on its hosts.
type Client struct {
	runner    Runner
	cache     *DeviceCache
	agentPath string
	key       string
	logger    *slog.Logger
}

// NewClient returns a Client running the agent at agentPath and reading the
// counters named by key.
func NewClient(runner Runner, cache *DeviceCache, agentPath, key string, logger *slog.Logger) *Client {
	return &Client{
		runner:    runner,
		cache:     cache,
		agentPath: agentPath,
		key:       key,
		logger:    logger,
	}
}

// Endpoint returns the host whose NIC carries the workload's traffic: the
// receiver, or the sender for read-dominated workloads.
func Endpoint(role config.HostRole, workloadPath string) remote.Host {
	addr := role.Receiver()
	if workload.IsReadDominated(workloadPath) {
		addr = role.Sender()
	}
	return remote.Host{User: role.UserName, Addr: addr}
}

// Measure returns the traffic rate of role's workload over window.
func (c *Client) Measure(ctx context.Context, role config.HostRole, workloadPath string, window time.Duration) (Rate, error) {
	host := Endpoint(role, workloadPath)
	iface, err := c.Interface(ctx, role.Name, host, role.Device)
	if err != nil {
		return Rate{}, err
	}

	command := fmt.Sprintf("%s monitor --interface %s --count %s --key %s",
		c.agentPath,
		remote.ShellQuote(iface),
		strconv.FormatFloat(window.Seconds(), 'f', -1, 64),
		remote.ShellQuote(c.key))
	out, err := c.runner.Run(ctx, host, command)
	if err != nil {
		var exitErr *remote.ExitError
		if errors.As(err, &exitErr) {
			switch exitErr.Status {
			case ExitCounterReset:
				return Rate{}, fmt.Errorf("%w on %s: %w", ErrCounterReset, host, err)
			case ExitInvalidWindow:
				return Rate{}, fmt.Errorf("%w on %s: %w", ErrInvalidWindow, host, err)
			}
		}
		return Rate{}, fmt.Errorf("monitor on %s: %w", host, err)
	}
	return ParseAgentOutput(out, c.key)
}

// Interface returns the network interface backing device on host,
// discovering it on first use.
func (c *Client) Interface(ctx context.Context, role string, host remote.Host, device string) (string, error) {
	key := DeviceKey{Role: role, Host: host.Addr, Device: device}
	if iface, ok := c.cache.Get(key); ok {
		return iface, nil
	}

	out, err := c.runner.Run(ctx, host, DeviceMapCommand)
	if err != nil {
		return "", fmt.Errorf("%w: %s on %s: %w", ErrDeviceDiscovery, DeviceMapCommand, host, err)
	}
	iface, err := ParseDeviceMap(out, device)
	if err != nil {
		return "", fmt.Errorf("%w (host %s)", err, host)
	}
	c.cache.Set(key, iface)
	c.logger.Info("discovered rdma interface",
		slog.String("role", role),
		slog.String("host", host.String()),
		slog.String("device", device),
		slog.String("interface", iface))
	return iface, nil
}

// ParseDeviceMap finds device in ibdev2netdev output such as
//
//	mlx5_0 port 1 ==> ens1f0np0 (Up)
//
// and returns its interface name.
func ParseDeviceMap(output, device string) (string, error) {
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 || fields[0] != device {
			continue
		}
		for i, f := range fields {
			if f == "==>" && i+1 < len(fields) {
				return fields[i+1], nil
			}
		}
		return fields[len(fields)-2], nil
	}
	return "", fmt.Errorf("%w: device %s not listed", ErrDeviceDiscovery, device)
}

// ParseAgentOutput parses the two lines written by WriteRate.
func ParseAgentOutput(output, key string) (Rate, error) {
	var (
		rate                Rate
		haveBytes, havePkts bool
	)
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		idx := strings.LastIndex(line, ":")
		if idx < 0 {
			continue
		}
		name, raw := line[:idx], line[idx+1:]
		if name != key+"_bytes" && name != key+"_packets" {
			continue
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
			return Rate{}, fmt.Errorf("%w: %q", ErrMalformedOutput, line)
		}
		if value < 0 {
			return Rate{}, fmt.Errorf("%w: %q", ErrCounterReset, line)
		}
		if name == key+"_bytes" {
			rate.BitRate, haveBytes = value, true
		} else {
			rate.PacketRate, havePkts = value, true
		}
	}
	if !haveBytes || !havePkts {
		return Rate{}, fmt.Errorf("%w: expected %s_bytes and %s_packets in %q",
			ErrMalformedOutput, key, key, strings.TrimSpace(output))
	}
	return rate, nil
}
