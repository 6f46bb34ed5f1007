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

// Package config loads the run configuration of an isolation test batch and
// resolves which workload scripts take part in it.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"sigs.k8s.io/yaml"
)

var (
	// ErrInvalidConfig is returned for a run configuration that cannot drive
	// a batch.
	ErrInvalidConfig = errors.New("invalid run configuration")
	// ErrNoWorkloads is returned when a selection resolves to no victim or
	// no attacker.
	ErrNoWorkloads = errors.New("no workloads selected")
)

// Management and data IP lists are ordered [sender, receiver].
const (
	SenderIdx   = 0
	ReceiverIdx = 1
)

const (
	RoleVictim   = "victim"
	RoleAttacker = "attacker"
)

const (
	DefaultMonitorKey     = "rx_vport_rdma_unicast"
	DefaultMonitorSeconds = 2.0
	DefaultAgentPath      = "/tmp/rdma-monitor"
	DefaultSSHPort        = 22
)

// RunConfig is the on-disk run configuration. Both JSON and YAML are
// accepted.
type RunConfig struct {
	VictimUserName   string   `json:"VictimUserName"`
	VictimMgmtIPList []string `json:"VictimMgmtIpList"`
	VictimDataIPList []string `json:"VictimDataIpList"`
	VictimDevice     string   `json:"VictimDevice"`
	VictimGID        int      `json:"VictimGid"`
	VictimPort       int      `json:"VictimPort"`
	VictimToS        int      `json:"VictimTos"`

	AttackerUserName   string   `json:"AttackerUserName"`
	AttackerMgmtIPList []string `json:"AttackerMgmtIpList"`
	AttackerDataIPList []string `json:"AttackerDataIpList"`
	AttackerDevice     string   `json:"AttackerDevice"`
	AttackerGID        int      `json:"AttackerGid"`
	AttackerPort       int      `json:"AttackerPort"`
	AttackerToS        int      `json:"AttackerTos"`

	Alpha      float64 `json:"Alpha"`
	Directory  string  `json:"Directory"`
	MonitorKey string  `json:"MonitorKey,omitempty"`
	Verbose    bool    `json:"Verbose,omitempty"`

	MonitorSeconds float64 `json:"MonitorSeconds,omitempty"`
	AgentPath      string  `json:"AgentPath,omitempty"`
	SSHKeyFile     string  `json:"SSHKeyFile,omitempty"`
	KnownHostsFile string  `json:"KnownHostsFile,omitempty"`
	SSHPort        int     `json:"SSHPort,omitempty"`
	// SSHBandwidthLimit caps each management connection, in bytes per second.
	SSHBandwidthLimit int64 `json:"SSHBandwidthLimit,omitempty"`
}

// HostRole is the identity of one side of a test: a sender and a receiver
// host pair plus the RDMA parameters their workloads use.
type HostRole struct {
	Name     string
	UserName string
	MgmtIPs  []string
	DataIPs  []string
	Device   string
	GID      int
	Port     int
	ToS      int
}

// Sender returns the management address of the sending host.
func (r HostRole) Sender() string {
	return r.MgmtIPs[SenderIdx]
}

// Receiver returns the management address of the receiving host.
func (r HostRole) Receiver() string {
	return r.MgmtIPs[ReceiverIdx]
}

// Load reads, defaults and validates the run configuration at path.
func Load(path string) (*RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return Parse(data)
}

// Parse decodes a JSON or YAML run configuration.
func Parse(data []byte) (*RunConfig, error) {
	var c RunConfig
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *RunConfig) applyDefaults() {
	if c.MonitorKey == "" {
		c.MonitorKey = DefaultMonitorKey
	}
	if c.MonitorSeconds == 0 {
		c.MonitorSeconds = DefaultMonitorSeconds
	}
	if c.AgentPath == "" {
		c.AgentPath = DefaultAgentPath
	}
	if c.SSHPort == 0 {
		c.SSHPort = DefaultSSHPort
	}
}

// Validate reports every problem with the configuration at once.
func (c *RunConfig) Validate() error {
	var problems []string
	for _, r := range []HostRole{c.Victim(), c.Attacker()} {
		if r.UserName == "" {
			problems = append(problems, r.Name+" user name is empty")
		}
		if len(r.MgmtIPs) != 2 {
			problems = append(problems, fmt.Sprintf("%s needs 2 management IPs, got %d", r.Name, len(r.MgmtIPs)))
		}
		if len(r.DataIPs) != 2 {
			problems = append(problems, fmt.Sprintf("%s needs 2 data IPs, got %d", r.Name, len(r.DataIPs)))
		}
		for _, ip := range r.MgmtIPs {
			if strings.TrimSpace(ip) == "" {
				problems = append(problems, r.Name+" has an empty management IP")
			}
		}
		if r.Device == "" {
			problems = append(problems, r.Name+" device is empty")
		}
	}
	if c.Alpha <= 0 || c.Alpha > 1 {
		problems = append(problems, fmt.Sprintf("Alpha must be in (0, 1], got %v", c.Alpha))
	}
	if c.Directory == "" {
		problems = append(problems, "Directory is empty")
	}
	if c.MonitorSeconds < 0 {
		problems = append(problems, "MonitorSeconds must not be negative")
	}
	if c.SSHPort < 0 || c.SSHPort > 65535 {
		problems = append(problems, fmt.Sprintf("SSHPort %d out of range", c.SSHPort))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// Victim returns the victim side of the configuration.
func (c *RunConfig) Victim() HostRole {
	return HostRole{
		Name:     RoleVictim,
		UserName: c.VictimUserName,
		MgmtIPs:  c.VictimMgmtIPList,
		DataIPs:  c.VictimDataIPList,
		Device:   c.VictimDevice,
		GID:      c.VictimGID,
		Port:     c.VictimPort,
		ToS:      c.VictimToS,
	}
}

// Attacker returns the attacker side of the configuration.
func (c *RunConfig) Attacker() HostRole {
	return HostRole{
		Name:     RoleAttacker,
		UserName: c.AttackerUserName,
		MgmtIPs:  c.AttackerMgmtIPList,
		DataIPs:  c.AttackerDataIPList,
		Device:   c.AttackerDevice,
		GID:      c.AttackerGID,
		Port:     c.AttackerPort,
		ToS:      c.AttackerToS,
	}
}

// MonitorWindow is the counter sampling window.
func (c *RunConfig) MonitorWindow() time.Duration {
	return time.Duration(c.MonitorSeconds * float64(time.Second))
}

// Summary renders the configuration header printed at the start of a run.
func (c *RunConfig) Summary() string {
	var b strings.Builder
	for _, r := range []HostRole{c.Victim(), c.Attacker()} {
		fmt.Fprintf(&b, "%s sender: %s@%s (data %s)\n", r.Name, r.UserName, r.Sender(), r.DataIPs[SenderIdx])
		fmt.Fprintf(&b, "%s receiver: %s@%s (data %s)\n", r.Name, r.UserName, r.Receiver(), r.DataIPs[ReceiverIdx])
	}
	fmt.Fprintf(&b, "Alpha: %v\n", c.Alpha)
	fmt.Fprintf(&b, "Directory: %s\n", c.Directory)
	fmt.Fprintf(&b, "Verbose: %v\n", c.Verbose)
	return b.String()
}
