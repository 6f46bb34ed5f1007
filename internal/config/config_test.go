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

package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleJSON = `{
  "VictimUserName": "alice",
  "VictimMgmtIpList": ["10.0.0.1", "10.0.0.2"],
  "VictimDataIpList": ["192.168.0.1", "192.168.0.2"],
  "VictimDevice": "mlx5_0",
  "VictimGid": 3,
  "VictimPort": 1,
  "VictimTos": 0,
  "AttackerUserName": "bob",
  "AttackerMgmtIpList": ["10.0.0.3", "10.0.0.4"],
  "AttackerDataIpList": ["192.168.0.3", "192.168.0.4"],
  "AttackerDevice": "mlx5_1",
  "AttackerGid": 3,
  "AttackerPort": 1,
  "AttackerTos": 0,
  "Alpha": 0.9,
  "Directory": "/tmp/workloads",
  "Verbose": false
}`

func TestParseJSON(t *testing.T) {
	c, err := Parse([]byte(sampleJSON))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	victim := c.Victim()
	if victim.Sender() != "10.0.0.1" || victim.Receiver() != "10.0.0.2" {
		t.Errorf("victim sender/receiver = %s/%s", victim.Sender(), victim.Receiver())
	}
	attacker := c.Attacker()
	if attacker.Name != RoleAttacker || attacker.UserName != "bob" || attacker.Device != "mlx5_1" {
		t.Errorf("unexpected attacker role: %+v", attacker)
	}

	if c.MonitorKey != DefaultMonitorKey {
		t.Errorf("MonitorKey default = %q", c.MonitorKey)
	}
	if c.MonitorWindow() != 2*time.Second {
		t.Errorf("MonitorWindow default = %v", c.MonitorWindow())
	}
	if c.AgentPath != DefaultAgentPath || c.SSHPort != 22 {
		t.Errorf("AgentPath=%q SSHPort=%d", c.AgentPath, c.SSHPort)
	}
}

func TestParseYAML(t *testing.T) {
	data := `
VictimUserName: alice
VictimMgmtIpList: [h1, h2]
VictimDataIpList: [d1, d2]
VictimDevice: mlx5_0
AttackerUserName: bob
AttackerMgmtIpList: [h3, h4]
AttackerDataIpList: [d3, d4]
AttackerDevice: mlx5_0
Alpha: 1
Directory: ./scripts
MonitorKey: rx_prio0
MonitorSeconds: 0.5
`
	c, err := Parse([]byte(data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.MonitorKey != "rx_prio0" || c.MonitorWindow() != 500*time.Millisecond {
		t.Errorf("MonitorKey=%q window=%v", c.MonitorKey, c.MonitorWindow())
	}
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(string) string
		problem string
	}{
		{"alpha zero", func(s string) string { return strings.Replace(s, `"Alpha": 0.9`, `"Alpha": 0`, 1) }, "Alpha"},
		{"alpha above one", func(s string) string { return strings.Replace(s, `"Alpha": 0.9`, `"Alpha": 1.5`, 1) }, "Alpha"},
		{"one mgmt ip", func(s string) string {
			return strings.Replace(s, `["10.0.0.1", "10.0.0.2"]`, `["10.0.0.1"]`, 1)
		}, "victim needs 2 management IPs"},
		{"no user", func(s string) string { return strings.Replace(s, `"bob"`, `""`, 1) }, "attacker user name"},
		{"no directory", func(s string) string { return strings.Replace(s, `"/tmp/workloads"`, `""`, 1) }, "Directory"},
		{"not json", func(string) string { return "{" }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.mutate(sampleJSON)))
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.problem) {
				t.Errorf("error %q does not mention %q", err, tt.problem)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(sampleJSON), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if _, err := Load(path); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if _, err := Load(path + ".missing"); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig for missing file, got %v", err)
	}
}

func TestSummary(t *testing.T) {
	c, err := Parse([]byte(sampleJSON))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	summary := c.Summary()
	for _, want := range []string{
		"victim sender: alice@10.0.0.1",
		"attacker receiver: bob@10.0.0.4",
		"Alpha: 0.9",
		"Directory: /tmp/workloads",
	} {
		if !strings.Contains(summary, want) {
			t.Errorf("summary missing %q:\n%s", want, summary)
		}
	}
}
