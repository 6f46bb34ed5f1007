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
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// StatsReader returns the raw NIC statistics of an interface.
type StatsReader interface {
	ReadStats(ctx context.Context, iface string) (string, error)
}

// EthtoolReader reads statistics with "ethtool -S".
type EthtoolReader struct{}

func (EthtoolReader) ReadStats(ctx context.Context, iface string) (string, error) {
	out, err := exec.CommandContext(ctx, "ethtool", "-S", iface).Output()
	if err != nil {
		return "", fmt.Errorf("ethtool -S %s: %w", iface, err)
	}
	return string(out), nil
}

// ParseStats parses "ethtool -S" output of the form
//
//	NIC statistics:
//	     rx_vport_rdma_unicast_packets: 1234
//
// into a counter map. Lines that carry no numeric value are skipped.
func ParseStats(output string) map[string]int64 {
	stats := make(map[string]int64)
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		name, value, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil {
			continue
		}
		stats[strings.TrimSpace(name)] = n
	}
	return stats
}

// SampleFromStats extracts the <key>_bytes and <key>_packets counters.
func SampleFromStats(stats map[string]int64, key string, timestampNanos int64) (Sample, error) {
	bytes, ok := stats[key+"_bytes"]
	if !ok {
		return Sample{}, fmt.Errorf("%w: counter %s_bytes not found", ErrMalformedOutput, key)
	}
	packets, ok := stats[key+"_packets"]
	if !ok {
		return Sample{}, fmt.Errorf("%w: counter %s_packets not found", ErrMalformedOutput, key)
	}
	return Sample{TimestampNanos: timestampNanos, Bytes: bytes, Packets: packets}, nil
}
