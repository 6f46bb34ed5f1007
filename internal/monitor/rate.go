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

// Package monitor measures the RDMA traffic rate of a NIC from its cumulative
// hardware counters. The agent half runs on the test host; the client half
// drives it over the management network.
package monitor

import (
	"errors"
	"fmt"
)

var (
	// ErrCounterReset is returned when a counter went backwards between two
	// samples.
	ErrCounterReset = errors.New("counter went backwards")
	// ErrInvalidWindow is returned when the second sample is not later than
	// the first.
	ErrInvalidWindow = errors.New("invalid sampling window")
	// ErrMalformedOutput is returned for counter or agent output that cannot
	// be parsed.
	ErrMalformedOutput = errors.New("malformed monitor output")
	// ErrDeviceDiscovery is returned when the network interface of an RDMA
	// device cannot be found.
	ErrDeviceDiscovery = errors.New("rdma device discovery failed")
)

// Sample is one reading of the cumulative traffic counters.
type Sample struct {
	TimestampNanos int64
	Bytes          int64
	Packets        int64
}

// Rate is the traffic rate between two samples.
type Rate struct {
	// BitRate is in Gbit/s.
	BitRate float64
	// PacketRate is in Mpkt/s.
	PacketRate float64
}

// ComputeRate derives the rate between two samples. Bits per nanosecond is
// Gbit/s; packets per nanosecond times 1000 is Mpkt/s.
func ComputeRate(first, second Sample) (Rate, error) {
	dt := second.TimestampNanos - first.TimestampNanos
	if dt <= 0 {
		return Rate{}, fmt.Errorf("%w: %dns", ErrInvalidWindow, dt)
	}
	dBytes := second.Bytes - first.Bytes
	dPackets := second.Packets - first.Packets
	if dBytes < 0 || dPackets < 0 {
		return Rate{}, fmt.Errorf("%w: bytes %+d, packets %+d", ErrCounterReset, dBytes, dPackets)
	}
	return Rate{
		BitRate:    float64(dBytes) * 8 / float64(dt),
		PacketRate: float64(dPackets) * 1000 / float64(dt),
	}, nil
}
