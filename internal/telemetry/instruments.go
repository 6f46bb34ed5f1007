// SPDX-FileCopyrightText: Copyright (c) 2026 NVIDIA CORPORATION. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Attribute keys attached to recorded measurements.
const (
	AttrOutcome   = "outcome"
	AttrRole      = "role"
	AttrPhase     = "phase"
	AttrMetric    = "metric"
	AttrOperation = "operation"
	AttrRuntime   = "runtime"
)

// Instruments holds pre-created, typed OTEL metric instrument handles for the
// isolation test driver. All fields are safe for concurrent use.
type Instruments struct {
	// Batch accounting
	TestCaseTotal        metric.Int64Counter
	TestCasePassedTotal  metric.Int64Counter
	TestCaseSkippedTotal metric.Int64Counter

	// Readiness prober
	ReadinessPollAttempts metric.Float64Histogram
	ReadinessTimeoutTotal metric.Int64Counter

	// Victim measurements
	VictimBitrateGbps    metric.Float64Histogram
	VictimPacketrateMpps metric.Float64Histogram
	DegradationRatio     metric.Float64Histogram

	// Remote executor
	RemoteCommandDuration   metric.Float64Histogram
	RemoteCommandErrorTotal metric.Int64Counter
}

// NewInstruments creates all instrument handles from the given meter.
func NewInstruments(meter metric.Meter) (*Instruments, error) {
	inst := &Instruments{}
	var err error

	inst.TestCaseTotal, err = meter.Int64Counter(
		"test_case_total",
		metric.WithDescription("Test cases that reached a terminal state"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create instrument test_case_total: %w", err)
	}

	inst.TestCasePassedTotal, err = meter.Int64Counter(
		"test_case_passed_total",
		metric.WithDescription("Test cases whose victim kept its throughput under attack"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create instrument test_case_passed_total: %w", err)
	}

	inst.TestCaseSkippedTotal, err = meter.Int64Counter(
		"test_case_skipped_total",
		metric.WithDescription("Test cases skipped before scoring"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create instrument test_case_skipped_total: %w", err)
	}

	inst.ReadinessPollAttempts, err = meter.Float64Histogram(
		"readiness_poll_attempts",
		metric.WithDescription("Poll attempts needed for a workload to reach its connection target"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create instrument readiness_poll_attempts: %w", err)
	}

	inst.ReadinessTimeoutTotal, err = meter.Int64Counter(
		"readiness_timeout_total",
		metric.WithDescription("Workloads that never reached their connection target"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create instrument readiness_timeout_total: %w", err)
	}

	inst.VictimBitrateGbps, err = meter.Float64Histogram(
		"victim_bitrate_gbps",
		metric.WithDescription("Victim receive bit rate per measurement phase"),
		metric.WithUnit("Gbit/s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create instrument victim_bitrate_gbps: %w", err)
	}

	inst.VictimPacketrateMpps, err = meter.Float64Histogram(
		"victim_packetrate_mpps",
		metric.WithDescription("Victim receive packet rate per measurement phase"),
		metric.WithUnit("Mpkt/s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create instrument victim_packetrate_mpps: %w", err)
	}

	inst.DegradationRatio, err = meter.Float64Histogram(
		"degradation_ratio",
		metric.WithDescription("Under-attack to baseline throughput ratio"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create instrument degradation_ratio: %w", err)
	}

	inst.RemoteCommandDuration, err = meter.Float64Histogram(
		"remote_command_duration_seconds",
		metric.WithDescription("Duration of remote command round trips"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create instrument remote_command_duration_seconds: %w", err)
	}

	inst.RemoteCommandErrorTotal, err = meter.Int64Counter(
		"remote_command_error_total",
		metric.WithDescription("Remote commands that failed to run or exited non-zero"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create instrument remote_command_error_total: %w", err)
	}

	return inst, nil
}

// NewNoopInstruments returns an Instruments backed by OTEL's built-in no-op
// provider. Use when metrics are disabled or InitOTEL fails.
func NewNoopInstruments() *Instruments {
	inst, _ := NewInstruments(noop.NewMeterProvider().Meter("noop"))
	return inst
}

// OrNoop returns inst, or no-op instruments when inst is nil.
func OrNoop(inst *Instruments) *Instruments {
	if inst == nil {
		return NewNoopInstruments()
	}
	return inst
}

// With is shorthand for a single-attribute measurement option.
func With(key, value string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String(key, value))
}
