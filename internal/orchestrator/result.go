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

package orchestrator

import (
	"math"
	"path/filepath"

	"github.com/host-bench/rdma-bench/internal/monitor"
)

// Outcome is the terminal state of a test case.
type Outcome int

const (
	OutcomeSkipped Outcome = iota
	OutcomeFailure
	OutcomeSuccess
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	default:
		return "skipped"
	}
}

// TestCase pairs one attacker script with one victim script.
type TestCase struct {
	Attacker string
	Victim   string
}

// AttackerName is the attacker script's file name.
func (tc TestCase) AttackerName() string {
	return filepath.Base(tc.Attacker)
}

// VictimName is the victim script's file name.
func (tc TestCase) VictimName() string {
	return filepath.Base(tc.Victim)
}

// TestResult holds the victim's throughput with and without the attacker.
// Rates are in Gbit/s and Mpkt/s. A ratio is NaN when its baseline is not
// positive.
type TestResult struct {
	BPSBaseline    float64
	PPSBaseline    float64
	BPSUnderAttack float64
	PPSUnderAttack float64
	BPSRatio       float64
	PPSRatio       float64
	Passed         bool
	// VictimLost is set when the victim no longer held its connections
	// after the attack was measured.
	VictimLost bool
}

// Score compares the under-attack rates to the baseline. The test passes
// when both ratios are at least alpha; an undefined ratio never passes.
func Score(baseline, underAttack monitor.Rate, alpha float64) TestResult {
	r := TestResult{
		BPSBaseline:    baseline.BitRate,
		PPSBaseline:    baseline.PacketRate,
		BPSUnderAttack: underAttack.BitRate,
		PPSUnderAttack: underAttack.PacketRate,
		BPSRatio:       ratio(underAttack.BitRate, baseline.BitRate),
		PPSRatio:       ratio(underAttack.PacketRate, baseline.PacketRate),
	}
	// NaN compares false, so an undefined ratio fails.
	r.Passed = r.BPSRatio >= alpha && r.PPSRatio >= alpha
	return r
}

func ratio(value, baseline float64) float64 {
	if baseline <= 0 {
		return math.NaN()
	}
	return value / baseline
}

// BPSDegradation is the bit-rate loss under attack, in percent.
func (r TestResult) BPSDegradation() float64 {
	return 100 * (1 - r.BPSRatio)
}

// PPSDegradation is the packet-rate loss under attack, in percent.
func (r TestResult) PPSDegradation() float64 {
	return 100 * (1 - r.PPSRatio)
}
