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
	"time"
)

// Event is the record published for every finished test case. Undefined
// ratios are omitted so the event always encodes as JSON.
type Event struct {
	RunID    string    `json:"run_id"`
	Index    int       `json:"index"`
	Total    int       `json:"total"`
	Attacker string    `json:"attacker"`
	Victim   string    `json:"victim"`
	Outcome  string    `json:"outcome"`
	Error    string    `json:"error,omitempty"`
	Time     time.Time `json:"time"`

	BPSBaseline    *float64 `json:"bps_baseline,omitempty"`
	PPSBaseline    *float64 `json:"pps_baseline,omitempty"`
	BPSUnderAttack *float64 `json:"bps_under_attack,omitempty"`
	PPSUnderAttack *float64 `json:"pps_under_attack,omitempty"`
	BPSRatio       *float64 `json:"bps_ratio,omitempty"`
	PPSRatio       *float64 `json:"pps_ratio,omitempty"`
	VictimLost     bool     `json:"victim_lost,omitempty"`
}

// NewEvent builds the event for a finished case.
func NewEvent(runID string, index, total int, report CaseReport, at time.Time) Event {
	ev := Event{
		RunID:    runID,
		Index:    index,
		Total:    total,
		Attacker: report.Case.AttackerName(),
		Victim:   report.Case.VictimName(),
		Outcome:  report.Outcome.String(),
		Time:     at.UTC(),
	}
	if report.Err != nil {
		ev.Error = report.Err.Error()
	}
	if r := report.Result; r != nil {
		ev.BPSBaseline = finite(r.BPSBaseline)
		ev.PPSBaseline = finite(r.PPSBaseline)
		ev.BPSUnderAttack = finite(r.BPSUnderAttack)
		ev.PPSUnderAttack = finite(r.PPSUnderAttack)
		ev.BPSRatio = finite(r.BPSRatio)
		ev.PPSRatio = finite(r.PPSRatio)
		ev.VictimLost = r.VictimLost
	}
	return ev
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
