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
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"
)

// Summary is the outcome of a batch.
type Summary struct {
	Total   int
	Tested  int
	Passed  int
	Skipped int
	Reports []CaseReport
}

// Cases returns the cross product of attackers and victims in run order:
// both sets sorted, attacker-major.
func Cases(attackers, victims []string) []TestCase {
	a := append([]string(nil), attackers...)
	v := append([]string(nil), victims...)
	sort.Strings(a)
	sort.Strings(v)

	cases := make([]TestCase, 0, len(a)*len(v))
	for _, attacker := range a {
		for _, victim := range v {
			cases = append(cases, TestCase{Attacker: attacker, Victim: victim})
		}
	}
	return cases
}

// RunBatch runs every attacker against every victim, one case at a time. A
// global terminate sweep runs first so leftovers from an interrupted run do
// not skew the first case. The batch stops early only when ctx is cancelled.
func (o *Orchestrator) RunBatch(ctx context.Context, attackers, victims []string) Summary {
	cases := Cases(attackers, victims)
	summary := Summary{Total: len(cases)}

	fmt.Fprintln(o.opts.Out, "Test start!!!!!")
	fmt.Fprintln(o.opts.Out, "Clean existing traffic (perftest/RdmaEngine/RdmaCtrlTest) on the hosts.")
	fmt.Fprintf(o.opts.Out, "There are %d attacker(s) and %d victim(s)\n", len(attackers), len(victims))
	o.logger.Info("starting test batch",
		slog.Int("attackers", len(attackers)),
		slog.Int("victims", len(victims)),
		slog.Int("cases", len(cases)))

	o.cleanup(ctx, o.logger)

	for i, tc := range cases {
		if err := ctx.Err(); err != nil {
			o.logger.Warn("test batch interrupted",
				slog.Int("finished", i), slog.String("error", err.Error()))
			break
		}

		report := o.RunCase(ctx, tc)
		summary.Reports = append(summary.Reports, report)
		if report.Outcome != OutcomeSkipped {
			fmt.Fprintf(o.opts.Out, "Current test: %d/%d tests passed. (total: %d)\n",
				o.successCount, o.testCount, len(cases))
		}

		if err := o.opts.Progress.ReportProgress(i+1, len(cases)); err != nil {
			o.logger.Warn("failed to report progress", slog.String("error", err.Error()))
		}
		o.publish(ctx, NewEvent(o.opts.RunID, i+1, len(cases), report, time.Now()))
	}

	summary.Tested = o.testCount
	summary.Passed = o.successCount
	summary.Skipped = o.skipCount
	fmt.Fprintf(o.opts.Out, "All tests are done. %d/%d tests passed.\n", o.successCount, o.testCount)
	o.logger.Info("test batch finished",
		slog.Int("passed", summary.Passed),
		slog.Int("tested", summary.Tested),
		slog.Int("skipped", summary.Skipped))
	return summary
}

func (o *Orchestrator) publish(ctx context.Context, ev Event) {
	if o.opts.Publisher == nil {
		return
	}
	if err := o.opts.Publisher.Publish(ctx, ev); err != nil {
		o.logger.Warn("failed to publish test result", slog.String("error", err.Error()))
	}
}
