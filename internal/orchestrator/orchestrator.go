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

// Package orchestrator runs traffic isolation test cases: it starts a victim
// workload, measures it, starts an attacker next to it, measures the victim
// again and scores the degradation.
package orchestrator

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"time"

	"github.com/host-bench/rdma-bench/internal/config"
	"github.com/host-bench/rdma-bench/internal/monitor"
	"github.com/host-bench/rdma-bench/internal/remote"
	"github.com/host-bench/rdma-bench/internal/telemetry"
	"github.com/host-bench/rdma-bench/internal/workload"
	"github.com/host-bench/rdma-bench/utils"
	"github.com/host-bench/rdma-bench/utils/logging"
	"github.com/host-bench/rdma-bench/utils/progress_check"
)

// Executor starts and stops workloads on remote hosts.
type Executor interface {
	Launch(ctx context.Context, host remote.Host, command string) error
	TerminateAll(ctx context.Context, hosts []remote.Host) error
}

// Prober waits for a workload to hold its connection target.
type Prober interface {
	WaitUntilReady(ctx context.Context, host remote.Host, runtimeName string, target int) (int, error)
}

// Meter measures the traffic rate of a role's workload.
type Meter interface {
	Measure(ctx context.Context, role config.HostRole, workloadPath string, window time.Duration) (monitor.Rate, error)
}

// Publisher receives an Event for every finished test case.
type Publisher interface {
	Publish(ctx context.Context, v any) error
}

// Describer parses a workload script.
type Describer func(path string) (workload.Descriptor, error)

// Options configures an Orchestrator.
type Options struct {
	Victim   config.HostRole
	Attacker config.HostRole
	Alpha    float64
	Window   time.Duration

	RunID       string
	Out         io.Writer
	Logger      *slog.Logger
	Instruments *telemetry.Instruments
	Progress    *progress_check.ProgressWriter
	Publisher   Publisher
	Describe    Describer
}

// Orchestrator runs test cases one at a time and keeps the run counters.
type Orchestrator struct {
	executor Executor
	prober   Prober
	meter    Meter
	opts     Options
	logger   *slog.Logger
	inst     *telemetry.Instruments

	testCount    int
	successCount int
	skipCount    int
}

// New creates an Orchestrator.
func New(executor Executor, prober Prober, meter Meter, opts Options) *Orchestrator {
	if opts.Describe == nil {
		opts.Describe = workload.ParseFile
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.RunID != "" {
		logger = logger.With(slog.String(logging.RunAttrKey, opts.RunID))
	}
	return &Orchestrator{
		executor: executor,
		prober:   prober,
		meter:    meter,
		opts:     opts,
		logger:   logger,
		inst:     telemetry.OrNoop(opts.Instruments),
	}
}

// TestCount is the number of scored test cases.
func (o *Orchestrator) TestCount() int { return o.testCount }

// SuccessCount is the number of passed test cases.
func (o *Orchestrator) SuccessCount() int { return o.successCount }

// CaseReport describes how one test case ended.
type CaseReport struct {
	Case    TestCase
	Outcome Outcome
	// Result is set for scored cases only.
	Result *TestResult
	// Err is the reason a case was skipped.
	Err error
}

// Hosts returns the management hosts of both roles, the set every cleanup
// covers.
func (o *Orchestrator) Hosts() []remote.Host {
	return ManagementHosts(o.opts.Victim, o.opts.Attacker)
}

// ManagementHosts lists the management endpoint of every host in roles.
func ManagementHosts(roles ...config.HostRole) []remote.Host {
	var hosts []remote.Host
	for _, role := range roles {
		for _, addr := range role.MgmtIPs {
			hosts = append(hosts, remote.Host{User: role.UserName, Addr: addr})
		}
	}
	return hosts
}

// RunCase drives one test case to a terminal state. It never returns an
// error: failures of any step end the case as skipped and are reported.
func (o *Orchestrator) RunCase(ctx context.Context, tc TestCase) CaseReport {
	logger := o.logger.With(
		slog.String("attacker", tc.AttackerName()),
		slog.String("victim", tc.VictimName()))

	fmt.Fprintf(o.opts.Out, "Test Case #%d\n", o.testCount+1)
	fmt.Fprintf(o.opts.Out, "Attacker: %s\n", tc.AttackerName())
	fmt.Fprintf(o.opts.Out, "Victim:   %s\n", tc.VictimName())

	report := o.runCase(ctx, tc, logger)

	o.inst.TestCaseTotal.Add(ctx, 1, telemetry.With(telemetry.AttrOutcome, report.Outcome.String()))
	switch report.Outcome {
	case OutcomeSkipped:
		o.skipCount++
		o.inst.TestCaseSkippedTotal.Add(ctx, 1)
		fmt.Fprintf(o.opts.Out, "[Error] %v\n", report.Err)
		logger.Error("test case skipped", slog.String("error", report.Err.Error()))
	default:
		o.testCount++
		if report.Outcome == OutcomeSuccess {
			o.successCount++
			o.inst.TestCasePassedTotal.Add(ctx, 1)
		}
		o.writeResult(*report.Result)
		logger.Info("test case finished",
			slog.String("outcome", report.Outcome.String()),
			slog.Float64("bps_ratio", report.Result.BPSRatio),
			slog.Float64("pps_ratio", report.Result.PPSRatio))
	}
	return report
}

func (o *Orchestrator) runCase(ctx context.Context, tc TestCase, logger *slog.Logger) CaseReport {
	report := CaseReport{Case: tc, Outcome: OutcomeSkipped}

	victim, err := o.opts.Describe(tc.Victim)
	if err != nil {
		report.Err = fmt.Errorf("cannot describe victim: %w", err)
		return report
	}
	logger.Debug("victim described",
		slog.String("runtime", victim.Runtime),
		slog.Int("ports", victim.NumPorts()),
		slog.Int("target", victim.Target))

	// Every path past this point has started something remotely.
	defer o.cleanup(ctx, logger)

	o.launch(ctx, o.opts.Victim, victim, logger)
	victimHost := readinessHost(o.opts.Victim)
	if _, err := o.prober.WaitUntilReady(ctx, victimHost, victim.Runtime, victim.Target); err != nil {
		report.Err = fmt.Errorf("victim is not running: %w", err)
		return report
	}

	baseline, err := o.meter.Measure(ctx, o.opts.Victim, tc.Victim, o.opts.Window)
	if err != nil {
		report.Err = fmt.Errorf("cannot measure victim baseline: %w", err)
		return report
	}
	o.recordRate(ctx, "baseline", baseline)
	fmt.Fprintf(o.opts.Out, "Victim performance w/o attacker:\n        %.3f Gbps\n        %.3f Mpps\n",
		baseline.BitRate, baseline.PacketRate)

	attacker, err := o.opts.Describe(tc.Attacker)
	if err != nil {
		report.Err = fmt.Errorf("cannot describe attacker: %w", err)
		return report
	}

	o.launch(ctx, o.opts.Attacker, attacker, logger)
	if _, err := o.prober.WaitUntilReady(ctx, readinessHost(o.opts.Attacker), attacker.Runtime, attacker.Target); err != nil {
		report.Err = fmt.Errorf("attacker is not running: %w", err)
		return report
	}

	underAttack, err := o.meter.Measure(ctx, o.opts.Victim, tc.Victim, o.opts.Window)
	if err != nil {
		report.Err = fmt.Errorf("cannot measure victim under attack: %w", err)
		return report
	}
	o.recordRate(ctx, "attack", underAttack)
	fmt.Fprintf(o.opts.Out, "[Under Attack] Victim performance:\n        %.3f Gbps\n        %.3f Mpps\n",
		underAttack.BitRate, underAttack.PacketRate)

	result := Score(baseline, underAttack, o.opts.Alpha)
	if _, err := o.prober.WaitUntilReady(ctx, victimHost, victim.Runtime, victim.Target); err != nil {
		result.VictimLost = true
		logger.Warn("victim lost connections under attack", slog.String("error", err.Error()))
	}
	o.recordRatio(ctx, "bps", result.BPSRatio)
	o.recordRatio(ctx, "pps", result.PPSRatio)

	report.Result = &result
	report.Outcome = OutcomeFailure
	if result.Passed {
		report.Outcome = OutcomeSuccess
	}
	return report
}

// readinessHost is where a role's connections are counted: its receiver.
// Each role is checked on its own receiver, so an attacker running on hosts
// other than the victim's is still confirmed where it runs.
func readinessHost(role config.HostRole) remote.Host {
	return remote.Host{User: role.UserName, Addr: role.Receiver()}
}

// launch runs a workload's launch plan. Launch failures are logged only; the
// readiness check that follows decides whether the workload came up.
func (o *Orchestrator) launch(ctx context.Context, role config.HostRole, d workload.Descriptor, logger *slog.Logger) {
	for _, step := range d.Plan {
		if step.IsPause() {
			if err := utils.Sleep(ctx, step.Pause); err != nil {
				return
			}
			continue
		}
		host := remote.Host{User: step.User, Addr: step.Host}
		if host.User == "" {
			host.User = role.UserName
		}
		if err := o.executor.Launch(ctx, host, step.Command); err != nil {
			logger.Error("failed to launch workload",
				slog.String("role", role.Name),
				slog.String("host", host.String()),
				slog.String("error", err.Error()))
		}
	}
}

// cleanup terminates every workload on every host of both roles. It runs
// even when ctx is already cancelled.
func (o *Orchestrator) cleanup(ctx context.Context, logger *slog.Logger) {
	ctx = context.WithoutCancel(ctx)
	if err := o.executor.TerminateAll(ctx, o.Hosts()); err != nil {
		logger.Error("cleanup failed", slog.String("error", err.Error()))
	}
}

func (o *Orchestrator) recordRate(ctx context.Context, phase string, rate monitor.Rate) {
	attr := telemetry.With(telemetry.AttrPhase, phase)
	o.inst.VictimBitrateGbps.Record(ctx, rate.BitRate, attr)
	o.inst.VictimPacketrateMpps.Record(ctx, rate.PacketRate, attr)
}

func (o *Orchestrator) recordRatio(ctx context.Context, metricName string, ratio float64) {
	if math.IsNaN(ratio) {
		return
	}
	o.inst.DegradationRatio.Record(ctx, ratio, telemetry.With(telemetry.AttrMetric, metricName))
}

func (o *Orchestrator) writeResult(r TestResult) {
	if r.VictimLost {
		fmt.Fprintln(o.opts.Out, "[Warning] Victim lost connections under attack")
	}
	if r.Passed {
		fmt.Fprintln(o.opts.Out, "Test ...... Success")
		return
	}
	fmt.Fprintf(o.opts.Out, "The degradation for bps is %.3f%%\n", r.BPSDegradation())
	fmt.Fprintf(o.opts.Out, "The degradation for pps is %.3f%%\n", r.PPSDegradation())
	fmt.Fprintln(o.opts.Out, "Test ...... Fail")
}
