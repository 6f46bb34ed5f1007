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
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"time"

	"github.com/host-bench/rdma-bench/internal/readiness"
	"github.com/host-bench/rdma-bench/internal/remote"
	"github.com/host-bench/rdma-bench/utils"
)

// Agent exit codes that the client maps back to sentinel errors.
const (
	ExitCounterReset  = 3
	ExitInvalidWindow = 4
)

// CheckFailed is printed by the check action when the target is not reached.
const CheckFailed = -1

// Agent implements the monitor agent's actions on the host it runs on.
type Agent struct {
	stats  StatsReader
	now    func() time.Time
	prober *readiness.Prober
	logger *slog.Logger
}

// NewAgent returns an Agent reading counters through stats and answering
// check with prober.
func NewAgent(stats StatsReader, prober *readiness.Prober, logger *slog.Logger) *Agent {
	return &Agent{
		stats:  stats,
		now:    time.Now,
		prober: prober,
		logger: logger,
	}
}

// Measure samples the counters of iface twice, window apart, and returns
// the rate of the <key>_bytes and <key>_packets counters.
func (a *Agent) Measure(ctx context.Context, iface string, window time.Duration, key string) (Rate, error) {
	if window <= 0 {
		return Rate{}, fmt.Errorf("%w: %s", ErrInvalidWindow, window)
	}
	first, err := a.sample(ctx, iface, key)
	if err != nil {
		return Rate{}, err
	}
	if err := utils.Sleep(ctx, window); err != nil {
		return Rate{}, err
	}
	second, err := a.sample(ctx, iface, key)
	if err != nil {
		return Rate{}, err
	}
	rate, err := ComputeRate(first, second)
	if err != nil {
		return Rate{}, err
	}
	a.logger.Debug("measured interface rate",
		slog.String("interface", iface),
		slog.Float64("gbps", rate.BitRate),
		slog.Float64("mpps", rate.PacketRate))
	return rate, nil
}

func (a *Agent) sample(ctx context.Context, iface, key string) (Sample, error) {
	raw, err := a.stats.ReadStats(ctx, iface)
	if err != nil {
		return Sample{}, err
	}
	return SampleFromStats(ParseStats(raw), key, a.now().UnixNano())
}

// Kill terminates every process named in names. It is best effort: names
// without a running process are skipped and any other failure is only logged.
func (a *Agent) Kill(ctx context.Context, names []string) {
	for _, name := range names {
		err := exec.CommandContext(ctx, "killall", name).Run()
		var exitErr *exec.ExitError
		if err == nil || (errors.As(err, &exitErr) && exitErr.ExitCode() == 1) {
			continue
		}
		a.logger.Warn("failed to kill workload",
			slog.String("process", name),
			slog.String("error", err.Error()))
	}
}

// Check waits for runtimeName to hold target ready connections on this host
// and returns the observed count, or CheckFailed on timeout or error.
func (a *Agent) Check(ctx context.Context, runtimeName string, target int) int {
	count, err := a.prober.WaitUntilReady(ctx, remote.Host{Addr: "localhost"}, runtimeName, target)
	if err != nil {
		a.logger.Debug("readiness check failed", slog.String("error", err.Error()))
		return CheckFailed
	}
	return count
}

// WriteRate prints a measurement in the agent's wire format:
//
//	<key>_bytes:<Gbit/s>
//	<key>_packets:<Mpkt/s>
func WriteRate(w io.Writer, key string, rate Rate) error {
	_, err := fmt.Fprintf(w, "%s_bytes:%s\n%s_packets:%s\n",
		key, strconv.FormatFloat(rate.BitRate, 'f', -1, 64),
		key, strconv.FormatFloat(rate.PacketRate, 'f', -1, 64))
	return err
}

// ExitCode maps a Measure error to the agent's process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrCounterReset):
		return ExitCounterReset
	case errors.Is(err, ErrInvalidWindow):
		return ExitInvalidWindow
	default:
		return 1
	}
}
