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

// Package readiness waits for a launched workload to establish its RDMA
// connections.
package readiness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/host-bench/rdma-bench/internal/remote"
	"github.com/host-bench/rdma-bench/internal/telemetry"
	"github.com/host-bench/rdma-bench/utils"
)

// ErrTimeout is returned when a workload does not reach its connection target
// within the poll budget, or when its connections cannot be counted at all.
var ErrTimeout = errors.New("workload readiness timed out")

const (
	DefaultInterval    = 300 * time.Millisecond
	DefaultMaxAttempts = 10
)

// DefaultPolicy is the readiness poll budget: 10 attempts, 300ms apart.
var DefaultPolicy = utils.PollPolicy{Interval: DefaultInterval, MaxAttempts: DefaultMaxAttempts}

// Counter counts the connections in the ready-to-send state owned by
// processes named runtimeName on host.
type Counter interface {
	Count(ctx context.Context, host remote.Host, runtimeName string) (int, error)
}

// Prober polls a Counter until a workload reaches its connection target.
type Prober struct {
	counter     Counter
	policy      utils.PollPolicy
	logger      *slog.Logger
	instruments *telemetry.Instruments
}

// NewProber returns a Prober using DefaultPolicy. inst may be nil.
func NewProber(counter Counter, logger *slog.Logger, inst *telemetry.Instruments) *Prober {
	return &Prober{
		counter:     counter,
		policy:      DefaultPolicy,
		logger:      logger,
		instruments: telemetry.OrNoop(inst),
	}
}

// WithPolicy returns a copy of p polling with policy.
func (p *Prober) WithPolicy(policy utils.PollPolicy) *Prober {
	clone := *p
	clone.policy = policy
	return &clone
}

// PolicyFromEnv returns DefaultPolicy with RDMA_BENCH_READINESS_INTERVAL
// (a Go duration) and RDMA_BENCH_READINESS_ATTEMPTS applied.
func PolicyFromEnv() utils.PollPolicy {
	return utils.PollPolicy{
		Interval:    utils.GetEnvDuration("RDMA_BENCH_READINESS_INTERVAL", DefaultInterval),
		MaxAttempts: utils.GetEnvInt("RDMA_BENCH_READINESS_ATTEMPTS", DefaultMaxAttempts),
	}
}

// WaitUntilReady returns the observed connection count once it reaches
// target. It returns ErrTimeout (with the last observed count) when the budget
// runs out, and ErrTimeout wrapping the cause as soon as a count fails. A
// zero target is satisfied by the first successful count.
func (p *Prober) WaitUntilReady(ctx context.Context, host remote.Host, runtimeName string, target int) (int, error) {
	count, attempts, err := utils.Poll(ctx, p.policy,
		func(ctx context.Context, attempt int) (int, bool, error) {
			count, err := p.counter.Count(ctx, host, runtimeName)
			if err != nil {
				return 0, false, err
			}
			p.logger.Debug(fmt.Sprintf("target is %d. output is %d", target, count),
				slog.String("host", host.String()),
				slog.String("runtime", runtimeName),
				slog.Int("attempt", attempt))
			return count, count >= target, nil
		})

	runtimeAttr := telemetry.With(telemetry.AttrRuntime, runtimeName)
	p.instruments.ReadinessPollAttempts.Record(ctx, float64(attempts), runtimeAttr)

	switch {
	case err == nil:
		return count, nil
	case errors.Is(err, utils.ErrPollExhausted):
		p.instruments.ReadinessTimeoutTotal.Add(ctx, 1, runtimeAttr)
		return count, fmt.Errorf("%w: %s on %s reached %d of %d connections after %d attempts",
			ErrTimeout, runtimeName, host, count, target, attempts)
	default:
		p.instruments.ReadinessTimeoutTotal.Add(ctx, 1, runtimeAttr)
		return 0, fmt.Errorf("%w: counting %s connections on %s: %w", ErrTimeout, runtimeName, host, err)
	}
}
