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

package readiness

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/host-bench/rdma-bench/internal/remote"
	"github.com/host-bench/rdma-bench/utils"
)

// scriptedCounter returns counts[i] on the i-th call, repeating the last one.
type scriptedCounter struct {
	counts []int
	err    error
	calls  int
}

func (c *scriptedCounter) Count(_ context.Context, _ remote.Host, _ string) (int, error) {
	c.calls++
	if c.err != nil {
		return 0, c.err
	}
	idx := c.calls - 1
	if idx >= len(c.counts) {
		idx = len(c.counts) - 1
	}
	return c.counts[idx], nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

var fastPolicy = utils.PollPolicy{Interval: time.Millisecond, MaxAttempts: DefaultMaxAttempts}

func TestWaitUntilReady(t *testing.T) {
	host := remote.Host{User: "alice", Addr: "10.0.0.2"}

	tests := []struct {
		name      string
		counts    []int
		target    int
		wantCount int
		wantCalls int
		wantErr   error
	}{
		{"ready immediately", []int{64}, 64, 64, 1, nil},
		{"ready after ramp up", []int{0, 16, 48, 64}, 64, 64, 4, nil},
		{"over target counts as ready", []int{70}, 64, 70, 1, nil},
		{"zero target", []int{0}, 0, 0, 1, nil},
		{"never ready", []int{0, 10, 20}, 64, 20, 10, ErrTimeout},
		{"stuck at zero", []int{0}, 4, 0, 10, ErrTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			counter := &scriptedCounter{counts: tt.counts}
			prober := NewProber(counter, testLogger(), nil).WithPolicy(fastPolicy)

			count, err := prober.WaitUntilReady(context.Background(), host, "ib_write_bw", tt.target)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if count != tt.wantCount {
				t.Errorf("count = %d, want %d", count, tt.wantCount)
			}
			if counter.calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", counter.calls, tt.wantCalls)
			}
		})
	}
}

func TestWaitUntilReadyCountErrorIsTimeout(t *testing.T) {
	cause := errors.New("ssh: handshake failed")
	counter := &scriptedCounter{err: cause}
	prober := NewProber(counter, testLogger(), nil).WithPolicy(fastPolicy)

	count, err := prober.WaitUntilReady(context.Background(), remote.Host{Addr: "h"}, "RdmaEngine", 0)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("expected cause to be wrapped, got %v", err)
	}
	if count != 0 || counter.calls != 1 {
		t.Errorf("count=%d calls=%d, want 0 and 1", count, counter.calls)
	}
}

func TestWaitUntilReadyDefaultBound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping wall-clock bound in short mode")
	}
	if DefaultPolicy.Budget() != 3*time.Second {
		t.Fatalf("default budget = %v, want 3s", DefaultPolicy.Budget())
	}

	counter := &scriptedCounter{counts: []int{0}}
	prober := NewProber(counter, testLogger(), nil)

	start := time.Now()
	_, err := prober.WaitUntilReady(context.Background(), remote.Host{Addr: "h"}, "ib_send_bw", 1)
	elapsed := time.Since(start)

	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if counter.calls != 10 {
		t.Errorf("calls = %d, want 10", counter.calls)
	}
	if elapsed > DefaultPolicy.Budget()+time.Second {
		t.Errorf("prober took %v, beyond its %v budget", elapsed, DefaultPolicy.Budget())
	}
}

func TestWaitUntilReadyContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	counter := &scriptedCounter{counts: []int{0}}
	prober := NewProber(counter, testLogger(), nil)

	_, err := prober.WaitUntilReady(ctx, remote.Host{Addr: "h"}, "ib_send_bw", 1)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestCountReady(t *testing.T) {
	output := `link mlx5_0/1 lqpn 1 type RC state RTS sq-psn 0 pid 10 comm ib_write_bw
link mlx5_0/1 lqpn 2 type RC state RTS sq-psn 0 pid 10 comm ib_write_bw
link mlx5_0/1 lqpn 3 type RC state INIT sq-psn 0 pid 10 comm ib_write_bw
link mlx5_0/1 lqpn 4 type RC state RTS sq-psn 0 pid 11 comm RdmaEngine
link mlx5_0/1 lqpn 5 type UD state RTS sq-psn 0 comm [ib_core]
`
	tests := []struct {
		runtime  string
		expected int
	}{
		{"ib_write_bw", 2},
		{"RdmaEngine", 1},
		{"ib_read_bw", 0},
		{"", 0},
	}
	for _, tt := range tests {
		if got := CountReady(output, tt.runtime); got != tt.expected {
			t.Errorf("CountReady(%q) = %d, want %d", tt.runtime, got, tt.expected)
		}
	}

	if got := CountReady("", "ib_write_bw"); got != 0 {
		t.Errorf("empty output should count 0, got %d", got)
	}
	if got := CountReady("qp 7 RTS owner ib_send_bw\n", "ib_send_bw"); got != 1 {
		t.Errorf("fallback match should count 1, got %d", got)
	}
}

func TestPolicyFromEnv(t *testing.T) {
	t.Setenv("RDMA_BENCH_READINESS_INTERVAL", "")
	t.Setenv("RDMA_BENCH_READINESS_ATTEMPTS", "")
	if got := PolicyFromEnv(); got != DefaultPolicy {
		t.Errorf("PolicyFromEnv() = %+v, want %+v", got, DefaultPolicy)
	}

	t.Setenv("RDMA_BENCH_READINESS_INTERVAL", "500ms")
	t.Setenv("RDMA_BENCH_READINESS_ATTEMPTS", "20")
	want := utils.PollPolicy{Interval: 500 * time.Millisecond, MaxAttempts: 20}
	if got := PolicyFromEnv(); got != want {
		t.Errorf("PolicyFromEnv() = %+v, want %+v", got, want)
	}
}
