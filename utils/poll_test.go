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

package utils

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPoll(t *testing.T) {
	policy := PollPolicy{Interval: time.Millisecond, MaxAttempts: 5}

	t.Run("succeeds on third attempt", func(t *testing.T) {
		value, attempts, err := Poll(context.Background(), policy,
			func(_ context.Context, attempt int) (int, bool, error) {
				return attempt * 10, attempt == 3, nil
			})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if value != 30 || attempts != 3 {
			t.Errorf("got value=%d attempts=%d, want 30 and 3", value, attempts)
		}
	})

	t.Run("exhausted", func(t *testing.T) {
		calls := 0
		_, attempts, err := Poll(context.Background(), policy,
			func(_ context.Context, _ int) (int, bool, error) {
				calls++
				return 0, false, nil
			})
		if !errors.Is(err, ErrPollExhausted) {
			t.Fatalf("expected ErrPollExhausted, got %v", err)
		}
		if calls != 5 || attempts != 5 {
			t.Errorf("got calls=%d attempts=%d, want 5", calls, attempts)
		}
	})

	t.Run("error aborts immediately", func(t *testing.T) {
		boom := errors.New("boom")
		calls := 0
		_, attempts, err := Poll(context.Background(), policy,
			func(_ context.Context, _ int) (int, bool, error) {
				calls++
				return 0, false, boom
			})
		if !errors.Is(err, boom) {
			t.Fatalf("expected boom, got %v", err)
		}
		if calls != 1 || attempts != 1 {
			t.Errorf("got calls=%d attempts=%d, want 1", calls, attempts)
		}
	})

	t.Run("context cancelled between attempts", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		_, _, err := Poll(ctx, PollPolicy{Interval: time.Hour, MaxAttempts: 3},
			func(_ context.Context, _ int) (int, bool, error) {
				cancel()
				return 0, false, nil
			})
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	})
}

func TestPollPolicyBudget(t *testing.T) {
	policy := PollPolicy{Interval: 300 * time.Millisecond, MaxAttempts: 10}
	if got := policy.Budget(); got != 3*time.Second {
		t.Errorf("Budget() = %v, want 3s", got)
	}
	if got := (PollPolicy{}).Budget(); got != 0 {
		t.Errorf("empty Budget() = %v, want 0", got)
	}
}

func TestCalculateBackoff(t *testing.T) {
	base := 100 * time.Millisecond
	maxBackoff := 2 * time.Second

	if got := CalculateBackoff(0, base, maxBackoff); got != 0 {
		t.Errorf("retry 0 = %v, want 0", got)
	}
	for retry := 1; retry <= 10; retry++ {
		got := CalculateBackoff(retry, base, maxBackoff)
		if got > maxBackoff {
			t.Errorf("retry %d = %v exceeds cap %v", retry, got, maxBackoff)
		}
		floor := time.Duration(1<<uint(retry-1)) * base
		if floor > maxBackoff {
			floor = maxBackoff
		}
		if got < floor {
			t.Errorf("retry %d = %v below %v", retry, got, floor)
		}
	}
}
