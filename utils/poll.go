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
	"time"
)

// ErrPollExhausted is returned by Poll when every attempt ran without the
// condition being met.
var ErrPollExhausted = errors.New("poll attempts exhausted")

// PollPolicy is a fixed-interval retry budget.
type PollPolicy struct {
	Interval    time.Duration
	MaxAttempts int
}

// Budget returns the worst-case time spent sleeping between attempts.
func (p PollPolicy) Budget() time.Duration {
	if p.MaxAttempts <= 0 {
		return 0
	}
	return time.Duration(p.MaxAttempts) * p.Interval
}

// PollFunc performs one attempt. It returns the observed value, whether the
// condition is satisfied, and an error that aborts polling.
type PollFunc[T any] func(ctx context.Context, attempt int) (T, bool, error)

// Poll runs fn until it reports done, returns an error, or the policy's
// attempts are used up. The value of the last attempt is always returned along
// with the number of attempts made. An error from fn stops polling at once and
// is returned unchanged; an exhausted budget returns ErrPollExhausted.
func Poll[T any](ctx context.Context, policy PollPolicy, fn PollFunc[T]) (T, int, error) {
	var last T
	attempts := policy.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		value, done, err := fn(ctx, attempt)
		last = value
		if err != nil {
			return last, attempt, err
		}
		if done {
			return last, attempt, nil
		}
		if attempt == attempts {
			break
		}
		if err := Sleep(ctx, policy.Interval); err != nil {
			return last, attempt, err
		}
	}
	return last, attempts, ErrPollExhausted
}

// Sleep blocks for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
