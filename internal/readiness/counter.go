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
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/host-bench/rdma-bench/internal/remote"
)

// QPListCommand lists the RDMA queue pairs of a host, one per line.
const QPListCommand = "rdma res show qp"

// RemoteCounter counts connections by listing queue pairs over the remote
// executor.
type RemoteCounter struct {
	Executor *remote.Executor
}

func (c RemoteCounter) Count(ctx context.Context, host remote.Host, runtimeName string) (int, error) {
	out, err := c.Executor.Run(ctx, host, QPListCommand)
	if err != nil {
		return 0, err
	}
	return CountReady(out, runtimeName), nil
}

// LocalCounter counts connections on the machine it runs on. The host
// argument is ignored.
type LocalCounter struct{}

func (LocalCounter) Count(ctx context.Context, _ remote.Host, runtimeName string) (int, error) {
	fields := strings.Fields(QPListCommand)
	out, err := exec.CommandContext(ctx, fields[0], fields[1:]...).Output()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", QPListCommand, err)
	}
	return CountReady(string(out), runtimeName), nil
}

// CountReady counts queue pairs in state RTS owned by runtimeName in the
// output of QPListCommand. Lines look like
//
//	link mlx5_0/1 lqpn 1234 type RC state RTS sq-psn 0 pid 42 comm ib_write_bw
//
// Lines without a "comm" field fall back to matching runtimeName anywhere
// after the state.
func CountReady(output, runtimeName string) int {
	if runtimeName == "" {
		return 0
	}
	count := 0
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		if qpReady(scanner.Text(), runtimeName) {
			count++
		}
	}
	return count
}

func qpReady(line, runtimeName string) bool {
	fields := strings.Fields(line)
	state, comm := "", ""
	hasComm := false
	for i := 0; i+1 < len(fields); i++ {
		switch fields[i] {
		case "state":
			state = fields[i+1]
		case "comm":
			comm = fields[i+1]
			hasComm = true
		}
	}
	if state != "" && hasComm {
		return state == "RTS" && comm == runtimeName
	}

	idx := strings.Index(line, "RTS")
	return idx >= 0 && strings.Contains(line[idx+len("RTS"):], runtimeName)
}
