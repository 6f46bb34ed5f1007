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

// Package commands implements the monitor agent's command line. The agent
// runs on the test hosts; stdout carries results only and logs go to stderr.
package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/host-bench/rdma-bench/internal/config"
	"github.com/host-bench/rdma-bench/internal/monitor"
	"github.com/host-bench/rdma-bench/internal/workload"
	"github.com/host-bench/rdma-bench/utils"
	"github.com/host-bench/rdma-bench/utils/logging"
)

const serviceName = "rdma-monitor"

// NewLogger returns the agent's stderr logger. RDMA_BENCH_LOG_LEVEL sets the
// level.
func NewLogger() *slog.Logger {
	level := logging.ParseLevel(utils.GetEnv("RDMA_BENCH_LOG_LEVEL", "warn"))
	return slog.New(logging.NewServiceHandler(serviceName, level, os.Stderr))
}

// exitError carries the process exit code of a failed action.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// ExitCode maps an Execute error to the agent's exit status.
func ExitCode(err error) int {
	var exitErr *exitError
	if errors.As(err, &exitErr) {
		return exitErr.code
	}
	return 1
}

// NewRootCommand builds the agent command tree around agent.
func NewRootCommand(agent *monitor.Agent, version string) *cobra.Command {
	root := &cobra.Command{
		Use:          serviceName,
		Short:        "Host-side RDMA traffic monitor",
		SilenceUsage: true,
		Version:      version,
	}
	root.AddCommand(newMonitorCommand(agent))
	root.AddCommand(newKillCommand(agent))
	root.AddCommand(newCheckCommand(agent))
	return root
}

func newMonitorCommand(agent *monitor.Agent) *cobra.Command {
	var (
		iface   string
		seconds float64
		key     string
	)
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Print the rate of an interface's RDMA counters over a window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			window := time.Duration(seconds * float64(time.Second))
			rate, err := agent.Measure(cmd.Context(), iface, window, key)
			if err != nil {
				return &exitError{code: monitor.ExitCode(err), err: err}
			}
			return monitor.WriteRate(cmd.OutOrStdout(), key, rate)
		},
	}
	cmd.Flags().StringVar(&iface, "interface", "", "The ethernet interface")
	cmd.Flags().Float64Var(&seconds, "count",
		utils.GetEnvFloat("RDMA_BENCH_MONITOR_SECONDS", config.DefaultMonitorSeconds),
		"Number of seconds to monitor")
	cmd.Flags().StringVar(&key, "key", config.DefaultMonitorKey, "Counter name prefix chosen by the isolation scheme")
	_ = cmd.MarkFlagRequired("interface")
	return cmd
}

func newKillCommand(agent *monitor.Agent) *cobra.Command {
	return &cobra.Command{
		Use:   "kill",
		Short: "Terminate every workload process on this host (best effort)",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			agent.Kill(cmd.Context(), workload.ProcessNames())
		},
	}
}

func newCheckCommand(agent *monitor.Agent) *cobra.Command {
	var (
		runName   string
		runTarget int
	)
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Wait until a runtime holds its target of ready connections",
		Long: `Prints the number of ready connections once the target is reached, or -1
when it is not reached within the readiness budget.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), agent.Check(cmd.Context(), runName, runTarget))
			return err
		},
	}
	cmd.Flags().StringVar(&runName, "run_name", workload.EngineName, "The name of the running binary")
	cmd.Flags().IntVar(&runTarget, "run_target", 0, "The target number of ready connections")
	return cmd
}
