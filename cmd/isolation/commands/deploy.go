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

package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/host-bench/rdma-bench/internal/orchestrator"
	"github.com/host-bench/rdma-bench/pkg/args"
)

const agentBinaryName = "rdma-monitor"

func newDeployAgentCommand(flags *args.GlobalFlagPointers) *cobra.Command {
	var binary string

	cmd := &cobra.Command{
		Use:   "deploy-agent",
		Short: "Copy the monitor agent to every management host",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if binary == "" {
				var err error
				if binary, err = defaultAgentBinary(); err != nil {
					return err
				}
			}

			s, err := openSession(cmd.Context(), flags, true)
			if err != nil {
				return err
			}
			defer s.close()

			hosts := orchestrator.ManagementHosts(s.cfg.Victim(), s.cfg.Attacker())
			if err := s.executor.Deploy(cmd.Context(), hosts, binary, s.cfg.AgentPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deployed %s to %s on %d host(s)\n", binary, s.cfg.AgentPath, len(hosts))
			return nil
		},
	}
	cmd.Flags().StringVar(&binary, "agent-binary", "",
		"Local monitor agent binary (defaults to "+agentBinaryName+" next to this executable)")
	return cmd
}

func defaultAgentBinary() (string, error) {
	self, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("cannot locate the monitor agent: %w", err)
	}
	return filepath.Join(filepath.Dir(self), agentBinaryName), nil
}
