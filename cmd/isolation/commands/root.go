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

// Package commands implements the isolation driver's command line.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/host-bench/rdma-bench/pkg/args"
)

// NewRootCommand builds the isolation command tree.
func NewRootCommand(version string) *cobra.Command {
	root := &cobra.Command{
		Use:   "isolation",
		Short: "RDMA traffic isolation test driver",
		Long: `Runs every selected attacker workload against every selected victim
workload on a pair of RDMA hosts, and reports whether the victim kept its
throughput while under attack.`,
		SilenceUsage: true,
	}

	flags := args.RegisterGlobalFlags(root.PersistentFlags(), version)

	root.AddCommand(newListCommand(flags))
	root.AddCommand(newRunCommand(flags))
	root.AddCommand(newDeployAgentCommand(flags))
	root.AddCommand(newVersionCommand(version))
	return root
}
