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

package main

import (
	"os"

	"github.com/host-bench/rdma-bench/cmd/rdma-monitor/commands"
	"github.com/host-bench/rdma-bench/internal/monitor"
	"github.com/host-bench/rdma-bench/internal/readiness"
	"github.com/host-bench/rdma-bench/lib/utils"
)

func main() {
	version, _ := utils.LoadVersion()
	logger := commands.NewLogger()
	prober := readiness.NewProber(readiness.LocalCounter{}, logger, nil).WithPolicy(readiness.PolicyFromEnv())
	agent := monitor.NewAgent(monitor.EthtoolReader{}, prober, logger)
	if err := commands.NewRootCommand(agent, version).Execute(); err != nil {
		os.Exit(commands.ExitCode(err))
	}
}
