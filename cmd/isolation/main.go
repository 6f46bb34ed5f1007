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
	"fmt"
	"os"

	"github.com/host-bench/rdma-bench/cmd/isolation/commands"
	"github.com/host-bench/rdma-bench/lib/utils"
)

func main() {
	version, err := utils.LoadVersion()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
	}
	if err := commands.NewRootCommand(version).Execute(); err != nil {
		os.Exit(1)
	}
}
