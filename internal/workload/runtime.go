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

package workload

import (
	"path/filepath"
	"strings"
)

// RuntimeKind identifies the family of a workload-generating process. The
// families differ in how their connection-count target is encoded.
type RuntimeKind int

const (
	RuntimeUnknown RuntimeKind = iota
	// RuntimeEngine is the RDMA traffic engine; target comes from --qp_num.
	RuntimeEngine
	// RuntimeCtrlTest is the control-path test tool; it holds no QPs.
	RuntimeCtrlTest
	// RuntimePerftest is the ib_*_bw perftest family; target comes from -q.
	RuntimePerftest
)

const (
	EngineName   = "RdmaEngine"
	CtrlTestName = "RdmaCtrlTest"
)

// PerftestNames lists the perftest binaries the generated workloads use.
var PerftestNames = []string{"ib_write_bw", "ib_read_bw", "ib_send_bw", "ib_atomic_bw"}

func (k RuntimeKind) String() string {
	switch k {
	case RuntimeEngine:
		return "engine"
	case RuntimeCtrlTest:
		return "ctrl-test"
	case RuntimePerftest:
		return "perftest"
	default:
		return "unknown"
	}
}

// KindOf maps a runtime binary name to its family. Any name other than the
// engine and the control-test tool is treated as a perftest binary.
func KindOf(runtimeName string) RuntimeKind {
	switch runtimeName {
	case "":
		return RuntimeUnknown
	case EngineName:
		return RuntimeEngine
	case CtrlTestName:
		return RuntimeCtrlTest
	default:
		return RuntimePerftest
	}
}

// targetFlag returns the flag holding the per-port connection count, or ""
// for runtimes without one.
func (k RuntimeKind) targetFlag() string {
	switch k {
	case RuntimeEngine:
		return "--qp_num"
	case RuntimePerftest:
		return "-q"
	default:
		return ""
	}
}

// ProcessNames returns every process name a workload may leave running on a
// host. Terminating all of them returns a host to a clean state.
func ProcessNames() []string {
	names := []string{EngineName, CtrlTestName}
	return append(names, PerftestNames...)
}

// IsReadDominated reports whether the workload at path moves data from the
// receiver to the sender. Generated script names encode the opcode as an
// underscore-separated token ("ib_read_bw", "PCIe-size_r_1_257").
func IsReadDominated(path string) bool {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	for _, token := range strings.Split(name, "_") {
		if token == "r" || token == "read" {
			return true
		}
	}
	return false
}
