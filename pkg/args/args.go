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

// Package args holds the command-line surface shared by the isolation
// driver's subcommands.
package args

import (
	"github.com/spf13/pflag"

	"github.com/host-bench/rdma-bench/internal/telemetry"
	"github.com/host-bench/rdma-bench/utils"
	"github.com/host-bench/rdma-bench/utils/logging"
	"github.com/host-bench/rdma-bench/utils/redis"
)

// ServiceName is the name the driver logs and reports metrics under.
const ServiceName = "isolation"

// GlobalArgs holds the parsed global flags.
type GlobalArgs struct {
	ConfigPath   string
	Verbose      bool
	ProgressFile string

	Logging logging.Config
	OTEL    telemetry.OTELConfig
	Redis   redis.RedisConfig
}

// GlobalFlagPointers holds pointers to the global flag values until the
// command line has been parsed.
type GlobalFlagPointers struct {
	configPath   *string
	verbose      *bool
	progressFile *string

	logging *logging.FlagPointers
	otel    func() telemetry.OTELConfig
	redis   *redis.RedisFlagPointers
}

// RegisterGlobalFlags registers every global flag on fs.
func RegisterGlobalFlags(fs *pflag.FlagSet, version string) *GlobalFlagPointers {
	return &GlobalFlagPointers{
		configPath: fs.StringP("config", "c",
			utils.GetEnv("RDMA_BENCH_CONFIG", "config.json"),
			"Path to the run configuration (JSON or YAML)"),
		verbose: fs.BoolP("verbose", "v",
			utils.GetEnvBool("RDMA_BENCH_VERBOSE", false),
			"Log readiness observations and remote commands"),
		progressFile: fs.String("progress-file",
			utils.GetEnv("RDMA_BENCH_PROGRESS_FILE", ""),
			"File to record batch progress in (for external watchdogs)"),
		logging: logging.RegisterFlags(fs),
		otel:    telemetry.RegisterOTELFlags(fs, ServiceName, version),
		redis:   redis.RegisterRedisFlags(fs),
	}
}

// ToGlobalArgs converts the flag pointers once parsing is done. verbose
// from the run configuration file lowers the log level the same way
// --verbose does.
func (p *GlobalFlagPointers) ToGlobalArgs(configVerbose bool) GlobalArgs {
	verbose := *p.verbose || configVerbose
	return GlobalArgs{
		ConfigPath:   *p.configPath,
		Verbose:      verbose,
		ProgressFile: *p.progressFile,
		Logging:      p.logging.ToConfig(verbose),
		OTEL:         p.otel(),
		Redis:        p.redis.ToRedisConfig(),
	}
}

// ConfigPath is available before the configuration file is loaded.
func (p *GlobalFlagPointers) ConfigPath() string {
	return *p.configPath
}
