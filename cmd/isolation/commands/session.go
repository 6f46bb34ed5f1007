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
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/host-bench/rdma-bench/internal/config"
	"github.com/host-bench/rdma-bench/internal/remote"
	"github.com/host-bench/rdma-bench/internal/telemetry"
	"github.com/host-bench/rdma-bench/pkg/args"
	"github.com/host-bench/rdma-bench/utils/logging"
)

// session is everything a subcommand needs once the configuration is loaded.
type session struct {
	cfg       *config.RunConfig
	args      args.GlobalArgs
	logger    *slog.Logger
	inst      *telemetry.Instruments
	transport *remote.SSHTransport
	executor  *remote.Executor

	shutdownMetrics func(context.Context) error
}

// openSession loads the run configuration and sets up logging and metrics.
// When withRemote is set it also prepares the SSH transport.
func openSession(ctx context.Context, flags *args.GlobalFlagPointers, withRemote bool) (*session, error) {
	cfg, err := config.Load(flags.ConfigPath())
	if err != nil {
		return nil, err
	}
	globals := flags.ToGlobalArgs(cfg.Verbose)
	logger := logging.InitLogger(args.ServiceName, globals.Logging)

	inst, shutdown, err := telemetry.Setup(ctx, globals.OTEL)
	if err != nil {
		logger.Warn("metrics disabled", slog.String("error", err.Error()))
	}

	s := &session{
		cfg:             cfg,
		args:            globals,
		logger:          logger,
		inst:            inst,
		shutdownMetrics: shutdown,
	}
	if !withRemote {
		return s, nil
	}
	if err := s.connect(); err != nil {
		s.close()
		return nil, err
	}
	return s, nil
}

// connect prepares the SSH transport and the executor on top of it.
func (s *session) connect() error {
	transport, err := remote.NewSSHTransport(remote.SSHConfig{
		Port:           s.cfg.SSHPort,
		KeyFile:        s.cfg.SSHKeyFile,
		KnownHostsFile: s.cfg.KnownHostsFile,
		DialRetries:    3,
		BandwidthLimit: s.cfg.SSHBandwidthLimit,
	}, s.logger)
	if err != nil {
		return fmt.Errorf("failed to set up ssh: %w", err)
	}
	s.transport = transport
	s.executor = remote.NewExecutor(transport, s.logger, s.inst)
	return nil
}

func (s *session) close() {
	var errs []error
	if s.transport != nil {
		errs = append(errs, s.transport.Close())
	}
	if s.shutdownMetrics != nil {
		errs = append(errs, s.shutdownMetrics(context.Background()))
	}
	if err := errors.Join(errs...); err != nil {
		s.logger.Warn("shutdown incomplete", slog.String("error", err.Error()))
	}
}
