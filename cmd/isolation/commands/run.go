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
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/host-bench/rdma-bench/internal/config"
	"github.com/host-bench/rdma-bench/internal/monitor"
	"github.com/host-bench/rdma-bench/internal/orchestrator"
	"github.com/host-bench/rdma-bench/internal/readiness"
	"github.com/host-bench/rdma-bench/pkg/args"
	"github.com/host-bench/rdma-bench/utils/logging"
	"github.com/host-bench/rdma-bench/utils/progress_check"
	"github.com/host-bench/rdma-bench/utils/redis"
)

func newRunCommand(flags *args.GlobalFlagPointers) *cobra.Command {
	var victim, attacker string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run attacker workloads against victim workloads",
		Long: `Runs every selected attacker against every selected victim, one test
case at a time. Per-case failures are reported and never stop the batch.

Attacker selectors: "all", "<Type>-all" (Type is one of BW, PCIe, Cache, PU)
or a script name such as "BW-bw_w_16.sh".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runTests(ctx, cmd, flags, victim, attacker)
		},
	}
	cmd.Flags().StringVar(&victim, "victim", "", "Victim script name (empty or \"all\" for every victim)")
	cmd.Flags().StringVar(&attacker, "attacker", "",
		"Attacker selector: all, <Type>-all or <Type>-<script>")
	_ = cmd.MarkFlagRequired("attacker")
	return cmd
}

func runTests(ctx context.Context, cmd *cobra.Command, flags *args.GlobalFlagPointers, victimSel, attackerSel string) error {
	s, err := openSession(ctx, flags, false)
	if err != nil {
		return err
	}
	defer s.close()

	out := cmd.OutOrStdout()
	fmt.Fprint(out, s.cfg.Summary())

	victims, attackers, err := config.Catalog{Root: s.cfg.Directory}.Select(victimSel, attackerSel)
	if err != nil {
		return err
	}
	if err := s.connect(); err != nil {
		return err
	}

	runID := uuid.New().String()
	logger := s.logger.With(slog.String(logging.RunAttrKey, runID))

	opts := orchestrator.Options{
		Victim:      s.cfg.Victim(),
		Attacker:    s.cfg.Attacker(),
		Alpha:       s.cfg.Alpha,
		Window:      s.cfg.MonitorWindow(),
		RunID:       runID,
		Out:         out,
		Logger:      s.logger,
		Instruments: s.inst,
	}

	if s.args.ProgressFile != "" {
		opts.Progress, err = progress_check.NewProgressWriter(s.args.ProgressFile)
		if err != nil {
			return err
		}
	}

	if s.args.Redis.Enabled {
		client, err := redis.NewRedisClient(ctx, s.args.Redis, logger)
		if err != nil {
			// Publishing is best effort; the run itself does not need Redis.
			logger.Warn("result publishing disabled", slog.String("error", err.Error()))
		} else {
			defer client.Close()
			opts.Publisher = client.Channel(s.args.Redis.Channel)
		}
	}

	prober := readiness.NewProber(readiness.RemoteCounter{Executor: s.executor}, logger, s.inst).
		WithPolicy(readiness.PolicyFromEnv())
	meter := monitor.NewClient(s.executor, monitor.NewDeviceCache(0), s.cfg.AgentPath, s.cfg.MonitorKey, logger)

	orch := orchestrator.New(s.executor, prober, meter, opts)
	orch.RunBatch(ctx, attackers, victims)
	return nil
}
