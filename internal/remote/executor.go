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

// Package remote runs commands on test hosts over their management network.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/host-bench/rdma-bench/internal/telemetry"
	"github.com/host-bench/rdma-bench/internal/workload"
)

// ErrRemoteExecution is wrapped by every failure to run a command remotely,
// whether the command could not be started or exited non-zero.
var ErrRemoteExecution = errors.New("remote execution failed")

// killallNoMatch is the killall exit status for "no process found".
const killallNoMatch = 1

// Host is a management endpoint reached as User.
type Host struct {
	User string
	Addr string
}

func (h Host) String() string {
	if h.User == "" {
		return h.Addr
	}
	return h.User + "@" + h.Addr
}

// ExitError reports a remote command that ran but exited non-zero.
type ExitError struct {
	Host    Host
	Command string
	Status  int
	Stderr  string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("command %q on %s exited with status %d", e.Command, e.Host, e.Status)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *ExitError) Unwrap() error {
	return ErrRemoteExecution
}

// Transport runs a single command on a host and returns its stdout. A
// command that exits non-zero must be reported as *ExitError.
type Transport interface {
	Run(ctx context.Context, host Host, command string) ([]byte, error)
}

// Uploader is implemented by transports that can copy files to a host.
type Uploader interface {
	Upload(ctx context.Context, host Host, content io.Reader, remotePath string, mode os.FileMode) error
}

// Executor runs, launches and terminates workload processes on remote hosts.
type Executor struct {
	transport    Transport
	logger       *slog.Logger
	instruments  *telemetry.Instruments
	processNames []string
}

// NewExecutor creates an Executor on top of transport. inst may be nil.
func NewExecutor(transport Transport, logger *slog.Logger, inst *telemetry.Instruments) *Executor {
	return &Executor{
		transport:    transport,
		logger:       logger,
		instruments:  telemetry.OrNoop(inst),
		processNames: workload.ProcessNames(),
	}
}

// Run executes command on host and waits for it to finish.
func (e *Executor) Run(ctx context.Context, host Host, command string) (string, error) {
	out, err := e.run(ctx, "run", host, command)
	if err != nil {
		e.instruments.RemoteCommandErrorTotal.Add(ctx, 1, telemetry.With(telemetry.AttrOperation, "run"))
	}
	return out, err
}

func (e *Executor) run(ctx context.Context, operation string, host Host, command string) (string, error) {
	start := time.Now()
	out, err := e.transport.Run(ctx, host, command)
	e.instruments.RemoteCommandDuration.Record(ctx, time.Since(start).Seconds(),
		telemetry.With(telemetry.AttrOperation, operation))
	if err == nil {
		return string(out), nil
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return string(out), err
	}
	return string(out), fmt.Errorf("%w: %s: %w", ErrRemoteExecution, host, err)
}

// Launch starts command on host detached from the session and returns as
// soon as the remote shell has forked it. It does not wait for the command
// to make progress.
func (e *Executor) Launch(ctx context.Context, host Host, command string) error {
	wrapped := fmt.Sprintf("nohup bash -c %s </dev/null >/dev/null 2>&1 &", ShellQuote(command))
	e.logger.Debug("launching remote workload",
		slog.String("host", host.String()),
		slog.String("command", command))
	if _, err := e.run(ctx, "launch", host, wrapped); err != nil {
		e.instruments.RemoteCommandErrorTotal.Add(ctx, 1, telemetry.With(telemetry.AttrOperation, "launch"))
		return err
	}
	return nil
}

// Terminate kills every known workload process on host. Hosts without any
// matching process are not an error, so Terminate is idempotent.
func (e *Executor) Terminate(ctx context.Context, host Host) error {
	var errs []error
	for _, name := range e.processNames {
		_, err := e.run(ctx, "terminate", host, "killall "+name)
		if err == nil {
			continue
		}
		var exitErr *ExitError
		if errors.As(err, &exitErr) && exitErr.Status == killallNoMatch {
			continue
		}
		if ctx.Err() != nil {
			return err
		}
		e.instruments.RemoteCommandErrorTotal.Add(ctx, 1, telemetry.With(telemetry.AttrOperation, "terminate"))
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// TerminateAll runs Terminate on every distinct host concurrently and
// returns the joined failures. Every host is attempted even when some fail.
func (e *Executor) TerminateAll(ctx context.Context, hosts []Host) error {
	seen := make(map[Host]bool, len(hosts))
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	for _, host := range hosts {
		if seen[host] {
			continue
		}
		seen[host] = true
		g.Go(func() error {
			if err := e.Terminate(ctx, host); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// Deploy copies the local file at localPath to remotePath on every distinct
// host. The transport must implement Uploader.
func (e *Executor) Deploy(ctx context.Context, hosts []Host, localPath, remotePath string) error {
	uploader, ok := e.transport.(Uploader)
	if !ok {
		return fmt.Errorf("%w: transport cannot upload files", ErrRemoteExecution)
	}
	info, err := os.Stat(localPath)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", localPath, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	seen := make(map[Host]bool, len(hosts))
	for _, host := range hosts {
		if seen[host] {
			continue
		}
		seen[host] = true
		g.Go(func() error {
			f, err := os.Open(localPath)
			if err != nil {
				return err
			}
			defer f.Close()
			if err := uploader.Upload(gctx, host, f, remotePath, info.Mode().Perm()|0o100); err != nil {
				return fmt.Errorf("%w: upload to %s: %w", ErrRemoteExecution, host, err)
			}
			e.logger.Info("deployed file",
				slog.String("host", host.String()),
				slog.String("path", remotePath))
			return nil
		})
	}
	return g.Wait()
}

// ShellQuote quotes s as a single POSIX shell word.
func ShellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
