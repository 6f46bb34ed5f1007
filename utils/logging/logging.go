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

// Package logging provides the structured log format shared by the isolation
// test driver and the monitor agent. Log lines follow the format:
//
//	<ISO8601_time> <service_name> [<LEVEL>] <source>: [run=<run_id> ]<message>[ key=value ...]
//
// The "run" attribute is extracted from the slog record and placed before the
// message body so that lines from one test run can be grepped out of a shared
// log directory.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/spf13/pflag"

	"github.com/host-bench/rdma-bench/utils"
)

// RunAttrKey is the slog attribute key carrying the run identifier.
const RunAttrKey = "run"

// Config holds the logging configuration.
type Config struct {
	Level   slog.Level
	LogDir  string
	LogName string
}

// FlagPointers holds pointers to flag values for logging configuration.
type FlagPointers struct {
	logLevel *string
	logDir   *string
	logName  *string
}

// RegisterFlags registers logging-related flags on fs and returns pointers
// that should be converted to Config after the flags are parsed.
func RegisterFlags(fs *pflag.FlagSet) *FlagPointers {
	return &FlagPointers{
		logLevel: fs.String("log-level",
			utils.GetEnv("RDMA_BENCH_LOG_LEVEL", "info"),
			"Log level (debug, info, warn, error)"),
		logDir: fs.String("log-dir",
			utils.GetEnv("RDMA_BENCH_LOG_DIR", ""),
			"Directory to write log files to"),
		logName: fs.String("log-name", "",
			"Name for the log file (without extension)"),
	}
}

// ToConfig converts flag pointers to Config. Must be called after parsing.
// verbose lowers the level to debug regardless of --log-level.
func (f *FlagPointers) ToConfig(verbose bool) Config {
	level := ParseLevel(*f.logLevel)
	if verbose && level > slog.LevelDebug {
		level = slog.LevelDebug
	}
	return Config{
		Level:   level,
		LogDir:  *f.logDir,
		LogName: *f.logName,
	}
}

// ParseLevel converts a string log level to slog.Level.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "critical", "fatal":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ServiceHandler is a slog.Handler producing the package's line format.
// The "run" attribute is pulled out of the record and printed before the
// message; all other attributes are appended as key=value pairs.
//
// The <source> field is the calling Go package name.
type ServiceHandler struct {
	serviceName string
	level       slog.Level
	writer      io.Writer
	mu          *sync.Mutex
	attrs       []slog.Attr
	groups      []string
}

// NewServiceHandler creates a new ServiceHandler that writes to the given writer.
func NewServiceHandler(serviceName string, level slog.Level, writer io.Writer) *ServiceHandler {
	return &ServiceHandler{
		serviceName: serviceName,
		level:       level,
		writer:      writer,
		mu:          &sync.Mutex{},
	}
}

// Enabled reports whether the handler handles records at the given level.
func (h *ServiceHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

// Handle formats and writes the log record.
func (h *ServiceHandler) Handle(_ context.Context, r slog.Record) error {
	timeStr := r.Time.Format("2006-01-02T15:04:05.000-07:00")
	source := callerSource(r.PC)

	var runID string
	var extraParts []string

	collectAttr := func(a slog.Attr, groups []string) {
		if a.Key == RunAttrKey && runID == "" && len(groups) == 0 {
			runID = a.Value.String()
			return
		}
		extraParts = append(extraParts, formatAttr(a, groups))
	}

	for _, a := range h.attrs {
		collectAttr(a, nil)
	}
	r.Attrs(func(a slog.Attr) bool {
		collectAttr(a, h.groups)
		return true
	})

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s [%s] %s: ", timeStr, h.serviceName, r.Level.String(), source)
	if runID != "" {
		b.WriteString(RunAttrKey + "=" + runID + " ")
	}
	b.WriteString(r.Message)
	for _, part := range extraParts {
		b.WriteByte(' ')
		b.WriteString(part)
	}
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.writer, b.String())
	return err
}

// WithAttrs returns a new Handler with the given attributes pre-set. Group
// prefixes active at this point are folded into the attribute keys.
func (h *ServiceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	for _, a := range attrs {
		if len(h.groups) > 0 {
			a = slog.Attr{Key: strings.Join(h.groups, ".") + "." + a.Key, Value: a.Value}
		}
		newAttrs = append(newAttrs, a)
	}
	clone := *h
	clone.attrs = newAttrs
	return &clone
}

// WithGroup returns a new Handler with the given group name prepended to
// subsequent attribute keys.
func (h *ServiceHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	clone := *h
	clone.groups = append(newGroups, name)
	return &clone
}

// InitLogger initializes the default slog logger with a ServiceHandler.
// It always writes to stdout. If config.LogDir is set, it also writes to
// <LogDir>/<timestamp>_<pid>_<LogName>.txt (LogName defaults to serviceName).
func InitLogger(serviceName string, config Config) *slog.Logger {
	writers := []io.Writer{os.Stdout}

	if config.LogDir != "" {
		if file, err := openLogFile(serviceName, config); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
		} else {
			writers = append(writers, file)
		}
	}

	logger := slog.New(NewServiceHandler(serviceName, config.Level, io.MultiWriter(writers...)))
	slog.SetDefault(logger)

	logger.Info("Starting service ...")

	return logger
}

func openLogFile(serviceName string, config Config) (*os.File, error) {
	if err := os.MkdirAll(config.LogDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", config.LogDir, err)
	}
	logName := config.LogName
	if logName == "" {
		logName = serviceName
	}
	timestamp := time.Now().Format("2006-01-02T15-04-05")
	fileName := fmt.Sprintf("%s_%d_%s.txt", timestamp, os.Getpid(), logName)
	filePath := filepath.Join(config.LogDir, fileName)

	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", filePath, err)
	}
	return file, nil
}

// Discard returns a logger that drops everything. Handy for tests and for
// library callers that do not care about logs.
func Discard() *slog.Logger {
	return slog.New(NewServiceHandler("discard", slog.LevelError+1, io.Discard))
}

// callerSource extracts the Go package name from the program counter.
func callerSource(pc uintptr) string {
	if pc == 0 {
		return "unknown"
	}
	frames := runtime.CallersFrames([]uintptr{pc})
	f, _ := frames.Next()
	if f.Function == "" {
		return "unknown"
	}
	parts := strings.Split(f.Function, "/")
	lastPart := parts[len(parts)-1]
	if idx := strings.Index(lastPart, "."); idx >= 0 {
		return lastPart[:idx]
	}
	return lastPart
}

func formatAttr(a slog.Attr, groups []string) string {
	key := a.Key
	if len(groups) > 0 {
		key = strings.Join(groups, ".") + "." + key
	}
	return fmt.Sprintf("%s=%s", key, a.Value.String())
}
