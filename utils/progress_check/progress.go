/*
SPDX-FileCopyrightText: Copyright (c) 2026 NVIDIA CORPORATION. All rights reserved.

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

// Package progress_check lets an external watchdog observe a long test batch.
// The progress file always holds a single line "<unix-ts> <done> <total>".
package progress_check

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ProgressWriter rewrites the progress file after every finished test case.
// It is safe for concurrent use.
type ProgressWriter struct {
	filename string
	mu       sync.Mutex
	now      func() time.Time
}

// NewProgressWriter creates a ProgressWriter for filename, creating its
// directory if needed.
func NewProgressWriter(filename string) (*ProgressWriter, error) {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create progress directory %s: %w", dir, err)
	}
	return &ProgressWriter{filename: filename, now: time.Now}, nil
}

// ReportProgress records that done of total test cases have finished. The
// file is replaced atomically so readers never see a partial line.
func (pw *ProgressWriter) ReportProgress(done, total int) error {
	if pw == nil {
		return nil
	}
	pw.mu.Lock()
	defer pw.mu.Unlock()

	tempFile := fmt.Sprintf("%s-%s.tmp", pw.filename, uuid.New().String())
	timestamp := strconv.FormatFloat(float64(pw.now().UnixNano())/1e9, 'f', 6, 64)
	content := fmt.Sprintf("%s %d %d\n", timestamp, done, total)

	if err := os.WriteFile(tempFile, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write progress to temp file %s: %w", tempFile, err)
	}
	if err := os.Rename(tempFile, pw.filename); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temp file %s to %s: %w", tempFile, pw.filename, err)
	}
	return nil
}
