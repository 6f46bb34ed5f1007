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

package progress_check

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestReportProgress(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "progress")
	pw, err := NewProgressWriter(path)
	if err != nil {
		t.Fatalf("NewProgressWriter failed: %v", err)
	}
	pw.now = func() time.Time { return time.Unix(1700000000, 500000000) }

	if err := pw.ReportProgress(3, 6); err != nil {
		t.Fatalf("ReportProgress failed: %v", err)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(content) != "1700000000.500000 3 6\n" {
		t.Errorf("unexpected progress line %q", content)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("readdir failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected temp files to be renamed away, found %d entries", len(entries))
	}
}

func TestReportProgressConcurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress")
	pw, err := NewProgressWriter(path)
	if err != nil {
		t.Fatalf("NewProgressWriter failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := 1; i <= 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := pw.ReportProgress(i, 8); err != nil {
				t.Errorf("ReportProgress(%d) failed: %v", i, err)
			}
		}()
	}
	wg.Wait()

	if _, err := os.Stat(path); err != nil {
		t.Errorf("progress file missing: %v", err)
	}
}

func TestNilProgressWriter(t *testing.T) {
	var pw *ProgressWriter
	if err := pw.ReportProgress(1, 1); err != nil {
		t.Errorf("nil writer should be a no-op, got %v", err)
	}
}
