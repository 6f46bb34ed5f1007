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

package config

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func writeTree(t *testing.T, files ...string) string {
	t.Helper()
	root := t.TempDir()
	for _, f := range files {
		path := filepath.Join(root, f)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir failed: %v", err)
		}
		if err := os.WriteFile(path, []byte("sleep 1\n"), 0o644); err != nil {
			t.Fatalf("write failed: %v", err)
		}
	}
	return root
}

func rel(t *testing.T, root string, paths []string) []string {
	t.Helper()
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		r, err := filepath.Rel(root, p)
		if err != nil {
			t.Fatalf("rel failed: %v", err)
		}
		out = append(out, filepath.ToSlash(r))
	}
	return out
}

func TestCatalogSelect(t *testing.T) {
	root := writeTree(t,
		"victim/ib_write_bw",
		"victim/ib_read_bw",
		"victim/.hidden",
		"attacker/BW/BW-large",
		"attacker/BW/BW-small",
		"attacker/PCIe/PCIe-size_r_1",
		"attacker/Cache/Cache-mr",
	)
	catalog := Catalog{Root: root}

	tests := []struct {
		name          string
		victim        string
		attacker      string
		wantVictims   []string
		wantAttackers []string
	}{
		{
			name:          "everything",
			victim:        "",
			attacker:      "all",
			wantVictims:   []string{"victim/ib_read_bw", "victim/ib_write_bw"},
			wantAttackers: []string{"attacker/BW/BW-large", "attacker/BW/BW-small", "attacker/Cache/Cache-mr", "attacker/PCIe/PCIe-size_r_1"},
		},
		{
			name:          "one type",
			victim:        "ib_write_bw",
			attacker:      "BW-all",
			wantVictims:   []string{"victim/ib_write_bw"},
			wantAttackers: []string{"attacker/BW/BW-large", "attacker/BW/BW-small"},
		},
		{
			name:          "one script",
			victim:        "all",
			attacker:      "PCIe-size_r_1",
			wantVictims:   []string{"victim/ib_read_bw", "victim/ib_write_bw"},
			wantAttackers: []string{"attacker/PCIe/PCIe-size_r_1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			victims, attackers, err := catalog.Select(tt.victim, tt.attacker)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := rel(t, root, victims); !slices.Equal(got, tt.wantVictims) {
				t.Errorf("victims = %v, want %v", got, tt.wantVictims)
			}
			if got := rel(t, root, attackers); !slices.Equal(got, tt.wantAttackers) {
				t.Errorf("attackers = %v, want %v", got, tt.wantAttackers)
			}
		})
	}
}

func TestCatalogSelectErrors(t *testing.T) {
	root := writeTree(t, "victim/ib_write_bw", "attacker/BW/BW-large")
	catalog := Catalog{Root: root}

	tests := []struct {
		name     string
		victim   string
		attacker string
	}{
		{"unknown victim", "nope", "all"},
		{"unknown attacker type", "", "Foo-all"},
		{"attacker without type", "", "large"},
		{"empty attacker type", "", "PU-all"},
		{"unknown attacker script", "", "BW-tiny"},
		{"no attacker selector", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := catalog.Select(tt.victim, tt.attacker)
			if !errors.Is(err, ErrNoWorkloads) {
				t.Errorf("expected ErrNoWorkloads, got %v", err)
			}
		})
	}

	empty := Catalog{Root: t.TempDir()}
	if _, _, err := empty.Select("", "all"); !errors.Is(err, ErrNoWorkloads) {
		t.Errorf("expected ErrNoWorkloads for empty catalog, got %v", err)
	}
}

func TestCatalogAllAttackers(t *testing.T) {
	root := writeTree(t, "attacker/PU/PU-a", "attacker/PU/PU-b", "attacker/Other/x")
	groups, err := Catalog{Root: root}.AllAttackers()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(groups["PU"]) != 2 || len(groups["BW"]) != 0 {
		t.Errorf("unexpected groups: %v", groups)
	}
	if _, ok := groups["Other"]; ok {
		t.Error("unknown attacker types should not be listed")
	}
}
