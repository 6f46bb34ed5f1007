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
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// AttackerTypes are the attacker families, each a subdirectory of
// <Directory>/attacker.
var AttackerTypes = []string{"BW", "PCIe", "Cache", "PU"}

const (
	victimDir   = "victim"
	attackerDir = "attacker"
	// SelectAll selects every workload of a kind.
	SelectAll = "all"
)

// Catalog indexes the generated workload scripts under a directory root laid
// out as victim/<script> and attacker/<Type>/<script>.
type Catalog struct {
	Root string
}

// Victims returns the paths of all victim scripts, sorted.
func (c Catalog) Victims() ([]string, error) {
	return listScripts(filepath.Join(c.Root, victimDir))
}

// Attackers returns the paths of all attacker scripts of the given type,
// sorted. A missing type directory yields no scripts.
func (c Catalog) Attackers(attackerType string) ([]string, error) {
	return listScripts(filepath.Join(c.Root, attackerDir, attackerType))
}

// AllAttackers returns attacker scripts grouped by type.
func (c Catalog) AllAttackers() (map[string][]string, error) {
	groups := make(map[string][]string, len(AttackerTypes))
	for _, t := range AttackerTypes {
		scripts, err := c.Attackers(t)
		if err != nil {
			return nil, err
		}
		groups[t] = scripts
	}
	return groups, nil
}

// Select resolves a victim and an attacker selector to sorted script paths.
//
// The victim selector is a script name under victim/, or "" / "all" for every
// victim. The attacker selector is "all", "<Type>-all" for a whole type, or a
// script name "<Type>-..." under attacker/<Type>/.
func (c Catalog) Select(victimSel, attackerSel string) (victims, attackers []string, err error) {
	victims, err = c.selectVictims(victimSel)
	if err != nil {
		return nil, nil, err
	}
	attackers, err = c.selectAttackers(attackerSel)
	if err != nil {
		return nil, nil, err
	}
	slices.Sort(victims)
	slices.Sort(attackers)
	return victims, attackers, nil
}

func (c Catalog) selectVictims(sel string) ([]string, error) {
	if sel == "" || sel == SelectAll {
		victims, err := c.Victims()
		if err != nil {
			return nil, err
		}
		if len(victims) == 0 {
			return nil, fmt.Errorf("%w: no victim scripts under %s", ErrNoWorkloads, filepath.Join(c.Root, victimDir))
		}
		return victims, nil
	}
	path := filepath.Join(c.Root, victimDir, sel)
	if !isFile(path) {
		return nil, fmt.Errorf("%w: victim %q not found", ErrNoWorkloads, sel)
	}
	return []string{path}, nil
}

func (c Catalog) selectAttackers(sel string) ([]string, error) {
	var attackers []string
	switch {
	case sel == "":
		return nil, fmt.Errorf("%w: no attacker selected", ErrNoWorkloads)
	case sel == SelectAll:
		groups, err := c.AllAttackers()
		if err != nil {
			return nil, err
		}
		for _, t := range AttackerTypes {
			attackers = append(attackers, groups[t]...)
		}
	default:
		attackerType, rest, ok := strings.Cut(sel, "-")
		if !ok || !slices.Contains(AttackerTypes, attackerType) {
			return nil, fmt.Errorf("%w: attacker %q must start with one of %s followed by '-'",
				ErrNoWorkloads, sel, strings.Join(AttackerTypes, ", "))
		}
		if rest == SelectAll {
			scripts, err := c.Attackers(attackerType)
			if err != nil {
				return nil, err
			}
			attackers = scripts
			break
		}
		path := filepath.Join(c.Root, attackerDir, attackerType, sel)
		if !isFile(path) {
			return nil, fmt.Errorf("%w: attacker %q not found", ErrNoWorkloads, sel)
		}
		attackers = []string{path}
	}
	if len(attackers) == 0 {
		return nil, fmt.Errorf("%w: attacker selector %q matched no scripts", ErrNoWorkloads, sel)
	}
	return attackers, nil
}

func listScripts(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	var scripts []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		scripts = append(scripts, filepath.Join(dir, e.Name()))
	}
	slices.Sort(scripts)
	return scripts, nil
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
