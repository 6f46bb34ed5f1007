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
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/host-bench/rdma-bench/internal/config"
	"github.com/host-bench/rdma-bench/pkg/args"
)

func newListCommand(flags *args.GlobalFlagPointers) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the victim and attacker workloads of the configured directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(flags.ConfigPath())
			if err != nil {
				return err
			}
			return writeCatalog(cmd.OutOrStdout(), config.Catalog{Root: cfg.Directory})
		},
	}
}

// writeCatalog prints victims, then attackers grouped by type.
func writeCatalog(w io.Writer, catalog config.Catalog) error {
	victims, err := catalog.Victims()
	if err != nil {
		return err
	}
	attackers, err := catalog.AllAttackers()
	if err != nil {
		return err
	}

	fmt.Fprintln(w, "Victims:")
	for _, v := range victims {
		fmt.Fprintf(w, "      %s\n", filepath.Base(v))
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Attackers:")
	for _, t := range config.AttackerTypes {
		fmt.Fprintf(w, "  %s -\n", t)
		for _, a := range attackers[t] {
			fmt.Fprintf(w, "      %s\n", filepath.Base(a))
		}
	}
	return nil
}
