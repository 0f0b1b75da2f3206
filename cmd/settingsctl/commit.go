// Copyright 2025 UMH Systems GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"github.com/spf13/cobra"

	"github.com/united-manufacturing-hub/umh-datastore/pkg/settings"
)

func newCommitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "commit <tx>",
		Short: "Make the settings of a transaction live",
		Long: `commit checks the transaction against the strength policy and, when it is
accepted, writes its settings into the live dataset and removes the transaction.
A rejected transaction is kept unchanged.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			return a.withController(ctx, true, func(c *settings.Controller) error {
				committed, err := c.CommitTransaction(ctx, args[0])
				if err != nil {
					return err
				}

				return a.print(map[string]any{"transaction": args[0], "committed": committed.Names()})
			})
		},
	}
}
