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

func newTxCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tx",
		Short: "Inspect and delete pending transactions",
	}

	cmd.AddCommand(newTxListCmd(a), newTxShowCmd(a), newTxDeleteCmd(a))

	return cmd
}

func newTxListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List pending transactions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withController(cmd.Context(), false, func(c *settings.Controller) error {
				txs, err := c.ListTransactions(cmd.Context())
				if err != nil {
					return err
				}

				if txs == nil {
					txs = []string{}
				}

				return a.print(txs)
			})
		},
	}
}

func newTxShowCmd(a *app) *cobra.Command {
	var (
		metadata bool
		metaName string
	)

	cmd := &cobra.Command{
		Use:   "show <tx>",
		Short: "Print the settings or metadata of a transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			return a.withController(ctx, false, func(c *settings.Controller) error {
				if metadata || metaName != "" {
					md, err := c.GetTransactionMetadata(ctx, args[0], metaName)
					if err != nil {
						return err
					}

					return a.print(md)
				}

				document, err := c.GetTransaction(ctx, args[0])
				if err != nil {
					return err
				}

				return a.print(document)
			})
		},
	}

	cmd.Flags().BoolVar(&metadata, "metadata", false, "Print metadata instead of settings")
	cmd.Flags().StringVar(&metaName, "name", "", "Only print metadata with this name, implies --metadata")

	return cmd
}

func newTxDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <tx>",
		Short: "Delete a pending transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			return a.withController(ctx, true, func(c *settings.Controller) error {
				deleted, err := c.DeleteTransaction(ctx, args[0])
				if err != nil {
					return err
				}

				return a.print(map[string]any{"transaction": args[0], "deleted": deleted.Names()})
			})
		},
	}
}
