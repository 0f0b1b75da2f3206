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

	"github.com/united-manufacturing-hub/umh-datastore/pkg/datastore"
	"github.com/united-manufacturing-hub/umh-datastore/pkg/settings"
)

func newGetCmd(a *app) *cobra.Command {
	var pending string

	cmd := &cobra.Command{
		Use:   "get [prefix]",
		Short: "Print settings as a JSON document",
		Long: `get prints the live settings, or those of the transaction named by --pending.
With a prefix only the settings below it are printed.

Example:
  settingsctl get
  settingsctl get settings.network
  settingsctl get --pending boot`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			committed := datastore.Live
			if pending != "" {
				committed = datastore.Pending(pending)
			}

			return a.withController(cmd.Context(), false, func(c *settings.Controller) error {
				var (
					document map[string]any
					err      error
				)

				if len(args) == 1 {
					document, err = c.GetSettingsPrefix(cmd.Context(), args[0], committed)
				} else {
					document, err = c.GetSettings(cmd.Context(), committed)
				}

				if err != nil {
					return err
				}

				return a.print(document)
			})
		},
	}

	cmd.Flags().StringVar(&pending, "pending", "", "Read the settings of this transaction instead of the live ones")

	return cmd
}
