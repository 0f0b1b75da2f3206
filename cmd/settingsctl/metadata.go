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

func newMetadataCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "metadata",
		Short: "Query metadata of live settings",
	}

	cmd.AddCommand(newMetadataGetCmd(a), newMetadataGeneratorsCmd(a))

	return cmd
}

func newMetadataGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <name> [key ...]",
		Short: "Print the metadata named <name> of the given keys, or of all keys",
		Example: `  settingsctl metadata get strength
  settingsctl metadata get strength settings.motd settings.network.mtu`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			return a.withController(ctx, false, func(c *settings.Controller) error {
				var (
					result map[string]any
					err    error
				)

				if len(args) > 1 {
					result, err = c.GetMetadataForDataKeys(ctx, args[0], args[1:])
				} else {
					result, err = c.GetMetadataForAllDataKeys(ctx, args[0])
				}

				if err != nil {
					return err
				}

				return a.print(result)
			})
		},
	}
}

func newMetadataGeneratorsCmd(a *app) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "generators",
		Short: "Print the settings generators expanded onto every key they apply to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			return a.withController(ctx, false, func(c *settings.Controller) error {
				generators, err := c.GetSettingsGeneratorMetadata(ctx, name)
				if err != nil {
					return err
				}

				return a.print(generators)
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", settings.GeneratorMetadataKey, "Metadata name holding the generators")

	return cmd
}
