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
	"fmt"

	"github.com/Masterminds/semver/v3"
	"github.com/spf13/cobra"

	dsfilesystem "github.com/united-manufacturing-hub/umh-datastore/pkg/datastore/filesystem"
	"github.com/united-manufacturing-hub/umh-datastore/pkg/logger"
)

func newInitCmd(a *app) *cobra.Command {
	var datastoreVersion string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create an empty datastore",
		Long: `init lays out an empty datastore of the given version below --root and points
the version links at it. It fails when a datastore directory of that version exists.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			v, err := semver.StrictNewVersion(datastoreVersion)
			if err != nil {
				return a.fail(fmt.Errorf("%w: %q: %w", errInvalidArgument, datastoreVersion, err))
			}

			if err := a.fs.EnsureDirectory(ctx, a.cfg.DatastoreRoot); err != nil {
				return a.fail(err)
			}

			lock, err := acquireLock(ctx, a.cfg.DatastoreRoot, true, a.cfg.LockTimeout, a.log)
			if err != nil {
				return a.fail(err)
			}
			defer lock.Release()

			dir, err := dsfilesystem.Create(ctx, a.fs, a.cfg.DatastoreRoot, v, logger.For(logger.ComponentFilesystem))
			if err != nil {
				return a.fail(err)
			}

			a.log.Infof("Created datastore %s at version %s", dir, v)

			return a.print(map[string]string{"datastore": dir, "version": v.String()})
		},
	}

	cmd.Flags().StringVar(&datastoreVersion, "datastore-version", "", "Version of the new datastore")
	_ = cmd.MarkFlagRequired("datastore-version")

	return cmd
}
