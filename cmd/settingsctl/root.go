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
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/umh-datastore/pkg/config"
	"github.com/united-manufacturing-hub/umh-datastore/pkg/constants"
	"github.com/united-manufacturing-hub/umh-datastore/pkg/ctxutil/ctxrwmutex"
	"github.com/united-manufacturing-hub/umh-datastore/pkg/datastore"
	dsfilesystem "github.com/united-manufacturing-hub/umh-datastore/pkg/datastore/filesystem"
	"github.com/united-manufacturing-hub/umh-datastore/pkg/logger"
	"github.com/united-manufacturing-hub/umh-datastore/pkg/metrics"
	"github.com/united-manufacturing-hub/umh-datastore/pkg/sentry"
	"github.com/united-manufacturing-hub/umh-datastore/pkg/service/filesystem"
	"github.com/united-manufacturing-hub/umh-datastore/pkg/settings"
	"github.com/united-manufacturing-hub/umh-datastore/pkg/version"
)

const appName = "settingsctl"

// app carries what every subcommand needs once the configuration is loaded.
type app struct {
	out io.Writer
	fs  filesystem.Service
	cfg config.SettingsCtlConfig
	log *zap.SugaredLogger

	configPath  string
	root        string
	lockTimeout time.Duration
	pretty      bool
}

func newApp(out io.Writer) *app {
	return &app{out: out, fs: filesystem.NewDefaultService()}
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   appName,
		Short: "Read and write settings of a datastore",
		Long: `settingsctl reads and writes the settings datastore below --root.

Settings are written into named transactions first and become live when the
transaction is committed. A commit is rejected when it would turn a populated
strong setting into a weak one.

Example:
  settingsctl --root /var/lib/umh/datastore init --datastore-version 1.0.0
  settingsctl set --tx boot motd="hello" network.hostname=edge-1
  settingsctl commit boot
  settingsctl get settings.network`,
		Version:       version.GetAppVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "Path to a YAML configuration file")
	flags.StringVar(&a.root, "root", "", "Datastore root directory holding the version links")
	flags.DurationVar(&a.lockTimeout, "lock-timeout", constants.LockAcquireTimeout, "How long to wait for the datastore lock")
	flags.BoolVar(&a.pretty, "pretty", false, "Indent JSON output")

	cmd.AddCommand(
		newInitCmd(a),
		newGetCmd(a),
		newSetCmd(a),
		newCommitCmd(a),
		newTxCmd(a),
		newMetadataCmd(a),
	)

	return cmd
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.LoadSettingsCtlConfig(cmd.Context(), a.fs, a.configPath)
	if err != nil {
		zap.S().Errorf("Failed to load configuration: %s", err)

		return err
	}

	flags := cmd.Flags()
	if flags.Changed("root") {
		cfg.DatastoreRoot = a.root
	}

	if flags.Changed("lock-timeout") {
		cfg.LockTimeout = a.lockTimeout
	}

	if flags.Changed("pretty") {
		cfg.Pretty = a.pretty
	}

	if err := cfg.Validate(); err != nil {
		zap.S().Errorf("Invalid configuration: %s", err)

		return err
	}

	a.cfg = cfg

	logger.Configure(cfg.Logging.Level, cfg.LogFormat())
	a.log = logger.For(logger.ComponentSettingsCtl)

	sentry.InitSentry(cfg.Sentry.DSN, appName, version.GetAppVersion())

	return nil
}

// teardown runs after every command, failed ones included.
func (a *app) teardown() {
	if a.cfg.Metrics.Textfile != "" {
		if err := metrics.WriteTextfile(a.cfg.Metrics.Textfile); err != nil {
			a.log.Warnf("Failed to write metrics to %s: %s", a.cfg.Metrics.Textfile, err)
		}
	}

	sentry.Flush()
}

// withController runs fn against the current datastore while holding the datastore lock,
// exclusive when write is set.
func (a *app) withController(ctx context.Context, write bool, fn func(c *settings.Controller) error) error {
	lock, err := acquireLock(ctx, a.cfg.DatastoreRoot, write, a.cfg.LockTimeout, a.log)
	if err != nil {
		return a.fail(err)
	}
	defer lock.Release()

	store := dsfilesystem.NewDataStore(
		filepath.Join(a.cfg.DatastoreRoot, constants.CurrentLink),
		a.fs,
		logger.For(logger.ComponentDatastore),
	)
	locked := datastore.NewLocked(store, ctxrwmutex.NewCtxRWMutex())

	if err := fn(settings.NewController(locked, logger.For(logger.ComponentSettings))); err != nil {
		return a.fail(err)
	}

	return nil
}

// fail logs err and reports it unless it is a policy rejection.
func (a *app) fail(err error) error {
	if isUserError(err) {
		a.log.Errorf("%s", err)
	} else {
		sentry.ReportIssue(err, sentry.IssueTypeError, a.log)
	}

	return err
}

func (a *app) print(v any) error {
	enc := json.NewEncoder(a.out)
	if a.cfg.Pretty {
		enc.SetIndent("", "  ")
	}

	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	return nil
}
