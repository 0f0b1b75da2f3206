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

// Command migrator moves a filesystem datastore to another version by running the
// migration programs of a repository.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/umh-datastore/pkg/config"
	"github.com/united-manufacturing-hub/umh-datastore/pkg/logger"
	"github.com/united-manufacturing-hub/umh-datastore/pkg/metrics"
	"github.com/united-manufacturing-hub/umh-datastore/pkg/migration"
	"github.com/united-manufacturing-hub/umh-datastore/pkg/sentry"
	"github.com/united-manufacturing-hub/umh-datastore/pkg/service/filesystem"
	"github.com/united-manufacturing-hub/umh-datastore/pkg/version"
)

const appName = "migrator"

type options struct {
	configPath         string
	datastorePath      string
	migrateToVersion   string
	metadataDirectory  string
	migrationDirectory string
	logLevel           string
}

func main() {
	logger.Initialize()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := newRootCmd().ExecuteContext(ctx)

	stop()
	_ = logger.Sync()

	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Migrate a datastore to another version",
		Long: `migrator reads the version of the datastore behind --datastore-path, runs the
migration programs that lead to --migrate-to-version and points the datastore's
version links at the result.

Weak settings are dropped on the way. A failed run leaves the datastore untouched.

Example:
  migrator --datastore-path /var/lib/umh/datastore/current \
    --migrate-to-version 1.2.0 \
    --metadata-directory /var/lib/umh/migrations/metadata \
    --migration-directory /var/lib/umh/migrations/targets`,
		Version:       version.GetAppVersion(),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.configPath, "config", "", "Path to a YAML configuration file")
	flags.StringVar(&opts.datastorePath, "datastore-path", "", "Path to the datastore to migrate, usually <root>/current")
	flags.StringVar(&opts.migrateToVersion, "migrate-to-version", "", "Datastore version to migrate to")
	flags.StringVar(&opts.metadataDirectory, "metadata-directory", "", "Directory holding the verified targets index")
	flags.StringVar(&opts.migrationDirectory, "migration-directory", "", "Directory holding the manifest and migration programs")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level (DEBUG, INFO, WARN, ERROR)")

	return cmd
}

// loadConfig layers the changed flags over the file and environment configuration.
func loadConfig(cmd *cobra.Command, opts *options, fs filesystem.Service) (config.MigratorConfig, error) {
	cfg, err := config.LoadMigratorConfig(cmd.Context(), fs, opts.configPath)
	if err != nil {
		return config.MigratorConfig{}, err
	}

	flags := cmd.Flags()
	overrides := []struct {
		flag  string
		value string
		dst   *string
	}{
		{"datastore-path", opts.datastorePath, &cfg.DatastorePath},
		{"migrate-to-version", opts.migrateToVersion, &cfg.MigrateToVersion},
		{"metadata-directory", opts.metadataDirectory, &cfg.MetadataDirectory},
		{"migration-directory", opts.migrationDirectory, &cfg.MigrationDirectory},
		{"log-level", opts.logLevel, &cfg.Logging.Level},
	}

	for _, o := range overrides {
		if flags.Changed(o.flag) {
			*o.dst = o.value
		}
	}

	return cfg, cfg.Validate()
}

func run(cmd *cobra.Command, opts *options) error {
	ctx := cmd.Context()
	fs := filesystem.NewDefaultService()

	cfg, err := loadConfig(cmd, opts, fs)
	if err != nil {
		zap.S().Errorf("Failed to load configuration: %s", err)

		return err
	}

	logger.Configure(cfg.Logging.Level, cfg.LogFormat())
	log := logger.For(logger.ComponentMigrator)

	sentry.InitSentry(cfg.Sentry.DSN, appName, version.GetAppVersion())
	defer sentry.Flush()

	if cfg.Metrics.Textfile != "" {
		defer func() {
			if err := metrics.WriteTextfile(cfg.Metrics.Textfile); err != nil {
				log.Warnf("Failed to write metrics to %s: %s", cfg.Metrics.Textfile, err)
			}
		}()
	}

	result, err := migrate(ctx, cfg, fs, log)
	if err != nil {
		var failure *migration.MigrationFailureError
		if errors.As(err, &failure) {
			sentry.ReportMigrationError(log, failure.Migration, err)
		} else {
			sentry.ReportIssuef(sentry.IssueTypeFatal, log, "Migration run failed: %w", err)
		}

		return err
	}

	switch {
	case result.UpToDate:
		log.Infof("Datastore is already at version %s", result.To)
	case len(result.Migrations) == 0:
		log.Infof("Datastore moved from %s to %s without migrations, now at %s", result.From, result.To, result.Datastore)
	default:
		log.Infof("Datastore migrated %s from %s to %s with %d migrations, now at %s",
			result.Direction.Label(), result.From, result.To, len(result.Migrations), result.Datastore)
	}

	return nil
}

func migrate(ctx context.Context, cfg config.MigratorConfig, fs filesystem.Service, log *zap.SugaredLogger) (*migration.Result, error) {
	target, err := cfg.TargetVersion()
	if err != nil {
		return nil, err
	}

	repository, err := migration.NewDirectoryRepository(ctx, fs, cfg.MetadataDirectory, cfg.MigrationDirectory, log)
	if err != nil {
		return nil, err
	}

	migrator, err := migration.NewMigrator(migration.Options{
		DatastorePath: cfg.DatastorePath,
		TargetVersion: target,
		Repository:    repository,
		FileSystem:    fs,
		Logger:        log,
	})
	if err != nil {
		return nil, err
	}

	return migrator.Run(ctx)
}
