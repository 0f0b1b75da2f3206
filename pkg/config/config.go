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

// Package config loads the configuration of the migrator and settingsctl commands.
//
// Values are taken, from lowest to highest precedence, from the defaults, an optional YAML
// file, UMH_DATASTORE_* environment variables and finally command line flags, which the
// commands apply themselves.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/united-manufacturing-hub/umh-datastore/pkg/constants"
	"github.com/united-manufacturing-hub/umh-datastore/pkg/logger"
)

// ErrInvalidConfig is wrapped by every validation error.
var ErrInvalidConfig = errors.New("invalid configuration")

// LoggingConfig selects the log level and format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SentryConfig enables error reporting when DSN is set.
type SentryConfig struct {
	DSN string `yaml:"dsn"`
}

// MetricsConfig enables writing metrics for the node exporter textfile collector.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

// CommonConfig is shared by both commands.
type CommonConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Sentry  SentryConfig  `yaml:"sentry"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LogFormat returns the configured format, console unless JSON is asked for.
func (c CommonConfig) LogFormat() logger.LogFormat {
	return logger.ParseFormat(c.Logging.Format, logger.FormatConsole)
}

// MigratorConfig configures a migration run.
type MigratorConfig struct {
	CommonConfig `yaml:",inline"`

	// DatastorePath is the live data directory or a link to it, usually <root>/current.
	DatastorePath string `yaml:"datastore_path"`
	// MigrateToVersion is the datastore version to migrate to.
	MigrateToVersion string `yaml:"migrate_to_version"`
	// MetadataDirectory holds the verified targets index.
	MetadataDirectory string `yaml:"metadata_directory"`
	// MigrationDirectory holds the manifest and the compressed migration programs.
	MigrationDirectory string `yaml:"migration_directory"`
}

// TargetVersion parses MigrateToVersion.
func (c MigratorConfig) TargetVersion() (*semver.Version, error) {
	version, err := semver.StrictNewVersion(c.MigrateToVersion)
	if err != nil {
		return nil, fmt.Errorf("%w: migrate_to_version %q: %w", ErrInvalidConfig, c.MigrateToVersion, err)
	}

	return version, nil
}

// Validate checks that every required field is set and the target version parses.
func (c MigratorConfig) Validate() error {
	required := []struct{ name, value string }{
		{"datastore_path", c.DatastorePath},
		{"migrate_to_version", c.MigrateToVersion},
		{"metadata_directory", c.MetadataDirectory},
		{"migration_directory", c.MigrationDirectory},
	}

	for _, field := range required {
		if field.value == "" {
			return fmt.Errorf("%w: %s is required", ErrInvalidConfig, field.name)
		}
	}

	_, err := c.TargetVersion()

	return err
}

// SettingsCtlConfig configures settingsctl.
type SettingsCtlConfig struct {
	CommonConfig `yaml:",inline"`

	// DatastoreRoot is the directory holding the version links and the data directories.
	DatastoreRoot string `yaml:"datastore_root"`
	// LockTimeout bounds the wait for the datastore lock.
	LockTimeout time.Duration `yaml:"lock_timeout"`
	// Pretty indents JSON output.
	Pretty bool `yaml:"pretty"`
}

// Validate checks that every required field is set.
func (c SettingsCtlConfig) Validate() error {
	if c.DatastoreRoot == "" {
		return fmt.Errorf("%w: datastore_root is required", ErrInvalidConfig)
	}

	if c.LockTimeout <= 0 {
		return fmt.Errorf("%w: lock_timeout must be positive", ErrInvalidConfig)
	}

	return nil
}

func defaultCommon() CommonConfig {
	return CommonConfig{
		Logging: LoggingConfig{
			Level:  string(logger.ProductionLevel),
			Format: string(logger.FormatConsole),
		},
	}
}

// DefaultMigratorConfig returns the configuration before any file, variable or flag is applied.
func DefaultMigratorConfig() MigratorConfig {
	return MigratorConfig{CommonConfig: defaultCommon()}
}

// DefaultSettingsCtlConfig returns the configuration before any file, variable or flag is applied.
func DefaultSettingsCtlConfig() SettingsCtlConfig {
	return SettingsCtlConfig{
		CommonConfig: defaultCommon(),
		LockTimeout:  constants.LockAcquireTimeout,
	}
}
