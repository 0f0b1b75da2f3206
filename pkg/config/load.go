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

package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/united-manufacturing-hub/umh-datastore/pkg/env"
	"github.com/united-manufacturing-hub/umh-datastore/pkg/service/filesystem"
)

// LoadMigratorConfig reads path, if not empty, over the defaults and applies the environment.
func LoadMigratorConfig(ctx context.Context, fs filesystem.Service, path string) (MigratorConfig, error) {
	cfg := DefaultMigratorConfig()

	if err := readFile(ctx, fs, path, &cfg); err != nil {
		return MigratorConfig{}, err
	}

	applyCommonEnv(&cfg.CommonConfig)
	overrideString(&cfg.DatastorePath, "DATASTORE_PATH")
	overrideString(&cfg.MigrateToVersion, "MIGRATE_TO_VERSION")
	overrideString(&cfg.MetadataDirectory, "METADATA_DIRECTORY")
	overrideString(&cfg.MigrationDirectory, "MIGRATION_DIRECTORY")

	return cfg, nil
}

// LoadSettingsCtlConfig reads path, if not empty, over the defaults and applies the environment.
func LoadSettingsCtlConfig(ctx context.Context, fs filesystem.Service, path string) (SettingsCtlConfig, error) {
	cfg := DefaultSettingsCtlConfig()

	if err := readFile(ctx, fs, path, &cfg); err != nil {
		return SettingsCtlConfig{}, err
	}

	applyCommonEnv(&cfg.CommonConfig)
	overrideString(&cfg.DatastoreRoot, "ROOT")

	timeout, ok, err := env.GetAsDuration("LOCK_TIMEOUT")
	if err != nil {
		return SettingsCtlConfig{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if ok {
		cfg.LockTimeout = timeout
	}

	pretty, ok, err := env.GetAsBool("PRETTY")
	if err != nil {
		return SettingsCtlConfig{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if ok {
		cfg.Pretty = pretty
	}

	return cfg, nil
}

// readFile decodes the YAML file at path into out. Unknown fields are an error.
func readFile(ctx context.Context, fs filesystem.Service, path string, out any) error {
	if path == "" {
		return nil
	}

	if fs == nil {
		fs = filesystem.NewDefaultService()
	}

	data, err := fs.ReadFile(ctx, path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	// an empty file keeps the defaults
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: failed to parse config file %s: %w", ErrInvalidConfig, path, err)
	}

	return nil
}

func applyCommonEnv(cfg *CommonConfig) {
	overrideString(&cfg.Logging.Level, "LOG_LEVEL")
	overrideString(&cfg.Logging.Format, "LOG_FORMAT")
	overrideString(&cfg.Sentry.DSN, "SENTRY_DSN")
	overrideString(&cfg.Metrics.Textfile, "METRICS_TEXTFILE")
}

func overrideString(field *string, key string) {
	if value, ok := env.GetAsString(key); ok {
		*field = value
	}
}
