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

package migration

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/united-manufacturing-hub/umh-datastore/pkg/datastore/filesystem"
	"github.com/united-manufacturing-hub/umh-datastore/pkg/metrics"
)

// newWorkDirectory reserves the name of a fresh datastore directory for the target version
// next to the existing ones.
func (m *Migrator) newWorkDirectory(ctx context.Context) (string, error) {
	dir := filepath.Join(m.root, filesystem.NewDirectoryName(m.opts.TargetVersion))

	exists, err := m.fs.PathExists(ctx, dir)
	if err != nil {
		return "", err
	}

	if exists {
		return "", fmt.Errorf("%w: %s", ErrNewVersionExists, dir)
	}

	m.log.Debugf("New datastore is being built at work location %s", dir)

	return dir, nil
}

func (m *Migrator) loadProgram(ctx context.Context, name string) ([]byte, error) {
	rc, err := m.opts.Repository.ReadTarget(ctx, name)
	if err != nil {
		if errors.Is(err, ErrTargetNotFound) {
			return nil, fmt.Errorf("%w: %s: %w", ErrMigrationNotFound, name, err)
		}

		return nil, fmt.Errorf("failed to load migration %s: %w", name, err)
	}
	defer rc.Close()

	program, err := readProgram(rc)
	if err != nil {
		return nil, fmt.Errorf("migration %s: %w", name, err)
	}

	return program, nil
}

// runChain runs every migration on the output of the previous one, starting from source, and
// returns the directory written by the last one. Once a step succeeds the output of the step
// before it is deleted; source itself is never deleted.
func (m *Migrator) runChain(ctx context.Context, source string) (string, error) {
	var intermediate string

	for _, name := range m.migrations {
		program, err := m.loadProgram(ctx, name)
		if err != nil {
			return "", err
		}

		target, err := m.newWorkDirectory(ctx)
		if err != nil {
			return "", err
		}

		args := []string{
			m.direction.String(),
			"--source-datastore", source,
			"--target-datastore", target,
		}

		m.log.Infof("Running migration %s (%016x)", name, xxhash.Sum64(program))
		m.log.Debugf("Migration command: %s %s", name, strings.Join(args, " "))

		start := time.Now()
		output, err := runSealed(ctx, m.fs, name, program, args)

		if err != nil {
			metrics.ObserveMigrationStep(name, metrics.ResultFailure, time.Since(start))

			return "", fmt.Errorf("migration %s: %w", name, err)
		}

		m.logOutput(name, output)

		if !output.Success() {
			metrics.ObserveMigrationStep(name, metrics.ResultFailure, time.Since(start))

			return "", &MigrationFailureError{
				Migration: name,
				ExitCode:  output.ExitCode,
				Stdout:    string(output.Stdout),
				Stderr:    string(output.Stderr),
			}
		}

		metrics.ObserveMigrationStep(name, metrics.ResultSuccess, time.Since(start))

		if intermediate != "" {
			m.deleteIntermediate(ctx, intermediate)
		}

		intermediate = target
		source = target
	}

	return source, nil
}

func (m *Migrator) logOutput(name string, output *ProgramOutput) {
	if len(output.Stdout) > 0 {
		m.log.Debugf("Migration %s stdout: %s", name, output.Stdout)
	} else {
		m.log.Debugf("No migration stdout")
	}

	if len(output.Stderr) > 0 {
		m.log.Errorf("Migration %s stderr: %s", name, output.Stderr)
	} else {
		m.log.Debugf("No migration stderr")
	}
}

// deleteIntermediate removes a finished step's output. Failing to do so does not fail the run.
func (m *Migrator) deleteIntermediate(ctx context.Context, dir string) {
	m.log.Debugf("Removing intermediate datastore at %s", dir)

	if err := m.fs.RemoveAll(ctx, dir); err != nil {
		m.log.Errorf("Failed to remove intermediate datastore at %s: %v", dir, err)
	}
}
