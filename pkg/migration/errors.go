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

// Package migration moves a filesystem datastore from one version to another.
//
// A run reads the current version from the datastore's link chain, looks up the migration
// programs bridging it and the target version in the repository manifest, copies the live
// and pending data without weak settings into a fresh directory, runs every program on the
// output of the previous one and finally flips the link chain to the result.
//
// Nothing is retried and nothing is cleaned up on failure: directories left behind by a
// failed run are kept for inspection.
package migration

import (
	"errors"
	"fmt"
)

var (
	ErrManifestNotFound   = errors.New("manifest not found in repository")
	ErrManifestParse      = errors.New("failed to parse manifest")
	ErrMigrationNotFound  = errors.New("migration not found in repository")
	ErrDecompress         = errors.New("failed to decompress migration")
	ErrStartMigration     = errors.New("failed to start migration")
	ErrNewVersionExists   = errors.New("datastore directory for new version already exists")
	ErrTargetNotFound     = errors.New("target not found")
	ErrTargetVerification = errors.New("target failed verification")
	ErrInvalidTargetName  = errors.New("invalid target name")
)

// MigrationFailureError is returned when a migration program exits unsuccessfully.
type MigrationFailureError struct {
	Migration string
	ExitCode  int
	Stdout    string
	Stderr    string
}

func (e *MigrationFailureError) Error() string {
	return fmt.Sprintf("migration %s failed with exit code %d: %s", e.Migration, e.ExitCode, e.Stderr)
}
