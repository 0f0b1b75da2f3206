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

package constants

import (
	"os"
	"time"
)

const (
	// ManifestTarget is the repository target listing the available migrations.
	ManifestTarget = "manifest.json"
	// TargetsIndexFile is the verified targets index read by the directory repository.
	TargetsIndexFile = "targets.json"

	// WorkDirectoryRandomLength is the number of random hex characters in the name of a
	// datastore directory created by a migration run.
	WorkDirectoryRandomLength = 16

	// MigrationProgramPerm is used for the fallback on-disk copy of a migration program.
	MigrationProgramPerm os.FileMode = 0o700

	// LockAcquireTimeout bounds how long settingsctl waits for the datastore lock file.
	LockAcquireTimeout = 30 * time.Second
)

// DefaultAppVersion is reported when the binaries are built without a version.
const DefaultAppVersion = "0.0.0-dev"

const (
	DefaultDevelopmentEnvironment = "development"
	DefaultProductionEnvironment  = "production"
)
