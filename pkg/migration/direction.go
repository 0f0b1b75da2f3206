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

import "github.com/Masterminds/semver/v3"

// Direction tells a migration program which way to transform the datastore.
type Direction int

const (
	Forward Direction = iota
	Backward
)

// String returns the command line flag passed to migration programs.
func (d Direction) String() string {
	if d == Backward {
		return "--backward"
	}

	return "--forward"
}

// Label is the direction as used in metrics and logs.
func (d Direction) Label() string {
	if d == Backward {
		return "backward"
	}

	return "forward"
}

// DirectionFromVersions returns the direction from one version to another. The second result
// is false when both are equal and there is nothing to migrate.
func DirectionFromVersions(from, to *semver.Version) (Direction, bool) {
	switch from.Compare(to) {
	case -1:
		return Forward, true
	case 1:
		return Backward, true
	default:
		return Forward, false
	}
}
