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
	"errors"

	"github.com/united-manufacturing-hub/umh-datastore/pkg/datastore"
	dsfilesystem "github.com/united-manufacturing-hub/umh-datastore/pkg/datastore/filesystem"
	"github.com/united-manufacturing-hub/umh-datastore/pkg/settings"
)

var errInvalidArgument = errors.New("invalid argument")

var userErrors = []error{
	errInvalidArgument,
	errLockBusy,
	datastore.ErrConstraintRejected,
	datastore.ErrInvalidKey,
	datastore.ErrKeyTooLong,
	datastore.ErrInvalidTransaction,
	datastore.ErrNotScalar,
	settings.ErrConflictingSettings,
	settings.ErrInvalidStrength,
	dsfilesystem.ErrDatastoreExists,
}

// isUserError reports whether err was caused by the input rather than by the datastore.
func isUserError(err error) bool {
	for _, target := range userErrors {
		if errors.Is(err, target) {
			return true
		}
	}

	return false
}
