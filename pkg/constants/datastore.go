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

import "os"

const (
	// AmountReadersForDatastore is the weight of the datastore reader/writer lock.
	// A writer takes the whole weight, each reader one unit.
	AmountReadersForDatastore = 100

	// LiveDirectory is the dataset directory holding committed settings.
	LiveDirectory = "live"
	// PendingDirectory holds one dataset directory per transaction.
	PendingDirectory = "pending"
	// DataDirectory is the per-dataset subtree with one file per data key.
	DataDirectory = "data"
	// MetadataDirectory is the per-dataset subtree with one file per metadata entry.
	MetadataDirectory = "metadata"
	// DataFileSuffix is appended to the last segment of a data key file.
	DataFileSuffix = "value"

	// TempFilePrefix marks files and links that are written before being renamed into place.
	// Listings skip every dot-prefixed entry.
	TempFilePrefix = ".tmp-"

	// CurrentLink is the name of the top symlink of the version chain.
	CurrentLink = "current"
	// LockFile is taken with flock by processes writing the datastore.
	LockFile = ".lock"

	// DatastoreDirPerm is used for every directory the datastore creates.
	DatastoreDirPerm os.FileMode = 0o755
	// DatastoreFilePerm is used for key and metadata files.
	DatastoreFilePerm os.FileMode = 0o644
)
