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

// Package datastore defines the hierarchical key-value store that holds system settings.
//
// A datastore keeps one Live dataset and any number of Pending datasets, one per named
// transaction. Every data key may carry metadata, a small map from meta key to serialized
// scalar. Pending data only reaches Live through CommitTransaction, which asks a
// ConstraintChecker what may be written.
//
// Implementations live in the memory and filesystem sub-packages and share the contract
// suite in datastoretest.
package datastore

import "context"

// Backend is the set of primitives an implementation provides.
// The bulk operations of DataStore are built on top of them by the helpers in this package.
type Backend interface {
	// KeyPopulated reports whether key holds a value in committed.
	KeyPopulated(ctx context.Context, key Key, committed Committed) (bool, error)

	// ListPopulatedKeys returns every data key whose dotted name starts with prefix.
	// The match is a plain string prefix, not segment aware.
	ListPopulatedKeys(ctx context.Context, prefix string, committed Committed) (KeySet, error)

	// ListPopulatedMetadata returns, for each data key under prefix, the meta keys set on it.
	// A non-empty metaKeyName restricts the result to that meta key.
	ListPopulatedMetadata(ctx context.Context, prefix string, committed Committed, metaKeyName string) (map[Key]KeySet, error)

	// GetKey returns the stored value; ok is false when key is not populated.
	GetKey(ctx context.Context, key Key, committed Committed) (value string, ok bool, err error)

	// GetMetadata returns the metadata value metaKey of dataKey.
	GetMetadata(ctx context.Context, metaKey, dataKey Key, committed Committed) (value string, ok bool, err error)

	SetKey(ctx context.Context, key Key, value string, committed Committed) error
	SetMetadata(ctx context.Context, metaKey, dataKey Key, value string, committed Committed) error

	// UnsetKey removes key; removing an unpopulated key is not an error.
	UnsetKey(ctx context.Context, key Key, committed Committed) error

	// UnsetMetadata removes a metadata entry from Live.
	UnsetMetadata(ctx context.Context, metaKey, dataKey Key) error

	// ListTransactions returns the names of all pending transactions, sorted.
	ListTransactions(ctx context.Context) ([]string, error)

	// DeleteTransaction drops everything pending under tx and returns the data keys that
	// were pending. Unknown transactions yield an empty set.
	DeleteTransaction(ctx context.Context, tx string) (KeySet, error)
}

// DataStore is the full contract used by callers.
type DataStore interface {
	Backend

	// GetPrefix returns every populated key under prefix with its value.
	GetPrefix(ctx context.Context, prefix string, committed Committed) (map[Key]string, error)

	// SetKeys writes all pairs into committed.
	SetKeys(ctx context.Context, pairs map[Key]string, committed Committed) error

	// GetMetadataPrefix returns the metadata of every data key under prefix, optionally
	// restricted to one meta key name.
	GetMetadataPrefix(ctx context.Context, prefix string, committed Committed, metaKeyName string) (map[Key]map[Key]string, error)

	// CommitTransaction promotes the pending data of tx into Live as approved by checker,
	// deletes the transaction and returns the promoted keys.
	CommitTransaction(ctx context.Context, tx string, checker ConstraintChecker) (KeySet, error)
}
