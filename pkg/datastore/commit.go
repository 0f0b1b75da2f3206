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

package datastore

import (
	"context"
	"fmt"
	"strings"
)

// GetPrefix implements DataStore.GetPrefix on top of the Backend primitives.
func GetPrefix(ctx context.Context, b Backend, prefix string, committed Committed) (map[Key]string, error) {
	keys, err := b.ListPopulatedKeys(ctx, prefix, committed)
	if err != nil {
		return nil, err
	}

	result := make(map[Key]string, len(keys))

	for key := range keys {
		value, ok, err := b.GetKey(ctx, key, committed)
		if err != nil {
			return nil, err
		}
		// listed but gone: removed concurrently
		if !ok {
			continue
		}

		result[key] = value
	}

	return result, nil
}

// SetKeys implements DataStore.SetKeys on top of SetKey.
func SetKeys(ctx context.Context, b Backend, pairs map[Key]string, committed Committed) error {
	for key, value := range pairs {
		if err := b.SetKey(ctx, key, value, committed); err != nil {
			return fmt.Errorf("failed to set %s: %w", key, err)
		}
	}

	return nil
}

// GetMetadataPrefix implements DataStore.GetMetadataPrefix on top of the Backend primitives.
func GetMetadataPrefix(ctx context.Context, b Backend, prefix string, committed Committed, metaKeyName string) (map[Key]map[Key]string, error) {
	listed, err := b.ListPopulatedMetadata(ctx, prefix, committed, metaKeyName)
	if err != nil {
		return nil, err
	}

	result := make(map[Key]map[Key]string, len(listed))

	for dataKey, metaKeys := range listed {
		for metaKey := range metaKeys {
			value, ok, err := b.GetMetadata(ctx, metaKey, dataKey, committed)
			if err != nil {
				return nil, err
			}

			if !ok {
				continue
			}

			if result[dataKey] == nil {
				result[dataKey] = make(map[Key]string)
			}

			result[dataKey][metaKey] = value
		}
	}

	return result, nil
}

// ApplyCommit runs checker on the pending dataset of tx and applies its verdict.
//
// A rejection or a checker error leaves Live and Pending untouched. On approval the
// settings, then the metadata are written into Live and the transaction is deleted.
// The returned set holds the promoted setting keys.
func ApplyCommit(ctx context.Context, ds DataStore, tx string, checker ConstraintChecker) (KeySet, error) {
	if err := ValidateTransaction(tx); err != nil {
		return nil, err
	}

	if checker == nil {
		return nil, ErrNilChecker
	}

	result, err := checker.Check(ctx, ds, Pending(tx))
	if err != nil {
		return nil, fmt.Errorf("constraint check of transaction %q failed: %w", tx, err)
	}

	if !result.IsApproved() {
		return nil, &ConstraintRejectError{Transaction: tx, Reason: result.Reason()}
	}

	write := result.Write()
	committed := NewKeySet()

	if len(write.Settings) > 0 {
		if err := ds.SetKeys(ctx, write.Settings, Live); err != nil {
			return nil, fmt.Errorf("failed to write approved settings of transaction %q: %w", tx, err)
		}

		for key := range write.Settings {
			committed.Add(key)
		}
	}

	for _, md := range write.Metadata {
		if err := ds.SetMetadata(ctx, md.MetadataKey, md.DataKey, md.Value, Live); err != nil {
			return nil, fmt.Errorf("failed to write approved metadata of transaction %q: %w", tx, err)
		}
	}

	if _, err := ds.DeleteTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to delete committed transaction %q: %w", tx, err)
	}

	return committed, nil
}

// HasPrefix reports whether key falls under the plain string prefix used by listings.
func HasPrefix(key Key, prefix string) bool {
	return strings.HasPrefix(key.name, prefix)
}
