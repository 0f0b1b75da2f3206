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

package settings

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/umh-datastore/pkg/datastore"
	"github.com/united-manufacturing-hub/umh-datastore/pkg/logger"
)

// StrengthChecker is the constraint check applied when a settings transaction is committed.
//
// Every pending setting is approved. A pending strength change is carried over to Live,
// except that a populated strong setting can never be made weak: such a transaction is
// rejected as a whole.
type StrengthChecker struct {
	log *zap.SugaredLogger
}

// NewStrengthCheck returns the strength checker. A nil log disables logging.
func NewStrengthCheck(log *zap.SugaredLogger) *StrengthChecker {
	return &StrengthChecker{log: logger.OrNop(log)}
}

// StrengthCheck is a StrengthChecker without logging.
var StrengthCheck datastore.ConstraintChecker = NewStrengthCheck(nil)

// Check implements datastore.ConstraintChecker.
func (c *StrengthChecker) Check(ctx context.Context, ds datastore.DataStore, pending datastore.Committed) (datastore.ConstraintCheckResult, error) {
	if pending.IsLive() {
		return datastore.ConstraintCheckResult{}, fmt.Errorf("strength check needs a pending transaction: %w", datastore.ErrInvalidTransaction)
	}

	pendingSettings, err := ds.GetPrefix(ctx, Prefix, pending)
	if err != nil {
		return datastore.ConstraintCheckResult{}, fmt.Errorf("failed to read pending settings: %w", err)
	}

	pendingMetadata, err := ds.GetMetadataPrefix(ctx, Prefix, pending, "")
	if err != nil {
		return datastore.ConstraintCheckResult{}, fmt.Errorf("failed to read pending metadata: %w", err)
	}

	strengthKey := strengthMetaKey()

	var metadata []datastore.MetadataWrite

	for _, dataKey := range sortedMetadataKeys(pendingMetadata) {
		for metaKey, value := range pendingMetadata[dataKey] {
			if metaKey != strengthKey {
				c.log.Debugf("Ignoring pending metadata %s of %s, only strength is committed", metaKey, dataKey)

				continue
			}

			write, reject, err := c.checkStrength(ctx, ds, dataKey, value)
			if err != nil {
				return datastore.ConstraintCheckResult{}, err
			}

			if reject != "" {
				c.log.Infof("Rejecting transaction %s: %s", pending.Transaction(), reject)

				return datastore.Reject(reject), nil
			}

			if write != nil {
				metadata = append(metadata, *write)
			}
		}
	}

	return datastore.Approve(datastore.ApprovedWrite{
		Settings: pendingSettings,
		Metadata: metadata,
	}), nil
}

// checkStrength decides on one pending strength entry. It returns the metadata to write, a
// rejection reason, or neither when the strength does not change.
func (c *StrengthChecker) checkStrength(ctx context.Context, ds datastore.DataStore, dataKey datastore.Key, value string) (*datastore.MetadataWrite, string, error) {
	strengthKey := strengthMetaKey()

	pendingStrength, err := decodeStrength(value)
	if err != nil {
		return nil, "", fmt.Errorf("pending strength of %s: %w", dataKey, err)
	}

	committedStrength := DefaultStrength

	committedValue, ok, err := ds.GetMetadata(ctx, strengthKey, dataKey, datastore.Live)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read strength of %s: %w", dataKey, err)
	}

	if ok {
		committedStrength, err = decodeStrength(committedValue)
		if err != nil {
			return nil, "", fmt.Errorf("committed strength of %s: %w", dataKey, err)
		}
	}

	populated, err := ds.KeyPopulated(ctx, dataKey, datastore.Live)
	if err != nil {
		return nil, "", fmt.Errorf("failed to check whether %s is populated: %w", dataKey, err)
	}

	switch {
	case pendingStrength == committedStrength:
		return nil, "", nil
	case pendingStrength == Weak && populated:
		return nil, fmt.Sprintf("Cannot change setting %s strength from strong to weak", dataKey), nil
	default:
		c.log.Debugf("Changing strength of %s from %s to %s", dataKey, committedStrength, pendingStrength)

		return &datastore.MetadataWrite{
			MetadataKey: strengthKey,
			DataKey:     dataKey,
			Value:       value,
		}, "", nil
	}
}

func sortedMetadataKeys(md map[datastore.Key]map[datastore.Key]string) []datastore.Key {
	keys := datastore.NewKeySet()
	for k := range md {
		keys.Add(k)
	}

	return keys.Sorted()
}
