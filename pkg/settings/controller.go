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
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/umh-datastore/pkg/datastore"
	"github.com/united-manufacturing-hub/umh-datastore/pkg/logger"
	"github.com/united-manufacturing-hub/umh-datastore/pkg/metrics"
)

// Controller implements the settings operations on top of a datastore. Locking is up to the
// caller: pass a *datastore.Locked when the store is shared.
type Controller struct {
	ds      datastore.DataStore
	checker datastore.ConstraintChecker
	log     *zap.SugaredLogger
}

// NewController returns a controller committing with the strength policy.
func NewController(ds datastore.DataStore, log *zap.SugaredLogger) *Controller {
	log = logger.OrNop(log)

	return &Controller{
		ds:      ds,
		checker: NewStrengthCheck(log),
		log:     log,
	}
}

// SetSettings writes the settings document into transaction tx, recording strength for every
// key it touches.
func (c *Controller) SetSettings(ctx context.Context, document map[string]any, tx string, strength Strength) (datastore.KeySet, error) {
	if err := datastore.ValidateTransaction(tx); err != nil {
		return nil, err
	}

	if _, err := ParseStrength(string(strength)); err != nil {
		return nil, err
	}

	pairs, err := Flatten(document)
	if err != nil {
		return nil, err
	}

	encoded, err := encodeStrength(strength)
	if err != nil {
		return nil, err
	}

	pending := datastore.Pending(tx)
	strengthKey := strengthMetaKey()
	written := keySetOf(pairs)

	for _, key := range written.Sorted() {
		if err := c.ds.SetMetadata(ctx, strengthKey, key, encoded, pending); err != nil {
			return nil, fmt.Errorf("failed to set strength of %s: %w", key, err)
		}
	}

	if err := c.ds.SetKeys(ctx, pairs, pending); err != nil {
		return nil, fmt.Errorf("failed to set settings in transaction %q: %w", tx, err)
	}

	c.log.Debugf("Wrote %d %s settings into transaction %s", len(pairs), strength, tx)

	return written, nil
}

// GetTransaction returns the pending settings of tx.
func (c *Controller) GetTransaction(ctx context.Context, tx string) (map[string]any, error) {
	if err := datastore.ValidateTransaction(tx); err != nil {
		return nil, err
	}

	return c.settingsWithPrefix(ctx, Prefix, datastore.Pending(tx))
}

// GetTransactionMetadata returns the pending metadata of the settings in tx, optionally
// restricted to one metadata name.
func (c *Controller) GetTransactionMetadata(ctx context.Context, tx, metaKeyName string) (map[string]map[string]any, error) {
	if err := datastore.ValidateTransaction(tx); err != nil {
		return nil, err
	}

	md, err := c.ds.GetMetadataPrefix(ctx, Prefix, datastore.Pending(tx), metaKeyName)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata of transaction %q: %w", tx, err)
	}

	return decodeMetadata(md)
}

// ListTransactions returns the names of all pending transactions.
func (c *Controller) ListTransactions(ctx context.Context) ([]string, error) {
	return c.ds.ListTransactions(ctx)
}

// DeleteTransaction drops tx and returns the keys it held.
func (c *Controller) DeleteTransaction(ctx context.Context, tx string) (datastore.KeySet, error) {
	if err := datastore.ValidateTransaction(tx); err != nil {
		return nil, err
	}

	deleted, err := c.ds.DeleteTransaction(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("failed to delete transaction %q: %w", tx, err)
	}

	c.log.Infof("Deleted transaction %s with %d keys", tx, len(deleted))

	return deleted, nil
}

// CommitTransaction promotes tx into Live under the strength policy.
func (c *Controller) CommitTransaction(ctx context.Context, tx string) (datastore.KeySet, error) {
	committed, err := c.ds.CommitTransaction(ctx, tx, c.checker)
	if err != nil {
		if errors.Is(err, datastore.ErrConstraintRejected) {
			metrics.RecordCommit(metrics.ResultRejected)
		} else {
			metrics.RecordCommit(metrics.ResultFailure)
			metrics.IncErrorCount(metrics.ComponentSettings)
		}

		return nil, err
	}

	metrics.RecordCommit(metrics.ResultSuccess)
	c.log.Infof("Committed transaction %s with %d keys", tx, len(committed))

	return committed, nil
}

// GetSettings returns all settings of a dataset as a nested document.
func (c *Controller) GetSettings(ctx context.Context, committed datastore.Committed) (map[string]any, error) {
	return c.settingsWithPrefix(ctx, Prefix, committed)
}

// GetSettingsPrefix returns the settings below prefix. A prefix that covers all settings
// (such as "set") returns everything, a prefix outside the settings returns an empty document.
func (c *Controller) GetSettingsPrefix(ctx context.Context, prefix string, committed datastore.Committed) (map[string]any, error) {
	effective, ok := settingsPrefix(prefix)
	if !ok {
		return map[string]any{}, nil
	}

	return c.settingsWithPrefix(ctx, effective, committed)
}

func settingsPrefix(prefix string) (string, bool) {
	switch {
	case strings.HasPrefix(Prefix, prefix):
		return Prefix, true
	case strings.HasPrefix(prefix, Prefix):
		return prefix, true
	default:
		return "", false
	}
}

func (c *Controller) settingsWithPrefix(ctx context.Context, prefix string, committed datastore.Committed) (map[string]any, error) {
	values, err := c.ds.GetPrefix(ctx, prefix, committed)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s settings: %w", committed, err)
	}

	return Unflatten(values)
}

// GetMetadataForDataKeys returns the live metadata named metaKeyName of each given key. Keys
// without that metadata are left out.
func (c *Controller) GetMetadataForDataKeys(ctx context.Context, metaKeyName string, dataKeys []string) (map[string]any, error) {
	metaKey, err := datastore.NewMetaKey(metaKeyName)
	if err != nil {
		return nil, err
	}

	result := make(map[string]any, len(dataKeys))

	for _, name := range dataKeys {
		dataKey, err := datastore.NewDataKey(name)
		if err != nil {
			return nil, err
		}

		raw, ok, err := c.ds.GetMetadata(ctx, metaKey, dataKey, datastore.Live)
		if err != nil {
			c.log.Warnf("Skipping metadata %s of %s: %v", metaKey, dataKey, err)

			continue
		}

		if !ok {
			continue
		}

		value, err := decodeMetadataValue(raw)
		if err != nil {
			return nil, fmt.Errorf("metadata %s of %s: %w", metaKey, dataKey, err)
		}

		result[name] = value
	}

	return result, nil
}

// GetMetadataForAllDataKeys returns the live metadata named metaKeyName of every key having it.
func (c *Controller) GetMetadataForAllDataKeys(ctx context.Context, metaKeyName string) (map[string]any, error) {
	if _, err := datastore.NewMetaKey(metaKeyName); err != nil {
		return nil, err
	}

	md, err := c.ds.GetMetadataPrefix(ctx, "", datastore.Live, metaKeyName)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata %s: %w", metaKeyName, err)
	}

	decoded, err := decodeMetadata(md)
	if err != nil {
		return nil, err
	}

	result := make(map[string]any, len(decoded))

	for dataKey, entries := range decoded {
		if value, ok := entries[metaKeyName]; ok {
			result[dataKey] = value
		}
	}

	return result, nil
}

// decodeMetadataValue parses a metadata value. Unlike setting values, metadata may hold
// objects, for example a settings generator.
func decodeMetadataValue(raw string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("failed to decode metadata %q: %w", raw, err)
	}

	return v, nil
}

func decodeMetadata(md map[datastore.Key]map[datastore.Key]string) (map[string]map[string]any, error) {
	result := make(map[string]map[string]any, len(md))

	for dataKey, entries := range md {
		decoded := make(map[string]any, len(entries))

		for metaKey, raw := range entries {
			value, err := decodeMetadataValue(raw)
			if err != nil {
				return nil, fmt.Errorf("metadata %s of %s: %w", metaKey, dataKey, err)
			}

			decoded[metaKey.Name()] = value
		}

		result[dataKey.Name()] = decoded
	}

	return result, nil
}
