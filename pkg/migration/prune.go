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
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/tiendc/go-deepcopy"

	"github.com/united-manufacturing-hub/umh-datastore/pkg/datastore"
)

const (
	strengthMetadataKey = "strength"
	weakStrength        = "weak"
)

// Metadata maps metadata names of one data key to their values.
type Metadata map[string]any

// DataStoreData is a decoded snapshot of one dataset.
type DataStoreData struct {
	Data     map[string]any
	Metadata map[string]Metadata
}

// ReadData takes a snapshot of the data and metadata of committed.
func ReadData(ctx context.Context, ds datastore.DataStore, committed datastore.Committed) (*DataStoreData, error) {
	rawData, err := ds.GetPrefix(ctx, "", committed)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s data: %w", committed, err)
	}

	snapshot := &DataStoreData{
		Data:     make(map[string]any, len(rawData)),
		Metadata: make(map[string]Metadata),
	}

	for key, raw := range rawData {
		value, err := datastore.DeserializeScalar(raw)
		if err != nil {
			return nil, fmt.Errorf("value of %s: %w", key, err)
		}

		snapshot.Data[key.Name()] = value
	}

	rawMetadata, err := ds.GetMetadataPrefix(ctx, "", committed, "")
	if err != nil {
		return nil, fmt.Errorf("failed to read %s metadata: %w", committed, err)
	}

	for dataKey, entries := range rawMetadata {
		md := make(Metadata, len(entries))

		for metaKey, raw := range entries {
			value, err := decodeValue(raw)
			if err != nil {
				return nil, fmt.Errorf("metadata %s of %s: %w", metaKey, dataKey, err)
			}

			md[metaKey.Name()] = value
		}

		snapshot.Metadata[dataKey.Name()] = md
	}

	return snapshot, nil
}

// WriteData stores a snapshot into committed of ds.
func WriteData(ctx context.Context, ds datastore.DataStore, snapshot *DataStoreData, committed datastore.Committed) error {
	pairs := make(map[datastore.Key]string, len(snapshot.Data))

	for name, value := range snapshot.Data {
		key, err := datastore.NewDataKey(name)
		if err != nil {
			return err
		}

		raw, err := datastore.SerializeScalar(value)
		if err != nil {
			return fmt.Errorf("value of %s: %w", key, err)
		}

		pairs[key] = raw
	}

	if err := ds.SetKeys(ctx, pairs, committed); err != nil {
		return fmt.Errorf("failed to write %s data: %w", committed, err)
	}

	for name, md := range snapshot.Metadata {
		dataKey, err := datastore.NewDataKey(name)
		if err != nil {
			return err
		}

		for metaName, value := range md {
			metaKey, err := datastore.NewMetaKey(metaName)
			if err != nil {
				return err
			}

			raw, err := json.Marshal(value)
			if err != nil {
				return fmt.Errorf("metadata %s of %s: %w", metaKey, dataKey, err)
			}

			if err := ds.SetMetadata(ctx, metaKey, dataKey, string(raw), committed); err != nil {
				return fmt.Errorf("failed to write metadata %s of %s: %w", metaKey, dataKey, err)
			}
		}
	}

	return nil
}

// RemoveWeakSettings returns a copy of snapshot without weak settings and without any
// metadata. snapshot itself is left untouched.
func RemoveWeakSettings(snapshot *DataStoreData) (*DataStoreData, error) {
	var pruned DataStoreData
	if err := deepcopy.Copy(&pruned, snapshot); err != nil {
		return nil, fmt.Errorf("failed to copy datastore snapshot: %w", err)
	}

	for name, md := range pruned.Metadata {
		if strength, ok := md[strengthMetadataKey]; ok && strength == weakStrength {
			delete(md, strengthMetadataKey)
			delete(pruned.Data, name)
		}
	}

	// generators and other metadata are recreated by the new version
	pruned.Metadata = map[string]Metadata{}

	if pruned.Data == nil {
		pruned.Data = map[string]any{}
	}

	return &pruned, nil
}

// CopyWithoutWeakSettings copies Live and every pending transaction of source into target,
// leaving out weak settings and all metadata.
func CopyWithoutWeakSettings(ctx context.Context, source, target datastore.DataStore) error {
	transactions, err := source.ListTransactions(ctx)
	if err != nil {
		return fmt.Errorf("failed to list transactions: %w", err)
	}

	committeds := []datastore.Committed{datastore.Live}
	for _, tx := range transactions {
		committeds = append(committeds, datastore.Pending(tx))
	}

	for _, committed := range committeds {
		snapshot, err := ReadData(ctx, source, committed)
		if err != nil {
			return err
		}

		pruned, err := RemoveWeakSettings(snapshot)
		if err != nil {
			return err
		}

		if err := WriteData(ctx, target, pruned, committed); err != nil {
			return err
		}
	}

	return nil
}

func decodeValue(raw string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("failed to decode %q: %w", raw, err)
	}

	return v, nil
}
