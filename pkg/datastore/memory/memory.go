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

// Package memory provides an in-memory implementation of datastore.DataStore.
//
// It backs unit tests and serves as staging area when a datastore has to be held in
// memory, for example while weak settings are pruned before a migration.
//
// # Thread Safety
//
// Every primitive takes a sync.RWMutex. Bulk operations and CommitTransaction are built from
// several primitives and are not atomic on their own; wrap the store in datastore.Locked when
// several goroutines write to it.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/united-manufacturing-hub/umh-datastore/pkg/datastore"
)

type dataset struct {
	data     map[datastore.Key]string
	metadata map[datastore.Key]map[datastore.Key]string
}

func newDataset() *dataset {
	return &dataset{
		data:     make(map[datastore.Key]string),
		metadata: make(map[datastore.Key]map[datastore.Key]string),
	}
}

// DataStore keeps Live and every pending transaction in maps.
type DataStore struct {
	mu      sync.RWMutex
	live    *dataset
	pending map[string]*dataset
}

var _ datastore.DataStore = (*DataStore)(nil)

// NewDataStore returns an empty store.
func NewDataStore() *DataStore {
	return &DataStore{
		live:    newDataset(),
		pending: make(map[string]*dataset),
	}
}

// lookup returns the dataset for committed, creating pending datasets when create is set.
// The caller holds mu.
func (s *DataStore) lookup(committed datastore.Committed, create bool) *dataset {
	if committed.IsLive() {
		return s.live
	}

	ds, ok := s.pending[committed.Transaction()]
	if !ok && create {
		ds = newDataset()
		s.pending[committed.Transaction()] = ds
	}

	return ds
}

func (s *DataStore) KeyPopulated(ctx context.Context, key datastore.Key, committed datastore.Committed) (bool, error) {
	_, ok, err := s.GetKey(ctx, key, committed)

	return ok, err
}

func (s *DataStore) ListPopulatedKeys(_ context.Context, prefix string, committed datastore.Committed) (datastore.KeySet, error) {
	if err := committed.Validate(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := datastore.NewKeySet()

	ds := s.lookup(committed, false)
	if ds == nil {
		return keys, nil
	}

	for key := range ds.data {
		if strings.HasPrefix(key.Name(), prefix) {
			keys.Add(key)
		}
	}

	return keys, nil
}

func (s *DataStore) ListPopulatedMetadata(_ context.Context, prefix string, committed datastore.Committed, metaKeyName string) (map[datastore.Key]datastore.KeySet, error) {
	if err := committed.Validate(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[datastore.Key]datastore.KeySet)

	ds := s.lookup(committed, false)
	if ds == nil {
		return result, nil
	}

	for dataKey, entries := range ds.metadata {
		if !strings.HasPrefix(dataKey.Name(), prefix) {
			continue
		}

		for metaKey := range entries {
			if metaKeyName != "" && metaKey.Name() != metaKeyName {
				continue
			}

			if result[dataKey] == nil {
				result[dataKey] = datastore.NewKeySet()
			}

			result[dataKey].Add(metaKey)
		}
	}

	return result, nil
}

func (s *DataStore) GetKey(_ context.Context, key datastore.Key, committed datastore.Committed) (string, bool, error) {
	if err := committed.Validate(); err != nil {
		return "", false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ds := s.lookup(committed, false)
	if ds == nil {
		return "", false, nil
	}

	value, ok := ds.data[key]

	return value, ok, nil
}

func (s *DataStore) GetMetadata(_ context.Context, metaKey, dataKey datastore.Key, committed datastore.Committed) (string, bool, error) {
	if err := committed.Validate(); err != nil {
		return "", false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ds := s.lookup(committed, false)
	if ds == nil {
		return "", false, nil
	}

	value, ok := ds.metadata[dataKey][metaKey]

	return value, ok, nil
}

func (s *DataStore) SetKey(_ context.Context, key datastore.Key, value string, committed datastore.Committed) error {
	if err := committed.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.lookup(committed, true).data[key] = value

	return nil
}

func (s *DataStore) SetMetadata(_ context.Context, metaKey, dataKey datastore.Key, value string, committed datastore.Committed) error {
	if err := committed.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ds := s.lookup(committed, true)
	if ds.metadata[dataKey] == nil {
		ds.metadata[dataKey] = make(map[datastore.Key]string)
	}

	ds.metadata[dataKey][metaKey] = value

	return nil
}

func (s *DataStore) UnsetKey(_ context.Context, key datastore.Key, committed datastore.Committed) error {
	if err := committed.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if ds := s.lookup(committed, false); ds != nil {
		delete(ds.data, key)
	}

	return nil
}

func (s *DataStore) UnsetMetadata(_ context.Context, metaKey, dataKey datastore.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, ok := s.live.metadata[dataKey]
	if !ok {
		return nil
	}

	delete(entries, metaKey)

	if len(entries) == 0 {
		delete(s.live.metadata, dataKey)
	}

	return nil
}

func (s *DataStore) ListTransactions(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	txs := make([]string, 0, len(s.pending))
	for tx := range s.pending {
		txs = append(txs, tx)
	}

	sort.Strings(txs)

	return txs, nil
}

func (s *DataStore) DeleteTransaction(_ context.Context, tx string) (datastore.KeySet, error) {
	if err := datastore.ValidateTransaction(tx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	keys := datastore.NewKeySet()

	ds, ok := s.pending[tx]
	if !ok {
		return keys, nil
	}

	for key := range ds.data {
		keys.Add(key)
	}

	delete(s.pending, tx)

	return keys, nil
}

func (s *DataStore) GetPrefix(ctx context.Context, prefix string, committed datastore.Committed) (map[datastore.Key]string, error) {
	return datastore.GetPrefix(ctx, s, prefix, committed)
}

func (s *DataStore) SetKeys(ctx context.Context, pairs map[datastore.Key]string, committed datastore.Committed) error {
	return datastore.SetKeys(ctx, s, pairs, committed)
}

func (s *DataStore) GetMetadataPrefix(ctx context.Context, prefix string, committed datastore.Committed, metaKeyName string) (map[datastore.Key]map[datastore.Key]string, error) {
	return datastore.GetMetadataPrefix(ctx, s, prefix, committed, metaKeyName)
}

func (s *DataStore) CommitTransaction(ctx context.Context, tx string, checker datastore.ConstraintChecker) (datastore.KeySet, error) {
	return datastore.ApplyCommit(ctx, s, tx, checker)
}
