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

// Package filesystem stores a datastore as a directory tree with one file per key.
//
// Layout below the datastore directory:
//
//	live/data/<s1>/.../<sn>.value              value of data key s1...sn
//	live/metadata/<s1>/.../<sn>.<meta>         metadata <meta> of data key s1...sn
//	pending/<base64url(tx)>/data/...           same layout per pending transaction
//	pending/<base64url(tx)>/metadata/...
//
// Segments never contain a dot, so the first dot of a file name separates the last segment
// from the suffix and a file can never be mistaken for a segment directory. A key is
// populated exactly when its file exists. Files are written to a temporary sibling and
// renamed into place, so a reader sees either the previous or the new value.
//
// Entries starting with a dot are ignored while listing; they are temporary files of
// interrupted writes.
package filesystem

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/umh-datastore/pkg/constants"
	"github.com/united-manufacturing-hub/umh-datastore/pkg/datastore"
	"github.com/united-manufacturing-hub/umh-datastore/pkg/logger"
	fsservice "github.com/united-manufacturing-hub/umh-datastore/pkg/service/filesystem"
)

// DataStore is the durable datastore backend.
type DataStore struct {
	path string
	fs   fsservice.Service
	log  *zap.SugaredLogger
}

var _ datastore.DataStore = (*DataStore)(nil)

// NewDataStore opens the datastore rooted at path. The directory does not have to exist yet;
// it is created by the first write.
func NewDataStore(path string, fsService fsservice.Service, log *zap.SugaredLogger) *DataStore {
	if fsService == nil {
		fsService = fsservice.NewDefaultService()
	}

	return &DataStore{
		path: filepath.Clean(path),
		fs:   fsService,
		log:  logger.OrNop(log),
	}
}

// Path returns the datastore directory.
func (s *DataStore) Path() string {
	return s.path
}

// datasetDir returns the directory holding the dataset selected by committed.
func (s *DataStore) datasetDir(committed datastore.Committed) (string, error) {
	if err := committed.Validate(); err != nil {
		return "", err
	}

	if committed.IsLive() {
		return filepath.Join(s.path, constants.LiveDirectory), nil
	}

	return filepath.Join(s.path, constants.PendingDirectory, encodeTransaction(committed.Transaction())), nil
}

func encodeTransaction(tx string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(tx))
}

func decodeTransaction(name string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(name)
	if err != nil {
		return "", fmt.Errorf("%w: pending directory %q is not a transaction name: %w", datastore.ErrCorruption, name, err)
	}

	return string(raw), nil
}

// keyPath maps a key below root, appending suffix to its last segment.
func keyPath(root string, key datastore.Key, suffix string) (string, error) {
	if key.IsZero() {
		return "", datastore.ErrInvalidKey
	}

	segments := key.Segments()
	segments[len(segments)-1] += datastore.KeySeparator + suffix

	path := filepath.Join(append([]string{root}, segments...)...)
	if !within(root, path) {
		return "", fmt.Errorf("%w: %s", datastore.ErrPathTraversal, key)
	}

	return path, nil
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}

	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

func (s *DataStore) dataPath(key datastore.Key, committed datastore.Committed) (string, error) {
	dir, err := s.datasetDir(committed)
	if err != nil {
		return "", err
	}

	return keyPath(filepath.Join(dir, constants.DataDirectory), key, constants.DataFileSuffix)
}

func (s *DataStore) metadataPath(metaKey, dataKey datastore.Key, committed datastore.Committed) (string, error) {
	if metaKey.IsZero() {
		return "", datastore.ErrInvalidKey
	}

	dir, err := s.datasetDir(committed)
	if err != nil {
		return "", err
	}

	return keyPath(filepath.Join(dir, constants.MetadataDirectory), dataKey, metaKey.Name())
}

func (s *DataStore) read(ctx context.Context, path string) (string, bool, error) {
	data, err := s.fs.ReadFile(ctx, path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}

	if err != nil {
		return "", false, err
	}

	return string(data), true, nil
}

func (s *DataStore) write(ctx context.Context, path, value string) error {
	if err := s.fs.EnsureDirectory(ctx, filepath.Dir(path)); err != nil {
		return err
	}

	return s.fs.WriteFileAtomic(ctx, path, []byte(value), constants.DatastoreFilePerm)
}

// remove deletes path and every directory above it that became empty, up to stop.
func (s *DataStore) remove(ctx context.Context, path, stop string) error {
	if err := s.fs.Remove(ctx, path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}

		return err
	}

	for dir := filepath.Dir(path); dir != stop && within(stop, dir); dir = filepath.Dir(dir) {
		entries, err := s.fs.ReadDir(ctx, dir)
		if err != nil || len(entries) > 0 {
			break
		}

		if err := s.fs.Remove(ctx, dir); err != nil {
			s.log.Debugf("Failed to remove empty directory %s: %s", dir, err)

			break
		}
	}

	return nil
}

func (s *DataStore) KeyPopulated(ctx context.Context, key datastore.Key, committed datastore.Committed) (bool, error) {
	path, err := s.dataPath(key, committed)
	if err != nil {
		return false, err
	}

	return s.fs.PathExists(ctx, path)
}

func (s *DataStore) GetKey(ctx context.Context, key datastore.Key, committed datastore.Committed) (string, bool, error) {
	path, err := s.dataPath(key, committed)
	if err != nil {
		return "", false, err
	}

	return s.read(ctx, path)
}

func (s *DataStore) GetMetadata(ctx context.Context, metaKey, dataKey datastore.Key, committed datastore.Committed) (string, bool, error) {
	path, err := s.metadataPath(metaKey, dataKey, committed)
	if err != nil {
		return "", false, err
	}

	return s.read(ctx, path)
}

func (s *DataStore) SetKey(ctx context.Context, key datastore.Key, value string, committed datastore.Committed) error {
	path, err := s.dataPath(key, committed)
	if err != nil {
		return err
	}

	if err := s.write(ctx, path, value); err != nil {
		return fmt.Errorf("failed to set %s in %s: %w", key, committed, err)
	}

	return nil
}

func (s *DataStore) SetMetadata(ctx context.Context, metaKey, dataKey datastore.Key, value string, committed datastore.Committed) error {
	path, err := s.metadataPath(metaKey, dataKey, committed)
	if err != nil {
		return err
	}

	if err := s.write(ctx, path, value); err != nil {
		return fmt.Errorf("failed to set metadata %s of %s in %s: %w", metaKey, dataKey, committed, err)
	}

	return nil
}

func (s *DataStore) UnsetKey(ctx context.Context, key datastore.Key, committed datastore.Committed) error {
	path, err := s.dataPath(key, committed)
	if err != nil {
		return err
	}

	dir, _ := s.datasetDir(committed)

	return s.remove(ctx, path, filepath.Join(dir, constants.DataDirectory))
}

func (s *DataStore) UnsetMetadata(ctx context.Context, metaKey, dataKey datastore.Key) error {
	path, err := s.metadataPath(metaKey, dataKey, datastore.Live)
	if err != nil {
		return err
	}

	dir, _ := s.datasetDir(datastore.Live)

	return s.remove(ctx, path, filepath.Join(dir, constants.MetadataDirectory))
}

// entryVisitor is called for every file found by walk with the segment directories above it
// and the file name split at its first dot.
type entryVisitor func(segments []string, name, suffix string) error

// walk visits the files below root. Subtrees that cannot contain a key starting with prefix
// are skipped.
func (s *DataStore) walk(ctx context.Context, root string, segments []string, prefix string, visit entryVisitor) error {
	entries, err := s.fs.ReadDir(ctx, root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	if err != nil {
		return err
	}

	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		if !utf8.ValidString(name) {
			return fmt.Errorf("%w: non UTF-8 file name in %s", datastore.ErrCorruption, root)
		}

		if entry.IsDir() {
			if _, err := datastore.KeyFromSegments(datastore.KeyTypeData, append(segments, name)); err != nil {
				return fmt.Errorf("%w: unexpected directory %s: %w", datastore.ErrCorruption, filepath.Join(root, name), err)
			}

			if !subtreeMayMatch(append(segments, name), prefix) {
				continue
			}

			if err := s.walk(ctx, filepath.Join(root, name), append(segments[:len(segments):len(segments)], name), prefix, visit); err != nil {
				return err
			}

			continue
		}

		segment, suffix, found := strings.Cut(name, datastore.KeySeparator)
		if !found || segment == "" || suffix == "" {
			return fmt.Errorf("%w: unexpected file %s", datastore.ErrCorruption, filepath.Join(root, name))
		}

		if err := visit(segments, segment, suffix); err != nil {
			return err
		}
	}

	return nil
}

// subtreeMayMatch reports whether keys below the directory named by segments can start with prefix.
func subtreeMayMatch(segments []string, prefix string) bool {
	dir := strings.Join(segments, datastore.KeySeparator) + datastore.KeySeparator

	return strings.HasPrefix(dir, prefix) || strings.HasPrefix(prefix, dir)
}

func (s *DataStore) ListPopulatedKeys(ctx context.Context, prefix string, committed datastore.Committed) (datastore.KeySet, error) {
	dir, err := s.datasetDir(committed)
	if err != nil {
		return nil, err
	}

	keys := datastore.NewKeySet()
	root := filepath.Join(dir, constants.DataDirectory)

	err = s.walk(ctx, root, nil, prefix, func(segments []string, name, suffix string) error {
		if suffix != constants.DataFileSuffix {
			return fmt.Errorf("%w: unexpected data file %s.%s below %s", datastore.ErrCorruption, name, suffix, root)
		}

		key, err := datastore.KeyFromSegments(datastore.KeyTypeData, append(segments, name))
		if err != nil {
			return fmt.Errorf("%w: %w", datastore.ErrCorruption, err)
		}

		if datastore.HasPrefix(key, prefix) {
			keys.Add(key)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list keys with prefix %q in %s: %w", prefix, committed, err)
	}

	return keys, nil
}

func (s *DataStore) ListPopulatedMetadata(ctx context.Context, prefix string, committed datastore.Committed, metaKeyName string) (map[datastore.Key]datastore.KeySet, error) {
	dir, err := s.datasetDir(committed)
	if err != nil {
		return nil, err
	}

	result := make(map[datastore.Key]datastore.KeySet)
	root := filepath.Join(dir, constants.MetadataDirectory)

	err = s.walk(ctx, root, nil, prefix, func(segments []string, name, suffix string) error {
		if metaKeyName != "" && suffix != metaKeyName {
			return nil
		}

		dataKey, err := datastore.KeyFromSegments(datastore.KeyTypeData, append(segments, name))
		if err != nil {
			return fmt.Errorf("%w: %w", datastore.ErrCorruption, err)
		}

		if !datastore.HasPrefix(dataKey, prefix) {
			return nil
		}

		metaKey, err := datastore.NewMetaKey(suffix)
		if err != nil {
			return fmt.Errorf("%w: %w", datastore.ErrCorruption, err)
		}

		if result[dataKey] == nil {
			result[dataKey] = datastore.NewKeySet()
		}

		result[dataKey].Add(metaKey)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list metadata with prefix %q in %s: %w", prefix, committed, err)
	}

	return result, nil
}

func (s *DataStore) ListTransactions(ctx context.Context) ([]string, error) {
	entries, err := s.fs.ReadDir(ctx, filepath.Join(s.path, constants.PendingDirectory))
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	txs := make([]string, 0, len(entries))

	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") || !entry.IsDir() {
			continue
		}

		tx, err := decodeTransaction(entry.Name())
		if err != nil {
			return nil, err
		}

		txs = append(txs, tx)
	}

	sort.Strings(txs)

	return txs, nil
}

func (s *DataStore) DeleteTransaction(ctx context.Context, tx string) (datastore.KeySet, error) {
	if err := datastore.ValidateTransaction(tx); err != nil {
		return nil, err
	}

	pending := datastore.Pending(tx)

	keys, err := s.ListPopulatedKeys(ctx, "", pending)
	if err != nil {
		return nil, err
	}

	dir, err := s.datasetDir(pending)
	if err != nil {
		return nil, err
	}

	if err := s.fs.RemoveAll(ctx, dir); err != nil {
		return nil, fmt.Errorf("failed to delete transaction %q: %w", tx, err)
	}

	s.log.Debugf("Deleted transaction %q with %d pending keys", tx, len(keys))

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
	keys, err := datastore.ApplyCommit(ctx, s, tx, checker)
	if err != nil {
		return nil, err
	}

	s.log.Debugf("Committed transaction %q, %d keys promoted to live", tx, len(keys))

	return keys, nil
}
