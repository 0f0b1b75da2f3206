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

	"github.com/united-manufacturing-hub/umh-datastore/pkg/ctxutil/ctxrwmutex"
)

// Locked serializes access to a DataStore with a reader/writer lock owned by the caller.
//
// Reads share the lock, writes take it exclusively. CommitTransaction holds the write lock
// for the whole check-write-delete sequence and hands the checker the inner store, so a
// checker never waits on the lock its own commit holds.
type Locked struct {
	inner DataStore
	mu    *ctxrwmutex.CtxRWMutex
}

var _ DataStore = (*Locked)(nil)

// NewLocked wraps inner. mu is usually created once by the process owning the datastore.
func NewLocked(inner DataStore, mu *ctxrwmutex.CtxRWMutex) *Locked {
	if mu == nil {
		mu = ctxrwmutex.NewCtxRWMutex()
	}

	return &Locked{inner: inner, mu: mu}
}

// Inner returns the wrapped store. Callers must hold the lock themselves when using it.
func (l *Locked) Inner() DataStore {
	return l.inner
}

func (l *Locked) read(ctx context.Context) (func(), error) {
	if err := l.mu.RLock(ctx); err != nil {
		return nil, fmt.Errorf("failed to acquire datastore read lock: %w", err)
	}

	return l.mu.RUnlock, nil
}

func (l *Locked) write(ctx context.Context) (func(), error) {
	if err := l.mu.Lock(ctx); err != nil {
		return nil, fmt.Errorf("failed to acquire datastore write lock: %w", err)
	}

	return l.mu.Unlock, nil
}

func (l *Locked) KeyPopulated(ctx context.Context, key Key, committed Committed) (bool, error) {
	unlock, err := l.read(ctx)
	if err != nil {
		return false, err
	}
	defer unlock()

	return l.inner.KeyPopulated(ctx, key, committed)
}

func (l *Locked) ListPopulatedKeys(ctx context.Context, prefix string, committed Committed) (KeySet, error) {
	unlock, err := l.read(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	return l.inner.ListPopulatedKeys(ctx, prefix, committed)
}

func (l *Locked) ListPopulatedMetadata(ctx context.Context, prefix string, committed Committed, metaKeyName string) (map[Key]KeySet, error) {
	unlock, err := l.read(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	return l.inner.ListPopulatedMetadata(ctx, prefix, committed, metaKeyName)
}

func (l *Locked) GetKey(ctx context.Context, key Key, committed Committed) (string, bool, error) {
	unlock, err := l.read(ctx)
	if err != nil {
		return "", false, err
	}
	defer unlock()

	return l.inner.GetKey(ctx, key, committed)
}

func (l *Locked) GetMetadata(ctx context.Context, metaKey, dataKey Key, committed Committed) (string, bool, error) {
	unlock, err := l.read(ctx)
	if err != nil {
		return "", false, err
	}
	defer unlock()

	return l.inner.GetMetadata(ctx, metaKey, dataKey, committed)
}

func (l *Locked) GetPrefix(ctx context.Context, prefix string, committed Committed) (map[Key]string, error) {
	unlock, err := l.read(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	return l.inner.GetPrefix(ctx, prefix, committed)
}

func (l *Locked) GetMetadataPrefix(ctx context.Context, prefix string, committed Committed, metaKeyName string) (map[Key]map[Key]string, error) {
	unlock, err := l.read(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	return l.inner.GetMetadataPrefix(ctx, prefix, committed, metaKeyName)
}

func (l *Locked) ListTransactions(ctx context.Context) ([]string, error) {
	unlock, err := l.read(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	return l.inner.ListTransactions(ctx)
}

func (l *Locked) SetKey(ctx context.Context, key Key, value string, committed Committed) error {
	unlock, err := l.write(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	return l.inner.SetKey(ctx, key, value, committed)
}

func (l *Locked) SetKeys(ctx context.Context, pairs map[Key]string, committed Committed) error {
	unlock, err := l.write(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	return l.inner.SetKeys(ctx, pairs, committed)
}

func (l *Locked) SetMetadata(ctx context.Context, metaKey, dataKey Key, value string, committed Committed) error {
	unlock, err := l.write(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	return l.inner.SetMetadata(ctx, metaKey, dataKey, value, committed)
}

func (l *Locked) UnsetKey(ctx context.Context, key Key, committed Committed) error {
	unlock, err := l.write(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	return l.inner.UnsetKey(ctx, key, committed)
}

func (l *Locked) UnsetMetadata(ctx context.Context, metaKey, dataKey Key) error {
	unlock, err := l.write(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	return l.inner.UnsetMetadata(ctx, metaKey, dataKey)
}

func (l *Locked) DeleteTransaction(ctx context.Context, tx string) (KeySet, error) {
	unlock, err := l.write(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	return l.inner.DeleteTransaction(ctx, tx)
}

func (l *Locked) CommitTransaction(ctx context.Context, tx string, checker ConstraintChecker) (KeySet, error) {
	unlock, err := l.write(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	return l.inner.CommitTransaction(ctx, tx, checker)
}

// WithWriteLock runs fn with the write lock held and the inner store, for callers that need
// several operations to appear atomic.
func (l *Locked) WithWriteLock(ctx context.Context, fn func(ds DataStore) error) error {
	unlock, err := l.write(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	return fn(l.inner)
}
