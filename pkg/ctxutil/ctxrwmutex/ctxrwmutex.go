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

package ctxrwmutex

import (
	"context"

	"github.com/united-manufacturing-hub/umh-datastore/pkg/constants"
	"golang.org/x/sync/semaphore"
)

// CtxRWMutex is a reader/writer lock whose acquisition can be abandoned through a context.
// Readers take one unit of a weighted semaphore, a writer takes all constants.AmountReadersForDatastore
// units, so a writer excludes everybody and readers only exclude writers.
type CtxRWMutex struct {
	sem *semaphore.Weighted
}

// NewCtxRWMutex returns an unlocked mutex.
func NewCtxRWMutex() *CtxRWMutex {
	return &CtxRWMutex{
		sem: semaphore.NewWeighted(constants.AmountReadersForDatastore),
	}
}

// RLock locks the mutex for reading.
func (m *CtxRWMutex) RLock(ctx context.Context) error {
	return m.sem.Acquire(ctx, 1)
}

// RUnlock unlocks the mutex for reading.
func (m *CtxRWMutex) RUnlock() {
	m.sem.Release(1)
}

// Lock locks the mutex for writing.
func (m *CtxRWMutex) Lock(ctx context.Context) error {
	return m.sem.Acquire(ctx, constants.AmountReadersForDatastore)
}

// TryLock locks the mutex for writing if that is possible without waiting.
func (m *CtxRWMutex) TryLock() bool {
	return m.sem.TryAcquire(constants.AmountReadersForDatastore)
}

// Unlock unlocks the mutex for writing.
func (m *CtxRWMutex) Unlock() {
	m.sem.Release(constants.AmountReadersForDatastore)
}
