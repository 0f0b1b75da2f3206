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

package datastore_test

import (
	"context"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/united-manufacturing-hub/umh-datastore/pkg/ctxutil/ctxrwmutex"
	"github.com/united-manufacturing-hub/umh-datastore/pkg/datastore"
	"github.com/united-manufacturing-hub/umh-datastore/pkg/datastore/datastoretest"
	"github.com/united-manufacturing-hub/umh-datastore/pkg/datastore/memory"
)

var _ = Describe("Locked", func() {
	var (
		ctx    context.Context
		mu     *ctxrwmutex.CtxRWMutex
		locked *datastore.Locked
	)

	BeforeEach(func() {
		ctx = context.Background()
		mu = ctxrwmutex.NewCtxRWMutex()
		locked = datastore.NewLocked(memory.NewDataStore(), mu)
	})

	It("lets the constraint checker read while the commit holds the lock", func() {
		key := datastoretest.DataKey("settings.motd")
		Expect(locked.SetKey(ctx, key, `"x"`, datastore.Pending("t"))).To(Succeed())

		checker := datastore.ConstraintCheckerFunc(func(ctx context.Context, ds datastore.DataStore, pending datastore.Committed) (datastore.ConstraintCheckResult, error) {
			Expect(ds).ToNot(BeIdenticalTo(locked))

			return datastore.ApproveAll(ctx, ds, pending)
		})

		done := make(chan struct{})
		go func() {
			defer GinkgoRecover()
			defer close(done)

			keys, err := locked.CommitTransaction(ctx, "t", checker)
			Expect(err).ToNot(HaveOccurred())
			Expect(keys.Names()).To(Equal([]string{"settings.motd"}))
		}()

		Eventually(done).Should(BeClosed())
	})

	It("keeps readers out while a writer holds the lock", func() {
		Expect(mu.Lock(ctx)).To(Succeed())

		readCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()

		_, _, err := locked.GetKey(readCtx, datastoretest.DataKey("settings.a"), datastore.Live)
		Expect(err).To(MatchError(context.DeadlineExceeded))

		mu.Unlock()

		_, _, err = locked.GetKey(ctx, datastoretest.DataKey("settings.a"), datastore.Live)
		Expect(err).ToNot(HaveOccurred())
	})

	It("lets readers share the lock", func() {
		Expect(mu.RLock(ctx)).To(Succeed())
		defer mu.RUnlock()

		_, err := locked.ListPopulatedKeys(ctx, "", datastore.Live)
		Expect(err).ToNot(HaveOccurred())
	})

	It("serializes concurrent writers", func() {
		var wg sync.WaitGroup

		for i := range 20 {
			wg.Add(1)

			go func(i int) {
				defer GinkgoRecover()
				defer wg.Done()

				key, err := datastore.KeyFromSegments(datastore.KeyTypeData, []string{"settings", "k", string(rune('a' + i))})
				Expect(err).ToNot(HaveOccurred())
				Expect(locked.SetKey(ctx, key, `1`, datastore.Pending("t"))).To(Succeed())
			}(i)
		}

		wg.Wait()

		keys, err := locked.CommitTransaction(ctx, "t", datastore.ApproveAll)
		Expect(err).ToNot(HaveOccurred())
		Expect(keys).To(HaveLen(20))
	})

	It("runs a group of operations under one write lock", func() {
		err := locked.WithWriteLock(ctx, func(ds datastore.DataStore) error {
			Expect(mu.TryLock()).To(BeFalse())

			return ds.SetKey(ctx, datastoretest.DataKey("settings.a"), `1`, datastore.Live)
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(mu.TryLock()).To(BeTrue())
		mu.Unlock()
	})
})
