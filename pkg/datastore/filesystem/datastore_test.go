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

package filesystem_test

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap/zaptest"

	"github.com/united-manufacturing-hub/umh-datastore/pkg/datastore"
	"github.com/united-manufacturing-hub/umh-datastore/pkg/datastore/datastoretest"
	"github.com/united-manufacturing-hub/umh-datastore/pkg/datastore/filesystem"
	fsservice "github.com/united-manufacturing-hub/umh-datastore/pkg/service/filesystem"
)

var _ = Describe("filesystem.DataStore", func() {
	datastoretest.ItBehavesLikeADataStore(func() datastore.DataStore {
		return filesystem.NewDataStore(GinkgoT().TempDir(), fsservice.NewDefaultService(), zaptest.NewLogger(GinkgoT()).Sugar())
	})

	Describe("on-disk layout", func() {
		var (
			ctx context.Context
			dir string
			ds  *filesystem.DataStore
		)

		BeforeEach(func() {
			ctx = context.Background()
			dir = GinkgoT().TempDir()
			ds = filesystem.NewDataStore(dir, nil, nil)
		})

		It("writes one file per key and per metadata entry", func() {
			key := datastoretest.DataKey("settings.ntp.time-servers")
			Expect(ds.SetKey(ctx, key, `["a"]`, datastore.Live)).To(Succeed())
			Expect(ds.SetMetadata(ctx, datastoretest.MetaKey("strength"), key, `"weak"`, datastore.Live)).To(Succeed())

			data, err := os.ReadFile(filepath.Join(dir, "live", "data", "settings", "ntp", "time-servers.value"))
			Expect(err).ToNot(HaveOccurred())
			Expect(string(data)).To(Equal(`["a"]`))

			data, err = os.ReadFile(filepath.Join(dir, "live", "metadata", "settings", "ntp", "time-servers.strength"))
			Expect(err).ToNot(HaveOccurred())
			Expect(string(data)).To(Equal(`"weak"`))
		})

		It("ignores leftovers of interrupted writes", func() {
			Expect(ds.SetKey(ctx, datastoretest.DataKey("settings.a"), `1`, datastore.Live)).To(Succeed())
			Expect(os.WriteFile(filepath.Join(dir, "live", "data", "settings", ".tmp-0123"), []byte("x"), 0o644)).To(Succeed())

			keys, err := ds.ListPopulatedKeys(ctx, "", datastore.Live)
			Expect(err).ToNot(HaveOccurred())
			Expect(keys.Names()).To(Equal([]string{"settings.a"}))
		})

		It("reports unexpected files as corruption", func() {
			Expect(os.MkdirAll(filepath.Join(dir, "live", "data", "settings"), 0o755)).To(Succeed())
			Expect(os.WriteFile(filepath.Join(dir, "live", "data", "settings", "README"), []byte("x"), 0o644)).To(Succeed())

			_, err := ds.ListPopulatedKeys(ctx, "", datastore.Live)
			Expect(err).To(MatchError(datastore.ErrCorruption))
		})

		It("reports unexpected directories as corruption", func() {
			Expect(os.MkdirAll(filepath.Join(dir, "live", "data", "bad name"), 0o755)).To(Succeed())

			_, err := ds.ListPopulatedKeys(ctx, "", datastore.Live)
			Expect(err).To(MatchError(datastore.ErrCorruption))
		})

		It("does not descend into subtrees outside of the prefix", func() {
			Expect(ds.SetKey(ctx, datastoretest.DataKey("settings.a"), `1`, datastore.Live)).To(Succeed())
			Expect(os.MkdirAll(filepath.Join(dir, "live", "data", "services"), 0o755)).To(Succeed())
			Expect(os.WriteFile(filepath.Join(dir, "live", "data", "services", "README"), []byte("x"), 0o644)).To(Succeed())

			keys, err := ds.ListPopulatedKeys(ctx, "settings.", datastore.Live)
			Expect(err).ToNot(HaveOccurred())
			Expect(keys.Names()).To(Equal([]string{"settings.a"}))
		})

		It("removes directories emptied by unset", func() {
			key := datastoretest.DataKey("settings.a.b.c")
			Expect(ds.SetKey(ctx, key, `1`, datastore.Live)).To(Succeed())
			Expect(ds.UnsetKey(ctx, key, datastore.Live)).To(Succeed())

			_, err := os.Stat(filepath.Join(dir, "live", "data", "settings"))
			Expect(os.IsNotExist(err)).To(BeTrue())

			_, err = os.Stat(filepath.Join(dir, "live", "data"))
			Expect(err).ToNot(HaveOccurred())
		})

		It("refuses the zero key", func() {
			err := ds.SetKey(ctx, datastore.Key{}, `1`, datastore.Live)
			Expect(err).To(MatchError(datastore.ErrInvalidKey))
		})
	})
})
