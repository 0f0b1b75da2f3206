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

package migration_test

import (
	"context"

	"github.com/goccy/go-json"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/united-manufacturing-hub/umh-datastore/pkg/datastore"
	"github.com/united-manufacturing-hub/umh-datastore/pkg/datastore/datastoretest"
	"github.com/united-manufacturing-hub/umh-datastore/pkg/datastore/memory"
	"github.com/united-manufacturing-hub/umh-datastore/pkg/migration"
)

var _ = Describe("Weak setting pruning", func() {
	It("drops weak settings and all metadata from a snapshot without touching it", func() {
		snapshot := &migration.DataStoreData{
			Data: map[string]any{
				"settings.motd":     "hi",
				"settings.hostname": "box",
				"settings.tags":     []any{"a", "b"},
			},
			Metadata: map[string]migration.Metadata{
				"settings.hostname": {"strength": "weak", "setting-generator": "hostname-gen"},
				"settings.motd":     {"strength": "strong", "affected-services": []any{"motd"}},
			},
		}

		pruned, err := migration.RemoveWeakSettings(snapshot)
		Expect(err).ToNot(HaveOccurred())
		Expect(pruned.Data).To(Equal(map[string]any{
			"settings.motd": "hi",
			"settings.tags": []any{"a", "b"},
		}))
		Expect(pruned.Metadata).To(BeEmpty())

		Expect(snapshot.Data).To(HaveKey("settings.hostname"))
		Expect(snapshot.Metadata["settings.hostname"]).To(HaveKey("strength"))

		pruned.Data["settings.tags"].([]any)[0] = "changed"
		Expect(snapshot.Data["settings.tags"]).To(Equal([]any{"a", "b"}))
	})

	It("copies Live and pending transactions into the target", func() {
		ctx := context.Background()
		source := memory.NewDataStore()
		target := memory.NewDataStore()
		strength := datastoretest.MetaKey("strength")

		Expect(source.SetKey(ctx, datastoretest.DataKey("settings.motd"), `"hi"`, datastore.Live)).To(Succeed())
		Expect(source.SetKey(ctx, datastoretest.DataKey("settings.hostname"), `"box"`, datastore.Live)).To(Succeed())
		Expect(source.SetKey(ctx, datastoretest.DataKey("settings.port"), `8443`, datastore.Live)).To(Succeed())
		Expect(source.SetMetadata(ctx, strength, datastoretest.DataKey("settings.hostname"), `"weak"`, datastore.Live)).To(Succeed())
		Expect(source.SetMetadata(ctx, datastoretest.MetaKey("setting-generator"), datastoretest.DataKey("settings.motd"),
			`{"command": "motd-gen", "depth": 0}`, datastore.Live)).To(Succeed())

		Expect(source.SetKey(ctx, datastoretest.DataKey("settings.ntp"), `"pool"`, datastore.Pending("tx"))).To(Succeed())
		Expect(source.SetKey(ctx, datastoretest.DataKey("settings.tmp"), `"x"`, datastore.Pending("tx"))).To(Succeed())
		Expect(source.SetMetadata(ctx, strength, datastoretest.DataKey("settings.tmp"), `"weak"`, datastore.Pending("tx"))).To(Succeed())

		Expect(migration.CopyWithoutWeakSettings(ctx, source, target)).To(Succeed())

		live, err := target.GetPrefix(ctx, "", datastore.Live)
		Expect(err).ToNot(HaveOccurred())
		Expect(live).To(Equal(map[datastore.Key]string{
			datastoretest.DataKey("settings.motd"): `"hi"`,
			datastoretest.DataKey("settings.port"): `8443`,
		}))

		pending, err := target.GetPrefix(ctx, "", datastore.Pending("tx"))
		Expect(err).ToNot(HaveOccurred())
		Expect(pending).To(Equal(map[datastore.Key]string{
			datastoretest.DataKey("settings.ntp"): `"pool"`,
		}))

		md, err := target.GetMetadataPrefix(ctx, "", datastore.Live, "")
		Expect(err).ToNot(HaveOccurred())
		Expect(md).To(BeEmpty())

		txs, err := target.ListTransactions(ctx)
		Expect(err).ToNot(HaveOccurred())
		Expect(txs).To(Equal([]string{"tx"}))
	})

	It("writes metadata snapshots back as JSON", func() {
		ctx := context.Background()
		ds := memory.NewDataStore()

		Expect(migration.WriteData(ctx, ds, &migration.DataStoreData{
			Data:     map[string]any{"settings.motd": "hi"},
			Metadata: map[string]migration.Metadata{"settings.motd": {"affected-services": []any{"motd"}}},
		}, datastore.Live)).To(Succeed())

		raw, ok, err := ds.GetMetadata(ctx, datastoretest.MetaKey("affected-services"), datastoretest.DataKey("settings.motd"), datastore.Live)
		Expect(err).ToNot(HaveOccurred())
		Expect(ok).To(BeTrue())

		var services []string
		Expect(json.Unmarshal([]byte(raw), &services)).To(Succeed())
		Expect(services).To(Equal([]string{"motd"}))
	})
})
