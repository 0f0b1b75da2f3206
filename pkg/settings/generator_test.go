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

package settings_test

import (
	"context"

	"github.com/goccy/go-json"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/united-manufacturing-hub/umh-datastore/pkg/datastore"
	"github.com/united-manufacturing-hub/umh-datastore/pkg/datastore/datastoretest"
	"github.com/united-manufacturing-hub/umh-datastore/pkg/datastore/memory"
	"github.com/united-manufacturing-hub/umh-datastore/pkg/settings"
)

var _ = Describe("Settings generators", func() {
	Describe("RawSettingsGenerator", func() {
		It("decodes bare strings and objects", func() {
			var generators map[string]settings.RawSettingsGenerator

			Expect(json.Unmarshal([]byte(`{
				"host-containers.admin.source": "generator1",
				"host-containers.control.source": {"command": "generator2", "strength": "weak", "depth": 0},
				"host-containers.no_depth.source": {"command": "generator3", "strength": "weak"},
				"host-containers.depth.source": {"command": "generator4", "depth": 1}
			}`), &generators)).To(Succeed())

			Expect(generators).To(Equal(map[string]settings.RawSettingsGenerator{
				"host-containers.admin.source":    {Command: "generator1", Strength: settings.Strong},
				"host-containers.control.source":  {Command: "generator2", Strength: settings.Weak},
				"host-containers.no_depth.source": {Command: "generator3", Strength: settings.Weak},
				"host-containers.depth.source":    {Command: "generator4", Strength: settings.Strong, Depth: 1},
			}))
		})

		DescribeTable("rejects malformed generators",
			func(doc string) {
				var g settings.RawSettingsGenerator
				Expect(json.Unmarshal([]byte(doc), &g)).To(MatchError(settings.ErrInvalidGenerator))
			},
			Entry("missing command", `{"strength": "weak"}`),
			Entry("unknown field", `{"command": "x", "colour": "blue"}`),
			Entry("wrong type", `42`),
		)

		It("rejects an unknown strength", func() {
			var g settings.RawSettingsGenerator
			Expect(json.Unmarshal([]byte(`{"command": "x", "strength": "medium"}`), &g)).ToNot(Succeed())
		})
	})

	Describe("ExpandSettingGenerator", func() {
		var (
			ctx     context.Context
			ds      *memory.DataStore
			dataKey datastore.Key
			result  map[string]settings.SettingsGenerator
		)

		BeforeEach(func() {
			ctx = context.Background()
			ds = memory.NewDataStore()
			dataKey = datastoretest.DataKey("settings.abc.def")
			result = map[string]settings.SettingsGenerator{}
		})

		generator := func(depth uint32) settings.RawSettingsGenerator {
			return settings.RawSettingsGenerator{Command: "cmd", Strength: settings.Weak, Depth: depth}
		}

		It("applies a depth 0 generator to its own key", func() {
			Expect(ds.SetKey(ctx, datastoretest.DataKey("settings.abc.xyz.mode"), `"once"`, datastore.Live)).To(Succeed())

			Expect(settings.ExpandSettingGenerator(ctx, ds, dataKey, generator(0), result)).To(Succeed())
			Expect(result).To(Equal(map[string]settings.SettingsGenerator{
				"settings.abc.def": {Command: "cmd", Strength: settings.Weak},
			}))
		})

		It("applies a depth 1 generator to the successors of its parent", func() {
			Expect(ds.SetKey(ctx, datastoretest.DataKey("settings.abc.xyz.mode"), `"once"`, datastore.Live)).To(Succeed())

			Expect(settings.ExpandSettingGenerator(ctx, ds, dataKey, generator(1), result)).To(Succeed())
			Expect(result).To(Equal(map[string]settings.SettingsGenerator{
				"settings.abc.xyz.def": {Command: "cmd", Strength: settings.Weak},
			}))
		})

		It("skips keys too short for the depth", func() {
			Expect(ds.SetKey(ctx, dataKey, `"once"`, datastore.Live)).To(Succeed())
			Expect(ds.SetKey(ctx, datastoretest.DataKey("settings.abc.some-value"), `"parent"`, datastore.Live)).To(Succeed())
			Expect(ds.SetKey(ctx, datastoretest.DataKey("settings.abc.some-map.xyz"), `"child"`, datastore.Live)).To(Succeed())

			Expect(settings.ExpandSettingGenerator(ctx, ds, dataKey, generator(1), result)).To(Succeed())
			Expect(result).To(HaveLen(1))
			Expect(result).To(HaveKey("settings.abc.some-map.def"))
		})

		It("does not match siblings sharing a name prefix", func() {
			Expect(ds.SetKey(ctx, datastoretest.DataKey("settings.abcd.xyz.mode"), `"once"`, datastore.Live)).To(Succeed())

			Expect(settings.ExpandSettingGenerator(ctx, ds, dataKey, generator(1), result)).To(Succeed())
			Expect(result).To(BeEmpty())
		})

		It("refuses a depth on a single segment key", func() {
			err := settings.ExpandSettingGenerator(ctx, ds, datastoretest.DataKey("settings"), generator(1), result)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("GetSettingsGeneratorMetadata", func() {
		It("expands every stored generator", func() {
			ctx := context.Background()
			ds := memory.NewDataStore()
			meta := datastoretest.MetaKey(settings.GeneratorMetadataKey)

			Expect(ds.SetKey(ctx, datastoretest.DataKey("settings.host-containers.admin.enabled"), `true`, datastore.Live)).To(Succeed())
			Expect(ds.SetKey(ctx, datastoretest.DataKey("settings.host-containers.control.enabled"), `true`, datastore.Live)).To(Succeed())
			Expect(ds.SetMetadata(ctx, meta, datastoretest.DataKey("settings.host-containers.source"),
				`{"command": "generic", "depth": 1}`, datastore.Live)).To(Succeed())
			Expect(ds.SetMetadata(ctx, meta, datastoretest.DataKey("settings.motd"), `"motd-gen"`, datastore.Live)).To(Succeed())

			result, err := settings.NewController(ds, nil).GetSettingsGeneratorMetadata(ctx, settings.GeneratorMetadataKey)
			Expect(err).ToNot(HaveOccurred())
			Expect(result).To(Equal(map[string]settings.SettingsGenerator{
				"settings.host-containers.admin.source":   {Command: "generic", Strength: settings.Strong},
				"settings.host-containers.control.source": {Command: "generic", Strength: settings.Strong},
				"settings.motd": {Command: "motd-gen", Strength: settings.Strong},
			}))
		})
	})
})
