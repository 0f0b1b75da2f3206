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
	"strings"

	"github.com/Masterminds/semver/v3"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/united-manufacturing-hub/umh-datastore/pkg/migration"
)

func v(s string) *semver.Version {
	GinkgoHelper()

	version, err := semver.StrictNewVersion(s)
	Expect(err).ToNot(HaveOccurred())

	return version
}

func manifestOf(doc string) *migration.Manifest {
	GinkgoHelper()

	manifest, err := migration.ParseManifest(strings.NewReader(doc))
	Expect(err).ToNot(HaveOccurred())

	return manifest
}

var _ = Describe("Manifest", func() {
	Describe("DirectionFromVersions", func() {
		It("orders versions", func() {
			d, ok := migration.DirectionFromVersions(v("1.0.0"), v("1.1.0"))
			Expect(ok).To(BeTrue())
			Expect(d).To(Equal(migration.Forward))
			Expect(d.String()).To(Equal("--forward"))

			d, ok = migration.DirectionFromVersions(v("1.1.0"), v("1.0.0"))
			Expect(ok).To(BeTrue())
			Expect(d).To(Equal(migration.Backward))
			Expect(d.String()).To(Equal("--backward"))

			_, ok = migration.DirectionFromVersions(v("1.1.0"), v("1.1.0"))
			Expect(ok).To(BeFalse())
		})
	})

	Describe("ParseManifest", func() {
		It("reads transitions and ignores other fields", func() {
			manifest := manifestOf(`{"updates": [], "migrations": {"(0.99.0, 0.99.1)": ["b-first", "a-second"]}}`)
			Expect(manifest.Migrations).To(HaveLen(1))

			for transition, migrations := range manifest.Migrations {
				Expect(transition.String()).To(Equal("(0.99.0, 0.99.1)"))
				Expect(migrations).To(Equal([]string{"b-first", "a-second"}))
			}
		})

		DescribeTable("rejects malformed manifests",
			func(doc string) {
				_, err := migration.ParseManifest(strings.NewReader(doc))
				Expect(err).To(MatchError(migration.ErrManifestParse))
			},
			Entry("not JSON", `migrations:`),
			Entry("bad key", `{"migrations": {"0.99.0 -> 0.99.1": []}}`),
			Entry("bad version", `{"migrations": {"(0.99, 0.99.1)": []}}`),
			Entry("duplicate transition", `{"migrations": {"(0.99.0, 0.99.1)": [], "(0.99.0,0.99.1)": []}}`),
		)

		It("round trips through MarshalJSON", func() {
			manifest := manifestOf(`{"migrations": {"(1.0.0, 1.1.0)": ["m"]}}`)

			raw, err := manifest.MarshalJSON()
			Expect(err).ToNot(HaveOccurred())
			Expect(string(raw)).To(Equal(`{"migrations":{"(1.0.0, 1.1.0)":["m"]}}`))
		})
	})

	Describe("FindMigrations", func() {
		var manifest *migration.Manifest

		BeforeEach(func() {
			manifest = manifestOf(`{"migrations": {
				"(1.0.0, 1.1.0)": ["b-one", "a-two"],
				"(1.0.0, 1.2.0)": ["skip"],
				"(1.2.0, 1.3.0)": ["three"],
				"(1.1.0, 1.2.0)": ["unused"]
			}}`)
		})

		It("takes the furthest transition not passing the target", func() {
			Expect(migration.FindMigrations(v("1.0.0"), v("1.1.0"), manifest)).To(Equal([]string{"b-one", "a-two"}))
			Expect(migration.FindMigrations(v("1.0.0"), v("1.3.0"), manifest)).To(Equal([]string{"skip", "three"}))
		})

		It("reverses the list for backward moves", func() {
			Expect(migration.FindMigrations(v("1.1.0"), v("1.0.0"), manifest)).To(Equal([]string{"a-two", "b-one"}))
			Expect(migration.FindMigrations(v("1.3.0"), v("1.0.0"), manifest)).To(Equal([]string{"three", "skip"}))
		})

		It("returns nothing for equal versions", func() {
			Expect(migration.FindMigrations(v("1.0.0"), v("1.0.0"), manifest)).To(BeEmpty())
		})

		It("stops at a version without a transition", func() {
			Expect(migration.FindMigrations(v("1.3.0"), v("2.0.0"), manifest)).To(BeEmpty())
			Expect(migration.FindMigrations(v("1.2.0"), v("2.0.0"), manifest)).To(Equal([]string{"three"}))
		})
	})
})
