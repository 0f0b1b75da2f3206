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

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/united-manufacturing-hub/umh-datastore/pkg/datastore"
	"github.com/united-manufacturing-hub/umh-datastore/pkg/datastore/datastoretest"
	"github.com/united-manufacturing-hub/umh-datastore/pkg/datastore/memory"
	"github.com/united-manufacturing-hub/umh-datastore/pkg/settings"
)

var _ = Describe("StrengthCheck", func() {
	var (
		ctx         context.Context
		ds          *memory.DataStore
		key         datastore.Key
		strengthKey datastore.Key
		pending     datastore.Committed
	)

	BeforeEach(func() {
		ctx = context.Background()
		ds = memory.NewDataStore()
		key = datastoretest.DataKey("settings.motd")
		strengthKey = datastoretest.MetaKey("strength")
		pending = datastore.Pending("tx")
	})

	setPending := func(strength string) {
		Expect(ds.SetKey(ctx, key, `"pending"`, pending)).To(Succeed())
		Expect(ds.SetMetadata(ctx, strengthKey, key, `"`+strength+`"`, pending)).To(Succeed())
	}

	DescribeTable("strength transitions",
		func(committed string, populated bool, requested string, approved bool, writesStrength bool) {
			if committed != "" {
				Expect(ds.SetMetadata(ctx, strengthKey, key, `"`+committed+`"`, datastore.Live)).To(Succeed())
			}

			if populated {
				Expect(ds.SetKey(ctx, key, `"live"`, datastore.Live)).To(Succeed())
			}

			setPending(requested)

			result, err := settings.StrengthCheck.Check(ctx, ds, pending)
			Expect(err).ToNot(HaveOccurred())
			Expect(result.IsApproved()).To(Equal(approved))

			if !approved {
				Expect(result.Reason()).To(Equal("Cannot change setting settings.motd strength from strong to weak"))

				return
			}

			Expect(result.Write().Settings).To(HaveKeyWithValue(key, `"pending"`))

			if writesStrength {
				Expect(result.Write().Metadata).To(ConsistOf(datastore.MetadataWrite{
					MetadataKey: strengthKey,
					DataKey:     key,
					Value:       `"` + requested + `"`,
				}))
			} else {
				Expect(result.Write().Metadata).To(BeEmpty())
			}
		},
		Entry("weak over populated strong is rejected", "strong", true, "weak", false, false),
		Entry("weak over populated default is rejected", "", true, "weak", false, false),
		Entry("weak over unpopulated strong is written", "strong", false, "weak", true, true),
		Entry("strong over populated weak is written", "weak", true, "strong", true, true),
		Entry("strong over unpopulated weak is written", "weak", false, "strong", true, true),
		Entry("unchanged strong is skipped", "strong", true, "strong", true, false),
		Entry("unchanged weak is skipped", "weak", true, "weak", true, false),
	)

	It("ignores metadata other than strength", func() {
		Expect(ds.SetKey(ctx, key, `"pending"`, pending)).To(Succeed())
		Expect(ds.SetMetadata(ctx, datastoretest.MetaKey("affected-services"), key, `["motd"]`, pending)).To(Succeed())

		result, err := settings.StrengthCheck.Check(ctx, ds, pending)
		Expect(err).ToNot(HaveOccurred())
		Expect(result.IsApproved()).To(BeTrue())
		Expect(result.Write().Metadata).To(BeEmpty())
	})

	It("only approves settings", func() {
		other := datastoretest.DataKey("services.motd.restart")
		Expect(ds.SetKey(ctx, other, `true`, pending)).To(Succeed())
		setPending("strong")

		result, err := settings.StrengthCheck.Check(ctx, ds, pending)
		Expect(err).ToNot(HaveOccurred())
		Expect(result.Write().Settings).To(HaveLen(1))
		Expect(result.Write().Settings).ToNot(HaveKey(other))
	})

	It("fails on an invalid strength", func() {
		setPending("medium")

		_, err := settings.StrengthCheck.Check(ctx, ds, pending)
		Expect(err).To(MatchError(settings.ErrInvalidStrength))
	})

	It("refuses to check Live", func() {
		_, err := settings.StrengthCheck.Check(ctx, ds, datastore.Live)
		Expect(err).To(MatchError(datastore.ErrInvalidTransaction))
	})

	Context("through a commit", func() {
		It("leaves Live and the transaction alone on rejection", func() {
			Expect(ds.SetKey(ctx, key, `"live"`, datastore.Live)).To(Succeed())
			setPending("weak")

			_, err := ds.CommitTransaction(ctx, "tx", settings.StrengthCheck)
			Expect(err).To(MatchError(datastore.ErrConstraintRejected))

			var rejected *datastore.ConstraintRejectError
			Expect(err).To(BeAssignableToTypeOf(rejected))

			value, ok, err := ds.GetKey(ctx, key, datastore.Live)
			Expect(err).ToNot(HaveOccurred())
			Expect(ok).To(BeTrue())
			Expect(value).To(Equal(`"live"`))

			value, ok, err = ds.GetKey(ctx, key, pending)
			Expect(err).ToNot(HaveOccurred())
			Expect(ok).To(BeTrue())
			Expect(value).To(Equal(`"pending"`))

			_, ok, err = ds.GetMetadata(ctx, strengthKey, key, datastore.Live)
			Expect(err).ToNot(HaveOccurred())
			Expect(ok).To(BeFalse())
		})

		It("promotes strong over weak and updates Live metadata", func() {
			Expect(ds.SetKey(ctx, key, `"live"`, datastore.Live)).To(Succeed())
			Expect(ds.SetMetadata(ctx, strengthKey, key, `"weak"`, datastore.Live)).To(Succeed())
			setPending("strong")

			keys, err := ds.CommitTransaction(ctx, "tx", settings.StrengthCheck)
			Expect(err).ToNot(HaveOccurred())
			Expect(keys.Names()).To(Equal([]string{"settings.motd"}))

			value, _, err := ds.GetMetadata(ctx, strengthKey, key, datastore.Live)
			Expect(err).ToNot(HaveOccurred())
			Expect(value).To(Equal(`"strong"`))

			txs, err := ds.ListTransactions(ctx)
			Expect(err).ToNot(HaveOccurred())
			Expect(txs).To(BeEmpty())
		})
	})
})
