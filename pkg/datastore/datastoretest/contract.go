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

// Package datastoretest holds the contract every datastore.DataStore implementation must pass.
package datastoretest

import (
	"context"
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/united-manufacturing-hub/umh-datastore/pkg/datastore"
)

// DataKey builds a data key and fails the running spec when name is invalid.
func DataKey(name string) datastore.Key {
	key, err := datastore.NewDataKey(name)
	ExpectWithOffset(1, err).ToNot(HaveOccurred())

	return key
}

// MetaKey builds a meta key and fails the running spec when name is invalid.
func MetaKey(name string) datastore.Key {
	key, err := datastore.NewMetaKey(name)
	ExpectWithOffset(1, err).ToNot(HaveOccurred())

	return key
}

// ItBehavesLikeADataStore registers the shared specs. newStore is called before every spec
// and must return an empty store.
func ItBehavesLikeADataStore(newStore func() datastore.DataStore) {
	var (
		ds  datastore.DataStore
		ctx context.Context
	)

	BeforeEach(func() {
		ds = newStore()
		ctx = context.Background()
	})

	Describe("data keys", func() {
		It("reports unpopulated keys as absent, not as an error", func() {
			value, ok, err := ds.GetKey(ctx, DataKey("settings.motd"), datastore.Live)
			Expect(err).ToNot(HaveOccurred())
			Expect(ok).To(BeFalse())
			Expect(value).To(BeEmpty())

			populated, err := ds.KeyPopulated(ctx, DataKey("settings.motd"), datastore.Live)
			Expect(err).ToNot(HaveOccurred())
			Expect(populated).To(BeFalse())
		})

		It("stores and overwrites values", func() {
			key := DataKey("settings.motd")
			Expect(ds.SetKey(ctx, key, `"hello"`, datastore.Live)).To(Succeed())
			Expect(ds.SetKey(ctx, key, `"hi"`, datastore.Live)).To(Succeed())

			value, ok, err := ds.GetKey(ctx, key, datastore.Live)
			Expect(err).ToNot(HaveOccurred())
			Expect(ok).To(BeTrue())
			Expect(value).To(Equal(`"hi"`))

			populated, err := ds.KeyPopulated(ctx, key, datastore.Live)
			Expect(err).ToNot(HaveOccurred())
			Expect(populated).To(BeTrue())
		})

		It("keeps a key and its children apart", func() {
			Expect(ds.SetKey(ctx, DataKey("settings.ntp"), `"parent"`, datastore.Live)).To(Succeed())
			Expect(ds.SetKey(ctx, DataKey("settings.ntp.time-servers"), `["a","b"]`, datastore.Live)).To(Succeed())

			values, err := ds.GetPrefix(ctx, "settings.", datastore.Live)
			Expect(err).ToNot(HaveOccurred())
			Expect(values).To(Equal(map[datastore.Key]string{
				DataKey("settings.ntp"):              `"parent"`,
				DataKey("settings.ntp.time-servers"): `["a","b"]`,
			}))
		})

		It("isolates pending transactions from live and from each other", func() {
			key := DataKey("settings.hostname")
			Expect(ds.SetKey(ctx, key, `"pending"`, datastore.Pending("t"))).To(Succeed())

			value, ok, err := ds.GetKey(ctx, key, datastore.Pending("t"))
			Expect(err).ToNot(HaveOccurred())
			Expect(ok).To(BeTrue())
			Expect(value).To(Equal(`"pending"`))

			_, ok, err = ds.GetKey(ctx, key, datastore.Live)
			Expect(err).ToNot(HaveOccurred())
			Expect(ok).To(BeFalse())

			_, ok, err = ds.GetKey(ctx, key, datastore.Pending("u"))
			Expect(err).ToNot(HaveOccurred())
			Expect(ok).To(BeFalse())
		})

		It("unsets keys and treats unsetting an absent key as a no-op", func() {
			key := DataKey("settings.a.b.c")
			Expect(ds.UnsetKey(ctx, key, datastore.Live)).To(Succeed())

			Expect(ds.SetKey(ctx, key, `1`, datastore.Live)).To(Succeed())
			Expect(ds.SetKey(ctx, DataKey("settings.a.x"), `2`, datastore.Live)).To(Succeed())
			Expect(ds.UnsetKey(ctx, key, datastore.Live)).To(Succeed())

			keys, err := ds.ListPopulatedKeys(ctx, "", datastore.Live)
			Expect(err).ToNot(HaveOccurred())
			Expect(keys.Names()).To(Equal([]string{"settings.a.x"}))
		})

		It("matches listing prefixes as plain strings", func() {
			pairs := map[datastore.Key]string{
				DataKey("settings.a"):      `1`,
				DataKey("settings.ab"):     `2`,
				DataKey("settings.a.deep"): `3`,
				DataKey("services.a"):      `4`,
			}
			Expect(ds.SetKeys(ctx, pairs, datastore.Live)).To(Succeed())

			keys, err := ds.ListPopulatedKeys(ctx, "settings.a", datastore.Live)
			Expect(err).ToNot(HaveOccurred())
			Expect(keys.Names()).To(Equal([]string{"settings.a", "settings.a.deep", "settings.ab"}))

			keys, err = ds.ListPopulatedKeys(ctx, "s", datastore.Live)
			Expect(err).ToNot(HaveOccurred())
			Expect(keys).To(HaveLen(4))

			keys, err = ds.ListPopulatedKeys(ctx, "nothing", datastore.Live)
			Expect(err).ToNot(HaveOccurred())
			Expect(keys).To(BeEmpty())
		})

		It("refuses a pending dataset without a transaction name", func() {
			err := ds.SetKey(ctx, DataKey("settings.a"), `1`, datastore.Pending(""))
			Expect(err).To(MatchError(datastore.ErrInvalidTransaction))
		})
	})

	Describe("metadata", func() {
		It("stores metadata per dataset", func() {
			strength := MetaKey("strength")
			key := DataKey("settings.motd")

			Expect(ds.SetMetadata(ctx, strength, key, `"weak"`, datastore.Pending("t"))).To(Succeed())

			value, ok, err := ds.GetMetadata(ctx, strength, key, datastore.Pending("t"))
			Expect(err).ToNot(HaveOccurred())
			Expect(ok).To(BeTrue())
			Expect(value).To(Equal(`"weak"`))

			_, ok, err = ds.GetMetadata(ctx, strength, key, datastore.Live)
			Expect(err).ToNot(HaveOccurred())
			Expect(ok).To(BeFalse())
		})

		It("returns metadata below a prefix, optionally filtered by name", func() {
			Expect(ds.SetMetadata(ctx, MetaKey("strength"), DataKey("settings.a"), `"weak"`, datastore.Live)).To(Succeed())
			Expect(ds.SetMetadata(ctx, MetaKey("affected-services"), DataKey("settings.a"), `["motd"]`, datastore.Live)).To(Succeed())
			Expect(ds.SetMetadata(ctx, MetaKey("strength"), DataKey("settings.b.c"), `"strong"`, datastore.Live)).To(Succeed())
			Expect(ds.SetMetadata(ctx, MetaKey("strength"), DataKey("services.x"), `"weak"`, datastore.Live)).To(Succeed())

			all, err := ds.GetMetadataPrefix(ctx, "settings.", datastore.Live, "")
			Expect(err).ToNot(HaveOccurred())
			Expect(all).To(Equal(map[datastore.Key]map[datastore.Key]string{
				DataKey("settings.a"): {
					MetaKey("strength"):          `"weak"`,
					MetaKey("affected-services"): `["motd"]`,
				},
				DataKey("settings.b.c"): {
					MetaKey("strength"): `"strong"`,
				},
			}))

			filtered, err := ds.GetMetadataPrefix(ctx, "", datastore.Live, "affected-services")
			Expect(err).ToNot(HaveOccurred())
			Expect(filtered).To(Equal(map[datastore.Key]map[datastore.Key]string{
				DataKey("settings.a"): {MetaKey("affected-services"): `["motd"]`},
			}))
		})

		It("unsets live metadata", func() {
			strength := MetaKey("strength")
			key := DataKey("settings.a")
			Expect(ds.SetMetadata(ctx, strength, key, `"weak"`, datastore.Live)).To(Succeed())
			Expect(ds.UnsetMetadata(ctx, strength, key)).To(Succeed())
			Expect(ds.UnsetMetadata(ctx, strength, key)).To(Succeed())

			_, ok, err := ds.GetMetadata(ctx, strength, key, datastore.Live)
			Expect(err).ToNot(HaveOccurred())
			Expect(ok).To(BeFalse())

			all, err := ds.GetMetadataPrefix(ctx, "", datastore.Live, "")
			Expect(err).ToNot(HaveOccurred())
			Expect(all).To(BeEmpty())
		})
	})

	Describe("transactions", func() {
		It("lists transactions sorted and unique", func() {
			Expect(ds.SetKey(ctx, DataKey("settings.a"), `1`, datastore.Pending("zeta"))).To(Succeed())
			Expect(ds.SetKey(ctx, DataKey("settings.b"), `1`, datastore.Pending("zeta"))).To(Succeed())
			Expect(ds.SetKey(ctx, DataKey("settings.a"), `1`, datastore.Pending("alpha/with spaces"))).To(Succeed())

			txs, err := ds.ListTransactions(ctx)
			Expect(err).ToNot(HaveOccurred())
			Expect(txs).To(Equal([]string{"alpha/with spaces", "zeta"}))
		})

		It("deletes a transaction and reports its pending keys", func() {
			Expect(ds.SetKey(ctx, DataKey("settings.a"), `1`, datastore.Pending("t"))).To(Succeed())
			Expect(ds.SetKey(ctx, DataKey("settings.b"), `2`, datastore.Pending("t"))).To(Succeed())
			Expect(ds.SetMetadata(ctx, MetaKey("strength"), DataKey("settings.a"), `"weak"`, datastore.Pending("t"))).To(Succeed())

			keys, err := ds.DeleteTransaction(ctx, "t")
			Expect(err).ToNot(HaveOccurred())
			Expect(keys.Names()).To(Equal([]string{"settings.a", "settings.b"}))

			txs, err := ds.ListTransactions(ctx)
			Expect(err).ToNot(HaveOccurred())
			Expect(txs).To(BeEmpty())

			_, ok, err := ds.GetMetadata(ctx, MetaKey("strength"), DataKey("settings.a"), datastore.Pending("t"))
			Expect(err).ToNot(HaveOccurred())
			Expect(ok).To(BeFalse())
		})

		It("accepts the longest transaction name and refuses anything longer", func() {
			longest := strings.Repeat("t", datastore.MaxTransactionNameLength)
			key := DataKey("settings.motd")

			Expect(ds.SetKey(ctx, key, `"hi"`, datastore.Pending(longest))).To(Succeed())

			txs, err := ds.ListTransactions(ctx)
			Expect(err).ToNot(HaveOccurred())
			Expect(txs).To(Equal([]string{longest}))

			keys, err := ds.CommitTransaction(ctx, longest, datastore.ApproveAll)
			Expect(err).ToNot(HaveOccurred())
			Expect(keys.Names()).To(Equal([]string{"settings.motd"}))

			tooLong := longest + "t"
			Expect(ds.SetKey(ctx, key, `"hi"`, datastore.Pending(tooLong))).To(MatchError(datastore.ErrInvalidTransaction))

			_, err = ds.DeleteTransaction(ctx, tooLong)
			Expect(err).To(MatchError(datastore.ErrInvalidTransaction))

			_, err = ds.CommitTransaction(ctx, tooLong, datastore.ApproveAll)
			Expect(err).To(MatchError(datastore.ErrInvalidTransaction))
		})

		It("stores the longest segment with the longest meta key", func() {
			key := DataKey("settings." + strings.Repeat("s", datastore.MaxKeySegmentLength))
			meta := MetaKey(strings.Repeat("m", datastore.MaxMetaKeyNameLength))

			Expect(ds.SetKey(ctx, key, `1`, datastore.Live)).To(Succeed())
			Expect(ds.SetMetadata(ctx, meta, key, `"x"`, datastore.Live)).To(Succeed())

			value, ok, err := ds.GetMetadata(ctx, meta, key, datastore.Live)
			Expect(err).ToNot(HaveOccurred())
			Expect(ok).To(BeTrue())
			Expect(value).To(Equal(`"x"`))
		})

		It("returns an empty set when deleting an unknown transaction", func() {
			keys, err := ds.DeleteTransaction(ctx, "does-not-exist")
			Expect(err).ToNot(HaveOccurred())
			Expect(keys).To(BeEmpty())
		})
	})

	Describe("commit", func() {
		BeforeEach(func() {
			Expect(ds.SetKey(ctx, DataKey("settings.motd"), `"new"`, datastore.Pending("t"))).To(Succeed())
			Expect(ds.SetKey(ctx, DataKey("settings.hostname"), `"box"`, datastore.Pending("t"))).To(Succeed())
			Expect(ds.SetKey(ctx, DataKey("settings.motd"), `"old"`, datastore.Live)).To(Succeed())
		})

		It("promotes approved settings and clears the transaction", func() {
			keys, err := ds.CommitTransaction(ctx, "t", datastore.ApproveAll)
			Expect(err).ToNot(HaveOccurred())
			Expect(keys.Names()).To(Equal([]string{"settings.hostname", "settings.motd"}))

			live, err := ds.GetPrefix(ctx, "", datastore.Live)
			Expect(err).ToNot(HaveOccurred())
			Expect(live).To(Equal(map[datastore.Key]string{
				DataKey("settings.motd"):     `"new"`,
				DataKey("settings.hostname"): `"box"`,
			}))

			pending, err := ds.GetPrefix(ctx, "", datastore.Pending("t"))
			Expect(err).ToNot(HaveOccurred())
			Expect(pending).To(BeEmpty())

			txs, err := ds.ListTransactions(ctx)
			Expect(err).ToNot(HaveOccurred())
			Expect(txs).To(BeEmpty())
		})

		It("writes only what the checker approved, including metadata", func() {
			checker := datastore.ConstraintCheckerFunc(func(_ context.Context, _ datastore.DataStore, _ datastore.Committed) (datastore.ConstraintCheckResult, error) {
				return datastore.Approve(datastore.ApprovedWrite{
					Settings: map[datastore.Key]string{DataKey("settings.hostname"): `"box"`},
					Metadata: []datastore.MetadataWrite{{
						MetadataKey: MetaKey("strength"),
						DataKey:     DataKey("settings.hostname"),
						Value:       `"weak"`,
					}},
				}), nil
			})

			keys, err := ds.CommitTransaction(ctx, "t", checker)
			Expect(err).ToNot(HaveOccurred())
			Expect(keys.Names()).To(Equal([]string{"settings.hostname"}))

			value, _, err := ds.GetKey(ctx, DataKey("settings.motd"), datastore.Live)
			Expect(err).ToNot(HaveOccurred())
			Expect(value).To(Equal(`"old"`))

			strength, ok, err := ds.GetMetadata(ctx, MetaKey("strength"), DataKey("settings.hostname"), datastore.Live)
			Expect(err).ToNot(HaveOccurred())
			Expect(ok).To(BeTrue())
			Expect(strength).To(Equal(`"weak"`))
		})

		It("leaves live and pending untouched on rejection", func() {
			checker := datastore.ConstraintCheckerFunc(func(_ context.Context, _ datastore.DataStore, _ datastore.Committed) (datastore.ConstraintCheckResult, error) {
				return datastore.Reject("not today"), nil
			})

			keys, err := ds.CommitTransaction(ctx, "t", checker)
			Expect(keys).To(BeNil())
			Expect(err).To(MatchError(datastore.ErrConstraintRejected))

			var rejectErr *datastore.ConstraintRejectError
			Expect(errors.As(err, &rejectErr)).To(BeTrue())
			Expect(rejectErr.Reason).To(Equal("not today"))
			Expect(rejectErr.Transaction).To(Equal("t"))

			value, _, err := ds.GetKey(ctx, DataKey("settings.motd"), datastore.Live)
			Expect(err).ToNot(HaveOccurred())
			Expect(value).To(Equal(`"old"`))

			pending, err := ds.GetPrefix(ctx, "", datastore.Pending("t"))
			Expect(err).ToNot(HaveOccurred())
			Expect(pending).To(HaveLen(2))
		})

		It("fails without writing when the checker fails", func() {
			checkErr := errors.New("cannot read live")
			checker := datastore.ConstraintCheckerFunc(func(_ context.Context, _ datastore.DataStore, _ datastore.Committed) (datastore.ConstraintCheckResult, error) {
				return datastore.ConstraintCheckResult{}, checkErr
			})

			_, err := ds.CommitTransaction(ctx, "t", checker)
			Expect(err).To(MatchError(checkErr))

			pending, err := ds.GetPrefix(ctx, "", datastore.Pending("t"))
			Expect(err).ToNot(HaveOccurred())
			Expect(pending).To(HaveLen(2))
		})

		It("returns an empty set for a transaction without pending keys", func() {
			keys, err := ds.CommitTransaction(ctx, "empty", datastore.ApproveAll)
			Expect(err).ToNot(HaveOccurred())
			Expect(keys).To(BeEmpty())
		})

		It("requires a checker", func() {
			_, err := ds.CommitTransaction(ctx, "t", nil)
			Expect(err).To(MatchError(datastore.ErrNilChecker))
		})
	})
}
