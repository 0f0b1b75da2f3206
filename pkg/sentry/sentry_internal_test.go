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

package sentry

import (
	"errors"
	"strings"

	"github.com/getsentry/sentry-go"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap/zaptest"
)

var _ = Describe("Sentry reporting", func() {
	It("shortens error titles to the first phrase", func() {
		Expect(getMeaningfulErrorTitle(errors.New("failed to flip symlinks: rename failed"))).To(Equal("failed to flip symlinks"))
		Expect(getMeaningfulErrorTitle(errors.New(strings.Repeat("x", 150)))).To(HaveLen(100))
	})

	It("tags string context and fingerprints the migration", func() {
		event := createSentryEvent(sentry.LevelFatal, errors.New("boom"), map[string]interface{}{
			"migration": "migrate_v0.99.1_add-motd",
			"exit_code": 3,
		})

		Expect(event.Tags).To(HaveKeyWithValue("migration", "migrate_v0.99.1_add-motd"))
		Expect(event.Extra).To(HaveKeyWithValue("exit_code", 3))
		Expect(event.Fingerprint).To(ContainElement("migration: migrate_v0.99.1_add-motd"))
	})

	It("does not panic on fatal issues while disabled", func() {
		log := zaptest.NewLogger(GinkgoT()).Sugar()

		Expect(func() {
			ReportIssuef(IssueTypeFatal, log, "migration failed: %w", errors.New("exit status 1"))
			ReportIssue(nil, IssueTypeError, nil)
		}).NotTo(Panic())
	})

	It("stays disabled without a DSN", func() {
		InitSentry("", "migrator", "1.2.3")
		Expect(enabled.Load()).To(BeFalse())
	})
})
