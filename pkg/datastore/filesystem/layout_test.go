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
	"errors"
	"os"
	"path/filepath"

	"github.com/Masterminds/semver/v3"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/united-manufacturing-hub/umh-datastore/pkg/datastore"
	"github.com/united-manufacturing-hub/umh-datastore/pkg/datastore/datastoretest"
	"github.com/united-manufacturing-hub/umh-datastore/pkg/datastore/filesystem"
	fsservice "github.com/united-manufacturing-hub/umh-datastore/pkg/service/filesystem"
)

var _ = Describe("version layout", func() {
	var (
		ctx  context.Context
		root string
		fs   fsservice.Service
	)

	BeforeEach(func() {
		ctx = context.Background()
		root = GinkgoT().TempDir()
		fs = fsservice.NewDefaultService()
	})

	It("creates a datastore reachable through the link chain", func() {
		dir, err := filesystem.Create(ctx, fs, root, semver.MustParse("1.5.2"), nil)
		Expect(err).ToNot(HaveOccurred())
		Expect(filepath.Base(dir)).To(MatchRegexp(`^v1\.5\.2_[0-9a-f]{16}$`))

		for link, target := range map[string]string{
			"current": "v1",
			"v1":      "v1.5",
			"v1.5":    "v1.5.2",
			"v1.5.2":  filepath.Base(dir),
		} {
			got, err := os.Readlink(filepath.Join(root, link))
			Expect(err).ToNot(HaveOccurred())
			Expect(got).To(Equal(target), "link %s", link)
		}

		info, err := os.Stat(filepath.Join(root, "current", "live", "data"))
		Expect(err).ToNot(HaveOccurred())
		Expect(info.IsDir()).To(BeTrue())

		version, err := filesystem.ReadVersion(ctx, fs, root)
		Expect(err).ToNot(HaveOccurred())
		Expect(version.String()).To(Equal("1.5.2"))
	})

	It("flips an existing chain and can be repeated", func() {
		_, err := filesystem.Create(ctx, fs, root, semver.MustParse("0.99.0"), nil)
		Expect(err).ToNot(HaveOccurred())
		Expect(os.Mkdir(filepath.Join(root, "v0.99.1_abc"), 0o755)).To(Succeed())

		for range 2 {
			Expect(filesystem.PointVersionAt(ctx, fs, root, semver.MustParse("0.99.1"), "v0.99.1_abc", nil)).To(Succeed())
		}

		version, err := filesystem.ReadVersion(ctx, fs, root)
		Expect(err).ToNot(HaveOccurred())
		Expect(version.String()).To(Equal("0.99.1"))

		target, err := os.Readlink(filepath.Join(root, "v0.99.1"))
		Expect(err).ToNot(HaveOccurred())
		Expect(target).To(Equal("v0.99.1_abc"))

		// the old patch link stays for rollbacks
		_, err = os.Lstat(filepath.Join(root, "v0.99.0"))
		Expect(err).ToNot(HaveOccurred())

		entries, err := os.ReadDir(root)
		Expect(err).ToNot(HaveOccurred())
		for _, entry := range entries {
			Expect(entry.Name()).ToNot(HavePrefix(".tmp-"))
		}
	})

	It("fails on a missing link", func() {
		_, err := filesystem.ReadVersion(ctx, fs, root)
		Expect(err).To(MatchError(filesystem.ErrLinkRead))
	})

	It("fails on a link that does not name a version", func() {
		Expect(os.Symlink("v1", filepath.Join(root, "current"))).To(Succeed())
		Expect(os.Symlink("v1.0", filepath.Join(root, "v1"))).To(Succeed())
		Expect(os.Symlink("latest", filepath.Join(root, "v1.0"))).To(Succeed())

		_, err := filesystem.ReadVersion(ctx, fs, root)
		Expect(err).To(MatchError(filesystem.ErrInvalidDatastoreVersion))
	})

	It("falls back to the default filesystem service", func() {
		_, err := filesystem.Create(ctx, nil, root, semver.MustParse("2.1.0"), nil)
		Expect(err).ToNot(HaveOccurred())

		Expect(filesystem.SwapLink(ctx, nil, root, "extra", "v2")).To(Succeed())

		version, err := filesystem.ReadVersion(ctx, nil, root)
		Expect(err).ToNot(HaveOccurred())
		Expect(version.String()).To(Equal("2.1.0"))
	})

	It("refuses to create a datastore over an existing one and keeps its data", func() {
		dir, err := filesystem.Create(ctx, fs, root, semver.MustParse("1.0.0"), nil)
		Expect(err).ToNot(HaveOccurred())

		store := filesystem.NewDataStore(filepath.Join(root, "current"), fs, nil)
		motd := datastoretest.DataKey("settings.motd")
		Expect(store.SetKey(ctx, motd, `"hi"`, datastore.Live)).To(Succeed())

		for _, version := range []string{"1.0.0", "2.0.0"} {
			_, err = filesystem.Create(ctx, fs, root, semver.MustParse(version), nil)
			Expect(err).To(MatchError(filesystem.ErrDatastoreExists), "version %s", version)
		}

		resolved, err := filepath.EvalSymlinks(filepath.Join(root, "current"))
		Expect(err).ToNot(HaveOccurred())
		Expect(resolved).To(Equal(dir))

		value, ok, err := store.GetKey(ctx, motd, datastore.Live)
		Expect(err).ToNot(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(value).To(Equal(`"hi"`))
	})

	It("refuses a version whose patch link is already taken", func() {
		Expect(os.Symlink("v1.0.0_abc", filepath.Join(root, "v1.0.0"))).To(Succeed())

		_, err := filesystem.Create(ctx, fs, root, semver.MustParse("1.0.0"), nil)
		Expect(err).To(MatchError(filesystem.ErrDatastoreExists))
	})

	It("treats a failed directory sync as fatal", func() {
		mock := fsservice.NewMockFileSystem()
		mock.SyncDirectoryFunc = func(context.Context, string) error {
			return errors.New("EIO")
		}

		_, err := filesystem.Create(ctx, mock, root, semver.MustParse("1.0.0"), nil)
		Expect(err).To(MatchError(filesystem.ErrDirectorySync))
	})

	It("reports a failed rename as a link swap failure", func() {
		mock := fsservice.NewMockFileSystem()
		mock.RenameFunc = func(context.Context, string, string) error {
			return errors.New("EXDEV")
		}

		_, err := filesystem.Create(ctx, mock, root, semver.MustParse("1.0.0"), nil)
		Expect(err).To(MatchError(filesystem.ErrLinkSwap))

		_, err = os.Lstat(filepath.Join(root, "current"))
		Expect(os.IsNotExist(err)).To(BeTrue())
	})
})
