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
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/united-manufacturing-hub/umh-datastore/pkg/datastore"
	"github.com/united-manufacturing-hub/umh-datastore/pkg/datastore/datastoretest"
	"github.com/united-manufacturing-hub/umh-datastore/pkg/datastore/filesystem"
	"github.com/united-manufacturing-hub/umh-datastore/pkg/migration"
	fsservice "github.com/united-manufacturing-hub/umh-datastore/pkg/service/filesystem"
)

// The prefixes make sure migrations do not run in alphabetical order.
const (
	firstMigration   = "b-first-migration"
	secondMigration  = "a-second-migration"
	thirdMigration   = "third-migration"
	failingMigration = "failing-migration"
)

// testMigration appends its name and arguments to result.txt next to the source datastore and
// creates the target datastore.
func testMigration(name string) string {
	return fmt.Sprintf(`#!/usr/bin/env bash
set -eo pipefail
migration_name=%q
datastore_parent_dir="$(dirname "$3")"
outfile="${datastore_parent_dir}/result.txt"
echo "${migration_name}:" "$@" >> "${outfile}"
mkdir -p "$5/live/data"
if [[ "${migration_name}" = "failing-migration" ]]; then
  >&2 echo "this migration is supposed to fail: exit 1"
  exit 1
fi
`, name)
}

type testRepo struct {
	metadataDir string
	targetsDir  string
}

func newTestRepo(ctx context.Context, transition string, migrations []string) *testRepo {
	GinkgoHelper()

	dir := GinkgoT().TempDir()
	repo := &testRepo{
		metadataDir: filepath.Join(dir, "metadata"),
		targetsDir:  filepath.Join(dir, "targets"),
	}
	Expect(os.MkdirAll(repo.targetsDir, 0o755)).To(Succeed())

	targets := map[string]migration.TargetInfo{}
	write := func(name string, data []byte) {
		Expect(os.WriteFile(filepath.Join(repo.targetsDir, name), data, 0o644)).To(Succeed())
		targets[name] = migration.NewTargetInfo(data)
	}

	quoted := make([]string, len(migrations))
	for i, name := range migrations {
		quoted[i] = fmt.Sprintf("%q", name)
		write(name, lz4Compress([]byte(testMigration(name))))
	}

	write("manifest.json", []byte(fmt.Sprintf(`{"migrations": {%q: [%s]}}`, transition, strings.Join(quoted, ", "))))
	Expect(migration.WriteTargetsIndex(ctx, nil, repo.metadataDir, targets)).To(Succeed())

	return repo
}

func (r *testRepo) open(ctx context.Context) migration.Repository {
	GinkgoHelper()

	repo, err := migration.NewDirectoryRepository(ctx, nil, r.metadataDir, r.targetsDir, nil)
	Expect(err).ToNot(HaveOccurred())

	return repo
}

// mapRepository serves targets from memory without verification.
type mapRepository map[string][]byte

func (r mapRepository) ReadTarget(_ context.Context, name string) (io.ReadCloser, error) {
	data, ok := r[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", migration.ErrTargetNotFound, name)
	}

	return io.NopCloser(bytes.NewReader(data)), nil
}

// resultLines returns the lines the test migrations wrote.
func resultLines(root string) []string {
	GinkgoHelper()

	raw, err := os.ReadFile(filepath.Join(root, "result.txt"))
	Expect(err).ToNot(HaveOccurred())

	return strings.Split(strings.TrimSpace(string(raw)), "\n")
}

// targetOf extracts the --target-datastore argument of a result line.
func targetOf(line string) string {
	fields := strings.Fields(line)

	return fields[len(fields)-1]
}

var _ = Describe("Migrator", func() {
	var (
		ctx  context.Context
		root string
	)

	BeforeEach(func() {
		if _, err := exec.LookPath("bash"); err != nil {
			Skip("bash is required to run test migrations")
		}

		ctx = context.Background()
		root = GinkgoT().TempDir()
	})

	createDatastore := func(version string) string {
		GinkgoHelper()

		dir, err := filesystem.Create(ctx, nil, root, v(version), nil)
		Expect(err).ToNot(HaveOccurred())

		return dir
	}

	run := func(repo migration.Repository, to string) (*migration.Result, *migration.Migrator, error) {
		m, err := migration.NewMigrator(migration.Options{
			DatastorePath: filepath.Join(root, "current"),
			TargetVersion: v(to),
			Repository:    repo,
		})
		Expect(err).ToNot(HaveOccurred())

		result, err := m.Run(ctx)

		return result, m, err
	}

	currentDirectory := func() string {
		GinkgoHelper()

		resolved, err := filepath.EvalSymlinks(filepath.Join(root, "current"))
		Expect(err).ToNot(HaveOccurred())

		return resolved
	}

	It("runs the manifest's migrations in order and flips to the last output", func() {
		createDatastore("0.99.0")
		repo := newTestRepo(ctx, "(0.99.0, 0.99.1)", []string{firstMigration, secondMigration, thirdMigration})

		result, m, err := run(repo.open(ctx), "0.99.1")
		Expect(err).ToNot(HaveOccurred())
		Expect(m.State()).To(Equal(migration.StateDone))
		Expect(result.Migrations).To(Equal([]string{firstMigration, secondMigration, thirdMigration}))

		lines := resultLines(root)
		Expect(lines).To(HaveLen(3))
		Expect(lines[0]).To(HavePrefix(firstMigration + ": --forward --source-datastore "))
		Expect(lines[1]).To(HavePrefix(secondMigration + ": --forward"))
		Expect(lines[2]).To(HavePrefix(thirdMigration + ": --forward"))

		version, err := filesystem.ReadVersion(ctx, nil, root)
		Expect(err).ToNot(HaveOccurred())
		Expect(version.String()).To(Equal("0.99.1"))

		final, err := filepath.EvalSymlinks(targetOf(lines[2]))
		Expect(err).ToNot(HaveOccurred())
		Expect(currentDirectory()).To(Equal(final))
		Expect(result.Datastore).To(Equal(targetOf(lines[2])))

		Expect(targetOf(lines[0])).ToNot(BeADirectory())
		Expect(targetOf(lines[1])).ToNot(BeADirectory())

		link, err := os.Readlink(filepath.Join(root, "v0.99.1"))
		Expect(err).ToNot(HaveOccurred())
		Expect(filepath.IsAbs(link)).To(BeFalse())
	})

	It("runs migrations backward in reverse order", func() {
		createDatastore("0.99.1")
		repo := newTestRepo(ctx, "(0.99.0, 0.99.1)", []string{firstMigration, secondMigration, thirdMigration})

		_, _, err := run(repo.open(ctx), "0.99.0")
		Expect(err).ToNot(HaveOccurred())

		lines := resultLines(root)
		Expect(lines).To(HaveLen(3))
		Expect(lines[0]).To(HavePrefix(thirdMigration + ": --backward"))
		Expect(lines[1]).To(HavePrefix(secondMigration + ": --backward"))
		Expect(lines[2]).To(HavePrefix(firstMigration + ": --backward"))

		version, err := filesystem.ReadVersion(ctx, nil, root)
		Expect(err).ToNot(HaveOccurred())
		Expect(version.String()).To(Equal("0.99.0"))
	})

	It("keeps the old version and the last two outputs when a migration fails", func() {
		createDatastore("0.99.0")
		repo := newTestRepo(ctx, "(0.99.0, 0.99.1)", []string{firstMigration, secondMigration, failingMigration})

		_, m, err := run(repo.open(ctx), "0.99.1")
		Expect(err).To(HaveOccurred())
		Expect(m.State()).To(Equal(migration.StateFailed))

		var failure *migration.MigrationFailureError
		Expect(errors.As(err, &failure)).To(BeTrue())
		Expect(failure.Migration).To(Equal(failingMigration))
		Expect(failure.ExitCode).To(Equal(1))
		Expect(failure.Stderr).To(ContainSubstring("supposed to fail"))

		version, err := filesystem.ReadVersion(ctx, nil, root)
		Expect(err).ToNot(HaveOccurred())
		Expect(version.String()).To(Equal("0.99.0"))

		lines := resultLines(root)
		Expect(lines).To(HaveLen(3))
		Expect(targetOf(lines[0])).ToNot(BeADirectory())
		Expect(targetOf(lines[1])).To(BeADirectory())
		Expect(targetOf(lines[2])).To(BeADirectory())
	})

	It("flips to the pruned copy when no migrations are needed", func() {
		original := createDatastore("0.99.0")

		live := filesystem.NewDataStore(original, nil, nil)
		Expect(live.SetKey(ctx, datastoretest.DataKey("settings.motd"), `"hi"`, datastore.Live)).To(Succeed())
		Expect(live.SetKey(ctx, datastoretest.DataKey("settings.hostname"), `"box"`, datastore.Live)).To(Succeed())
		Expect(live.SetMetadata(ctx, datastoretest.MetaKey("strength"), datastoretest.DataKey("settings.hostname"), `"weak"`, datastore.Live)).To(Succeed())

		repo := newTestRepo(ctx, "(0.99.1, 0.99.2)", nil)

		result, _, err := run(repo.open(ctx), "0.99.1")
		Expect(err).ToNot(HaveOccurred())
		Expect(result.Migrations).To(BeEmpty())
		Expect(filepath.Join(root, "result.txt")).ToNot(BeAnExistingFile())

		current := currentDirectory()
		Expect(current).ToNot(Equal(original))
		Expect(filepath.Base(current)).To(HavePrefix("v0.99.1_"))

		migrated := filesystem.NewDataStore(current, nil, nil)
		values, err := migrated.GetPrefix(ctx, "", datastore.Live)
		Expect(err).ToNot(HaveOccurred())
		Expect(values).To(Equal(map[datastore.Key]string{
			datastoretest.DataKey("settings.motd"): `"hi"`,
		}))

		Expect(original).To(BeADirectory())
	})

	It("does nothing when the datastore is at the target version", func() {
		createDatastore("0.99.1")
		before, err := os.ReadDir(root)
		Expect(err).ToNot(HaveOccurred())

		result, m, err := run(mapRepository{}, "0.99.1")
		Expect(err).ToNot(HaveOccurred())
		Expect(result.UpToDate).To(BeTrue())
		Expect(m.State()).To(Equal(migration.StateDone))

		after, err := os.ReadDir(root)
		Expect(err).ToNot(HaveOccurred())
		Expect(after).To(HaveLen(len(before)))
	})

	It("fails without a manifest", func() {
		createDatastore("0.99.0")

		_, m, err := run(mapRepository{}, "0.99.1")
		Expect(err).To(MatchError(migration.ErrManifestNotFound))
		Expect(m.State()).To(Equal(migration.StateFailed))
	})

	It("fails on a migration missing from the repository", func() {
		createDatastore("0.99.0")

		_, _, err := run(mapRepository{
			"manifest.json": []byte(`{"migrations": {"(0.99.0, 0.99.1)": ["ghost"]}}`),
		}, "0.99.1")
		Expect(err).To(MatchError(migration.ErrMigrationNotFound))

		version, err := filesystem.ReadVersion(ctx, nil, root)
		Expect(err).ToNot(HaveOccurred())
		Expect(version.String()).To(Equal("0.99.0"))
	})

	It("fails on a migration that is not compressed", func() {
		createDatastore("0.99.0")

		_, _, err := run(mapRepository{
			"manifest.json": []byte(`{"migrations": {"(0.99.0, 0.99.1)": ["plain"]}}`),
			"plain":         []byte(testMigration("plain")),
		}, "0.99.1")
		Expect(err).To(MatchError(migration.ErrDecompress))
	})

	It("resolves the datastore path through the configured filesystem", func() {
		createDatastore("0.99.0")

		injected := errors.New("resolve failed")
		mock := fsservice.NewMockFileSystem()
		mock.EvalSymlinksFunc = func(context.Context, string) (string, error) {
			return "", injected
		}

		m, err := migration.NewMigrator(migration.Options{
			DatastorePath: filepath.Join(root, "current"),
			TargetVersion: v("0.99.1"),
			Repository:    mapRepository{},
			FileSystem:    mock,
		})
		Expect(err).ToNot(HaveOccurred())

		_, err = m.Run(ctx)
		Expect(err).To(MatchError(injected))
		Expect(m.State()).To(Equal(migration.StateFailed))
		Expect(mock.Calls("EvalSymlinks")).To(Equal(1))
	})

	It("fails on broken version links", func() {
		createDatastore("0.99.0")
		Expect(os.Remove(filepath.Join(root, "v0.99"))).To(Succeed())

		_, m, err := run(mapRepository{}, "0.99.1")
		Expect(err).To(MatchError(filesystem.ErrLinkRead))
		Expect(m.State()).To(Equal(migration.StateFailed))
	})
})
