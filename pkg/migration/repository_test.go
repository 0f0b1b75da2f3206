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
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/pierrec/lz4/v4"

	"github.com/united-manufacturing-hub/umh-datastore/pkg/migration"
)

func lz4Compress(data []byte) []byte {
	GinkgoHelper()

	var buf bytes.Buffer

	w := lz4.NewWriter(&buf)
	_, err := w.Write(data)
	Expect(err).ToNot(HaveOccurred())
	Expect(w.Close()).To(Succeed())

	return buf.Bytes()
}

var _ = Describe("DirectoryRepository", func() {
	var (
		ctx         context.Context
		metadataDir string
		targetsDir  string
	)

	BeforeEach(func() {
		ctx = context.Background()
		dir := GinkgoT().TempDir()
		metadataDir = filepath.Join(dir, "metadata")
		targetsDir = filepath.Join(dir, "targets")
		Expect(os.MkdirAll(targetsDir, 0o755)).To(Succeed())
	})

	addTarget := func(targets map[string]migration.TargetInfo, name string, data []byte) {
		Expect(os.WriteFile(filepath.Join(targetsDir, name), data, 0o644)).To(Succeed())
		targets[name] = migration.NewTargetInfo(data)
	}

	It("hands out verified targets", func() {
		targets := map[string]migration.TargetInfo{}
		addTarget(targets, "manifest.json", []byte(`{"migrations": {}}`))
		Expect(migration.WriteTargetsIndex(ctx, nil, metadataDir, targets)).To(Succeed())

		repo, err := migration.NewDirectoryRepository(ctx, nil, metadataDir, targetsDir, nil)
		Expect(err).ToNot(HaveOccurred())

		rc, err := repo.ReadTarget(ctx, "manifest.json")
		Expect(err).ToNot(HaveOccurred())
		defer rc.Close()

		data, err := io.ReadAll(rc)
		Expect(err).ToNot(HaveOccurred())
		Expect(string(data)).To(Equal(`{"migrations": {}}`))
	})

	It("accepts a signed envelope", func() {
		data := []byte("payload")
		Expect(os.WriteFile(filepath.Join(targetsDir, "m1"), data, 0o644)).To(Succeed())
		info := migration.NewTargetInfo(data)

		Expect(os.MkdirAll(metadataDir, 0o755)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(metadataDir, "targets.json"), []byte(`{"signed": {"targets": {"m1": {"length": 7, "hashes": {"sha256": "`+info.Hashes["sha256"]+`"}}}}, "signatures": []}`), 0o644)).To(Succeed())

		repo, err := migration.NewDirectoryRepository(ctx, nil, metadataDir, targetsDir, nil)
		Expect(err).ToNot(HaveOccurred())

		rc, err := repo.ReadTarget(ctx, "m1")
		Expect(err).ToNot(HaveOccurred())
		Expect(rc.Close()).To(Succeed())
	})

	It("refuses tampered targets", func() {
		targets := map[string]migration.TargetInfo{}
		addTarget(targets, "m1", []byte("original"))
		Expect(migration.WriteTargetsIndex(ctx, nil, metadataDir, targets)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(targetsDir, "m1"), []byte("modified"), 0o644)).To(Succeed())

		repo, err := migration.NewDirectoryRepository(ctx, nil, metadataDir, targetsDir, nil)
		Expect(err).ToNot(HaveOccurred())

		_, err = repo.ReadTarget(ctx, "m1")
		Expect(err).To(MatchError(migration.ErrTargetVerification))
	})

	It("reports unlisted and missing targets as not found", func() {
		targets := map[string]migration.TargetInfo{"listed": migration.NewTargetInfo([]byte("x"))}
		Expect(migration.WriteTargetsIndex(ctx, nil, metadataDir, targets)).To(Succeed())

		repo, err := migration.NewDirectoryRepository(ctx, nil, metadataDir, targetsDir, nil)
		Expect(err).ToNot(HaveOccurred())

		_, err = repo.ReadTarget(ctx, "unlisted")
		Expect(err).To(MatchError(migration.ErrTargetNotFound))

		_, err = repo.ReadTarget(ctx, "listed")
		Expect(err).To(MatchError(migration.ErrTargetNotFound))
	})

	It("rejects names escaping the targets directory", func() {
		Expect(migration.WriteTargetsIndex(ctx, nil, metadataDir, map[string]migration.TargetInfo{})).To(Succeed())

		repo, err := migration.NewDirectoryRepository(ctx, nil, metadataDir, targetsDir, nil)
		Expect(err).ToNot(HaveOccurred())

		_, err = repo.ReadTarget(ctx, "../metadata/targets.json")
		Expect(err).To(MatchError(migration.ErrInvalidTargetName))
	})
})

var _ = Describe("Decompress", func() {
	program := []byte("#!/bin/sh\nexit 0\n")

	It("reads LZ4 frames", func() {
		rc, err := migration.Decompress(bytes.NewReader(lz4Compress(program)))
		Expect(err).ToNot(HaveOccurred())
		defer rc.Close()

		Expect(io.ReadAll(rc)).To(Equal(program))
	})

	It("reads zstd frames", func() {
		enc, err := zstd.NewWriter(nil)
		Expect(err).ToNot(HaveOccurred())
		compressed := enc.EncodeAll(program, nil)
		Expect(enc.Close()).To(Succeed())

		rc, err := migration.Decompress(bytes.NewReader(compressed))
		Expect(err).ToNot(HaveOccurred())
		defer rc.Close()

		Expect(io.ReadAll(rc)).To(Equal(program))
	})

	It("refuses uncompressed programs", func() {
		_, err := migration.Decompress(bytes.NewReader(program))
		Expect(err).To(MatchError(migration.ErrDecompress))
	})

	It("refuses truncated input", func() {
		_, err := migration.Decompress(bytes.NewReader([]byte{0x04}))
		Expect(err).To(MatchError(migration.ErrDecompress))
	})
})
