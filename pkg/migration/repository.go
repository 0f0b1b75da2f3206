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

package migration

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/umh-datastore/pkg/constants"
	"github.com/united-manufacturing-hub/umh-datastore/pkg/logger"
	fsservice "github.com/united-manufacturing-hub/umh-datastore/pkg/service/filesystem"
)

// Repository hands out the verified content of named targets. Returned readers must be closed.
// A missing target is reported with ErrTargetNotFound.
type Repository interface {
	ReadTarget(ctx context.Context, name string) (io.ReadCloser, error)
}

// TargetInfo is the expected size and digest of one target.
type TargetInfo struct {
	Length int64             `json:"length"`
	Hashes map[string]string `json:"hashes"`
}

type targetsDocument struct {
	Signed *struct {
		Targets map[string]TargetInfo `json:"targets,omitempty"`
	} `json:"signed,omitempty"`
	Targets map[string]TargetInfo `json:"targets,omitempty"`
}

// DirectoryRepository serves targets from a local directory, checking each against the
// targets index before handing it out. The index is expected to be verified already.
type DirectoryRepository struct {
	fs         fsservice.Service
	targetsDir string
	targets    map[string]TargetInfo
	log        *zap.SugaredLogger
}

var _ Repository = (*DirectoryRepository)(nil)

// NewDirectoryRepository loads the targets index from metadataDir. The index is either a
// TUF-style document with a "signed" envelope or a bare {"targets": ...} object.
func NewDirectoryRepository(ctx context.Context, fs fsservice.Service, metadataDir, targetsDir string, log *zap.SugaredLogger) (*DirectoryRepository, error) {
	if fs == nil {
		fs = fsservice.NewDefaultService()
	}

	indexPath := filepath.Join(metadataDir, constants.TargetsIndexFile)

	raw, err := fs.ReadFile(ctx, indexPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read targets index: %w", err)
	}

	var doc targetsDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse targets index %s: %w", indexPath, err)
	}

	targets := doc.Targets
	if doc.Signed != nil {
		targets = doc.Signed.Targets
	}

	if targets == nil {
		targets = map[string]TargetInfo{}
	}

	return &DirectoryRepository{
		fs:         fs,
		targetsDir: targetsDir,
		targets:    targets,
		log:        logger.OrNop(log),
	}, nil
}

// ReadTarget implements Repository.
func (r *DirectoryRepository) ReadTarget(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := validateTargetName(name); err != nil {
		return nil, err
	}

	info, ok := r.targets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTargetNotFound, name)
	}

	data, err := r.fs.ReadFile(ctx, filepath.Join(r.targetsDir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s is listed but missing", ErrTargetNotFound, name)
		}

		return nil, fmt.Errorf("failed to read target %s: %w", name, err)
	}

	if err := verifyTarget(name, data, info); err != nil {
		return nil, err
	}

	r.log.Debugf("Verified target %s (%d bytes)", name, len(data))

	return io.NopCloser(bytes.NewReader(data)), nil
}

func verifyTarget(name string, data []byte, info TargetInfo) error {
	if int64(len(data)) != info.Length {
		return fmt.Errorf("%w: %s has %d bytes, expected %d", ErrTargetVerification, name, len(data), info.Length)
	}

	expected, ok := info.Hashes["sha256"]
	if !ok {
		return fmt.Errorf("%w: %s has no sha256 digest", ErrTargetVerification, name)
	}

	sum := sha256.Sum256(data)
	if !strings.EqualFold(hex.EncodeToString(sum[:]), expected) {
		return fmt.Errorf("%w: %s digest mismatch", ErrTargetVerification, name)
	}

	return nil
}

func validateTargetName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidTargetName, name)
	}

	return nil
}

// NewTargetInfo describes data for a targets index.
func NewTargetInfo(data []byte) TargetInfo {
	sum := sha256.Sum256(data)

	return TargetInfo{
		Length: int64(len(data)),
		Hashes: map[string]string{"sha256": hex.EncodeToString(sum[:])},
	}
}

// WriteTargetsIndex writes a bare targets index for targets to metadataDir.
func WriteTargetsIndex(ctx context.Context, fs fsservice.Service, metadataDir string, targets map[string]TargetInfo) error {
	if fs == nil {
		fs = fsservice.NewDefaultService()
	}

	raw, err := json.MarshalIndent(targetsDocument{Targets: targets}, "", "  ")
	if err != nil {
		return err
	}

	if err := fs.EnsureDirectory(ctx, metadataDir); err != nil {
		return err
	}

	return fs.WriteFileAtomic(ctx, filepath.Join(metadataDir, constants.TargetsIndexFile), raw, constants.DatastoreFilePerm)
}
