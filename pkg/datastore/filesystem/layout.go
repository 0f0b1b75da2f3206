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

package filesystem

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/umh-datastore/pkg/constants"
	"github.com/united-manufacturing-hub/umh-datastore/pkg/logger"
	fsservice "github.com/united-manufacturing-hub/umh-datastore/pkg/service/filesystem"
)

// The version of a datastore is encoded in a chain of relative symlinks inside its root:
//
//	current -> v1 -> v1.5 -> v1.5.2 -> v1.5.2_0123456789abcdef/
//
// Every link is replaced by creating a temporary link and renaming it over the old one,
// so each link always points at a complete target.

var (
	ErrLinkRead                = errors.New("failed to read version link")
	ErrDatastoreLinkToRoot     = errors.New("version link points to the filesystem root")
	ErrInvalidDatastoreVersion = errors.New("version link does not name a valid version")
	ErrLinkCreate              = errors.New("failed to create temporary version link")
	ErrLinkSwap                = errors.New("failed to swap version link into place")
	ErrDirectorySync           = errors.New("failed to sync datastore root")
	ErrDatastoreExists         = errors.New("datastore already exists")
)

// VersionLinks are the link names of the chain for one version.
type VersionLinks struct {
	Major string
	Minor string
	Patch string
}

// LinksFor returns the link names for version, e.g. v1, v1.5 and v1.5.2.
func LinksFor(version *semver.Version) VersionLinks {
	return VersionLinks{
		Major: fmt.Sprintf("v%d", version.Major()),
		Minor: fmt.Sprintf("v%d.%d", version.Major(), version.Minor()),
		Patch: fmt.Sprintf("v%d.%d.%d", version.Major(), version.Minor(), version.Patch()),
	}
}

// RandomSuffix returns constants.WorkDirectoryRandomLength random hex characters.
func RandomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:constants.WorkDirectoryRandomLength]
}

// NewDirectoryName returns a fresh data directory name for version, e.g. v1.5.2_0123456789abcdef.
func NewDirectoryName(version *semver.Version) string {
	return fmt.Sprintf("v%s_%s", version.String(), RandomSuffix())
}

// ReadVersion follows current, the major and the minor link in root and parses the name the
// minor link points to. A leading "v" is accepted.
func ReadVersion(ctx context.Context, fs fsservice.Service, root string) (*semver.Version, error) {
	if fs == nil {
		fs = fsservice.NewDefaultService()
	}

	link := filepath.Join(root, constants.CurrentLink)

	for range 3 {
		target, err := fs.Readlink(ctx, link)
		if err != nil {
			return nil, fmt.Errorf("%w %s: %w", ErrLinkRead, link, err)
		}

		if filepath.IsAbs(target) {
			link = target
		} else {
			link = filepath.Join(root, target)
		}
	}

	name := filepath.Base(link)
	if name == string(filepath.Separator) || name == "." || name == "" {
		return nil, fmt.Errorf("%w: %s", ErrDatastoreLinkToRoot, link)
	}

	version, err := semver.StrictNewVersion(strings.TrimPrefix(name, "v"))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidDatastoreVersion, link, err)
	}

	return version, nil
}

// SwapLink makes root/name a symlink to target, replacing whatever link was there.
func SwapLink(ctx context.Context, fs fsservice.Service, root, name, target string) error {
	if fs == nil {
		fs = fsservice.NewDefaultService()
	}

	tempLink := filepath.Join(root, constants.TempFilePrefix+RandomSuffix())
	link := filepath.Join(root, name)

	if err := fs.Symlink(ctx, target, tempLink); err != nil {
		return fmt.Errorf("%w %s: %w", ErrLinkCreate, tempLink, err)
	}

	if err := fs.Rename(ctx, tempLink, link); err != nil {
		_ = fs.Remove(ctx, tempLink)

		return fmt.Errorf("%w %s: %w", ErrLinkSwap, link, err)
	}

	return nil
}

// PointVersionAt flips the chain of root to the data directory dirName for version, from the
// patch link up to current, and syncs root so the flip survives a crash.
// Running it again with the same arguments is harmless.
func PointVersionAt(ctx context.Context, fs fsservice.Service, root string, version *semver.Version, dirName string, log *zap.SugaredLogger) error {
	if fs == nil {
		fs = fsservice.NewDefaultService()
	}

	log = logger.OrNop(log)
	links := LinksFor(version)

	steps := []struct{ name, target string }{
		{links.Patch, dirName},
		{links.Minor, links.Patch},
		{links.Major, links.Minor},
		{constants.CurrentLink, links.Major},
	}

	for _, step := range steps {
		log.Debugf("Flipping %s to point to %s", filepath.Join(root, step.name), step.target)

		if err := SwapLink(ctx, fs, root, step.name, step.target); err != nil {
			return err
		}
	}

	if err := fs.SyncDirectory(ctx, root); err != nil {
		return fmt.Errorf("%w %s: %w", ErrDirectorySync, root, err)
	}

	return nil
}

// Create lays out an empty datastore of version below root and points the version chain at
// it. It returns the path of the new data directory. Create refuses to touch a root that
// already has a current link or a link for version, whatever they point at.
func Create(ctx context.Context, fs fsservice.Service, root string, version *semver.Version, log *zap.SugaredLogger) (string, error) {
	if fs == nil {
		fs = fsservice.NewDefaultService()
	}

	for _, name := range []string{constants.CurrentLink, LinksFor(version).Patch} {
		existing := filepath.Join(root, name)

		exists, err := fs.PathExists(ctx, existing)
		if err != nil {
			return "", err
		}

		if exists {
			return "", fmt.Errorf("%w: %s", ErrDatastoreExists, existing)
		}
	}

	dirName := NewDirectoryName(version)
	dir := filepath.Join(root, dirName)

	if err := fs.EnsureDirectory(ctx, filepath.Join(dir, constants.LiveDirectory, constants.DataDirectory)); err != nil {
		return "", err
	}

	if err := PointVersionAt(ctx, fs, root, version, dirName, log); err != nil {
		return "", err
	}

	return dir, nil
}
