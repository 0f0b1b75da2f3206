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
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/united-manufacturing-hub/umh-datastore/pkg/constants"
	"github.com/united-manufacturing-hub/umh-datastore/pkg/metrics"
)

// DefaultService is the default implementation of Service.
// Every operation runs in its own goroutine so a cancelled context returns immediately,
// even when the underlying syscall blocks (for example on a hung mount).
type DefaultService struct{}

var _ Service = (*DefaultService)(nil)

// NewDefaultService creates a new DefaultService.
func NewDefaultService() *DefaultService {
	return &DefaultService{}
}

// recordOp records filesystem operation metrics
func (s *DefaultService) recordOp(op string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	metrics.RecordFilesystemOp(op, status, time.Since(start))
}

// run executes fn in a goroutine and waits for either its result or the context.
func run[T any](ctx context.Context, s *DefaultService, op string, fn func() (T, error)) (T, error) {
	start := time.Now()

	var zero T

	if err := ctx.Err(); err != nil {
		return zero, fmt.Errorf("failed to check context: %w", err)
	}

	type result struct {
		value T
		err   error
	}

	resCh := make(chan result, 1)

	go func() {
		value, err := fn()
		resCh <- result{value: value, err: err}
	}()

	select {
	case res := <-resCh:
		s.recordOp(op, start, res.err)

		return res.value, res.err
	case <-ctx.Done():
		err := ctx.Err()
		s.recordOp(op, start, err)

		return zero, err
	}
}

// runErr is run for operations without a result.
func runErr(ctx context.Context, s *DefaultService, op string, fn func() error) error {
	_, err := run(ctx, s, op, func() (struct{}, error) {
		return struct{}{}, fn()
	})

	return err
}

// EnsureDirectory creates a directory if it doesn't exist.
func (s *DefaultService) EnsureDirectory(ctx context.Context, path string) error {
	return runErr(ctx, s, "EnsureDirectory", func() error {
		if err := os.MkdirAll(path, constants.DatastoreDirPerm); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", path, err)
		}

		return nil
	})
}

// ReadFile reads a file's contents respecting the context.
func (s *DefaultService) ReadFile(ctx context.Context, path string) ([]byte, error) {
	return run(ctx, s, "ReadFile", func() ([]byte, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read file %s: %w", path, err)
		}

		return data, nil
	})
}

// WriteFile writes data to a file respecting the context.
func (s *DefaultService) WriteFile(ctx context.Context, path string, data []byte, perm os.FileMode) error {
	return runErr(ctx, s, "WriteFile", func() error {
		if err := os.WriteFile(path, data, perm); err != nil {
			return fmt.Errorf("failed to write file %s: %w", path, err)
		}

		return nil
	})
}

// WriteFileAtomic writes data to a temporary sibling of path and renames it into place.
func (s *DefaultService) WriteFileAtomic(ctx context.Context, path string, data []byte, perm os.FileMode) error {
	return runErr(ctx, s, "WriteFileAtomic", func() error {
		tmpPath := filepath.Join(filepath.Dir(path), constants.TempFilePrefix+uuid.NewString())

		f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
		if err != nil {
			return fmt.Errorf("failed to create temporary file for %s: %w", path, err)
		}

		_, writeErr := f.Write(data)
		if writeErr == nil {
			writeErr = f.Sync()
		}

		closeErr := f.Close()

		if writeErr == nil {
			writeErr = closeErr
		}

		if writeErr != nil {
			_ = os.Remove(tmpPath)

			return fmt.Errorf("failed to write temporary file for %s: %w", path, writeErr)
		}

		if err := os.Rename(tmpPath, path); err != nil {
			_ = os.Remove(tmpPath)

			return fmt.Errorf("failed to move %s into place: %w", path, err)
		}

		return nil
	})
}

// PathExists checks if a path (file, directory or symlink) exists.
func (s *DefaultService) PathExists(ctx context.Context, path string) (bool, error) {
	return run(ctx, s, "PathExists", func() (bool, error) {
		// Use Lstat to handle symlinks properly (don't follow them)
		_, err := os.Lstat(path)
		if os.IsNotExist(err) {
			return false, nil
		}

		if err != nil {
			return false, fmt.Errorf("failed to check if path exists: %w", err)
		}

		return true, nil
	})
}

// Remove removes a file or an empty directory.
func (s *DefaultService) Remove(ctx context.Context, path string) error {
	return runErr(ctx, s, "Remove", func() error {
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}

		return nil
	})
}

// RemoveAll removes a directory and all its contents.
func (s *DefaultService) RemoveAll(ctx context.Context, path string) error {
	return runErr(ctx, s, "RemoveAll", func() error {
		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("failed to remove directory %s: %w", path, err)
		}

		return nil
	})
}

// Stat returns file info.
func (s *DefaultService) Stat(ctx context.Context, path string) (os.FileInfo, error) {
	return run(ctx, s, "Stat", func() (os.FileInfo, error) {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", path, err)
		}

		return info, nil
	})
}

// Lstat returns file info without following symlinks.
func (s *DefaultService) Lstat(ctx context.Context, path string) (os.FileInfo, error) {
	return run(ctx, s, "Lstat", func() (os.FileInfo, error) {
		info, err := os.Lstat(path)
		if err != nil {
			return nil, fmt.Errorf("failed to lstat %s: %w", path, err)
		}

		return info, nil
	})
}

// ReadDir reads a directory, returning all its directory entries.
func (s *DefaultService) ReadDir(ctx context.Context, path string) ([]os.DirEntry, error) {
	return run(ctx, s, "ReadDir", func() ([]os.DirEntry, error) {
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read directory %s: %w", path, err)
		}

		return entries, nil
	})
}

// Rename renames (moves) a file or directory.
func (s *DefaultService) Rename(ctx context.Context, oldPath, newPath string) error {
	return runErr(ctx, s, "Rename", func() error {
		if err := os.Rename(oldPath, newPath); err != nil {
			return fmt.Errorf("failed to rename %s to %s: %w", oldPath, newPath, err)
		}

		return nil
	})
}

// Symlink creates a symbolic link from linkPath to target.
func (s *DefaultService) Symlink(ctx context.Context, target, linkPath string) error {
	return runErr(ctx, s, "Symlink", func() error {
		if err := os.Symlink(target, linkPath); err != nil {
			return fmt.Errorf("failed to create symlink %s -> %s: %w", linkPath, target, err)
		}

		return nil
	})
}

// Readlink returns the destination of the named symbolic link.
func (s *DefaultService) Readlink(ctx context.Context, path string) (string, error) {
	return run(ctx, s, "Readlink", func() (string, error) {
		target, err := os.Readlink(path)
		if err != nil {
			return "", fmt.Errorf("failed to read symlink %s: %w", path, err)
		}

		return target, nil
	})
}

// EvalSymlinks resolves every symbolic link along path.
func (s *DefaultService) EvalSymlinks(ctx context.Context, path string) (string, error) {
	return run(ctx, s, "EvalSymlinks", func() (string, error) {
		resolved, err := filepath.EvalSymlinks(path)
		if err != nil {
			return "", fmt.Errorf("failed to resolve %s: %w", path, err)
		}

		return resolved, nil
	})
}

// SyncDirectory opens a directory and fsyncs it so renames inside it are durable.
func (s *DefaultService) SyncDirectory(ctx context.Context, path string) error {
	return runErr(ctx, s, "SyncDirectory", func() error {
		dir, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open directory %s: %w", path, err)
		}
		defer func() { _ = dir.Close() }()

		if err := dir.Sync(); err != nil {
			return fmt.Errorf("failed to sync directory %s: %w", path, err)
		}

		return nil
	})
}

// Chmod changes the mode of the named file.
func (s *DefaultService) Chmod(ctx context.Context, path string, mode os.FileMode) error {
	return runErr(ctx, s, "Chmod", func() error {
		if err := os.Chmod(path, mode); err != nil {
			return fmt.Errorf("failed to change mode of %s: %w", path, err)
		}

		return nil
	})
}
