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
	"os"
)

// Service provides an interface for filesystem operations
// This allows for easier testing and separation of concerns.
type Service interface {
	// EnsureDirectory creates a directory and its parents if they don't exist
	EnsureDirectory(ctx context.Context, path string) error

	// ReadFile reads a file's contents respecting the context
	ReadFile(ctx context.Context, path string) ([]byte, error)

	// WriteFile writes data to a file respecting the context
	WriteFile(ctx context.Context, path string, data []byte, perm os.FileMode) error

	// WriteFileAtomic writes data next to path, syncs it and renames it over path.
	// Readers see either the old or the new content, never a partial write.
	WriteFileAtomic(ctx context.Context, path string, data []byte, perm os.FileMode) error

	// PathExists checks if a file, directory or symlink exists at the given path.
	// Symlinks are not followed.
	PathExists(ctx context.Context, path string) (bool, error)

	// Remove removes a file or an empty directory
	Remove(ctx context.Context, path string) error

	// RemoveAll removes a directory and all its contents
	RemoveAll(ctx context.Context, path string) error

	// Stat returns file info, following symlinks
	Stat(ctx context.Context, path string) (os.FileInfo, error)

	// Lstat returns file info without following symlinks
	Lstat(ctx context.Context, path string) (os.FileInfo, error)

	// ReadDir reads a directory, returning all its directory entries sorted by name
	ReadDir(ctx context.Context, path string) ([]os.DirEntry, error)

	// Rename renames (moves) a file, directory or symlink from oldPath to newPath.
	// This operation is atomic on the same filesystem mount and replaces an existing
	// file or symlink at newPath.
	Rename(ctx context.Context, oldPath, newPath string) error

	// Symlink creates a symbolic link from linkPath to target.
	// linkPath is the path where the symlink will be created.
	// target is the path that the symlink will point to.
	Symlink(ctx context.Context, target, linkPath string) error

	// Readlink returns the target of the symlink at path
	Readlink(ctx context.Context, path string) (string, error)

	// EvalSymlinks returns path with every symlink resolved
	EvalSymlinks(ctx context.Context, path string) (string, error)

	// SyncDirectory flushes a directory's entries to stable storage
	SyncDirectory(ctx context.Context, path string) error

	// Chmod changes the mode of the named file
	Chmod(ctx context.Context, path string, mode os.FileMode) error
}
