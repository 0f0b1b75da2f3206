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
	"sync"
)

// MockFileSystem wraps a real Service and lets tests replace single operations,
// typically to inject a failure at one precise step.
// Operations without an override are forwarded to Base.
type MockFileSystem struct {
	Base Service

	ReadFileFunc        func(ctx context.Context, path string) ([]byte, error)
	WriteFileAtomicFunc func(ctx context.Context, path string, data []byte, perm os.FileMode) error
	RemoveAllFunc       func(ctx context.Context, path string) error
	RenameFunc          func(ctx context.Context, oldPath, newPath string) error
	SymlinkFunc         func(ctx context.Context, target, linkPath string) error
	SyncDirectoryFunc   func(ctx context.Context, path string) error
	EvalSymlinksFunc    func(ctx context.Context, path string) (string, error)

	mutex sync.Mutex
	calls map[string]int
}

var _ Service = (*MockFileSystem)(nil)

// NewMockFileSystem creates a MockFileSystem forwarding to a DefaultService.
func NewMockFileSystem() *MockFileSystem {
	return &MockFileSystem{
		Base:  NewDefaultService(),
		calls: make(map[string]int),
	}
}

func (m *MockFileSystem) record(op string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.calls == nil {
		m.calls = make(map[string]int)
	}

	m.calls[op]++
}

// Calls returns how often op was invoked.
func (m *MockFileSystem) Calls(op string) int {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	return m.calls[op]
}

func (m *MockFileSystem) EnsureDirectory(ctx context.Context, path string) error {
	m.record("EnsureDirectory")

	return m.Base.EnsureDirectory(ctx, path)
}

func (m *MockFileSystem) ReadFile(ctx context.Context, path string) ([]byte, error) {
	m.record("ReadFile")

	if m.ReadFileFunc != nil {
		return m.ReadFileFunc(ctx, path)
	}

	return m.Base.ReadFile(ctx, path)
}

func (m *MockFileSystem) WriteFile(ctx context.Context, path string, data []byte, perm os.FileMode) error {
	m.record("WriteFile")

	return m.Base.WriteFile(ctx, path, data, perm)
}

func (m *MockFileSystem) WriteFileAtomic(ctx context.Context, path string, data []byte, perm os.FileMode) error {
	m.record("WriteFileAtomic")

	if m.WriteFileAtomicFunc != nil {
		return m.WriteFileAtomicFunc(ctx, path, data, perm)
	}

	return m.Base.WriteFileAtomic(ctx, path, data, perm)
}

func (m *MockFileSystem) PathExists(ctx context.Context, path string) (bool, error) {
	m.record("PathExists")

	return m.Base.PathExists(ctx, path)
}

func (m *MockFileSystem) Remove(ctx context.Context, path string) error {
	m.record("Remove")

	return m.Base.Remove(ctx, path)
}

func (m *MockFileSystem) RemoveAll(ctx context.Context, path string) error {
	m.record("RemoveAll")

	if m.RemoveAllFunc != nil {
		return m.RemoveAllFunc(ctx, path)
	}

	return m.Base.RemoveAll(ctx, path)
}

func (m *MockFileSystem) Stat(ctx context.Context, path string) (os.FileInfo, error) {
	m.record("Stat")

	return m.Base.Stat(ctx, path)
}

func (m *MockFileSystem) Lstat(ctx context.Context, path string) (os.FileInfo, error) {
	m.record("Lstat")

	return m.Base.Lstat(ctx, path)
}

func (m *MockFileSystem) ReadDir(ctx context.Context, path string) ([]os.DirEntry, error) {
	m.record("ReadDir")

	return m.Base.ReadDir(ctx, path)
}

func (m *MockFileSystem) Rename(ctx context.Context, oldPath, newPath string) error {
	m.record("Rename")

	if m.RenameFunc != nil {
		return m.RenameFunc(ctx, oldPath, newPath)
	}

	return m.Base.Rename(ctx, oldPath, newPath)
}

func (m *MockFileSystem) Symlink(ctx context.Context, target, linkPath string) error {
	m.record("Symlink")

	if m.SymlinkFunc != nil {
		return m.SymlinkFunc(ctx, target, linkPath)
	}

	return m.Base.Symlink(ctx, target, linkPath)
}

func (m *MockFileSystem) Readlink(ctx context.Context, path string) (string, error) {
	m.record("Readlink")

	return m.Base.Readlink(ctx, path)
}

func (m *MockFileSystem) EvalSymlinks(ctx context.Context, path string) (string, error) {
	m.record("EvalSymlinks")

	if m.EvalSymlinksFunc != nil {
		return m.EvalSymlinksFunc(ctx, path)
	}

	return m.Base.EvalSymlinks(ctx, path)
}

func (m *MockFileSystem) SyncDirectory(ctx context.Context, path string) error {
	m.record("SyncDirectory")

	if m.SyncDirectoryFunc != nil {
		return m.SyncDirectoryFunc(ctx, path)
	}

	return m.Base.SyncDirectory(ctx, path)
}

func (m *MockFileSystem) Chmod(ctx context.Context, path string, mode os.FileMode) error {
	m.record("Chmod")

	return m.Base.Chmod(ctx, path, mode)
}
