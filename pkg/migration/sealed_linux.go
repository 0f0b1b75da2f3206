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

//go:build linux

package migration

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"golang.org/x/sys/unix"

	fsservice "github.com/united-manufacturing-hub/umh-datastore/pkg/service/filesystem"
)

const programSeals = unix.F_SEAL_SEAL | unix.F_SEAL_SHRINK | unix.F_SEAL_GROW | unix.F_SEAL_WRITE

// runSealed executes program from a sealed memfd, so the bytes that run are exactly the
// verified bytes and nothing on disk can be swapped in between.
func runSealed(_ context.Context, _ fsservice.Service, name string, program []byte, args []string) (*ProgramOutput, error) {
	fd, err := unix.MemfdCreate(name, unix.MFD_CLOEXEC|unix.MFD_ALLOW_SEALING)
	if err != nil {
		return nil, fmt.Errorf("%w: memfd_create: %w", ErrStartMigration, err)
	}

	writable := os.NewFile(uintptr(fd), "memfd:"+name)
	defer writable.Close()

	if _, err := writable.Write(program); err != nil {
		return nil, fmt.Errorf("%w: writing program: %w", ErrStartMigration, err)
	}

	if _, err := unix.FcntlInt(writable.Fd(), unix.F_ADD_SEALS, programSeals); err != nil {
		return nil, fmt.Errorf("%w: sealing program: %w", ErrStartMigration, err)
	}

	// exec refuses files that are open for writing
	sealed, err := os.Open(fmt.Sprintf("/proc/self/fd/%d", writable.Fd()))
	if err != nil {
		return nil, fmt.Errorf("%w: reopening program: %w", ErrStartMigration, err)
	}
	defer sealed.Close()

	if err := writable.Close(); err != nil {
		return nil, fmt.Errorf("%w: closing program: %w", ErrStartMigration, err)
	}

	// ExtraFiles start at descriptor 3 in the child.
	cmd := exec.Command("/proc/self/fd/3", args...)
	cmd.ExtraFiles = []*os.File{sealed}

	return runCommand(cmd)
}
