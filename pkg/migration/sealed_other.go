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

//go:build !linux

package migration

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/united-manufacturing-hub/umh-datastore/pkg/constants"
	"github.com/united-manufacturing-hub/umh-datastore/pkg/datastore/filesystem"
	fsservice "github.com/united-manufacturing-hub/umh-datastore/pkg/service/filesystem"
)

// runSealed writes program to a private temporary file and executes it. Platforms without
// memfd cannot seal the program.
func runSealed(ctx context.Context, fs fsservice.Service, name string, program []byte, args []string) (*ProgramOutput, error) {
	dir, err := os.MkdirTemp("", "migration-")
	if err != nil {
		return nil, err
	}
	defer func() { _ = fs.RemoveAll(ctx, dir) }()

	path := filepath.Join(dir, name+"-"+filesystem.RandomSuffix())
	if err := fs.WriteFile(ctx, path, program, constants.MigrationProgramPerm); err != nil {
		return nil, err
	}

	return runCommand(exec.Command(path, args...))
}
