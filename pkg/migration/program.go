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
	"errors"
	"fmt"
	"os/exec"
)

// ProgramOutput is what a finished migration program left behind.
type ProgramOutput struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

// Success reports whether the program exited with status 0.
func (o *ProgramOutput) Success() bool {
	return o.ExitCode == 0
}

// runCommand runs cmd to completion and collects its output. Only a failure to start is
// returned as error; an unsuccessful exit is reported through the exit code.
func runCommand(cmd *exec.Cmd) (*ProgramOutput, error) {
	var stdout, stderr bytes.Buffer

	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	output := &ProgramOutput{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}

	var exitErr *exec.ExitError

	switch {
	case err == nil:
		return output, nil
	case errors.As(err, &exitErr):
		output.ExitCode = exitErr.ExitCode()
		if output.ExitCode == 0 {
			// killed by a signal
			output.ExitCode = -1
		}

		return output, nil
	default:
		return nil, fmt.Errorf("%w: %w", ErrStartMigration, err)
	}
}
