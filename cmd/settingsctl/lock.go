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

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/united-manufacturing-hub/umh-datastore/pkg/backoff"
	"github.com/united-manufacturing-hub/umh-datastore/pkg/constants"
)

var errLockBusy = errors.New("datastore lock is held by another process")

// fileLock is an advisory flock on <root>/.lock shared by every process touching the datastore.
type fileLock struct {
	file *os.File
	log  *zap.SugaredLogger
}

func acquireLock(ctx context.Context, root string, exclusive bool, timeout time.Duration, log *zap.SugaredLogger) (*fileLock, error) {
	path := filepath.Join(root, constants.LockFile)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, constants.DatastoreFilePerm)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file %s: %w", path, err)
	}

	how := unix.LOCK_SH
	if exclusive {
		how = unix.LOCK_EX
	}

	err = backoff.Retry(ctx, backoff.DefaultPolicy(timeout), log, func() error {
		err := unix.Flock(int(file.Fd()), how|unix.LOCK_NB)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, unix.EWOULDBLOCK), errors.Is(err, unix.EINTR):
			return backoff.NewTransientError(errLockBusy)
		default:
			return backoff.NewPermanentError(fmt.Errorf("failed to lock %s: %w", path, err))
		}
	})
	if err != nil {
		_ = file.Close()

		return nil, err
	}

	log.Debugf("Acquired datastore lock %s (exclusive: %t)", path, exclusive)

	return &fileLock{file: file, log: log}, nil
}

// Release drops the lock. Closing the descriptor would release it too.
func (l *fileLock) Release() {
	if err := unix.Flock(int(l.file.Fd()), unix.LOCK_UN); err != nil {
		l.log.Warnf("Failed to unlock %s: %s", l.file.Name(), err)
	}

	if err := l.file.Close(); err != nil {
		l.log.Warnf("Failed to close %s: %s", l.file.Name(), err)
	}
}
