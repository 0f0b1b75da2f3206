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

// Command settingsctl administers a filesystem settings datastore: it reads and writes
// settings in transactions, commits them under the strength policy and queries metadata.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/united-manufacturing-hub/umh-datastore/pkg/logger"
)

func main() {
	logger.Initialize()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	a := newApp(os.Stdout)
	err := newRootCmd(a).ExecuteContext(ctx)

	a.teardown()
	stop()
	_ = logger.Sync()

	if err != nil {
		os.Exit(1)
	}
}
