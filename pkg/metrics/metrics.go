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

package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Component Labels.
	ComponentDatastore  = "datastore"
	ComponentMigrator   = "migrator"
	ComponentSettings   = "settings"
	ComponentFilesystem = "filesystem"
)

const (
	ResultSuccess  = "success"
	ResultFailure  = "failure"
	ResultRejected = "rejected"
	ResultNoop     = "noop"
)

var (
	// Namespace and subsystem for all metrics.
	namespace = "umh"
	subsystem = "datastore"

	// Error counters.
	errorCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "errors_total",
			Help:      "Total number of errors encountered by component",
		},
		[]string{"component"},
	)

	commitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "commits_total",
			Help:      "Total number of transaction commits by result",
		},
		[]string{"result"},
	)

	migrationRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "migration_runs_total",
			Help:      "Total number of migration runs by direction and result",
		},
		[]string{"direction", "result"},
	)

	migrationStepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "migration_step_duration_seconds",
			Help:      "Duration of single migration program executions in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		},
		[]string{"migration", "result"},
	)

	// Filesystem operation metrics.
	filesystemOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "filesystem_ops_total",
			Help:      "Total number of filesystem operations by type and status",
		},
		[]string{"operation", "status"},
	)

	filesystemOpsDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "filesystem_ops_duration_seconds",
			Help:      "Duration of filesystem operations in seconds",
			Buckets:   []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"operation"},
	)
)

// IncErrorCount increments the error counter for a component.
func IncErrorCount(component string) {
	errorCounter.WithLabelValues(component).Inc()
}

// RecordCommit counts a commit attempt by result.
func RecordCommit(result string) {
	commitsTotal.WithLabelValues(result).Inc()
}

// RecordMigrationRun counts a finished migration run.
func RecordMigrationRun(direction, result string) {
	migrationRunsTotal.WithLabelValues(direction, result).Inc()
}

// ObserveMigrationStep records how long one migration program ran.
func ObserveMigrationStep(migration, result string, duration time.Duration) {
	migrationStepDuration.WithLabelValues(migration, result).Observe(duration.Seconds())
}

// RecordFilesystemOp records a filesystem operation metric.
func RecordFilesystemOp(operation, status string, duration time.Duration) {
	filesystemOpsTotal.WithLabelValues(operation, status).Inc()
	filesystemOpsDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// WriteTextfile dumps the default registry in the text exposition format, for the
// node exporter textfile collector. Short-lived commands call it before exiting.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}

	return nil
}
