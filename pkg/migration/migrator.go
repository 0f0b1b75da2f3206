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
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/Masterminds/semver/v3"
	"github.com/looplab/fsm"
	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/umh-datastore/pkg/constants"
	"github.com/united-manufacturing-hub/umh-datastore/pkg/datastore/filesystem"
	"github.com/united-manufacturing-hub/umh-datastore/pkg/logger"
	"github.com/united-manufacturing-hub/umh-datastore/pkg/metrics"
	fsservice "github.com/united-manufacturing-hub/umh-datastore/pkg/service/filesystem"
)

// Run states
const (
	StateResolveVersion    = "resolve_version"
	StateResolveDirection  = "resolve_direction"
	StateLoadManifest      = "load_manifest"
	StateResolveMigrations = "resolve_migrations"
	StatePruneWeakSettings = "prune_weak_settings"
	StateNoop              = "noop"
	StateRunChain          = "run_chain"
	StateFlipSymlinks      = "flip_symlinks"
	StateDone              = "done"
	StateFailed            = "failed"
)

// Run events
const (
	EventVersionResolved    = "version_resolved"
	EventDirectionResolved  = "direction_resolved"
	EventUpToDate           = "up_to_date"
	EventManifestLoaded     = "manifest_loaded"
	EventMigrationsResolved = "migrations_resolved"
	EventNothingToRun       = "nothing_to_run"
	EventChainPending       = "chain_pending"
	EventDataReady          = "data_ready"
	EventFlipped            = "flipped"
	EventFail               = "fail"
)

// Options configure a Migrator.
type Options struct {
	// DatastorePath is the live data directory, or a link to it such as <root>/current.
	// The version links live in its parent directory.
	DatastorePath string
	TargetVersion *semver.Version
	Repository    Repository

	FileSystem fsservice.Service
	Logger     *zap.SugaredLogger
}

// Result describes a finished run.
type Result struct {
	From       *semver.Version
	To         *semver.Version
	Direction  Direction
	Migrations []string
	// Datastore is the directory the link chain points at now. Empty when nothing was done.
	Datastore string
	UpToDate  bool
}

// Migrator performs a single migration run. It is not safe for concurrent use.
type Migrator struct {
	opts Options
	fs   fsservice.Service
	log  *zap.SugaredLogger

	machine *fsm.FSM
	steps   map[string]func(ctx context.Context) (string, error)

	root       string
	source     string
	current    *semver.Version
	direction  Direction
	manifest   *Manifest
	migrations []string
	pruned     string
	final      string
}

// NewMigrator validates opts and prepares a run.
func NewMigrator(opts Options) (*Migrator, error) {
	if opts.DatastorePath == "" {
		return nil, errors.New("datastore path is required")
	}

	if opts.TargetVersion == nil {
		return nil, errors.New("target version is required")
	}

	if opts.Repository == nil {
		return nil, errors.New("repository is required")
	}

	m := &Migrator{
		opts: opts,
		fs:   opts.FileSystem,
		log:  logger.OrNop(opts.Logger),
		root: filepath.Dir(filepath.Clean(opts.DatastorePath)),
	}

	if m.fs == nil {
		m.fs = fsservice.NewDefaultService()
	}

	working := []string{
		StateResolveVersion,
		StateResolveDirection,
		StateLoadManifest,
		StateResolveMigrations,
		StatePruneWeakSettings,
		StateNoop,
		StateRunChain,
		StateFlipSymlinks,
	}

	m.machine = fsm.NewFSM(
		StateResolveVersion,
		fsm.Events{
			{Name: EventVersionResolved, Src: []string{StateResolveVersion}, Dst: StateResolveDirection},
			{Name: EventUpToDate, Src: []string{StateResolveDirection}, Dst: StateDone},
			{Name: EventDirectionResolved, Src: []string{StateResolveDirection}, Dst: StateLoadManifest},
			{Name: EventManifestLoaded, Src: []string{StateLoadManifest}, Dst: StateResolveMigrations},
			{Name: EventMigrationsResolved, Src: []string{StateResolveMigrations}, Dst: StatePruneWeakSettings},
			{Name: EventNothingToRun, Src: []string{StatePruneWeakSettings}, Dst: StateNoop},
			{Name: EventChainPending, Src: []string{StatePruneWeakSettings}, Dst: StateRunChain},
			{Name: EventDataReady, Src: []string{StateNoop, StateRunChain}, Dst: StateFlipSymlinks},
			{Name: EventFlipped, Src: []string{StateFlipSymlinks}, Dst: StateDone},
			{Name: EventFail, Src: working, Dst: StateFailed},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				m.log.Debugf("Migration run: %s -> %s (%s)", e.Src, e.Dst, e.Event)
			},
		},
	)

	m.steps = map[string]func(ctx context.Context) (string, error){
		StateResolveVersion:    m.resolveVersion,
		StateResolveDirection:  m.resolveDirection,
		StateLoadManifest:      m.loadManifest,
		StateResolveMigrations: m.resolveMigrations,
		StatePruneWeakSettings: m.pruneWeakSettings,
		StateNoop:              m.noop,
		StateRunChain:          m.chain,
		StateFlipSymlinks:      m.flip,
	}

	return m, nil
}

// State returns the current state of the run.
func (m *Migrator) State() string {
	return m.machine.Current()
}

// Run drives the run to done or failed. The datastore is left as the failing step left it.
func (m *Migrator) Run(ctx context.Context) (*Result, error) {
	for {
		state := m.machine.Current()
		if state == StateDone || state == StateFailed {
			break
		}

		step, ok := m.steps[state]
		if !ok {
			return nil, fmt.Errorf("no step for state %s", state)
		}

		event, err := step(ctx)
		if err != nil {
			if fsmErr := m.machine.Event(ctx, EventFail); fsmErr != nil {
				m.log.Errorf("Failed to record failure: %v", fsmErr)
			}

			metrics.RecordMigrationRun(m.direction.Label(), metrics.ResultFailure)
			metrics.IncErrorCount(metrics.ComponentMigrator)

			return nil, fmt.Errorf("%s: %w", state, err)
		}

		if err := m.machine.Event(ctx, event); err != nil {
			return nil, fmt.Errorf("%s: %w", state, err)
		}
	}

	if m.machine.Current() == StateFailed {
		return nil, errors.New("migration run already failed")
	}

	return m.result(), nil
}

func (m *Migrator) result() *Result {
	return &Result{
		From:       m.current,
		To:         m.opts.TargetVersion,
		Direction:  m.direction,
		Migrations: m.migrations,
		Datastore:  m.final,
		UpToDate:   m.final == "",
	}
}

func (m *Migrator) resolveVersion(ctx context.Context) (string, error) {
	version, err := filesystem.ReadVersion(ctx, m.fs, m.root)
	if err != nil {
		return "", err
	}

	source, err := m.fs.EvalSymlinks(ctx, m.opts.DatastorePath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve datastore path %s: %w", m.opts.DatastorePath, err)
	}

	m.current = version
	m.source = source

	return EventVersionResolved, nil
}

func (m *Migrator) resolveDirection(_ context.Context) (string, error) {
	direction, ok := DirectionFromVersions(m.current, m.opts.TargetVersion)
	if !ok {
		m.log.Infof("Requested version %s matches version of datastore at %s; nothing to do", m.opts.TargetVersion, m.source)
		metrics.RecordMigrationRun(direction.Label(), metrics.ResultNoop)

		return EventUpToDate, nil
	}

	m.direction = direction

	return EventDirectionResolved, nil
}

func (m *Migrator) loadManifest(ctx context.Context) (string, error) {
	rc, err := m.opts.Repository.ReadTarget(ctx, constants.ManifestTarget)
	if err != nil {
		if errors.Is(err, ErrTargetNotFound) {
			return "", fmt.Errorf("%w: %w", ErrManifestNotFound, err)
		}

		return "", fmt.Errorf("failed to load manifest: %w", err)
	}
	defer rc.Close()

	manifest, err := ParseManifest(rc)
	if err != nil {
		return "", err
	}

	m.manifest = manifest

	return EventManifestLoaded, nil
}

func (m *Migrator) resolveMigrations(_ context.Context) (string, error) {
	m.migrations = FindMigrations(m.current, m.opts.TargetVersion, m.manifest)
	m.log.Infof("Migrating datastore from %s to %s %s with %d migrations: %v",
		m.current, m.opts.TargetVersion, m.direction.Label(), len(m.migrations), m.migrations)

	return EventMigrationsResolved, nil
}

func (m *Migrator) pruneWeakSettings(ctx context.Context) (string, error) {
	dir, err := m.newWorkDirectory(ctx)
	if err != nil {
		return "", err
	}

	if err := m.fs.EnsureDirectory(ctx, filepath.Join(dir, constants.LiveDirectory, constants.DataDirectory)); err != nil {
		return "", err
	}

	source := filesystem.NewDataStore(m.source, m.fs, m.log)
	target := filesystem.NewDataStore(dir, m.fs, m.log)

	if err := CopyWithoutWeakSettings(ctx, source, target); err != nil {
		return "", fmt.Errorf("failed to remove weak settings: %w", err)
	}

	m.pruned = dir

	if len(m.migrations) == 0 {
		return EventNothingToRun, nil
	}

	return EventChainPending, nil
}

func (m *Migrator) noop(_ context.Context) (string, error) {
	m.final = m.pruned

	return EventDataReady, nil
}

func (m *Migrator) chain(ctx context.Context) (string, error) {
	final, err := m.runChain(ctx, m.pruned)
	if err != nil {
		return "", err
	}

	m.final = final

	return EventDataReady, nil
}

func (m *Migrator) flip(ctx context.Context) (string, error) {
	if err := filesystem.PointVersionAt(ctx, m.fs, m.root, m.opts.TargetVersion, filepath.Base(m.final), m.log); err != nil {
		return "", err
	}

	m.log.Infof("Datastore is now at version %s in %s", m.opts.TargetVersion, m.final)
	metrics.RecordMigrationRun(m.direction.Label(), metrics.ResultSuccess)

	return EventFlipped, nil
}
