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
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/goccy/go-json"
)

// Transition is a pair of versions a list of migrations bridges.
type Transition struct {
	From *semver.Version
	To   *semver.Version
}

// String renders the transition the way manifests key it, e.g. "(0.99.0, 0.99.1)".
func (t Transition) String() string {
	return fmt.Sprintf("(%s, %s)", t.From, t.To)
}

// ParseTransition parses "(from, to)".
func ParseTransition(s string) (Transition, error) {
	inner := strings.TrimSpace(s)
	if !strings.HasPrefix(inner, "(") || !strings.HasSuffix(inner, ")") {
		return Transition{}, fmt.Errorf("transition %q is not of the form (from, to)", s)
	}

	parts := strings.Split(inner[1:len(inner)-1], ",")
	if len(parts) != 2 {
		return Transition{}, fmt.Errorf("transition %q is not of the form (from, to)", s)
	}

	from, err := semver.StrictNewVersion(strings.TrimSpace(parts[0]))
	if err != nil {
		return Transition{}, fmt.Errorf("transition %q: %w", s, err)
	}

	to, err := semver.StrictNewVersion(strings.TrimSpace(parts[1]))
	if err != nil {
		return Transition{}, fmt.Errorf("transition %q: %w", s, err)
	}

	return Transition{From: from, To: to}, nil
}

// Manifest lists the migrations of every known transition. The order within a list is the
// order the migrations run in when moving forward.
type Manifest struct {
	Migrations map[Transition][]string
}

type manifestDocument struct {
	Migrations map[string][]string `json:"migrations"`
}

// ParseManifest reads a manifest document. Fields other than "migrations" are ignored.
func ParseManifest(r io.Reader) (*Manifest, error) {
	var doc manifestDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrManifestParse, err)
	}

	manifest := &Manifest{Migrations: make(map[Transition][]string, len(doc.Migrations))}

	for key, migrations := range doc.Migrations {
		transition, err := ParseTransition(key)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrManifestParse, err)
		}

		if manifest.lookup(transition.From, transition.To) != nil {
			return nil, fmt.Errorf("%w: duplicate transition %s", ErrManifestParse, transition)
		}

		manifest.Migrations[transition] = migrations
	}

	return manifest, nil
}

// MarshalJSON writes the manifest in the form ParseManifest reads.
func (m *Manifest) MarshalJSON() ([]byte, error) {
	doc := manifestDocument{Migrations: make(map[string][]string, len(m.Migrations))}
	for transition, migrations := range m.Migrations {
		doc.Migrations[transition.String()] = migrations
	}

	return json.Marshal(doc)
}

func (m *Manifest) lookup(from, to *semver.Version) *Transition {
	for transition := range m.Migrations {
		if transition.From.Equal(from) && transition.To.Equal(to) {
			return &transition
		}
	}

	return nil
}

// FindMigrations returns the migrations to run, in order, to move from one version to another.
//
// The walk always goes upwards from the lower version. At each version it takes the transition
// reaching furthest without passing the higher version. A version without such a transition
// ends the walk. For a backward move the resulting list is reversed.
func FindMigrations(from, to *semver.Version, manifest *Manifest) []string {
	if from.Equal(to) {
		return nil
	}

	lower, higher := from, to
	if to.LessThan(from) {
		lower, higher = to, from
	}

	var migrations []string

	for version := lower; version.LessThan(higher); {
		var candidates []Transition

		for transition := range manifest.Migrations {
			if transition.From.Equal(version) && transition.To.GreaterThan(version) && !transition.To.GreaterThan(higher) {
				candidates = append(candidates, transition)
			}
		}

		if len(candidates) == 0 {
			break
		}

		sort.Slice(candidates, func(i, j int) bool {
			return candidates[i].To.GreaterThan(candidates[j].To)
		})

		chosen := candidates[0]
		migrations = append(migrations, manifest.Migrations[chosen]...)
		version = chosen.To
	}

	if to.LessThan(from) {
		for i, j := 0, len(migrations)-1; i < j; i, j = i+1, j-1 {
			migrations[i], migrations[j] = migrations[j], migrations[i]
		}
	}

	return migrations
}
