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

package settings

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/goccy/go-json"

	"github.com/united-manufacturing-hub/umh-datastore/pkg/datastore"
)

// GeneratorMetadataKey is the metadata name under which settings generators are stored.
const GeneratorMetadataKey = "setting-generator"

var ErrInvalidGenerator = errors.New("invalid settings generator")

// RawSettingsGenerator is a settings generator as stored in metadata. Depth 0 applies the
// generator to its own key; depth N applies it to the keys N levels below the key's parent.
//
// It decodes from either a bare command string or an object with "command", "strength" and
// "depth".
type RawSettingsGenerator struct {
	Command  string   `json:"command"`
	Strength Strength `json:"strength"`
	Depth    uint32   `json:"depth"`
}

// IsWeak reports whether the generated setting is ephemeral.
func (g RawSettingsGenerator) IsWeak() bool {
	return g.Strength == Weak
}

// UnmarshalJSON implements json.Unmarshaler.
func (g *RawSettingsGenerator) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return fmt.Errorf("%w: empty document", ErrInvalidGenerator)
	}

	switch trimmed[0] {
	case '"':
		var command string
		if err := json.Unmarshal(trimmed, &command); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidGenerator, err)
		}

		*g = RawSettingsGenerator{Command: command, Strength: DefaultStrength}

		return nil
	case '{':
		var fields struct {
			Command  *string   `json:"command"`
			Strength *Strength `json:"strength"`
			Depth    *uint32   `json:"depth"`
		}

		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.DisallowUnknownFields()

		if err := dec.Decode(&fields); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidGenerator, err)
		}

		if fields.Command == nil {
			return fmt.Errorf("%w: missing field command", ErrInvalidGenerator)
		}

		*g = RawSettingsGenerator{Command: *fields.Command, Strength: DefaultStrength}

		if fields.Strength != nil {
			g.Strength = *fields.Strength
		}

		if fields.Depth != nil {
			g.Depth = *fields.Depth
		}

		return nil
	default:
		return fmt.Errorf("%w: expected a string or an object", ErrInvalidGenerator)
	}
}

// SettingsGenerator is a generator resolved to one concrete key.
type SettingsGenerator struct {
	Command  string   `json:"command"`
	Strength Strength `json:"strength"`
}

// Resolved drops the depth of g.
func (g RawSettingsGenerator) Resolved() SettingsGenerator {
	return SettingsGenerator{Command: g.Command, Strength: g.Strength}
}

// ExpandSettingGenerator adds to result the keys generator applies to when it is stored on
// dataKey. With a depth of N, every populated live key N levels below dataKey's parent yields
// the sibling named like dataKey's last segment.
func ExpandSettingGenerator(ctx context.Context, ds datastore.Backend, dataKey datastore.Key, generator RawSettingsGenerator, result map[string]SettingsGenerator) error {
	resolved := generator.Resolved()

	if generator.Depth == 0 {
		result[dataKey.Name()] = resolved

		return nil
	}

	segments := dataKey.Segments()
	leaf := segments[len(segments)-1]

	parent, err := dataKey.Parent(1)
	if err != nil {
		return fmt.Errorf("generator on %s cannot have a depth: %w", dataKey, err)
	}

	children, err := ds.ListPopulatedKeys(ctx, parent.Name()+datastore.KeySeparator, datastore.Live)
	if err != nil {
		return fmt.Errorf("failed to list keys below %s: %w", parent, err)
	}

	targetLength := len(segments) + int(generator.Depth)

	for child := range children {
		childSegments := child.Segments()
		if len(childSegments) < targetLength {
			continue
		}

		target := append(append([]string{}, childSegments[:targetLength-1]...), leaf)

		key, err := datastore.KeyFromSegments(datastore.KeyTypeData, target)
		if err != nil {
			return err
		}

		result[key.Name()] = resolved
	}

	return nil
}

// GetSettingsGeneratorMetadata reads every live generator stored under metaKeyName and expands
// it. Parents are expanded before their descendants so a more specific generator wins.
func (c *Controller) GetSettingsGeneratorMetadata(ctx context.Context, metaKeyName string) (map[string]SettingsGenerator, error) {
	metaKey, err := datastore.NewMetaKey(metaKeyName)
	if err != nil {
		return nil, err
	}

	md, err := c.ds.GetMetadataPrefix(ctx, "", datastore.Live, metaKeyName)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata %s: %w", metaKeyName, err)
	}

	result := make(map[string]SettingsGenerator)

	for _, dataKey := range parentsFirst(md) {
		raw, ok := md[dataKey][metaKey]
		if !ok {
			continue
		}

		var generator RawSettingsGenerator
		if err := json.Unmarshal([]byte(raw), &generator); err != nil {
			return nil, fmt.Errorf("generator of %s: %w", dataKey, err)
		}

		if err := ExpandSettingGenerator(ctx, c.ds, dataKey, generator, result); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// parentsFirst orders keys by segment count, then by name.
func parentsFirst(md map[datastore.Key]map[datastore.Key]string) []datastore.Key {
	keys := sortedMetadataKeys(md)

	sort.SliceStable(keys, func(i, j int) bool {
		return len(keys[i].Segments()) < len(keys[j].Segments())
	})

	return keys
}
