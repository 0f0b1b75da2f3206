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

// Package settings implements the settings operations on top of a datastore: writing settings
// with a strength into a transaction, the strength policy applied on commit, metadata queries
// and the expansion of settings generators.
package settings

import (
	"errors"
	"fmt"

	"github.com/united-manufacturing-hub/umh-datastore/pkg/datastore"
)

// Strength tells whether a setting survives a reboot. Weak settings are ephemeral and are
// dropped before a migration.
type Strength string

const (
	Strong Strength = "strong"
	Weak   Strength = "weak"
)

// DefaultStrength applies to settings without strength metadata.
const DefaultStrength = Strong

// StrengthMetadataKey is the name of the metadata entry holding a setting's strength.
const StrengthMetadataKey = "strength"

// Prefix is the part of the key space holding settings.
const Prefix = "settings."

var ErrInvalidStrength = errors.New("invalid strength")

// ParseStrength accepts "strong" and "weak".
func ParseStrength(s string) (Strength, error) {
	switch Strength(s) {
	case Strong, Weak:
		return Strength(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStrength, s)
	}
}

func (s Strength) String() string {
	return string(s)
}

// UnmarshalText makes Strength usable in JSON and YAML documents.
func (s *Strength) UnmarshalText(text []byte) error {
	parsed, err := ParseStrength(string(text))
	if err != nil {
		return err
	}

	*s = parsed

	return nil
}

// decodeStrength parses a stored strength metadata value.
func decodeStrength(value string) (Strength, error) {
	raw, err := datastore.DeserializeScalarAs[string](value)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidStrength, err)
	}

	return ParseStrength(raw)
}

// encodeStrength renders s as stored metadata value.
func encodeStrength(s Strength) (string, error) {
	return datastore.SerializeScalar(string(s))
}

func strengthMetaKey() datastore.Key {
	key, err := datastore.NewMetaKey(StrengthMetadataKey)
	if err != nil {
		panic(err) // constant name
	}

	return key
}
