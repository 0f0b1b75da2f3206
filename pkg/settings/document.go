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
	"errors"
	"fmt"
	"strings"

	"github.com/united-manufacturing-hub/umh-datastore/pkg/datastore"
)

// ErrConflictingSettings is returned when a key holds a value and also has children.
var ErrConflictingSettings = errors.New("setting has both a value and children")

const rootSegment = "settings"

// Flatten turns a settings document into data keys below "settings.". Nested maps become key
// segments, map keys may also be dotted paths. Every leaf must be a scalar.
func Flatten(document map[string]any) (map[datastore.Key]string, error) {
	result := make(map[datastore.Key]string)
	if err := flattenInto(result, []string{rootSegment}, document); err != nil {
		return nil, err
	}

	return result, nil
}

func flattenInto(result map[datastore.Key]string, path []string, document map[string]any) error {
	for name, value := range document {
		segments := append(append([]string{}, path...), strings.Split(name, datastore.KeySeparator)...)

		if nested, ok := value.(map[string]any); ok {
			if err := flattenInto(result, segments, nested); err != nil {
				return err
			}

			continue
		}

		key, err := datastore.KeyFromSegments(datastore.KeyTypeData, segments)
		if err != nil {
			return err
		}

		serialized, err := datastore.SerializeScalar(value)
		if err != nil {
			return fmt.Errorf("setting %s: %w", key, err)
		}

		result[key] = serialized
	}

	return nil
}

// Unflatten is the inverse of Flatten: it builds the nested settings document, without the
// "settings" root, from serialized data keys.
func Unflatten(values map[datastore.Key]string) (map[string]any, error) {
	document := make(map[string]any)

	for _, key := range keySetOf(values).Sorted() {
		segments := key.Segments()
		if len(segments) < 2 || segments[0] != rootSegment {
			continue
		}

		value, err := datastore.DeserializeScalar(values[key])
		if err != nil {
			return nil, fmt.Errorf("setting %s: %w", key, err)
		}

		node := document
		for _, segment := range segments[1 : len(segments)-1] {
			child, exists := node[segment]
			if !exists {
				next := make(map[string]any)
				node[segment] = next
				node = next

				continue
			}

			next, ok := child.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrConflictingSettings, key)
			}

			node = next
		}

		leaf := segments[len(segments)-1]
		if _, exists := node[leaf]; exists {
			return nil, fmt.Errorf("%w: %s", ErrConflictingSettings, key)
		}

		node[leaf] = value
	}

	return document, nil
}

func keySetOf(values map[datastore.Key]string) datastore.KeySet {
	keys := datastore.NewKeySet()
	for k := range values {
		keys.Add(k)
	}

	return keys
}
