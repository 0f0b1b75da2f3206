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

package datastore

import "sort"

// KeySet is an unordered set of keys.
type KeySet map[Key]struct{}

// NewKeySet returns a set holding keys.
func NewKeySet(keys ...Key) KeySet {
	set := make(KeySet, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}

	return set
}

func (s KeySet) Add(k Key) {
	s[k] = struct{}{}
}

func (s KeySet) Contains(k Key) bool {
	_, ok := s[k]

	return ok
}

// Sorted returns the keys ordered by name.
func (s KeySet) Sorted() []Key {
	keys := make([]Key, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}

	sort.Slice(keys, func(i, j int) bool { return keys[i].name < keys[j].name })

	return keys
}

// Names returns the sorted dotted names.
func (s KeySet) Names() []string {
	names := make([]string, 0, len(s))
	for _, k := range s.Sorted() {
		names = append(names, k.name)
	}

	return names
}
