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

import (
	"errors"
	"fmt"
	"strings"
)

// KeyType tells whether a Key addresses a value or a piece of metadata attached to a value.
type KeyType int

const (
	// KeyTypeData keys hold setting values.
	KeyTypeData KeyType = iota
	// KeyTypeMeta keys name a metadata entry of some data key.
	KeyTypeMeta
)

func (t KeyType) String() string {
	switch t {
	case KeyTypeData:
		return "data"
	case KeyTypeMeta:
		return "meta"
	default:
		return fmt.Sprintf("KeyType(%d)", int(t))
	}
}

const (
	// KeySeparator joins the segments of a key name.
	KeySeparator = "."
	// MaxKeyNameLength bounds the dotted name of a key, in bytes.
	MaxKeyNameLength = 255
	// MaxKeySegmentLength bounds one segment. A segment plus a data or metadata suffix must
	// still fit a single file name of the filesystem backend.
	MaxKeySegmentLength = 127
	// MaxMetaKeyNameLength bounds the name of a meta key, which becomes a file name suffix.
	MaxMetaKeyNameLength = 127
)

// Key is an immutable, validated hierarchical identifier such as "settings.ntp.time-servers".
//
// Key is a comparable value and can be used as a map key. The zero Key is not valid and is
// never returned by the constructors without an error.
type Key struct {
	typ  KeyType
	name string
}

// NewKey validates name and returns the key of the given type.
func NewKey(typ KeyType, name string) (Key, error) {
	if err := validateName(typ, name); err != nil {
		return Key{}, err
	}

	return Key{typ: typ, name: name}, nil
}

// NewDataKey is a shorthand for NewKey(KeyTypeData, name).
func NewDataKey(name string) (Key, error) {
	return NewKey(KeyTypeData, name)
}

// NewMetaKey is a shorthand for NewKey(KeyTypeMeta, name).
func NewMetaKey(name string) (Key, error) {
	return NewKey(KeyTypeMeta, name)
}

// KeyFromSegments builds a key from already split segments.
func KeyFromSegments(typ KeyType, segments []string) (Key, error) {
	if len(segments) == 0 {
		return Key{}, &KeyError{Name: "", Reason: "no segments"}
	}

	for _, segment := range segments {
		if err := validateSegment(segment); err != nil {
			return Key{}, &KeyError{Name: strings.Join(segments, KeySeparator), Reason: err.Error(), tooLong: errors.Is(err, errSegmentTooLong)}
		}
	}

	return NewKey(typ, strings.Join(segments, KeySeparator))
}

// Type returns whether k is a data or a meta key.
func (k Key) Type() KeyType {
	return k.typ
}

// Name returns the full dotted name.
func (k Key) Name() string {
	return k.name
}

func (k Key) String() string {
	return k.name
}

// IsZero reports whether k is the zero Key.
func (k Key) IsZero() bool {
	return k.name == ""
}

// Segments returns a fresh copy of the name's segments.
func (k Key) Segments() []string {
	if k.name == "" {
		return nil
	}

	return strings.Split(k.name, KeySeparator)
}

// Parent returns the key with the last n segments removed.
// It fails if that would leave no segment.
func (k Key) Parent(n int) (Key, error) {
	segments := k.Segments()
	if n < 0 || n >= len(segments) {
		return Key{}, &KeyError{Name: k.name, Reason: fmt.Sprintf("cannot remove %d segments", n)}
	}

	return Key{typ: k.typ, name: strings.Join(segments[:len(segments)-n], KeySeparator)}, nil
}

// Child appends one segment to k.
func (k Key) Child(segment string) (Key, error) {
	if err := validateSegment(segment); err != nil {
		return Key{}, &KeyError{Name: k.name + KeySeparator + segment, Reason: err.Error(), tooLong: errors.Is(err, errSegmentTooLong)}
	}

	return NewKey(k.typ, k.name+KeySeparator+segment)
}

// HasSegmentPrefix reports whether the first segments of k equal prefix.
func (k Key) HasSegmentPrefix(prefix []string) bool {
	segments := k.Segments()
	if len(prefix) > len(segments) {
		return false
	}

	for i := range prefix {
		if segments[i] != prefix[i] {
			return false
		}
	}

	return true
}

func validateName(typ KeyType, name string) error {
	if name == "" {
		return &KeyError{Name: name, Reason: "empty name"}
	}

	limit := MaxKeyNameLength
	if typ == KeyTypeMeta {
		limit = MaxMetaKeyNameLength
	}

	if len(name) > limit {
		return &KeyError{Name: name, Reason: fmt.Sprintf("longer than %d bytes", limit), tooLong: true}
	}

	for _, segment := range strings.Split(name, KeySeparator) {
		if err := validateSegment(segment); err != nil {
			return &KeyError{Name: name, Reason: err.Error(), tooLong: errors.Is(err, errSegmentTooLong)}
		}
	}

	return nil
}

func validateSegment(segment string) error {
	if segment == "" {
		return errEmptySegment
	}

	if len(segment) > MaxKeySegmentLength {
		return fmt.Errorf("%w: segment %q is longer than %d bytes", errSegmentTooLong, segment, MaxKeySegmentLength)
	}

	for i := 0; i < len(segment); i++ {
		if !validKeyByte(segment[i]) {
			return fmt.Errorf("segment %q contains invalid character %q", segment, segment[i])
		}
	}

	return nil
}

func validKeyByte(c byte) bool {
	return (c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9') ||
		c == '_' || c == '-'
}
