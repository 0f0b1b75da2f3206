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
)

var (
	// ErrInvalidKey is matched by every key construction failure.
	ErrInvalidKey = errors.New("invalid key")
	// ErrKeyTooLong is matched when a key name or one of its segments exceeds its length bound.
	ErrKeyTooLong = errors.New("key name too long")
	// ErrInvalidTransaction is returned for an empty or over-long transaction name.
	ErrInvalidTransaction = errors.New("invalid transaction name")
	// ErrNotScalar is returned by the scalar codec for aggregate values.
	ErrNotScalar = errors.New("value is not a scalar")
	// ErrConstraintRejected is matched by *ConstraintRejectError.
	ErrConstraintRejected = errors.New("constraint check rejected transaction")
	// ErrCorruption is returned when the stored representation cannot be mapped back to keys.
	ErrCorruption = errors.New("datastore corruption")
	// ErrPathTraversal is returned when a key would resolve outside of the datastore.
	ErrPathTraversal = errors.New("path escapes datastore")
	// ErrNilChecker is returned by CommitTransaction without a ConstraintChecker.
	ErrNilChecker = errors.New("no constraint checker given")

	errEmptySegment   = errors.New("empty segment")
	errSegmentTooLong = errors.New("segment too long")
)

// KeyError describes why a key name was refused.
type KeyError struct {
	Name    string
	Reason  string
	tooLong bool
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("invalid key %q: %s", e.Name, e.Reason)
}

// Is lets errors.Is match ErrInvalidKey, and ErrKeyTooLong for over-long names.
func (e *KeyError) Is(target error) bool {
	if target == ErrInvalidKey {
		return true
	}

	return e.tooLong && target == ErrKeyTooLong
}

// ConstraintRejectError carries the reason a ConstraintChecker gave for refusing a commit.
// Nothing was written when it is returned.
type ConstraintRejectError struct {
	Transaction string
	Reason      string
}

func (e *ConstraintRejectError) Error() string {
	return fmt.Sprintf("transaction %q rejected: %s", e.Transaction, e.Reason)
}

func (e *ConstraintRejectError) Is(target error) bool {
	return target == ErrConstraintRejected
}
