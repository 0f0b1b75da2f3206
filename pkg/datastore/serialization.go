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
	"fmt"
	"reflect"
	"strings"

	"github.com/goccy/go-json"
)

// SerializeScalar renders v in the representation stored for a single key.
// Aggregates (maps and structs) are refused with ErrNotScalar because they belong to
// several keys, not one.
func SerializeScalar(v any) (string, error) {
	if err := checkScalar(reflect.ValueOf(v)); err != nil {
		return "", err
	}

	out, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to serialize scalar: %w", err)
	}

	return string(out), nil
}

// DeserializeScalar parses a stored value without a target type.
// Numbers come back as json.Number so no precision is lost.
func DeserializeScalar(data string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("failed to deserialize scalar %q: %w", data, err)
	}

	if err := checkScalar(reflect.ValueOf(v)); err != nil {
		return nil, err
	}

	return v, nil
}

// DeserializeScalarAs parses a stored value into T.
func DeserializeScalarAs[T any](data string) (T, error) {
	var v T
	if err := checkScalarType(reflect.TypeOf(&v).Elem()); err != nil {
		return v, err
	}

	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return v, fmt.Errorf("failed to deserialize scalar %q: %w", data, err)
	}

	if err := checkScalar(reflect.ValueOf(v)); err != nil {
		var zero T

		return zero, err
	}

	return v, nil
}

func checkScalar(v reflect.Value) error {
	if !v.IsValid() {
		return nil
	}

	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return nil
		}

		return checkScalar(v.Elem())
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if err := checkScalar(v.Index(i)); err != nil {
				return err
			}
		}

		return nil
	default:
		return checkScalarType(v.Type())
	}
}

func checkScalarType(t reflect.Type) error {
	switch t.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64, reflect.Interface:
		return nil
	case reflect.Pointer, reflect.Slice, reflect.Array:
		return checkScalarType(t.Elem())
	default:
		return fmt.Errorf("%w: %s", ErrNotScalar, t)
	}
}
