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

package env

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Prefix is prepended to every variable name looked up by this package.
const Prefix = "UMH_DATASTORE_"

// Name returns the full variable name for key.
func Name(key string) string {
	return Prefix + key
}

// GetAsString retrieves Prefix+key as a string.
// ok is false when the variable is unset or empty.
func GetAsString(key string) (value string, ok bool) {
	value = os.Getenv(Name(key))

	return value, value != ""
}

// GetAsBool retrieves Prefix+key as a boolean.
// Unset variables yield ok == false; unparsable values are an error.
func GetAsBool(key string) (value bool, ok bool, err error) {
	raw, ok := GetAsString(key)
	if !ok {
		return false, false, nil
	}

	switch strings.ToLower(raw) {
	case "true", "1", "yes", "y", "on":
		return true, true, nil
	case "false", "0", "no", "n", "off":
		return false, true, nil
	default:
		return false, false, fmt.Errorf("environment variable %s must be a boolean value", Name(key))
	}
}

// GetAsDuration retrieves Prefix+key as a time.Duration such as "30s".
func GetAsDuration(key string) (value time.Duration, ok bool, err error) {
	raw, ok := GetAsString(key)
	if !ok {
		return 0, false, nil
	}

	value, err = time.ParseDuration(raw)
	if err != nil {
		return 0, false, fmt.Errorf("environment variable %s must be a duration: %w", Name(key), err)
	}

	return value, true, nil
}
