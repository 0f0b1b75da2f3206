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

import "fmt"

// Committed selects the dataset an operation works on: the live settings or one pending
// transaction. Pending datasets are isolated from each other and from Live until committed.
type Committed struct {
	pending bool
	tx      string
}

// Live is the dataset the system runs with.
var Live = Committed{}

// Pending returns the dataset of transaction tx.
func Pending(tx string) Committed {
	return Committed{pending: true, tx: tx}
}

// IsLive reports whether c is Live.
func (c Committed) IsLive() bool {
	return !c.pending
}

// Transaction returns the transaction name, or "" for Live.
func (c Committed) Transaction() string {
	return c.tx
}

func (c Committed) String() string {
	if c.IsLive() {
		return "live"
	}

	return fmt.Sprintf("pending(%s)", c.tx)
}

// Validate refuses a pending dataset whose transaction name ValidateTransaction refuses.
func (c Committed) Validate() error {
	if !c.pending {
		return nil
	}

	return ValidateTransaction(c.tx)
}

// MaxTransactionNameLength bounds a transaction name, in bytes. Its unpadded base64url
// form is a directory name of the filesystem backend and must fit in 255 bytes.
const MaxTransactionNameLength = 191

// ValidateTransaction refuses empty and over-long transaction names.
func ValidateTransaction(tx string) error {
	if tx == "" {
		return ErrInvalidTransaction
	}

	if len(tx) > MaxTransactionNameLength {
		return fmt.Errorf("%w: %d bytes, at most %d allowed", ErrInvalidTransaction, len(tx), MaxTransactionNameLength)
	}

	return nil
}
