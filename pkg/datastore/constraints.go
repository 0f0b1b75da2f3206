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

import "context"

// MetadataWrite is one metadata entry to promote into Live.
type MetadataWrite struct {
	MetadataKey Key
	DataKey     Key
	Value       string
}

// ApprovedWrite is what a ConstraintChecker allows a commit to write into Live.
type ApprovedWrite struct {
	Settings map[Key]string
	Metadata []MetadataWrite
}

// ConstraintCheckResult is either a rejection with a reason or an ApprovedWrite.
type ConstraintCheckResult struct {
	approved bool
	reason   string
	write    ApprovedWrite
}

// Reject refuses the commit.
func Reject(reason string) ConstraintCheckResult {
	return ConstraintCheckResult{reason: reason}
}

// Approve allows the commit to write w.
func Approve(w ApprovedWrite) ConstraintCheckResult {
	return ConstraintCheckResult{approved: true, write: w}
}

func (r ConstraintCheckResult) IsApproved() bool {
	return r.approved
}

// Reason is empty for approved results.
func (r ConstraintCheckResult) Reason() string {
	return r.reason
}

// Write is the zero ApprovedWrite for rejected results.
func (r ConstraintCheckResult) Write() ApprovedWrite {
	return r.write
}

// ConstraintChecker decides what a commit of the pending dataset may write into Live.
//
// Check gets the unlocked datastore so it can read both Pending and Live while the
// commit holds the lock. It must not write.
type ConstraintChecker interface {
	Check(ctx context.Context, ds DataStore, pending Committed) (ConstraintCheckResult, error)
}

// ConstraintCheckerFunc adapts a function to ConstraintChecker.
type ConstraintCheckerFunc func(ctx context.Context, ds DataStore, pending Committed) (ConstraintCheckResult, error)

func (f ConstraintCheckerFunc) Check(ctx context.Context, ds DataStore, pending Committed) (ConstraintCheckResult, error) {
	return f(ctx, ds, pending)
}

// ApproveAll promotes every pending setting unchanged and no metadata.
var ApproveAll = ConstraintCheckerFunc(func(ctx context.Context, ds DataStore, pending Committed) (ConstraintCheckResult, error) {
	settings, err := ds.GetPrefix(ctx, "", pending)
	if err != nil {
		return ConstraintCheckResult{}, err
	}

	return Approve(ApprovedWrite{Settings: settings}), nil
})
