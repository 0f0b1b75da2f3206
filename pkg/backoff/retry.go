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

package backoff

import (
	"context"
	"fmt"
	"time"

	cbackoff "github.com/cenkalti/backoff"
	"go.uber.org/zap"
)

// Policy bounds a retry loop.
type Policy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
}

// DefaultPolicy retries quickly at first and gives up after maxElapsed.
func DefaultPolicy(maxElapsed time.Duration) Policy {
	return Policy{
		InitialInterval: 50 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		MaxElapsedTime:  maxElapsed,
	}
}

func (p Policy) newBackOff(ctx context.Context) *deadlineBackOff {
	b := cbackoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval
	b.MaxElapsedTime = p.MaxElapsedTime

	return &deadlineBackOff{ExponentialBackOff: b, ctx: ctx}
}

// deadlineBackOff stops once ctx is done or its deadline falls before the next attempt, and
// remembers the latter so callers can report the deadline instead of the last failure.
type deadlineBackOff struct {
	*cbackoff.ExponentialBackOff
	ctx     context.Context
	expired bool
}

func (b *deadlineBackOff) Context() context.Context {
	return b.ctx
}

func (b *deadlineBackOff) NextBackOff() time.Duration {
	if b.ctx.Err() != nil {
		return cbackoff.Stop
	}

	next := b.ExponentialBackOff.NextBackOff()
	if next == cbackoff.Stop {
		return next
	}

	if deadline, ok := b.ctx.Deadline(); ok && time.Until(deadline) < next {
		b.expired = true

		return cbackoff.Stop
	}

	return next
}

// Retry calls op until it returns nil or a permanent error, or until the policy or ctx ends
// the loop. The last error is returned, wrapped with the context error when ctx ended it.
func Retry(ctx context.Context, policy Policy, log *zap.SugaredLogger, op func() error) error {
	attempts := 0
	b := policy.newBackOff(ctx)

	err := cbackoff.RetryNotify(func() error {
		attempts++

		err := op()
		if err != nil && IsPermanent(err) {
			return cbackoff.Permanent(err)
		}

		return err
	}, b, func(err error, next time.Duration) {
		if log != nil {
			log.Debugf("Attempt %d failed, retrying in %s: %s", attempts, next, err)
		}
	})
	if err != nil {
		if IsPermanent(err) {
			return fmt.Errorf("gave up after %d attempts: %w", attempts, err)
		}

		ctxErr := ctx.Err()
		if ctxErr == nil && b.expired {
			ctxErr = context.DeadlineExceeded
		}

		if ctxErr != nil {
			return fmt.Errorf("gave up after %d attempts: %w: %w", attempts, ctxErr, err)
		}

		return fmt.Errorf("gave up after %d attempts: %w", attempts, err)
	}

	return nil
}
