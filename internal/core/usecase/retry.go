package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/kirillkom/docflow/internal/core/domain"
)

const (
	defaultVersionRetries = 5
	defaultRetryInterval  = 20 * time.Millisecond
)

// ConflictRetry replays load-modify-save operations that lost an optimistic
// version check. Any other error stops the retry immediately.
type ConflictRetry struct {
	MaxRetries int
	Interval   time.Duration
	// OnConflict is called before each replay.
	OnConflict func(err error)
}

func (r ConflictRetry) normalize() ConflictRetry {
	if r.MaxRetries <= 0 {
		r.MaxRetries = defaultVersionRetries
	}
	if r.Interval <= 0 {
		r.Interval = defaultRetryInterval
	}
	return r
}

// Do runs op until it succeeds, fails with a non-conflict error, or the retry
// budget runs out. Exhaustion is reported as a temporary failure.
func (r ConflictRetry) Do(ctx context.Context, operation string, op func() error) error {
	r = r.normalize()
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = r.Interval
	policy.MaxInterval = 20 * r.Interval
	policy.MaxElapsedTime = 0

	err := backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if errors.Is(err, domain.ErrVersionConflict) {
			if r.OnConflict != nil {
				r.OnConflict(err)
			}
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(r.MaxRetries)), ctx))

	if err != nil && errors.Is(err, domain.ErrVersionConflict) {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}
