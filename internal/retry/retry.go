// Package retry holds the retry policy shared by the upstream clients.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"meeting-insights-go/internal/apierror"
)

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second
)

// Policy retries an operation up to MaxAttempts times, waiting
// BaseDelay * 2^attempt between attempt and attempt+1.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	// Retryable decides whether a failed attempt may be repeated.
	// Nil means RetryUpstream.
	Retryable func(error) bool
}

func Default() Policy {
	return Policy{MaxAttempts: DefaultMaxAttempts, BaseDelay: DefaultBaseDelay}
}

// RetryUpstream retries server errors, timeouts and connection failures.
func RetryUpstream(err error) bool {
	switch apierror.KindOf(err) {
	case apierror.KindServerError, apierror.KindTimeout, apierror.KindUnreachable:
		return true
	}
	return false
}

// Delay is the wait after the given zero-based attempt.
func (p Policy) Delay(attempt int) time.Duration {
	return p.normalized().BaseDelay << uint(attempt)
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultBaseDelay
	}
	if p.Retryable == nil {
		p.Retryable = RetryUpstream
	}
	return p
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.BaseDelay
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxInterval = p.BaseDelay << uint(p.MaxAttempts)
	bo.MaxElapsedTime = 0
	bo.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(bo, uint64(p.MaxAttempts-1)), ctx)
}

// Do runs op until it succeeds, fails with a non-retryable error, runs out of
// attempts or ctx is done. op receives the zero-based attempt number. notify,
// if set, is called before each wait. A deadline or cancellation that lands
// between attempts comes back as a timeout error wrapping the last failure.
func (p Policy) Do(ctx context.Context, op func(attempt int) error, notify func(err error, wait time.Duration)) error {
	p = p.normalized()
	attempt := 0
	var last error
	operation := func() error {
		err := op(attempt)
		attempt++
		if err == nil {
			return nil
		}
		last = err
		if ctx.Err() != nil || !p.Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	var n backoff.Notify
	if notify != nil {
		n = backoff.Notify(notify)
	}
	err := backoff.RetryNotify(operation, p.backOff(ctx), n)
	if err == nil {
		return nil
	}
	if _, classified := apierror.As(err); classified {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		service := ""
		if e, ok := apierror.As(last); ok {
			service = e.Service
		}
		if last != nil {
			err = fmt.Errorf("%w after %d attempts: %w", err, attempt, last)
		}
		return apierror.Wrap(apierror.KindTimeout, service, err)
	}
	return err
}
