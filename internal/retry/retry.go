// Package retry wraps calls to unreliable collaborators with bounded
// exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"SignalSentinel/internal/model"
)

// Policy describes how a unit of work is retried.
//
// The wait before attempt n+1 (n counted from zero) is Delay × 2^n. There is
// no wait after the final attempt. Only errors matching an entry of Retryable
// (via errors.Is) are retried; an empty list disables retries.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
	Retryable   []error

	// Name labels log lines. Optional.
	Name string
	// Logger receives a warning per failed attempt. Optional.
	Logger *zap.Logger
	// Sleep waits between attempts. Defaults to a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultPolicy retries transient failures three times starting at delay.
func DefaultPolicy(delay time.Duration) Policy {
	return Policy{
		MaxAttempts: 3,
		Delay:       delay,
		Retryable:   []error{model.ErrTransient},
	}
}

// With returns a copy of p with the given name and logger.
func (p Policy) With(name string, logger *zap.Logger) Policy {
	p.Name = name
	p.Logger = logger
	return p
}

// Backoff returns the wait after the given zero-based attempt.
func (p Policy) Backoff(attempt int) time.Duration {
	return p.Delay * time.Duration(1<<uint(attempt))
}

func (p Policy) retryable(err error) bool {
	for _, target := range p.Retryable {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (p Policy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Do runs op until it succeeds, fails with a non-retryable error, or the
// attempts are exhausted. The last failure is returned unchanged in the
// error chain.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err
		if !p.retryable(err) {
			return zero, err
		}
		if attempt == attempts-1 {
			break
		}

		wait := p.Backoff(attempt)
		if p.Logger != nil {
			p.Logger.Warn("attempt failed, retrying",
				zap.String("op", p.Name),
				zap.Int("attempt", attempt+1),
				zap.Int("max_attempts", attempts),
				zap.Duration("backoff", wait),
				zap.Error(err))
		}
		if serr := p.sleep(ctx, wait); serr != nil {
			return zero, errors.Join(serr, lastErr)
		}
	}

	if p.Logger != nil {
		p.Logger.Error("all attempts failed", zap.String("op", p.Name), zap.Int("attempts", attempts), zap.Error(lastErr))
	}
	return zero, fmt.Errorf("%d attempts exhausted: %w", attempts, lastErr)
}

// Run is Do for operations without a result.
func Run(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	_, err := Do(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// Wrap returns fn guarded by the policy.
func Wrap[In, Out any](p Policy, fn func(ctx context.Context, in In) (Out, error)) func(ctx context.Context, in In) (Out, error) {
	return func(ctx context.Context, in In) (Out, error) {
		return Do(ctx, p, func(ctx context.Context) (Out, error) {
			return fn(ctx, in)
		})
	}
}
