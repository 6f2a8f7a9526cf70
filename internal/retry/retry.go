// Package retry provides the exponential backoff policy shared by the remote
// fetcher and the image pull step.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"devservices/pkg/logging"

	"k8s.io/apimachinery/pkg/util/wait"
)

// Policy retries an operation up to MaxAttempts times, sleeping BaseDelay
// before the second attempt and multiplying the delay by Multiplier after
// each failure.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
	// Name shows up in logs, e.g. "fetch snuba".
	Name string
}

// Once is a policy that never retries.
var Once = Policy{MaxAttempts: 1}

type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// ExhaustedError is returned when every attempt failed.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

// Named returns a copy of the policy labelled for logging.
func (p Policy) Named(name string) Policy {
	p.Name = name
	return p
}

func (p Policy) backoff() wait.Backoff {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	factor := p.Multiplier
	if factor < 1 {
		factor = 1
	}
	return wait.Backoff{
		Duration: p.BaseDelay,
		Factor:   factor,
		Steps:    attempts,
	}
}

// Do runs op until it succeeds, returns a Permanent error, the attempts are
// exhausted or ctx is done. Permanent errors are returned unwrapped.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	var (
		attempts int
		lastErr  error
	)

	err := wait.ExponentialBackoffWithContext(ctx, p.backoff(), func(ctx context.Context) (bool, error) {
		attempts++
		lastErr = op(ctx)
		if lastErr == nil {
			return true, nil
		}
		var perm *permanentError
		if errors.As(lastErr, &perm) {
			return false, perm.err
		}
		logging.Debug("Retry", "%s: attempt %d/%d failed: %v", p.label(), attempts, p.backoff().Steps, lastErr)
		return false, nil
	})

	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case wait.Interrupted(err) && lastErr != nil:
		return &ExhaustedError{Attempts: attempts, Last: lastErr}
	default:
		return err
	}
}

func (p Policy) label() string {
	if p.Name == "" {
		return "operation"
	}
	return p.Name
}
