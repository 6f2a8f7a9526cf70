// Package health waits for a started dependency to report readiness.
package health

import (
	"context"
	"fmt"
	"time"

	"devservices/pkg/logging"

	"k8s.io/apimachinery/pkg/util/wait"
)

// Status is a readiness signal reported by an adapter.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusStarting  Status = "starting"
	StatusUnhealthy Status = "unhealthy"
	// StatusUnknown means the unit has no readiness signal, e.g. a container
	// without a healthcheck. It is treated as healthy.
	StatusUnknown Status = "unknown"
	// StatusStopped means the unit is not running at all.
	StatusStopped Status = "stopped"
)

// StatusCheck reports the current status of one dependency.
type StatusCheck func(ctx context.Context) (Status, error)

// TimeoutError is returned when a dependency did not become healthy in time.
// It is a soft failure unless the engine runs in strict mode.
type TimeoutError struct {
	Dependency string
	Timeout    time.Duration
	LastStatus Status
	LastErr    error
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("%s did not become healthy within %s", e.Dependency, e.Timeout)
	if e.LastStatus != "" {
		msg += fmt.Sprintf(" (last status: %s)", e.LastStatus)
	}
	if e.LastErr != nil {
		msg += fmt.Sprintf(": %v", e.LastErr)
	}
	return msg
}

func (e *TimeoutError) Unwrap() error {
	return e.LastErr
}

// StoppedError is returned when a dependency exits while waiting for it.
type StoppedError struct {
	Dependency string
}

func (e *StoppedError) Error() string {
	return fmt.Sprintf("%s stopped before becoming healthy", e.Dependency)
}

// Gate polls status checks until they report healthy.
type Gate struct {
	Timeout  time.Duration
	Interval time.Duration
}

// NewGate returns a gate with the given default timeout and poll interval.
func NewGate(timeout, interval time.Duration) *Gate {
	return &Gate{Timeout: timeout, Interval: interval}
}

// AwaitHealthy polls check until it reports healthy (or unknown), the timeout
// elapses or ctx is cancelled. A zero timeout uses the gate's default.
// Cancellation returns ctx.Err(); an elapsed timeout returns *TimeoutError.
// A unit reported stopped fails at once with *StoppedError.
func (g *Gate) AwaitHealthy(ctx context.Context, dependency string, check StatusCheck, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = g.Timeout
	}
	interval := g.Interval
	if interval <= 0 {
		interval = time.Second
	}

	var (
		last    Status
		lastErr error
	)
	err := wait.PollUntilContextTimeout(ctx, interval, timeout, true, func(ctx context.Context) (bool, error) {
		status, err := check(ctx)
		if err != nil {
			// Transient: the container may not exist yet.
			lastErr = err
			logging.Debug("Health", "Status check for %s failed: %v", dependency, err)
			return false, nil
		}
		lastErr = nil
		if status != last {
			logging.Debug("Health", "%s is %s", dependency, status)
		}
		last = status

		switch status {
		case StatusHealthy:
			return true, nil
		case StatusUnknown:
			logging.Warn("Health", "%s has no healthcheck, assuming healthy", dependency)
			return true, nil
		case StatusStopped:
			return false, &StoppedError{Dependency: dependency}
		case StatusStarting, StatusUnhealthy:
			return false, nil
		default:
			return false, nil
		}
	})

	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case wait.Interrupted(err):
		return &TimeoutError{Dependency: dependency, Timeout: timeout, LastStatus: last, LastErr: lastErr}
	default:
		return err
	}
}
