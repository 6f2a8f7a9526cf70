package health

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sequence(statuses ...Status) (StatusCheck, *int32) {
	var calls int32
	return func(context.Context) (Status, error) {
		n := atomic.AddInt32(&calls, 1)
		idx := int(n) - 1
		if idx >= len(statuses) {
			idx = len(statuses) - 1
		}
		return statuses[idx], nil
	}, &calls
}

func TestAwaitHealthy(t *testing.T) {
	gate := NewGate(time.Second, 5*time.Millisecond)

	check, calls := sequence(StatusStarting, StatusStarting, StatusHealthy)
	err := gate.AwaitHealthy(context.Background(), "redis", check, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(calls))
}

func TestAwaitHealthy_UnknownCountsAsHealthy(t *testing.T) {
	gate := NewGate(time.Second, 5*time.Millisecond)

	check, calls := sequence(StatusUnknown)
	require.NoError(t, gate.AwaitHealthy(context.Background(), "memcached", check, 0))
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestAwaitHealthy_Timeout(t *testing.T) {
	gate := NewGate(time.Hour, 5*time.Millisecond)

	check, _ := sequence(StatusStarting, StatusUnhealthy)
	err := gate.AwaitHealthy(context.Background(), "kafka", check, 40*time.Millisecond)

	var timeoutErr *TimeoutError
	require.True(t, errors.As(err, &timeoutErr))
	assert.Equal(t, "kafka", timeoutErr.Dependency)
	assert.Equal(t, StatusUnhealthy, timeoutErr.LastStatus)
	assert.Equal(t, 40*time.Millisecond, timeoutErr.Timeout)
}

func TestAwaitHealthy_StoppedFailsAtOnce(t *testing.T) {
	gate := NewGate(time.Hour, 5*time.Millisecond)

	check, calls := sequence(StatusStarting, StatusStopped, StatusHealthy)
	start := time.Now()
	err := gate.AwaitHealthy(context.Background(), "snuba", check, time.Minute)

	var stopped *StoppedError
	require.True(t, errors.As(err, &stopped))
	assert.Equal(t, "snuba", stopped.Dependency)
	var timeoutErr *TimeoutError
	assert.False(t, errors.As(err, &timeoutErr))
	assert.Equal(t, int32(2), atomic.LoadInt32(calls))
	assert.Less(t, time.Since(start), time.Second)
}

func TestAwaitHealthy_CheckErrorsAreRetried(t *testing.T) {
	gate := NewGate(time.Second, 5*time.Millisecond)

	var calls int32
	check := func(context.Context) (Status, error) {
		if atomic.AddInt32(&calls, 1) < 3 {
			return "", errors.New("no such container")
		}
		return StatusHealthy, nil
	}
	require.NoError(t, gate.AwaitHealthy(context.Background(), "redis", check, 0))
}

func TestAwaitHealthy_Cancelled(t *testing.T) {
	gate := NewGate(time.Hour, 5*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	check, _ := sequence(StatusStarting)
	done := make(chan error, 1)
	go func() { done <- gate.AwaitHealthy(ctx, "clickhouse", check, 0) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("AwaitHealthy did not return after cancellation")
	}
}
