package state

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "state", "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_UpsertGetList(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_, ok, err := s.Get(ctx, "sentry", "sentry/redis")
	require.NoError(t, err)
	assert.False(t, ok, "absence reads as not running")

	_, err = s.Claim(ctx, "sentry", "sentry/redis", "redis", []string{"default"})
	require.NoError(t, err)
	_, err = s.Claim(ctx, "sentry", "sentry/postgres", "postgres", []string{"default", "migrations"})
	require.NoError(t, err)

	target := Target{Kind: "local", Project: "sentry", ConfigPath: "/code/sentry/devservices/config.yml", Unit: "redis"}
	require.NoError(t, s.Upsert(ctx, Record{Key: "sentry/redis", Name: "redis", Status: StatusHealthy, Handle: "sentry-redis-1", Target: target}))

	rec, ok, err := s.Get(ctx, "sentry", "sentry/redis")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, StatusHealthy, rec.Status)
	assert.Equal(t, RuntimeContainer, rec.Runtime)
	assert.Equal(t, "sentry-redis-1", rec.Handle)
	assert.Equal(t, target, rec.Target)
	assert.Equal(t, []string{"default"}, rec.Modes)
	assert.Equal(t, 1, rec.Referrers, "Upsert keeps the referrer count")
	assert.False(t, rec.UpdatedAt.IsZero())

	records, err := s.List(ctx, "sentry")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "postgres", records[0].Name)
	assert.Equal(t, []string{"default", "migrations"}, records[0].Modes)
	assert.Equal(t, StatusNotRunning, records[0].Status)
	assert.Equal(t, "redis", records[1].Name)

	other, err := s.List(ctx, "relay")
	require.NoError(t, err)
	assert.Empty(t, other)

	all, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestStore_ClaimRelease(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	key := "snuba@master/snuba"

	n, err := s.Claim(ctx, "sentry", key, "snuba", []string{"default"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.Claim(ctx, "sentry", key, "snuba", []string{"default"})
	require.NoError(t, err)
	assert.Equal(t, 1, n, "repeated claims are not counted twice")

	n, err = s.Claim(ctx, "getsentry", key, "snuba", []string{"default"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.Release(ctx, "sentry", key, []string{"default"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.Release(ctx, "sentry", key, []string{"default"})
	require.NoError(t, err)
	assert.Equal(t, 1, n, "releasing a missing claim is a no-op")

	n, err = s.Release(ctx, "getsentry", key, []string{"default"})
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = s.Release(ctx, "getsentry", "missing", []string{"default"})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestStore_ConcurrentClaims(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	key := "kafka@main/kafka"

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Claim(ctx, fmt.Sprintf("svc-%d", i), key, "kafka", []string{"default"})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	rec, ok, err := s.Lookup(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 20, rec.Referrers)

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Release(ctx, fmt.Sprintf("svc-%d", i), key, []string{"default"})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	rec, _, err = s.Lookup(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 0, rec.Referrers)
}

func TestStore_ActiveModesAndClaims(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_, err := s.Claim(ctx, "sentry", "sentry/redis", "redis", []string{"default", "symbolicator"})
	require.NoError(t, err)
	_, err = s.Claim(ctx, "relay", "sentry/redis", "redis", []string{"default"})
	require.NoError(t, err)

	modes, err := s.ActiveModes(ctx, "sentry")
	require.NoError(t, err)
	assert.Equal(t, []string{"default", "symbolicator"}, modes)

	claims, err := s.Claims(ctx, "relay")
	require.NoError(t, err)
	assert.Equal(t, []Claim{{Service: "relay", Key: "sentry/redis", Mode: "default"}}, claims)

	all, err := s.Claims(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestStore_Clear(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_, err := s.Claim(ctx, "sentry", "shared", "shared", []string{"default"})
	require.NoError(t, err)
	_, err = s.Claim(ctx, "relay", "shared", "shared", []string{"default"})
	require.NoError(t, err)
	_, err = s.Claim(ctx, "sentry", "own", "own", []string{"default", "full"})
	require.NoError(t, err)
	require.NoError(t, s.SetRuntime(ctx, "shared", RuntimeLocal))

	require.NoError(t, s.Clear(ctx, "sentry"))

	_, ok, err := s.Lookup(ctx, "own")
	require.NoError(t, err)
	assert.False(t, ok)

	shared, ok, err := s.Lookup(ctx, "shared")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, shared.Referrers)

	rt, ok, err := s.Runtime(ctx, "shared")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, RuntimeLocal, rt)

	require.NoError(t, s.Clear(ctx, ""))
	all, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, all)
	_, ok, err = s.Runtime(ctx, "shared")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_RuntimePreference(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_, ok, err := s.Runtime(ctx, "snuba@master/snuba")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetRuntime(ctx, "snuba@master/snuba", RuntimeLocal))
	_, err = s.Claim(ctx, "sentry", "snuba@master/snuba", "snuba", []string{"default"})
	require.NoError(t, err)

	rec, _, err := s.Lookup(ctx, "snuba@master/snuba")
	require.NoError(t, err)
	assert.Equal(t, RuntimeLocal, rec.Runtime, "new records start with the stored preference")
}

func TestStore_StartingClaims(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	s.now = func() time.Time { return time.Unix(1700000000, 0) }

	require.NoError(t, s.MarkStarting(ctx, "run-1", 4242, []string{"a", "b"}))
	require.NoError(t, s.MarkStarting(ctx, "run-2", 4343, []string{"c"}))

	claims, err := s.StartingClaims(ctx)
	require.NoError(t, err)
	require.Len(t, claims, 3)
	assert.Equal(t, StartingClaim{RunID: "run-1", PID: 4242, Key: "a", StartedAt: time.Unix(1700000000, 0)}, claims[0])

	require.NoError(t, s.FinishStarting(ctx, "run-1"))
	claims, err = s.StartingClaims(ctx)
	require.NoError(t, err)
	require.Len(t, claims, 1)
	assert.Equal(t, "c", claims[0].Key)
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.db")

	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.Claim(ctx, "sentry", "sentry/redis", "redis", []string{"default"})
	require.NoError(t, err)
	require.NoError(t, s.Upsert(ctx, Record{Key: "sentry/redis", Name: "redis", Status: StatusHealthy}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	rec, ok, err := s.Get(ctx, "sentry", "sentry/redis")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, StatusHealthy, rec.Status)
	assert.Equal(t, 1, rec.Referrers)
}

func TestRuntimeHelpers(t *testing.T) {
	rt, ok := ParseRuntime("containerized")
	assert.True(t, ok)
	assert.Equal(t, RuntimeContainer, rt)
	assert.Equal(t, RuntimeLocal, rt.Opposite())
	assert.Equal(t, RuntimeContainer, RuntimeLocal.Opposite())

	_, ok = ParseRuntime("vm")
	assert.False(t, ok)

	assert.True(t, StatusUnhealthy.Active())
	assert.False(t, StatusNotRunning.Active())
}
