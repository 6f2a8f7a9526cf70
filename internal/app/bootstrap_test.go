package app

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"devservices/internal/config"
	"devservices/internal/containerizer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const serviceConfig = `x-sentry-service-config:
  version: 0.1
  service_name: example
  dependencies:
    redis:
      description: Redis
  modes:
    default: [redis]

services:
  redis:
    image: redis:6
`

func isolate(t *testing.T) (coderoot string) {
	t.Helper()
	root := t.TempDir()
	coderoot = filepath.Join(root, "code")
	require.NoError(t, os.MkdirAll(coderoot, 0o755))
	t.Setenv(config.EnvCoderoot, coderoot)
	t.Setenv(config.EnvCacheDir, filepath.Join(root, "cache"))
	t.Setenv(config.EnvStateDir, filepath.Join(root, "state"))
	return coderoot
}

func writeService(t *testing.T, coderoot, repo string) string {
	t.Helper()
	dir := filepath.Join(coderoot, repo)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, config.DirName), 0o755))
	require.NoError(t, os.WriteFile(config.ConfigPath(dir), []byte(serviceConfig), 0o644))
	return dir
}

func newTestApplication(t *testing.T, debug bool, settings string) (*Application, *bytes.Buffer) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if settings != "" {
		require.NoError(t, os.WriteFile(path, []byte(settings), 0o644))
	}
	var logs bytes.Buffer
	cfg := NewConfig(debug, path)
	cfg.LogOutput = &logs

	application, err := NewApplication(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.Close() })
	return application, &logs
}

func TestNewApplication_Defaults(t *testing.T) {
	isolate(t)
	application, _ := newTestApplication(t, false, "")

	s := application.Settings()
	assert.Equal(t, config.DefaultWorkers, s.Workers)
	assert.Equal(t, config.DefaultHealthTimeout, s.Health.Timeout)
	assert.FileExists(t, s.StateDBPath())
	assert.DirExists(t, s.SupervisorDir())
	assert.DirExists(t, s.DependenciesCacheDir())

	services := application.Services()
	require.NotNil(t, services.Orchestrator)
	require.NotNil(t, services.Fetcher)

	recs, err := services.Orchestrator.Status(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestNewApplication_DebugFlagOverridesSettings(t *testing.T) {
	isolate(t)
	_, logs := newTestApplication(t, true, "log_level: error\n")
	assert.Contains(t, logs.String(), "level=DEBUG")
}

func TestNewApplication_InvalidSettings(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workers: 0\n"), 0o644))

	_, err := NewApplication(&Config{SettingsPath: path, LogOutput: &bytes.Buffer{}})
	var cfgErr *config.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Contains(t, err.Error(), "workers")
}

func TestApplication_ResolveService(t *testing.T) {
	coderoot := isolate(t)
	repo := writeService(t, coderoot, "example")
	application, _ := newTestApplication(t, false, "")

	svc, err := application.ResolveService("Example")
	require.NoError(t, err)
	assert.Equal(t, "example", svc.Name)

	t.Chdir(filepath.Join(repo, config.DirName))
	svc, err = application.ResolveService("")
	require.NoError(t, err)
	assert.Equal(t, repo, svc.RepoPath)

	_, err = application.ResolveService("missing")
	var cfgErr *config.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, config.ErrorTypeNotFound, cfgErr.ErrorType)
}

func TestLazyRuntime_CreatesOnce(t *testing.T) {
	calls := 0
	orig := newRuntime
	newRuntime = func(_ context.Context, runtimeType string) (containerizer.Runtime, error) {
		calls++
		assert.Equal(t, "podman", runtimeType)
		return nil, errors.New("podman runtime is not supported")
	}
	t.Cleanup(func() { newRuntime = orig })

	rt := NewLazyRuntime("podman")
	assert.Zero(t, calls)

	ctx := context.Background()
	_, err := rt.Start(ctx, containerizer.Descriptor{})
	assert.EqualError(t, err, "podman runtime is not supported")
	assert.Error(t, rt.CheckVersion(ctx))
	assert.Error(t, rt.Purge(ctx, ""))
	assert.Equal(t, 1, calls)
}
