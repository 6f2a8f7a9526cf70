package orchestrator

import (
	"context"
	"testing"

	"devservices/internal/config"
	"devservices/internal/state"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func toggleHarness(t *testing.T) (*harness, *config.Service) {
	t.Helper()
	snuba := withProgram(selfRemote("snuba"), "snuba")
	h := newHarness(t, remotes{"snuba": snuba}, false)
	svc := newService("s", defaultModes("snuba", "redis"), remoteDep("snuba", "snuba"), localDep("redis"))
	return h, svc
}

func TestToggle_RoundTrip(t *testing.T) {
	h, svc := toggleHarness(t)
	ctx := context.Background()

	_, err := h.o.Up(ctx, svc, nil, UpOptions{})
	require.NoError(t, err)
	assert.Equal(t, state.RuntimeContainer, h.record(t, "snuba@main/snuba").Runtime)

	res, err := h.o.Toggle(ctx, svc, "snuba", "")
	require.NoError(t, err)
	assert.Equal(t, ActionToggled, res.Action)
	assert.Equal(t, state.RuntimeLocal, res.Runtime)
	assert.Equal(t, state.StatusHealthy, res.Status)
	assert.Equal(t, 1, h.containers.stopCount("snuba"))
	assert.Equal(t, 1, h.programs.startCount("snuba"))

	rec := h.record(t, "snuba@main/snuba")
	assert.Equal(t, state.RuntimeLocal, rec.Runtime)
	assert.Equal(t, "snuba:snuba", rec.Handle)
	assert.Equal(t, 1, rec.Referrers)

	res, err = h.o.Toggle(ctx, svc, "snuba", "")
	require.NoError(t, err)
	assert.Equal(t, state.RuntimeContainer, res.Runtime)
	assert.Equal(t, state.StatusHealthy, res.Status)

	rec = h.record(t, "snuba@main/snuba")
	assert.Equal(t, state.RuntimeContainer, rec.Runtime)
	assert.Equal(t, state.StatusHealthy, rec.Status)
	assert.Equal(t, 2, h.containers.startCount("snuba"))
	assert.Equal(t, 1, h.programs.stops["snuba"])
	assert.Equal(t, 1, h.containers.startCount("redis"))
}

func TestToggle_ToCurrentRuntimeIsNoop(t *testing.T) {
	h, svc := toggleHarness(t)
	ctx := context.Background()

	_, err := h.o.Up(ctx, svc, nil, UpOptions{})
	require.NoError(t, err)

	res, err := h.o.Toggle(ctx, svc, "snuba", state.RuntimeContainer)
	require.NoError(t, err)
	assert.Equal(t, ActionNoop, res.Action)
	assert.Zero(t, h.containers.stopCount("snuba"))
}

func TestToggle_NotRunningOnlyFlipsPreference(t *testing.T) {
	h, svc := toggleHarness(t)
	ctx := context.Background()

	res, err := h.o.Toggle(ctx, svc, "snuba", state.RuntimeLocal)
	require.NoError(t, err)
	assert.Equal(t, ActionToggled, res.Action)
	assert.Equal(t, state.StatusNotRunning, res.Status)
	assert.Zero(t, h.programs.startCount("snuba"))

	pref, ok, err := h.store.Runtime(ctx, "snuba@main/snuba")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, state.RuntimeLocal, pref)

	_, err = h.o.Up(ctx, svc, nil, UpOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, h.programs.startCount("snuba"))
	assert.Zero(t, h.containers.startCount("snuba"))
	assert.Equal(t, state.RuntimeLocal, h.record(t, "snuba@main/snuba").Runtime)
}

func TestToggle_Rejected(t *testing.T) {
	h, svc := toggleHarness(t)
	svc.Dependencies["worker"] = config.Dependency{Name: "worker", Kind: config.KindSupervisor}
	ctx := context.Background()

	_, err := h.o.Toggle(ctx, svc, "redis", "")
	assert.ErrorIs(t, err, ErrNotToggleable)

	_, err = h.o.Toggle(ctx, svc, "worker", "")
	assert.ErrorIs(t, err, ErrNotToggleable)

	_, err = h.o.Toggle(ctx, svc, "missing", "")
	assert.Error(t, err)
}

func TestToggle_RemoteWithoutProgram(t *testing.T) {
	h := newHarness(t, remotes{"r": selfRemote("r")}, false)
	svc := newService("s", defaultModes("r"), remoteDep("r", "r"))

	_, err := h.o.Toggle(context.Background(), svc, "r", state.RuntimeLocal)
	assert.ErrorIs(t, err, ErrNotToggleable)
	assert.Contains(t, err.Error(), "no local unit")
}
