package orchestrator

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"devservices/internal/config"
	"devservices/internal/containerizer"
	"devservices/internal/health"
	"devservices/internal/state"
	"devservices/internal/supervisor"

	"github.com/stretchr/testify/require"
)

// fakeContainers records calls by compose service name.
type fakeContainers struct {
	mu       sync.Mutex
	starts   map[string]int
	stops    map[string]int
	pulls    map[string]int
	order    []string
	health   map[string]health.Status
	startErr map[string]error
	stopErr  map[string]error
	// crashed units report stopped even right after a start.
	crashed map[string]bool
	// containers and volumes back reset: compose service -> container IDs,
	// container ID -> volumes.
	containers map[string][]string
	volumes    map[string][]string
	purged     []string
}

func newFakeContainers() *fakeContainers {
	return &fakeContainers{
		starts:     map[string]int{},
		stops:      map[string]int{},
		pulls:      map[string]int{},
		health:     map[string]health.Status{},
		startErr:   map[string]error{},
		stopErr:    map[string]error{},
		crashed:    map[string]bool{},
		containers: map[string][]string{},
		volumes:    map[string][]string{},
	}
}

func containerHandle(d containerizer.Descriptor) string {
	return "c-" + d.Project + "-" + d.Service
}

func (f *fakeContainers) Start(_ context.Context, d containerizer.Descriptor) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.startErr[d.Service]; err != nil {
		return "", err
	}
	if f.health[d.Service] == health.StatusStopped {
		delete(f.health, d.Service)
	}
	f.starts[d.Service]++
	f.order = append(f.order, "start "+d.Service)
	return containerHandle(d), nil
}

func (f *fakeContainers) Stop(_ context.Context, d containerizer.Descriptor, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.stopErr[d.Service]; err != nil {
		return err
	}
	f.stops[d.Service]++
	f.order = append(f.order, "stop "+d.Service)
	return nil
}

func (f *fakeContainers) Health(_ context.Context, handle string) (health.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	unit := handle[strings.LastIndex(handle, "-")+1:]
	if f.crashed[unit] {
		return health.StatusStopped, nil
	}
	if s, ok := f.health[unit]; ok {
		return s, nil
	}
	return health.StatusHealthy, nil
}

func (f *fakeContainers) Pull(_ context.Context, d containerizer.Descriptor) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pulls[d.Service]++
	return nil
}

func (f *fakeContainers) Logs(_ context.Context, d containerizer.Descriptor, tail int) (string, error) {
	return fmt.Sprintf("container logs of %s (tail %d)", d.Service, tail), nil
}

func (f *fakeContainers) Purge(_ context.Context, project string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.purged = append(f.purged, project)
	return nil
}

func (f *fakeContainers) ServiceContainers(_ context.Context, service string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.containers[service], nil
}

func (f *fakeContainers) ContainerVolumes(_ context.Context, containers []string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range containers {
		out = append(out, f.volumes[c]...)
	}
	return out, nil
}

func (f *fakeContainers) RemoveContainers(_ context.Context, containers, volumes []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.order = append(f.order, "remove "+strings.Join(containers, ",")+" "+strings.Join(volumes, ","))
	return nil
}

func (f *fakeContainers) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := len(f.order) + len(f.purged)
	for _, c := range f.pulls {
		n += c
	}
	return n
}

func (f *fakeContainers) startCount(unit string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts[unit]
}

func (f *fakeContainers) stopCount(unit string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stops[unit]
}

// fakePrograms records calls by program name.
type fakePrograms struct {
	mu     sync.Mutex
	starts map[string]int
	stops  map[string]int
	health map[string]health.Status
	purged []string
}

func newFakePrograms() *fakePrograms {
	return &fakePrograms{starts: map[string]int{}, stops: map[string]int{}, health: map[string]health.Status{}}
}

func (f *fakePrograms) Start(_ context.Context, spec supervisor.ProgramSpec) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts[spec.Program]++
	return spec.Handle(), nil
}

func (f *fakePrograms) Stop(_ context.Context, handle string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, program, err := supervisor.ParseHandle(handle)
	if err != nil {
		return err
	}
	f.stops[program]++
	return nil
}

func (f *fakePrograms) Health(_ context.Context, handle string) (health.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, program, err := supervisor.ParseHandle(handle)
	if err != nil {
		return health.StatusUnhealthy, err
	}
	if s, ok := f.health[program]; ok {
		return s, nil
	}
	return health.StatusHealthy, nil
}

func (f *fakePrograms) Logs(_ context.Context, handle string, _ int) (string, error) {
	return "program logs of " + handle, nil
}

func (f *fakePrograms) Purge(_ context.Context, project string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.purged = append(f.purged, project)
	return nil
}

func (f *fakePrograms) startCount(program string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts[program]
}

type fakeCache struct{ cleaned int }

func (c *fakeCache) Clean() error {
	c.cleaned++
	return nil
}

// remotes serves remote service configs by repository name.
type remotes map[string]*config.Service

func (r remotes) resolve(_ context.Context, rc config.RemoteConfig) (*config.Service, error) {
	svc, ok := r[rc.RepoName]
	if !ok {
		return nil, fmt.Errorf("repository %s not found", rc.RepoName)
	}
	return svc, nil
}

func localDep(name string) config.Dependency {
	return config.Dependency{Name: name, Description: name, Kind: config.KindLocal}
}

func remoteDep(name, repo string) config.Dependency {
	return config.Dependency{
		Name:        name,
		Description: name,
		Kind:        config.KindRemote,
		Remote: &config.RemoteConfig{
			RepoName: repo,
			Branch:   "main",
			RepoLink: "https://example.com/" + repo + ".git",
		},
	}
}

func newService(name string, modes map[string][]string, deps ...config.Dependency) *config.Service {
	svc := &config.Service{
		Name:         name,
		Version:      0.1,
		RepoPath:     "/code/" + name,
		ConfigPath:   "/code/" + name + "/devservices/config.yml",
		ProgramsPath: "/code/" + name + "/devservices/programs.conf",
		Dependencies: map[string]config.Dependency{},
		Modes:        modes,
		Programs:     map[string]config.Program{},
	}
	for _, d := range deps {
		svc.Dependencies[d.Name] = d
	}
	return svc
}

func withProgram(svc *config.Service, name string) *config.Service {
	svc.Programs[name] = config.Program{Name: name, Command: "run " + name, Options: map[string]string{"command": "run " + name}}
	return svc
}

type harness struct {
	o          *Orchestrator
	store      *state.SQLiteStore
	containers *fakeContainers
	programs   *fakePrograms
	cache      *fakeCache
}

func newHarness(t *testing.T, r remotes, strict bool) *harness {
	t.Helper()
	store, err := state.Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	h := &harness{
		store:      store,
		containers: newFakeContainers(),
		programs:   newFakePrograms(),
		cache:      &fakeCache{},
	}
	h.o = New(Config{
		Store:        store,
		Containers:   h.containers,
		Programs:     h.programs,
		Resolver:     r.resolve,
		Gate:         health.NewGate(100*time.Millisecond, 5*time.Millisecond),
		Cache:        h.cache,
		Workers:      4,
		StrictHealth: strict,
	})
	return h
}

func (h *harness) record(t *testing.T, key string) state.Record {
	t.Helper()
	rec, ok, err := h.store.Lookup(context.Background(), key)
	require.NoError(t, err)
	require.True(t, ok, "no record for %s", key)
	return rec
}
