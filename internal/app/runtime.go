package app

import (
	"context"
	"sync"

	"devservices/internal/containerizer"
	"devservices/internal/health"
)

// newRuntime is a package variable so tests can avoid a docker daemon.
var newRuntime = containerizer.NewRuntime

// LazyRuntime creates the container runtime on first use. Commands that only
// read state never need docker to be installed.
type LazyRuntime struct {
	runtimeType string

	once sync.Once
	rt   containerizer.Runtime
	err  error
}

// NewLazyRuntime returns a runtime of runtimeType that is created on demand.
func NewLazyRuntime(runtimeType string) *LazyRuntime {
	return &LazyRuntime{runtimeType: runtimeType}
}

func (l *LazyRuntime) get(ctx context.Context) (containerizer.Runtime, error) {
	l.once.Do(func() {
		l.rt, l.err = newRuntime(ctx, l.runtimeType)
	})
	return l.rt, l.err
}

func (l *LazyRuntime) Start(ctx context.Context, d containerizer.Descriptor) (string, error) {
	rt, err := l.get(ctx)
	if err != nil {
		return "", err
	}
	return rt.Start(ctx, d)
}

func (l *LazyRuntime) Stop(ctx context.Context, d containerizer.Descriptor, handle string) error {
	rt, err := l.get(ctx)
	if err != nil {
		return err
	}
	return rt.Stop(ctx, d, handle)
}

func (l *LazyRuntime) Health(ctx context.Context, handle string) (health.Status, error) {
	rt, err := l.get(ctx)
	if err != nil {
		return health.StatusUnhealthy, err
	}
	return rt.Health(ctx, handle)
}

func (l *LazyRuntime) Pull(ctx context.Context, d containerizer.Descriptor) error {
	rt, err := l.get(ctx)
	if err != nil {
		return err
	}
	return rt.Pull(ctx, d)
}

func (l *LazyRuntime) Logs(ctx context.Context, d containerizer.Descriptor, tail int) (string, error) {
	rt, err := l.get(ctx)
	if err != nil {
		return "", err
	}
	return rt.Logs(ctx, d, tail)
}

func (l *LazyRuntime) Purge(ctx context.Context, project string) error {
	rt, err := l.get(ctx)
	if err != nil {
		return err
	}
	return rt.Purge(ctx, project)
}

func (l *LazyRuntime) ServiceContainers(ctx context.Context, service string) ([]string, error) {
	rt, err := l.get(ctx)
	if err != nil {
		return nil, err
	}
	return rt.ServiceContainers(ctx, service)
}

func (l *LazyRuntime) ContainerVolumes(ctx context.Context, containers []string) ([]string, error) {
	rt, err := l.get(ctx)
	if err != nil {
		return nil, err
	}
	return rt.ContainerVolumes(ctx, containers)
}

func (l *LazyRuntime) RemoveContainers(ctx context.Context, containers, volumes []string) error {
	rt, err := l.get(ctx)
	if err != nil {
		return err
	}
	return rt.RemoveContainers(ctx, containers, volumes)
}

func (l *LazyRuntime) CheckVersion(ctx context.Context) error {
	rt, err := l.get(ctx)
	if err != nil {
		return err
	}
	return rt.CheckVersion(ctx)
}

func (l *LazyRuntime) EnsureNetwork(ctx context.Context) error {
	rt, err := l.get(ctx)
	if err != nil {
		return err
	}
	return rt.EnsureNetwork(ctx)
}
