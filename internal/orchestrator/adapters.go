package orchestrator

import (
	"context"

	"devservices/internal/containerizer"
	"devservices/internal/dependency"
	"devservices/internal/health"
	"devservices/internal/state"
	"devservices/internal/supervisor"
)

// ContainerRuntime starts compose services. containerizer.DockerRuntime
// implements it.
type ContainerRuntime interface {
	Start(ctx context.Context, d containerizer.Descriptor) (string, error)
	Stop(ctx context.Context, d containerizer.Descriptor, handle string) error
	Health(ctx context.Context, handle string) (health.Status, error)
	Pull(ctx context.Context, d containerizer.Descriptor) error
	Logs(ctx context.Context, d containerizer.Descriptor, tail int) (string, error)
	Purge(ctx context.Context, project string) error
	ServiceContainers(ctx context.Context, service string) ([]string, error)
	ContainerVolumes(ctx context.Context, containers []string) ([]string, error)
	RemoveContainers(ctx context.Context, containers, volumes []string) error
}

// ProgramRunner starts supervisor programs. supervisor.Manager implements it.
type ProgramRunner interface {
	Start(ctx context.Context, spec supervisor.ProgramSpec) (string, error)
	Stop(ctx context.Context, handle string) error
	Health(ctx context.Context, handle string) (health.Status, error)
	Logs(ctx context.Context, handle string, tail int) (string, error)
	Purge(ctx context.Context, project string) error
}

// preparer is implemented by container runtimes that need checks before the
// first start.
type preparer interface {
	CheckVersion(ctx context.Context) error
	EnsureNetwork(ctx context.Context) error
}

// Cache is the remote dependency cache removed by a full purge.
type Cache interface {
	Clean() error
}

func targetFor(n *dependency.Node) state.Target {
	t := state.Target{
		Kind:         string(n.Kind),
		Project:      n.Project,
		RepoPath:     n.RepoPath,
		ConfigPath:   n.ConfigPath,
		Unit:         n.Unit,
		ProgramsPath: n.ProgramsPath,
	}
	if n.Program != nil {
		t.Program = n.Program.Name
	}
	for _, dep := range n.DependsOn {
		t.DependsOn = append(t.DependsOn, string(dep))
	}
	return t
}

func descriptor(t state.Target) containerizer.Descriptor {
	return containerizer.Descriptor{Project: t.Project, ConfigFile: t.ConfigPath, Service: t.Unit}
}

func programSpec(t state.Target) supervisor.ProgramSpec {
	return supervisor.ProgramSpec{
		Project:      t.Project,
		RepoPath:     t.RepoPath,
		ProgramsPath: t.ProgramsPath,
		Program:      t.Program,
	}
}

// runnable reports whether the target has a unit for rt. Targets without
// either a unit or a program only group their dependencies.
func runnable(t state.Target, rt state.Runtime) bool {
	if rt == state.RuntimeLocal {
		return t.Program != ""
	}
	return t.Unit != ""
}

func grouping(t state.Target) bool {
	return t.Unit == "" && t.Program == ""
}
