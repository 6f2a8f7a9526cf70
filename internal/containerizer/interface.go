package containerizer

import (
	"context"

	"devservices/internal/health"
)

const (
	// NetworkName is the shared network compose files attach to.
	NetworkName = "devservices"
	// Label marks every resource devservices owns.
	Label = "orchestrator=devservices"
	// MinimumComposeVersion is the oldest docker compose release supported.
	MinimumComposeVersion = "2.21.0"

	projectLabel = "com.docker.compose.project"
	serviceLabel = "com.docker.compose.service"
)

// Descriptor identifies one compose service.
type Descriptor struct {
	Project    string
	ConfigFile string
	Service    string
}

// Runtime is the container engine adapter used by the orchestrator.
type Runtime interface {
	// Start brings the service up detached and returns its container ID.
	Start(ctx context.Context, d Descriptor) (string, error)
	// Stop stops the service without removing it.
	Stop(ctx context.Context, d Descriptor, handle string) error
	// Health reports the healthcheck status of a container.
	Health(ctx context.Context, handle string) (health.Status, error)
	// Pull fetches the service image.
	Pull(ctx context.Context, d Descriptor) error
	// Logs returns the last tail lines of output.
	Logs(ctx context.Context, d Descriptor, tail int) (string, error)
	// Purge removes labelled containers, volumes and networks of a project,
	// or of every project when project is empty.
	Purge(ctx context.Context, project string) error
	// ServiceContainers lists the labelled containers of a compose service in
	// any project, running or not.
	ServiceContainers(ctx context.Context, service string) ([]string, error)
	// ContainerVolumes lists the named volumes mounted by containers.
	ContainerVolumes(ctx context.Context, containers []string) ([]string, error)
	// RemoveContainers stops and removes containers, then removes volumes.
	RemoveContainers(ctx context.Context, containers, volumes []string) error
	// CheckVersion fails when docker compose is older than MinimumComposeVersion.
	CheckVersion(ctx context.Context) error
	// EnsureNetwork creates the shared network if it does not exist.
	EnsureNetwork(ctx context.Context) error
}
