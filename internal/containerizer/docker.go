package containerizer

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"devservices/internal/health"
	"devservices/pkg/logging"

	"github.com/Masterminds/semver/v3"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/apimachinery/pkg/util/sets"
)

const dockerSubsystem = "Docker"

const healthFormat = "{{.State.Status}} {{if .State.Health}}{{.State.Health.Status}}{{else}}unknown{{end}}"

// DockerRuntime implements Runtime using the docker CLI and its compose plugin.
type DockerRuntime struct{}

// execCommandContext is a variable to allow mocking in tests
var execCommandContext = exec.CommandContext

// NewDockerRuntime checks that docker is installed and the daemon is reachable.
func NewDockerRuntime(ctx context.Context) (*DockerRuntime, error) {
	if _, err := exec.LookPath("docker"); err != nil {
		return nil, fmt.Errorf("docker command not found in PATH: %w", err)
	}

	cmd := execCommandContext(ctx, "docker", "info")
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("docker daemon not accessible: %w", err)
	}

	return &DockerRuntime{}, nil
}

func composeArgs(d Descriptor, args ...string) []string {
	base := []string{"compose", "-p", d.Project, "-f", d.ConfigFile}
	return append(base, args...)
}

func (r *DockerRuntime) run(ctx context.Context, args ...string) (string, error) {
	logging.Debug(dockerSubsystem, "Running: docker %s", strings.Join(args, " "))
	cmd := execCommandContext(ctx, "docker", args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return string(output), fmt.Errorf("docker %s: %w\nOutput: %s", args[0], err, strings.TrimSpace(string(output)))
	}
	return string(output), nil
}

// Start brings the compose service up and returns its container ID.
func (r *DockerRuntime) Start(ctx context.Context, d Descriptor) (string, error) {
	logging.Info(dockerSubsystem, "Starting %s in project %s", d.Service, d.Project)
	if _, err := r.run(ctx, composeArgs(d, "up", "-d", d.Service)...); err != nil {
		return "", fmt.Errorf("failed to start %s: %w", d.Service, err)
	}

	out, err := r.run(ctx, composeArgs(d, "ps", "-q", d.Service)...)
	if err != nil {
		return "", fmt.Errorf("failed to find container for %s: %w", d.Service, err)
	}
	id := strings.TrimSpace(out)
	if id == "" {
		return "", fmt.Errorf("no container found for %s after start", d.Service)
	}
	if i := strings.IndexByte(id, '\n'); i >= 0 {
		id = id[:i]
	}
	if len(id) > 12 {
		id = id[:12]
	}
	logging.Debug(dockerSubsystem, "Service %s running as container %s", d.Service, id)
	return id, nil
}

// Stop stops the compose service. Containers are kept.
func (r *DockerRuntime) Stop(ctx context.Context, d Descriptor, handle string) error {
	logging.Info(dockerSubsystem, "Stopping %s in project %s", d.Service, d.Project)
	if _, err := r.run(ctx, composeArgs(d, "stop", d.Service)...); err != nil {
		return fmt.Errorf("failed to stop %s: %w", d.Service, err)
	}
	return nil
}

// Health inspects the container state and its healthcheck.
func (r *DockerRuntime) Health(ctx context.Context, handle string) (health.Status, error) {
	out, err := r.run(ctx, "inspect", "-f", healthFormat, handle)
	if err != nil {
		return health.StatusUnhealthy, err
	}
	return parseHealth(out), nil
}

func parseHealth(out string) health.Status {
	fields := strings.Fields(out)
	if len(fields) == 0 {
		return health.StatusUnknown
	}
	switch fields[0] {
	case "running":
	case "created", "restarting":
		return health.StatusStarting
	case "exited", "paused", "removing":
		return health.StatusStopped
	default:
		return health.StatusUnhealthy
	}
	if len(fields) < 2 {
		return health.StatusUnknown
	}
	switch fields[1] {
	case "healthy":
		return health.StatusHealthy
	case "starting":
		return health.StatusStarting
	case "unhealthy":
		return health.StatusUnhealthy
	default:
		return health.StatusUnknown
	}
}

// Pull fetches the image of the compose service.
func (r *DockerRuntime) Pull(ctx context.Context, d Descriptor) error {
	logging.Info(dockerSubsystem, "Pulling image for %s", d.Service)
	if _, err := r.run(ctx, composeArgs(d, "pull", d.Service)...); err != nil {
		return fmt.Errorf("failed to pull %s: %w", d.Service, err)
	}
	return nil
}

// Logs returns the last tail lines of the service output.
func (r *DockerRuntime) Logs(ctx context.Context, d Descriptor, tail int) (string, error) {
	args := composeArgs(d, "logs", "--no-color")
	if tail > 0 {
		args = append(args, "--tail", strconv.Itoa(tail))
	}
	args = append(args, d.Service)
	out, err := r.run(ctx, args...)
	if err != nil {
		return "", fmt.Errorf("failed to get logs for %s: %w", d.Service, err)
	}
	return out, nil
}

func labelFilters(project string) []string {
	filters := []string{"--filter", "label=" + Label}
	if project != "" {
		filters = append(filters, "--filter", "label="+projectLabel+"="+project)
	}
	return filters
}

func (r *DockerRuntime) list(ctx context.Context, args ...string) ([]string, error) {
	out, err := r.run(ctx, args...)
	if err != nil {
		return nil, err
	}
	return strings.Fields(out), nil
}

// Purge removes containers, volumes and networks created by devservices.
// Every step is attempted and failures are aggregated.
func (r *DockerRuntime) Purge(ctx context.Context, project string) error {
	var errs []error
	filters := labelFilters(project)

	containers, err := r.list(ctx, append([]string{"ps", "-aq"}, filters...)...)
	if err != nil {
		errs = append(errs, err)
	}
	if len(containers) > 0 {
		logging.Info(dockerSubsystem, "Removing %d containers", len(containers))
		if _, err := r.run(ctx, append([]string{"stop"}, containers...)...); err != nil {
			errs = append(errs, err)
		}
		if _, err := r.run(ctx, append([]string{"rm", "-f", "-v"}, containers...)...); err != nil {
			errs = append(errs, err)
		}
	}

	volumes, err := r.list(ctx, append([]string{"volume", "ls", "-q"}, filters...)...)
	if err != nil {
		errs = append(errs, err)
	}
	if len(volumes) > 0 {
		logging.Info(dockerSubsystem, "Removing %d volumes", len(volumes))
		if _, err := r.run(ctx, append([]string{"volume", "rm", "-f"}, volumes...)...); err != nil {
			errs = append(errs, err)
		}
	}

	networks, err := r.list(ctx, append([]string{"network", "ls", "-q"}, filters...)...)
	if err != nil {
		errs = append(errs, err)
	}
	if len(networks) > 0 {
		logging.Info(dockerSubsystem, "Removing %d networks", len(networks))
		if _, err := r.run(ctx, append([]string{"network", "rm"}, networks...)...); err != nil {
			errs = append(errs, err)
		}
	}

	return utilerrors.NewAggregate(errs)
}

// ServiceContainers lists the containers devservices created for a compose
// service, across projects.
func (r *DockerRuntime) ServiceContainers(ctx context.Context, service string) ([]string, error) {
	return r.list(ctx, "ps", "-aq", "--filter", "label="+Label, "--filter", "label="+serviceLabel+"="+service)
}

const volumesFormat = `{{range .Mounts}}{{if eq .Type "volume"}}{{.Name}} {{end}}{{end}}`

// ContainerVolumes lists the named volumes mounted by containers, sorted and
// without duplicates.
func (r *DockerRuntime) ContainerVolumes(ctx context.Context, containers []string) ([]string, error) {
	if len(containers) == 0 {
		return nil, nil
	}
	names, err := r.list(ctx, append([]string{"inspect", "--format", volumesFormat}, containers...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect volumes: %w", err)
	}
	return sets.List(sets.New(names...)), nil
}

// RemoveContainers stops and removes containers and then their volumes.
func (r *DockerRuntime) RemoveContainers(ctx context.Context, containers, volumes []string) error {
	if len(containers) > 0 {
		logging.Info(dockerSubsystem, "Removing containers %s", strings.Join(containers, ", "))
		if _, err := r.run(ctx, append([]string{"stop"}, containers...)...); err != nil {
			return fmt.Errorf("failed to stop containers: %w", err)
		}
		if _, err := r.run(ctx, append([]string{"rm", "-f"}, containers...)...); err != nil {
			return fmt.Errorf("failed to remove containers: %w", err)
		}
	}
	if len(volumes) > 0 {
		logging.Info(dockerSubsystem, "Removing volumes %s", strings.Join(volumes, ", "))
		if _, err := r.run(ctx, append([]string{"volume", "rm"}, volumes...)...); err != nil {
			return fmt.Errorf("failed to remove volumes: %w", err)
		}
	}
	return nil
}

// CheckVersion verifies the compose plugin is recent enough.
func (r *DockerRuntime) CheckVersion(ctx context.Context) error {
	out, err := r.run(ctx, "compose", "version", "--short")
	if err != nil {
		return fmt.Errorf("docker compose is not installed: %w", err)
	}
	return checkComposeVersion(strings.TrimSpace(out))
}

func checkComposeVersion(raw string) error {
	v, err := semver.NewVersion(raw)
	if err != nil {
		return fmt.Errorf("unable to parse docker compose version %q: %w", raw, err)
	}
	minimum := semver.MustParse(MinimumComposeVersion)
	if v.LessThan(minimum) {
		return fmt.Errorf("docker compose %s is too old, %s or newer is required", v, minimum)
	}
	return nil
}

// EnsureNetwork creates the shared devservices network when missing.
func (r *DockerRuntime) EnsureNetwork(ctx context.Context) error {
	networks, err := r.list(ctx, "network", "ls", "-q", "--filter", "name=^"+NetworkName+"$")
	if err != nil {
		return fmt.Errorf("failed to list networks: %w", err)
	}
	if len(networks) > 0 {
		return nil
	}
	logging.Info(dockerSubsystem, "Creating network %s", NetworkName)
	if _, err := r.run(ctx, "network", "create", "--label", Label, NetworkName); err != nil {
		return fmt.Errorf("failed to create network %s: %w", NetworkName, err)
	}
	return nil
}
