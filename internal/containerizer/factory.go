package containerizer

import (
	"context"
	"fmt"
	"strings"
)

// RuntimeType defines the type of container runtime
type RuntimeType string

const (
	RuntimeTypeDocker RuntimeType = "docker"
	RuntimeTypePodman RuntimeType = "podman"
)

// NewRuntime creates a container runtime of the given type. Only docker is
// supported; podman lacks a compatible compose plugin.
func NewRuntime(ctx context.Context, runtimeType string) (Runtime, error) {
	rt := RuntimeType(strings.ToLower(runtimeType))

	switch rt {
	case RuntimeTypeDocker, "":
		return NewDockerRuntime(ctx)
	case RuntimeTypePodman:
		return nil, fmt.Errorf("podman runtime is not supported")
	default:
		return nil, fmt.Errorf("unsupported container runtime: %s", runtimeType)
	}
}
