package dependency

import (
	"fmt"
	"strings"
)

// GraphErrorKind classifies graph construction failures.
type GraphErrorKind string

const (
	ErrCycle             GraphErrorKind = "cycle"
	ErrMissingDependency GraphErrorKind = "missing_dependency"
	ErrModeNotFound      GraphErrorKind = "mode_not_found"
	ErrUnreachable       GraphErrorKind = "unreachable"
)

// GraphError is returned when a graph cannot be built or projected. It is
// always raised before anything is started.
type GraphError struct {
	Kind       GraphErrorKind
	Service    string
	Dependency string
	Mode       string
	// Path holds the cycle, first node repeated at the end.
	Path []NodeID
	// AvailableModes is sorted.
	AvailableModes []string
	Err            error
}

func (e *GraphError) Error() string {
	switch e.Kind {
	case ErrCycle:
		parts := make([]string, len(e.Path))
		for i, id := range e.Path {
			parts[i] = string(id)
		}
		return fmt.Sprintf("dependency cycle detected: %s", strings.Join(parts, " -> "))
	case ErrMissingDependency:
		return fmt.Sprintf("dependency %q is not declared by %s", e.Dependency, e.Service)
	case ErrModeNotFound:
		return fmt.Sprintf("mode %q not found for %s, available modes: %s",
			e.Mode, e.Service, strings.Join(e.AvailableModes, ", "))
	case ErrUnreachable:
		return fmt.Sprintf("remote dependency %q of %s is unreachable: %v", e.Dependency, e.Service, e.Err)
	default:
		return fmt.Sprintf("dependency graph error for %s: %v", e.Service, e.Err)
	}
}

func (e *GraphError) Unwrap() error {
	return e.Err
}
