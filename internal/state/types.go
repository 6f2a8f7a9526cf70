package state

import (
	"context"
	"time"
)

// Status is the lifecycle state of a dependency.
type Status string

const (
	StatusNotRunning Status = "not_running"
	StatusStarting   Status = "starting"
	StatusHealthy    Status = "healthy"
	StatusUnhealthy  Status = "unhealthy"
	StatusStopping   Status = "stopping"
)

// Active reports whether the dependency is (or may be) running.
func (s Status) Active() bool {
	switch s {
	case StatusStarting, StatusHealthy, StatusUnhealthy, StatusStopping:
		return true
	case StatusNotRunning:
		return false
	default:
		return false
	}
}

// Runtime is how a dependency is executed.
type Runtime string

const (
	RuntimeContainer Runtime = "container"
	RuntimeLocal     Runtime = "local"
)

// ParseRuntime accepts "container" (or "containerized") and "local".
func ParseRuntime(s string) (Runtime, bool) {
	switch s {
	case "container", "containerized":
		return RuntimeContainer, true
	case "local":
		return RuntimeLocal, true
	default:
		return "", false
	}
}

// Opposite returns the other runtime.
func (r Runtime) Opposite() Runtime {
	if r == RuntimeLocal {
		return RuntimeContainer
	}
	return RuntimeLocal
}

// Target describes how to reach a started unit without reloading configs,
// so teardown keeps working when a remote repository is unreachable.
type Target struct {
	Kind         string   `json:"kind"`
	Project      string   `json:"project"`
	RepoPath     string   `json:"repoPath,omitempty"`
	ConfigPath   string   `json:"configPath,omitempty"`
	Unit         string   `json:"unit,omitempty"`
	ProgramsPath string   `json:"programsPath,omitempty"`
	Program      string   `json:"program,omitempty"`
	DependsOn    []string `json:"dependsOn,omitempty"`
}

// Record is the persisted state of one dependency. Service and Modes are
// filled when the record is read on behalf of a service.
type Record struct {
	Service   string    `json:"service,omitempty" yaml:"service,omitempty"`
	Key       string    `json:"key" yaml:"key"`
	Name      string    `json:"name" yaml:"name"`
	Status    Status    `json:"status" yaml:"status"`
	Runtime   Runtime   `json:"runtime" yaml:"runtime"`
	Handle    string    `json:"handle,omitempty" yaml:"handle,omitempty"`
	Target    Target    `json:"target" yaml:"target"`
	Modes     []string  `json:"modes,omitempty" yaml:"modes,omitempty"`
	Referrers int       `json:"referrers" yaml:"referrers"`
	UpdatedAt time.Time `json:"updatedAt" yaml:"updatedAt"`
}

// Claim states that a service needs a dependency for one of its modes.
type Claim struct {
	Service string
	Key     string
	Mode    string
}

// StartingClaim marks a dependency claimed by an in-flight up.
type StartingClaim struct {
	RunID     string
	PID       int
	Key       string
	StartedAt time.Time
}

// Store is the runtime state store used by the orchestrator. All methods are
// safe for concurrent use; writes to one key are expected from one goroutine
// at a time.
type Store interface {
	// Get returns the record of key as seen by service (with the service's
	// modes). ok is false when there is no record.
	Get(ctx context.Context, service, key string) (rec Record, ok bool, err error)
	// Lookup returns the record of key regardless of claims.
	Lookup(ctx context.Context, key string) (rec Record, ok bool, err error)
	// Upsert writes status, runtime, handle, target and name of rec.Key. Referrers
	// are never changed by Upsert.
	Upsert(ctx context.Context, rec Record) error
	// Delete removes the record of key.
	Delete(ctx context.Context, key string) error
	// List returns the records claimed by service sorted by name, or every
	// record when service is empty.
	List(ctx context.Context, service string) ([]Record, error)

	// Claim records that service needs key for each of modes and returns the
	// resulting referrer count. Existing claims are not counted twice.
	Claim(ctx context.Context, service, key, name string, modes []string) (int, error)
	// Release drops the claims of service on key for modes and returns the
	// resulting referrer count.
	Release(ctx context.Context, service, key string, modes []string) (int, error)
	// Claims lists the claims of service, or all claims when empty.
	Claims(ctx context.Context, service string) ([]Claim, error)
	// ActiveModes returns the sorted modes service holds claims for.
	ActiveModes(ctx context.Context, service string) ([]string, error)
	// Clear drops every claim of service and the records left without
	// referrers. An empty service clears everything, runtime preferences
	// included.
	Clear(ctx context.Context, service string) error

	// Runtime returns the runtime preference for key.
	Runtime(ctx context.Context, key string) (Runtime, bool, error)
	// SetRuntime persists the runtime preference for key.
	SetRuntime(ctx context.Context, key string, rt Runtime) error

	// MarkStarting records keys as claimed by run runID of process pid.
	MarkStarting(ctx context.Context, runID string, pid int, keys []string) error
	// FinishStarting removes the claims of runID.
	FinishStarting(ctx context.Context, runID string) error
	// StartingClaims lists every in-flight claim.
	StartingClaims(ctx context.Context) ([]StartingClaim, error)

	Close() error
}
