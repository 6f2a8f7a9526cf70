package app

import (
	"fmt"
	"os"

	"devservices/internal/config"
	"devservices/internal/fetcher"
	"devservices/internal/health"
	"devservices/internal/orchestrator"
	"devservices/internal/retry"
	"devservices/internal/state"
	"devservices/internal/supervisor"
)

// Services holds the components shared by every command.
type Services struct {
	Store        *state.SQLiteStore
	Fetcher      *fetcher.Fetcher
	Programs     *supervisor.Manager
	Containers   *LazyRuntime
	Orchestrator *orchestrator.Orchestrator
}

// InitializeServices opens the state store and builds the orchestrator from
// settings. The container runtime is not contacted until it is needed.
func InitializeServices(settings config.Settings) (*Services, error) {
	for _, dir := range []string{settings.StateDir, settings.SupervisorDir(), settings.DependenciesCacheDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	store, err := state.Open(settings.StateDBPath())
	if err != nil {
		return nil, err
	}

	remote := fetcher.New(settings.DependenciesCacheDir(), retryPolicy(settings.Fetch.Retry))
	programs := supervisor.NewManager(settings.SupervisorDir())
	containers := NewLazyRuntime(settings.ContainerRuntime)

	orch := orchestrator.New(orchestrator.Config{
		Store:        store,
		Containers:   containers,
		Programs:     programs,
		Resolver:     remote.Resolve,
		Gate:         health.NewGate(settings.Health.Timeout, settings.Health.Interval),
		Cache:        remote,
		Workers:      settings.Workers,
		StrictHealth: settings.Health.Strict,
		PullPolicy:   retryPolicy(settings.Pull.Retry),
	})

	return &Services{
		Store:        store,
		Fetcher:      remote,
		Programs:     programs,
		Containers:   containers,
		Orchestrator: orch,
	}, nil
}

func retryPolicy(r config.RetrySettings) retry.Policy {
	return retry.Policy{
		MaxAttempts: r.MaxAttempts,
		BaseDelay:   r.BaseDelay,
		Multiplier:  r.Multiplier,
	}
}

// Close releases the state database.
func (s *Services) Close() error {
	return s.Store.Close()
}
