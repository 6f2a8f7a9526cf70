package config

import "time"

const (
	DefaultWorkers        = 8
	DefaultHealthTimeout  = 2 * time.Minute
	DefaultHealthInterval = time.Second
)

// DefaultSettings returns the settings used when no settings file exists.
// Paths are relative to the home directory until expanded by LoadSettings.
func DefaultSettings() Settings {
	return Settings{
		Coderoot: "~/code",
		CacheDir: "~/.cache/devservices",
		StateDir: "~/.local/share/devservices",
		Workers:  DefaultWorkers,
		LogLevel: "info",

		ContainerRuntime: "docker",
		Health: HealthSettings{
			Timeout:  DefaultHealthTimeout,
			Interval: DefaultHealthInterval,
			Strict:   false,
		},
		Fetch: RetrySection{
			Retry: RetrySettings{MaxAttempts: 4, BaseDelay: time.Second, Multiplier: 2},
		},
		Pull: RetrySection{
			Retry: RetrySettings{MaxAttempts: 3, BaseDelay: 2 * time.Second, Multiplier: 2},
		},
	}
}
