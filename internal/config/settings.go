package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"devservices/pkg/logging"

	"gopkg.in/yaml.v3"
)

const (
	userConfigDir    = ".config/devservices"
	settingsFileName = "config.yaml"

	EnvCoderoot = "DEVSERVICES_CODEROOT"
	EnvCacheDir = "DEVSERVICES_CACHE_DIR"
	EnvStateDir = "DEVSERVICES_STATE_DIR"
)

// Settings are the tool-wide options read from ~/.config/devservices/config.yaml.
type Settings struct {
	Coderoot string `yaml:"coderoot" json:"coderoot"`
	CacheDir string `yaml:"cache_dir" json:"cacheDir"`
	StateDir string `yaml:"state_dir" json:"stateDir"`
	Workers  int    `yaml:"workers" json:"workers"`
	LogLevel string `yaml:"log_level" json:"logLevel"`
	// ContainerRuntime selects the container engine; only docker is supported.
	ContainerRuntime string         `yaml:"container_runtime" json:"containerRuntime"`
	Health           HealthSettings `yaml:"health" json:"health"`
	Fetch            RetrySection   `yaml:"fetch" json:"fetch"`
	Pull             RetrySection   `yaml:"pull" json:"pull"`
}

// HealthSettings tune the health gate.
type HealthSettings struct {
	Timeout  time.Duration `yaml:"timeout" json:"timeout"`
	Interval time.Duration `yaml:"interval" json:"interval"`
	// Strict makes a health timeout abort the remaining layers.
	Strict bool `yaml:"strict" json:"strict"`
}

// RetrySection wraps a retry block, e.g. fetch.retry.
type RetrySection struct {
	Retry RetrySettings `yaml:"retry" json:"retry"`
}

// RetrySettings configure exponential backoff.
type RetrySettings struct {
	MaxAttempts int           `yaml:"max_attempts" json:"maxAttempts"`
	BaseDelay   time.Duration `yaml:"base_delay" json:"baseDelay"`
	Multiplier  float64       `yaml:"multiplier" json:"multiplier"`
}

// DependenciesCacheDir is where remote dependency checkouts live.
func (s Settings) DependenciesCacheDir() string {
	return filepath.Join(s.CacheDir, "dependencies", "v1")
}

// StateDBPath is the location of the SQLite state database.
func (s Settings) StateDBPath() string {
	return filepath.Join(s.StateDir, "state.db")
}

// SupervisorDir holds generated supervisord configs, sockets and pidfiles.
func (s Settings) SupervisorDir() string {
	return filepath.Join(s.StateDir, "supervisor")
}

// DefaultSettingsPath returns ~/.config/devservices/config.yaml.
func DefaultSettingsPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine user config directory: %w", err)
	}
	return filepath.Join(homeDir, userConfigDir, settingsFileName), nil
}

// LoadSettings reads the settings file at path, falling back to defaults when
// it does not exist, then applies environment overrides.
func LoadSettings(path string) (Settings, error) {
	settings := DefaultSettings()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &settings); err != nil {
			return Settings{}, &ConfigError{
				FilePath:  path,
				ErrorType: ErrorTypeParse,
				Message:   "failed to parse settings",
				Details:   err.Error(),
				Suggestions: []string{
					"Durations use Go syntax, e.g. 90s or 2m",
				},
			}
		}
		logging.Debug("Config", "Loaded settings from %s", path)
	case errors.Is(err, os.ErrNotExist):
		logging.Debug("Config", "No settings found at %s, using defaults", path)
	default:
		return Settings{}, fmt.Errorf("failed to read settings %s: %w", path, err)
	}

	applyEnv(&settings)

	for _, p := range []*string{&settings.Coderoot, &settings.CacheDir, &settings.StateDir} {
		expanded, err := expandHome(*p)
		if err != nil {
			return Settings{}, err
		}
		*p = expanded
	}

	if err := settings.validate(); err != nil {
		return Settings{}, &ConfigError{
			FilePath:  path,
			ErrorType: ErrorTypeValidation,
			Message:   err.Error(),
		}
	}
	return settings, nil
}

func applyEnv(s *Settings) {
	if v := os.Getenv(EnvCoderoot); v != "" {
		s.Coderoot = v
	}
	if v := os.Getenv(EnvCacheDir); v != "" {
		s.CacheDir = v
	}
	if v := os.Getenv(EnvStateDir); v != "" {
		s.StateDir = v
	}
}

func (s Settings) validate() error {
	var errs ValidationErrors
	if s.Workers < 1 {
		errs.Add("workers", "must be at least 1, got %d", s.Workers)
	}
	if s.Health.Timeout <= 0 {
		errs.Add("health.timeout", "must be positive")
	}
	if s.Health.Interval <= 0 {
		errs.Add("health.interval", "must be positive")
	}
	if s.Health.Interval > s.Health.Timeout {
		errs.Add("health.interval", "must not exceed health.timeout")
	}
	for field, r := range map[string]RetrySettings{"fetch.retry": s.Fetch.Retry, "pull.retry": s.Pull.Retry} {
		if r.MaxAttempts < 1 {
			errs.Add(field+".max_attempts", "must be at least 1")
		}
		if r.Multiplier < 1 {
			errs.Add(field+".multiplier", "must be at least 1")
		}
	}
	if errs.HasErrors() {
		return errs
	}
	return nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not expand %s: %w", path, err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
