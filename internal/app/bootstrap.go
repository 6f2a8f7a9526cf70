package app

import (
	"fmt"
	"os"

	"devservices/internal/config"
	"devservices/pkg/logging"
)

// Application holds the settings and services of one devservices run.
type Application struct {
	config   *Config
	settings config.Settings
	services *Services
}

// NewApplication loads settings, configures logging and initializes the
// services. Settings errors are returned as *config.ConfigError.
func NewApplication(cfg *Config) (*Application, error) {
	settingsPath := cfg.SettingsPath
	if settingsPath == "" {
		p, err := config.DefaultSettingsPath()
		if err != nil {
			return nil, err
		}
		settingsPath = p
	}

	// Settings may log while loading, so logging starts at the flag level.
	initLogging(cfg, logging.LevelInfo)

	settings, err := config.LoadSettings(settingsPath)
	if err != nil {
		return nil, err
	}

	level, err := logging.ParseLevel(settings.LogLevel)
	if err != nil {
		logging.Warn("Bootstrap", "Ignoring log_level: %v", err)
	}
	initLogging(cfg, level)

	services, err := InitializeServices(settings)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to initialize services")
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	return &Application{
		config:   cfg,
		settings: settings,
		services: services,
	}, nil
}

func initLogging(cfg *Config, level logging.LogLevel) {
	if cfg.Debug {
		level = logging.LevelDebug
	}
	logging.InitForCLI(level, cfg.LogOutput)
}

// Settings returns the loaded tool settings.
func (a *Application) Settings() config.Settings {
	return a.settings
}

// Services returns the initialized services.
func (a *Application) Services() *Services {
	return a.services
}

// ResolveService returns the named service from the coderoot, or the service
// of the repository containing the working directory when name is empty.
func (a *Application) ResolveService(name string) (*config.Service, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to determine working directory: %w", err)
	}
	return config.ResolveService(a.settings.Coderoot, name, wd)
}

// Close releases the state database.
func (a *Application) Close() error {
	return a.services.Close()
}

// ListServices returns the services found in the coderoot.
func (a *Application) ListServices() ([]*config.Service, error) {
	return config.ListServices(a.settings.Coderoot)
}
