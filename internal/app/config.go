package app

import "io"

// Config holds the application configuration
type Config struct {
	// Debug raises the log level to debug regardless of the settings file.
	Debug bool

	// SettingsPath overrides ~/.config/devservices/config.yaml.
	SettingsPath string

	// LogOutput receives log lines; stderr when nil.
	LogOutput io.Writer
}

// NewConfig creates a new application configuration
func NewConfig(debug bool, settingsPath string) *Config {
	return &Config{
		Debug:        debug,
		SettingsPath: settingsPath,
	}
}
