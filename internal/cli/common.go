package cli

import (
	"errors"
	"fmt"

	"devservices/internal/config"
)

// FormatError formats an error message for CLI output. Configuration errors
// include their details and suggestions.
func FormatError(err error) string {
	var cfgErr *config.ConfigError
	if errors.As(err, &cfgErr) {
		return cfgErr.DetailedError()
	}
	return fmt.Sprintf("Error: %v", err)
}

// FormatSuccess formats a success message for CLI output
func FormatSuccess(msg string) string {
	return fmt.Sprintf("✓ %s", msg)
}

// FormatWarning formats a warning message for CLI output
func FormatWarning(msg string) string {
	return fmt.Sprintf("⚠ %s", msg)
}
