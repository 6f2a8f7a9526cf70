package config

import (
	"fmt"
	"strings"
)

// Error types reported in ConfigError.ErrorType.
const (
	ErrorTypeNotFound   = "not_found"
	ErrorTypeParse      = "parse"
	ErrorTypeValidation = "validation"
	ErrorTypeIO         = "io"
)

// ConfigError is a structured error raised while loading a service config.
// It is always fatal and is reported before anything is started.
type ConfigError struct {
	FilePath    string   `json:"filePath"`
	Service     string   `json:"service,omitempty"`
	ErrorType   string   `json:"errorType"`
	Message     string   `json:"message"`
	Details     string   `json:"details,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// Error implements the error interface
func (ce *ConfigError) Error() string {
	if ce.FilePath == "" {
		return ce.Message
	}
	return fmt.Sprintf("%s: %s", ce.FilePath, ce.Message)
}

// DetailedError returns a detailed error message with all context
func (ce *ConfigError) DetailedError() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("Configuration error: %s", ce.Message))
	if ce.FilePath != "" {
		parts = append(parts, fmt.Sprintf("  File: %s", ce.FilePath))
	}
	if ce.Service != "" {
		parts = append(parts, fmt.Sprintf("  Service: %s", ce.Service))
	}
	parts = append(parts, fmt.Sprintf("  Type: %s", ce.ErrorType))

	if ce.Details != "" {
		parts = append(parts, fmt.Sprintf("  Details: %s", ce.Details))
	}

	if len(ce.Suggestions) > 0 {
		parts = append(parts, "  Suggestions:")
		for _, suggestion := range ce.Suggestions {
			parts = append(parts, fmt.Sprintf("    - %s", suggestion))
		}
	}

	return strings.Join(parts, "\n")
}

func newNotFoundError(path, message string, suggestions ...string) *ConfigError {
	return &ConfigError{
		FilePath:    path,
		ErrorType:   ErrorTypeNotFound,
		Message:     message,
		Suggestions: suggestions,
	}
}

func newParseError(path string, err error) *ConfigError {
	return &ConfigError{
		FilePath:  path,
		ErrorType: ErrorTypeParse,
		Message:   "failed to parse config file",
		Details:   err.Error(),
		Suggestions: []string{
			"Check the YAML syntax (indentation, colons, list markers)",
			fmt.Sprintf("Ensure the file contains a %q block", serviceConfigKey),
		},
	}
}

// ValidationError describes one invalid field of a service config.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for multiple validation errors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}

	var messages []string
	for _, err := range ve {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// HasErrors returns true if there are any validation errors
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// Add adds a new validation error
func (ve *ValidationErrors) Add(field, format string, args ...interface{}) {
	*ve = append(*ve, ValidationError{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	})
}
