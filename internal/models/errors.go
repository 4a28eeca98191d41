package models

import (
	"errors"
	"fmt"
)

// ConfigurationError reports an invalid suite configuration, such as a
// dependency on an unknown suite id. It is recorded into session errors
// rather than aborting the orchestrator.
type ConfigurationError struct {
	SuiteID string // Suite the problem was found on (optional)
	Message string
}

// NewConfigurationError creates a ConfigurationError for the given suite.
func NewConfigurationError(suiteID, message string) *ConfigurationError {
	return &ConfigurationError{SuiteID: suiteID, Message: message}
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	if e.SuiteID == "" {
		return fmt.Sprintf("configuration error: %s", e.Message)
	}
	return fmt.Sprintf("configuration error: suite %s: %s", e.SuiteID, e.Message)
}

// IsConfigurationError checks if the error is or wraps a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}
