package resources

import (
	"errors"
	"fmt"
	"strings"

	"github.com/harrison/testflow/internal/models"
)

// InsufficientResourcesError reports a reservation that could not be
// satisfied. It names every exceeded dimension; no partial allocation is
// made when it is returned.
type InsufficientResourcesError struct {
	SessionID  string
	Dimensions []string // Names of dimensions where the request exceeds availability
	Requested  models.ResourceRequirements
	Available  models.ResourceRequirements
}

// NewInsufficientResourcesError creates an error for a failed reservation.
func NewInsufficientResourcesError(sessionID string, dimensions []string, requested, available models.ResourceRequirements) *InsufficientResourcesError {
	return &InsufficientResourcesError{
		SessionID:  sessionID,
		Dimensions: dimensions,
		Requested:  requested,
		Available:  available,
	}
}

// Error implements the error interface.
func (e *InsufficientResourcesError) Error() string {
	return fmt.Sprintf("insufficient resources for session %s: %s exceed(s) available capacity",
		e.SessionID, strings.Join(e.Dimensions, ", "))
}

// IsInsufficientResources checks if the error is or wraps an
// InsufficientResourcesError.
func IsInsufficientResources(err error) bool {
	var ire *InsufficientResourcesError
	return errors.As(err, &ire)
}
