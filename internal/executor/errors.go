package executor

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrValidationFailed indicates a glue validation command failed.
	ErrValidationFailed = errors.New("validation command failed")

	// ErrCommandTimeout indicates an external command hit its timeout.
	ErrCommandTimeout = errors.New("command timed out")

	// ErrDependenciesIncomplete indicates a required batch has not completed.
	ErrDependenciesIncomplete = errors.New("dependencies incomplete")

	// ErrManualReview indicates a resolution that must not be written.
	ErrManualReview = errors.New("manual review required")
)

// Phase names the step of an intersection run where an error occurred.
type Phase string

const (
	PhaseDependencies Phase = "dependencies"
	PhaseBackup       Phase = "backup"
	PhaseResolve      Phase = "resolve"
	PhaseInject       Phase = "inject"
	PhaseWrite        Phase = "write"
	PhaseValidate     Phase = "validate"
)

// IntersectionError represents a failure while applying one intersection.
type IntersectionError struct {
	IntersectionID string    // Intersection that failed
	Phase          Phase     // Step that failed
	File           string    // File involved (optional)
	Err            error     // Underlying error
	Timestamp      time.Time // When the error occurred
}

// NewIntersectionError creates an IntersectionError with the current timestamp.
func NewIntersectionError(id string, phase Phase, file string, err error) *IntersectionError {
	return &IntersectionError{
		IntersectionID: id,
		Phase:          phase,
		File:           file,
		Err:            err,
		Timestamp:      time.Now(),
	}
}

// Error implements the error interface for IntersectionError.
func (e *IntersectionError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("intersection %s: %s", e.IntersectionID, e.Phase))
	if e.File != "" {
		sb.WriteString(fmt.Sprintf(" %s", e.File))
	}
	if e.Err != nil {
		sb.WriteString(fmt.Sprintf(": %v", e.Err))
	}
	return sb.String()
}

// Unwrap returns the underlying error for error wrapping support.
func (e *IntersectionError) Unwrap() error {
	return e.Err
}

// IsIntersectionError checks if the error is or wraps an IntersectionError.
func IsIntersectionError(err error) bool {
	if err == nil {
		return false
	}
	var ie *IntersectionError
	return errors.As(err, &ie)
}

// IsTimeoutError checks if the error is or wraps ErrCommandTimeout.
func IsTimeoutError(err error) bool {
	return err != nil && errors.Is(err, ErrCommandTimeout)
}
