// Package errors provides standardized error handling for graft's registration
// and graph-construction paths. It includes error classification, standard
// error variables, and helpers for consistent error wrapping across the system.
package errors

import (
	"errors"
	"fmt"
)

// ErrorClass represents the classification of errors for handling purposes
type ErrorClass int

const (
	// ErrorInvalid represents errors due to invalid input or configuration.
	// Raised synchronously at registration or build time, never retried.
	ErrorInvalid ErrorClass = iota
	// ErrorNotFound represents identity lookups that failed. Recoverable by
	// the caller as "not found", distinguished from an empty result.
	ErrorNotFound
	// ErrorFatal represents unrecoverable errors that abort construction
	ErrorFatal
)

// String returns the string representation of ErrorClass
func (ec ErrorClass) String() string {
	switch ec {
	case ErrorInvalid:
		return "invalid"
	case ErrorNotFound:
		return "not_found"
	case ErrorFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Standard error variables for common conditions
var (
	// Type registration errors
	ErrMissingFactory      = errors.New("implementation provides no factory")
	ErrInvalidExtension    = errors.New("invalid extension chain")
	ErrDuplicateCapability = errors.New("capability already bound for type")

	// Identity errors
	ErrTypeNotFound    = errors.New("type not registered")
	ErrClassNotFound   = errors.New("class not found")
	ErrKindNotFound    = errors.New("element kind not found")
	ErrElementNotFound = errors.New("element not found")
	ErrNotInitialized  = errors.New("instance not yet initialized")

	// Pipeline configuration errors
	ErrUnknownAlias      = errors.New("alias does not resolve")
	ErrDuplicateAlias    = errors.New("alias declared more than once")
	ErrDirectiveConflict = errors.New("conflicting structural directives")
	ErrEmptyStage        = errors.New("stage entry declares neither kind nor directive")

	// Connection errors
	ErrIncompatiblePorts = errors.New("port contracts are not compatible")
	ErrPortLinked        = errors.New("port already linked")
	ErrNoFreePort        = errors.New("no unlinked port available")
	ErrDirectionMismatch = errors.New("ports must link output to input")

	// Lifecycle errors
	ErrAlreadyStarted = errors.New("graph already started")
	ErrNotStarted     = errors.New("graph not started")
	ErrFinalized      = errors.New("object already finalized")
)

// ClassifiedError wraps an error with its classification
type ClassifiedError struct {
	Class     ErrorClass
	Err       error
	Message   string
	Component string
	Operation string
}

// Error implements the error interface
func (ce *ClassifiedError) Error() string {
	if ce.Message != "" {
		return ce.Message
	}
	return ce.Err.Error()
}

// Unwrap returns the underlying error
func (ce *ClassifiedError) Unwrap() error {
	return ce.Err
}

// IsInvalid checks if an error is a configuration or validation failure
func IsInvalid(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorInvalid
	}

	return errors.Is(err, ErrMissingFactory) ||
		errors.Is(err, ErrInvalidExtension) ||
		errors.Is(err, ErrDuplicateCapability) ||
		errors.Is(err, ErrUnknownAlias) ||
		errors.Is(err, ErrDuplicateAlias) ||
		errors.Is(err, ErrDirectiveConflict) ||
		errors.Is(err, ErrEmptyStage)
}

// IsNotFound checks if an error is a failed identity lookup
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorNotFound
	}

	return errors.Is(err, ErrTypeNotFound) ||
		errors.Is(err, ErrClassNotFound) ||
		errors.Is(err, ErrKindNotFound) ||
		errors.Is(err, ErrElementNotFound) ||
		errors.Is(err, ErrNotInitialized)
}

// IsFatal checks if an error is fatal and should abort construction
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorFatal
	}

	return errors.Is(err, ErrIncompatiblePorts) ||
		errors.Is(err, ErrPortLinked) ||
		errors.Is(err, ErrNoFreePort) ||
		errors.Is(err, ErrDirectionMismatch)
}

// Classify returns the error class for an error. Unclassified errors on
// construction paths default to fatal so nothing half-built survives them.
func Classify(err error) ErrorClass {
	if err == nil {
		return ErrorFatal
	}

	if IsInvalid(err) {
		return ErrorInvalid
	}
	if IsNotFound(err) {
		return ErrorNotFound
	}

	return ErrorFatal
}

// newClassified creates a new classified error
// This is an internal helper - use WrapInvalid(), WrapNotFound(), or WrapFatal() instead.
func newClassified(class ErrorClass, err error, component, operation, message string) *ClassifiedError {
	return &ClassifiedError{
		Class:     class,
		Err:       err,
		Message:   message,
		Component: component,
		Operation: operation,
	}
}

// Wrap creates a standardized error with context following the pattern:
// "component.method: action failed: %w"
func Wrap(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s.%s: %s failed: %w", component, method, action, err)
}

// WrapInvalid wraps an error as a configuration failure with context
func WrapInvalid(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorInvalid, wrappedErr, component, method, wrappedErr.Error())
}

// WrapNotFound wraps an error as a failed lookup with context
func WrapNotFound(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorNotFound, wrappedErr, component, method, wrappedErr.Error())
}

// WrapFatal wraps an error as fatal with context
func WrapFatal(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorFatal, wrappedErr, component, method, wrappedErr.Error())
}
