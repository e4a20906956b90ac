package common

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrDatabase     = errors.New("database error")
)

// Pipeline error taxonomy.
var (
	// ErrUnsupportedInput is fatal for the document and never retried.
	ErrUnsupportedInput = errors.New("unsupported input")
	// ErrCapabilityUnavailable covers network, quota and timeout failures of an external capability.
	ErrCapabilityUnavailable = errors.New("capability unavailable")
	// ErrSchemaViolation means the capability replied but the shape breaks the contract.
	ErrSchemaViolation = errors.New("schema violation")
	// ErrDataIntegrity is raised locally, without any external call.
	ErrDataIntegrity = errors.New("data integrity")
)

// CapabilityError wraps a failure of an external capability (structuring, judging, detection).
type CapabilityError struct {
	Capability string
	Retryable  bool
	Err        error
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("%s: %v", e.Capability, e.Err)
}

func (e *CapabilityError) Unwrap() error {
	return e.Err
}

// NewCapabilityError marks err as a retryable failure of the named capability.
// err should wrap ErrCapabilityUnavailable or ErrSchemaViolation.
func NewCapabilityError(capability string, err error) *CapabilityError {
	return &CapabilityError{Capability: capability, Retryable: true, Err: err}
}

// IsRetryable reports whether err came from a capability that may succeed on retry.
func IsRetryable(err error) bool {
	var ce *CapabilityError
	return errors.As(err, &ce) && ce.Retryable
}

// UnsupportedInputError builds a non-retryable unsupported-input error with an actionable message.
func UnsupportedInputError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrUnsupportedInput, fmt.Sprintf(format, args...))
}

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// gRPC error helpers
func InvalidArgumentError(message string) error {
	return status.Error(codes.InvalidArgument, message)
}

func InternalError(message string) error {
	return status.Error(codes.Internal, message)
}

func InternalErrorf(format string, args ...interface{}) error {
	return InternalError(fmt.Sprintf(format, args...))
}

// ToStatus maps a domain error onto a gRPC status error.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, ErrUnsupportedInput):
		return status.Error(codes.FailedPrecondition, err.Error())
	case IsRetryable(err):
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
