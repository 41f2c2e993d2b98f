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

// Error codes
const (
	CodeParse             = "PARSE_ERROR"
	CodeExtractionService = "EXTRACTION_SERVICE"
	CodeConfig            = "CONFIG_ERROR"
	CodeDatabase          = "DB_ERROR"
)

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrInternal     = errors.New("internal error")
	ErrDatabase     = errors.New("database error")
	ErrValidation   = errors.New("validation failed")

	// ErrParse marks a document that cannot be decoded or structured at all.
	ErrParse = errors.New("document could not be parsed")
	// ErrExtractionService marks an LLM timeout, transport failure or schema-invalid payload.
	ErrExtractionService = errors.New("extraction service failure")
	// ErrAmbiguous marks sections or items that could not be located; never fatal.
	ErrAmbiguous = errors.New("extraction ambiguity")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewParseError wraps cause so that errors.Is(err, ErrParse) holds.
func NewParseError(message string, cause error) *AppError {
	if cause == nil {
		cause = ErrParse
	} else if !errors.Is(cause, ErrParse) {
		cause = fmt.Errorf("%w: %w", ErrParse, cause)
	}
	return NewAppError(CodeParse, message, cause)
}

// NewExtractionServiceError wraps cause so that errors.Is(err, ErrExtractionService) holds.
func NewExtractionServiceError(message string, cause error) *AppError {
	if cause == nil {
		cause = ErrExtractionService
	} else if !errors.Is(cause, ErrExtractionService) {
		cause = fmt.Errorf("%w: %w", ErrExtractionService, cause)
	}
	return NewAppError(CodeExtractionService, message, cause)
}

// IsParseError reports whether err is fatal for the document it came from.
func IsParseError(err error) bool {
	return errors.Is(err, ErrParse)
}

// gRPC error helpers
func InvalidArgumentError(message string) error {
	return status.Error(codes.InvalidArgument, message)
}

func NotFoundError(message string) error {
	return status.Error(codes.NotFound, message)
}

func InternalError(message string) error {
	return status.Error(codes.Internal, message)
}

// ToStatus maps domain errors onto gRPC status codes.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrParse), errors.Is(err, ErrInvalidInput), IsValidationError(err):
		return InvalidArgumentError(err.Error())
	case errors.Is(err, ErrNotFound):
		return NotFoundError(err.Error())
	default:
		return InternalError(err.Error())
	}
}
