package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrTypeFileRead      ErrorType = "FILE_READ"
	ErrTypeSchema        ErrorType = "SCHEMA"
	ErrTypeValueCoercion ErrorType = "VALUE_COERCION"
	ErrTypeJoinMiss      ErrorType = "JOIN_MISS"
	ErrTypeRowBudget     ErrorType = "ROW_BUDGET"
	ErrTypeValidation    ErrorType = "VALIDATION"
	ErrTypeNotFound      ErrorType = "NOT_FOUND"
	ErrTypeConfig        ErrorType = "CONFIG"
)

// AppError represents an application-specific error
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap allows errors.Is and errors.As to work with AppError
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// NewFileReadError creates an error for an unreadable or unparseable file
func NewFileReadError(file string, cause error) *AppError {
	return NewAppError(ErrTypeFileRead, fmt.Sprintf("cannot read %s", file), cause).
		WithContext("file", file)
}

// NewSchemaError creates an error for a file missing mandatory columns
func NewSchemaError(file string, missing []string) *AppError {
	return NewAppError(ErrTypeSchema, fmt.Sprintf("%s is missing mandatory columns %v", file, missing), nil).
		WithContext("file", file).
		WithContext("missing", missing)
}

// NewValueCoercionError creates an error for an age band cell that is not a count
func NewValueCoercionError(file, column string, row int, token string) *AppError {
	return NewAppError(ErrTypeValueCoercion,
		fmt.Sprintf("%s: column %s row %d holds %q, not a count", file, column, row, token), nil).
		WithContext("file", file).
		WithContext("column", column).
		WithContext("row", row).
		WithContext("token", token)
}

// NewJoinMissError creates a warning for a postcode prefix absent from the coordinate table
func NewJoinMissError(prefix string) *AppError {
	return NewAppError(ErrTypeJoinMiss, fmt.Sprintf("postcode prefix %q has no coordinates", prefix), nil).
		WithContext("postcode", prefix)
}

// NewRowBudgetError creates an error for a file that would exceed the row budget
func NewRowBudgetError(file string, rows, budget int) *AppError {
	return NewAppError(ErrTypeRowBudget,
		fmt.Sprintf("%s adds %d rows, exceeding the budget of %d", file, rows, budget), nil).
		WithContext("file", file).
		WithContext("rows", rows).
		WithContext("budget", budget)
}

// NewAppValidationError creates a validation error for AppError type
func NewAppValidationError(message string) *AppError {
	return NewAppError(ErrTypeValidation, message, nil)
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string) *AppError {
	return NewAppError(ErrTypeNotFound, fmt.Sprintf("%s not found", resource), nil)
}

// NewConfigError creates a configuration error
func NewConfigError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, message, cause)
}

// TypeOf returns the ErrorType of the first AppError in err's chain.
func TypeOf(err error) (ErrorType, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type, true
	}
	return "", false
}

// IsType reports whether err carries an AppError of the given type.
func IsType(err error, errType ErrorType) bool {
	t, ok := TypeOf(err)
	return ok && t == errType
}
