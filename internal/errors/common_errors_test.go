package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		expected string
	}{
		{
			name:     "without cause",
			err:      NewAppError(ErrTypeSchema, "missing columns", nil),
			expected: "[SCHEMA] missing columns",
		},
		{
			name:     "with cause",
			err:      NewAppError(ErrTypeFileRead, "cannot read a.csv", fmt.Errorf("permission denied")),
			expected: "[FILE_READ] cannot read a.csv: permission denied",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := NewFileReadError("a.csv", cause)

	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "a.csv", err.Context["file"])
}

func TestDomainConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		errType  ErrorType
		contains string
	}{
		{"schema", NewSchemaError("b.csv", []string{"SOORT_PO"}), ErrTypeSchema, "SOORT_PO"},
		{"coercion", NewValueCoercionError("c.csv", "LEEFTIJD_5", 3, "abc"), ErrTypeValueCoercion, `"abc"`},
		{"join miss", NewJoinMissError("9999"), ErrTypeJoinMiss, "9999"},
		{"row budget", NewRowBudgetError("d.csv", 20, 10), ErrTypeRowBudget, "budget of 10"},
		{"validation", NewAppValidationError("min_age above max_age"), ErrTypeValidation, "min_age"},
		{"not found", NewNotFoundError("dataset"), ErrTypeNotFound, "dataset not found"},
		{"config", NewConfigError("bad port", nil), ErrTypeConfig, "bad port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.errType, tt.err.Type)
			assert.Contains(t, tt.err.Error(), tt.contains)
		})
	}
}

func TestTypeOf(t *testing.T) {
	wrapped := fmt.Errorf("normalize: %w", NewSchemaError("b.csv", []string{"SOORT_PO"}))

	errType, ok := TypeOf(wrapped)
	require.True(t, ok)
	assert.Equal(t, ErrTypeSchema, errType)
	assert.True(t, IsType(wrapped, ErrTypeSchema))
	assert.False(t, IsType(wrapped, ErrTypeValueCoercion))

	_, ok = TypeOf(errors.New("plain"))
	assert.False(t, ok)
}
