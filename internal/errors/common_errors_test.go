package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{
			name: "without cause",
			err:  NewAppValidationError("threshold value must be positive"),
			want: "[VALIDATION] threshold value must be positive",
		},
		{
			name: "with cause",
			err:  NewParsingError("Missing mandatory column 'E_Grid'.", errors.New("header scan")),
			want: "[PARSING] Missing mandatory column 'E_Grid'.: header scan",
		},
		{
			name: "not found",
			err:  NewNotFoundError("job 42"),
			want: "[NOT_FOUND] job 42 not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := NewExportError("write workbook", cause)
	wrapped := fmt.Errorf("hourly export: %w", err)

	assert.ErrorIs(t, wrapped, cause)

	var appErr *AppError
	assert.True(t, errors.As(wrapped, &appErr))
	assert.Equal(t, ErrTypeExport, appErr.Type)
}

func TestAppError_WithContext(t *testing.T) {
	err := &AppError{Type: ErrTypeStorage, Message: "save job"}
	err.WithContext("job_id", "abc").WithContext("attempt", 2)

	assert.Equal(t, "abc", err.Context["job_id"])
	assert.Equal(t, 2, err.Context["attempt"])
}

func TestTypeHelpers(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantType ErrorType
		wantMsg  string
	}{
		{"parsing", NewParsingError("Hourly table not found", nil), ErrTypeParsing, "Hourly table not found"},
		{"config", NewConfigError("bad port", nil), ErrTypeConfig, "bad port"},
		{"storage", NewStorageError("save", nil), ErrTypeStorage, "save"},
		{"internal", NewInternalAppError("boom", nil), ErrTypeInternal, "boom"},
		{"wrapped", fmt.Errorf("ctx: %w", NewAppValidationError("no file")), ErrTypeValidation, "no file"},
		{"plain", errors.New("plain failure"), "", "plain failure"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantType, TypeOf(tt.err))
			assert.Equal(t, tt.wantMsg, Message(tt.err))
			if tt.wantType != "" {
				assert.True(t, IsType(tt.err, tt.wantType))
			}
		})
	}
}
