package utils

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/minichat-gateway/services"
)

type testChatBody struct {
	Message string `json:"message" validate:"required,max=20"`
	Kind    string `json:"kind" validate:"omitempty,oneof=user bot"`
}

func TestValidateStruct(t *testing.T) {
	t.Run("valid struct", func(t *testing.T) {
		err := ValidateStruct(&testChatBody{Message: "hello", Kind: "user"})
		assert.NoError(t, err)
	})

	t.Run("missing required field", func(t *testing.T) {
		err := ValidateStruct(&testChatBody{})
		require.Error(t, err)
		assert.True(t, IsValidationError(err))

		fields := GetValidationFields(err)
		assert.Equal(t, "message is required", fields["message"])
	})

	t.Run("too long", func(t *testing.T) {
		err := ValidateStruct(&testChatBody{Message: strings.Repeat("x", 21)})
		require.Error(t, err)
		assert.Equal(t, "message must be at most 20", GetValidationFields(err)["message"])
	})

	t.Run("not one of", func(t *testing.T) {
		err := ValidateStruct(&testChatBody{Message: "hi", Kind: "admin"})
		require.Error(t, err)
		assert.Contains(t, GetValidationFields(err)["kind"], "must be one of")
	})
}

func TestIsValidationError(t *testing.T) {
	assert.True(t, IsValidationError(&ValidationError{Message: "Validation failed"}))
	assert.False(t, IsValidationError(assert.AnError))
	assert.Nil(t, GetValidationFields(assert.AnError))
}

func TestDecodeAndValidate(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantErr   bool
		wantField string
	}{
		{name: "valid", body: `{"message":"hello"}`},
		{name: "empty body", body: ``, wantErr: true},
		{name: "malformed json", body: `{"message":`, wantErr: true},
		{name: "missing message", body: `{"kind":"user"}`, wantErr: true, wantField: "message"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(tt.body))
			var dst testChatBody
			err := DecodeAndValidate(r, &dst)
			if !tt.wantErr {
				require.NoError(t, err)
				assert.Equal(t, "hello", dst.Message)
				return
			}
			require.Error(t, err)
			assert.True(t, services.IsValidationError(err))
			if tt.wantField != "" {
				assert.Contains(t, services.GetErrorDetails(err), tt.wantField)
			}
		})
	}
}

func TestParseUUID(t *testing.T) {
	id, err := ParseUUID("6ba7b810-9dad-11d1-80b4-00c04fd430c8", "log_id")
	require.NoError(t, err)
	assert.Equal(t, "6ba7b810-9dad-11d1-80b4-00c04fd430c8", id.String())

	_, err = ParseUUID("nope", "log_id")
	require.Error(t, err)
	assert.True(t, services.IsValidationError(err))
	assert.Equal(t, "nope", services.GetErrorDetails(err)["log_id"])
}
