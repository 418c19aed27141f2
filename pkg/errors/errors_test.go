package errors

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromStatus(t *testing.T) {
	tests := []struct {
		code     int
		wantType ErrorType
		wantNil  bool
	}{
		{200, "", true},
		{204, "", true},
		{401, ErrorTypeAuth, false},
		{403, ErrorTypeAuth, false},
		{404, ErrorTypeNotFound, false},
		{429, ErrorTypeRateLimit, false},
		{500, ErrorTypeServerError, false},
		{503, ErrorTypeServerError, false},
		{400, ErrorTypeUnknown, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status %d", tt.code), func(t *testing.T) {
			err := FromStatus(tt.code, "")
			if tt.wantNil {
				assert.Nil(t, err)
				return
			}
			require.NotNil(t, err)
			assert.Equal(t, tt.wantType, err.Type)
			assert.Equal(t, tt.code, err.Code)
			assert.NotEmpty(t, err.Message)
		})
	}
}

func TestWrapUnwrap(t *testing.T) {
	err := Wrap(ErrorTypeNetwork, 0, "read body", io.ErrUnexpectedEOF)
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
	assert.Contains(t, err.Error(), "network error")
	assert.Contains(t, err.Error(), "unexpected EOF")

	wrapped := fmt.Errorf("fetch first page: %w", err)
	assert.Equal(t, ErrorTypeNetwork, TypeOf(wrapped))
	assert.Equal(t, ErrorTypeUnknown, TypeOf(errors.New("plain")))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ErrorTypeNetwork))
	assert.True(t, IsRetryable(ErrorTypeRateLimit))
	assert.True(t, IsRetryable(ErrorTypeServerError))
	assert.False(t, IsRetryable(ErrorTypeAuth))
	assert.False(t, IsRetryable(ErrorTypeNotFound))
	assert.False(t, IsRetryable(ErrorTypeParsing))
	assert.False(t, IsRetryable(ErrorTypeUnknown))
}

func TestIsRetryableStatusCode(t *testing.T) {
	assert.True(t, IsRetryableStatusCode(0))
	assert.True(t, IsRetryableStatusCode(429))
	assert.True(t, IsRetryableStatusCode(502))
	assert.True(t, IsRetryableStatusCode(599))
	assert.False(t, IsRetryableStatusCode(401))
	assert.False(t, IsRetryableStatusCode(404))
	assert.False(t, IsRetryableStatusCode(400))
}
