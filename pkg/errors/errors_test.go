package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFormatting(t *testing.T) {
	err := NewNetwork("unexpected status", 503, nil)
	assert.Equal(t, "network error (code 503): unexpected status", err.Error())

	cause := errors.New("bad huffman code")
	err = NewValidation("decode failed", cause)
	assert.Equal(t, "validation error: decode failed: bad huffman code", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestTypeDetectionThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("image https://x/y.jpg: %w", NewClassification("no detector", nil))

	assert.True(t, IsType(wrapped, ErrorTypeClassification))
	assert.False(t, IsType(wrapped, ErrorTypeNetwork))
	assert.Equal(t, ErrorTypeClassification, TypeOf(wrapped))
	assert.Equal(t, ErrorTypeUnknown, TypeOf(errors.New("plain")))
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		errType  ErrorType
		expected bool
	}{
		{ErrorTypeNetwork, true},
		{ErrorTypeRateLimit, true},
		{ErrorTypeValidation, false},
		{ErrorTypeDuplicate, false},
		{ErrorTypeClassification, false},
		{ErrorTypeUnknown, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.errType), func(t *testing.T) {
			assert.Equal(t, tt.expected, IsRetryable(tt.errType))
		})
	}
}

func TestIsRetryableStatusCode(t *testing.T) {
	for _, code := range []int{0, 429, 500, 502, 503, 504} {
		assert.True(t, IsRetryableStatusCode(code), "code %d", code)
	}
	for _, code := range []int{200, 400, 401, 403, 404, 501} {
		assert.False(t, IsRetryableStatusCode(code), "code %d", code)
	}
}
