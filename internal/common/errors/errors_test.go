package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	std := NewCredentialsInvalidError("hubspot")
	wrapped := fmt.Errorf("connect: %w", std)

	got := Normalize(wrapped)
	assert.Same(t, std, got)

	foreign := Normalize(fmt.Errorf("boom"))
	assert.Equal(t, ErrCodeInternal, foreign.Code)
	assert.Equal(t, "boom", foreign.Details)
	assert.False(t, foreign.Retryable)
}

func TestConvertToBPMNError(t *testing.T) {
	tests := []struct {
		name            string
		err             *StandardError
		expectedRetries int
	}{
		{"retryable database error", NewDatabaseInsertFailedError(fmt.Errorf("conn reset")), 3},
		{"timeout", NewCRMConnectionTimeoutError("zoho", fmt.Errorf("deadline")), 2},
		{"business error", NewProviderUnsupportedError("dynamics"), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bpmn := ConvertToBPMNError(tt.err)
			assert.Equal(t, string(tt.err.Code), bpmn.Code)
			assert.Equal(t, tt.expectedRetries, bpmn.Retries)

			vars := bpmn.ToErrorVariables()
			assert.Equal(t, string(tt.err.Code), vars["originalErrorCode"])
			assert.Equal(t, tt.err.Message, vars["errorMessage"])
		})
	}
}

func TestConvertToBPMNError_NonRetryableOverride(t *testing.T) {
	err := NewAuditFailedError(fmt.Errorf("bad input"))
	err.Retryable = false

	assert.Zero(t, ConvertToBPMNError(err).Retries)
}

func TestHTTPStatus(t *testing.T) {
	tests := map[ErrorCode]int{
		ErrCodeProviderUnsupported:  http.StatusBadRequest,
		ErrCodeCredentialsMissing:   http.StatusBadRequest,
		ErrCodeCredentialsInvalid:   http.StatusUnauthorized,
		ErrCodeUnauthorized:         http.StatusUnauthorized,
		ErrCodePayloadTooLarge:      http.StatusRequestEntityTooLarge,
		ErrCodeReportNotFound:       http.StatusNotFound,
		ErrCodeCRMConnectionTimeout: http.StatusGatewayTimeout,
		ErrCodeSearchUnavailable:    http.StatusServiceUnavailable,
		ErrCodeInternal:             http.StatusInternalServerError,
	}

	for code, status := range tests {
		assert.Equal(t, status, HTTPStatus(code), code)
	}
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "CRM", GetErrorCategory(ErrCodeCredentialsInvalid))
	assert.Equal(t, "DATABASE", GetErrorCategory(ErrCodeQueryExecutionFailed))
	assert.Equal(t, "SEARCH", GetErrorCategory(ErrCodeSearchQueryFailed))
	assert.Equal(t, "AUTH", GetErrorCategory(ErrCodeUnauthorized))
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodePayloadTooLarge))
	assert.Equal(t, "OTHER", GetErrorCategory(ErrCodeInternal))
}

func TestErrorID(t *testing.T) {
	a := ErrorID("http", "/leaks", 401, ErrCodeUnauthorized)
	b := ErrorID("http", "/leaks", 401, ErrCodeUnauthorized)
	c := ErrorID("http", "/actions", 401, ErrCodeUnauthorized)

	require.Regexp(t, `^E_[0-9a-z]+$`, a)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, ErrorID("timeout", "/x", 0, ""), ErrorID("timeout", "/x", 0, ""))
}

func TestStableHash_KnownValues(t *testing.T) {
	// djb2 with xor, base36 encoded
	assert.Equal(t, "45h", stableHash(""))
	assert.Equal(t, "3t1g", stableHash("a"))
}
