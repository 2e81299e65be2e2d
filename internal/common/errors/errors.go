// Package errors provides standardized error handling for the HTTP API and the
// Zeebe job workers.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeProviderUnsupported  ErrorCode = "CRM_PROVIDER_UNSUPPORTED"
	ErrCodeCredentialsMissing   ErrorCode = "CRM_CREDENTIALS_MISSING"
	ErrCodeCredentialsInvalid   ErrorCode = "CRM_CREDENTIALS_INVALID"
	ErrCodeCRMConnectionTimeout ErrorCode = "CRM_CONNECTION_TIMEOUT"

	ErrCodeSnapshotUnavailable ErrorCode = "SNAPSHOT_UNAVAILABLE"
	ErrCodeAuditFailed         ErrorCode = "AUDIT_FAILED"
	ErrCodeReportNotFound      ErrorCode = "REPORT_NOT_FOUND"

	ErrCodeInvalidRequest    ErrorCode = "INVALID_REQUEST"
	ErrCodePayloadTooLarge   ErrorCode = "PAYLOAD_TOO_LARGE"
	ErrCodeUnauthorized      ErrorCode = "UNAUTHORIZED"
	ErrCodeInvalidLogin      ErrorCode = "INVALID_CREDENTIALS"
	ErrCodeAuthNotConfigured ErrorCode = "AUTH_NOT_CONFIGURED"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeDatabaseInsertFailed     ErrorCode = "DATABASE_INSERT_FAILED"
	ErrCodeSearchQueryFailed        ErrorCode = "SEARCH_QUERY_FAILED"
	ErrCodeSearchUnavailable        ErrorCode = "SEARCH_UNAVAILABLE"

	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// As extracts a *StandardError from an error chain.
func As(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// Normalize always yields a StandardError; foreign errors become INTERNAL_ERROR.
func Normalize(err error) *StandardError {
	if stdErr, ok := As(err); ok {
		return stdErr
	}
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func NewProviderUnsupportedError(provider string) *StandardError {
	return newError(ErrCodeProviderUnsupported, "Unsupported CRM Provider", fmt.Sprintf("provider: %s", provider), false)
}

func NewCredentialsMissingError() *StandardError {
	return newError(ErrCodeCredentialsMissing, "API Key is required", "", false)
}

func NewCredentialsInvalidError(provider string) *StandardError {
	return newError(ErrCodeCredentialsInvalid, "Invalid API Credentials", fmt.Sprintf("provider: %s", provider), false)
}

func NewCRMConnectionTimeoutError(provider string, err error) *StandardError {
	return newError(ErrCodeCRMConnectionTimeout, "Connection Timeout", fmt.Sprintf("provider: %s, error: %v", provider, err), true)
}

func NewSnapshotUnavailableError(provider string, err error) *StandardError {
	return newError(ErrCodeSnapshotUnavailable, "CRM snapshot could not be loaded", fmt.Sprintf("provider: %s, error: %v", provider, err), true)
}

func NewAuditFailedError(err error) *StandardError {
	return newError(ErrCodeAuditFailed, "Leak audit failed", err.Error(), true)
}

func NewReportNotFoundError(provider string) *StandardError {
	return newError(ErrCodeReportNotFound, "No audit report found", fmt.Sprintf("provider: %s", provider), false)
}

func NewInvalidRequestError(message, details string) *StandardError {
	return newError(ErrCodeInvalidRequest, message, details, false)
}

func NewPayloadTooLargeError(limit int64) *StandardError {
	return newError(ErrCodePayloadTooLarge, "Payload Too Large", fmt.Sprintf("limit: %d bytes", limit), false)
}

func NewUnauthorizedError() *StandardError {
	return newError(ErrCodeUnauthorized, "Unauthorized", "", false)
}

func NewInvalidLoginError() *StandardError {
	return newError(ErrCodeInvalidLogin, "Invalid credentials", "", false)
}

func NewAuthNotConfiguredError() *StandardError {
	return newError(ErrCodeAuthNotConfigured, "Auth is not configured", "", false)
}

func NewDatabaseConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseConnectionFailed, "Database connection error", err.Error(), true)
}

func NewQueryExecutionFailedError(query string, err error) *StandardError {
	return newError(ErrCodeQueryExecutionFailed, "Database query execution error", fmt.Sprintf("query: %s, error: %s", query, err.Error()), true)
}

func NewDatabaseInsertFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseInsertFailed, "Database insert operation failed", err.Error(), true)
}

func NewSearchQueryFailedError(err error) *StandardError {
	return newError(ErrCodeSearchQueryFailed, "Leak search failed", err.Error(), true)
}

func NewSearchUnavailableError() *StandardError {
	return newError(ErrCodeSearchUnavailable, "Leak search is not configured", "", false)
}

func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return newError(ErrCodeNotificationSendFailed, "Notification delivery failed", fmt.Sprintf("channel: %s, error: %s", channel, err.Error()), true)
}

// ==========================
// 4. Conversion
// ==========================

// GetRetryCount returns how many times a worker job should be retried.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodeDatabaseInsertFailed,
		ErrCodeSearchQueryFailed,
		ErrCodeNotificationSendFailed,
		ErrCodeSnapshotUnavailable,
		ErrCodeAuditFailed:
		return 3
	case ErrCodeCRMConnectionTimeout:
		return 2
	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      string(stdErr.Code),
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// HTTPStatus maps an error code onto the status the API responds with.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeProviderUnsupported, ErrCodeCredentialsMissing, ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case ErrCodeUnauthorized, ErrCodeInvalidLogin, ErrCodeCredentialsInvalid:
		return http.StatusUnauthorized
	case ErrCodeReportNotFound:
		return http.StatusNotFound
	case ErrCodePayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case ErrCodeCRMConnectionTimeout:
		return http.StatusGatewayTimeout
	case ErrCodeSnapshotUnavailable, ErrCodeSearchQueryFailed, ErrCodeSearchUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "CRM_"):
		return "CRM"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY"):
		return "DATABASE"
	case strings.Contains(codeStr, "SEARCH"):
		return "SEARCH"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "AUTH") || codeStr == string(ErrCodeUnauthorized) || codeStr == string(ErrCodeInvalidLogin):
		return "AUTH"
	case strings.Contains(codeStr, "REQUEST") || strings.Contains(codeStr, "PAYLOAD"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}

// ErrorID derives a short, stable identifier for an error occurrence so
// that the same failure on the same endpoint can be grouped in support
// tickets without leaking internals.
func ErrorID(kind, endpoint string, status int, code ErrorCode) string {
	statusPart := "na"
	if status != 0 {
		statusPart = strconv.Itoa(status)
	}
	codePart := string(code)
	if codePart == "" {
		codePart = "na"
	}
	return "E_" + stableHash(strings.Join([]string{kind, endpoint, statusPart, codePart}, "|"))
}

func stableHash(s string) string {
	var h uint32 = 5381
	for i := 0; i < len(s); i++ {
		h = (h * 33) ^ uint32(s[i])
	}
	return strconv.FormatUint(uint64(h), 36)
}
