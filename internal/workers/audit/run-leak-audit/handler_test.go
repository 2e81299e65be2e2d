package runleakaudit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"leak-audit/internal/audit"
	"leak-audit/internal/common/errors"
	"leak-audit/internal/common/logger"
	"leak-audit/internal/crm"
	"leak-audit/internal/leak"
	"leak-audit/internal/snapshot"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

type recordingAuditor struct {
	req audit.Request
	err error
}

func (r *recordingAuditor) Run(_ context.Context, req audit.Request) (*leak.Report, error) {
	r.req = req
	if r.err != nil {
		return nil, r.err
	}
	return &leak.Report{RunID: "run-1", Provider: req.Credentials.Provider}, nil
}

func createTestHandler(t *testing.T, auditor Auditor) *Handler {
	return NewHandler(&Config{Timeout: 5 * time.Second}, auditor, nil, logger.NewTestLogger(t))
}

func createAuditService(t *testing.T) *audit.Service {
	return audit.NewService(audit.Deps{
		Registry: crm.Default(),
		Snapshot: snapshot.DemoSource{},
		Logger:   logger.NewTestLogger(t),
		Clock:    func() time.Time { return time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC) },
	})
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_DemoAudit(t *testing.T) {
	h := createTestHandler(t, createAuditService(t))

	out, err := h.Execute(context.Background(), &Input{Provider: "webhook"})
	require.NoError(t, err)

	assert.NotEmpty(t, out.RunID)
	assert.Equal(t, 5, out.LeakCount)
	assert.Len(t, out.Leaks, 5)
	assert.Equal(t, "leak-2", out.Leaks[0].ID)
	assert.Equal(t, out.Summary.Critical, out.CriticalCount)
	assert.InDelta(t, 186200, out.Summary.TotalRevenueAtRisk, 1e-6)
}

func TestHandler_Execute_MapsInput(t *testing.T) {
	rec := &recordingAuditor{}
	h := createTestHandler(t, rec)

	out, err := h.Execute(context.Background(), &Input{
		Provider:    "ghl",
		Credentials: map[string]string{"apiKey": "abc123456", "locationId": "loc-1"},
		Scope:       &leak.Scope{Sources: []string{"Inbound"}},
	})
	require.NoError(t, err)

	assert.Equal(t, DefaultSubject, rec.req.Subject)
	assert.Equal(t, "abc123456", rec.req.Credentials.APIKey)
	assert.Equal(t, "loc-1", rec.req.Credentials.LocationID)
	assert.Equal(t, []string{"Inbound"}, rec.req.Scope.Sources)
	assert.NotNil(t, out.Leaks)
	assert.Zero(t, out.LeakCount)
}

func TestHandler_Execute_BPMNErrors(t *testing.T) {
	h := createTestHandler(t, createAuditService(t))

	tests := []struct {
		name  string
		input *Input
		code  string
	}{
		{"missing provider", &Input{}, "CRM_PROVIDER_UNSUPPORTED"},
		{"unknown provider", &Input{Provider: "dynamics", Credentials: map[string]string{"apiKey": "abcdefg"}}, "CRM_PROVIDER_UNSUPPORTED"},
		{"bad credentials", &Input{Provider: "hubspot", Credentials: map[string]string{"apiKey": "x"}}, "CRM_CREDENTIALS_INVALID"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.Execute(context.Background(), tt.input)
			require.Error(t, err)

			bpmn := errors.ConvertToBPMNError(errors.Normalize(err))
			assert.Equal(t, tt.code, bpmn.Code)
			assert.Zero(t, bpmn.Retries)
		})
	}
}

func TestHandler_Execute_ForeignErrorIsRetryableAuditFailure(t *testing.T) {
	h := createTestHandler(t, &recordingAuditor{err: fmt.Errorf("scorer crashed")})

	_, err := h.Execute(context.Background(), &Input{Provider: "hubspot", Credentials: map[string]string{"apiKey": "abcdefg"}})
	require.Error(t, err)

	bpmn := errors.ConvertToBPMNError(errors.Normalize(err))
	assert.Equal(t, string(errors.ErrCodeAuditFailed), bpmn.Code)
	assert.Equal(t, 3, bpmn.Retries)
	assert.Contains(t, bpmn.Details, "scorer crashed")
}

func TestHandler_Execute_KeepsStandardErrors(t *testing.T) {
	h := createTestHandler(t, &recordingAuditor{err: errors.NewSnapshotUnavailableError("hubspot", fmt.Errorf("pg down"))})

	_, err := h.Execute(context.Background(), &Input{Provider: "hubspot"})
	stdErr, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeSnapshotUnavailable, stdErr.Code)
}

func TestHandler_ValidateVariables(t *testing.T) {
	h := createTestHandler(t, &recordingAuditor{})
	require.NotNil(t, h.inputSchema)

	assert.NoError(t, h.validateVariables(`{"provider":"hubspot","credentials":{"apiKey":"abc123"},"orderId":7}`))
	assert.NoError(t, h.validateVariables(`{not json`))

	err := h.validateVariables(`{"credentials":{"apiKey":"abc123"}}`)
	require.Error(t, err)
	stdErr, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeInvalidRequest, stdErr.Code)
	assert.Contains(t, stdErr.Details, "provider")
}
