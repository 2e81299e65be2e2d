package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"leak-audit/internal/audit"
	apperrors "leak-audit/internal/common/errors"
	"leak-audit/internal/crm"
	"leak-audit/internal/leak"
)

const (
	defaultSearchSize = 20
	maxSearchSize     = 100
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type connectRequest struct {
	Provider    string            `json:"provider"`
	Credentials map[string]string `json:"credentials"`
}

type connectResponse struct {
	Success  bool   `json:"success"`
	Provider string `json:"provider"`
	Message  string `json:"message"`
}

type auditRequest struct {
	Provider    string             `json:"provider"`
	Credentials map[string]string  `json:"credentials"`
	Scope       *leak.Scope        `json:"scope,omitempty"`
	Records     []leak.Opportunity `json:"records,omitempty"`
}

type leaksResponse struct {
	Success    bool         `json:"success"`
	RunID      string       `json:"runId"`
	Provider   string       `json:"provider"`
	Leaks      []leak.Leak  `json:"leaks"`
	Summary    leak.Summary `json:"summary"`
	AnalyzedAt time.Time    `json:"analyzedAt"`
}

type summaryResponse struct {
	Success    bool         `json:"success"`
	RunID      string       `json:"runId"`
	Provider   string       `json:"provider"`
	Summary    leak.Summary `json:"summary"`
	AnalyzedAt time.Time    `json:"analyzedAt"`
}

type analyzeRequest struct {
	Records []leak.Opportunity `json:"records"`
}

type actionRequest struct {
	LeakID            string `json:"leakId"`
	RecommendedAction string `json:"recommendedAction"`
}

type actionResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": s.now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status, code := "ready", http.StatusOK
	checks := make(map[string]string, len(s.checks))
	for name, c := range s.checks {
		if err := c.Ping(ctx); err != nil {
			s.logger.Warn("readiness check failed", map[string]interface{}{"check": name, "error": err})
			checks[name] = "down"
			status, code = "degraded", http.StatusServiceUnavailable
			continue
		}
		checks[name] = "up"
	}
	writeJSON(w, code, map[string]interface{}{"status": status, "checks": checks})
}

func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Providers())
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := s.decode(w, r, loginSchema, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	token, err := s.issuer.Login(strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, token)
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if err := s.decode(w, r, connectSchema, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.svc.Connect(r.Context(), SubjectFrom(r.Context()), crm.CredentialsFromMap(req.Provider, req.Credentials))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, connectResponse{
		Success:  true,
		Provider: res.Provider,
		Message:  fmt.Sprintf("Connected to %s", res.Provider),
	})
}

func (s *Server) runAudit(w http.ResponseWriter, r *http.Request) (*leak.Report, bool) {
	var req auditRequest
	if err := s.decode(w, r, auditSchema, &req); err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	auditReq := audit.Request{
		Subject:     SubjectFrom(r.Context()),
		Credentials: crm.CredentialsFromMap(req.Provider, req.Credentials),
		Records:     req.Records,
	}
	if req.Scope != nil {
		auditReq.Scope = *req.Scope
	}

	report, err := s.svc.Run(r.Context(), auditReq)
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	return report, true
}

func (s *Server) handleLeaks(w http.ResponseWriter, r *http.Request) {
	report, ok := s.runAudit(w, r)
	if !ok {
		return
	}
	leaks := report.Leaks
	if leaks == nil {
		leaks = []leak.Leak{}
	}
	writeJSON(w, http.StatusOK, leaksResponse{
		Success:    true,
		RunID:      report.RunID,
		Provider:   report.Provider,
		Leaks:      leaks,
		Summary:    report.Summary,
		AnalyzedAt: report.AnalyzedAt,
	})
}

func (s *Server) handleLeakSummary(w http.ResponseWriter, r *http.Request) {
	report, ok := s.runAudit(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, summaryResponse{
		Success:    true,
		RunID:      report.RunID,
		Provider:   report.Provider,
		Summary:    report.Summary,
		AnalyzedAt: report.AnalyzedAt,
	})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := s.decode(w, r, analyzeSchema, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	provider := r.URL.Query().Get("crm")
	if provider == "" {
		provider = crm.Webhook
	}

	res, err := s.svc.Analyze(r.Context(), provider, req.Records)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func providerParam(r *http.Request) string {
	q := r.URL.Query()
	if p := q.Get("provider"); p != "" {
		return p
	}
	return q.Get("crm")
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	provider := providerParam(r)
	if provider == "" {
		s.writeError(w, r, apperrors.NewInvalidRequestError("Missing provider", ""))
		return
	}
	report, err := s.svc.LatestReport(r.Context(), SubjectFrom(r.Context()), provider)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		s.writeError(w, r, apperrors.NewInvalidRequestError("Missing search query", ""))
		return
	}
	size := defaultSearchSize
	if raw := r.URL.Query().Get("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.writeError(w, r, apperrors.NewInvalidRequestError("Invalid size", raw))
			return
		}
		size = min(n, maxSearchSize)
	}

	leaks, err := s.svc.Search(r.Context(), SubjectFrom(r.Context()), q, size)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if leaks == nil {
		leaks = []leak.Leak{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"query": q, "total": len(leaks), "leaks": leaks})
}

func (s *Server) handleCreateAction(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := s.decode(w, r, actionSchema, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	action, err := s.svc.CreateAction(r.Context(), SubjectFrom(r.Context()), strings.TrimSpace(req.LeakID), req.RecommendedAction)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, actionResponse{ID: action.ID, Status: action.Status})
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	trend, err := s.svc.Analytics(r.Context(), SubjectFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, trend)
}

func (s *Server) handlePipelineAnalytics(w http.ResponseWriter, r *http.Request) {
	provider := providerParam(r)
	if provider == "" {
		provider = crm.Webhook
	}
	pa, err := s.svc.PipelineAnalytics(r.Context(), provider)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pa)
}
