// Package audit runs leak audits end to end: authenticate the CRM, load the
// snapshot, score it, then persist, cache and index the result.
package audit

import (
	"context"
	"fmt"
	"time"

	apperrors "leak-audit/internal/common/errors"
	"leak-audit/internal/common/logger"
	"leak-audit/internal/common/metrics"
	"leak-audit/internal/common/observability"
	"leak-audit/internal/crm"
	"leak-audit/internal/leak"
	"leak-audit/internal/repository"
	"leak-audit/internal/snapshot"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

const trendWeeks = 4

type Authenticator interface {
	Authenticate(ctx context.Context, creds crm.Credentials) crm.Result
	Resolve(id string) (string, bool)
	Providers() []string
}

type RunStore interface {
	SaveRun(ctx context.Context, report leak.Report, pipelineValue float64) error
	CreateAction(ctx context.Context, a repository.Action) error
	WeeklyTrend(ctx context.Context, subject string, weeks int, now time.Time) (leak.WeeklyTrend, error)
}

type ReportCache interface {
	Put(ctx context.Context, report leak.Report) error
	Latest(ctx context.Context, subject, provider string) (*leak.Report, error)
}

type ConnectionStore interface {
	Save(ctx context.Context, subject string, conn repository.Connection) error
}

type LeakIndex interface {
	IndexReport(ctx context.Context, report leak.Report) error
	Search(ctx context.Context, subject, q string, size int) ([]leak.Leak, error)
}

// Deps are the collaborators of a Service. Only Registry and Snapshot are
// required; nil stores switch the matching side effect off.
type Deps struct {
	Registry          Authenticator
	Snapshot          snapshot.Source
	Runs              RunStore
	Cache             ReportCache
	Connections       ConnectionStore
	Index             LeakIndex
	Observability     *observability.Observability
	Logger            logger.Logger
	Clock             func() time.Time
	SideEffectTimeout time.Duration
}

type Service struct {
	deps   Deps
	logger logger.Logger
	now    func() time.Time
}

func NewService(deps Deps) *Service {
	if deps.Logger == nil {
		deps.Logger = logger.NewNoOpLogger()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.SideEffectTimeout == 0 {
		deps.SideEffectTimeout = 5 * time.Second
	}
	return &Service{
		deps:   deps,
		logger: deps.Logger.WithFields(map[string]interface{}{"component": "audit"}),
		now:    deps.Clock,
	}
}

// Request is one audit invocation. Records, when set, replace the snapshot.
// A zero Scope includes every record.
type Request struct {
	Subject     string
	Credentials crm.Credentials
	Scope       leak.Scope
	Records     []leak.Opportunity
}

func (s *Service) Providers() []string {
	return s.deps.Registry.Providers()
}

// Connect validates credentials and remembers the connection.
func (s *Service) Connect(ctx context.Context, subject string, creds crm.Credentials) (crm.Result, error) {
	res := s.deps.Registry.Authenticate(ctx, creds)
	if !res.Success {
		return res, res.Err()
	}

	if s.deps.Connections != nil {
		conn := repository.Connection{
			Provider:    res.Provider,
			MaskedKey:   creds.Masked(),
			Domain:      creds.Domain,
			ConnectedAt: s.now().UTC(),
		}
		if err := s.deps.Connections.Save(ctx, subject, conn); err != nil {
			s.logger.Warn("failed to remember connection", map[string]interface{}{
				"provider": res.Provider,
				"error":    err,
			})
		}
	}
	return res, nil
}

// Run executes a full audit and returns the report.
func (s *Service) Run(ctx context.Context, req Request) (*leak.Report, error) {
	start := time.Now()
	ctx, span := s.deps.Observability.StartSpan(ctx, "audit.run",
		attribute.String("provider", req.Credentials.Provider))
	defer span.End()

	report, opps, err := s.run(ctx, req)
	if err != nil {
		stdErr := apperrors.Normalize(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(stdErr.Code))
		metrics.AuditRuns.WithLabelValues(req.Credentials.Provider, "failed").Inc()
		s.deps.Observability.RecordAudit(ctx, req.Credentials.Provider, "failed", 0, 0)
		s.logger.Warn("audit failed", map[string]interface{}{
			"provider":  req.Credentials.Provider,
			"errorCode": string(stdErr.Code),
		})
		return nil, err
	}

	s.sideEffects(ctx, *report, opps)

	metrics.AuditRuns.WithLabelValues(report.Provider, "success").Inc()
	metrics.AuditDuration.WithLabelValues(report.Provider).Observe(time.Since(start).Seconds())
	metrics.RevenueAtRisk.WithLabelValues(report.Provider).Set(report.Summary.TotalRevenueAtRisk)
	for _, l := range report.Leaks {
		metrics.LeaksDetected.WithLabelValues(string(l.Severity)).Inc()
	}
	s.deps.Observability.RecordAudit(ctx, report.Provider, "success", len(report.Leaks), report.Summary.TotalRevenueAtRisk)
	span.SetAttributes(
		attribute.String("run_id", report.RunID),
		attribute.Int("leaks", len(report.Leaks)),
		attribute.Int("critical", report.Summary.Critical),
	)

	s.logger.Info("audit completed", map[string]interface{}{
		"runId":         report.RunID,
		"provider":      report.Provider,
		"leaks":         len(report.Leaks),
		"critical":      report.Summary.Critical,
		"revenueAtRisk": report.Summary.TotalRevenueAtRisk,
	})
	return report, nil
}

func (s *Service) run(ctx context.Context, req Request) (*leak.Report, []leak.Opportunity, error) {
	res := s.deps.Registry.Authenticate(ctx, req.Credentials)
	if !res.Success {
		return nil, nil, res.Err()
	}

	opps, err := s.records(ctx, res.Provider, req.Records)
	if err != nil {
		return nil, nil, err
	}

	now := s.now().UTC()
	leaks := leak.Audit(opps, now, req.Scope)
	report := &leak.Report{
		RunID:      uuid.New().String(),
		Subject:    req.Subject,
		Provider:   res.Provider,
		Leaks:      leaks,
		Summary:    leak.Summarize(leaks),
		AnalyzedAt: now,
	}
	return report, opps, nil
}

func (s *Service) records(ctx context.Context, provider string, supplied []leak.Opportunity) ([]leak.Opportunity, error) {
	if len(supplied) > 0 {
		return supplied, nil
	}
	opps, err := s.deps.Snapshot.Opportunities(ctx, provider)
	if err != nil {
		if _, ok := apperrors.As(err); ok {
			return nil, err
		}
		return nil, apperrors.NewSnapshotUnavailableError(provider, err)
	}
	return opps, nil
}

// sideEffects persists, caches and indexes the report concurrently. They
// outlive a cancelled request but not SideEffectTimeout, and their
// failures never fail the audit.
func (s *Service) sideEffects(ctx context.Context, report leak.Report, opps []leak.Opportunity) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.deps.SideEffectTimeout)
	defer cancel()

	var pipelineValue float64
	for _, o := range opps {
		pipelineValue += o.DealValue
	}

	var g errgroup.Group
	if s.deps.Runs != nil {
		g.Go(s.effect(ctx, "persist", report.RunID, func(ctx context.Context) error {
			return s.deps.Runs.SaveRun(ctx, report, pipelineValue)
		}))
	}
	if s.deps.Cache != nil {
		g.Go(s.effect(ctx, "cache", report.RunID, func(ctx context.Context) error {
			return s.deps.Cache.Put(ctx, report)
		}))
	}
	if s.deps.Index != nil {
		g.Go(s.effect(ctx, "index", report.RunID, func(ctx context.Context) error {
			return s.deps.Index.IndexReport(ctx, report)
		}))
	}

	if err := g.Wait(); err != nil {
		s.logger.Warn("audit side effects incomplete", map[string]interface{}{
			"runId": report.RunID,
			"error": err,
		})
	}
}

func (s *Service) effect(ctx context.Context, name, runID string, fn func(context.Context) error) func() error {
	return func() error {
		if err := fn(ctx); err != nil {
			metrics.SideEffectFailures.WithLabelValues(name).Inc()
			s.logger.Error("audit side effect failed", map[string]interface{}{
				"effect": name,
				"runId":  runID,
				"error":  err,
			})
			return fmt.Errorf("%s: %w", name, err)
		}
		return nil
	}
}

// LatestReport returns the cached report of the caller's last audit.
func (s *Service) LatestReport(ctx context.Context, subject, provider string) (*leak.Report, error) {
	if s.deps.Cache == nil {
		return nil, apperrors.NewReportNotFoundError(provider)
	}
	canonical, ok := s.deps.Registry.Resolve(provider)
	if !ok {
		return nil, apperrors.NewProviderUnsupportedError(provider)
	}
	return s.deps.Cache.Latest(ctx, subject, canonical)
}

// CreateAction queues a follow-up against a leak.
func (s *Service) CreateAction(ctx context.Context, subject, leakID, recommendedAction string) (repository.Action, error) {
	if leakID == "" {
		return repository.Action{}, apperrors.NewInvalidRequestError("Missing leakId", "")
	}

	action := repository.Action{
		ID:                uuid.New().String(),
		Subject:           subject,
		LeakID:            leakID,
		RecommendedAction: recommendedAction,
		Status:            "created",
		CreatedAt:         s.now().UTC(),
	}
	if s.deps.Runs != nil {
		if err := s.deps.Runs.CreateAction(ctx, action); err != nil {
			return repository.Action{}, err
		}
	}
	return action, nil
}

// Analytics returns the weekly pipeline and leak trend for subject.
func (s *Service) Analytics(ctx context.Context, subject string) (leak.WeeklyTrend, error) {
	if s.deps.Runs == nil {
		return repository.EmptyTrend(trendWeeks), nil
	}
	return s.deps.Runs.WeeklyTrend(ctx, subject, trendWeeks, s.now())
}

// PipelineAnalytics breaks the provider's current snapshot down by stage
// and source.
func (s *Service) PipelineAnalytics(ctx context.Context, provider string) (leak.PipelineAnalytics, error) {
	opps, err := s.records(ctx, provider, nil)
	if err != nil {
		return leak.PipelineAnalytics{}, err
	}
	now := s.now()
	return leak.BuildPipelineAnalytics(opps, func(o leak.Opportunity) float64 { return o.HoursSince(now) }), nil
}

// Search queries indexed leaks of subject.
func (s *Service) Search(ctx context.Context, subject, q string, size int) ([]leak.Leak, error) {
	if s.deps.Index == nil {
		return nil, apperrors.NewSearchUnavailableError()
	}
	return s.deps.Index.Search(ctx, subject, q, size)
}
