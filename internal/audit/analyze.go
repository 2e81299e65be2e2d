package audit

import (
	"context"

	"leak-audit/internal/leak"
)

// AnalyzedLeak is the compact leak shape returned by ad-hoc analysis.
type AnalyzedLeak struct {
	ID            string        `json:"id"`
	Type          string        `json:"type"`
	Severity      leak.Severity `json:"severity"`
	EstimatedLoss float64       `json:"estimatedLoss"`
	Explanation   string        `json:"explanation"`
}

type AnalyzeResult struct {
	TotalLeads           int            `json:"totalLeads"`
	LeaksFound           int            `json:"leaksFound"`
	EstimatedRevenueLost float64        `json:"estimatedRevenueLost"`
	Leaks                []AnalyzedLeak `json:"leaks"`
}

// Analyze scores records without authenticating or persisting anything.
// With no records the provider's snapshot is used.
func (s *Service) Analyze(ctx context.Context, provider string, records []leak.Opportunity) (AnalyzeResult, error) {
	ctx, span := s.deps.Observability.StartSpan(ctx, "audit.analyze")
	defer span.End()

	if canonical, ok := s.deps.Registry.Resolve(provider); ok {
		provider = canonical
	}
	opps, err := s.records(ctx, provider, records)
	if err != nil {
		span.RecordError(err)
		return AnalyzeResult{}, err
	}

	leaks := leak.Audit(opps, s.now().UTC(), leak.Scope{})
	summary := leak.Summarize(leaks)

	res := AnalyzeResult{
		TotalLeads:           len(opps),
		LeaksFound:           len(leaks),
		EstimatedRevenueLost: summary.TotalRevenueAtRisk,
		Leaks:                make([]AnalyzedLeak, 0, len(leaks)),
	}
	for _, l := range leaks {
		res.Leaks = append(res.Leaks, AnalyzedLeak{
			ID:            l.ID,
			Type:          l.Type,
			Severity:      l.Severity,
			EstimatedLoss: l.RevenueAtRisk,
			Explanation:   l.Cause,
		})
	}
	return res, nil
}
