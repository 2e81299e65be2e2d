// internal/leak/summary.go
package leak

import "math"

const (
	recoverableShare = 0.35
	minROIMultiplier = 1.5
)

// Summarize counts leaks by severity and estimates what outreach can win back.
func Summarize(leaks []Leak) Summary {
	var s Summary
	for _, l := range leaks {
		s.Total++
		s.TotalRevenueAtRisk += l.RevenueAtRisk
		if l.IsSLABreach {
			s.SLABreaches++
		}
		switch l.Severity {
		case SeverityCritical:
			s.Critical++
		case SeverityHigh:
			s.High++
		case SeverityMedium:
			s.Medium++
		default:
			s.Low++
		}
	}

	s.RecoverableRevenue = math.Round(s.TotalRevenueAtRisk * recoverableShare)
	if s.RecoverableRevenue > 0 {
		s.ROIMultiplier = math.Max(minROIMultiplier, math.Round(s.RecoverableRevenue/1000*10)/10)
	}
	return s
}

// BuildPipelineAnalytics summarises a raw snapshot. Critical leaks are
// records whose inactivity exceeds their SLA.
func BuildPipelineAnalytics(opps []Opportunity, hoursOf func(Opportunity) float64) PipelineAnalytics {
	a := PipelineAnalytics{
		LeakCount:        len(opps),
		StageBreakdown:   make(map[string]int),
		SourceBreakdown:  make(map[string]int),
		TopOpportunities: make([]OpportunityOverview, 0, len(opps)),
	}

	for _, o := range opps {
		a.TotalPipelineValue += o.DealValue
		a.StageBreakdown[o.Stage]++
		a.SourceBreakdown[o.LeadSource]++
		if o.SLAThreshold > 0 && hoursOf(o) > o.SLAThreshold {
			a.CriticalLeaksCount++
		}
		a.TopOpportunities = append(a.TopOpportunities, OpportunityOverview{
			Type:   o.Type,
			Value:  o.DealValue,
			Source: o.LeadSource,
			Stage:  o.Stage,
		})
	}
	return a
}
