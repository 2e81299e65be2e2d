package snapshot

import (
	"context"

	"leak-audit/internal/leak"
)

// DemoSource serves a fixed five-record snapshot used by the dashboard demo
// and as a fallback when no CRM data has been synced.
type DemoSource struct{}

func (DemoSource) Opportunities(_ context.Context, _ string) ([]leak.Opportunity, error) {
	return DemoOpportunities(), nil
}

// DemoOpportunities returns a fresh copy of the demo snapshot.
func DemoOpportunities() []leak.Opportunity {
	return []leak.Opportunity{
		{
			ID: "leak-1", Type: "Unworked High-Intent", DealValue: 60000, HoursSinceActivity: 37,
			Stage: "New", SLAThreshold: 24, LeadSource: "Inbound",
			DealIDs: []string{"#882", "#991", "#442", "#103", "#559"},
		},
		{
			ID: "leak-2", Type: "Stalled Negotiation", DealValue: 200000, HoursSinceActivity: 124,
			Stage: "Negotiation", SLAThreshold: 48, LeadSource: "Referral",
			DealIDs: []string{"#402", "#112"},
		},
		{
			ID: "leak-3", Type: "Missed Follow-Ups", DealValue: 75000, HoursSinceActivity: 26,
			Stage: "Proposal", SLAThreshold: 24, LeadSource: "Outbound",
			DealIDs: []string{"#331", "#332", "#334"},
		},
		{
			ID: "leak-4", Type: "High-Value Latency", DealValue: 56000, HoursSinceActivity: 4,
			Stage: "New", SLAThreshold: 2, LeadSource: "Enterprise",
			DealIDs: []string{"#900"},
		},
		{
			ID: "leak-5", Type: "Stuck Qualification", DealValue: 60000, HoursSinceActivity: 180,
			Stage: "Qualification", SLAThreshold: 168, LeadSource: "Paid",
			DealIDs: []string{"#101", "#102", "#105"},
		},
	}
}
