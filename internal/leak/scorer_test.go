// internal/leak/scorer_test.go
package leak

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

func referenceOpportunities() []Opportunity {
	return []Opportunity{
		{ID: "leak-1", Type: "Unworked High-Intent", DealValue: 60000, HoursSinceActivity: 37, Stage: "New", SLAThreshold: 24, LeadSource: "Inbound", DealIDs: []string{"#882", "#991", "#442", "#103", "#559"}},
		{ID: "leak-2", Type: "Stalled Negotiation", DealValue: 200000, HoursSinceActivity: 124, Stage: "Negotiation", SLAThreshold: 48, LeadSource: "Referral", DealIDs: []string{"#402", "#112"}},
		{ID: "leak-3", Type: "Missed Follow-Ups", DealValue: 75000, HoursSinceActivity: 26, Stage: "Proposal", SLAThreshold: 24, LeadSource: "Outbound", DealIDs: []string{"#331", "#332", "#334"}},
		{ID: "leak-4", Type: "High-Value Latency", DealValue: 56000, HoursSinceActivity: 4, Stage: "New", SLAThreshold: 2, LeadSource: "Enterprise", DealIDs: []string{"#900"}},
		{ID: "leak-5", Type: "Stuck Qualification", DealValue: 60000, HoursSinceActivity: 180, Stage: "Qualification", SLAThreshold: 168, LeadSource: "Paid", DealIDs: []string{"#101", "#102", "#105"}},
	}
}

func TestUrgencyMultiplier(t *testing.T) {
	tests := []struct {
		hours    float64
		expected float64
	}{
		{0, 1.0},
		{23.99, 1.0},
		{24, 1.3},
		{47.5, 1.3},
		{48, 1.6},
		{71.9, 1.6},
		{72, 2.0},
		{500, 2.0},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%.2fh", tt.hours), func(t *testing.T) {
			assert.Equal(t, tt.expected, UrgencyMultiplier(tt.hours))
		})
	}
}

func TestRecoveryProbability(t *testing.T) {
	tests := []struct {
		name     string
		source   string
		hours    float64
		expected float64
	}{
		{"fresh inbound", "Inbound", 2, 0.8},
		{"inbound in second bracket", "Inbound", 37, 0.64},
		{"boundary 24h has no decay", "Referral", 24, 0.7},
		{"boundary 48h is second bracket", "Referral", 48, 0.56},
		{"stale referral", "Referral", 124, 0.35},
		{"outbound", "Outbound", 26, 0.32},
		{"paid stale", "Paid", 180, 0.15},
		{"enterprise", "Enterprise", 4, 0.8},
		{"unknown source", "Trade Show", 10, 0.5},
		{"case insensitive", "  inbound ", 1, 0.8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, RecoveryProbability(tt.source, tt.hours), 1e-9)
		})
	}
}

func TestScore_InboundAfter37Hours(t *testing.T) {
	opp := Opportunity{ID: "leak-1", Type: "Unworked High-Intent", DealValue: 60000, HoursSinceActivity: 37, LeadSource: "Inbound", SLAThreshold: 24}

	l := Score(opp, fixedNow, Scope{})

	assert.InDelta(t, 0.64, l.RecoveryProbability, 1e-9)
	assert.InDelta(t, 38400, l.RevenueAtRisk, 1e-6)
	assert.Equal(t, 1.3, l.UrgencyScore)
	assert.InDelta(t, 49920, l.PriorityScore, 1e-6)
	assert.True(t, l.IsSLABreach)
	assert.Equal(t, SeverityCritical, l.Severity)
	assert.Equal(t, "Unworked High-Intent Leads", l.Name)
	assert.Equal(t, "1 inbound leads untouched >37 hours", l.Cause)
	assert.Equal(t, "$38,400 decaying due to inactivity", l.Consequence)
}

func TestScore_ConsequenceIndependentOfMode(t *testing.T) {
	opp := referenceOpportunities()[0]

	calm := Score(opp, fixedNow, Scope{})
	aggressive := Score(opp, fixedNow, Scope{Aggressive: true})

	assert.Equal(t, "$38,400 decaying due to inactivity", calm.Consequence)
	assert.Equal(t, calm.Consequence, aggressive.Consequence)
	assert.Equal(t, "5 inbound leads untouched >37 hours", aggressive.Cause)
}

func TestScore_UsesLastActivityTimestamp(t *testing.T) {
	last := fixedNow.Add(-50 * time.Hour)
	opp := Opportunity{ID: "x", DealValue: 1000, LastActivityAt: &last, LeadSource: "Inbound"}

	l := Score(opp, fixedNow, Scope{})

	assert.InDelta(t, 50, l.HoursSinceActivity, 1e-9)
	assert.Equal(t, 1.6, l.UrgencyScore)
	assert.InDelta(t, 0.4, l.RecoveryProbability, 1e-9)
}

func TestScore_FutureActivityClampsToZero(t *testing.T) {
	future := fixedNow.Add(3 * time.Hour)
	opp := Opportunity{ID: "x", DealValue: 1000, LastActivityAt: &future, LeadSource: "Paid"}

	l := Score(opp, fixedNow, Scope{})

	assert.Zero(t, l.HoursSinceActivity)
	assert.Equal(t, 1.0, l.UrgencyScore)
}

func TestScore_UnknownTypeDerivesSeverity(t *testing.T) {
	tests := []struct {
		name     string
		hours    float64
		sla      float64
		expected Severity
	}{
		{"breached and very stale", 80, 24, SeverityCritical},
		{"breached", 30, 24, SeverityHigh},
		{"not breached but ageing", 30, 0, SeverityMedium},
		{"fresh", 2, 0, SeverityLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := Score(Opportunity{ID: "x", Type: "Ghosted Renewal", DealValue: 500, HoursSinceActivity: tt.hours, SLAThreshold: tt.sla}, fixedNow, Scope{})
			assert.Equal(t, tt.expected, l.Severity)
			assert.Equal(t, "Stale Pipeline Records", l.Name)
		})
	}
}

func TestRevenueAtRiskNeverExceedsDealValue(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	sources := []string{"Inbound", "Referral", "Outbound", "Paid", "Enterprise", "Other", ""}

	for i := 0; i < 1000; i++ {
		opp := Opportunity{
			ID:                 fmt.Sprintf("r-%d", i),
			DealValue:          rng.Float64() * 1e6,
			HoursSinceActivity: rng.Float64() * 200,
			LeadSource:         sources[rng.Intn(len(sources))],
		}
		l := Score(opp, fixedNow, Scope{})
		require.LessOrEqual(t, l.RevenueAtRisk, opp.DealValue)
		require.GreaterOrEqual(t, l.RecoveryProbability, 0.0)
		require.LessOrEqual(t, l.RecoveryProbability, 1.0)
	}
}

func TestScore_NegativeDealValueClamps(t *testing.T) {
	l := Score(Opportunity{ID: "neg", DealValue: -100, HoursSinceActivity: 10, LeadSource: "Inbound"}, fixedNow, Scope{})
	assert.Zero(t, l.RevenueAtRisk)
	assert.Zero(t, l.PriorityScore)
}

func TestAudit_ReferenceSnapshotOrder(t *testing.T) {
	leaks := Audit(referenceOpportunities(), fixedNow, Scope{})

	require.Len(t, leaks, 5)
	ids := make([]string, len(leaks))
	for i, l := range leaks {
		ids[i] = l.ID
	}
	assert.Equal(t, []string{"leak-2", "leak-1", "leak-4", "leak-3", "leak-5"}, ids)
	assert.InDelta(t, 140000, leaks[0].PriorityScore, 1e-6)
	assert.InDelta(t, 18000, leaks[4].PriorityScore, 1e-6)
}

func TestRank_TieBreaks(t *testing.T) {
	leaks := []Leak{
		{ID: "low-prob", PriorityScore: 1000, UrgencyScore: 1.3, RecoveryProbability: 0.3},
		{ID: "low-urgency", PriorityScore: 1000, UrgencyScore: 1.0, RecoveryProbability: 0.8},
		{ID: "top", PriorityScore: 2000, UrgencyScore: 1.0, RecoveryProbability: 0.1},
		{ID: "high-prob", PriorityScore: 1000, UrgencyScore: 1.3, RecoveryProbability: 0.7},
		{ID: "stable-a", PriorityScore: 10, UrgencyScore: 1.0, RecoveryProbability: 0.5},
		{ID: "stable-b", PriorityScore: 10, UrgencyScore: 1.0, RecoveryProbability: 0.5},
	}

	Rank(leaks)

	var ids []string
	for _, l := range leaks {
		ids = append(ids, l.ID)
	}
	assert.Equal(t, []string{"top", "high-prob", "low-prob", "low-urgency", "stable-a", "stable-b"}, ids)
}

func TestRank_OrderingInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	opps := make([]Opportunity, 0, 300)
	for i := 0; i < 300; i++ {
		opps = append(opps, Opportunity{
			ID:                 fmt.Sprintf("o-%d", i),
			DealValue:          float64(rng.Intn(5)) * 10000,
			HoursSinceActivity: float64(rng.Intn(100)),
			LeadSource:         []string{"Inbound", "Referral", "Paid"}[rng.Intn(3)],
		})
	}

	leaks := Audit(opps, fixedNow, Scope{})

	for i := 1; i < len(leaks); i++ {
		prev, cur := leaks[i-1], leaks[i]
		require.GreaterOrEqual(t, prev.PriorityScore, cur.PriorityScore)
		if prev.PriorityScore == cur.PriorityScore {
			require.GreaterOrEqual(t, prev.UrgencyScore, cur.UrgencyScore)
			if prev.UrgencyScore == cur.UrgencyScore {
				require.GreaterOrEqual(t, prev.RecoveryProbability, cur.RecoveryProbability)
			}
		}
	}
}

func TestAudit_Deterministic(t *testing.T) {
	first := Audit(referenceOpportunities(), fixedNow, Scope{Aggressive: true})
	second := Audit(referenceOpportunities(), fixedNow, Scope{Aggressive: true})
	assert.Equal(t, first, second)
}

func TestScope_Includes(t *testing.T) {
	opp := Opportunity{LeadSource: "Inbound", Stage: "Negotiation"}

	tests := []struct {
		name     string
		scope    Scope
		expected bool
	}{
		{"empty scope", Scope{}, true},
		{"default scope", DefaultScope(), true},
		{"source excluded", Scope{Sources: []string{"Paid"}}, false},
		{"source case-insensitive", Scope{Sources: []string{"inbound"}}, true},
		{"stage match", Scope{PipelineStage: "negotiation"}, true},
		{"stage mismatch", Scope{PipelineStage: "New"}, false},
		{"all active", Scope{PipelineStage: AllActiveStages}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.scope.Includes(opp))
		})
	}
}

func TestAudit_ScopeFiltersBeforeRanking(t *testing.T) {
	leaks := Audit(referenceOpportunities(), fixedNow, DefaultScope())

	for _, l := range leaks {
		assert.Contains(t, []string{"Inbound", "Referral", "Paid"}, l.LeadSource)
	}
	assert.Len(t, leaks, 3)
}
