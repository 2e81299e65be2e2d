// internal/leak/models.go
package leak

import "time"

// Severity ranks how loud a leak is on the dashboard.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Opportunity is a raw CRM record (deal or lead bucket) taken from a snapshot.
type Opportunity struct {
	ID                 string     `json:"id" db:"id"`
	Type               string     `json:"type" db:"type"`
	DealValue          float64    `json:"dealValue" db:"deal_value"`
	HoursSinceActivity float64    `json:"hoursSinceActivity,omitempty" db:"-"`
	LastActivityAt     *time.Time `json:"lastActivityAt,omitempty" db:"last_activity_at"`
	Stage              string     `json:"stage" db:"stage"`
	SLAThreshold       float64    `json:"slaThreshold,omitempty" db:"sla_hours"`
	LeadSource         string     `json:"leadSource" db:"lead_source"`
	DealIDs            []string   `json:"deals,omitempty" db:"-"`
	Owner              string     `json:"owner,omitempty" db:"owner"`
}

// Leak is a scored opportunity, ready to render as a card.
type Leak struct {
	ID                  string   `json:"id"`
	Type                string   `json:"type"`
	Name                string   `json:"name"`
	Severity            Severity `json:"severity"`
	RevenueAtRisk       float64  `json:"revenueAtRisk"`
	Cause               string   `json:"cause"`
	Consequence         string   `json:"consequence"`
	RecommendedAction   string   `json:"recommendedAction"`
	TimeSensitivity     string   `json:"timeSensitivity"`
	RecoveryProbability float64  `json:"recoveryProbability"`
	UrgencyScore        float64  `json:"urgencyScore"`
	PriorityScore       float64  `json:"priorityScore"`
	IsSLABreach         bool     `json:"isSlaBreach"`
	DealIDs             []string `json:"dealIds,omitempty"`
	LeadSource          string   `json:"leadSource,omitempty"`
	Stage               string   `json:"stage,omitempty"`
	DealValue           float64  `json:"dealValue"`
	HoursSinceActivity  float64  `json:"hoursSinceActivity"`
}

// Summary aggregates a ranked leak list.
type Summary struct {
	Total              int     `json:"total"`
	Critical           int     `json:"critical"`
	High               int     `json:"high"`
	Medium             int     `json:"medium"`
	Low                int     `json:"low"`
	SLABreaches        int     `json:"slaBreaches"`
	TotalRevenueAtRisk float64 `json:"totalRevenueAtRisk"`
	RecoverableRevenue float64 `json:"recoverableRevenue"`
	ROIMultiplier      float64 `json:"roiMultiplier"`
}

// Scope narrows an audit to a subset of the snapshot.
type Scope struct {
	Sources       []string `json:"sources,omitempty"`
	PipelineStage string   `json:"pipelineStage,omitempty"`
	DateRange     string   `json:"dateRange,omitempty"`
	Team          string   `json:"team,omitempty"`
	Aggressive    bool     `json:"isAggressive,omitempty"` // display mode; the dashboard picks cause or consequence
}

const AllActiveStages = "All Active"

// DefaultScope mirrors the audit form defaults shown to new users.
func DefaultScope() Scope {
	return Scope{
		Sources:       []string{"Inbound", "Referral", "Paid"},
		PipelineStage: AllActiveStages,
		DateRange:     "Current Quarter",
		Team:          "Global Sales",
	}
}

// PipelineAnalytics is the snapshot-level breakdown used by the analytics view.
type PipelineAnalytics struct {
	TotalPipelineValue float64               `json:"total_pipeline_value"`
	LeakCount          int                   `json:"leak_count"`
	CriticalLeaksCount int                   `json:"critical_leaks_count"`
	StageBreakdown     map[string]int        `json:"stage_breakdown"`
	SourceBreakdown    map[string]int        `json:"source_breakdown"`
	TopOpportunities   []OpportunityOverview `json:"top_opportunities"`
}

type OpportunityOverview struct {
	Type   string  `json:"type"`
	Value  float64 `json:"value"`
	Source string  `json:"source"`
	Stage  string  `json:"stage"`
}

// Report is one finished audit as it is cached and returned to callers.
type Report struct {
	RunID      string    `json:"runId"`
	Subject    string    `json:"subject,omitempty"`
	Provider   string    `json:"provider"`
	Leaks      []Leak    `json:"leaks"`
	Summary    Summary   `json:"summary"`
	AnalyzedAt time.Time `json:"analyzedAt"`
}

// WeeklyTrend is the audit history chart data, oldest week first.
type WeeklyTrend struct {
	PipelineValue []ValuePoint `json:"pipelineValue"`
	LeakCount     []CountPoint `json:"leakCount"`
}

type ValuePoint struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

type CountPoint struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}
