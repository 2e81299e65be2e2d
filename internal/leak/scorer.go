// internal/leak/scorer.go
package leak

import (
	"math"
	"sort"
	"strings"
	"time"
)

const (
	defaultBaseProbability = 0.5

	// Staleness brackets, in hours since the last logged activity.
	firstBracketHours  = 24
	secondBracketHours = 48
	thirdBracketHours  = 72
)

var baseProbabilityBySource = map[string]float64{
	"inbound":    0.8,
	"enterprise": 0.8,
	"referral":   0.7,
	"outbound":   0.4,
	"paid":       0.3,
}

// BaseProbability returns the recovery baseline for a CRM lead-source tag.
func BaseProbability(source string) float64 {
	if p, ok := baseProbabilityBySource[strings.ToLower(strings.TrimSpace(source))]; ok {
		return p
	}
	return defaultBaseProbability
}

// DecayFactor discounts recovery odds as a record goes cold.
func DecayFactor(hours float64) float64 {
	switch {
	case hours > secondBracketHours:
		return 0.5
	case hours > firstBracketHours:
		return 0.8
	default:
		return 1.0
	}
}

// RecoveryProbability is rounded to two decimals so that ties are stable
// across clients that re-derive it.
func RecoveryProbability(source string, hours float64) float64 {
	return round2(BaseProbability(source) * DecayFactor(hours))
}

// UrgencyMultiplier steps up at 24h, 48h and 72h of inactivity.
func UrgencyMultiplier(hours float64) float64 {
	switch {
	case hours < firstBracketHours:
		return 1.0
	case hours < secondBracketHours:
		return 1.3
	case hours < thirdBracketHours:
		return 1.6
	default:
		return 2.0
	}
}

// HoursSince resolves the staleness of an opportunity relative to now.
// An explicit HoursSinceActivity wins over LastActivityAt.
func (o Opportunity) HoursSince(now time.Time) float64 {
	if o.HoursSinceActivity > 0 || o.LastActivityAt == nil {
		return math.Max(o.HoursSinceActivity, 0)
	}
	h := now.Sub(*o.LastActivityAt).Hours()
	if h < 0 {
		return 0
	}
	return h
}

// Score turns one opportunity into a leak. It has no side effects. Both the
// cause and the consequence copy are filled whatever the scope's mode.
func Score(opp Opportunity, now time.Time, _ Scope) Leak {
	hours := opp.HoursSince(now)
	value := math.Max(opp.DealValue, 0)

	probability := RecoveryProbability(opp.LeadSource, hours)
	risk := value * probability
	urgency := UrgencyMultiplier(hours)

	l := Leak{
		ID:                  opp.ID,
		Type:                opp.Type,
		RevenueAtRisk:       risk,
		RecoveryProbability: probability,
		UrgencyScore:        urgency,
		PriorityScore:       risk * urgency,
		IsSLABreach:         opp.SLAThreshold > 0 && hours > opp.SLAThreshold,
		DealIDs:             append([]string(nil), opp.DealIDs...),
		LeadSource:          opp.LeadSource,
		Stage:               opp.Stage,
		DealValue:           value,
		HoursSinceActivity:  hours,
	}

	hydrate(&l, DefaultCatalog())
	return l
}

// Rank orders leaks by priority, then urgency, then recovery probability,
// all descending. Equal leaks keep their input order.
func Rank(leaks []Leak) {
	sort.SliceStable(leaks, func(i, j int) bool {
		a, b := leaks[i], leaks[j]
		if a.PriorityScore != b.PriorityScore {
			return a.PriorityScore > b.PriorityScore
		}
		if a.UrgencyScore != b.UrgencyScore {
			return a.UrgencyScore > b.UrgencyScore
		}
		return a.RecoveryProbability > b.RecoveryProbability
	})
}

// Audit filters the snapshot by scope, scores every record and ranks the result.
func Audit(opps []Opportunity, now time.Time, scope Scope) []Leak {
	leaks := make([]Leak, 0, len(opps))
	for _, opp := range opps {
		if !scope.Includes(opp) {
			continue
		}
		leaks = append(leaks, Score(opp, now, scope))
	}
	Rank(leaks)
	return leaks
}

// Includes reports whether an opportunity falls inside the scope. Empty
// filters match everything.
func (s Scope) Includes(opp Opportunity) bool {
	if len(s.Sources) > 0 {
		matched := false
		for _, src := range s.Sources {
			if strings.EqualFold(src, opp.LeadSource) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	if s.PipelineStage != "" && !strings.EqualFold(s.PipelineStage, AllActiveStages) {
		return strings.EqualFold(s.PipelineStage, opp.Stage)
	}
	return true
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
