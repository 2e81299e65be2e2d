// internal/workers/audit/run-leak-audit/models.go
package runleakaudit

import "leak-audit/internal/leak"

type Input struct {
	Provider    string             `json:"provider"`
	Credentials map[string]string  `json:"credentials,omitempty"`
	Scope       *leak.Scope        `json:"scope,omitempty"`
	Subject     string             `json:"subject,omitempty"`
	Records     []leak.Opportunity `json:"records,omitempty"`
}

type Output struct {
	RunID         string       `json:"runId"`
	Leaks         []leak.Leak  `json:"leaks"`
	Summary       leak.Summary `json:"summary"`
	LeakCount     int          `json:"leakCount"`
	CriticalCount int          `json:"criticalCount"`
}

// DefaultSubject owns reports produced by process instances.
const DefaultSubject = "workflow"
