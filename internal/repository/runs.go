// Package repository persists audit runs, caches reports and indexes leaks
// for search.
package repository

import (
	"context"
	"fmt"
	"time"

	apperrors "leak-audit/internal/common/errors"
	"leak-audit/internal/leak"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const (
	insertRun = `
		INSERT INTO audit_runs (id, subject, provider, leak_count, critical_count, total_revenue_at_risk, pipeline_value, created_at)
		VALUES (:id, :subject, :provider, :leak_count, :critical_count, :total_revenue_at_risk, :pipeline_value, :created_at)`

	insertLeak = `
		INSERT INTO audit_leaks (run_id, leak_id, type, severity, revenue_at_risk, priority_score, deal_ids)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	insertAction = `
		INSERT INTO leak_actions (id, subject, leak_id, recommended_action, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	selectWeekly = `
		SELECT date_trunc('week', created_at AT TIME ZONE 'UTC') AS week,
		       MAX(pipeline_value) AS pipeline_value,
		       MAX(leak_count) AS leak_count
		FROM audit_runs
		WHERE subject = $1 AND created_at >= $2
		GROUP BY week
		ORDER BY week`
)

type runRow struct {
	ID                 string    `db:"id"`
	Subject            string    `db:"subject"`
	Provider           string    `db:"provider"`
	LeakCount          int       `db:"leak_count"`
	CriticalCount      int       `db:"critical_count"`
	TotalRevenueAtRisk float64   `db:"total_revenue_at_risk"`
	PipelineValue      float64   `db:"pipeline_value"`
	CreatedAt          time.Time `db:"created_at"`
}

type weekRow struct {
	Week          time.Time `db:"week"`
	PipelineValue float64   `db:"pipeline_value"`
	LeakCount     int       `db:"leak_count"`
}

// Action is a follow-up a user queued against a leak.
type Action struct {
	ID                string    `json:"id" db:"id"`
	Subject           string    `json:"-" db:"subject"`
	LeakID            string    `json:"leakId" db:"leak_id"`
	RecommendedAction string    `json:"recommendedAction,omitempty" db:"recommended_action"`
	Status            string    `json:"status" db:"status"`
	CreatedAt         time.Time `json:"createdAt" db:"created_at"`
}

// AuditRepository stores audit history in Postgres.
type AuditRepository struct {
	db *sqlx.DB
}

func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// SaveRun writes the run header and its leaks in one transaction.
func (r *AuditRepository) SaveRun(ctx context.Context, report leak.Report, pipelineValue float64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return apperrors.NewDatabaseConnectionFailedError(err)
	}
	defer tx.Rollback()

	row := runRow{
		ID:                 report.RunID,
		Subject:            report.Subject,
		Provider:           report.Provider,
		LeakCount:          report.Summary.Total,
		CriticalCount:      report.Summary.Critical,
		TotalRevenueAtRisk: report.Summary.TotalRevenueAtRisk,
		PipelineValue:      pipelineValue,
		CreatedAt:          report.AnalyzedAt,
	}
	if _, err := tx.NamedExecContext(ctx, insertRun, row); err != nil {
		return apperrors.NewDatabaseInsertFailedError(fmt.Errorf("audit_runs: %w", err))
	}

	for _, l := range report.Leaks {
		if _, err := tx.ExecContext(ctx, insertLeak,
			report.RunID, l.ID, l.Type, string(l.Severity), l.RevenueAtRisk, l.PriorityScore, pq.Array(l.DealIDs),
		); err != nil {
			return apperrors.NewDatabaseInsertFailedError(fmt.Errorf("audit_leaks: %w", err))
		}
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewDatabaseInsertFailedError(err)
	}
	return nil
}

// CreateAction records a queued follow-up.
func (r *AuditRepository) CreateAction(ctx context.Context, a Action) error {
	if _, err := r.db.ExecContext(ctx, insertAction,
		a.ID, a.Subject, a.LeakID, a.RecommendedAction, a.Status, a.CreatedAt,
	); err != nil {
		return apperrors.NewDatabaseInsertFailedError(fmt.Errorf("leak_actions: %w", err))
	}
	return nil
}

// WeeklyTrend returns one bucket per week for the last `weeks` weeks ending
// with the week containing now. Weeks without runs report zero.
func (r *AuditRepository) WeeklyTrend(ctx context.Context, subject string, weeks int, now time.Time) (leak.WeeklyTrend, error) {
	first := WeekStart(now).AddDate(0, 0, -7*(weeks-1))

	var rows []weekRow
	if err := r.db.SelectContext(ctx, &rows, selectWeekly, subject, first); err != nil {
		return leak.WeeklyTrend{}, apperrors.NewQueryExecutionFailedError("weekly trend", err)
	}

	byWeek := make(map[string]weekRow, len(rows))
	for _, row := range rows {
		byWeek[WeekStart(row.Week).Format("2006-01-02")] = row
	}
	return buildTrend(first, weeks, byWeek), nil
}

// buildTrend lays out `weeks` labelled buckets starting at first.
func buildTrend(first time.Time, weeks int, byWeek map[string]weekRow) leak.WeeklyTrend {
	trend := leak.WeeklyTrend{
		PipelineValue: make([]leak.ValuePoint, 0, weeks),
		LeakCount:     make([]leak.CountPoint, 0, weeks),
	}
	for i := 0; i < weeks; i++ {
		label := fmt.Sprintf("Week %d", i+1)
		row := byWeek[first.AddDate(0, 0, 7*i).Format("2006-01-02")]
		trend.PipelineValue = append(trend.PipelineValue, leak.ValuePoint{Date: label, Value: row.PipelineValue})
		trend.LeakCount = append(trend.LeakCount, leak.CountPoint{Date: label, Count: row.LeakCount})
	}
	return trend
}

// WeekStart truncates t to Monday 00:00 UTC, matching date_trunc('week').
func WeekStart(t time.Time) time.Time {
	t = t.UTC()
	offset := (int(t.Weekday()) + 6) % 7
	y, m, d := t.Date()
	return time.Date(y, m, d-offset, 0, 0, 0, 0, time.UTC)
}

// EmptyTrend is the zero-valued series used when no history is stored.
func EmptyTrend(weeks int) leak.WeeklyTrend {
	return buildTrend(time.Time{}, weeks, nil)
}
