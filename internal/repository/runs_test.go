package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	apperrors "leak-audit/internal/common/errors"
	"leak-audit/internal/leak"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "postgres"), mock
}

func testReport() leak.Report {
	return leak.Report{
		RunID:    "7f1c0c1e-0000-4000-8000-000000000001",
		Subject:  "ops@acme.io",
		Provider: "hubspot",
		Leaks: []leak.Leak{
			{ID: "leak-2", Type: "Stalled Negotiation", Severity: leak.SeverityCritical, RevenueAtRisk: 70000, PriorityScore: 140000, DealIDs: []string{"#402", "#112"}},
			{ID: "leak-1", Type: "Unworked High-Intent", Severity: leak.SeverityCritical, RevenueAtRisk: 38400, PriorityScore: 49920, DealIDs: []string{"#882"}},
		},
		Summary:    leak.Summary{Total: 2, Critical: 2, TotalRevenueAtRisk: 108400},
		AnalyzedAt: time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC),
	}
}

func TestSaveRun(t *testing.T) {
	db, mock := setupMockDB(t)
	report := testReport()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_runs")).
		WithArgs(report.RunID, "ops@acme.io", "hubspot", 2, 2, 108400.0, 260000.0, report.AnalyzedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_leaks")).
		WithArgs(report.RunID, "leak-2", "Stalled Negotiation", "CRITICAL", 70000.0, 140000.0, "{\"#402\",\"#112\"}").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_leaks")).
		WithArgs(report.RunID, "leak-1", "Unworked High-Intent", "CRITICAL", 38400.0, 49920.0, "{\"#882\"}").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := NewAuditRepository(db).SaveRun(context.Background(), report, 260000)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRun_RollsBackOnLeakInsertFailure(t *testing.T) {
	db, mock := setupMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO audit_runs").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO audit_leaks").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := NewAuditRepository(db).SaveRun(context.Background(), testReport(), 0)

	stdErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeDatabaseInsertFailed, stdErr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAction(t *testing.T) {
	db, mock := setupMockDB(t)
	created := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO leak_actions")).
		WithArgs("act-1", "ops@acme.io", "leak-2", "Send exec email", "created", created).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := NewAuditRepository(db).CreateAction(context.Background(), Action{
		ID: "act-1", Subject: "ops@acme.io", LeakID: "leak-2",
		RecommendedAction: "Send exec email", Status: "created", CreatedAt: created,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWeeklyTrend(t *testing.T) {
	db, mock := setupMockDB(t)
	now := time.Date(2026, 3, 4, 15, 0, 0, 0, time.UTC) // Wednesday
	first := time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("date_trunc('week', created_at AT TIME ZONE 'UTC') AS week")).
		WithArgs("ops@acme.io", first).
		WillReturnRows(sqlmock.NewRows([]string{"week", "pipeline_value", "leak_count"}).
			AddRow(time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC), 980000.0, 3).
			AddRow(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), 1240000.0, 4))

	trend, err := NewAuditRepository(db).WeeklyTrend(context.Background(), "ops@acme.io", 4, now)
	require.NoError(t, err)

	assert.Equal(t, []leak.ValuePoint{
		{Date: "Week 1", Value: 980000},
		{Date: "Week 2", Value: 0},
		{Date: "Week 3", Value: 0},
		{Date: "Week 4", Value: 1240000},
	}, trend.PipelineValue)
	assert.Equal(t, 3, trend.LeakCount[0].Count)
	assert.Equal(t, 0, trend.LeakCount[1].Count)
	assert.Equal(t, 4, trend.LeakCount[3].Count)
}

func TestWeeklyTrend_QueryError(t *testing.T) {
	db, mock := setupMockDB(t)
	mock.ExpectQuery("SELECT").WillReturnError(errors.New("timeout"))

	_, err := NewAuditRepository(db).WeeklyTrend(context.Background(), "x", 4, time.Now())

	stdErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeQueryExecutionFailed, stdErr.Code)
}

func TestWeekStart(t *testing.T) {
	tests := map[time.Time]time.Time{
		time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC):   time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 8, 23, 59, 0, 0, time.UTC): time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC):  time.Date(2026, 2, 23, 0, 0, 0, 0, time.UTC),
	}
	for in, want := range tests {
		assert.Equal(t, want, WeekStart(in), in.String())
	}
}
