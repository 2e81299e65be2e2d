package snapshot

import (
	"context"
	"database/sql"

	apperrors "leak-audit/internal/common/errors"
	"leak-audit/internal/leak"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const selectOpportunities = `
	SELECT id, type, deal_value, last_activity_at, stage, sla_hours, lead_source, deal_ids, owner
	FROM crm_opportunities
	WHERE provider = $1
	ORDER BY deal_value DESC, id`

type opportunityRow struct {
	ID             string          `db:"id"`
	Type           string          `db:"type"`
	DealValue      float64         `db:"deal_value"`
	LastActivityAt sql.NullTime    `db:"last_activity_at"`
	Stage          string          `db:"stage"`
	SLAHours       sql.NullFloat64 `db:"sla_hours"`
	LeadSource     string          `db:"lead_source"`
	DealIDs        pq.StringArray  `db:"deal_ids"`
	Owner          sql.NullString  `db:"owner"`
}

func (r opportunityRow) toOpportunity() leak.Opportunity {
	o := leak.Opportunity{
		ID:           r.ID,
		Type:         r.Type,
		DealValue:    r.DealValue,
		Stage:        r.Stage,
		SLAThreshold: r.SLAHours.Float64,
		LeadSource:   r.LeadSource,
		DealIDs:      []string(r.DealIDs),
		Owner:        r.Owner.String,
	}
	if r.LastActivityAt.Valid {
		t := r.LastActivityAt.Time
		o.LastActivityAt = &t
	}
	return o
}

// PostgresSource reads synced CRM records from crm_opportunities.
type PostgresSource struct {
	db *sqlx.DB
}

func NewPostgresSource(db *sqlx.DB) *PostgresSource {
	return &PostgresSource{db: db}
}

func (s *PostgresSource) Opportunities(ctx context.Context, provider string) ([]leak.Opportunity, error) {
	var rows []opportunityRow
	if err := s.db.SelectContext(ctx, &rows, selectOpportunities, provider); err != nil {
		return nil, apperrors.NewSnapshotUnavailableError(provider, err)
	}

	opps := make([]leak.Opportunity, 0, len(rows))
	for _, r := range rows {
		opps = append(opps, r.toOpportunity())
	}
	return opps, nil
}
