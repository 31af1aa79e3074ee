package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/lexcredit/internal/crm/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const kpiColumns = `id, tenant_id, period, total_leads, meetings, closed_deals, pipeline_cents,
	meeting_rate, close_rate, deal_rate, metadata, created_at, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, kpi *domain.KPI) error {
	metadata := kpi.Metadata
	if metadata == nil {
		metadata = datatypes.JSONMap{}
	}
	return db.WithContext(ctx).Exec(
		`INSERT INTO crm_kpis (`+kpiColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (tenant_id, period) DO UPDATE SET
		     total_leads = excluded.total_leads,
		     meetings = excluded.meetings,
		     closed_deals = excluded.closed_deals,
		     pipeline_cents = excluded.pipeline_cents,
		     meeting_rate = excluded.meeting_rate,
		     close_rate = excluded.close_rate,
		     deal_rate = excluded.deal_rate,
		     metadata = excluded.metadata,
		     updated_at = excluded.updated_at`,
		kpi.ID,
		kpi.TenantID,
		kpi.Period,
		kpi.TotalLeads,
		kpi.Meetings,
		kpi.ClosedDeals,
		kpi.PipelineCents,
		kpi.MeetingRate,
		kpi.CloseRate,
		kpi.DealRate,
		metadata,
		kpi.CreatedAt,
		kpi.UpdatedAt,
	).Error
}

func (r *repo) Find(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, period string) (*domain.KPI, error) {
	var kpi domain.KPI
	err := db.WithContext(ctx).Raw(
		`SELECT `+kpiColumns+` FROM crm_kpis WHERE tenant_id = ? AND period = ?`,
		tenantID, period,
	).Scan(&kpi).Error
	if err != nil {
		return nil, err
	}
	if kpi.ID == 0 {
		return nil, nil
	}
	return &kpi, nil
}
