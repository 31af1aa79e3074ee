package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// Upsert writes kpi keyed by (tenant_id, period), replacing the counters of an existing row.
	Upsert(ctx context.Context, db *gorm.DB, kpi *KPI) error
	Find(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, period string) (*KPI, error)
}
