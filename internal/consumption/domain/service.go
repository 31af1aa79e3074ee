package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/lexcredit/internal/period"
	"gorm.io/gorm"
)

type Service interface {
	// RecordUsage upserts credits_used for the period, merging raw into the stored metadata.
	RecordUsage(ctx context.Context, tenantID snowflake.ID, p period.Period, creditsUsed int64, raw map[string]any) (*Record, error)
	// ResetPeriod upserts the period with zero consumption and reset metadata.
	ResetPeriod(ctx context.Context, tenantID snowflake.ID, p period.Period, resetAt time.Time) (*Record, error)
	// AppendAdjustment logs entry and refreshes the record's adjustment view inside tx.
	// creditsUsedOnInsert applies only when the record does not exist yet.
	AppendAdjustment(ctx context.Context, tx *gorm.DB, entry *AdjustmentEntry, creditsUsedOnInsert int64) (*Record, error)

	Get(ctx context.Context, tenantID snowflake.ID, p period.Period) (*Record, error)
	History(ctx context.Context, tenantID snowflake.ID, limit int) ([]*Record, error)
	ListAdjustments(ctx context.Context, tenantID snowflake.ID, p period.Period) ([]*AdjustmentEntry, error)
}

var (
	ErrInvalidTenant     = errors.New("invalid_tenant")
	ErrInvalidPeriod     = errors.New("invalid_period")
	ErrInvalidAdjustment = errors.New("invalid_adjustment")
	ErrRecordNotFound    = errors.New("consumption_record_not_found")
)
