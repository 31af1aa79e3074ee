package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/lexcredit/internal/consumption/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const recordColumns = `id, tenant_id, period, credits_used, metadata, created_at, updated_at`

const adjustmentColumns = `id, tenant_id, period, action, previous_extra_credits, new_extra_credits,
	amount, current_consumption, reason, admin_user_id, admin_email, created_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertIfAbsent(ctx context.Context, db *gorm.DB, rec *domain.Record) (bool, error) {
	metadata := rec.Metadata
	if metadata == nil {
		metadata = datatypes.JSONMap{}
	}
	result := db.WithContext(ctx).Exec(
		`INSERT INTO consumption_records (`+recordColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (tenant_id, period) DO NOTHING`,
		rec.ID,
		rec.TenantID,
		rec.Period,
		rec.CreditsUsed,
		metadata,
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) FindForUpdate(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, period string) (*domain.Record, error) {
	return r.findOne(ctx, db,
		`SELECT `+recordColumns+` FROM consumption_records
		 WHERE tenant_id = ? AND period = ?`+lockSuffix(db),
		tenantID, period,
	)
}

func (r *repo) Find(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, period string) (*domain.Record, error) {
	return r.findOne(ctx, db,
		`SELECT `+recordColumns+` FROM consumption_records WHERE tenant_id = ? AND period = ?`,
		tenantID, period,
	)
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, query string, args ...any) (*domain.Record, error) {
	var rec domain.Record
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&rec).Error; err != nil {
		return nil, err
	}
	if rec.ID == 0 {
		return nil, nil
	}
	return &rec, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, id snowflake.ID, creditsUsed int64, metadata datatypes.JSONMap, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE consumption_records SET credits_used = ?, metadata = ?, updated_at = ? WHERE id = ?`,
		creditsUsed, metadata, now, id,
	).Error
}

func (r *repo) UpdateMetadata(ctx context.Context, db *gorm.DB, id snowflake.ID, metadata datatypes.JSONMap, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE consumption_records SET metadata = ?, updated_at = ? WHERE id = ?`,
		metadata, now, id,
	).Error
}

func (r *repo) ListByTenant(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, limit int) ([]*domain.Record, error) {
	var records []*domain.Record
	err := db.WithContext(ctx).Raw(
		`SELECT `+recordColumns+` FROM consumption_records
		 WHERE tenant_id = ? ORDER BY period DESC LIMIT ?`,
		tenantID, limit,
	).Scan(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repo) InsertAdjustment(ctx context.Context, db *gorm.DB, entry *domain.AdjustmentEntry) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO credit_adjustments (`+adjustmentColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.TenantID,
		entry.Period,
		entry.Action,
		entry.PreviousExtraCredits,
		entry.NewExtraCredits,
		entry.Amount,
		entry.CurrentConsumption,
		entry.Reason,
		entry.AdminUserID,
		entry.AdminEmail,
		entry.CreatedAt,
	).Error
}

func (r *repo) ListAdjustments(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, period string) ([]*domain.AdjustmentEntry, error) {
	var entries []*domain.AdjustmentEntry
	err := db.WithContext(ctx).Raw(
		`SELECT `+adjustmentColumns+` FROM credit_adjustments
		 WHERE tenant_id = ? AND period = ? ORDER BY created_at ASC, id ASC`,
		tenantID, period,
	).Scan(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// lockSuffix returns a row lock clause for dialects that support one.
func lockSuffix(db *gorm.DB) string {
	if db != nil && db.Dialector != nil && db.Dialector.Name() == "postgres" {
		return " FOR UPDATE"
	}
	return ""
}
