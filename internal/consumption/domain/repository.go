package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Repository interface {
	// InsertIfAbsent inserts rec unless a record for (tenant, period) exists. It reports whether a row was written.
	InsertIfAbsent(ctx context.Context, db *gorm.DB, rec *Record) (bool, error)
	// FindForUpdate reads the record, row-locking it where the dialect supports it.
	FindForUpdate(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, period string) (*Record, error)
	Find(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, period string) (*Record, error)
	Update(ctx context.Context, db *gorm.DB, id snowflake.ID, creditsUsed int64, metadata datatypes.JSONMap, now time.Time) error
	UpdateMetadata(ctx context.Context, db *gorm.DB, id snowflake.ID, metadata datatypes.JSONMap, now time.Time) error
	ListByTenant(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, limit int) ([]*Record, error)

	InsertAdjustment(ctx context.Context, db *gorm.DB, entry *AdjustmentEntry) error
	ListAdjustments(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, period string) ([]*AdjustmentEntry, error)
}
