package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListFilter struct {
	AfterID snowflake.ID
	Limit   int
}

type Repository interface {
	InsertPlan(ctx context.Context, db *gorm.DB, plan *Plan) error
	FindPlanByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Plan, error)

	Insert(ctx context.Context, db *gorm.DB, tenant *Tenant) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Tenant, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Tenant, error)

	// AddExtraCredits applies delta in a single statement and returns the resulting pool.
	// found is false when the tenant does not exist.
	AddExtraCredits(ctx context.Context, db *gorm.DB, id snowflake.ID, delta int64, now time.Time) (value int64, found bool, err error)
	// CompareAndSetExtraCredits writes value only when the stored pool still equals expected.
	CompareAndSetExtraCredits(ctx context.Context, db *gorm.DB, id snowflake.ID, expected, value int64, now time.Time) (bool, error)

	SetGatewayCustomer(ctx context.Context, db *gorm.DB, id snowflake.ID, customerID string, now time.Time) (bool, error)
	SetSubscription(ctx context.Context, db *gorm.DB, id snowflake.ID, update SubscriptionUpdate, now time.Time) (bool, error)
	FindByEmail(ctx context.Context, db *gorm.DB, email string) (*Tenant, error)
	FindByTaxID(ctx context.Context, db *gorm.DB, digits string) (*Tenant, error)
}
