package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Service interface {
	Get(ctx context.Context, id snowflake.ID) (*Tenant, error)
	List(ctx context.Context) ([]*Tenant, error)
	GetPlan(ctx context.Context, id snowflake.ID) (*Plan, error)
	// FindByBillingIdentity matches by email first, then by the digits of the tax id. Nil when nothing matches.
	FindByBillingIdentity(ctx context.Context, email, taxID string) (*Tenant, error)

	// ResolvePlanLimit returns the per-tenant override, else the plan default, else the configured fallback.
	ResolvePlanLimit(ctx context.Context, tenant *Tenant) (int64, error)

	AddExtraCredits(ctx context.Context, id snowflake.ID, delta int64) (previous int64, current int64, err error)
	// AddExtraCreditsTx is AddExtraCredits running on the caller's transaction.
	AddExtraCreditsTx(ctx context.Context, tx *gorm.DB, id snowflake.ID, delta int64) (previous int64, current int64, err error)
	SetExtraCredits(ctx context.Context, id snowflake.ID, expected, value int64) error
	// SetExtraCreditsTx writes value only while the balance still equals expected.
	SetExtraCreditsTx(ctx context.Context, tx *gorm.DB, id snowflake.ID, expected, value int64) error
	SetGatewayCustomer(ctx context.Context, id snowflake.ID, customerID string) error
	SetSubscription(ctx context.Context, id snowflake.ID, update SubscriptionUpdate) error
	SetSubscriptionTx(ctx context.Context, tx *gorm.DB, id snowflake.ID, update SubscriptionUpdate) error
}

var (
	ErrInvalidTenant       = errors.New("invalid_tenant")
	ErrTenantNotFound      = errors.New("tenant_not_found")
	ErrPlanNotFound        = errors.New("plan_not_found")
	ErrInvalidCustomerID   = errors.New("invalid_gateway_customer_id")
	ErrInvalidSubscription = errors.New("invalid_subscription")
	ErrConcurrentUpdate    = errors.New("tenant_concurrent_update")
)
