package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/lexcredit/internal/tenant/domain"
	"gorm.io/gorm"
)

const tenantColumns = `id, name, email, tax_id, metering_agent_id, crm_token, plan_id, plan_limit_override,
	extra_credits, gateway_customer_id, subscription_id, subscription_status, next_due_date,
	created_at, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertPlan(ctx context.Context, db *gorm.DB, plan *domain.Plan) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO plans (id, name, price_cents, credit_limit, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		plan.ID,
		plan.Name,
		plan.PriceCents,
		plan.CreditLimit,
		plan.CreatedAt,
		plan.UpdatedAt,
	).Error
}

func (r *repo) FindPlanByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Plan, error) {
	var plan domain.Plan
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, price_cents, credit_limit, created_at, updated_at
		 FROM plans WHERE id = ?`,
		id,
	).Scan(&plan).Error
	if err != nil {
		return nil, err
	}
	if plan.ID == 0 {
		return nil, nil
	}
	return &plan, nil
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, tenant *domain.Tenant) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO tenants (`+tenantColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tenant.ID,
		tenant.Name,
		tenant.Email,
		tenant.TaxID,
		tenant.MeteringAgentID,
		tenant.CRMToken,
		tenant.PlanID,
		tenant.PlanLimitOverride,
		tenant.ExtraCredits,
		tenant.GatewayCustomerID,
		tenant.SubscriptionID,
		tenant.SubscriptionStatus,
		tenant.NextDueDate,
		tenant.CreatedAt,
		tenant.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Tenant, error) {
	return r.findOne(ctx, db, `SELECT `+tenantColumns+` FROM tenants WHERE id = ?`, id)
}

func (r *repo) FindByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.Tenant, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, nil
	}
	return r.findOne(ctx, db,
		`SELECT `+tenantColumns+` FROM tenants WHERE LOWER(email) = ? ORDER BY id LIMIT 1`,
		email,
	)
}

// FindByTaxID matches on the digits of the stored tax id so formatted and bare values compare equal.
func (r *repo) FindByTaxID(ctx context.Context, db *gorm.DB, digits string) (*domain.Tenant, error) {
	if digits == "" {
		return nil, nil
	}
	return r.findOne(ctx, db,
		`SELECT `+tenantColumns+` FROM tenants
		 WHERE REPLACE(REPLACE(REPLACE(REPLACE(tax_id, '.', ''), '-', ''), '/', ''), ' ', '') = ?
		 ORDER BY id LIMIT 1`,
		digits,
	)
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, query string, args ...any) (*domain.Tenant, error) {
	var tenant domain.Tenant
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&tenant).Error; err != nil {
		return nil, err
	}
	if tenant.ID == 0 {
		return nil, nil
	}
	return &tenant, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.Tenant, error) {
	var tenants []*domain.Tenant
	stmt := db.WithContext(ctx).Model(&domain.Tenant{}).Where("id > ?", filter.AfterID)
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit)
	}
	if err := stmt.Order("id asc").Find(&tenants).Error; err != nil {
		return nil, err
	}
	return tenants, nil
}

func (r *repo) AddExtraCredits(ctx context.Context, db *gorm.DB, id snowflake.ID, delta int64, now time.Time) (int64, bool, error) {
	var row struct {
		ExtraCredits int64 `gorm:"column:extra_credits"`
	}
	result := db.WithContext(ctx).Raw(
		`UPDATE tenants
		 SET extra_credits = extra_credits + ?, updated_at = ?
		 WHERE id = ?
		 RETURNING extra_credits`,
		delta,
		now,
		id,
	).Scan(&row)
	if result.Error != nil {
		return 0, false, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, false, nil
	}
	return row.ExtraCredits, true, nil
}

func (r *repo) CompareAndSetExtraCredits(ctx context.Context, db *gorm.DB, id snowflake.ID, expected, value int64, now time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE tenants
		 SET extra_credits = ?, updated_at = ?
		 WHERE id = ? AND extra_credits = ?`,
		value,
		now,
		id,
		expected,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) SetGatewayCustomer(ctx context.Context, db *gorm.DB, id snowflake.ID, customerID string, now time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE tenants SET gateway_customer_id = ?, updated_at = ? WHERE id = ?`,
		customerID,
		now,
		id,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) SetSubscription(ctx context.Context, db *gorm.DB, id snowflake.ID, update domain.SubscriptionUpdate, now time.Time) (bool, error) {
	sets := []string{"subscription_id = ?", "subscription_status = ?", "updated_at = ?"}
	args := []any{update.SubscriptionID, string(update.Status), now}
	if update.PlanID != nil {
		sets = append(sets, "plan_id = ?")
		args = append(args, *update.PlanID)
	}
	if update.NextDueDate != nil {
		sets = append(sets, "next_due_date = ?")
		args = append(args, update.NextDueDate.UTC())
	}
	args = append(args, id)

	result := db.WithContext(ctx).Exec(
		`UPDATE tenants SET `+strings.Join(sets, ", ")+` WHERE id = ?`,
		args...,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
