package dbtest

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var seedTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type TenantSeed struct {
	ID                snowflake.ID
	Name              string
	Email             string
	TaxID             string
	AgentID           string
	CRMToken          string
	PlanID            *snowflake.ID
	PlanLimitOverride *int64
	ExtraCredits      int64
	GatewayCustomerID *string
}

func InsertTenant(t *testing.T, db *gorm.DB, seed TenantSeed) {
	t.Helper()
	if seed.Name == "" {
		seed.Name = "Tenant " + seed.ID.String()
	}
	err := db.Exec(
		`INSERT INTO tenants (id, name, email, tax_id, metering_agent_id, crm_token, plan_id,
			plan_limit_override, extra_credits, gateway_customer_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		seed.ID,
		seed.Name,
		seed.Email,
		seed.TaxID,
		seed.AgentID,
		seed.CRMToken,
		seed.PlanID,
		seed.PlanLimitOverride,
		seed.ExtraCredits,
		seed.GatewayCustomerID,
		seedTime,
		seedTime,
	).Error
	if err != nil {
		t.Fatalf("insert tenant: %v", err)
	}
}

func InsertPlan(t *testing.T, db *gorm.DB, id snowflake.ID, name string, priceCents int64, creditLimit *int64) {
	t.Helper()
	err := db.Exec(
		`INSERT INTO plans (id, name, price_cents, credit_limit, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, name, priceCents, creditLimit, seedTime, seedTime,
	).Error
	if err != nil {
		t.Fatalf("insert plan: %v", err)
	}
}

// ExtraCredits reads the stored pool for a tenant.
func ExtraCredits(t *testing.T, db *gorm.DB, tenantID snowflake.ID) int64 {
	t.Helper()
	var value int64
	if err := db.Raw(`SELECT extra_credits FROM tenants WHERE id = ?`, tenantID).Scan(&value).Error; err != nil {
		t.Fatalf("read extra credits: %v", err)
	}
	return value
}

func Int64(v int64) *int64 { return &v }

func String(v string) *string { return &v }
