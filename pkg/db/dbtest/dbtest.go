// Package dbtest opens throwaway SQLite databases carrying the credit ledger schema.
package dbtest

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var seq atomic.Int64

var schema = []string{
	`CREATE TABLE plans (
		id BIGINT PRIMARY KEY,
		name TEXT NOT NULL,
		price_cents BIGINT NOT NULL,
		credit_limit BIGINT,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE tenants (
		id BIGINT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		tax_id TEXT NOT NULL DEFAULT '',
		metering_agent_id TEXT NOT NULL DEFAULT '',
		crm_token TEXT NOT NULL DEFAULT '',
		plan_id BIGINT,
		plan_limit_override BIGINT,
		extra_credits BIGINT NOT NULL DEFAULT 0,
		gateway_customer_id TEXT,
		subscription_id TEXT,
		subscription_status TEXT,
		next_due_date TIMESTAMP,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE consumption_records (
		id BIGINT PRIMARY KEY,
		tenant_id BIGINT NOT NULL,
		period TEXT NOT NULL,
		credits_used BIGINT NOT NULL DEFAULT 0,
		metadata TEXT NOT NULL DEFAULT '{}',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE UNIQUE INDEX ux_consumption_records_tenant_period ON consumption_records(tenant_id, period)`,
	`CREATE TABLE credit_adjustments (
		id BIGINT PRIMARY KEY,
		tenant_id BIGINT NOT NULL,
		period TEXT NOT NULL,
		action TEXT NOT NULL,
		previous_extra_credits BIGINT NOT NULL,
		new_extra_credits BIGINT NOT NULL,
		amount BIGINT,
		current_consumption BIGINT,
		reason TEXT NOT NULL,
		admin_user_id TEXT NOT NULL DEFAULT '',
		admin_email TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE transactions (
		id BIGINT PRIMARY KEY,
		tenant_id BIGINT NOT NULL,
		kind TEXT NOT NULL,
		amount_cents BIGINT NOT NULL,
		currency TEXT NOT NULL DEFAULT 'BRL',
		status TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		billing_method TEXT NOT NULL DEFAULT 'UNDEFINED',
		external_reference TEXT NOT NULL,
		gateway_id TEXT,
		invoice_url TEXT,
		failure_reason TEXT,
		metadata TEXT NOT NULL DEFAULT '{}',
		paid_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE UNIQUE INDEX ux_transactions_external_reference ON transactions(external_reference)`,
	`CREATE TABLE crm_kpis (
		id BIGINT PRIMARY KEY,
		tenant_id BIGINT NOT NULL,
		period TEXT NOT NULL,
		total_leads BIGINT NOT NULL DEFAULT 0,
		meetings BIGINT NOT NULL DEFAULT 0,
		closed_deals BIGINT NOT NULL DEFAULT 0,
		pipeline_cents BIGINT NOT NULL DEFAULT 0,
		meeting_rate REAL NOT NULL DEFAULT 0,
		close_rate REAL NOT NULL DEFAULT 0,
		deal_rate REAL NOT NULL DEFAULT 0,
		metadata TEXT NOT NULL DEFAULT '{}',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE UNIQUE INDEX ux_crm_kpis_tenant_period ON crm_kpis(tenant_id, period)`,
	`CREATE TABLE audit_logs (
		id BIGINT PRIMARY KEY,
		tenant_id BIGINT,
		actor_type TEXT NOT NULL,
		actor_id TEXT,
		actor_email TEXT,
		action TEXT NOT NULL,
		target_type TEXT NOT NULL,
		target_id TEXT,
		metadata TEXT NOT NULL DEFAULT '{}',
		ip_address TEXT,
		user_agent TEXT,
		created_at TIMESTAMP NOT NULL
	)`,
}

// Open returns a fresh shared-cache in-memory database with every ledger table created.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_%d_%d?mode=memory&cache=shared", time.Now().UnixNano(), seq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// Shared-cache SQLite rejects concurrent writers with "table is locked".
	sqlDB.SetMaxOpenConns(1)

	for _, stmt := range schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}

	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// AssertCount fails the test when the query does not return the expected count.
func AssertCount(t *testing.T, db *gorm.DB, query string, expected int64, args ...any) {
	t.Helper()

	var count int64
	if err := db.Raw(query, args...).Scan(&count).Error; err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	if count != expected {
		t.Fatalf("expected %d rows, got %d for %q", expected, count, query)
	}
}
