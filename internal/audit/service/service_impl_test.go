package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/lexcredit/internal/audit/domain"
	"github.com/smallbiznis/lexcredit/internal/audit/repository"
	"github.com/smallbiznis/lexcredit/internal/auditcontext"
	"github.com/smallbiznis/lexcredit/internal/clock"
	"github.com/smallbiznis/lexcredit/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (auditdomain.Service, *gorm.DB, *clock.FakeClock) {
	t.Helper()
	db := dbtest.Open(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC))
	svc := NewService(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Repo:  repository.Provide(),
	})
	return svc, db, clk
}

func TestAuditLogResolvesActorFromContext(t *testing.T) {
	svc, db, _ := newTestService(t)

	ctx := auditcontext.WithActor(context.Background(), auditcontext.Actor{
		Type:  auditcontext.ActorTypeUser,
		ID:    "99",
		Email: "ops@example.com",
		Role:  "admin",
	})
	ctx = auditcontext.WithRequestID(ctx, "req-1")
	ctx = auditcontext.WithIPAddress(ctx, "10.0.0.1")

	tenantID := snowflake.ID(7)
	target := "7"
	err := svc.AuditLog(ctx, &tenantID, "", nil, "credits.adjusted", "tenant", &target, map[string]any{
		"action": "add_credits",
		"tax_id": "12345678901",
	})
	require.NoError(t, err)

	var row auditdomain.AuditLog
	require.NoError(t, db.First(&row).Error)
	assert.Equal(t, "user", row.ActorType)
	require.NotNil(t, row.ActorID)
	assert.Equal(t, "99", *row.ActorID)
	require.NotNil(t, row.ActorEmail)
	assert.Equal(t, "ops@example.com", *row.ActorEmail)
	require.NotNil(t, row.TenantID)
	assert.Equal(t, tenantID, *row.TenantID)
	assert.Equal(t, "req-1", row.Metadata["request_id"])
	assert.Equal(t, "****01", row.Metadata["tax_id"])
	require.NotNil(t, row.IPAddress)
	assert.Equal(t, "10.0.0.1", *row.IPAddress)
}

func TestAuditLogDefaultsToSystemActor(t *testing.T) {
	svc, db, _ := newTestService(t)

	require.NoError(t, svc.AuditLog(context.Background(), nil, "", nil, "scheduler.monthly_reset", "job", nil, nil))
	dbtest.AssertCount(t, db, "SELECT COUNT(*) FROM audit_logs WHERE actor_type = 'system' AND tenant_id IS NULL", 1)
}

func TestAuditLogRequiresAction(t *testing.T) {
	svc, _, _ := newTestService(t)
	err := svc.AuditLog(context.Background(), nil, "", nil, " ", "tenant", nil, nil)
	require.ErrorIs(t, err, auditdomain.ErrInvalidAction)
}

func TestListPaginatesNewestFirst(t *testing.T) {
	svc, _, clk := newTestService(t)
	ctx := context.Background()
	tenantID := snowflake.ID(11)

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.AuditLog(ctx, &tenantID, "", nil, "payment.purchase_created", "transaction", nil, map[string]any{"n": i}))
		clk.Advance(time.Minute)
	}
	other := snowflake.ID(12)
	require.NoError(t, svc.AuditLog(ctx, &other, "", nil, "payment.purchase_created", "transaction", nil, nil))

	first, err := svc.List(ctx, auditdomain.ListAuditLogRequest{TenantID: &tenantID, Pagination: paginationOf(2, "")})
	require.NoError(t, err)
	require.Len(t, first.AuditLogs, 2)
	assert.True(t, first.HasMore)
	assert.True(t, first.AuditLogs[0].CreatedAt.After(first.AuditLogs[1].CreatedAt))

	second, err := svc.List(ctx, auditdomain.ListAuditLogRequest{TenantID: &tenantID, Pagination: paginationOf(2, first.NextPageToken)})
	require.NoError(t, err)
	require.Len(t, second.AuditLogs, 1)
	assert.False(t, second.HasMore)
}

func TestListRejectsBadInput(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.List(ctx, auditdomain.ListAuditLogRequest{Pagination: paginationOf(10, "garbage")})
	require.ErrorIs(t, err, auditdomain.ErrInvalidPageToken)

	start := time.Now()
	end := start.Add(-time.Hour)
	_, err = svc.List(ctx, auditdomain.ListAuditLogRequest{StartAt: &start, EndAt: &end})
	require.ErrorIs(t, err, auditdomain.ErrInvalidTimeRange)
}
