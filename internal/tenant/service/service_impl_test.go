package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/lexcredit/internal/clock"
	"github.com/smallbiznis/lexcredit/internal/config"
	"github.com/smallbiznis/lexcredit/internal/tenant/domain"
	"github.com/smallbiznis/lexcredit/internal/tenant/repository"
	"github.com/smallbiznis/lexcredit/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (domain.Service, *gorm.DB) {
	t.Helper()
	db := dbtest.Open(t)
	svc := New(Params{
		DB:      db,
		Log:     zap.NewNop(),
		Clock:   clock.NewFakeClock(time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)),
		Repo:    repository.Provide(),
		Credits: config.NewStaticCreditConfigHolder(config.DefaultCreditSettings()),
	})
	return svc, db
}

func TestResolvePlanLimitFallbackChain(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	limitedPlan := snowflake.ID(100)
	openPlan := snowflake.ID(101)
	missingPlan := snowflake.ID(999)
	dbtest.InsertPlan(t, db, limitedPlan, "Pro", 19900, dbtest.Int64(5000))
	dbtest.InsertPlan(t, db, openPlan, "Legacy", 9900, nil)

	cases := []struct {
		name   string
		tenant domain.Tenant
		want   int64
	}{
		{name: "override wins", tenant: domain.Tenant{ID: 1, PlanID: &limitedPlan, PlanLimitOverride: dbtest.Int64(7500)}, want: 7500},
		{name: "plan default", tenant: domain.Tenant{ID: 2, PlanID: &limitedPlan}, want: 5000},
		{name: "plan without limit", tenant: domain.Tenant{ID: 3, PlanID: &openPlan}, want: 1000},
		{name: "dangling plan", tenant: domain.Tenant{ID: 4, PlanID: &missingPlan}, want: 1000},
		{name: "no plan", tenant: domain.Tenant{ID: 5}, want: 1000},
		{name: "zero override ignored", tenant: domain.Tenant{ID: 6, PlanID: &limitedPlan, PlanLimitOverride: dbtest.Int64(0)}, want: 5000},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := svc.ResolvePlanLimit(ctx, &tc.tenant)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestAddExtraCreditsIsAtomicIncrement(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	dbtest.InsertTenant(t, db, dbtest.TenantSeed{ID: 1, ExtraCredits: 200})

	prev, cur, err := svc.AddExtraCredits(ctx, 1, 300)
	require.NoError(t, err)
	assert.Equal(t, int64(200), prev)
	assert.Equal(t, int64(500), cur)

	prev, cur, err = svc.AddExtraCredits(ctx, 1, -800)
	require.NoError(t, err)
	assert.Equal(t, int64(500), prev)
	assert.Equal(t, int64(-300), cur)
	assert.Equal(t, int64(-300), dbtest.ExtraCredits(t, db, 1))

	_, _, err = svc.AddExtraCredits(ctx, 42, 10)
	require.ErrorIs(t, err, domain.ErrTenantNotFound)
}

func TestSetExtraCreditsCompareAndSwap(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	dbtest.InsertTenant(t, db, dbtest.TenantSeed{ID: 1, ExtraCredits: 200})

	require.ErrorIs(t, svc.SetExtraCredits(ctx, 1, 150, 0), domain.ErrConcurrentUpdate)
	assert.Equal(t, int64(200), dbtest.ExtraCredits(t, db, 1))

	require.NoError(t, svc.SetExtraCredits(ctx, 1, 200, 0))
	assert.Equal(t, int64(0), dbtest.ExtraCredits(t, db, 1))

	require.ErrorIs(t, svc.SetExtraCredits(ctx, 9, 0, 0), domain.ErrTenantNotFound)
}

func TestSetSubscriptionAndCustomer(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	planID := snowflake.ID(100)
	dbtest.InsertPlan(t, db, planID, "Pro", 19900, nil)
	dbtest.InsertTenant(t, db, dbtest.TenantSeed{ID: 1})

	require.NoError(t, svc.SetGatewayCustomer(ctx, 1, " cus_123 "))
	require.ErrorIs(t, svc.SetGatewayCustomer(ctx, 1, ""), domain.ErrInvalidCustomerID)

	due := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, svc.SetSubscription(ctx, 1, domain.SubscriptionUpdate{
		SubscriptionID: "sub_1",
		Status:         domain.SubscriptionStatusPendingPayment,
		PlanID:         &planID,
		NextDueDate:    &due,
	}))
	require.ErrorIs(t, svc.SetSubscription(ctx, 1, domain.SubscriptionUpdate{SubscriptionID: "sub_1", Status: "weird"}), domain.ErrInvalidSubscription)

	tenant, err := svc.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, tenant.GatewayCustomerID)
	assert.Equal(t, "cus_123", *tenant.GatewayCustomerID)
	require.NotNil(t, tenant.SubscriptionStatus)
	assert.Equal(t, domain.SubscriptionStatusPendingPayment, *tenant.SubscriptionStatus)
	require.NotNil(t, tenant.PlanID)
	assert.Equal(t, planID, *tenant.PlanID)
}

func TestListWalksAllTenants(t *testing.T) {
	svc, db := newTestService(t)
	for i := 1; i <= 3; i++ {
		dbtest.InsertTenant(t, db, dbtest.TenantSeed{ID: snowflake.ID(i)})
	}
	tenants, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, tenants, 3)
	assert.Equal(t, snowflake.ID(1), tenants[0].ID)
}

func TestGetUnknownTenant(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Get(context.Background(), 77)
	require.ErrorIs(t, err, domain.ErrTenantNotFound)
	_, err = svc.GetPlan(context.Background(), 77)
	require.ErrorIs(t, err, domain.ErrPlanNotFound)
}

func TestFindByBillingIdentity(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	dbtest.InsertTenant(t, db, dbtest.TenantSeed{ID: 1, Email: "Billing@Acme.test", TaxID: "123.456.789-09"})
	dbtest.InsertTenant(t, db, dbtest.TenantSeed{ID: 2, Email: "other@beta.test", TaxID: "98765432100"})

	byEmail, err := svc.FindByBillingIdentity(ctx, "billing@acme.test", "")
	require.NoError(t, err)
	require.NotNil(t, byEmail)
	assert.Equal(t, snowflake.ID(1), byEmail.ID)

	byTax, err := svc.FindByBillingIdentity(ctx, "unknown@x.test", "12345678909")
	require.NoError(t, err)
	require.NotNil(t, byTax)
	assert.Equal(t, snowflake.ID(1), byTax.ID)

	none, err := svc.FindByBillingIdentity(ctx, "unknown@x.test", "")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestDigits(t *testing.T) {
	assert.Equal(t, "12345678000190", Digits("12.345.678/0001-90"))
	assert.Equal(t, "", Digits("n/a"))
}
