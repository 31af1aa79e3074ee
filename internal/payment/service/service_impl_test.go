package service

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/lexcredit/internal/clock"
	"github.com/smallbiznis/lexcredit/internal/config"
	"github.com/smallbiznis/lexcredit/internal/gateway/asaas"
	gatewaydomain "github.com/smallbiznis/lexcredit/internal/gateway/domain"
	"github.com/smallbiznis/lexcredit/internal/gateway/gatewaytest"
	"github.com/smallbiznis/lexcredit/internal/observability/metrics"
	"github.com/smallbiznis/lexcredit/internal/payment/domain"
	"github.com/smallbiznis/lexcredit/internal/payment/repository"
	provisioningservice "github.com/smallbiznis/lexcredit/internal/provisioning/service"
	tenantdomain "github.com/smallbiznis/lexcredit/internal/tenant/domain"
	tenantrepo "github.com/smallbiznis/lexcredit/internal/tenant/repository"
	tenantservice "github.com/smallbiznis/lexcredit/internal/tenant/service"
	"github.com/smallbiznis/lexcredit/pkg/db/dbtest"
	"github.com/smallbiznis/lexcredit/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	svc     domain.Service
	db      *gorm.DB
	srv     *gatewaytest.Server
	tenants tenantdomain.Service
	clock   *clock.FakeClock
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db := dbtest.Open(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2024, 5, 10, 15, 0, 0, 0, time.UTC))

	settings := config.DefaultCreditSettings()
	settings.ResetTimezone = "UTC"
	settings.SubscriptionPoll = config.PollSettings{Interval: time.Millisecond, Attempts: 4}
	credits := config.NewStaticCreditConfigHolder(settings)

	tenants := tenantservice.New(tenantservice.Params{
		DB: db, Log: zap.NewNop(), Clock: clk, Repo: tenantrepo.Provide(), Credits: credits,
	})
	srv := gatewaytest.NewServer(t)
	gateway := asaas.New(srv.Config(), metrics.NewNop(), zap.NewNop())
	provisioning := provisioningservice.New(provisioningservice.Params{
		Log: zap.NewNop(), Credits: credits, Tenants: tenants, Gateway: gateway,
	})
	svc := New(Params{
		DB:           db,
		Log:          zap.NewNop(),
		GenID:        node,
		Clock:        clk,
		Credits:      credits,
		Repo:         repository.Provide(),
		Tenants:      tenants,
		Provisioning: provisioning,
		Gateway:      gateway,
		Metrics:      metrics.NewNop(),
	})
	return fixture{svc: svc, db: db, srv: srv, tenants: tenants, clock: clk}
}

func seedTenant(t *testing.T, db *gorm.DB) {
	t.Helper()
	dbtest.InsertTenant(t, db, dbtest.TenantSeed{
		ID:           1,
		Name:         "Acme Advocacia",
		Email:        "billing@acme.test",
		TaxID:        "12.345.678/0001-90",
		ExtraCredits: 100,
	})
}

func TestQuoteFollowsPriceTable(t *testing.T) {
	f := newFixture(t)

	quote, err := f.svc.Quote(1500)
	require.NoError(t, err)
	assert.Equal(t, int64(3), quote.Steps)
	assert.Equal(t, int64(12000), quote.AmountCents)
	assert.Equal(t, "BRL", quote.Currency)

	_, err = f.svc.Quote(750)
	assert.ErrorIs(t, err, domain.ErrInvalidCredits)
}

func TestPurchaseCreditsWithPix(t *testing.T) {
	f := newFixture(t)
	seedTenant(t, f.db)

	res, err := f.svc.PurchaseCredits(context.Background(), domain.PurchaseRequest{
		TenantID:      1,
		Credits:       1000,
		BillingMethod: gatewaydomain.BillingMethodPix,
	})
	require.NoError(t, err)
	require.NotNil(t, res.Pix)
	assert.NotEmpty(t, res.Pix.Payload)
	assert.Contains(t, res.InvoiceURL, "https://sandbox.asaas.com/i/")
	assert.Equal(t, domain.StatusPending, res.Transaction.Status)
	assert.Equal(t, int64(8000), res.Transaction.AmountCents)
	assert.Equal(t, "credits_"+res.Transaction.ID.String(), res.Transaction.ExternalReference)

	require.Equal(t, 1, f.srv.Count("POST /customers"))
	require.Equal(t, 1, f.srv.Count("POST /payments"))
	var charge gatewaytest.Request
	for _, r := range f.srv.Requests() {
		if r.Method == http.MethodPost && r.Path == "/payments" {
			charge = r
		}
	}
	assert.Equal(t, 80.0, charge.Body["value"])
	assert.Equal(t, "PIX", charge.Body["billingType"])
	assert.Equal(t, "2024-05-12", charge.Body["dueDate"])
	assert.Equal(t, res.Transaction.ExternalReference, charge.Body["externalReference"])

	dbtest.AssertCount(t, f.db, `SELECT COUNT(*) FROM transactions WHERE status = 'pending' AND invoice_url IS NOT NULL`, 1)
	// Credits are only granted on reconciliation.
	assert.Equal(t, int64(100), dbtest.ExtraCredits(t, f.db, 1))
}

func TestPurchaseCreditsRejectsInvalidInput(t *testing.T) {
	f := newFixture(t)
	seedTenant(t, f.db)
	ctx := context.Background()

	_, err := f.svc.PurchaseCredits(ctx, domain.PurchaseRequest{TenantID: 1, Credits: 750})
	assert.ErrorIs(t, err, domain.ErrInvalidCredits)

	_, err = f.svc.PurchaseCredits(ctx, domain.PurchaseRequest{TenantID: 1, Credits: 500, BillingMethod: "BOLETO"})
	assert.ErrorIs(t, err, domain.ErrInvalidBillingMethod)

	_, err = f.svc.PurchaseCredits(ctx, domain.PurchaseRequest{Credits: 500})
	assert.ErrorIs(t, err, domain.ErrInvalidTenant)

	dbtest.AssertCount(t, f.db, `SELECT COUNT(*) FROM transactions`, 0)
	assert.Empty(t, f.srv.Requests())
}

func TestPurchaseCreditsMarksTransactionFailedOnGatewayError(t *testing.T) {
	f := newFixture(t)
	seedTenant(t, f.db)
	f.srv.Fail("POST /payments", http.StatusBadRequest, "cliente inválido")

	_, err := f.svc.PurchaseCredits(context.Background(), domain.PurchaseRequest{TenantID: 1, Credits: 500})
	require.ErrorIs(t, err, gatewaydomain.ErrGatewayRejected)

	dbtest.AssertCount(t, f.db,
		`SELECT COUNT(*) FROM transactions WHERE status = 'failed' AND failure_reason = ?`, 1, "cliente inválido")
	assert.Equal(t, int64(100), dbtest.ExtraCredits(t, f.db, 1))
}

func TestPurchaseCreditsNeedsTaxIDForNewCustomer(t *testing.T) {
	f := newFixture(t)
	dbtest.InsertTenant(t, f.db, dbtest.TenantSeed{ID: 1, Email: "nobody@acme.test"})

	_, err := f.svc.PurchaseCredits(context.Background(), domain.PurchaseRequest{TenantID: 1, Credits: 500})
	require.Error(t, err)
	dbtest.AssertCount(t, f.db, `SELECT COUNT(*) FROM transactions WHERE status = 'failed'`, 1)
	assert.Zero(t, f.srv.Count("POST /payments"))
}

func TestSubscribeToPlanWaitsForFirstInvoice(t *testing.T) {
	f := newFixture(t)
	seedTenant(t, f.db)
	dbtest.InsertPlan(t, f.db, 10, "Pro", 29900, dbtest.Int64(5000))
	f.srv.DelayInvoices(2)
	ctx := context.Background()

	res, err := f.svc.SubscribeToPlan(ctx, domain.SubscribeRequest{TenantID: 1, PlanID: 10})
	require.NoError(t, err)
	assert.NotEmpty(t, res.SubscriptionID)
	assert.NotEmpty(t, res.InvoiceURL)
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), res.NextDueDate.UTC())
	assert.Equal(t, 3, f.srv.Count("GET /subscriptions/"+res.SubscriptionID+"/payments"))

	assert.Equal(t, domain.KindSubscription, res.Transaction.Kind)
	assert.Equal(t, int64(29900), res.Transaction.AmountCents)
	assert.Equal(t, res.SubscriptionID, res.Transaction.Metadata[domain.MetadataGatewaySubscriptionID])

	tenant, err := f.tenants.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, tenant.SubscriptionStatus)
	assert.Equal(t, tenantdomain.SubscriptionStatusPendingPayment, *tenant.SubscriptionStatus)
	require.NotNil(t, tenant.PlanID)
	assert.Equal(t, snowflake.ID(10), *tenant.PlanID)
}

func TestSubscribeToPlanFailsWhenInvoiceNeverAppears(t *testing.T) {
	f := newFixture(t)
	seedTenant(t, f.db)
	dbtest.InsertPlan(t, f.db, 10, "Pro", 29900, nil)
	f.srv.DelayInvoices(100)
	ctx := context.Background()

	_, err := f.svc.SubscribeToPlan(ctx, domain.SubscribeRequest{TenantID: 1, PlanID: 10})
	require.ErrorIs(t, err, domain.ErrInvoiceNotReady)

	dbtest.AssertCount(t, f.db,
		`SELECT COUNT(*) FROM transactions WHERE status = 'failed' AND failure_reason = ?`, 1, domain.FailureInvoiceNotReady)
	var metadata string
	require.NoError(t, f.db.Raw(`SELECT metadata FROM transactions`).Scan(&metadata).Error)
	assert.Contains(t, metadata, domain.MetadataGatewaySubscriptionID)
	assert.Contains(t, metadata, domain.MetadataSubscriptionCancelled)

	// The gateway subscription is gone, so no invoice can be paid behind a failed row.
	require.Equal(t, 1, f.srv.Count("POST /subscriptions"))
	subs := f.srv.Requests()
	var subID string
	for _, r := range subs {
		if r.Method == http.MethodDelete {
			subID = r.Path[len("/subscriptions/"):]
		}
	}
	require.NotEmpty(t, subID)
	stored, ok := f.srv.Subscription(subID)
	require.True(t, ok)
	assert.Equal(t, "DELETED", stored.Status)

	tenant, err := f.tenants.Get(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, tenant.SubscriptionID)

	// Retrying after a cancelled attempt starts a fresh subscription.
	f.srv.DelayInvoices(0)
	res, err := f.svc.SubscribeToPlan(ctx, domain.SubscribeRequest{TenantID: 1, PlanID: 10})
	require.NoError(t, err)
	assert.NotEqual(t, subID, res.SubscriptionID)
	assert.Equal(t, 2, f.srv.Count("POST /subscriptions"))
}

func TestSubscribeToPlanKeepsLiveSubscriptionReconcilable(t *testing.T) {
	f := newFixture(t)
	seedTenant(t, f.db)
	dbtest.InsertPlan(t, f.db, 10, "Pro", 29900, nil)
	f.srv.DelayInvoices(100)
	f.srv.Fail("DELETE /subscriptions/*", http.StatusInternalServerError, "indisponível")
	ctx := context.Background()

	_, err := f.svc.SubscribeToPlan(ctx, domain.SubscribeRequest{TenantID: 1, PlanID: 10})
	require.ErrorIs(t, err, domain.ErrInvoiceNotReady)
	require.Equal(t, 1, f.srv.Count("POST /subscriptions"))

	dbtest.AssertCount(t, f.db, `SELECT COUNT(*) FROM transactions WHERE status = 'pending'`, 1)
	tenant, err := f.tenants.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, tenant.SubscriptionID)
	require.NotNil(t, tenant.SubscriptionStatus)
	assert.Equal(t, tenantdomain.SubscriptionStatusPendingPayment, *tenant.SubscriptionStatus)
	subID := *tenant.SubscriptionID

	var ref string
	require.NoError(t, f.db.Raw(`SELECT external_reference FROM transactions`).Scan(&ref).Error)

	// The payer settles the invoice the gateway created after polling gave up.
	res, err := f.svc.Reconcile(ctx, domain.ReconcileRequest{
		ExternalReference: ref,
		Outcome:           domain.OutcomePaid,
	})
	require.NoError(t, err)
	assert.False(t, res.AlreadyProcessed)
	assert.Equal(t, domain.StatusPaid, res.Transaction.Status)

	tenant, err = f.tenants.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, tenant.SubscriptionStatus)
	assert.Equal(t, tenantdomain.SubscriptionStatusActive, *tenant.SubscriptionStatus)
	assert.Equal(t, subID, *tenant.SubscriptionID)
}

func TestSubscribeToPlanRetryReusesOutstandingSubscription(t *testing.T) {
	f := newFixture(t)
	seedTenant(t, f.db)
	dbtest.InsertPlan(t, f.db, 10, "Pro", 29900, nil)
	f.srv.DelayInvoices(100)
	f.srv.Fail("DELETE /subscriptions/*", http.StatusInternalServerError, "indisponível")
	ctx := context.Background()

	_, err := f.svc.SubscribeToPlan(ctx, domain.SubscribeRequest{TenantID: 1, PlanID: 10})
	require.ErrorIs(t, err, domain.ErrInvoiceNotReady)

	f.srv.DelayInvoices(0)
	res, err := f.svc.SubscribeToPlan(ctx, domain.SubscribeRequest{TenantID: 1, PlanID: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, f.srv.Count("POST /subscriptions"))
	assert.NotEmpty(t, res.InvoiceURL)
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), res.NextDueDate.UTC())
	dbtest.AssertCount(t, f.db, `SELECT COUNT(*) FROM transactions`, 1)
	dbtest.AssertCount(t, f.db, `SELECT COUNT(*) FROM transactions WHERE invoice_url IS NOT NULL`, 1)

	// A second retry returns the stored invoice without polling again.
	polls := f.srv.Count("GET /subscriptions/" + res.SubscriptionID + "/payments")
	again, err := f.svc.SubscribeToPlan(ctx, domain.SubscribeRequest{TenantID: 1, PlanID: 10})
	require.NoError(t, err)
	assert.Equal(t, res.InvoiceURL, again.InvoiceURL)
	assert.Equal(t, polls, f.srv.Count("GET /subscriptions/"+res.SubscriptionID+"/payments"))
	assert.Equal(t, 1, f.srv.Count("POST /subscriptions"))
}

func TestSubscribeToPlanRequiresPricedPlan(t *testing.T) {
	f := newFixture(t)
	seedTenant(t, f.db)
	dbtest.InsertPlan(t, f.db, 10, "Legacy", 0, nil)

	_, err := f.svc.SubscribeToPlan(context.Background(), domain.SubscribeRequest{TenantID: 1, PlanID: 10})
	assert.ErrorIs(t, err, domain.ErrPlanNotPriced)
	dbtest.AssertCount(t, f.db, `SELECT COUNT(*) FROM transactions`, 0)
}

func TestReconcilePaidPurchaseGrantsCreditsOnce(t *testing.T) {
	f := newFixture(t)
	seedTenant(t, f.db)
	ctx := context.Background()

	purchase, err := f.svc.PurchaseCredits(ctx, domain.PurchaseRequest{TenantID: 1, Credits: 1000})
	require.NoError(t, err)
	req := domain.ReconcileRequest{
		ExternalReference: purchase.Transaction.ExternalReference,
		Outcome:           domain.OutcomePaid,
		GatewayID:         *purchase.Transaction.GatewayID,
	}

	res, err := f.svc.Reconcile(ctx, req)
	require.NoError(t, err)
	assert.False(t, res.AlreadyProcessed)
	assert.Equal(t, domain.StatusPaid, res.Transaction.Status)
	require.NotNil(t, res.Transaction.PaidAt)
	assert.Equal(t, int64(1100), dbtest.ExtraCredits(t, f.db, 1))

	again, err := f.svc.Reconcile(ctx, req)
	require.NoError(t, err)
	assert.True(t, again.AlreadyProcessed)
	assert.Equal(t, int64(1100), dbtest.ExtraCredits(t, f.db, 1))
}

func TestReconcileFailedPurchaseLeavesCredits(t *testing.T) {
	f := newFixture(t)
	seedTenant(t, f.db)
	ctx := context.Background()

	purchase, err := f.svc.PurchaseCredits(ctx, domain.PurchaseRequest{TenantID: 1, Credits: 500})
	require.NoError(t, err)

	res, err := f.svc.Reconcile(ctx, domain.ReconcileRequest{
		ExternalReference: purchase.Transaction.ExternalReference,
		Outcome:           domain.OutcomeFailed,
		Reason:            "card_declined",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, res.Transaction.Status)
	require.NotNil(t, res.Transaction.FailureReason)
	assert.Equal(t, "card_declined", *res.Transaction.FailureReason)
	assert.Equal(t, int64(100), dbtest.ExtraCredits(t, f.db, 1))

	// A late payment notice cannot resurrect a failed transaction.
	late, err := f.svc.Reconcile(ctx, domain.ReconcileRequest{
		ExternalReference: purchase.Transaction.ExternalReference,
		Outcome:           domain.OutcomePaid,
	})
	require.NoError(t, err)
	assert.True(t, late.AlreadyProcessed)
	assert.Equal(t, int64(100), dbtest.ExtraCredits(t, f.db, 1))
}

func TestReconcilePaidSubscriptionActivatesTenant(t *testing.T) {
	f := newFixture(t)
	seedTenant(t, f.db)
	dbtest.InsertPlan(t, f.db, 10, "Pro", 29900, nil)
	ctx := context.Background()

	sub, err := f.svc.SubscribeToPlan(ctx, domain.SubscribeRequest{TenantID: 1, PlanID: 10})
	require.NoError(t, err)

	_, err = f.svc.Reconcile(ctx, domain.ReconcileRequest{
		ExternalReference: sub.Transaction.ExternalReference,
		Outcome:           domain.OutcomePaid,
	})
	require.NoError(t, err)

	tenant, err := f.tenants.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, tenant.SubscriptionStatus)
	assert.Equal(t, tenantdomain.SubscriptionStatusActive, *tenant.SubscriptionStatus)
	require.NotNil(t, tenant.SubscriptionID)
	assert.Equal(t, sub.SubscriptionID, *tenant.SubscriptionID)
	assert.Equal(t, int64(100), dbtest.ExtraCredits(t, f.db, 1))
}

func TestReconcileValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Reconcile(ctx, domain.ReconcileRequest{ExternalReference: "  ", Outcome: domain.OutcomePaid})
	assert.ErrorIs(t, err, domain.ErrInvalidReconcile)

	_, err = f.svc.Reconcile(ctx, domain.ReconcileRequest{ExternalReference: "credits_1", Outcome: "refunded"})
	assert.ErrorIs(t, err, domain.ErrInvalidReconcile)

	_, err = f.svc.Reconcile(ctx, domain.ReconcileRequest{ExternalReference: "credits_404", Outcome: domain.OutcomePaid})
	assert.ErrorIs(t, err, domain.ErrTransactionNotFound)
}

func TestListTransactionsPaginates(t *testing.T) {
	f := newFixture(t)
	seedTenant(t, f.db)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.svc.PurchaseCredits(ctx, domain.PurchaseRequest{TenantID: 1, Credits: 500})
		require.NoError(t, err)
		f.clock.Advance(time.Minute)
	}

	first, err := f.svc.ListTransactions(ctx, domain.ListTransactionsRequest{
		Pagination: pagination.Pagination{PageSize: 2},
		TenantID:   1,
	})
	require.NoError(t, err)
	require.Len(t, first.Transactions, 2)
	assert.True(t, first.PageInfo.HasMore)
	assert.True(t, first.Transactions[0].CreatedAt.After(first.Transactions[1].CreatedAt))

	second, err := f.svc.ListTransactions(ctx, domain.ListTransactionsRequest{
		Pagination: pagination.Pagination{PageSize: 2, PageToken: first.PageInfo.NextPageToken},
		TenantID:   1,
	})
	require.NoError(t, err)
	require.Len(t, second.Transactions, 1)
	assert.False(t, second.PageInfo.HasMore)

	_, err = f.svc.ListTransactions(ctx, domain.ListTransactionsRequest{
		Pagination: pagination.Pagination{PageToken: "garbage"},
		TenantID:   1,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidPageToken)
}
