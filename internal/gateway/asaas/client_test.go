package asaas

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/smallbiznis/lexcredit/internal/config"
	"github.com/smallbiznis/lexcredit/internal/gateway/domain"
	"github.com/smallbiznis/lexcredit/internal/gateway/gatewaytest"
	"github.com/smallbiznis/lexcredit/internal/observability/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newClient(t *testing.T) (*Client, *gatewaytest.Server) {
	t.Helper()
	srv := gatewaytest.NewServer(t)
	return New(srv.Config(), metrics.NewNop(), zap.NewNop()), srv
}

func TestCustomerSearchAndCreate(t *testing.T) {
	client, srv := newClient(t)
	ctx := context.Background()
	srv.AddCustomer(domain.Customer{ID: "cus_1", Name: "Acme", Email: "billing@acme.test", CpfCnpj: "12345678000190"})

	found, err := client.FindCustomerByEmail(ctx, "billing@acme.test")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "cus_1", found.ID)

	missing, err := client.FindCustomerByTaxID(ctx, "00000000000")
	require.NoError(t, err)
	assert.Nil(t, missing)

	created, err := client.CreateCustomer(ctx, domain.CustomerInput{Name: "Beta", Email: "b@beta.test", CpfCnpj: "11122233344"})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Len(t, srv.Customers(), 2)
}

func TestCreateChargeSendsPayload(t *testing.T) {
	client, srv := newClient(t)

	charge, err := client.CreateCharge(context.Background(), domain.ChargeInput{
		CustomerID:        "cus_1",
		AmountCents:       8000,
		DueDate:           time.Date(2024, 5, 12, 0, 0, 0, 0, time.UTC),
		Description:       "1000 credits",
		ExternalReference: "credits_42",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, charge.InvoiceURL)

	reqs := srv.Requests()
	require.Len(t, reqs, 1)
	body := reqs[0].Body
	assert.Equal(t, "UNDEFINED", body["billingType"])
	assert.Equal(t, 80.0, body["value"])
	assert.Equal(t, "2024-05-12", body["dueDate"])
	assert.Equal(t, "credits_42", body["externalReference"])

	qr, err := client.PixQRCode(context.Background(), charge.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, qr.Payload)
}

func TestRejectedErrorCarriesGatewayMessage(t *testing.T) {
	client, srv := newClient(t)
	srv.Fail("POST /payments", http.StatusBadRequest, "O cliente informado não existe.")

	_, err := client.CreateCharge(context.Background(), domain.ChargeInput{CustomerID: "cus_x", AmountCents: 100})
	require.ErrorIs(t, err, domain.ErrGatewayRejected)

	var rejected *domain.RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, http.StatusBadRequest, rejected.StatusCode)
	assert.Equal(t, "O cliente informado não existe.", rejected.Message)
}

func TestUnreachableGateway(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	client := New(config.GatewayConfig{BaseURL: srv.URL, APIKey: "k", Timeout: time.Second}, nil, nil)

	_, err := client.FindCustomerByEmail(context.Background(), "a@b.test")
	assert.ErrorIs(t, err, domain.ErrGatewayUnreachable)
}

func TestMissingAPIKey(t *testing.T) {
	client := New(config.GatewayConfig{BaseURL: "http://localhost"}, nil, nil)
	_, err := client.CreateCustomer(context.Background(), domain.CustomerInput{})
	assert.ErrorIs(t, err, domain.ErrGatewayNotConfigured)
}

func TestListCustomersPages(t *testing.T) {
	client, srv := newClient(t)
	for i := 0; i < 3; i++ {
		srv.AddCustomer(domain.Customer{Name: "c"})
	}

	page, err := client.ListCustomers(context.Background(), 0, 2)
	require.NoError(t, err)
	assert.Len(t, page.Customers, 2)
	assert.True(t, page.HasMore)

	page, err = client.ListCustomers(context.Background(), 2, 2)
	require.NoError(t, err)
	assert.Len(t, page.Customers, 1)
	assert.False(t, page.HasMore)
}

func TestSubscriptionLifecycle(t *testing.T) {
	client, srv := newClient(t)
	ctx := context.Background()
	srv.DelayInvoices(1)

	sub, err := client.CreateSubscription(ctx, domain.SubscriptionInput{
		CustomerID:  "cus_1",
		AmountCents: 19900,
		NextDueDate: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		Description: "Plano Pro",
	})
	require.NoError(t, err)
	assert.Equal(t, "MONTHLY", srv.Requests()[0].Body["cycle"])

	payments, err := client.SubscriptionPayments(ctx, sub.ID, 1)
	require.NoError(t, err)
	assert.Empty(t, payments)

	payments, err = client.SubscriptionPayments(ctx, sub.ID, 1)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.NotEmpty(t, payments[0].InvoiceURL)

	active, err := client.ActiveSubscriptions(ctx, "cus_1")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "2024-06-01", active[0].NextDueDate)
}

func TestCancelSubscription(t *testing.T) {
	client, srv := newClient(t)
	ctx := context.Background()

	sub, err := client.CreateSubscription(ctx, domain.SubscriptionInput{
		CustomerID:  "cus_1",
		AmountCents: 19900,
		NextDueDate: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	require.NoError(t, client.CancelSubscription(ctx, sub.ID))
	assert.Equal(t, 1, srv.Count("DELETE /subscriptions/"+sub.ID))

	stored, ok := srv.Subscription(sub.ID)
	require.True(t, ok)
	assert.Equal(t, "DELETED", stored.Status)

	active, err := client.ActiveSubscriptions(ctx, "cus_1")
	require.NoError(t, err)
	assert.Empty(t, active)

	payments, err := client.SubscriptionPayments(ctx, sub.ID, 1)
	require.NoError(t, err)
	assert.Empty(t, payments)

	err = client.CancelSubscription(ctx, "sub_missing")
	assert.ErrorIs(t, err, domain.ErrGatewayRejected)
}
