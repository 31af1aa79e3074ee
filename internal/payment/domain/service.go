package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	gatewaydomain "github.com/smallbiznis/lexcredit/internal/gateway/domain"
	"github.com/smallbiznis/lexcredit/pkg/db/pagination"
)

type PurchaseRequest struct {
	TenantID      snowflake.ID                `json:"-" validate:"required"`
	Credits       int64                       `json:"credits" validate:"required,gt=0"`
	BillingMethod gatewaydomain.BillingMethod `json:"billing_method" validate:"omitempty,oneof=UNDEFINED PIX CREDIT_CARD"`
}

type PurchaseResult struct {
	Transaction *Transaction             `json:"transaction"`
	Quote       Quote                    `json:"quote"`
	InvoiceURL  string                   `json:"invoice_url"`
	Pix         *gatewaydomain.PixQRCode `json:"pix,omitempty"`
}

type SubscribeRequest struct {
	TenantID      snowflake.ID                `json:"-" validate:"required"`
	PlanID        snowflake.ID                `json:"plan_id" validate:"required"`
	BillingMethod gatewaydomain.BillingMethod `json:"billing_method" validate:"omitempty,oneof=UNDEFINED PIX CREDIT_CARD"`
}

type SubscribeResult struct {
	Transaction    *Transaction `json:"transaction"`
	SubscriptionID string       `json:"subscription_id"`
	InvoiceURL     string       `json:"invoice_url"`
	NextDueDate    time.Time    `json:"next_due_date"`
}

type Outcome string

const (
	OutcomePaid   Outcome = "paid"
	OutcomeFailed Outcome = "failed"
)

// ReconcileRequest is what the webhook component reports for a gateway payment.
type ReconcileRequest struct {
	ExternalReference string  `json:"external_reference" validate:"required"`
	Outcome           Outcome `json:"outcome" validate:"required,oneof=paid failed"`
	GatewayID         string  `json:"gateway_id"`
	Reason            string  `json:"reason"`
}

type ReconcileResult struct {
	Transaction      *Transaction `json:"transaction"`
	AlreadyProcessed bool         `json:"already_processed"`
}

type ListTransactionsRequest struct {
	pagination.Pagination
	TenantID snowflake.ID
	Kind     Kind
	Status   Status
}

type ListTransactionsResponse struct {
	Transactions []*Transaction      `json:"transactions"`
	PageInfo     pagination.PageInfo `json:"page_info"`
}

type Service interface {
	Quote(credits int64) (Quote, error)
	PurchaseCredits(ctx context.Context, req PurchaseRequest) (*PurchaseResult, error)
	SubscribeToPlan(ctx context.Context, req SubscribeRequest) (*SubscribeResult, error)
	Reconcile(ctx context.Context, req ReconcileRequest) (*ReconcileResult, error)
	ListTransactions(ctx context.Context, req ListTransactionsRequest) (ListTransactionsResponse, error)
}

var (
	ErrInvalidTenant        = errors.New("invalid_tenant")
	ErrInvalidCredits       = errors.New("invalid_credits")
	ErrInvalidBillingMethod = errors.New("invalid_billing_method")
	ErrInvalidPlan          = errors.New("invalid_plan")
	ErrPlanNotPriced        = errors.New("plan_not_priced")
	ErrPriceTableInvalid    = errors.New("price_table_invalid")
	ErrInvoiceNotReady      = errors.New("invoice_not_ready")
	ErrTransactionNotFound  = errors.New("transaction_not_found")
	ErrInvalidReconcile     = errors.New("invalid_reconcile_request")
	ErrInvalidPageToken     = errors.New("invalid_page_token")
)
