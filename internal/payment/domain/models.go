package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Kind string

const (
	KindCreditPurchase Kind = "credit_purchase"
	KindSubscription   Kind = "subscription"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusPaid    Status = "paid"
	StatusFailed  Status = "failed"
)

const (
	MetadataCredits               = "credits"
	MetadataPlanID                = "plan_id"
	MetadataGatewaySubscriptionID = "gateway_subscription_id"
	MetadataNextDueDate           = "next_due_date"
	MetadataSubscriptionCancelled = "gateway_subscription_cancelled"
)

const (
	FailureInvoiceNotReady = "invoice_not_ready"
	FailureMissingInvoice  = "missing_invoice_url"
)

// Transaction is one purchase or subscription attempt. It exists before the gateway hears about it.
type Transaction struct {
	ID                snowflake.ID      `json:"id"`
	TenantID          snowflake.ID      `json:"tenant_id"`
	Kind              Kind              `json:"kind"`
	AmountCents       int64             `json:"amount_cents"`
	Currency          string            `json:"currency"`
	Status            Status            `json:"status"`
	Description       string            `json:"description"`
	BillingMethod     string            `json:"billing_method"`
	ExternalReference string            `json:"external_reference"`
	GatewayID         *string           `json:"gateway_id,omitempty"`
	InvoiceURL        *string           `json:"invoice_url,omitempty"`
	FailureReason     *string           `json:"failure_reason,omitempty"`
	Metadata          datatypes.JSONMap `json:"metadata"`
	PaidAt            *time.Time        `json:"paid_at,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

func (Transaction) TableName() string { return "transactions" }

type TransactionCursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}

type ListFilter struct {
	TenantID snowflake.ID
	Kind     Kind
	Status   Status
	Cursor   *TransactionCursor
	Limit    int
}
