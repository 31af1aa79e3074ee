package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type SubscriptionStatus string

const (
	SubscriptionStatusActive         SubscriptionStatus = "active"
	SubscriptionStatusPendingPayment SubscriptionStatus = "pending_payment"
	SubscriptionStatusPastDue        SubscriptionStatus = "past_due"
)

// Plan is a subscription plan sold through the payment gateway.
type Plan struct {
	ID          snowflake.ID `json:"id"`
	Name        string       `json:"name"`
	PriceCents  int64        `json:"price_cents"`
	CreditLimit *int64       `json:"credit_limit,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

func (Plan) TableName() string { return "plans" }

// Tenant is a billed team. ExtraCredits is the purchased pool that survives period rollovers.
type Tenant struct {
	ID                 snowflake.ID        `json:"id"`
	Name               string              `json:"name"`
	Email              string              `json:"email"`
	TaxID              string              `json:"-"`
	MeteringAgentID    string              `json:"metering_agent_id,omitempty"`
	CRMToken           string              `gorm:"column:crm_token" json:"-"`
	PlanID             *snowflake.ID       `json:"plan_id,omitempty"`
	PlanLimitOverride  *int64              `json:"plan_limit_override,omitempty"`
	ExtraCredits       int64               `json:"extra_credits"`
	GatewayCustomerID  *string             `json:"gateway_customer_id,omitempty"`
	SubscriptionID     *string             `json:"subscription_id,omitempty"`
	SubscriptionStatus *SubscriptionStatus `json:"subscription_status,omitempty"`
	NextDueDate        *time.Time          `json:"next_due_date,omitempty"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
}

func (Tenant) TableName() string { return "tenants" }

// SubscriptionUpdate carries the subscription fields written after a gateway round trip.
// Nil fields are left untouched.
type SubscriptionUpdate struct {
	SubscriptionID string
	Status         SubscriptionStatus
	PlanID         *snowflake.ID
	NextDueDate    *time.Time
}
