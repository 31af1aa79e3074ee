package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

// SyncResult summarizes a gateway-to-tenant reconciliation pass.
type SyncResult struct {
	Customers     int `json:"customers"`
	Matched       int `json:"matched"`
	Skipped       int `json:"skipped"`
	Subscriptions int `json:"subscriptions"`
	Failed        int `json:"failed"`
}

type Service interface {
	// EnsureCustomer returns the tenant's gateway customer id, adopting or creating one on first use.
	EnsureCustomer(ctx context.Context, tenantID snowflake.ID) (string, error)
	// SyncCustomers links existing gateway customers and their active subscriptions to tenants.
	SyncCustomers(ctx context.Context) (*SyncResult, error)
}

var ErrMissingTaxID = errors.New("missing_tax_id")
