package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/lexcredit/internal/period"
)

// Balance is a point-in-time view of a tenant's credits for one period.
// Balance may be negative, which signals overage.
type Balance struct {
	TenantID     snowflake.ID `json:"tenant_id"`
	Period       string       `json:"period"`
	PlanLimit    int64        `json:"plan_limit"`
	ExtraCredits int64        `json:"extra_credits"`
	CreditsUsed  int64        `json:"credits_used"`
	Total        int64        `json:"total"`
	Balance      int64        `json:"balance"`
	Stale        bool         `json:"stale"`
}

// Compute derives total and balance. It is the only place the balance formula lives.
func Compute(planLimit, extraCredits, creditsUsed int64) (total int64, balance int64) {
	total = planLimit + extraCredits
	return total, total - creditsUsed
}

type Service interface {
	// ComputeBalance reads consumption from the provider and persists it. Metering failures are returned.
	ComputeBalance(ctx context.Context, tenantID snowflake.ID, p period.Period) (*Balance, error)
	// Snapshot is the display path. A metering failure falls back to stored consumption and marks the result stale.
	Snapshot(ctx context.Context, tenantID snowflake.ID, p period.Period) (*Balance, error)
	// CurrentPeriod is the period containing now in the reset timezone.
	CurrentPeriod() period.Period
}

var ErrInvalidPeriod = errors.New("invalid_period")
