package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/lexcredit/internal/period"
)

// Client lists the leads visible to a tenant's CRM token.
type Client interface {
	ListLeads(ctx context.Context, token string) ([]Lead, error)
}

// RefreshResult summarizes a refresh over every tenant with a CRM token.
type RefreshResult struct {
	Period    string `json:"period"`
	Tenants   int    `json:"tenants"`
	Refreshed int    `json:"refreshed"`
	Failed    int    `json:"failed"`
}

type Service interface {
	// Refresh fetches the tenant's leads and stores the period's KPIs.
	Refresh(ctx context.Context, tenantID snowflake.ID, p period.Period) (*KPI, error)
	Get(ctx context.Context, tenantID snowflake.ID, p period.Period) (*KPI, error)
	RefreshAll(ctx context.Context, p period.Period) (RefreshResult, error)
}

var (
	ErrInvalidTenant       = errors.New("invalid_tenant")
	ErrInvalidPeriod       = errors.New("invalid_period")
	ErrTokenNotConfigured  = errors.New("crm_token_not_configured")
	ErrProviderUnavailable = errors.New("crm_unavailable")
	ErrKPINotFound         = errors.New("crm_kpi_not_found")
)

// UnavailableError reports a CRM provider failure. It matches ErrProviderUnavailable.
type UnavailableError struct {
	StatusCode int
	Err        error
}

func (e *UnavailableError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("crm provider returned status %d", e.StatusCode)
	}
	if e.Err != nil {
		return "crm provider unreachable: " + e.Err.Error()
	}
	return ErrProviderUnavailable.Error()
}

func (e *UnavailableError) Unwrap() error { return e.Err }

func (e *UnavailableError) Is(target error) bool { return target == ErrProviderUnavailable }
