package service

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/lexcredit/internal/balance/domain"
	"github.com/smallbiznis/lexcredit/internal/clock"
	"github.com/smallbiznis/lexcredit/internal/config"
	consumptiondomain "github.com/smallbiznis/lexcredit/internal/consumption/domain"
	"github.com/smallbiznis/lexcredit/internal/metering"
	meteringdomain "github.com/smallbiznis/lexcredit/internal/metering/domain"
	"github.com/smallbiznis/lexcredit/internal/period"
	tenantdomain "github.com/smallbiznis/lexcredit/internal/tenant/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log         *zap.Logger
	Clock       clock.Clock
	Credits     *config.CreditConfigHolder
	Tenants     tenantdomain.Service
	Consumption consumptiondomain.Service
	Metering    meteringdomain.Client
	Display     *metering.CachedClient
}

type Service struct {
	log         *zap.Logger
	clock       clock.Clock
	credits     *config.CreditConfigHolder
	tenants     tenantdomain.Service
	consumption consumptiondomain.Service
	metering    meteringdomain.Client
	display     *metering.CachedClient
}

func New(p Params) domain.Service {
	return &Service{
		log:         p.Log.Named("balance.service"),
		clock:       p.Clock,
		credits:     p.Credits,
		tenants:     p.Tenants,
		consumption: p.Consumption,
		metering:    p.Metering,
		display:     p.Display,
	}
}

func (s *Service) CurrentPeriod() period.Period {
	return period.Of(s.clock.Now(), s.credits.Get().Location())
}

func (s *Service) ComputeBalance(ctx context.Context, tenantID snowflake.ID, p period.Period) (*domain.Balance, error) {
	if p.IsZero() {
		return nil, domain.ErrInvalidPeriod
	}
	tenant, planLimit, err := s.loadTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	usage, err := s.metering.CreditsSpent(ctx, tenant.MeteringAgentID, p)
	if err != nil {
		return nil, err
	}
	if _, err := s.consumption.RecordUsage(ctx, tenant.ID, p, usage.Total, usage.Raw); err != nil {
		return nil, err
	}
	if s.display != nil {
		s.display.Invalidate(tenant.MeteringAgentID, p)
	}

	return build(tenant, p, planLimit, usage.Total, false), nil
}

func (s *Service) Snapshot(ctx context.Context, tenantID snowflake.ID, p period.Period) (*domain.Balance, error) {
	if p.IsZero() {
		return nil, domain.ErrInvalidPeriod
	}
	tenant, planLimit, err := s.loadTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	var reader meteringdomain.Client = s.metering
	if s.display != nil {
		reader = s.display
	}
	usage, err := reader.CreditsSpent(ctx, tenant.MeteringAgentID, p)
	if err == nil {
		return build(tenant, p, planLimit, usage.Total, false), nil
	}
	if !errors.Is(err, meteringdomain.ErrMeteringUnavailable) && !errors.Is(err, meteringdomain.ErrAgentNotConfigured) {
		return nil, err
	}

	s.log.Warn("metering unavailable, serving stored consumption",
		zap.String("tenant_id", tenant.ID.String()),
		zap.String("period", p.String()),
		zap.Error(err),
	)
	var used int64
	rec, recErr := s.consumption.Get(ctx, tenant.ID, p)
	switch {
	case recErr == nil:
		used = rec.CreditsUsed
	case errors.Is(recErr, consumptiondomain.ErrRecordNotFound):
	default:
		return nil, recErr
	}
	return build(tenant, p, planLimit, used, true), nil
}

func (s *Service) loadTenant(ctx context.Context, tenantID snowflake.ID) (*tenantdomain.Tenant, int64, error) {
	tenant, err := s.tenants.Get(ctx, tenantID)
	if err != nil {
		return nil, 0, err
	}
	planLimit, err := s.tenants.ResolvePlanLimit(ctx, tenant)
	if err != nil {
		return nil, 0, err
	}
	return tenant, planLimit, nil
}

func build(tenant *tenantdomain.Tenant, p period.Period, planLimit, used int64, stale bool) *domain.Balance {
	total, balance := domain.Compute(planLimit, tenant.ExtraCredits, used)
	return &domain.Balance{
		TenantID:     tenant.ID,
		Period:       p.String(),
		PlanLimit:    planLimit,
		ExtraCredits: tenant.ExtraCredits,
		CreditsUsed:  used,
		Total:        total,
		Balance:      balance,
		Stale:        stale,
	}
}
