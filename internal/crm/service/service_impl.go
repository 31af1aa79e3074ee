package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/lexcredit/internal/clock"
	"github.com/smallbiznis/lexcredit/internal/config"
	"github.com/smallbiznis/lexcredit/internal/crm/domain"
	"github.com/smallbiznis/lexcredit/internal/period"
	tenantdomain "github.com/smallbiznis/lexcredit/internal/tenant/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Credits *config.CreditConfigHolder
	Repo    domain.Repository
	Client  domain.Client
	Tenants tenantdomain.Service
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	credits *config.CreditConfigHolder
	repo    domain.Repository
	client  domain.Client
	tenants tenantdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("crm.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		credits: p.Credits,
		repo:    p.Repo,
		client:  p.Client,
		tenants: p.Tenants,
	}
}

func (s *Service) Refresh(ctx context.Context, tenantID snowflake.ID, p period.Period) (*domain.KPI, error) {
	if tenantID == 0 {
		return nil, domain.ErrInvalidTenant
	}
	if p.IsZero() {
		return nil, domain.ErrInvalidPeriod
	}
	tenant, err := s.tenants.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return s.refresh(ctx, tenant, p)
}

func (s *Service) refresh(ctx context.Context, tenant *tenantdomain.Tenant, p period.Period) (*domain.KPI, error) {
	if strings.TrimSpace(tenant.CRMToken) == "" {
		return nil, domain.ErrTokenNotConfigured
	}
	leads, err := s.client.ListLeads(ctx, tenant.CRMToken)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	kpi := domain.Compute(leads, p, s.credits.Get().Location())
	kpi.ID = s.genID.Generate()
	kpi.TenantID = tenant.ID
	kpi.Metadata = datatypes.JSONMap{
		"leads_fetched": len(leads),
		"refreshed_at":  now.UTC().Format(time.RFC3339),
	}
	kpi.CreatedAt = now
	kpi.UpdatedAt = now
	if err := s.repo.Upsert(ctx, s.db, &kpi); err != nil {
		return nil, err
	}

	s.log.Info("crm kpis refreshed",
		zap.String("tenant_id", tenant.ID.String()),
		zap.String("period", kpi.Period),
		zap.Int64("total_leads", kpi.TotalLeads),
		zap.Int64("closed_deals", kpi.ClosedDeals),
	)
	return s.repo.Find(ctx, s.db, tenant.ID, kpi.Period)
}

func (s *Service) Get(ctx context.Context, tenantID snowflake.ID, p period.Period) (*domain.KPI, error) {
	if tenantID == 0 {
		return nil, domain.ErrInvalidTenant
	}
	if p.IsZero() {
		return nil, domain.ErrInvalidPeriod
	}
	kpi, err := s.repo.Find(ctx, s.db, tenantID, p.String())
	if err != nil {
		return nil, err
	}
	if kpi == nil {
		return nil, domain.ErrKPINotFound
	}
	return kpi, nil
}

func (s *Service) RefreshAll(ctx context.Context, p period.Period) (domain.RefreshResult, error) {
	result := domain.RefreshResult{Period: p.String()}
	if p.IsZero() {
		return result, domain.ErrInvalidPeriod
	}
	tenants, err := s.tenants.List(ctx)
	if err != nil {
		return result, err
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers())
	for _, tenant := range tenants {
		if strings.TrimSpace(tenant.CRMToken) == "" {
			continue
		}
		result.Tenants++
		tenant := tenant
		g.Go(func() error {
			_, err := s.refresh(gctx, tenant, p)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed++
				s.log.Warn("crm refresh failed for tenant",
					zap.String("tenant_id", tenant.ID.String()),
					zap.Error(err),
				)
				return nil
			}
			result.Refreshed++
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return result, err
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}

	s.log.Info("crm refresh finished",
		zap.String("period", result.Period),
		zap.Int("tenants", result.Tenants),
		zap.Int("refreshed", result.Refreshed),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

func (s *Service) workers() int {
	if n := s.credits.Get().ResetWorkers; n > 0 {
		return n
	}
	return 1
}
