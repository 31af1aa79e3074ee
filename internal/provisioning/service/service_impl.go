package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/lexcredit/internal/config"
	gatewaydomain "github.com/smallbiznis/lexcredit/internal/gateway/domain"
	"github.com/smallbiznis/lexcredit/internal/provisioning/domain"
	tenantdomain "github.com/smallbiznis/lexcredit/internal/tenant/domain"
	tenantservice "github.com/smallbiznis/lexcredit/internal/tenant/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	customerPageSize = 100
	dueDateLayout    = "2006-01-02"
)

type Params struct {
	fx.In

	Log     *zap.Logger
	Credits *config.CreditConfigHolder
	Tenants tenantdomain.Service
	Gateway gatewaydomain.Client
}

type Service struct {
	log     *zap.Logger
	credits *config.CreditConfigHolder
	tenants tenantdomain.Service
	gateway gatewaydomain.Client
}

func New(p Params) domain.Service {
	return &Service{
		log:     p.Log.Named("provisioning.service"),
		credits: p.Credits,
		tenants: p.Tenants,
		gateway: p.Gateway,
	}
}

func (s *Service) EnsureCustomer(ctx context.Context, tenantID snowflake.ID) (string, error) {
	tenant, err := s.tenants.Get(ctx, tenantID)
	if err != nil {
		return "", err
	}
	if tenant.GatewayCustomerID != nil && strings.TrimSpace(*tenant.GatewayCustomerID) != "" {
		return *tenant.GatewayCustomerID, nil
	}

	customer, err := s.gateway.FindCustomerByEmail(ctx, tenant.Email)
	if err != nil {
		return "", err
	}

	taxID := tenantservice.Digits(tenant.TaxID)
	if customer == nil && taxID == "" {
		return "", domain.ErrMissingTaxID
	}
	if customer == nil {
		customer, err = s.gateway.FindCustomerByTaxID(ctx, taxID)
		if err != nil {
			return "", err
		}
	}

	adopted := customer != nil
	if customer == nil {
		customer, err = s.gateway.CreateCustomer(ctx, gatewaydomain.CustomerInput{
			Name:    tenant.Name,
			Email:   tenant.Email,
			CpfCnpj: taxID,
		})
		if err != nil {
			return "", err
		}
	}

	if err := s.tenants.SetGatewayCustomer(ctx, tenant.ID, customer.ID); err != nil {
		return "", err
	}
	s.log.Info("gateway customer linked",
		zap.String("tenant_id", tenant.ID.String()),
		zap.String("customer_id", customer.ID),
		zap.Bool("adopted", adopted),
	)
	return customer.ID, nil
}

func (s *Service) SyncCustomers(ctx context.Context) (*domain.SyncResult, error) {
	customers, err := s.allCustomers(ctx)
	if err != nil {
		return nil, err
	}

	var (
		mu     sync.Mutex
		result = &domain.SyncResult{Customers: len(customers)}
	)
	record := func(fn func(r *domain.SyncResult)) {
		mu.Lock()
		fn(result)
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers())
	for _, customer := range customers {
		customer := customer
		g.Go(func() error {
			matched, adopted, err := s.syncCustomer(gctx, customer)
			if err != nil {
				s.log.Warn("gateway sync failed for customer",
					zap.String("customer_id", customer.ID),
					zap.Error(err),
				)
				record(func(r *domain.SyncResult) { r.Failed++ })
				return nil
			}
			record(func(r *domain.SyncResult) {
				if !matched {
					r.Skipped++
					return
				}
				r.Matched++
				if adopted {
					r.Subscriptions++
				}
			})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}

	s.log.Info("gateway sync finished",
		zap.Int("customers", result.Customers),
		zap.Int("matched", result.Matched),
		zap.Int("skipped", result.Skipped),
		zap.Int("subscriptions", result.Subscriptions),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

func (s *Service) syncCustomer(ctx context.Context, customer gatewaydomain.Customer) (bool, bool, error) {
	tenant, err := s.tenants.FindByBillingIdentity(ctx, customer.Email, customer.CpfCnpj)
	if err != nil {
		return false, false, err
	}
	if tenant == nil {
		return false, false, nil
	}
	if err := s.tenants.SetGatewayCustomer(ctx, tenant.ID, customer.ID); err != nil {
		return true, false, err
	}

	subs, err := s.gateway.ActiveSubscriptions(ctx, customer.ID)
	if err != nil {
		return true, false, err
	}
	if len(subs) == 0 {
		return true, false, nil
	}

	sub := subs[0]
	update := tenantdomain.SubscriptionUpdate{
		SubscriptionID: sub.ID,
		Status:         tenantdomain.SubscriptionStatusActive,
	}
	if due, err := time.Parse(dueDateLayout, sub.NextDueDate); err == nil {
		update.NextDueDate = &due
	}
	if err := s.tenants.SetSubscription(ctx, tenant.ID, update); err != nil {
		return true, false, err
	}
	return true, true, nil
}

func (s *Service) allCustomers(ctx context.Context) ([]gatewaydomain.Customer, error) {
	var out []gatewaydomain.Customer
	for offset := 0; ; offset += customerPageSize {
		page, err := s.gateway.ListCustomers(ctx, offset, customerPageSize)
		if err != nil {
			return nil, err
		}
		out = append(out, page.Customers...)
		if !page.HasMore || len(page.Customers) == 0 {
			return out, nil
		}
	}
}

func (s *Service) workers() int {
	if s.credits == nil {
		return 1
	}
	if n := s.credits.Get().ResetWorkers; n > 0 {
		return n
	}
	return 1
}
