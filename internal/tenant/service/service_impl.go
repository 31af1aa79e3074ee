package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/lexcredit/internal/clock"
	"github.com/smallbiznis/lexcredit/internal/config"
	"github.com/smallbiznis/lexcredit/internal/tenant/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const listBatchSize = 500

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Clock   clock.Clock
	Repo    domain.Repository
	Credits *config.CreditConfigHolder
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	clock   clock.Clock
	repo    domain.Repository
	credits *config.CreditConfigHolder
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("tenant.service"),
		clock:   p.Clock,
		repo:    p.Repo,
		credits: p.Credits,
	}
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*domain.Tenant, error) {
	if id == 0 {
		return nil, domain.ErrInvalidTenant
	}
	tenant, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if tenant == nil {
		return nil, domain.ErrTenantNotFound
	}
	return tenant, nil
}

// List walks every tenant in id order, batching reads.
func (s *Service) List(ctx context.Context) ([]*domain.Tenant, error) {
	var (
		out     []*domain.Tenant
		afterID snowflake.ID
	)
	for {
		batch, err := s.repo.List(ctx, s.db, domain.ListFilter{AfterID: afterID, Limit: listBatchSize})
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
		if len(batch) < listBatchSize {
			return out, nil
		}
		afterID = batch[len(batch)-1].ID
	}
}

func (s *Service) GetPlan(ctx context.Context, id snowflake.ID) (*domain.Plan, error) {
	if id == 0 {
		return nil, domain.ErrPlanNotFound
	}
	plan, err := s.repo.FindPlanByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, domain.ErrPlanNotFound
	}
	return plan, nil
}

func (s *Service) FindByBillingIdentity(ctx context.Context, email, taxID string) (*domain.Tenant, error) {
	tenant, err := s.repo.FindByEmail(ctx, s.db, email)
	if err != nil || tenant != nil {
		return tenant, err
	}
	return s.repo.FindByTaxID(ctx, s.db, Digits(taxID))
}

// Digits strips everything but 0-9, so formatted CPF/CNPJ values compare equal to bare ones.
func Digits(value string) string {
	var b strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (s *Service) ResolvePlanLimit(ctx context.Context, tenant *domain.Tenant) (int64, error) {
	if tenant == nil {
		return 0, domain.ErrInvalidTenant
	}
	if tenant.PlanLimitOverride != nil && *tenant.PlanLimitOverride > 0 {
		return *tenant.PlanLimitOverride, nil
	}
	if tenant.PlanID != nil && *tenant.PlanID != 0 {
		plan, err := s.repo.FindPlanByID(ctx, s.db, *tenant.PlanID)
		if err != nil {
			return 0, err
		}
		if plan != nil && plan.CreditLimit != nil && *plan.CreditLimit > 0 {
			return *plan.CreditLimit, nil
		}
		if plan == nil {
			s.log.Warn("tenant references missing plan",
				zap.String("tenant_id", tenant.ID.String()),
				zap.String("plan_id", tenant.PlanID.String()),
			)
		}
	}
	return s.credits.Get().DefaultPlanLimit, nil
}

func (s *Service) AddExtraCredits(ctx context.Context, id snowflake.ID, delta int64) (int64, int64, error) {
	return s.AddExtraCreditsTx(ctx, s.db, id, delta)
}

func (s *Service) AddExtraCreditsTx(ctx context.Context, tx *gorm.DB, id snowflake.ID, delta int64) (int64, int64, error) {
	if id == 0 {
		return 0, 0, domain.ErrInvalidTenant
	}
	if tx == nil {
		tx = s.db
	}
	current, found, err := s.repo.AddExtraCredits(ctx, tx, id, delta, s.clock.Now())
	if err != nil {
		return 0, 0, err
	}
	if !found {
		return 0, 0, domain.ErrTenantNotFound
	}
	return current - delta, current, nil
}

func (s *Service) SetExtraCredits(ctx context.Context, id snowflake.ID, expected, value int64) error {
	return s.SetExtraCreditsTx(ctx, s.db, id, expected, value)
}

func (s *Service) SetExtraCreditsTx(ctx context.Context, tx *gorm.DB, id snowflake.ID, expected, value int64) error {
	if id == 0 {
		return domain.ErrInvalidTenant
	}
	if tx == nil {
		tx = s.db
	}
	ok, err := s.repo.CompareAndSetExtraCredits(ctx, tx, id, expected, value, s.clock.Now())
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	tenant, err := s.repo.FindByID(ctx, tx, id)
	if err != nil {
		return err
	}
	if tenant == nil {
		return domain.ErrTenantNotFound
	}
	return domain.ErrConcurrentUpdate
}

func (s *Service) SetGatewayCustomer(ctx context.Context, id snowflake.ID, customerID string) error {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return domain.ErrInvalidCustomerID
	}
	ok, err := s.repo.SetGatewayCustomer(ctx, s.db, id, customerID, s.clock.Now())
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrTenantNotFound
	}
	return nil
}

func (s *Service) SetSubscription(ctx context.Context, id snowflake.ID, update domain.SubscriptionUpdate) error {
	return s.SetSubscriptionTx(ctx, s.db, id, update)
}

func (s *Service) SetSubscriptionTx(ctx context.Context, tx *gorm.DB, id snowflake.ID, update domain.SubscriptionUpdate) error {
	if tx == nil {
		tx = s.db
	}
	update.SubscriptionID = strings.TrimSpace(update.SubscriptionID)
	if update.SubscriptionID == "" {
		return domain.ErrInvalidSubscription
	}
	switch update.Status {
	case domain.SubscriptionStatusActive, domain.SubscriptionStatusPendingPayment, domain.SubscriptionStatusPastDue:
	default:
		return domain.ErrInvalidSubscription
	}
	ok, err := s.repo.SetSubscription(ctx, tx, id, update, s.clock.Now())
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrTenantNotFound
	}
	return nil
}
