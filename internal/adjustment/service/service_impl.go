package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/lexcredit/internal/adjustment/domain"
	auditdomain "github.com/smallbiznis/lexcredit/internal/audit/domain"
	"github.com/smallbiznis/lexcredit/internal/auditcontext"
	"github.com/smallbiznis/lexcredit/internal/clock"
	"github.com/smallbiznis/lexcredit/internal/config"
	consumptiondomain "github.com/smallbiznis/lexcredit/internal/consumption/domain"
	meteringdomain "github.com/smallbiznis/lexcredit/internal/metering/domain"
	"github.com/smallbiznis/lexcredit/internal/observability/metrics"
	"github.com/smallbiznis/lexcredit/internal/period"
	tenantdomain "github.com/smallbiznis/lexcredit/internal/tenant/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxClearAttempts = 3

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Clock       clock.Clock
	Credits     *config.CreditConfigHolder
	Tenants     tenantdomain.Service
	Consumption consumptiondomain.Service
	Metering    meteringdomain.Client
	Metrics     *metrics.Metrics    `optional:"true"`
	AuditSvc    auditdomain.Service `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	clock       clock.Clock
	credits     *config.CreditConfigHolder
	tenants     tenantdomain.Service
	consumption consumptiondomain.Service
	metering    meteringdomain.Client
	metrics     *metrics.Metrics
	auditSvc    auditdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("adjustment.service"),
		clock:       p.Clock,
		credits:     p.Credits,
		tenants:     p.Tenants,
		consumption: p.Consumption,
		metering:    p.Metering,
		metrics:     p.Metrics,
		auditSvc:    p.AuditSvc,
	}
}

func (s *Service) Apply(ctx context.Context, req domain.Request) (*domain.Result, error) {
	req.Reason = strings.TrimSpace(req.Reason)
	if err := req.Validate(); err != nil {
		return nil, err
	}

	tenant, err := s.tenants.Get(ctx, req.TenantID)
	if err != nil {
		return nil, err
	}
	planLimit, err := s.tenants.ResolvePlanLimit(ctx, tenant)
	if err != nil {
		return nil, err
	}
	p := period.Of(s.clock.Now(), s.credits.Get().Location())

	var (
		delta       int64
		consumption *int64
	)
	switch req.Action {
	case domain.ActionAddCredits:
		delta = *req.Amount
	case domain.ActionRemoveCredits:
		delta = -*req.Amount
	case domain.ActionResetBalance:
		// A reset without a fresh consumption figure is undefined, so metering errors abort.
		usage, err := s.metering.CreditsSpent(ctx, tenant.MeteringAgentID, p)
		if err != nil {
			return nil, err
		}
		used := usage.Total
		consumption = &used
		delta = used
	}

	var (
		entry *consumptiondomain.AdjustmentEntry
		rec   *consumptiondomain.Record
	)
	if req.Action == domain.ActionClearExtraCredits {
		entry, rec, err = s.clear(ctx, tenant.ID, p, req)
	} else {
		entry, rec, err = s.increment(ctx, tenant.ID, p, req, delta, consumption)
	}
	if err != nil {
		return nil, err
	}

	used := rec.CreditsUsed
	if consumption != nil {
		used = *consumption
	}
	newBalance := planLimit + entry.NewExtraCredits - used

	s.metrics.RecordCreditAdjustment(ctx, string(req.Action))
	s.log.Info("credits adjusted",
		zap.String("tenant_id", tenant.ID.String()),
		zap.String("action", string(req.Action)),
		zap.Int64("previous_extra_credits", entry.PreviousExtraCredits),
		zap.Int64("new_extra_credits", entry.NewExtraCredits),
	)
	s.audit(ctx, tenant.ID, req, entry)

	return &domain.Result{
		Team:                 tenant.Name,
		Action:               req.Action,
		PreviousExtraCredits: entry.PreviousExtraCredits,
		NewExtraCredits:      entry.NewExtraCredits,
		Adjustment:           entry.NewExtraCredits - entry.PreviousExtraCredits,
		CurrentConsumption:   consumption,
		NewBalance:           newBalance,
		Log:                  entry.View(),
	}, nil
}

// increment applies delta atomically and logs it in the same transaction.
func (s *Service) increment(ctx context.Context, tenantID snowflake.ID, p period.Period, req domain.Request, delta int64, consumption *int64) (*consumptiondomain.AdjustmentEntry, *consumptiondomain.Record, error) {
	var (
		entry *consumptiondomain.AdjustmentEntry
		rec   *consumptiondomain.Record
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		previous, current, err := s.tenants.AddExtraCreditsTx(ctx, tx, tenantID, delta)
		if err != nil {
			return err
		}
		entry = s.newEntry(ctx, tenantID, p, req, previous, current, consumption)

		var onInsert int64
		if consumption != nil {
			onInsert = *consumption
		}
		rec, err = s.consumption.AppendAdjustment(ctx, tx, entry, onInsert)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return entry, rec, nil
}

// clear zeroes the pool with compare-and-swap, retrying when another writer got there first.
func (s *Service) clear(ctx context.Context, tenantID snowflake.ID, p period.Period, req domain.Request) (*consumptiondomain.AdjustmentEntry, *consumptiondomain.Record, error) {
	for attempt := 1; attempt <= maxClearAttempts; attempt++ {
		tenant, err := s.tenants.Get(ctx, tenantID)
		if err != nil {
			return nil, nil, err
		}
		previous := tenant.ExtraCredits

		var (
			entry *consumptiondomain.AdjustmentEntry
			rec   *consumptiondomain.Record
		)
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := s.tenants.SetExtraCreditsTx(ctx, tx, tenantID, previous, 0); err != nil {
				return err
			}
			entry = s.newEntry(ctx, tenantID, p, req, previous, 0, nil)
			rec, err = s.consumption.AppendAdjustment(ctx, tx, entry, 0)
			return err
		})
		if err == nil {
			return entry, rec, nil
		}
		if !errors.Is(err, tenantdomain.ErrConcurrentUpdate) {
			return nil, nil, err
		}
		s.log.Warn("extra credits changed during clear, retrying",
			zap.String("tenant_id", tenantID.String()),
			zap.Int("attempt", attempt),
		)
	}
	return nil, nil, domain.ErrConflict
}

func (s *Service) newEntry(ctx context.Context, tenantID snowflake.ID, p period.Period, req domain.Request, previous, current int64, consumption *int64) *consumptiondomain.AdjustmentEntry {
	actor := auditcontext.ActorFromContext(ctx)
	return &consumptiondomain.AdjustmentEntry{
		TenantID:             tenantID,
		Period:               p.String(),
		Action:               string(req.Action),
		PreviousExtraCredits: previous,
		NewExtraCredits:      current,
		Amount:               req.Amount,
		CurrentConsumption:   consumption,
		Reason:               req.Reason,
		AdminUserID:          actor.ID,
		AdminEmail:           actor.Email,
		CreatedAt:            s.clock.Now(),
	}
}

func (s *Service) audit(ctx context.Context, tenantID snowflake.ID, req domain.Request, entry *consumptiondomain.AdjustmentEntry) {
	if s.auditSvc == nil {
		return
	}
	actor := auditcontext.ActorFromContext(ctx)
	actorType := actor.Type
	if actorType == "" {
		actorType = auditcontext.ActorTypeUser
	}
	var actorID *string
	if actor.ID != "" {
		actorID = &actor.ID
	}
	targetID := entry.ID.String()
	metadata := map[string]any{
		"action":                 string(req.Action),
		"previous_extra_credits": entry.PreviousExtraCredits,
		"new_extra_credits":      entry.NewExtraCredits,
		"reason":                 req.Reason,
		"period":                 entry.Period,
	}
	if err := s.auditSvc.AuditLog(ctx, &tenantID, actorType, actorID, "credits.adjusted", "credit_adjustment", &targetID, metadata); err != nil {
		s.log.Warn("failed to write audit log", zap.String("tenant_id", tenantID.String()), zap.Error(err))
	}
}
