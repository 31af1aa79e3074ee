package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/lexcredit/internal/clock"
	"github.com/smallbiznis/lexcredit/internal/consumption/domain"
	"github.com/smallbiznis/lexcredit/internal/period"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	defaultHistoryLimit = 12
	maxHistoryLimit     = 60

	resetTypeMonthly = "monthly_automatic"
	resetNote        = "Plan credits reset. Extra credits are preserved."
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("consumption.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) RecordUsage(ctx context.Context, tenantID snowflake.ID, p period.Period, creditsUsed int64, raw map[string]any) (*domain.Record, error) {
	if tenantID == 0 {
		return nil, domain.ErrInvalidTenant
	}
	if p.IsZero() {
		return nil, domain.ErrInvalidPeriod
	}
	if creditsUsed < 0 {
		creditsUsed = 0
	}

	var out *domain.Record
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.clock.Now()
		rec, err := s.ensureRecord(ctx, tx, tenantID, p.String(), creditsUsed, mergeMetadata(nil, raw), now)
		if err != nil {
			return err
		}
		if rec.fresh {
			out = rec.Record
			return nil
		}

		metadata := mergeMetadata(rec.Metadata, raw)
		if err := s.repo.Update(ctx, tx, rec.ID, creditsUsed, metadata, now); err != nil {
			return err
		}
		rec.CreditsUsed = creditsUsed
		rec.Metadata = metadata
		rec.UpdatedAt = now
		out = rec.Record
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) ResetPeriod(ctx context.Context, tenantID snowflake.ID, p period.Period, resetAt time.Time) (*domain.Record, error) {
	if tenantID == 0 {
		return nil, domain.ErrInvalidTenant
	}
	if p.IsZero() {
		return nil, domain.ErrInvalidPeriod
	}
	reset := map[string]any{
		"reset_type": resetTypeMonthly,
		"reset_at":   resetAt.UTC().Format(time.RFC3339),
		"note":       resetNote,
	}

	var out *domain.Record
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.clock.Now()
		rec, err := s.ensureRecord(ctx, tx, tenantID, p.String(), 0, mergeMetadata(nil, reset), now)
		if err != nil {
			return err
		}
		if rec.fresh {
			out = rec.Record
			return nil
		}

		metadata := mergeMetadata(rec.Metadata, reset)
		if err := s.repo.Update(ctx, tx, rec.ID, 0, metadata, now); err != nil {
			return err
		}
		rec.CreditsUsed = 0
		rec.Metadata = metadata
		rec.UpdatedAt = now
		out = rec.Record
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) AppendAdjustment(ctx context.Context, tx *gorm.DB, entry *domain.AdjustmentEntry, creditsUsedOnInsert int64) (*domain.Record, error) {
	if entry == nil || strings.TrimSpace(entry.Action) == "" {
		return nil, domain.ErrInvalidAdjustment
	}
	if entry.TenantID == 0 {
		return nil, domain.ErrInvalidTenant
	}
	if _, err := period.Parse(entry.Period); err != nil {
		return nil, domain.ErrInvalidPeriod
	}

	var out *domain.Record
	run := func(tx *gorm.DB) error {
		now := s.clock.Now()
		entry.ID = s.genID.Generate()
		if entry.CreatedAt.IsZero() {
			entry.CreatedAt = now
		}
		if err := s.repo.InsertAdjustment(ctx, tx, entry); err != nil {
			return err
		}

		rec, err := s.ensureRecord(ctx, tx, entry.TenantID, entry.Period, creditsUsedOnInsert, datatypes.JSONMap{}, now)
		if err != nil {
			return err
		}
		entries, err := s.repo.ListAdjustments(ctx, tx, entry.TenantID, entry.Period)
		if err != nil {
			return err
		}
		views := make([]any, 0, len(entries))
		for _, e := range entries {
			views = append(views, e.View())
		}

		metadata := mergeMetadata(rec.Metadata, nil)
		metadata[domain.MetadataAdjustmentsKey] = views
		if err := s.repo.UpdateMetadata(ctx, tx, rec.ID, metadata, now); err != nil {
			return err
		}
		rec.Metadata = metadata
		rec.UpdatedAt = now
		out = rec.Record
		return nil
	}

	var err error
	if tx != nil {
		err = run(tx.WithContext(ctx))
	} else {
		err = s.db.WithContext(ctx).Transaction(run)
	}
	if err != nil {
		return nil, err
	}

	s.log.Info("credit adjustment recorded",
		zap.String("tenant_id", entry.TenantID.String()),
		zap.String("period", entry.Period),
		zap.String("action", entry.Action),
		zap.Int64("previous_extra_credits", entry.PreviousExtraCredits),
		zap.Int64("new_extra_credits", entry.NewExtraCredits),
	)
	return out, nil
}

func (s *Service) Get(ctx context.Context, tenantID snowflake.ID, p period.Period) (*domain.Record, error) {
	if tenantID == 0 {
		return nil, domain.ErrInvalidTenant
	}
	if p.IsZero() {
		return nil, domain.ErrInvalidPeriod
	}
	rec, err := s.repo.Find(ctx, s.db, tenantID, p.String())
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, domain.ErrRecordNotFound
	}
	return rec, nil
}

func (s *Service) History(ctx context.Context, tenantID snowflake.ID, limit int) ([]*domain.Record, error) {
	if tenantID == 0 {
		return nil, domain.ErrInvalidTenant
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return s.repo.ListByTenant(ctx, s.db, tenantID, limit)
}

func (s *Service) ListAdjustments(ctx context.Context, tenantID snowflake.ID, p period.Period) ([]*domain.AdjustmentEntry, error) {
	if tenantID == 0 {
		return nil, domain.ErrInvalidTenant
	}
	if p.IsZero() {
		return nil, domain.ErrInvalidPeriod
	}
	return s.repo.ListAdjustments(ctx, s.db, tenantID, p.String())
}

type lockedRecord struct {
	*domain.Record
	fresh bool
}

// ensureRecord inserts the (tenant, period) row when absent and returns it locked.
func (s *Service) ensureRecord(ctx context.Context, tx *gorm.DB, tenantID snowflake.ID, periodKey string, creditsUsed int64, metadata datatypes.JSONMap, now time.Time) (lockedRecord, error) {
	candidate := &domain.Record{
		ID:          s.genID.Generate(),
		TenantID:    tenantID,
		Period:      periodKey,
		CreditsUsed: creditsUsed,
		Metadata:    metadata,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	inserted, err := s.repo.InsertIfAbsent(ctx, tx, candidate)
	if err != nil {
		return lockedRecord{}, err
	}
	if inserted {
		return lockedRecord{Record: candidate, fresh: true}, nil
	}

	rec, err := s.repo.FindForUpdate(ctx, tx, tenantID, periodKey)
	if err != nil {
		return lockedRecord{}, err
	}
	if rec == nil {
		return lockedRecord{}, domain.ErrRecordNotFound
	}
	return lockedRecord{Record: rec}, nil
}

// mergeMetadata copies base and overlays extra. The adjustment view key is never taken from extra.
func mergeMetadata(base datatypes.JSONMap, extra map[string]any) datatypes.JSONMap {
	out := make(datatypes.JSONMap, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		if k == domain.MetadataAdjustmentsKey {
			continue
		}
		out[k] = v
	}
	return out
}
