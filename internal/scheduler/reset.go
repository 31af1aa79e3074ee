package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/smallbiznis/lexcredit/internal/authorization"
	obsmetrics "github.com/smallbiznis/lexcredit/internal/observability/metrics"
	"github.com/smallbiznis/lexcredit/internal/period"
	"github.com/smallbiznis/lexcredit/internal/ratelimit"
	"github.com/smallbiznis/lexcredit/internal/scheduler/guard"
	tenantdomain "github.com/smallbiznis/lexcredit/internal/tenant/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ResetResult reports one monthly reset invocation.
type ResetResult struct {
	Period       string `json:"period"`
	TotalTenants int    `json:"total_tenants"`
	TenantsReset int    `json:"tenants_reset"`
	Failed       int    `json:"failed"`
	// Unprocessed counts tenants the run never reached before its deadline.
	Unprocessed  int    `json:"unprocessed"`
	TimedOut     bool   `json:"timed_out"`
	Skipped      bool   `json:"skipped"`
	SkipReason   string `json:"skip_reason,omitempty"`
}

// RunMonthlyReset opens the new period with zero consumption for every tenant.
// Off day 1 in the reset timezone it only reports a skip, so retries are harmless.
func (s *Scheduler) RunMonthlyReset(ctx context.Context) (*ResetResult, error) {
	result := &ResetResult{}
	settings := s.credits.Get()
	err := s.runJob(ctx, JobMonthlyReset, settings.ResetWorkers, s.cfg.JobTimeout, func(ctx context.Context) error {
		err := s.monthlyReset(ctx, result)
		if ctx.Err() != nil && !result.Skipped {
			result.TimedOut = true
		}
		return err
	})
	return result, err
}

func (s *Scheduler) monthlyReset(ctx context.Context, result *ResetResult) error {
	settings := s.credits.Get()
	loc := settings.Location()
	now := s.clock.Now()
	p := period.Of(now, loc)
	result.Period = p.String()

	if err := guard.EnsureFirstDayOfMonth(now, loc); err != nil {
		result.Skipped = true
		result.SkipReason = obsmetrics.SchedulerSkipReasonNotFirstDay
		s.logJobSkipped(ctx, JobMonthlyReset, result.SkipReason,
			zap.String("period", result.Period),
			zap.String("local_date", now.In(loc).Format("2006-01-02")),
		)
		return nil
	}
	if err := s.authorizeSystem(ctx, authorization.ObjectJob, authorization.ActionJobMonthlyReset); err != nil {
		return err
	}

	err := s.locker.WithLock(ctx, "scheduler:"+JobMonthlyReset+":"+p.String(), s.cfg.LockTTL, func(ctx context.Context) error {
		return s.resetTenants(ctx, p, now, settings.ResetWorkers, result)
	})
	if errors.Is(err, ratelimit.ErrLockHeld) {
		result.Skipped = true
		result.SkipReason = obsmetrics.SchedulerSkipReasonLockHeld
		s.logJobSkipped(ctx, JobMonthlyReset, result.SkipReason, zap.String("period", result.Period))
		return nil
	}
	if err != nil {
		return err
	}

	s.emitAuditEvent(ctx, auditEvent{
		Action:     "credits.monthly_reset",
		TargetType: "period",
		TargetID:   result.Period,
		Metadata: map[string]any{
			"period":        result.Period,
			"total_tenants": result.TotalTenants,
			"tenants_reset": result.TenantsReset,
			"failed":        result.Failed,
			"unprocessed":   result.Unprocessed,
		},
	})
	return nil
}

// resetTenants resets each tenant independently; a failing tenant is logged and counted.
func (s *Scheduler) resetTenants(ctx context.Context, p period.Period, now time.Time, workers int, result *ResetResult) error {
	tenants, err := s.tenants.List(ctx)
	if err != nil {
		return err
	}
	result.TotalTenants = len(tenants)

	if workers <= 0 {
		workers = 1
	}
	run := jobRunFromContext(ctx)
	schedMetrics := obsmetrics.Scheduler()

	var reset, failed, unprocessed atomic.Int64
	var g errgroup.Group
	g.SetLimit(workers)
	for i, tenant := range tenants {
		if ctx.Err() != nil {
			unprocessed.Add(int64(len(tenants) - i))
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				unprocessed.Add(1)
				return nil
			}
			if err := s.resetTenant(ctx, tenant, p, now); err != nil {
				failed.Add(1)
				schedMetrics.IncTenantFailure(JobMonthlyReset, err)
				s.logSchedulerError(ctx, run, "scheduler.monthly_reset.tenant_failed", JobMonthlyReset, tenant.ID, err,
					zap.String("period", p.String()),
				)
				return nil
			}
			reset.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	result.TenantsReset = int(reset.Load())
	result.Failed = int(failed.Load())
	result.Unprocessed = int(unprocessed.Load())
	run.AddProcessed(result.TenantsReset)
	schedMetrics.AddBatchProcessed(JobMonthlyReset, "tenant", result.TenantsReset)
	return ctx.Err()
}

func (s *Scheduler) resetTenant(ctx context.Context, tenant *tenantdomain.Tenant, p period.Period, now time.Time) error {
	ctx = s.withLogContext(ctx, tenant.ID)
	if _, err := s.consumption.ResetPeriod(ctx, tenant.ID, p, now); err != nil {
		return err
	}
	s.logger(ctx).Debug("scheduler.monthly_reset.tenant_reset",
		zap.String("tenant_id", tenant.ID.String()),
		zap.String("period", p.String()),
	)
	return nil
}
