package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/robfig/cron/v3"
	auditdomain "github.com/smallbiznis/lexcredit/internal/audit/domain"
	"github.com/smallbiznis/lexcredit/internal/auditcontext"
	"github.com/smallbiznis/lexcredit/internal/authorization"
	"github.com/smallbiznis/lexcredit/internal/clock"
	"github.com/smallbiznis/lexcredit/internal/config"
	consumptiondomain "github.com/smallbiznis/lexcredit/internal/consumption/domain"
	crmdomain "github.com/smallbiznis/lexcredit/internal/crm/domain"
	obsmetrics "github.com/smallbiznis/lexcredit/internal/observability/metrics"
	"github.com/smallbiznis/lexcredit/internal/period"
	provisioningdomain "github.com/smallbiznis/lexcredit/internal/provisioning/domain"
	"github.com/smallbiznis/lexcredit/internal/ratelimit"
	tenantdomain "github.com/smallbiznis/lexcredit/internal/tenant/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	JobMonthlyReset = "monthly_reset"
	JobCRMRefresh   = "crm_refresh"
	JobGatewaySync  = "gateway_sync"

	systemActorID = "scheduler"
	pushTimeout   = 5 * time.Second
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	Config       Config `optional:"true"`
	Credits      *config.CreditConfigHolder
	Tenants      tenantdomain.Service
	Consumption  consumptiondomain.Service
	Provisioning provisioningdomain.Service
	AuthzSvc     authorization.Service
	CRM          crmdomain.Service             `optional:"true"`
	AuditSvc     auditdomain.Service           `optional:"true"`
	Locker       *ratelimit.Locker             `optional:"true"`
	Pusher       *obsmetrics.PushgatewayPusher `optional:"true"`
}

type Scheduler struct {
	log          *zap.Logger
	cfg          Config
	genID        *snowflake.Node
	clock        clock.Clock
	credits      *config.CreditConfigHolder
	tenants      tenantdomain.Service
	consumption  consumptiondomain.Service
	provisioning provisioningdomain.Service
	authzSvc     authorization.Service
	crm          crmdomain.Service
	auditSvc     auditdomain.Service
	locker       *ratelimit.Locker
	pusher       *obsmetrics.PushgatewayPusher

	mu     sync.Mutex
	cron   *cron.Cron
	cancel context.CancelFunc
}

type auditEvent struct {
	TenantID   *snowflake.ID
	Action     string
	TargetType string
	TargetID   string
	Metadata   map[string]any
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.GenID == nil || p.Clock == nil || p.Credits == nil || p.Tenants == nil || p.Consumption == nil || p.Provisioning == nil || p.AuthzSvc == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:          p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:          p.Config.withDefaults(),
		genID:        p.GenID,
		clock:        p.Clock,
		credits:      p.Credits,
		tenants:      p.Tenants,
		consumption:  p.Consumption,
		provisioning: p.Provisioning,
		authzSvc:     p.AuthzSvc,
		crm:          p.CRM,
		auditSvc:     p.AuditSvc,
		locker:       p.Locker,
		pusher:       p.Pusher,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	batchSize int,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	if auditcontext.ActorFromContext(ctx).Type == "" {
		ctx = auditcontext.WithActor(ctx, systemActor())
	}
	ctx, run, owner := s.ensureJobRun(ctx, name, batchSize)
	if owner {
		s.logJobStart(ctx, run)
	}
	log := s.logger(ctx).With(
		zap.String("job", name),
		zap.String("run_id", run.runID),
	)
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(name)
	defer s.pushMetrics(parent, schedMetrics)

	err := fn(ctx)
	schedMetrics.ObserveJobDuration(name, s.clock.Now().Sub(start))
	if owner {
		if err != nil && run.errorCount.Load() == 0 {
			run.IncError()
		}
		s.logJobFinish(ctx, run)
	}
	if err == nil {
		return nil
	}

	// deadline is a soft timeout: the next trigger picks up where this one stopped
	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		schedMetrics.IncJobTimeout(name)
	}
	schedMetrics.IncJobError(name, err)
	if isTimeout {
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

// Start registers the enabled jobs on a cron running in the reset timezone.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	cl := cronLogger{log: s.log.Sugar()}
	c := cron.New(
		cron.WithLocation(s.credits.Get().Location()),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	entries := []struct {
		job  string
		spec string
		run  func(context.Context) error
	}{
		{JobMonthlyReset, s.cfg.MonthlyResetCron, func(ctx context.Context) error {
			_, err := s.RunMonthlyReset(ctx)
			return err
		}},
		{JobCRMRefresh, s.cfg.CRMRefreshCron, func(ctx context.Context) error {
			_, err := s.RunCRMRefresh(ctx)
			return err
		}},
		{JobGatewaySync, s.cfg.GatewaySyncCron, func(ctx context.Context) error {
			_, err := s.RunGatewaySync(ctx)
			return err
		}},
	}

	for _, entry := range entries {
		if strings.TrimSpace(entry.spec) == "" {
			continue
		}
		if !s.isJobEnabled(entry.job) {
			s.log.Info("scheduler job disabled", zap.String("job", entry.job))
			continue
		}
		job, run := entry.job, entry.run
		if _, err := c.AddFunc(entry.spec, func() {
			if err := run(ctx); err != nil {
				s.log.Warn("scheduler run failed", zap.String("job", job), zap.Error(err))
			}
		}); err != nil {
			cancel()
			return fmt.Errorf("schedule %s: %w", job, err)
		}
		s.log.Info("scheduler job registered", zap.String("job", job), zap.String("spec", entry.spec))
	}

	c.Start()
	s.cron = c
	s.cancel = cancel
	return nil
}

// Stop halts the cron and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	c, cancel := s.cron, s.cancel
	s.cron, s.cancel = nil, nil
	s.mu.Unlock()
	if c == nil {
		return nil
	}

	done := c.Stop()
	select {
	case <-done.Done():
		cancel()
		return nil
	case <-ctx.Done():
		cancel()
		return ctx.Err()
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	// empty EnabledJobs enables everything (monolith mode)
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

// RunCRMRefresh recomputes the current period's KPIs for every tenant with a CRM token.
func (s *Scheduler) RunCRMRefresh(ctx context.Context) (*crmdomain.RefreshResult, error) {
	result := &crmdomain.RefreshResult{}
	if s.crm == nil {
		s.logJobSkipped(ctx, JobCRMRefresh, obsmetrics.SchedulerSkipReasonDisabled)
		return result, nil
	}
	err := s.runJob(ctx, JobCRMRefresh, s.credits.Get().ResetWorkers, s.cfg.JobTimeout, func(ctx context.Context) error {
		if err := s.authorizeSystem(ctx, authorization.ObjectCRM, authorization.ActionCRMRefresh); err != nil {
			return err
		}
		p := period.Of(s.clock.Now(), s.credits.Get().Location())
		out, err := s.crm.RefreshAll(ctx, p)
		*result = out
		if err != nil {
			return err
		}
		run := jobRunFromContext(ctx)
		run.AddProcessed(out.Refreshed)
		for i := 0; i < out.Failed; i++ {
			run.IncError()
		}
		obsmetrics.Scheduler().AddBatchProcessed(JobCRMRefresh, "tenant", out.Refreshed)
		return nil
	})
	return result, err
}

// RunGatewaySync links gateway customers and active subscriptions to tenants.
// Replicas share one run through the lock.
func (s *Scheduler) RunGatewaySync(ctx context.Context) (*provisioningdomain.SyncResult, error) {
	result := &provisioningdomain.SyncResult{}
	err := s.runJob(ctx, JobGatewaySync, s.credits.Get().ResetWorkers, s.cfg.JobTimeout, func(ctx context.Context) error {
		if err := s.authorizeSystem(ctx, authorization.ObjectJob, authorization.ActionJobGatewaySync); err != nil {
			return err
		}
		err := s.locker.WithLock(ctx, "scheduler:"+JobGatewaySync, s.cfg.LockTTL, func(ctx context.Context) error {
			out, err := s.provisioning.SyncCustomers(ctx)
			if err != nil {
				return err
			}
			*result = *out
			return nil
		})
		if errors.Is(err, ratelimit.ErrLockHeld) {
			s.logJobSkipped(ctx, JobGatewaySync, obsmetrics.SchedulerSkipReasonLockHeld)
			return nil
		}
		if err != nil {
			return err
		}

		run := jobRunFromContext(ctx)
		run.AddProcessed(result.Matched)
		for i := 0; i < result.Failed; i++ {
			run.IncError()
		}
		obsmetrics.Scheduler().AddBatchProcessed(JobGatewaySync, "customer", result.Matched)
		s.emitAuditEvent(ctx, auditEvent{
			Action:     "gateway.sync",
			TargetType: "job",
			TargetID:   JobGatewaySync,
			Metadata: map[string]any{
				"customers":     result.Customers,
				"matched":       result.Matched,
				"skipped":       result.Skipped,
				"subscriptions": result.Subscriptions,
				"failed":        result.Failed,
			},
		})
		return nil
	})
	return result, err
}

func (s *Scheduler) emitAuditEvent(ctx context.Context, event auditEvent) {
	if s.auditSvc == nil {
		return
	}
	targetID := event.TargetID
	_ = s.auditSvc.AuditLog(ctx, event.TenantID, "", nil, event.Action, event.TargetType, &targetID, event.Metadata)
}

func (s *Scheduler) authorizeSystem(ctx context.Context, object string, action string) error {
	if s.authzSvc == nil {
		return authorization.ErrForbidden
	}
	return s.authzSvc.Authorize(ctx, systemActor(), object, action)
}

// pushMetrics ships the scheduler instruments once a run ends. Failures are logged only.
func (s *Scheduler) pushMetrics(parent context.Context, m *obsmetrics.SchedulerMetrics) {
	if s.pusher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), pushTimeout)
	defer cancel()
	if err := s.pusher.Push(ctx, m.Collectors()...); err != nil {
		s.logger(ctx).Warn("scheduler.metrics.push_failed", zap.Error(err))
	}
}

func systemActor() auditcontext.Actor {
	return auditcontext.Actor{
		Type: auditcontext.ActorTypeSystem,
		ID:   systemActorID,
		Role: authorization.RoleSystem,
	}
}

// cronLogger routes cron's own logging through zap.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
