package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/lexcredit/internal/adjustment"
	adjustmentdomain "github.com/smallbiznis/lexcredit/internal/adjustment/domain"
	"github.com/smallbiznis/lexcredit/internal/audit"
	auditdomain "github.com/smallbiznis/lexcredit/internal/audit/domain"
	"github.com/smallbiznis/lexcredit/internal/authorization"
	"github.com/smallbiznis/lexcredit/internal/balance"
	balancedomain "github.com/smallbiznis/lexcredit/internal/balance/domain"
	"github.com/smallbiznis/lexcredit/internal/config"
	"github.com/smallbiznis/lexcredit/internal/consumption"
	"github.com/smallbiznis/lexcredit/internal/crm"
	crmdomain "github.com/smallbiznis/lexcredit/internal/crm/domain"
	"github.com/smallbiznis/lexcredit/internal/gateway"
	"github.com/smallbiznis/lexcredit/internal/metering"
	"github.com/smallbiznis/lexcredit/internal/observability"
	obsmiddleware "github.com/smallbiznis/lexcredit/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/lexcredit/internal/observability/metrics"
	obstracing "github.com/smallbiznis/lexcredit/internal/observability/tracing"
	"github.com/smallbiznis/lexcredit/internal/payment"
	paymentdomain "github.com/smallbiznis/lexcredit/internal/payment/domain"
	"github.com/smallbiznis/lexcredit/internal/provisioning"
	"github.com/smallbiznis/lexcredit/internal/ratelimit"
	"github.com/smallbiznis/lexcredit/internal/scheduler"
	"github.com/smallbiznis/lexcredit/internal/tenant"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module serves the HTTP API together with every domain service it calls.
// The scheduler is provided for manual job triggers; its cron runs only where
// scheduler.Runner is invoked.
var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	authorization.Module,
	audit.Module,
	tenant.Module,
	consumption.Module,
	metering.Module,
	balance.Module,
	adjustment.Module,
	gateway.Module,
	provisioning.Module,
	payment.Module,
	crm.Module,
	ratelimit.Module,
	scheduler.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine         *gin.Engine
	cfg            config.Config
	log            *zap.Logger
	authzSvc       authorization.Service
	auditSvc       auditdomain.Service
	balanceSvc     balancedomain.Service
	adjustmentSvc  adjustmentdomain.Service
	paymentSvc     paymentdomain.Service
	crmSvc         crmdomain.Service
	scheduler      *scheduler.Scheduler
	paymentLimiter *ratelimit.PaymentLimiter
}

type ServerParams struct {
	fx.In

	Gin            *gin.Engine
	Cfg            config.Config
	Log            *zap.Logger
	AuthzSvc       authorization.Service
	AuditSvc       auditdomain.Service
	BalanceSvc     balancedomain.Service
	AdjustmentSvc  adjustmentdomain.Service
	PaymentSvc     paymentdomain.Service
	CRMSvc         crmdomain.Service         `optional:"true"`
	Scheduler      *scheduler.Scheduler      `optional:"true"`
	PaymentLimiter *ratelimit.PaymentLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		engine:         p.Gin,
		cfg:            p.Cfg,
		log:            log.Named("http.server"),
		authzSvc:       p.AuthzSvc,
		auditSvc:       p.AuditSvc,
		balanceSvc:     p.BalanceSvc,
		adjustmentSvc:  p.AdjustmentSvc,
		paymentSvc:     p.PaymentSvc,
		crmSvc:         p.CRMSvc,
		scheduler:      p.Scheduler,
		paymentLimiter: p.PaymentLimiter,
	}
	s.RegisterAPIRoutes()
	return s
}

func (s *Server) RegisterAPIRoutes() {
	api := s.engine.Group("/api", s.ActorRequired())

	tenants := api.Group("/tenants/:tenant_id", s.TenantScope())
	{
		tenants.GET("/balance", s.authorize(authorization.ObjectBalance, authorization.ActionBalanceView), s.GetBalance)
		tenants.POST("/balance/refresh", s.authorize(authorization.ObjectBalance, authorization.ActionBalanceRefresh), s.RefreshBalance)

		tenants.GET("/purchases/price", s.authorize(authorization.ObjectPurchase, authorization.ActionPurchaseCreate), s.GetPurchasePrice)
		tenants.POST("/purchases", s.authorize(authorization.ObjectPurchase, authorization.ActionPurchaseCreate), s.PaymentRateLimit(), s.CreatePurchase)
		tenants.POST("/subscriptions", s.authorize(authorization.ObjectSubscription, authorization.ActionSubscriptionCreate), s.PaymentRateLimit(), s.CreateSubscription)
		tenants.GET("/transactions", s.authorize(authorization.ObjectTransaction, authorization.ActionTransactionView), s.ListTransactions)

		tenants.GET("/crm/kpis", s.authorize(authorization.ObjectCRM, authorization.ActionCRMView), s.GetCRMKPIs)
		tenants.POST("/crm/kpis/refresh", s.authorize(authorization.ObjectCRM, authorization.ActionCRMRefresh), s.RefreshCRMKPIs)
	}

	admin := api.Group("/admin")
	{
		admin.POST("/tenants/:tenant_id/adjustments", s.authorize(authorization.ObjectAdjustment, authorization.ActionAdjustmentApply), s.ApplyAdjustment)
		admin.POST("/transactions/reconcile", s.authorize(authorization.ObjectTransaction, authorization.ActionTransactionReconcile), s.ReconcileTransaction)
		admin.POST("/jobs/monthly-reset", s.authorize(authorization.ObjectJob, authorization.ActionJobMonthlyReset), s.RunMonthlyReset)
		admin.POST("/jobs/gateway-sync", s.authorize(authorization.ObjectJob, authorization.ActionJobGatewaySync), s.RunGatewaySync)
		admin.GET("/audit-logs", s.authorize(authorization.ObjectAuditLog, authorization.ActionAuditLogView), s.ListAuditLogs)
	}
}
