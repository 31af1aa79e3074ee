package authorization

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	auditdomain "github.com/smallbiznis/lexcredit/internal/audit/domain"
	"github.com/smallbiznis/lexcredit/internal/auditcontext"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	RoleAdmin  = "admin"
	RoleMember = "member"
	RoleSystem = "system"
)

const (
	ObjectBalance      = "balance"
	ObjectAdjustment   = "adjustment"
	ObjectPurchase     = "purchase"
	ObjectSubscription = "subscription"
	ObjectTransaction  = "transaction"
	ObjectJob          = "job"
	ObjectCRM          = "crm"
	ObjectAuditLog     = "audit_log"
)

const (
	ActionBalanceView    = "balance.view"
	ActionBalanceRefresh = "balance.refresh"

	ActionAdjustmentApply = "adjustment.apply"

	ActionPurchaseCreate     = "purchase.create"
	ActionSubscriptionCreate = "subscription.create"

	ActionTransactionView      = "transaction.view"
	ActionTransactionReconcile = "transaction.reconcile"

	ActionJobMonthlyReset = "job.monthly_reset"
	ActionJobGatewaySync  = "job.gateway_sync"

	ActionCRMView    = "crm.view"
	ActionCRMRefresh = "crm.refresh"

	ActionAuditLogView = "audit_log.view"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
	AuditSvc auditdomain.Service `optional:"true"`
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
	auditSvc auditdomain.Service
}

// NewEnforcer loads persisted policies through the gorm adapter and seeds the built-in roles.
func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	if err := enforcer.BuildRoleLinks(); err != nil {
		return nil, err
	}
	return enforcer, nil
}

// NewMemoryEnforcer builds an enforcer without persistence, seeded with the built-in roles.
func NewMemoryEnforcer() (*casbin.SyncedEnforcer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	if err := enforcer.BuildRoleLinks(); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
		auditSvc: p.AuditSvc,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, actor auditcontext.Actor, object string, action string) error {
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	role, err := roleSubject(actor)
	if err != nil {
		s.auditDenied(ctx, actor, object, action)
		return err
	}

	allowed, err := s.enforcer.Enforce(role, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.log.Debug("authorization denied",
			zap.String("role", role),
			zap.String("object", object),
			zap.String("action", action),
		)
		s.auditDenied(ctx, actor, object, action)
		return ErrForbidden
	}
	return nil
}

func roleSubject(actor auditcontext.Actor) (string, error) {
	actorType := strings.TrimSpace(actor.Type)
	if actorType == auditcontext.ActorTypeSystem {
		return "role:" + RoleSystem, nil
	}
	if actorType != auditcontext.ActorTypeUser || strings.TrimSpace(actor.ID) == "" {
		return "", ErrInvalidActor
	}
	role := strings.ToLower(strings.TrimSpace(actor.Role))
	switch role {
	case RoleAdmin, RoleMember:
		return fmt.Sprintf("role:%s", role), nil
	case "":
		return "", ErrInvalidActor
	default:
		return "", ErrInvalidRole
	}
}

func (s *ServiceImpl) auditDenied(ctx context.Context, actor auditcontext.Actor, object string, action string) {
	if s.auditSvc == nil {
		return
	}
	actorType := strings.TrimSpace(actor.Type)
	if actorType == "" {
		actorType = "unknown"
	}
	var actorID *string
	if id := strings.TrimSpace(actor.ID); id != "" {
		actorID = &id
	}
	target := "capability"
	_ = s.auditSvc.AuditLog(ctx, nil, actorType, actorID, "authorization.denied", "authorization", &target, map[string]any{
		"object": object,
		"action": action,
		"role":   actor.Role,
	})
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		// Member permissions
		{"role:member", ObjectBalance, ActionBalanceView},
		{"role:member", ObjectBalance, ActionBalanceRefresh},
		{"role:member", ObjectPurchase, ActionPurchaseCreate},
		{"role:member", ObjectSubscription, ActionSubscriptionCreate},
		{"role:member", ObjectTransaction, ActionTransactionView},
		{"role:member", ObjectCRM, ActionCRMView},
		{"role:member", ObjectCRM, ActionCRMRefresh},

		// Admin permissions
		{"role:admin", ObjectAdjustment, ActionAdjustmentApply},
		{"role:admin", ObjectTransaction, ActionTransactionReconcile},
		{"role:admin", ObjectJob, ActionJobMonthlyReset},
		{"role:admin", ObjectJob, ActionJobGatewaySync},
		{"role:admin", ObjectAuditLog, ActionAuditLogView},

		// System permissions (scheduler and webhook finalizer)
		{"role:system", ObjectTransaction, ActionTransactionReconcile},
		{"role:system", ObjectJob, ActionJobMonthlyReset},
		{"role:system", ObjectJob, ActionJobGatewaySync},
		{"role:system", ObjectCRM, ActionCRMRefresh},
		{"role:system", ObjectBalance, ActionBalanceRefresh},
	}

	for _, policy := range policies {
		has, err := enforcer.HasPolicy(policy)
		if err != nil {
			return err
		}
		if has {
			continue
		}
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}

	has, err := enforcer.HasGroupingPolicy("role:admin", "role:member")
	if err != nil {
		return err
	}
	if !has {
		if _, err := enforcer.AddGroupingPolicy("role:admin", "role:member"); err != nil {
			return err
		}
	}
	return nil
}
