package authorization

import (
	"context"
	"testing"

	"github.com/smallbiznis/lexcredit/internal/auditcontext"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) Service {
	t.Helper()
	enforcer, err := NewMemoryEnforcer()
	require.NoError(t, err)
	return NewService(Params{Log: zap.NewNop(), Enforcer: enforcer})
}

func TestAuthorizeAdminInheritsMember(t *testing.T) {
	svc := newTestService(t)
	admin := auditcontext.Actor{Type: auditcontext.ActorTypeUser, ID: "42", Role: "Admin"}

	require.NoError(t, svc.Authorize(context.Background(), admin, ObjectAdjustment, ActionAdjustmentApply))
	require.NoError(t, svc.Authorize(context.Background(), admin, ObjectBalance, ActionBalanceView))
}

func TestAuthorizeMemberCannotAdjust(t *testing.T) {
	svc := newTestService(t)
	member := auditcontext.Actor{Type: auditcontext.ActorTypeUser, ID: "7", Role: RoleMember}

	err := svc.Authorize(context.Background(), member, ObjectAdjustment, ActionAdjustmentApply)
	require.ErrorIs(t, err, ErrForbidden)
	require.NoError(t, svc.Authorize(context.Background(), member, ObjectPurchase, ActionPurchaseCreate))
}

func TestAuthorizeSystemActor(t *testing.T) {
	svc := newTestService(t)
	system := auditcontext.Actor{Type: auditcontext.ActorTypeSystem}

	require.NoError(t, svc.Authorize(context.Background(), system, ObjectJob, ActionJobMonthlyReset))
	require.ErrorIs(t, svc.Authorize(context.Background(), system, ObjectAdjustment, ActionAdjustmentApply), ErrForbidden)
}

func TestAuthorizeRejectsInvalidActors(t *testing.T) {
	svc := newTestService(t)

	cases := []struct {
		name  string
		actor auditcontext.Actor
		want  error
	}{
		{name: "empty", actor: auditcontext.Actor{}, want: ErrInvalidActor},
		{name: "missing id", actor: auditcontext.Actor{Type: auditcontext.ActorTypeUser, Role: RoleAdmin}, want: ErrInvalidActor},
		{name: "missing role", actor: auditcontext.Actor{Type: auditcontext.ActorTypeUser, ID: "1"}, want: ErrInvalidActor},
		{name: "unknown role", actor: auditcontext.Actor{Type: auditcontext.ActorTypeUser, ID: "1", Role: "owner"}, want: ErrInvalidRole},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := svc.Authorize(context.Background(), tc.actor, ObjectBalance, ActionBalanceView)
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestAuthorizeRequiresObjectAndAction(t *testing.T) {
	svc := newTestService(t)
	admin := auditcontext.Actor{Type: auditcontext.ActorTypeUser, ID: "1", Role: RoleAdmin}

	require.ErrorIs(t, svc.Authorize(context.Background(), admin, "", ActionBalanceView), ErrInvalidObject)
	require.ErrorIs(t, svc.Authorize(context.Background(), admin, ObjectBalance, " "), ErrInvalidAction)
}
