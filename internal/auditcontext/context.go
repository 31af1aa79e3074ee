package auditcontext

import (
	"context"
	"strings"
)

type contextKey string

const (
	actorTypeKey  contextKey = "audit_actor_type"
	actorIDKey    contextKey = "audit_actor_id"
	actorEmailKey contextKey = "audit_actor_email"
	actorRoleKey  contextKey = "audit_actor_role"
	requestIDKey  contextKey = "audit_request_id"
	ipAddressKey  contextKey = "audit_ip_address"
	userAgentKey  contextKey = "audit_user_agent"
)

const (
	ActorTypeUser   = "user"
	ActorTypeSystem = "system"
)

// Actor identifies who triggered an operation, as asserted by the upstream proxy.
type Actor struct {
	Type  string
	ID    string
	Email string
	Role  string
}

func WithActor(ctx context.Context, actor Actor) context.Context {
	ctx = withString(ctx, actorTypeKey, actor.Type)
	ctx = withString(ctx, actorIDKey, actor.ID)
	ctx = withString(ctx, actorEmailKey, actor.Email)
	return withString(ctx, actorRoleKey, strings.ToLower(strings.TrimSpace(actor.Role)))
}

func ActorFromContext(ctx context.Context) Actor {
	return Actor{
		Type:  stringFromContext(ctx, actorTypeKey),
		ID:    stringFromContext(ctx, actorIDKey),
		Email: stringFromContext(ctx, actorEmailKey),
		Role:  stringFromContext(ctx, actorRoleKey),
	}
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return withString(ctx, requestIDKey, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, requestIDKey)
}

func WithIPAddress(ctx context.Context, ip string) context.Context {
	return withString(ctx, ipAddressKey, ip)
}

func IPAddressFromContext(ctx context.Context) string {
	return stringFromContext(ctx, ipAddressKey)
}

func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	return withString(ctx, userAgentKey, userAgent)
}

func UserAgentFromContext(ctx context.Context) string {
	return stringFromContext(ctx, userAgentKey)
}

func withString(ctx context.Context, key contextKey, value string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func stringFromContext(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(key).(string)
	return value
}
