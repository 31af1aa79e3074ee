package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/lexcredit/internal/auditcontext"
	"github.com/smallbiznis/lexcredit/internal/authorization"
	obscontext "github.com/smallbiznis/lexcredit/internal/observability/context"
)

// Identity headers are set by the authenticating proxy in front of the API.
const (
	HeaderActorID       = "X-Actor-Id"
	HeaderActorEmail    = "X-Actor-Email"
	HeaderActorRole     = "X-Actor-Role"
	HeaderActorTenantID = "X-Actor-Tenant-Id"

	contextActorKey    = "actor"
	contextActorTenant = "actor_tenant_id"
	contextTenantIDKey = "tenant_id"
)

// ActorRequired reads the proxy identity headers and stores the actor on the request context.
func (s *Server) ActorRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := auditcontext.Actor{
			Type:  auditcontext.ActorTypeUser,
			ID:    strings.TrimSpace(c.GetHeader(HeaderActorID)),
			Email: strings.TrimSpace(c.GetHeader(HeaderActorEmail)),
			Role:  strings.ToLower(strings.TrimSpace(c.GetHeader(HeaderActorRole))),
		}
		if actor.ID == "" || actor.Role == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if actor.Role == authorization.RoleSystem {
			AbortWithError(c, ErrForbidden)
			return
		}

		ctx := auditcontext.WithActor(c.Request.Context(), actor)
		ctx = obscontext.WithActor(ctx, actor.Type, actor.ID)
		c.Request = c.Request.WithContext(ctx)
		c.Set(contextActorKey, actor)
		if tenantID := strings.TrimSpace(c.GetHeader(HeaderActorTenantID)); tenantID != "" {
			c.Set(contextActorTenant, tenantID)
		}
		c.Next()
	}
}

// TenantScope parses :tenant_id and keeps members inside their own tenant.
func (s *Server) TenantScope() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, err := parseSnowflakeID(c.Param("tenant_id"))
		if err != nil {
			AbortWithError(c, newValidationError("tenant_id", "invalid_tenant_id", "invalid tenant_id"))
			return
		}

		actor := actorFromContext(c)
		if actor.Role != authorization.RoleAdmin {
			own, _ := c.Get(contextActorTenant)
			if ownID, _ := own.(string); ownID != tenantID.String() {
				AbortWithError(c, ErrForbidden)
				return
			}
		}

		c.Request = c.Request.WithContext(obscontext.WithTenantID(c.Request.Context(), tenantID.String()))
		c.Set(contextTenantIDKey, tenantID)
		c.Next()
	}
}

func (s *Server) authorize(object string, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.authzSvc == nil {
			AbortWithError(c, ErrForbidden)
			return
		}
		if err := s.authzSvc.Authorize(c.Request.Context(), actorFromContext(c), object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

func actorFromContext(c *gin.Context) auditcontext.Actor {
	if value, ok := c.Get(contextActorKey); ok {
		if actor, ok := value.(auditcontext.Actor); ok {
			return actor
		}
	}
	return auditcontext.Actor{}
}

func tenantIDFromContext(c *gin.Context) snowflake.ID {
	if value, ok := c.Get(contextTenantIDKey); ok {
		if id, ok := value.(snowflake.ID); ok {
			return id
		}
	}
	return 0
}
