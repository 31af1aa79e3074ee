package server

import (
	"math"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/lexcredit/internal/observability/logger"
	"github.com/smallbiznis/lexcredit/internal/ratelimit"
	"go.uber.org/zap"
)

const rateLimitReasonTenantRate = "tenant-rate"

// PaymentRateLimit throttles purchase and subscription creation per tenant.
// Requests pass through untouched when no limiter is configured.
func (s *Server) PaymentRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.paymentLimiter == nil || !s.paymentLimiter.Enabled() {
			c.Next()
			return
		}

		tenantID := tenantIDFromContext(c)
		if tenantID == 0 {
			AbortWithError(c, invalidRequestError())
			return
		}

		ctx := c.Request.Context()
		result, err := s.paymentLimiter.AllowTenant(ctx, tenantID.String())
		if err != nil {
			logger.FromContext(ctx).Warn("payment rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}

		setRateLimitHeaders(c, result)
		if !result.Allowed {
			denyPaymentRateLimit(c, result)
			return
		}
		c.Next()
	}
}

func denyPaymentRateLimit(c *gin.Context, result *ratelimit.RateLimitResult) {
	logger.FromContext(c.Request.Context()).Warn("payment rate limit exceeded",
		zap.String("reason", rateLimitReasonTenantRate),
		zap.String("endpoint", normalizeRateLimitEndpoint(c)),
	)

	retryAfter := 1
	if result != nil && result.RetryAfter > 0 {
		retryAfter = int(math.Ceil(result.RetryAfter.Seconds()))
	}
	c.Header("Retry-After", strconv.Itoa(retryAfter))
	c.Header("X-Rate-Limited-Reason", rateLimitReasonTenantRate)
	AbortWithError(c, ErrRateLimited)
}

func setRateLimitHeaders(c *gin.Context, result *ratelimit.RateLimitResult) {
	if result == nil || result.Limit <= 0 {
		return
	}
	c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	if !result.ResetTime.IsZero() {
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetTime.Unix(), 10))
	}
}

func normalizeRateLimitEndpoint(c *gin.Context) string {
	if c == nil {
		return "unknown"
	}
	endpoint := strings.TrimSpace(c.FullPath())
	if endpoint == "" {
		endpoint = strings.TrimSpace(c.Request.URL.Path)
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	return endpoint
}
