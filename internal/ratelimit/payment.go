package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/lexcredit/internal/config"
)

const keyPaymentTenant = "payment:tenant:%s"

// PaymentLimiter throttles purchase and subscription requests per tenant.
type PaymentLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

func NewPaymentLimiter(cfg config.Config, client *redis.Client) (*PaymentLimiter, error) {
	if client == nil {
		return nil, nil
	}
	limitCfg := cfg.RateLimit
	if limitCfg.PaymentRate <= 0 || limitCfg.PaymentBurst <= 0 {
		return nil, errors.New("payment rate limit must be positive")
	}
	return &PaymentLimiter{
		bucket: NewTokenBucket(client),
		rate:   limitCfg.PaymentRate,
		burst:  limitCfg.PaymentBurst,
	}, nil
}

func (l *PaymentLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

// AllowTenant takes one token from the tenant's bucket. A disabled limiter allows everything.
func (l *PaymentLimiter) AllowTenant(ctx context.Context, tenantID string) (*RateLimitResult, error) {
	if !l.Enabled() {
		return &RateLimitResult{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyPaymentTenant, strings.TrimSpace(tenantID)), l.rate, l.burst)
}
