package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/smallbiznis/lexcredit/internal/period"
)

// Usage is the consumption reported by the metering provider for one period.
type Usage struct {
	Total int64
	Raw   map[string]any
}

//go:generate mockgen -destination=../mock/client_mock.go -package=mock . Client

// Client reads consumed credits for an agent in a period.
type Client interface {
	CreditsSpent(ctx context.Context, agentID string, p period.Period) (Usage, error)
}

var (
	ErrAgentNotConfigured  = errors.New("metering_agent_not_configured")
	ErrMeteringUnavailable = errors.New("metering_unavailable")
)

// UnavailableError reports a provider failure. It matches ErrMeteringUnavailable.
type UnavailableError struct {
	StatusCode int
	Err        error
}

func (e *UnavailableError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("metering provider returned status %d", e.StatusCode)
	}
	if e.Err != nil {
		return "metering provider unreachable: " + e.Err.Error()
	}
	return ErrMeteringUnavailable.Error()
}

func (e *UnavailableError) Unwrap() error { return e.Err }

func (e *UnavailableError) Is(target error) bool { return target == ErrMeteringUnavailable }
