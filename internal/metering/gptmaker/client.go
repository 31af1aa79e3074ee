package gptmaker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/smallbiznis/lexcredit/internal/config"
	"github.com/smallbiznis/lexcredit/internal/metering/domain"
	"github.com/smallbiznis/lexcredit/internal/observability/metrics"
	"github.com/smallbiznis/lexcredit/internal/period"
	"go.uber.org/zap"
)

const (
	providerName   = "gptmaker"
	maxBodyBytes   = 1 << 20
	defaultTimeout = 10 * time.Second
)

type Client struct {
	baseURL string
	token   string
	http    *http.Client
	metrics *metrics.Metrics
	log     *zap.Logger
}

func New(cfg config.MeteringConfig, m *metrics.Metrics, log *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		token:   strings.TrimSpace(cfg.Token),
		http:    &http.Client{Timeout: timeout},
		metrics: m,
		log:     log.Named("metering.gptmaker"),
	}
}

func (c *Client) CreditsSpent(ctx context.Context, agentID string, p period.Period) (domain.Usage, error) {
	agentID = strings.TrimSpace(agentID)
	if agentID == "" {
		return domain.Usage{}, domain.ErrAgentNotConfigured
	}

	usage, err := c.fetch(ctx, agentID, p)
	outcome := "ok"
	if err != nil {
		outcome = "error"
		c.log.Warn("metering fetch failed",
			zap.String("agent_id", agentID),
			zap.String("period", p.String()),
			zap.Error(err),
		)
	}
	c.metrics.RecordMeteringFetch(ctx, providerName, outcome)
	return usage, err
}

func (c *Client) fetch(ctx context.Context, agentID string, p period.Period) (domain.Usage, error) {
	query := url.Values{}
	query.Set("year", strconv.Itoa(p.Year))
	query.Set("month", strconv.Itoa(int(p.Month)))
	endpoint := fmt.Sprintf("%s/v2/agent/%s/credits-spent?%s", c.baseURL, url.PathEscape(agentID), query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.Usage{}, &domain.UnavailableError{Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.Usage{}, &domain.UnavailableError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return domain.Usage{}, &domain.UnavailableError{Err: err}
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return domain.Usage{}, &domain.UnavailableError{StatusCode: resp.StatusCode}
	}

	raw := map[string]any{}
	if len(strings.TrimSpace(string(body))) > 0 {
		if err := json.Unmarshal(body, &raw); err != nil {
			return domain.Usage{}, &domain.UnavailableError{Err: fmt.Errorf("decode response: %w", err)}
		}
	}

	return domain.Usage{Total: totalFrom(raw["total"]), Raw: raw}, nil
}

// totalFrom reads the provider total; absent or unparseable values count as zero.
func totalFrom(value any) int64 {
	switch v := value.(type) {
	case float64:
		return int64(math.Round(v))
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0
		}
		return int64(math.Round(parsed))
	default:
		return 0
	}
}
