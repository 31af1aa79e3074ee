package jestor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/smallbiznis/lexcredit/internal/config"
	"github.com/smallbiznis/lexcredit/internal/crm/domain"
	"github.com/smallbiznis/lexcredit/internal/observability/metrics"
	"github.com/smallbiznis/lexcredit/pkg/envelope"
	"go.uber.org/zap"
)

const (
	providerName   = "jestor"
	maxBodyBytes   = 16 << 20
	defaultTimeout = 15 * time.Second
	listLimit      = 10000
)

type Client struct {
	baseURL    string
	objectType string
	http       *http.Client
	metrics    *metrics.Metrics
	log        *zap.Logger
}

func New(cfg config.CRMConfig, m *metrics.Metrics, log *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		objectType: strings.TrimSpace(cfg.ObjectType),
		http:       &http.Client{Timeout: timeout},
		metrics:    m,
		log:        log.Named("crm.jestor"),
	}
}

func (c *Client) ListLeads(ctx context.Context, token string) ([]domain.Lead, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, domain.ErrTokenNotConfigured
	}

	leads, err := c.list(ctx, token)
	outcome := "ok"
	if err != nil {
		outcome = "error"
		c.log.Warn("crm lead listing failed", zap.Error(err))
	}
	c.metrics.RecordCRMFetch(ctx, providerName, outcome)
	return leads, err
}

func (c *Client) list(ctx context.Context, token string) ([]domain.Lead, error) {
	if c.baseURL == "" {
		return nil, &domain.UnavailableError{Err: fmt.Errorf("base url not configured")}
	}
	payload, err := json.Marshal(map[string]any{
		"object_type": c.objectType,
		"fields":      []string{"*"},
		"limit":       listLimit,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/object/list", bytes.NewReader(payload))
	if err != nil {
		return nil, &domain.UnavailableError{Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &domain.UnavailableError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &domain.UnavailableError{Err: err}
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &domain.UnavailableError{StatusCode: resp.StatusCode}
	}

	leads, shape, err := envelope.DecodeList[domain.Lead](body)
	if err != nil {
		return nil, &domain.UnavailableError{Err: fmt.Errorf("decode leads: %w", err)}
	}
	c.log.Debug("crm leads listed", zap.Int("count", len(leads)), zap.String("shape", string(shape)))
	return leads, nil
}
