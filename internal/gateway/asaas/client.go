// Package asaas implements the gateway client against the Asaas v3 REST API.
package asaas

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/smallbiznis/lexcredit/internal/config"
	"github.com/smallbiznis/lexcredit/internal/gateway/domain"
	"github.com/smallbiznis/lexcredit/internal/observability/metrics"
	"github.com/smallbiznis/lexcredit/pkg/envelope"
	"go.uber.org/zap"
)

const (
	dateLayout     = "2006-01-02"
	maxBodyBytes   = 2 << 20
	defaultTimeout = 12 * time.Second
)

type errorResponse struct {
	Errors []struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"errors"`
}

type listMeta struct {
	HasMore bool `json:"hasMore"`
}

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	metrics *metrics.Metrics
	log     *zap.Logger
}

func New(cfg config.GatewayConfig, m *metrics.Metrics, log *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:  strings.TrimSpace(cfg.APIKey),
		http:    &http.Client{Timeout: timeout},
		metrics: m,
		log:     log.Named("gateway.asaas"),
	}
}

func (c *Client) FindCustomerByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, nil
	}
	return c.findCustomer(ctx, "customer.search", url.Values{"email": {email}})
}

func (c *Client) FindCustomerByTaxID(ctx context.Context, cpfCnpj string) (*domain.Customer, error) {
	cpfCnpj = strings.TrimSpace(cpfCnpj)
	if cpfCnpj == "" {
		return nil, nil
	}
	return c.findCustomer(ctx, "customer.search", url.Values{"cpfCnpj": {cpfCnpj}})
}

func (c *Client) findCustomer(ctx context.Context, op string, query url.Values) (*domain.Customer, error) {
	body, err := c.do(ctx, op, http.MethodGet, "/customers?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	customers, _, err := envelope.DecodeList[domain.Customer](body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidResponse, err)
	}
	for i := range customers {
		if customers[i].ID != "" {
			return &customers[i], nil
		}
	}
	return nil, nil
}

func (c *Client) CreateCustomer(ctx context.Context, in domain.CustomerInput) (*domain.Customer, error) {
	payload := map[string]any{
		"name":    strings.TrimSpace(in.Name),
		"email":   strings.TrimSpace(in.Email),
		"cpfCnpj": strings.TrimSpace(in.CpfCnpj),
	}
	var customer domain.Customer
	if err := c.doJSON(ctx, "customer.create", http.MethodPost, "/customers", payload, &customer); err != nil {
		return nil, err
	}
	if customer.ID == "" {
		return nil, domain.ErrInvalidResponse
	}
	return &customer, nil
}

func (c *Client) ListCustomers(ctx context.Context, offset, limit int) (domain.CustomerPage, error) {
	query := url.Values{}
	query.Set("offset", strconv.Itoa(offset))
	query.Set("limit", strconv.Itoa(limit))
	body, err := c.do(ctx, "customer.list", http.MethodGet, "/customers?"+query.Encode(), nil)
	if err != nil {
		return domain.CustomerPage{}, err
	}
	customers, shape, err := envelope.DecodeList[domain.Customer](body)
	if err != nil {
		return domain.CustomerPage{}, fmt.Errorf("%w: %v", domain.ErrInvalidResponse, err)
	}
	page := domain.CustomerPage{Customers: customers}
	if shape == envelope.ShapeData {
		var meta listMeta
		if err := json.Unmarshal(body, &meta); err == nil {
			page.HasMore = meta.HasMore
		}
	}
	return page, nil
}

func (c *Client) CreateCharge(ctx context.Context, in domain.ChargeInput) (*domain.Charge, error) {
	method := in.BillingMethod
	if method == "" {
		method = domain.BillingMethodUndefined
	}
	payload := map[string]any{
		"customer":          in.CustomerID,
		"billingType":       string(method),
		"value":             centsToValue(in.AmountCents),
		"dueDate":           in.DueDate.Format(dateLayout),
		"description":       in.Description,
		"externalReference": in.ExternalReference,
	}
	var charge domain.Charge
	if err := c.doJSON(ctx, "payment.create", http.MethodPost, "/payments", payload, &charge); err != nil {
		return nil, err
	}
	if charge.ID == "" {
		return nil, domain.ErrInvalidResponse
	}
	return &charge, nil
}

func (c *Client) PixQRCode(ctx context.Context, chargeID string) (*domain.PixQRCode, error) {
	var qr domain.PixQRCode
	path := "/payments/" + url.PathEscape(chargeID) + "/pixQrCode"
	if err := c.doJSON(ctx, "payment.pix_qrcode", http.MethodGet, path, nil, &qr); err != nil {
		return nil, err
	}
	if qr.Payload == "" && qr.EncodedImage == "" {
		return nil, domain.ErrInvalidResponse
	}
	return &qr, nil
}

func (c *Client) CreateSubscription(ctx context.Context, in domain.SubscriptionInput) (*domain.Subscription, error) {
	method := in.BillingMethod
	if method == "" {
		method = domain.BillingMethodUndefined
	}
	cycle := in.Cycle
	if cycle == "" {
		cycle = domain.CycleMonthly
	}
	payload := map[string]any{
		"customer":          in.CustomerID,
		"billingType":       string(method),
		"value":             centsToValue(in.AmountCents),
		"nextDueDate":       in.NextDueDate.Format(dateLayout),
		"cycle":             cycle,
		"description":       in.Description,
		"externalReference": in.ExternalReference,
	}
	var sub domain.Subscription
	if err := c.doJSON(ctx, "subscription.create", http.MethodPost, "/subscriptions", payload, &sub); err != nil {
		return nil, err
	}
	if sub.ID == "" {
		return nil, domain.ErrInvalidResponse
	}
	return &sub, nil
}

func (c *Client) SubscriptionPayments(ctx context.Context, subscriptionID string, limit int) ([]domain.Charge, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	path := "/subscriptions/" + url.PathEscape(subscriptionID) + "/payments?" + query.Encode()
	body, err := c.do(ctx, "subscription.payments", http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	charges, _, err := envelope.DecodeList[domain.Charge](body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidResponse, err)
	}
	return charges, nil
}

func (c *Client) ActiveSubscriptions(ctx context.Context, customerID string) ([]domain.Subscription, error) {
	query := url.Values{}
	query.Set("customer", customerID)
	query.Set("status", "ACTIVE")
	body, err := c.do(ctx, "subscription.list", http.MethodGet, "/subscriptions?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	subs, _, err := envelope.DecodeList[domain.Subscription](body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidResponse, err)
	}
	return subs, nil
}

func (c *Client) CancelSubscription(ctx context.Context, subscriptionID string) error {
	var resp struct {
		ID      string `json:"id"`
		Deleted bool   `json:"deleted"`
	}
	path := "/subscriptions/" + url.PathEscape(subscriptionID)
	if err := c.doJSON(ctx, "subscription.cancel", http.MethodDelete, path, nil, &resp); err != nil {
		return err
	}
	if !resp.Deleted {
		return domain.ErrInvalidResponse
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, op, method, path string, payload any, out any) error {
	body, err := c.do(ctx, op, method, path, payload)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidResponse, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, op, method, path string, payload any) ([]byte, error) {
	if c.apiKey == "" || c.baseURL == "" {
		return nil, domain.ErrGatewayNotConfigured
	}

	start := time.Now()
	body, err := c.send(ctx, op, method, path, payload)
	outcome := "ok"
	switch {
	case errors.Is(err, domain.ErrGatewayRejected):
		outcome = "rejected"
	case err != nil:
		outcome = "error"
	}
	c.metrics.RecordGatewayRequest(ctx, op, outcome, time.Since(start))
	if err != nil {
		c.log.Warn("gateway request failed",
			zap.String("operation", op),
			zap.String("outcome", outcome),
			zap.Error(err),
		)
	}
	return body, err
}

func (c *Client) send(ctx context.Context, op, method, path string, payload any) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, &domain.UnreachableError{Operation: op, Err: err}
	}
	req.Header.Set("access_token", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &domain.UnreachableError{Operation: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &domain.UnreachableError{Operation: op, Err: err}
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, rejection(resp.StatusCode, body)
	}
	return body, nil
}

func rejection(status int, body []byte) error {
	rejected := &domain.RejectedError{StatusCode: status}
	var parsed errorResponse
	if err := json.Unmarshal(body, &parsed); err == nil && len(parsed.Errors) > 0 {
		rejected.Code = strings.TrimSpace(parsed.Errors[0].Code)
		rejected.Message = strings.TrimSpace(parsed.Errors[0].Description)
	}
	return rejected
}

func centsToValue(cents int64) float64 {
	return float64(cents) / 100
}

var _ domain.Client = (*Client)(nil)
