package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	adjustmentdomain "github.com/smallbiznis/lexcredit/internal/adjustment/domain"
	auditdomain "github.com/smallbiznis/lexcredit/internal/audit/domain"
	"github.com/smallbiznis/lexcredit/internal/authorization"
	balancedomain "github.com/smallbiznis/lexcredit/internal/balance/domain"
	consumptiondomain "github.com/smallbiznis/lexcredit/internal/consumption/domain"
	crmdomain "github.com/smallbiznis/lexcredit/internal/crm/domain"
	gatewaydomain "github.com/smallbiznis/lexcredit/internal/gateway/domain"
	meteringdomain "github.com/smallbiznis/lexcredit/internal/metering/domain"
	paymentdomain "github.com/smallbiznis/lexcredit/internal/payment/domain"
	"github.com/smallbiznis/lexcredit/internal/period"
	provisioningdomain "github.com/smallbiznis/lexcredit/internal/provisioning/domain"
	tenantdomain "github.com/smallbiznis/lexcredit/internal/tenant/domain"
)

// invoiceRetryAfterSeconds is sent with 504 responses while the gateway invoice is still pending.
const invoiceRetryAfterSeconds = 5

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrRateLimited        = errors.New("rate_limited")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		if status == http.StatusGatewayTimeout {
			c.Header("Retry-After", strconv.Itoa(invoiceRetryAfterSeconds))
		}
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

// classifyErrorForLog gives the request logger the same type and code the client sees.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	} else if payload.Type != "internal_error" && err != nil {
		code = err.Error()
	}
	return payload.Type, code
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, authorization.ErrInvalidActor):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authorization.ErrForbidden),
		errors.Is(err, authorization.ErrInvalidRole):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, adjustmentdomain.ErrConflict),
		errors.Is(err, tenantdomain.ErrConcurrentUpdate):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "concurrent update, retry the request",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, gatewaydomain.ErrGatewayRejected):
		return http.StatusBadGateway, errorPayload{
			Type:    "gateway_rejected",
			Message: gatewayRejectedMessage(err),
		}
	case errors.Is(err, gatewaydomain.ErrInvalidResponse):
		return http.StatusBadGateway, errorPayload{
			Type:    "gateway_invalid_response",
			Message: "payment gateway returned an invalid response",
		}
	case errors.Is(err, paymentdomain.ErrInvoiceNotReady):
		return http.StatusGatewayTimeout, errorPayload{
			Type:    "invoice_not_ready",
			Message: "invoice is not ready yet, retry shortly",
		}
	case isUnavailableError(err):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: unavailableMessage(err),
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return true
	case isAdjustmentValidationError(err),
		isPaymentValidationError(err),
		isCRMValidationError(err),
		isAuditValidationError(err):
		return true
	case errors.Is(err, period.ErrInvalidPeriod),
		errors.Is(err, balancedomain.ErrInvalidPeriod),
		errors.Is(err, consumptiondomain.ErrInvalidPeriod),
		errors.Is(err, consumptiondomain.ErrInvalidTenant),
		errors.Is(err, tenantdomain.ErrInvalidTenant),
		errors.Is(err, meteringdomain.ErrAgentNotConfigured),
		errors.Is(err, provisioningdomain.ErrMissingTaxID),
		errors.Is(err, authorization.ErrInvalidObject),
		errors.Is(err, authorization.ErrInvalidAction):
		return true
	default:
		return false
	}
}

func isAdjustmentValidationError(err error) bool {
	return errors.Is(err, adjustmentdomain.ErrInvalidTenant) ||
		errors.Is(err, adjustmentdomain.ErrInvalidAction) ||
		errors.Is(err, adjustmentdomain.ErrInvalidAmount) ||
		errors.Is(err, adjustmentdomain.ErrMissingReason)
}

func isPaymentValidationError(err error) bool {
	return errors.Is(err, paymentdomain.ErrInvalidTenant) ||
		errors.Is(err, paymentdomain.ErrInvalidCredits) ||
		errors.Is(err, paymentdomain.ErrInvalidBillingMethod) ||
		errors.Is(err, paymentdomain.ErrInvalidPlan) ||
		errors.Is(err, paymentdomain.ErrPlanNotPriced) ||
		errors.Is(err, paymentdomain.ErrInvalidReconcile) ||
		errors.Is(err, paymentdomain.ErrInvalidPageToken)
}

func isCRMValidationError(err error) bool {
	return errors.Is(err, crmdomain.ErrInvalidTenant) ||
		errors.Is(err, crmdomain.ErrInvalidPeriod) ||
		errors.Is(err, crmdomain.ErrTokenNotConfigured)
}

func isAuditValidationError(err error) bool {
	return errors.Is(err, auditdomain.ErrInvalidPageToken) ||
		errors.Is(err, auditdomain.ErrInvalidTimeRange) ||
		errors.Is(err, auditdomain.ErrInvalidAction)
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, tenantdomain.ErrTenantNotFound),
		errors.Is(err, tenantdomain.ErrPlanNotFound),
		errors.Is(err, paymentdomain.ErrTransactionNotFound),
		errors.Is(err, crmdomain.ErrKPINotFound),
		errors.Is(err, consumptiondomain.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func isUnavailableError(err error) bool {
	switch {
	case errors.Is(err, ErrServiceUnavailable),
		errors.Is(err, meteringdomain.ErrMeteringUnavailable),
		errors.Is(err, gatewaydomain.ErrGatewayUnreachable),
		errors.Is(err, gatewaydomain.ErrGatewayNotConfigured),
		errors.Is(err, crmdomain.ErrProviderUnavailable):
		return true
	default:
		return false
	}
}

func gatewayRejectedMessage(err error) string {
	var rejected *gatewaydomain.RejectedError
	if errors.As(err, &rejected) && strings.TrimSpace(rejected.Message) != "" {
		return rejected.Message
	}
	return "payment gateway rejected the request"
}

func unavailableMessage(err error) string {
	switch {
	case errors.Is(err, meteringdomain.ErrMeteringUnavailable):
		return "metering provider unavailable"
	case errors.Is(err, gatewaydomain.ErrGatewayUnreachable),
		errors.Is(err, gatewaydomain.ErrGatewayNotConfigured):
		return "payment gateway unavailable"
	case errors.Is(err, crmdomain.ErrProviderUnavailable):
		return "crm provider unavailable"
	default:
		return "service unavailable"
	}
}

func validationErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	default:
		return err.Error()
	}
}

func validationErrorField(code string) string {
	switch code {
	case "invalid_request":
		return "request"
	case "missing_reason":
		return "reason"
	case "missing_tax_id":
		return "tax_id"
	case "plan_not_priced", "invalid_plan":
		return "plan_id"
	case "invalid_adjustment_action":
		return "action"
	case "invalid_reconcile_request":
		return "external_reference"
	case "metering_agent_not_configured":
		return "agent_id"
	case "crm_token_not_configured":
		return "crm_token"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "missing_reason":
		return "reason is required"
	case "missing_tax_id":
		return "tenant has no tax id"
	case "plan_not_priced":
		return "plan has no price"
	case "metering_agent_not_configured":
		return "tenant has no metering agent"
	case "crm_token_not_configured":
		return "tenant has no crm token"
	default:
		return "invalid value"
	}
}
