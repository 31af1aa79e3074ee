package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/cenkalti/backoff/v5"
	"github.com/go-playground/validator/v10"
	auditdomain "github.com/smallbiznis/lexcredit/internal/audit/domain"
	"github.com/smallbiznis/lexcredit/internal/clock"
	"github.com/smallbiznis/lexcredit/internal/config"
	gatewaydomain "github.com/smallbiznis/lexcredit/internal/gateway/domain"
	"github.com/smallbiznis/lexcredit/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/lexcredit/internal/payment/domain"
	"github.com/smallbiznis/lexcredit/internal/period"
	provisioningdomain "github.com/smallbiznis/lexcredit/internal/provisioning/domain"
	tenantdomain "github.com/smallbiznis/lexcredit/internal/tenant/domain"
	"github.com/smallbiznis/lexcredit/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const dateLayout = "2006-01-02"

var errInvoicePending = errors.New("invoice_pending")

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	Credits      *config.CreditConfigHolder
	Repo         paymentdomain.Repository
	Tenants      tenantdomain.Service
	Provisioning provisioningdomain.Service
	Gateway      gatewaydomain.Client
	Metrics      *metrics.Metrics    `optional:"true"`
	AuditSvc     auditdomain.Service `optional:"true"`
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	clock        clock.Clock
	credits      *config.CreditConfigHolder
	repo         paymentdomain.Repository
	tenants      tenantdomain.Service
	provisioning provisioningdomain.Service
	gateway      gatewaydomain.Client
	metrics      *metrics.Metrics
	auditSvc     auditdomain.Service
	validate     *validator.Validate
}

func New(p Params) paymentdomain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("payment.service"),
		genID:        p.GenID,
		clock:        p.Clock,
		credits:      p.Credits,
		repo:         p.Repo,
		tenants:      p.Tenants,
		provisioning: p.Provisioning,
		gateway:      p.Gateway,
		metrics:      p.Metrics,
		auditSvc:     p.AuditSvc,
		validate:     validator.New(),
	}
}

func (s *Service) Quote(credits int64) (paymentdomain.Quote, error) {
	return paymentdomain.Price(s.credits.Get().PriceTable, credits)
}

func (s *Service) PurchaseCredits(ctx context.Context, req paymentdomain.PurchaseRequest) (*paymentdomain.PurchaseResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, validationError(err)
	}
	method := req.BillingMethod
	if method == "" {
		method = gatewaydomain.BillingMethodUndefined
	}
	quote, err := s.Quote(req.Credits)
	if err != nil {
		return nil, err
	}
	tenant, err := s.tenants.Get(ctx, req.TenantID)
	if err != nil {
		return nil, err
	}

	settings := s.credits.Get()
	now := s.clock.Now()
	txn := &paymentdomain.Transaction{
		ID:            s.genID.Generate(),
		TenantID:      tenant.ID,
		Kind:          paymentdomain.KindCreditPurchase,
		AmountCents:   quote.AmountCents,
		Currency:      quote.Currency,
		Status:        paymentdomain.StatusPending,
		Description:   fmt.Sprintf("Compra de %d créditos avulsos", quote.Credits),
		BillingMethod: string(method),
		Metadata:      datatypes.JSONMap{paymentdomain.MetadataCredits: quote.Credits},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	txn.ExternalReference = "credits_" + txn.ID.String()
	if err := s.repo.Insert(ctx, s.db, txn); err != nil {
		return nil, err
	}

	customerID, err := s.provisioning.EnsureCustomer(ctx, tenant.ID)
	if err != nil {
		return nil, s.fail(ctx, txn, err)
	}

	charge, err := s.gateway.CreateCharge(ctx, gatewaydomain.ChargeInput{
		CustomerID:        customerID,
		AmountCents:       quote.AmountCents,
		DueDate:           now.AddDate(0, 0, settings.ChargeDueDays),
		Description:       txn.Description,
		ExternalReference: txn.ExternalReference,
		BillingMethod:     method,
	})
	if err != nil {
		return nil, s.fail(ctx, txn, err)
	}
	if strings.TrimSpace(charge.InvoiceURL) == "" {
		txn.GatewayID = &charge.ID
		return nil, s.failWithReason(ctx, txn, paymentdomain.FailureMissingInvoice, gatewaydomain.ErrInvalidResponse)
	}

	if err := s.attach(ctx, txn, charge.ID, charge.InvoiceURL); err != nil {
		return nil, err
	}

	result := &paymentdomain.PurchaseResult{
		Transaction: txn,
		Quote:       quote,
		InvoiceURL:  charge.InvoiceURL,
	}
	if method == gatewaydomain.BillingMethodPix {
		qr, err := s.gateway.PixQRCode(ctx, charge.ID)
		if err != nil {
			s.log.Warn("pix qr code unavailable, invoice link still valid",
				zap.String("transaction_id", txn.ID.String()),
				zap.Error(err),
			)
		} else {
			result.Pix = qr
		}
	}

	s.metrics.RecordPaymentTransaction(ctx, string(txn.Kind), string(txn.Status))
	s.audit(ctx, txn, "payment.purchase_created", map[string]any{
		"credits":        quote.Credits,
		"amount_cents":   quote.AmountCents,
		"billing_method": string(method),
	})
	s.log.Info("credit purchase created",
		zap.String("tenant_id", tenant.ID.String()),
		zap.String("transaction_id", txn.ID.String()),
		zap.Int64("credits", quote.Credits),
	)
	return result, nil
}

func (s *Service) SubscribeToPlan(ctx context.Context, req paymentdomain.SubscribeRequest) (*paymentdomain.SubscribeResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, validationError(err)
	}
	method := req.BillingMethod
	if method == "" {
		method = gatewaydomain.BillingMethodUndefined
	}
	tenant, err := s.tenants.Get(ctx, req.TenantID)
	if err != nil {
		return nil, err
	}
	plan, err := s.tenants.GetPlan(ctx, req.PlanID)
	if err != nil {
		return nil, err
	}
	if plan.PriceCents <= 0 {
		return nil, paymentdomain.ErrPlanNotPriced
	}

	settings := s.credits.Get()
	resumed, err := s.outstandingSubscription(ctx, tenant, plan.ID)
	if err != nil {
		return nil, err
	}
	if resumed != nil {
		return s.resumeSubscription(ctx, tenant, plan, resumed, settings.SubscriptionPoll)
	}

	loc := settings.Location()
	now := s.clock.Now()
	nextDue := period.Of(now, loc).Next().Start(loc)

	txn := &paymentdomain.Transaction{
		ID:            s.genID.Generate(),
		TenantID:      tenant.ID,
		Kind:          paymentdomain.KindSubscription,
		AmountCents:   plan.PriceCents,
		Currency:      settings.PriceTable.Currency,
		Status:        paymentdomain.StatusPending,
		Description:   "Assinatura " + plan.Name,
		BillingMethod: string(method),
		Metadata: datatypes.JSONMap{
			paymentdomain.MetadataPlanID:      plan.ID.String(),
			paymentdomain.MetadataNextDueDate: nextDue.Format(dateLayout),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	txn.ExternalReference = fmt.Sprintf("sub_%s_%s_%s", tenant.ID, plan.ID, txn.ID)
	if err := s.repo.Insert(ctx, s.db, txn); err != nil {
		return nil, err
	}

	customerID, err := s.provisioning.EnsureCustomer(ctx, tenant.ID)
	if err != nil {
		return nil, s.fail(ctx, txn, err)
	}

	sub, err := s.gateway.CreateSubscription(ctx, gatewaydomain.SubscriptionInput{
		CustomerID:        customerID,
		AmountCents:       plan.PriceCents,
		NextDueDate:       nextDue,
		Cycle:             gatewaydomain.CycleMonthly,
		Description:       txn.Description,
		ExternalReference: txn.ExternalReference,
		BillingMethod:     method,
	})
	if err != nil {
		return nil, s.fail(ctx, txn, err)
	}
	txn.Metadata[paymentdomain.MetadataGatewaySubscriptionID] = sub.ID

	pending := tenantdomain.SubscriptionUpdate{
		SubscriptionID: sub.ID,
		Status:         tenantdomain.SubscriptionStatusPendingPayment,
		PlanID:         &plan.ID,
		NextDueDate:    &nextDue,
	}
	charge, err := s.awaitFirstInvoice(ctx, sub.ID, settings.SubscriptionPoll)
	if err != nil {
		return nil, s.abandonSubscription(ctx, txn, pending, err)
	}

	if err := s.attach(ctx, txn, charge.ID, charge.InvoiceURL); err != nil {
		return nil, err
	}
	if err := s.tenants.SetSubscription(ctx, tenant.ID, pending); err != nil {
		return nil, err
	}

	s.metrics.RecordPaymentTransaction(ctx, string(txn.Kind), string(txn.Status))
	s.audit(ctx, txn, "payment.subscription_created", map[string]any{
		"plan_id":                 plan.ID.String(),
		"gateway_subscription_id": sub.ID,
		"amount_cents":            plan.PriceCents,
	})
	s.log.Info("subscription created",
		zap.String("tenant_id", tenant.ID.String()),
		zap.String("transaction_id", txn.ID.String()),
		zap.String("subscription_id", sub.ID),
	)
	return &paymentdomain.SubscribeResult{
		Transaction:    txn,
		SubscriptionID: sub.ID,
		InvoiceURL:     charge.InvoiceURL,
		NextDueDate:    nextDue,
	}, nil
}

// outstandingSubscription finds the pending transaction behind the tenant's
// unpaid gateway subscription for planID, so a retry reuses it.
func (s *Service) outstandingSubscription(ctx context.Context, tenant *tenantdomain.Tenant, planID snowflake.ID) (*paymentdomain.Transaction, error) {
	if tenant.SubscriptionID == nil || tenant.SubscriptionStatus == nil ||
		*tenant.SubscriptionStatus != tenantdomain.SubscriptionStatusPendingPayment {
		return nil, nil
	}
	items, err := s.repo.List(ctx, s.db, paymentdomain.ListFilter{
		TenantID: tenant.ID,
		Kind:     paymentdomain.KindSubscription,
		Status:   paymentdomain.StatusPending,
	})
	if err != nil {
		return nil, err
	}
	for _, txn := range items {
		subID, _ := txn.Metadata[paymentdomain.MetadataGatewaySubscriptionID].(string)
		plan, _ := txn.Metadata[paymentdomain.MetadataPlanID].(string)
		if subID == *tenant.SubscriptionID && plan == planID.String() {
			return txn, nil
		}
	}
	return nil, nil
}

func (s *Service) resumeSubscription(ctx context.Context, tenant *tenantdomain.Tenant, plan *tenantdomain.Plan, txn *paymentdomain.Transaction, poll config.PollSettings) (*paymentdomain.SubscribeResult, error) {
	subID, _ := txn.Metadata[paymentdomain.MetadataGatewaySubscriptionID].(string)
	result := &paymentdomain.SubscribeResult{Transaction: txn, SubscriptionID: subID}
	if raw, ok := txn.Metadata[paymentdomain.MetadataNextDueDate].(string); ok {
		if due, err := time.ParseInLocation(dateLayout, raw, s.credits.Get().Location()); err == nil {
			result.NextDueDate = due
		}
	}
	if txn.InvoiceURL != nil && *txn.InvoiceURL != "" {
		result.InvoiceURL = *txn.InvoiceURL
		return result, nil
	}

	pending := tenantdomain.SubscriptionUpdate{
		SubscriptionID: subID,
		Status:         tenantdomain.SubscriptionStatusPendingPayment,
		PlanID:         &plan.ID,
	}
	if !result.NextDueDate.IsZero() {
		pending.NextDueDate = &result.NextDueDate
	}
	charge, err := s.awaitFirstInvoice(ctx, subID, poll)
	if err != nil {
		return nil, s.abandonSubscription(ctx, txn, pending, err)
	}
	if err := s.attach(ctx, txn, charge.ID, charge.InvoiceURL); err != nil {
		return nil, err
	}
	s.log.Info("subscription resumed",
		zap.String("tenant_id", tenant.ID.String()),
		zap.String("transaction_id", txn.ID.String()),
		zap.String("subscription_id", subID),
	)
	result.InvoiceURL = charge.InvoiceURL
	return result, nil
}

// abandonSubscription handles a subscription whose first invoice could not be
// read. The gateway subscription is cancelled before the transaction fails; if
// the cancel does not go through, the transaction stays pending and the tenant
// points at the live subscription so a later paid notice still settles it.
func (s *Service) abandonSubscription(ctx context.Context, txn *paymentdomain.Transaction, pending tenantdomain.SubscriptionUpdate, pollErr error) error {
	reason := failureReason(pollErr)
	cause := pollErr
	if errors.Is(pollErr, errInvoicePending) {
		reason = paymentdomain.FailureInvoiceNotReady
		cause = paymentdomain.ErrInvoiceNotReady
	}

	writeCtx := context.WithoutCancel(ctx)
	cancelErr := s.gateway.CancelSubscription(writeCtx, pending.SubscriptionID)
	if cancelErr == nil {
		txn.Metadata[paymentdomain.MetadataSubscriptionCancelled] = true
		return s.failWithReason(ctx, txn, reason, cause)
	}

	s.log.Error("failed to cancel gateway subscription",
		zap.String("transaction_id", txn.ID.String()),
		zap.String("subscription_id", pending.SubscriptionID),
		zap.Error(cancelErr),
	)
	if err := s.repo.UpdateMetadata(writeCtx, s.db, txn.ID, txn.Metadata, s.clock.Now()); err != nil {
		return errors.Join(cause, err)
	}
	if err := s.tenants.SetSubscription(writeCtx, txn.TenantID, pending); err != nil {
		return errors.Join(cause, err)
	}
	s.audit(writeCtx, txn, "payment.subscription_outstanding", map[string]any{
		"gateway_subscription_id": pending.SubscriptionID,
		"reason":                  reason,
	})
	return cause
}

// awaitFirstInvoice polls the subscription's payments at a fixed interval until one carries an invoice link.
func (s *Service) awaitFirstInvoice(ctx context.Context, subscriptionID string, poll config.PollSettings) (gatewaydomain.Charge, error) {
	attempts := poll.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	operation := func() (gatewaydomain.Charge, error) {
		charges, err := s.gateway.SubscriptionPayments(ctx, subscriptionID, 1)
		if err != nil {
			if errors.Is(err, gatewaydomain.ErrGatewayRejected) || errors.Is(err, gatewaydomain.ErrGatewayNotConfigured) {
				return gatewaydomain.Charge{}, backoff.Permanent(err)
			}
			return gatewaydomain.Charge{}, err
		}
		for _, charge := range charges {
			if strings.TrimSpace(charge.InvoiceURL) != "" {
				return charge, nil
			}
		}
		return gatewaydomain.Charge{}, errInvoicePending
	}
	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewConstantBackOff(poll.Interval)),
		backoff.WithMaxTries(uint(attempts)),
	)
}

func (s *Service) Reconcile(ctx context.Context, req paymentdomain.ReconcileRequest) (*paymentdomain.ReconcileResult, error) {
	req.ExternalReference = strings.TrimSpace(req.ExternalReference)
	if err := s.validate.Struct(req); err != nil {
		return nil, paymentdomain.ErrInvalidReconcile
	}

	var (
		result *paymentdomain.ReconcileResult
		now    = s.clock.Now()
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		status := paymentdomain.StatusPaid
		var (
			paidAt *time.Time
			reason *string
		)
		if req.Outcome == paymentdomain.OutcomeFailed {
			status = paymentdomain.StatusFailed
			r := strings.TrimSpace(req.Reason)
			if r == "" {
				r = "payment_failed"
			}
			reason = &r
		} else {
			paidAt = &now
		}
		var gatewayID *string
		if id := strings.TrimSpace(req.GatewayID); id != "" {
			gatewayID = &id
		}

		applied, err := s.repo.Settle(ctx, tx, req.ExternalReference, status, gatewayID, reason, paidAt, now)
		if err != nil {
			return err
		}
		txn, err := s.repo.FindByExternalReference(ctx, tx, req.ExternalReference)
		if err != nil {
			return err
		}
		if txn == nil {
			return paymentdomain.ErrTransactionNotFound
		}
		result = &paymentdomain.ReconcileResult{Transaction: txn, AlreadyProcessed: !applied}
		if !applied || status != paymentdomain.StatusPaid {
			return nil
		}
		return s.applySettlement(ctx, tx, txn)
	})
	if err != nil {
		return nil, err
	}

	if !result.AlreadyProcessed {
		s.metrics.RecordPaymentTransaction(ctx, string(result.Transaction.Kind), string(result.Transaction.Status))
		s.audit(ctx, result.Transaction, "payment.reconciled", map[string]any{
			"outcome":            string(req.Outcome),
			"external_reference": req.ExternalReference,
		})
	}
	s.log.Info("transaction reconciled",
		zap.String("transaction_id", result.Transaction.ID.String()),
		zap.String("status", string(result.Transaction.Status)),
		zap.Bool("already_processed", result.AlreadyProcessed),
	)
	return result, nil
}

// applySettlement grants what a paid transaction bought, inside the settling transaction.
func (s *Service) applySettlement(ctx context.Context, tx *gorm.DB, txn *paymentdomain.Transaction) error {
	switch txn.Kind {
	case paymentdomain.KindCreditPurchase:
		credits := int64FromAny(txn.Metadata[paymentdomain.MetadataCredits])
		if credits <= 0 {
			return paymentdomain.ErrInvalidCredits
		}
		_, _, err := s.tenants.AddExtraCreditsTx(ctx, tx, txn.TenantID, credits)
		return err
	case paymentdomain.KindSubscription:
		subID, _ := txn.Metadata[paymentdomain.MetadataGatewaySubscriptionID].(string)
		if subID == "" {
			return paymentdomain.ErrInvalidPlan
		}
		update := tenantdomain.SubscriptionUpdate{
			SubscriptionID: subID,
			Status:         tenantdomain.SubscriptionStatusActive,
		}
		if raw, ok := txn.Metadata[paymentdomain.MetadataPlanID].(string); ok {
			if planID, err := snowflake.ParseString(raw); err == nil && planID != 0 {
				update.PlanID = &planID
			}
		}
		return s.tenants.SetSubscriptionTx(ctx, tx, txn.TenantID, update)
	}
	return nil
}

func (s *Service) ListTransactions(ctx context.Context, req paymentdomain.ListTransactionsRequest) (paymentdomain.ListTransactionsResponse, error) {
	if req.TenantID == 0 {
		return paymentdomain.ListTransactionsResponse{}, paymentdomain.ErrInvalidTenant
	}
	var cursor *paymentdomain.TransactionCursor
	if strings.TrimSpace(req.PageToken) != "" {
		decoded, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return paymentdomain.ListTransactionsResponse{}, paymentdomain.ErrInvalidPageToken
		}
		createdAt, err := time.Parse(time.RFC3339Nano, decoded.CreatedAt)
		if err != nil {
			return paymentdomain.ListTransactionsResponse{}, paymentdomain.ErrInvalidPageToken
		}
		id, err := snowflake.ParseString(decoded.ID)
		if err != nil || id == 0 {
			return paymentdomain.ListTransactionsResponse{}, paymentdomain.ErrInvalidPageToken
		}
		cursor = &paymentdomain.TransactionCursor{ID: id, CreatedAt: createdAt}
	}

	pageSize := req.Size()
	items, err := s.repo.List(ctx, s.db, paymentdomain.ListFilter{
		TenantID: req.TenantID,
		Kind:     req.Kind,
		Status:   req.Status,
		Cursor:   cursor,
		Limit:    pageSize,
	})
	if err != nil {
		return paymentdomain.ListTransactionsResponse{}, err
	}

	items, pageInfo := pagination.Page(items, pageSize, func(item *paymentdomain.Transaction) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        item.ID.String(),
			CreatedAt: item.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})
	return paymentdomain.ListTransactionsResponse{Transactions: items, PageInfo: pageInfo}, nil
}

func (s *Service) attach(ctx context.Context, txn *paymentdomain.Transaction, gatewayID, invoiceURL string) error {
	now := s.clock.Now()
	if err := s.repo.AttachInvoice(ctx, s.db, txn.ID, gatewayID, invoiceURL, txn.Metadata, now); err != nil {
		return err
	}
	txn.GatewayID = &gatewayID
	txn.InvoiceURL = &invoiceURL
	txn.UpdatedAt = now
	return nil
}

// fail records cause on the pending transaction and returns cause.
func (s *Service) fail(ctx context.Context, txn *paymentdomain.Transaction, cause error) error {
	return s.failWithReason(ctx, txn, failureReason(cause), cause)
}

func (s *Service) failWithReason(ctx context.Context, txn *paymentdomain.Transaction, reason string, cause error) error {
	now := s.clock.Now()
	// The caller may have given up; the failed row must still be written.
	writeCtx := context.WithoutCancel(ctx)
	if txn.GatewayID != nil {
		txn.Metadata["gateway_id"] = *txn.GatewayID
	}
	changed, err := s.repo.MarkFailed(writeCtx, s.db, txn.ID, reason, txn.Metadata, now)
	if err != nil {
		s.log.Error("failed to mark transaction failed",
			zap.String("transaction_id", txn.ID.String()),
			zap.Error(err),
		)
		return errors.Join(cause, err)
	}
	if changed {
		txn.Status = paymentdomain.StatusFailed
		txn.FailureReason = &reason
		txn.UpdatedAt = now
		s.metrics.RecordPaymentTransaction(writeCtx, string(txn.Kind), string(txn.Status))
		s.audit(writeCtx, txn, "payment.failed", map[string]any{"reason": reason})
	}
	s.log.Warn("payment transaction failed",
		zap.String("transaction_id", txn.ID.String()),
		zap.String("kind", string(txn.Kind)),
		zap.String("reason", reason),
		zap.Error(cause),
	)
	return cause
}

func (s *Service) audit(ctx context.Context, txn *paymentdomain.Transaction, action string, metadata map[string]any) {
	if s.auditSvc == nil || txn == nil {
		return
	}
	tenantID := txn.TenantID
	targetID := txn.ID.String()
	if err := s.auditSvc.AuditLog(ctx, &tenantID, "", nil, action, "transaction", &targetID, metadata); err != nil {
		s.log.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
	}
}

func failureReason(err error) string {
	var rejected *gatewaydomain.RejectedError
	switch {
	case errors.As(err, &rejected) && rejected.Message != "":
		return rejected.Message
	case errors.Is(err, gatewaydomain.ErrGatewayRejected):
		return "gateway_rejected"
	case errors.Is(err, gatewaydomain.ErrGatewayUnreachable):
		return "gateway_unreachable"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return err.Error()
	}
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	switch verrs[0].Field() {
	case "TenantID":
		return paymentdomain.ErrInvalidTenant
	case "Credits":
		return paymentdomain.ErrInvalidCredits
	case "PlanID":
		return paymentdomain.ErrInvalidPlan
	case "BillingMethod":
		return paymentdomain.ErrInvalidBillingMethod
	default:
		return err
	}
}

func int64FromAny(value any) int64 {
	switch v := value.(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(math.Round(v))
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	default:
		return 0
	}
}
