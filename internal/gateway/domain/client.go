package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type BillingMethod string

const (
	BillingMethodUndefined  BillingMethod = "UNDEFINED"
	BillingMethodPix        BillingMethod = "PIX"
	BillingMethodCreditCard BillingMethod = "CREDIT_CARD"
)

func (m BillingMethod) Valid() bool {
	switch m {
	case BillingMethodUndefined, BillingMethodPix, BillingMethodCreditCard:
		return true
	}
	return false
}

const CycleMonthly = "MONTHLY"

type Customer struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	CpfCnpj string `json:"cpfCnpj"`
}

type CustomerInput struct {
	Name    string
	Email   string
	CpfCnpj string
}

type ChargeInput struct {
	CustomerID        string
	AmountCents       int64
	DueDate           time.Time
	Description       string
	ExternalReference string
	BillingMethod     BillingMethod
}

// Charge is a single gateway payment, standalone or generated by a subscription.
type Charge struct {
	ID                string `json:"id"`
	Status            string `json:"status"`
	InvoiceURL        string `json:"invoiceUrl"`
	ExternalReference string `json:"externalReference"`
	DueDate           string `json:"dueDate"`
}

type PixQRCode struct {
	EncodedImage   string `json:"encodedImage"`
	Payload        string `json:"payload"`
	ExpirationDate string `json:"expirationDate"`
}

type SubscriptionInput struct {
	CustomerID        string
	AmountCents       int64
	NextDueDate       time.Time
	Cycle             string
	Description       string
	ExternalReference string
	BillingMethod     BillingMethod
}

type Subscription struct {
	ID          string `json:"id"`
	Customer    string `json:"customer"`
	Status      string `json:"status"`
	NextDueDate string `json:"nextDueDate"`
}

// CustomerPage is one page of the customer listing.
type CustomerPage struct {
	Customers []Customer
	HasMore   bool
}

// Client is the payment gateway surface the portal depends on.
type Client interface {
	FindCustomerByEmail(ctx context.Context, email string) (*Customer, error)
	FindCustomerByTaxID(ctx context.Context, cpfCnpj string) (*Customer, error)
	CreateCustomer(ctx context.Context, in CustomerInput) (*Customer, error)
	ListCustomers(ctx context.Context, offset, limit int) (CustomerPage, error)

	CreateCharge(ctx context.Context, in ChargeInput) (*Charge, error)
	PixQRCode(ctx context.Context, chargeID string) (*PixQRCode, error)

	CreateSubscription(ctx context.Context, in SubscriptionInput) (*Subscription, error)
	SubscriptionPayments(ctx context.Context, subscriptionID string, limit int) ([]Charge, error)
	ActiveSubscriptions(ctx context.Context, customerID string) ([]Subscription, error)
	// CancelSubscription removes the subscription and its unpaid payments from the gateway.
	CancelSubscription(ctx context.Context, subscriptionID string) error
}

var (
	ErrGatewayRejected      = errors.New("gateway_rejected")
	ErrGatewayUnreachable   = errors.New("gateway_unreachable")
	ErrGatewayNotConfigured = errors.New("gateway_not_configured")
	ErrInvalidResponse      = errors.New("gateway_invalid_response")
)

// RejectedError is a business error returned by the gateway. It matches ErrGatewayRejected.
type RejectedError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *RejectedError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("gateway rejected request with status %d", e.StatusCode)
}

func (e *RejectedError) Is(target error) bool { return target == ErrGatewayRejected }

// UnreachableError wraps a transport failure. It matches ErrGatewayUnreachable.
type UnreachableError struct {
	Operation string
	Err       error
}

func (e *UnreachableError) Error() string {
	return "gateway " + e.Operation + " unreachable: " + e.Err.Error()
}

func (e *UnreachableError) Unwrap() error { return e.Err }

func (e *UnreachableError) Is(target error) bool { return target == ErrGatewayUnreachable }
