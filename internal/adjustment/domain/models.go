package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/go-playground/validator/v10"
)

type Action string

const (
	ActionResetBalance      Action = "reset_balance"
	ActionAddCredits        Action = "add_credits"
	ActionRemoveCredits     Action = "remove_credits"
	ActionClearExtraCredits Action = "clear_extra_credits"
)

var validate = validator.New()

// Request is one administrative correction to a tenant's extra-credit pool.
type Request struct {
	TenantID snowflake.ID `json:"tenant_id" validate:"required"`
	Action   Action       `json:"action" validate:"required,oneof=reset_balance add_credits remove_credits clear_extra_credits"`
	Amount   *int64       `json:"amount" validate:"omitempty,gt=0"`
	Reason   string       `json:"reason" validate:"required"`
}

// Validate maps field failures to the adjustment error codes.
func (r Request) Validate() error {
	if err := validate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		switch verrs[0].Field() {
		case "TenantID":
			return ErrInvalidTenant
		case "Action":
			return ErrInvalidAction
		case "Amount":
			return ErrInvalidAmount
		default:
			return ErrMissingReason
		}
	}
	if (r.Action == ActionAddCredits || r.Action == ActionRemoveCredits) && r.Amount == nil {
		return ErrInvalidAmount
	}
	return nil
}

// Result reports the outcome of an adjustment.
type Result struct {
	Team                 string         `json:"team"`
	Action               Action         `json:"action"`
	PreviousExtraCredits int64          `json:"previous_extra_credits"`
	NewExtraCredits      int64          `json:"new_extra_credits"`
	Adjustment           int64          `json:"adjustment"`
	CurrentConsumption   *int64         `json:"current_consumption"`
	NewBalance           int64          `json:"new_balance"`
	Log                  map[string]any `json:"log"`
}

type Service interface {
	Apply(ctx context.Context, req Request) (*Result, error)
}

var (
	ErrInvalidTenant = errors.New("invalid_tenant")
	ErrInvalidAction = errors.New("invalid_adjustment_action")
	ErrInvalidAmount = errors.New("invalid_amount")
	ErrMissingReason = errors.New("missing_reason")
	ErrConflict      = errors.New("adjustment_conflict")
)
