package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// MetadataAdjustmentsKey holds the JSON view of the adjustment log inside a record's metadata.
const MetadataAdjustmentsKey = "adjustments"

// Record is the consumption of one tenant in one period. Exactly one exists per (tenant, period).
type Record struct {
	ID          snowflake.ID      `json:"id"`
	TenantID    snowflake.ID      `json:"tenant_id"`
	Period      string            `json:"period"`
	CreditsUsed int64             `json:"credits_used"`
	Metadata    datatypes.JSONMap `json:"metadata"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

func (Record) TableName() string { return "consumption_records" }

// AdjustmentEntry is an immutable log line written for every administrative credit action.
type AdjustmentEntry struct {
	ID                   snowflake.ID `json:"id"`
	TenantID             snowflake.ID `json:"tenant_id"`
	Period               string       `json:"period"`
	Action               string       `json:"action"`
	PreviousExtraCredits int64        `json:"previous_extra_credits"`
	NewExtraCredits      int64        `json:"new_extra_credits"`
	Amount               *int64       `json:"amount"`
	CurrentConsumption   *int64       `json:"current_consumption"`
	Reason               string       `json:"reason"`
	AdminUserID          string       `json:"admin_user_id"`
	AdminEmail           string       `json:"admin_email"`
	CreatedAt            time.Time    `json:"timestamp"`
}

func (AdjustmentEntry) TableName() string { return "credit_adjustments" }

// View renders the entry the way it appears in a record's metadata.
func (e AdjustmentEntry) View() map[string]any {
	view := map[string]any{
		"timestamp":              e.CreatedAt.UTC().Format(time.RFC3339Nano),
		"action":                 e.Action,
		"previous_extra_credits": e.PreviousExtraCredits,
		"new_extra_credits":      e.NewExtraCredits,
		"amount":                 nil,
		"current_consumption":    nil,
		"reason":                 e.Reason,
		"admin_user_id":          e.AdminUserID,
		"admin_email":            e.AdminEmail,
	}
	if e.Amount != nil {
		view["amount"] = *e.Amount
	}
	if e.CurrentConsumption != nil {
		view["current_consumption"] = *e.CurrentConsumption
	}
	return view
}
