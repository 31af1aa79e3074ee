package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// KPI is the lead funnel of one tenant for the leads created in one period.
type KPI struct {
	ID            snowflake.ID      `json:"id"`
	TenantID      snowflake.ID      `json:"tenant_id"`
	Period        string            `json:"period"`
	TotalLeads    int64             `json:"total_leads"`
	Meetings      int64             `json:"meetings"`
	ClosedDeals   int64             `json:"closed_deals"`
	PipelineCents int64             `json:"pipeline_cents"`
	MeetingRate   float64           `json:"meeting_rate"`
	CloseRate     float64           `json:"close_rate"`
	DealRate      float64           `json:"deal_rate"`
	Metadata      datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

func (KPI) TableName() string { return "crm_kpis" }

// Lead is a raw CRM record. Field names follow the tenant's Jestor object.
type Lead map[string]any

const (
	FieldCreatedAt     = "criado_em"
	FieldMeeting       = "reuniao_agendada"
	FieldStatus        = "status"
	FieldProposalValue = "valor_da_proposta"
)
