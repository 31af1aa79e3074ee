package domain

import "github.com/smallbiznis/lexcredit/internal/config"

// Quote is the price of a credit pack.
type Quote struct {
	Credits     int64  `json:"credits"`
	Steps       int64  `json:"steps"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
}

// Price maps a credit count onto the step table. Counts must be whole steps within the table bounds.
func Price(table config.PriceTable, credits int64) (Quote, error) {
	if table.StepCredits <= 0 || table.StepPriceCents <= 0 {
		return Quote{}, ErrPriceTableInvalid
	}
	if credits <= 0 || credits%table.StepCredits != 0 {
		return Quote{}, ErrInvalidCredits
	}
	if credits < table.MinCredits || (table.MaxCredits > 0 && credits > table.MaxCredits) {
		return Quote{}, ErrInvalidCredits
	}
	steps := credits / table.StepCredits
	return Quote{
		Credits:     credits,
		Steps:       steps,
		AmountCents: steps * table.StepPriceCents,
		Currency:    table.Currency,
	}, nil
}
