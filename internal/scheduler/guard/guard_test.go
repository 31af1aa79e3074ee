package guard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureFirstDayOfMonthUsesLocation(t *testing.T) {
	saoPaulo, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)

	// 02:00 UTC on June 1st is still May 31st in Sao Paulo.
	assert.ErrorIs(t, EnsureFirstDayOfMonth(time.Date(2024, 6, 1, 2, 0, 0, 0, time.UTC), saoPaulo), ErrNotFirstDayOfMonth)
	assert.NoError(t, EnsureFirstDayOfMonth(time.Date(2024, 6, 1, 3, 0, 0, 0, time.UTC), saoPaulo))
	assert.NoError(t, EnsureFirstDayOfMonth(time.Date(2024, 6, 1, 2, 0, 0, 0, time.UTC), time.UTC))
}

func TestEnsureFirstDayOfMonthRejectsOtherDays(t *testing.T) {
	for day := 2; day <= 31; day++ {
		now := time.Date(2024, 1, day, 12, 0, 0, 0, time.UTC)
		assert.ErrorIs(t, EnsureFirstDayOfMonth(now, nil), ErrNotFirstDayOfMonth, "day %d", day)
	}
}
