package server

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/lexcredit/internal/period"
)

const dateOnlyLayout = "2006-01-02"

func parseSnowflakeID(value string) (snowflake.ID, error) {
	parsed, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || parsed <= 0 {
		return 0, errors.New("invalid_snowflake_id")
	}
	return parsed, nil
}

func parseOptionalSnowflakeID(value string) (*snowflake.ID, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	parsed, err := parseSnowflakeID(value)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func parseOptionalTime(value string, endOfDay bool) (*time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	if parsed, err := time.Parse(time.RFC3339, trimmed); err == nil {
		return &parsed, nil
	}
	if parsed, err := time.Parse(dateOnlyLayout, trimmed); err == nil {
		if endOfDay {
			parsed = time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), time.UTC)
		} else {
			parsed = time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, time.UTC)
		}
		return &parsed, nil
	}
	return nil, errors.New("invalid_time")
}

// parsePeriodQuery reads ?period=YYYY-MM or ?year=&month=. An empty query yields
// the zero period so callers can fall back to the current one.
func parsePeriodQuery(periodValue, yearValue, monthValue string) (period.Period, error) {
	if trimmed := strings.TrimSpace(periodValue); trimmed != "" {
		return period.Parse(trimmed)
	}

	yearValue = strings.TrimSpace(yearValue)
	monthValue = strings.TrimSpace(monthValue)
	if yearValue == "" && monthValue == "" {
		return period.Period{}, nil
	}
	if yearValue == "" || monthValue == "" {
		return period.Period{}, period.ErrInvalidPeriod
	}

	year, err := strconv.Atoi(yearValue)
	if err != nil {
		return period.Period{}, period.ErrInvalidPeriod
	}
	month, err := strconv.Atoi(monthValue)
	if err != nil {
		return period.Period{}, period.ErrInvalidPeriod
	}
	return period.New(year, time.Month(month))
}
