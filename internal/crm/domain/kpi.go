package domain

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/smallbiznis/lexcredit/internal/period"
)

var closedStatusMarkers = []string{"ganho", "fechado", "contrato"}

// thousandsOnly matches "1.000" or "12.345.678": dots grouping digits with no decimal part.
var thousandsOnly = regexp.MustCompile(`^\d{1,3}(\.\d{3})+$`)

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Compute summarizes the leads created inside p, as seen from loc.
func Compute(leads []Lead, p period.Period, loc *time.Location) KPI {
	if loc == nil {
		loc = time.UTC
	}
	kpi := KPI{Period: p.String()}
	var pipeline float64
	for _, lead := range leads {
		created, ok := ParseLeadDate(lead[FieldCreatedAt], loc)
		if !ok || !p.Contains(created, loc) {
			continue
		}
		kpi.TotalLeads++
		if IsMeeting(lead[FieldMeeting]) {
			kpi.Meetings++
		}
		if IsClosed(lead[FieldStatus]) {
			kpi.ClosedDeals++
			pipeline += ParseAmount(lead[FieldProposalValue])
		}
	}
	kpi.PipelineCents = int64(math.Round(pipeline * 100))
	kpi.MeetingRate = Rate(kpi.Meetings, kpi.TotalLeads)
	kpi.DealRate = Rate(kpi.ClosedDeals, kpi.Meetings)
	kpi.CloseRate = Rate(kpi.ClosedDeals, kpi.TotalLeads)
	return kpi
}

// Rate is part/whole as a percentage with one decimal, 0 when whole is 0.
func Rate(part, whole int64) float64 {
	if whole <= 0 {
		return 0
	}
	return math.Round(float64(part)/float64(whole)*1000) / 10
}

// ParseLeadDate accepts ISO timestamps and DD/MM/YYYY dates.
func ParseLeadDate(value any, loc *time.Location) (time.Time, bool) {
	raw := strings.TrimSpace(fmt.Sprint(value))
	if value == nil || raw == "" {
		return time.Time{}, false
	}
	for _, layout := range isoLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, true
		}
	}
	parts := strings.Split(raw, "/")
	if len(parts) != 3 {
		return time.Time{}, false
	}
	day, errDay := strconv.Atoi(strings.TrimSpace(parts[0]))
	month, errMonth := strconv.Atoi(strings.TrimSpace(parts[1]))
	year, errYear := strconv.Atoi(strings.TrimSpace(parts[2]))
	if errDay != nil || errMonth != nil || errYear != nil || month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc), true
}

func IsMeeting(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case float64:
		return v == 1
	case int:
		return v == 1
	case int64:
		return v == 1
	case string:
		v = strings.TrimSpace(strings.ToLower(v))
		return v == "true" || v == "1"
	default:
		return false
	}
}

func IsClosed(value any) bool {
	status, ok := value.(string)
	if !ok {
		return false
	}
	status = strings.ToLower(status)
	for _, marker := range closedStatusMarkers {
		if strings.Contains(status, marker) {
			return true
		}
	}
	return false
}

// ParseAmount reads a proposal value in reais. Strings may be BRL formatted ("R$ 1.234,56").
func ParseAmount(value any) float64 {
	switch v := value.(type) {
	case float64:
		return finite(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		raw := strings.TrimSpace(strings.ReplaceAll(v, "R$", ""))
		if raw == "" {
			return 0
		}
		raw = strings.ReplaceAll(raw, " ", "")
		if strings.Contains(raw, ",") || thousandsOnly.MatchString(raw) {
			raw = strings.ReplaceAll(raw, ".", "")
			raw = strings.ReplaceAll(raw, ",", ".")
		}
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0
		}
		return finite(parsed)
	default:
		return 0
	}
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
