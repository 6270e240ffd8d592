package service

import (
	"strings"
	"time"

	"github.com/installsight/backend/internal/models"
)

// RefreshDerived recomputes the run-relative fields of an install-base item:
// days past EOL, days past support expiry and the coarse risk level.
// Days are zero when the relevant date is absent or still in the future.
func RefreshDerived(item models.InstallBaseItem, now time.Time) models.InstallBaseItem {
	item.DaysSinceEOL = daysSince(item.EOLDate, now)
	item.DaysSinceSupportExpiry = daysSince(item.SupportEndDate, now)
	item.RiskLevel = deriveRisk(item, now)
	return item
}

func daysSince(date *time.Time, now time.Time) int {
	if date == nil {
		return 0
	}
	d := int(now.Sub(*date).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}

func deriveRisk(item models.InstallBaseItem, now time.Time) models.RiskLevel {
	if item.EOLDate == nil && item.SupportEndDate == nil && item.SupportStatus == "" {
		return models.RiskUnknown
	}

	expired := SupportExpired(item.SupportStatus)
	pastEOL := item.DaysSinceEOL > 0

	switch {
	case expired && pastEOL:
		return models.RiskCritical
	case expired || item.DaysSinceEOL > 1095:
		return models.RiskHigh
	case pastEOL || supportEndsWithin(item, now, 180):
		return models.RiskMedium
	default:
		return models.RiskLow
	}
}

func supportEndsWithin(item models.InstallBaseItem, now time.Time, days int) bool {
	if item.SupportEndDate == nil {
		return false
	}
	until := int(item.SupportEndDate.Sub(now).Hours() / 24)
	return until >= 0 && until <= days
}

// SupportExpired reports whether a free-text support status indicates a
// lapsed agreement ("Expired", "Expired Flex Support", ...).
func SupportExpired(status string) bool {
	return strings.Contains(strings.ToLower(status), "expired")
}

// SupportUncovered reports whether the item has no support agreement at all.
func SupportUncovered(status string) bool {
	s := strings.ToLower(strings.TrimSpace(status))
	if s == "" || s == "none" {
		return true
	}
	return strings.Contains(s, "uncovered") || strings.Contains(s, "no coverage") || strings.Contains(s, "not covered")
}

// ModeSizeCategory returns the most common non-empty size category across an
// account's engagements, favoring the lexically smaller value on ties so the
// result is deterministic.
func ModeSizeCategory(engagements []models.HistoricalEngagement) string {
	counts := map[string]int{}
	for _, e := range engagements {
		size := strings.TrimSpace(e.SizeCategory)
		if size == "" {
			continue
		}
		counts[size]++
	}

	best := ""
	bestCount := 0
	for size, count := range counts {
		if count > bestCount || (count == bestCount && (best == "" || size < best)) {
			best = size
			bestCount = count
		}
	}
	return best
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
