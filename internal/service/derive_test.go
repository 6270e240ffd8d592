package service

import (
	"testing"
	"time"

	"github.com/installsight/backend/internal/models"
)

func TestRefreshDerived(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	eol := now.AddDate(0, 0, -2000)
	supportEnd := now.AddDate(0, 0, -200)

	item := RefreshDerived(models.InstallBaseItem{
		EOLDate:        &eol,
		SupportEndDate: &supportEnd,
		SupportStatus:  "Expired",
	}, now)

	if item.DaysSinceEOL != 2000 {
		t.Errorf("days since eol = %d, want 2000", item.DaysSinceEOL)
	}
	if item.DaysSinceSupportExpiry != 200 {
		t.Errorf("days since support expiry = %d, want 200", item.DaysSinceSupportExpiry)
	}
	if item.RiskLevel != models.RiskCritical {
		t.Errorf("expired + past EOL should be critical, got %s", item.RiskLevel)
	}
}

func TestDeriveRiskLevels(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	future := now.AddDate(2, 0, 0)
	soon := now.AddDate(0, 0, 90)
	past := now.AddDate(0, 0, -30)

	cases := []struct {
		name string
		item models.InstallBaseItem
		want models.RiskLevel
	}{
		{"no data", models.InstallBaseItem{}, models.RiskUnknown},
		{"expired only", models.InstallBaseItem{SupportStatus: "Expired", SupportEndDate: &past}, models.RiskHigh},
		{"support ending soon", models.InstallBaseItem{SupportStatus: "Active", SupportEndDate: &soon}, models.RiskMedium},
		{"healthy", models.InstallBaseItem{SupportStatus: "Active", SupportEndDate: &future}, models.RiskLow},
	}
	for _, tc := range cases {
		got := RefreshDerived(tc.item, now).RiskLevel
		if got != tc.want {
			t.Errorf("%s: risk = %s, want %s", tc.name, got, tc.want)
		}
	}
}

func TestDaysNeverNegative(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	future := now.AddDate(1, 0, 0)
	item := RefreshDerived(models.InstallBaseItem{EOLDate: &future, SupportStatus: "Active"}, now)
	if item.DaysSinceEOL != 0 {
		t.Errorf("future EOL must derive zero days, got %d", item.DaysSinceEOL)
	}
}

func TestSupportStatusHelpers(t *testing.T) {
	if !SupportExpired("Expired Flex Support") || SupportExpired("Active") {
		t.Errorf("SupportExpired misclassifies")
	}
	if !SupportUncovered("Uncovered") || !SupportUncovered("") || SupportUncovered("Active Support") {
		t.Errorf("SupportUncovered misclassifies")
	}
}

func TestModeSizeCategory(t *testing.T) {
	engagements := []models.HistoricalEngagement{
		{SizeCategory: "Medium"},
		{SizeCategory: "Medium"},
		{SizeCategory: "Large"},
		{SizeCategory: ""},
	}
	if got := ModeSizeCategory(engagements); got != "Medium" {
		t.Errorf("mode = %q, want Medium", got)
	}
	if got := ModeSizeCategory(nil); got != "" {
		t.Errorf("mode of empty = %q, want empty", got)
	}
}
