package service

import (
	"testing"
	"time"

	"github.com/installsight/backend/internal/models"
)

func TestBuildAccountContextsMergesNormalizedIdentity(t *testing.T) {
	accounts := []models.Account{
		{ID: "a1", Name: "Acme Corporation", NormalizedName: "acme"},
		{ID: "a2", Name: "ACME CORP.", NormalizedName: "acme"},
		{ID: "b1", Name: "Globex", NormalizedName: "globex"},
	}
	var items []models.InstallBaseItem
	for i := 0; i < 3; i++ {
		items = append(items,
			models.InstallBaseItem{Serial: "A1-" + string(rune('0'+i)), AccountID: "a1"},
			models.InstallBaseItem{Serial: "A2-" + string(rune('0'+i)), AccountID: "a2"},
		)
	}
	items = append(items, models.InstallBaseItem{Serial: "B1-0", AccountID: "b1"})

	start := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	engagements := []models.HistoricalEngagement{
		{ID: "e1", AccountID: "a1", SizeCategory: "Medium", Status: "Open", StartDate: &start},
		{ID: "e2", AccountID: "a2", SizeCategory: "Medium", Status: "Closed", StartDate: &start},
		{ID: "e3", AccountID: "b1", SizeCategory: "Large", Status: "Closed", StartDate: &start},
	}

	contexts := BuildAccountContexts(accounts, items, engagements)

	// both rows of the acme entity see the entity totals, not their own slice
	for _, id := range []string{"a1", "a2"} {
		ctx := contexts[id]
		if ctx.InstallBaseCount != 6 {
			t.Errorf("%s: install base count = %d, want entity total 6", id, ctx.InstallBaseCount)
		}
		if ctx.EngagementCount != 2 {
			t.Errorf("%s: engagement count = %d, want entity total 2", id, ctx.EngagementCount)
		}
		if ctx.OpenOpportunities != 1 || ctx.ClosedEngagements != 1 {
			t.Errorf("%s: open/closed = %d/%d, want 1/1 across the entity", id, ctx.OpenOpportunities, ctx.ClosedEngagements)
		}
		if ctx.TypicalEngagementSize != "Medium" {
			t.Errorf("%s: typical size = %q, want Medium from the merged history", id, ctx.TypicalEngagementSize)
		}
	}

	if got := contexts["b1"].InstallBaseCount; got != 1 {
		t.Errorf("unrelated account must keep its own count, got %d", got)
	}
}

func TestBuildAccountContextsEmptyNormalizedNameStaysSeparate(t *testing.T) {
	accounts := []models.Account{
		{ID: "x1", Name: "One"},
		{ID: "x2", Name: "Two"},
	}
	items := []models.InstallBaseItem{
		{Serial: "S1", AccountID: "x1"},
		{Serial: "S2", AccountID: "x2"},
	}

	contexts := BuildAccountContexts(accounts, items, nil)
	if contexts["x1"].InstallBaseCount != 1 || contexts["x2"].InstallBaseCount != 1 {
		t.Errorf("accounts without a normalized name must not merge: %+v", contexts)
	}
}
