package service

import (
	"testing"
	"time"

	"github.com/installsight/backend/internal/models"
)

var testNow = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

func datePtr(t time.Time) *time.Time { return &t }

func testContexts() map[string]AccountContext {
	return map[string]AccountContext{
		"acct-1": {
			Account:               models.Account{ID: "acct-1", Name: "Acme", NormalizedName: "acme"},
			InstallBaseCount:      12,
			EngagementCount:       4,
			OpenOpportunities:     1,
			ClosedEngagements:     3,
			TypicalEngagementSize: "Medium",
		},
	}
}

func TestGenerateLeads_HardwareRefreshPastCriticalWindow(t *testing.T) {
	items := []models.InstallBaseItem{
		{
			Serial:        "SN-1",
			ProductName:   "ProLiant DL360 Gen9",
			AccountID:     "acct-1",
			EOLDate:       datePtr(testNow.AddDate(0, 0, -2000)),
			SupportStatus: "Active",
		},
	}

	existing := map[string]bool{}
	res := GenerateLeads(items, testContexts(), existing, 1825, testNow)

	var refresh *models.Lead
	for i := range res.Leads {
		if res.Leads[i].Type == models.LeadHardwareRefresh {
			refresh = &res.Leads[i]
		}
	}
	if refresh == nil {
		t.Fatalf("expected a hardware refresh lead, got %+v", res.Leads)
	}
	if refresh.Priority != models.PriorityCritical {
		t.Errorf("refresh leads are always critical, got %s", refresh.Priority)
	}
	if refresh.RecommendedAction != "Propose refresh to Gen11 or newer" {
		t.Errorf("unexpected next-gen hint: %q", refresh.RecommendedAction)
	}
	if refresh.InstallBaseCount != 12 || refresh.TypicalEngagementSize != "Medium" {
		t.Errorf("account context not attached: %+v", refresh)
	}
	if refresh.EstimatedValue != nil || refresh.ServiceCreditBalance != nil {
		t.Errorf("estimated value and credit balance must stay unset")
	}

	// rerun against the now-populated active set: no duplicates
	rerun := GenerateLeads(items, testContexts(), existing, 1825, testNow)
	if len(rerun.Leads) != 0 {
		t.Fatalf("rerun must not duplicate leads, got %d", len(rerun.Leads))
	}
	if rerun.SkippedExisting == 0 {
		t.Fatalf("expected rerun to skip existing leads")
	}
}

func TestGenerateLeads_RenewalMirrorsRisk(t *testing.T) {
	items := []models.InstallBaseItem{
		{
			Serial:         "SN-CRIT",
			ProductName:    "ProLiant DL380 Gen10",
			AccountID:      "acct-1",
			EOLDate:        datePtr(testNow.AddDate(0, 0, -100)),
			SupportStatus:  "Expired Flex Support",
			SupportEndDate: datePtr(testNow.AddDate(0, 0, -400)),
		},
		{
			Serial:         "SN-HIGH",
			ProductName:    "Aruba 6300M",
			AccountID:      "acct-1",
			SupportStatus:  "Expired",
			SupportEndDate: datePtr(testNow.AddDate(0, 0, -30)),
		},
	}

	res := GenerateLeads(items, testContexts(), map[string]bool{}, 1825, testNow)

	byType := map[string]models.Lead{}
	for _, l := range res.Leads {
		if l.Type == models.LeadRenewal {
			byType[l.InstallBaseSerial] = l
		}
	}
	if byType["SN-CRIT"].Priority != models.PriorityCritical {
		t.Errorf("expired past-EOL item should yield a critical renewal, got %s", byType["SN-CRIT"].Priority)
	}
	if byType["SN-HIGH"].Priority != models.PriorityHigh {
		t.Errorf("expired item short of EOL should yield a high renewal, got %s", byType["SN-HIGH"].Priority)
	}
}

func TestGenerateLeads_ServiceAttachForUncovered(t *testing.T) {
	items := []models.InstallBaseItem{
		{Serial: "SN-2", ProductName: "MSA 2060", AccountID: "acct-1", SupportStatus: "Uncovered"},
		{Serial: "SN-3", ProductName: "MSA 2062", AccountID: "acct-1", SupportStatus: ""},
		{Serial: "SN-4", ProductName: "MSA 2064", AccountID: "acct-1", SupportStatus: "Active Support"},
	}

	res := GenerateLeads(items, testContexts(), map[string]bool{}, 1825, testNow)

	attach := 0
	for _, l := range res.Leads {
		if l.Type == models.LeadServiceAttach {
			attach++
			if l.Priority != models.PriorityHigh {
				t.Errorf("service attach leads are high priority, got %s", l.Priority)
			}
		}
	}
	if attach != 2 {
		t.Fatalf("expected 2 service attach leads (uncovered + blank status), got %d", attach)
	}
}

func TestGenerateLeads_SkipsUnknownAccount(t *testing.T) {
	items := []models.InstallBaseItem{
		{Serial: "SN-9", ProductName: "DL360 Gen8", AccountID: "ghost", EOLDate: datePtr(testNow.AddDate(0, 0, -2000))},
	}
	res := GenerateLeads(items, testContexts(), map[string]bool{}, 1825, testNow)
	if len(res.Leads) != 0 {
		t.Fatalf("items without an account must be skipped, got %+v", res.Leads)
	}
	if res.SkippedNoAccount != 1 {
		t.Fatalf("expected skip counter, got %d", res.SkippedNoAccount)
	}
}

func TestNextGenHint(t *testing.T) {
	if hint, ok := NextGenHint("ProLiant DL360 Gen9 Server"); !ok || hint != "Gen11" {
		t.Errorf("NextGenHint(Gen9) = %q, %v", hint, ok)
	}
	if hint, ok := NextGenHint("Alletra 6000"); ok {
		t.Errorf("expected no hint for product without generation, got %q", hint)
	}
}
