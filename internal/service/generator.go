package service

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/installsight/backend/internal/models"
)

const (
	LeadStatusNew    = "NEW"
	LeadStatusClosed = "CLOSED"
)

// nextGenOffset is the generation jump suggested for hardware refresh leads:
// a Gen9 box past its refresh window is pitched a Gen11 replacement.
const nextGenOffset = 2

var genPattern = regexp.MustCompile(`(?i)\bgen\s*(\d+)\b`)

// AccountContext carries the read-only account aggregates each generated
// lead is enriched with.
type AccountContext struct {
	Account               models.Account
	InstallBaseCount      int
	EngagementCount       int
	OpenOpportunities     int
	ClosedEngagements     int
	TypicalEngagementSize string
}

type GenerationResult struct {
	Leads            []models.Lead
	SkippedExisting  int
	SkippedNoAccount int
}

// GenerateLeads runs the three qualifying scans over the install base and
// returns the candidate leads, deduplicated against existing active
// (item, type) pairs. Items whose account is unknown are skipped, not fatal.
func GenerateLeads(items []models.InstallBaseItem, contexts map[string]AccountContext, existing map[string]bool, refreshCriticalDays int, now time.Time) GenerationResult {
	var result GenerationResult

	for _, item := range items {
		item = RefreshDerived(item, now)

		acct, ok := contexts[item.AccountID]
		if !ok {
			result.SkippedNoAccount++
			continue
		}

		for _, candidate := range evaluateItem(item, refreshCriticalDays) {
			if existing[leadKey(item.Serial, candidate.Type)] {
				result.SkippedExisting++
				continue
			}
			lead := enrichLead(candidate, acct, now)
			existing[leadKey(item.Serial, lead.Type)] = true
			result.Leads = append(result.Leads, lead)
		}
	}
	return result
}

func leadKey(serial string, leadType models.LeadType) string {
	return serial + "|" + string(leadType)
}

func evaluateItem(item models.InstallBaseItem, refreshCriticalDays int) []models.Lead {
	var out []models.Lead
	if lead, ok := EvaluateRenewal(item); ok {
		out = append(out, lead)
	}
	if lead, ok := EvaluateHardwareRefresh(item, refreshCriticalDays); ok {
		out = append(out, lead)
	}
	if lead, ok := EvaluateServiceAttach(item); ok {
		out = append(out, lead)
	}
	return out
}

// EvaluateRenewal qualifies high-risk items whose support has lapsed.
// Priority mirrors the item's risk level.
func EvaluateRenewal(item models.InstallBaseItem) (models.Lead, bool) {
	if item.RiskLevel != models.RiskCritical && item.RiskLevel != models.RiskHigh {
		return models.Lead{}, false
	}
	if !SupportExpired(item.SupportStatus) {
		return models.Lead{}, false
	}

	priority := models.PriorityHigh
	if item.RiskLevel == models.RiskCritical {
		priority = models.PriorityCritical
	}

	return models.Lead{
		Type:              models.LeadRenewal,
		Priority:          priority,
		Title:             fmt.Sprintf("Support renewal: %s (%s)", item.ProductName, item.Serial),
		Description:       fmt.Sprintf("Support for %s lapsed %d days ago; risk level %s.", item.ProductName, item.DaysSinceSupportExpiry, item.RiskLevel),
		RecommendedAction: "Quote support renewal before the next maintenance window",
		AccountID:         item.AccountID,
		InstallBaseSerial: item.Serial,
	}, true
}

// EvaluateHardwareRefresh qualifies items far enough past end-of-life.
// Always critical: hardware this old has no upgrade path left.
func EvaluateHardwareRefresh(item models.InstallBaseItem, criticalDays int) (models.Lead, bool) {
	if criticalDays <= 0 {
		criticalDays = 1825
	}
	if item.DaysSinceEOL <= criticalDays {
		return models.Lead{}, false
	}

	action := "Propose a current-generation replacement"
	if hint, ok := NextGenHint(item.ProductName); ok {
		action = fmt.Sprintf("Propose refresh to %s or newer", hint)
	}

	return models.Lead{
		Type:              models.LeadHardwareRefresh,
		Priority:          models.PriorityCritical,
		Title:             fmt.Sprintf("Hardware refresh: %s (%s)", item.ProductName, item.Serial),
		Description:       fmt.Sprintf("%s reached end-of-life %d days ago.", item.ProductName, item.DaysSinceEOL),
		RecommendedAction: action,
		AccountID:         item.AccountID,
		InstallBaseSerial: item.Serial,
	}, true
}

// EvaluateServiceAttach qualifies items with no support agreement at all.
func EvaluateServiceAttach(item models.InstallBaseItem) (models.Lead, bool) {
	if !SupportUncovered(item.SupportStatus) {
		return models.Lead{}, false
	}

	return models.Lead{
		Type:              models.LeadServiceAttach,
		Priority:          models.PriorityHigh,
		Title:             fmt.Sprintf("Service attach: %s (%s)", item.ProductName, item.Serial),
		Description:       fmt.Sprintf("%s has no active support agreement.", item.ProductName),
		RecommendedAction: "Attach a support contract to cover the uncovered asset",
		AccountID:         item.AccountID,
		InstallBaseSerial: item.Serial,
	}, true
}

// NextGenHint parses a generation number out of a product name and suggests
// the refresh target, e.g. "DL360 Gen9" -> "Gen11".
func NextGenHint(productName string) (string, bool) {
	m := genPattern.FindStringSubmatch(productName)
	if m == nil {
		return "", false
	}
	gen, err := strconv.Atoi(m[1])
	if err != nil {
		return "", false
	}
	return fmt.Sprintf("Gen%d", gen+nextGenOffset), true
}

func enrichLead(lead models.Lead, acct AccountContext, now time.Time) models.Lead {
	lead.ID = uuid.NewString()
	lead.TypicalEngagementSize = acct.TypicalEngagementSize
	lead.InstallBaseCount = acct.InstallBaseCount
	lead.EngagementCount = acct.EngagementCount
	// EstimatedValue and ServiceCreditBalance stay unset: no valuation input
	// exists yet and the credit feed is not wired.
	lead.IsActive = true
	lead.Status = LeadStatusNew
	lead.GeneratedAt = now.UTC()
	return lead
}
