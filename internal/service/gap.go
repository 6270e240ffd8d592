package service

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/installsight/backend/internal/models"
)

// Gap-analysis priorities. IMMEDIATE outranks everything and only appears
// on priority actions.
const (
	GapPriorityImmediate = "IMMEDIATE"
	GapPriorityHigh      = "HIGH"
	GapPriorityMedium    = "MEDIUM"
	GapPriorityLow       = "LOW"
)

const (
	maxGapRecommendations = 8
	crossSellFloorPercent = 5.0
	dominantThemePercent  = 30.0
	staleHealthCheckDays  = 365
)

const (
	CategoryServers    = "Servers"
	CategoryStorage    = "Storage"
	CategoryNetworking = "Networking"
	CategoryOther      = "Other"
)

var hardwareCategoryKeywords = map[string][]string{
	CategoryServers:    {"proliant", "synergy", "blade", "server", "dl3", "dl5", "ml3"},
	CategoryStorage:    {"storage", "msa", "nimble", "alletra", "primera", "3par", "san", "storeonce"},
	CategoryNetworking: {"aruba", "switch", "network", "access point", "router"},
}

// Service themes detected in engagement descriptions.
var themeKeywords = map[string][]string{
	"health check":   {"health check", "healthcheck", "assessment", "audit"},
	"firmware":       {"firmware", "patch", "update service"},
	"migration":      {"migration", "migrate", "move to"},
	"security":       {"security", "hardening", "vulnerability", "compliance"},
	"virtualization": {"virtualization", "virtualisation", "vmware", "hyper-v", "hypervisor"},
	"cloud":          {"cloud", "azure", "aws", "greenlake"},
	"network":        {"network", "wireless", "wifi", "lan", "wan"},
	"backup":         {"backup", "recovery", "restore", "dr "},
	"storage":        {"storage", "san", "array", "volume"},
}

// Which themes matter for which hardware category.
var categoryThemes = map[string][]string{
	CategoryServers:    {"health check", "firmware", "virtualization"},
	CategoryStorage:    {"storage", "backup"},
	CategoryNetworking: {"network", "security"},
}

var crossSellServices = map[string]string{
	"health check":   "Proactive Health Check Service",
	"firmware":       "Firmware & Patch Management Service",
	"migration":      "Data Migration Service",
	"security":       "Security Assessment Service",
	"virtualization": "Virtualization Optimization Service",
	"cloud":          "Cloud Readiness Assessment",
	"network":        "Network Assessment Service",
	"backup":         "Backup & Recovery Service",
	"storage":        "Storage Health & Capacity Service",
}

// Enhanced offerings proposed on top of themes the account already uses.
var upSellServices = map[string]string{
	"virtualization": "Container Platform Implementation",
	"cloud":          "Hybrid Cloud Operations",
	"security":       "Zero Trust Assessment",
	"backup":         "Disaster Recovery Design",
	"network":        "Network Modernization",
	"health check":   "Proactive Care Subscription",
	"storage":        "Storage Modernization",
	"firmware":       "Lifecycle Automation",
	"migration":      "Workload Migration at Scale",
}

// complementaryThemes pairs a dominant activity with the coverage it
// usually implies: heavy cloud work with no backup is a gap.
var complementaryThemes = map[string]string{
	"cloud":          "backup",
	"virtualization": "security",
	"storage":        "migration",
}

var smallSizeCategories = map[string]bool{
	"xs": true, "s": true, "small": true, "extra small": true,
}

type ThemeUsage struct {
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

type GapRecommendation struct {
	Service        string   `json:"service"`
	Theme          string   `json:"theme,omitempty"`
	Priority       string   `json:"priority"`
	Reason         string   `json:"reason"`
	GapPercent     float64  `json:"gap_percent,omitempty"`
	SampleHardware []string `json:"sample_hardware,omitempty"`
}

type GapStats struct {
	TotalHardware      int                   `json:"total_hardware"`
	TotalEngagements   int                   `json:"total_engagements"`
	HardwareByCategory map[string]int        `json:"hardware_by_category"`
	ThemeUsage         map[string]ThemeUsage `json:"theme_usage"`
}

type GapReport struct {
	AccountIdentity string              `json:"account_identity"`
	CrossSell       []GapRecommendation `json:"cross_sell"`
	UpSell          []GapRecommendation `json:"up_sell"`
	PriorityActions []GapRecommendation `json:"priority_actions"`
	Stats           GapStats            `json:"stats"`
}

// ServiceCredit is a prepaid credit balance with an expiry. The credit feed
// is not wired yet, so analyses normally see an empty slice.
type ServiceCredit struct {
	Balance   float64
	ExpiresAt time.Time
}

type GapInput struct {
	AccountIdentity string
	Items           []models.InstallBaseItem
	Engagements     []models.HistoricalEngagement
	Credits         []ServiceCredit
}

// AnalyzeGaps inspects one account's full hardware and engagement mix and
// surfaces cross-sell gaps, up-sell opportunities and time-boxed priority
// actions. Pure over its input.
func AnalyzeGaps(input GapInput, creditWindowDays int, now time.Time) GapReport {
	items := make([]models.InstallBaseItem, 0, len(input.Items))
	for _, it := range input.Items {
		items = append(items, RefreshDerived(it, now))
	}

	byCategory := categorizeHardware(items)
	usage := themeUsage(input.Engagements)

	report := GapReport{
		AccountIdentity: input.AccountIdentity,
		CrossSell:       crossSell(byCategory, usage, len(input.Engagements)),
		UpSell:          upSell(usage, input.Engagements),
		PriorityActions: priorityActions(items, input.Engagements, input.Credits, usage, creditWindowDays, now),
		Stats: GapStats{
			TotalHardware:      len(items),
			TotalEngagements:   len(input.Engagements),
			HardwareByCategory: countByCategory(byCategory),
			ThemeUsage:         usage,
		},
	}

	report.CrossSell = capAndSort(report.CrossSell)
	report.UpSell = capAndSort(report.UpSell)
	report.PriorityActions = capAndSort(report.PriorityActions)
	return report
}

func categorizeHardware(items []models.InstallBaseItem) map[string][]models.InstallBaseItem {
	out := map[string][]models.InstallBaseItem{}
	for _, it := range items {
		out[hardwareCategory(it.ProductName)] = append(out[hardwareCategory(it.ProductName)], it)
	}
	return out
}

func hardwareCategory(productName string) string {
	p := strings.ToLower(productName)
	for _, category := range []string{CategoryServers, CategoryStorage, CategoryNetworking} {
		for _, kw := range hardwareCategoryKeywords[category] {
			if strings.Contains(p, kw) {
				return category
			}
		}
	}
	return CategoryOther
}

func themeUsage(engagements []models.HistoricalEngagement) map[string]ThemeUsage {
	counts := map[string]int{}
	for _, e := range engagements {
		text := strings.ToLower(e.Description + " " + e.Practice)
		for theme, keywords := range themeKeywords {
			for _, kw := range keywords {
				if strings.Contains(text, kw) {
					counts[theme]++
					break
				}
			}
		}
	}

	out := map[string]ThemeUsage{}
	for theme := range themeKeywords {
		u := ThemeUsage{Count: counts[theme]}
		if len(engagements) > 0 {
			u.Percent = float64(counts[theme]) / float64(len(engagements)) * 100
		}
		out[theme] = u
	}
	return out
}

func crossSell(byCategory map[string][]models.InstallBaseItem, usage map[string]ThemeUsage, totalEngagements int) []GapRecommendation {
	var out []GapRecommendation
	for category, items := range byCategory {
		themes := categoryThemes[category]
		if len(themes) == 0 {
			continue
		}
		if totalEngagements == 0 {
			// primary theme only: one recommendation per owned category
			theme := themes[0]
			out = append(out, GapRecommendation{
				Service:        crossSellServices[theme],
				Theme:          theme,
				Priority:       GapPriorityHigh,
				Reason:         fmt.Sprintf("no service history for %d %s asset(s)", len(items), strings.ToLower(category)),
				GapPercent:     100,
				SampleHardware: sampleProducts(items, 3),
			})
			continue
		}
		for _, theme := range themes {
			u := usage[theme]
			if u.Percent >= crossSellFloorPercent {
				continue
			}
			out = append(out, GapRecommendation{
				Service:        crossSellServices[theme],
				Theme:          theme,
				Priority:       GapPriorityMedium,
				Reason:         fmt.Sprintf("%s coverage at %.1f%% of engagements, below %.0f%% floor", theme, u.Percent, crossSellFloorPercent),
				GapPercent:     crossSellFloorPercent - u.Percent,
				SampleHardware: sampleProducts(items, 3),
			})
		}
	}
	return out
}

func upSell(usage map[string]ThemeUsage, engagements []models.HistoricalEngagement) []GapRecommendation {
	var out []GapRecommendation
	for theme, u := range usage {
		if u.Count == 0 {
			continue
		}
		enhanced, ok := upSellServices[theme]
		if !ok {
			continue
		}
		priority := GapPriorityLow
		switch {
		case u.Percent >= dominantThemePercent:
			priority = GapPriorityHigh
		case u.Percent >= 10:
			priority = GapPriorityMedium
		}
		out = append(out, GapRecommendation{
			Service:    enhanced,
			Theme:      theme,
			Priority:   priority,
			Reason:     fmt.Sprintf("%s used in %.1f%% of engagements; candidate for an enhanced offering", theme, u.Percent),
			GapPercent: u.Percent,
		})
	}

	if rec, ok := consolidationUpSell(engagements); ok {
		out = append(out, rec)
	}
	return out
}

func consolidationUpSell(engagements []models.HistoricalEngagement) (GapRecommendation, bool) {
	if len(engagements) == 0 {
		return GapRecommendation{}, false
	}
	small := 0
	for _, e := range engagements {
		if smallSizeCategories[strings.ToLower(strings.TrimSpace(e.SizeCategory))] {
			small++
		}
	}
	share := float64(small) / float64(len(engagements)) * 100
	if share <= 50 {
		return GapRecommendation{}, false
	}
	return GapRecommendation{
		Service:    "Engagement Consolidation Program",
		Priority:   GapPriorityMedium,
		Reason:     fmt.Sprintf("%.0f%% of engagements are small one-off projects; consolidate into a managed program", share),
		GapPercent: share - 50,
	}, true
}

func priorityActions(items []models.InstallBaseItem, engagements []models.HistoricalEngagement, credits []ServiceCredit, usage map[string]ThemeUsage, creditWindowDays int, now time.Time) []GapRecommendation {
	var out []GapRecommendation

	if expired := expiredWithoutRecentHealthCheck(items, engagements, now); len(expired) > 0 {
		out = append(out, GapRecommendation{
			Service:        "Emergency Health Check",
			Theme:          "health check",
			Priority:       GapPriorityImmediate,
			Reason:         fmt.Sprintf("%d expired asset(s) with no health check in the last 12 months", len(expired)),
			GapPercent:     100,
			SampleHardware: sampleProducts(expired, 3),
		})
	}

	if creditWindowDays <= 0 {
		creditWindowDays = 90
	}
	for _, c := range credits {
		until := c.ExpiresAt.Sub(now)
		if c.Balance <= 0 || until < 0 || until > time.Duration(creditWindowDays)*24*time.Hour {
			continue
		}
		out = append(out, GapRecommendation{
			Service:    "Service Credit Utilization Plan",
			Priority:   GapPriorityHigh,
			Reason:     fmt.Sprintf("%.0f credits expire on %s", c.Balance, c.ExpiresAt.Format("2006-01-02")),
			GapPercent: c.Balance,
		})
	}

	for theme, complement := range complementaryThemes {
		if usage[theme].Percent < dominantThemePercent {
			continue
		}
		if usage[complement].Percent >= crossSellFloorPercent {
			continue
		}
		out = append(out, GapRecommendation{
			Service:    crossSellServices[complement],
			Theme:      complement,
			Priority:   GapPriorityHigh,
			Reason:     fmt.Sprintf("heavy %s activity (%.1f%%) with %s coverage at %.1f%%", theme, usage[theme].Percent, complement, usage[complement].Percent),
			GapPercent: usage[theme].Percent - usage[complement].Percent,
		})
	}

	return out
}

func expiredWithoutRecentHealthCheck(items []models.InstallBaseItem, engagements []models.HistoricalEngagement, now time.Time) []models.InstallBaseItem {
	recentHealthCheck := false
	cutoff := now.AddDate(0, 0, -staleHealthCheckDays)
	for _, e := range engagements {
		if e.StartDate == nil || e.StartDate.Before(cutoff) {
			continue
		}
		text := strings.ToLower(e.Description + " " + e.Practice)
		for _, kw := range themeKeywords["health check"] {
			if strings.Contains(text, kw) {
				recentHealthCheck = true
				break
			}
		}
	}
	if recentHealthCheck {
		return nil
	}

	var expired []models.InstallBaseItem
	for _, it := range items {
		if SupportExpired(it.SupportStatus) || it.DaysSinceEOL > 0 {
			expired = append(expired, it)
		}
	}
	return expired
}

func sampleProducts(items []models.InstallBaseItem, n int) []string {
	var out []string
	seen := map[string]bool{}
	for _, it := range items {
		if seen[it.ProductName] {
			continue
		}
		seen[it.ProductName] = true
		out = append(out, it.ProductName)
		if len(out) == n {
			break
		}
	}
	return out
}

func countByCategory(byCategory map[string][]models.InstallBaseItem) map[string]int {
	out := map[string]int{}
	for category, items := range byCategory {
		out[category] = len(items)
	}
	return out
}

var gapPriorityRank = map[string]int{
	GapPriorityImmediate: 0,
	GapPriorityHigh:      1,
	GapPriorityMedium:    2,
	GapPriorityLow:       3,
}

func capAndSort(recs []GapRecommendation) []GapRecommendation {
	sort.SliceStable(recs, func(i, j int) bool {
		ri, rj := gapPriorityRank[recs[i].Priority], gapPriorityRank[recs[j].Priority]
		if ri == rj {
			if recs[i].GapPercent == recs[j].GapPercent {
				return recs[i].Service < recs[j].Service
			}
			return recs[i].GapPercent > recs[j].GapPercent
		}
		return ri < rj
	})
	if len(recs) > maxGapRecommendations {
		recs = recs[:maxGapRecommendations]
	}
	return recs
}
