package service

import (
	"math"
	"strconv"
	"strings"

	"github.com/installsight/backend/internal/models"
)

// Sub-score weights for the overall lead score.
const (
	weightUrgency      = 0.35
	weightValue        = 0.30
	weightPropensity   = 0.20
	weightStrategicFit = 0.15
)

var strategicFamilies = []string{"proliant", "synergy", "alletra", "primera", "aruba"}

// ScoringInput bundles everything a lead is scored against. Scoring is a
// pure function of this input; re-running it never changes the result.
type ScoringInput struct {
	Lead    models.Lead
	Item    models.InstallBaseItem
	Context AccountContext
}

type scoreRule struct {
	name   string
	points float64
	when   func(in ScoringInput) bool
}

// ruleGroup is an ordered list of rules. An exclusive group behaves like a
// bracket: only the first matching rule contributes.
type ruleGroup struct {
	exclusive bool
	rules     []scoreRule
}

type subScore struct {
	base   float64
	groups []ruleGroup
}

type ScoreResult struct {
	Urgency      float64           `json:"urgency"`
	Value        float64           `json:"value"`
	Propensity   float64           `json:"propensity"`
	StrategicFit float64           `json:"strategic_fit"`
	Overall      float64           `json:"overall"`
	Priority     models.Priority   `json:"priority"`
	Applied      map[string]string `json:"applied,omitempty"`
}

var urgencyScore = subScore{
	base: 50,
	groups: []ruleGroup{
		{exclusive: true, rules: []scoreRule{
			{"eol_over_5y", 30, func(in ScoringInput) bool { return in.Item.DaysSinceEOL > 1825 }},
			{"eol_over_3y", 20, func(in ScoringInput) bool { return in.Item.DaysSinceEOL > 1095 }},
			{"eol_over_1y", 10, func(in ScoringInput) bool { return in.Item.DaysSinceEOL > 365 }},
		}},
		{exclusive: true, rules: []scoreRule{
			{"support_expired_over_1y", 20, func(in ScoringInput) bool { return in.Item.DaysSinceSupportExpiry > 365 }},
			{"support_expired_over_6m", 15, func(in ScoringInput) bool { return in.Item.DaysSinceSupportExpiry > 180 }},
			{"support_expired_over_3m", 10, func(in ScoringInput) bool { return in.Item.DaysSinceSupportExpiry > 90 }},
		}},
	},
}

var valueScore = subScore{
	base: 40,
	groups: []ruleGroup{
		// Deal-value bracket. Generated leads currently carry no estimated
		// value, so only the floor rule can fire; the upper brackets stay in
		// place for a future valuation input.
		{exclusive: true, rules: []scoreRule{
			{"deal_200k", 40, func(in ScoringInput) bool { return estValue(in) >= 200_000 }},
			{"deal_100k", 30, func(in ScoringInput) bool { return estValue(in) >= 100_000 }},
			{"deal_50k", 20, func(in ScoringInput) bool { return estValue(in) >= 50_000 }},
			{"deal_floor", 10, func(in ScoringInput) bool { return estValue(in) > 0 }},
		}},
		{exclusive: true, rules: []scoreRule{
			{"install_base_50", 20, func(in ScoringInput) bool { return in.Context.InstallBaseCount > 50 }},
			{"install_base_20", 15, func(in ScoringInput) bool { return in.Context.InstallBaseCount > 20 }},
			{"install_base_5", 10, func(in ScoringInput) bool { return in.Context.InstallBaseCount > 5 }},
		}},
	},
}

var propensityScore = subScore{
	base: 30,
	groups: []ruleGroup{
		{exclusive: true, rules: []scoreRule{
			{"open_opps_5", 30, func(in ScoringInput) bool { return in.Context.OpenOpportunities > 5 }},
			{"open_opps_2", 20, func(in ScoringInput) bool { return in.Context.OpenOpportunities > 2 }},
			{"open_opps_any", 10, func(in ScoringInput) bool { return in.Context.OpenOpportunities > 0 }},
		}},
		{exclusive: true, rules: []scoreRule{
			{"history_10", 30, func(in ScoringInput) bool { return in.Context.ClosedEngagements > 10 }},
			{"history_5", 20, func(in ScoringInput) bool { return in.Context.ClosedEngagements > 5 }},
			{"history_any", 10, func(in ScoringInput) bool { return in.Context.ClosedEngagements > 0 }},
		}},
		{rules: []scoreRule{
			{"recency_allowance", 10, func(in ScoringInput) bool { return true }},
		}},
	},
}

var strategicFitScore = subScore{
	base: 50,
	groups: []ruleGroup{
		{rules: []scoreRule{
			{"strategic_family", 25, func(in ScoringInput) bool { return isStrategicFamily(in.Item.ProductFamily, in.Item.ProductName) }},
			{"compute_area", 15, func(in ScoringInput) bool {
				return strings.Contains(strings.ToLower(in.Item.BusinessArea), "compute")
			}},
			{"refresh_lead", 10, func(in ScoringInput) bool { return in.Lead.Type == models.LeadHardwareRefresh }},
			{"renewal_lead", 5, func(in ScoringInput) bool { return in.Lead.Type == models.LeadRenewal }},
		}},
	},
}

// Score computes the four sub-scores, the weighted overall score and the
// priority band for one lead. Deterministic and side-effect free.
func Score(in ScoringInput) ScoreResult {
	applied := map[string]string{}

	urgency := evalSubScore(urgencyScore, in, "urgency", applied)
	value := evalSubScore(valueScore, in, "value", applied)
	propensity := evalSubScore(propensityScore, in, "propensity", applied)
	strategic := evalSubScore(strategicFitScore, in, "strategic_fit", applied)

	overall := urgency*weightUrgency + value*weightValue + propensity*weightPropensity + strategic*weightStrategicFit
	overall = math.Round(overall*10) / 10

	return ScoreResult{
		Urgency:      urgency,
		Value:        value,
		Propensity:   propensity,
		StrategicFit: strategic,
		Overall:      overall,
		Priority:     BandFor(overall),
		Applied:      applied,
	}
}

func evalSubScore(s subScore, in ScoringInput, label string, applied map[string]string) float64 {
	total := s.base
	for _, group := range s.groups {
		for _, r := range group.rules {
			if !r.when(in) {
				continue
			}
			total += r.points
			applied[label+"."+r.name] = pointsLabel(r.points)
			if group.exclusive {
				break
			}
		}
	}
	return clamp(total, 0, 100)
}

func pointsLabel(points float64) string {
	return "+" + strconv.FormatFloat(points, 'f', -1, 64)
}

// BandFor maps an overall score to its priority band. Band edges are
// inclusive at the lower bound: 75.0 is CRITICAL, 74.9 is HIGH.
func BandFor(score float64) models.Priority {
	switch {
	case score >= 75:
		return models.PriorityCritical
	case score >= 60:
		return models.PriorityHigh
	case score >= 40:
		return models.PriorityMedium
	default:
		return models.PriorityLow
	}
}

func estValue(in ScoringInput) float64 {
	if in.Lead.EstimatedValue == nil {
		return 0
	}
	return *in.Lead.EstimatedValue
}

func isStrategicFamily(family, product string) bool {
	f := strings.ToLower(family)
	p := strings.ToLower(product)
	for _, s := range strategicFamilies {
		if strings.Contains(f, s) || strings.Contains(p, s) {
			return true
		}
	}
	return false
}
