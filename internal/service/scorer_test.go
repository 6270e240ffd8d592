package service

import (
	"reflect"
	"testing"

	"github.com/installsight/backend/internal/models"
)

func refreshScoringInput() ScoringInput {
	return ScoringInput{
		Lead: models.Lead{Type: models.LeadHardwareRefresh},
		Item: models.InstallBaseItem{
			ProductFamily:          "ProLiant",
			BusinessArea:           "Hybrid Compute",
			DaysSinceEOL:           2000,
			DaysSinceSupportExpiry: 400,
		},
		Context: AccountContext{
			InstallBaseCount:  55,
			OpenOpportunities: 3,
			ClosedEngagements: 7,
		},
	}
}

func TestScoreSubScores(t *testing.T) {
	res := Score(refreshScoringInput())

	// urgency: 50 base + 30 (eol >5y) + 20 (support >1y) = 100
	if res.Urgency != 100 {
		t.Errorf("urgency = %v, want 100", res.Urgency)
	}
	// value: 40 base + 0 (no estimated value) + 20 (install base >50) = 60
	if res.Value != 60 {
		t.Errorf("value = %v, want 60", res.Value)
	}
	// propensity: 30 base + 20 (opps >2) + 20 (history >5) + 10 recency = 80
	if res.Propensity != 80 {
		t.Errorf("propensity = %v, want 80", res.Propensity)
	}
	// strategic: 50 base + 25 family + 15 compute + 10 refresh = 100
	if res.StrategicFit != 100 {
		t.Errorf("strategic fit = %v, want 100", res.StrategicFit)
	}
	// overall: 100*.35 + 60*.30 + 80*.20 + 100*.15 = 84.0
	if res.Overall != 84.0 {
		t.Errorf("overall = %v, want 84.0", res.Overall)
	}
	if res.Priority != models.PriorityCritical {
		t.Errorf("priority = %s, want CRITICAL", res.Priority)
	}
}

func TestScoreDeterministic(t *testing.T) {
	in := refreshScoringInput()
	first := Score(in)
	second := Score(in)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("scoring must be deterministic:\n%+v\n%+v", first, second)
	}
}

func TestScoreEstimatedValueBranchStaysInert(t *testing.T) {
	in := refreshScoringInput()
	in.Context.InstallBaseCount = 0
	base := Score(in).Value

	// only when a valuation input appears does the bracket fire
	v := 250_000.0
	in.Lead.EstimatedValue = &v
	withValue := Score(in).Value

	if base != 40 {
		t.Errorf("value without estimate = %v, want base 40", base)
	}
	if withValue != 80 {
		t.Errorf("value with 250k estimate = %v, want 80", withValue)
	}
}

func TestBandBoundariesExact(t *testing.T) {
	cases := []struct {
		score float64
		want  models.Priority
	}{
		{75.0, models.PriorityCritical},
		{74.9, models.PriorityHigh},
		{60.0, models.PriorityHigh},
		{59.9, models.PriorityMedium},
		{40.0, models.PriorityMedium},
		{39.9, models.PriorityLow},
		{0, models.PriorityLow},
	}
	for _, tc := range cases {
		if got := BandFor(tc.score); got != tc.want {
			t.Errorf("BandFor(%v) = %s, want %s", tc.score, got, tc.want)
		}
	}
}

func TestSubScoresClampedAt100(t *testing.T) {
	in := refreshScoringInput()
	in.Context.OpenOpportunities = 20
	in.Context.ClosedEngagements = 50
	res := Score(in)
	// 30 + 30 + 30 + 10 = 100, already at the cap
	if res.Propensity != 100 {
		t.Errorf("propensity = %v, want clamp at 100", res.Propensity)
	}
	if res.Urgency > 100 || res.Value > 100 || res.StrategicFit > 100 {
		t.Errorf("sub-scores must be clamped to 100: %+v", res)
	}
}
