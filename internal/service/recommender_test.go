package service

import (
	"testing"

	"github.com/installsight/backend/internal/models"
)

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func testCatalog() []models.ServiceSKUMapping {
	return []models.ServiceSKUMapping{
		{ID: "m1", ProductDescription: "HPE ProLiant DL360 Gen10 Server", ProductCategory: "Compute", ServiceType: "Upgrade", SKUCode: strPtr("HA124A1"), Priority: intPtr(2), MatchConfidence: 90},
		{ID: "m2", ProductDescription: "HPE ProLiant DL360 Gen10 Server", ProductCategory: "Compute", ServiceType: "Health Check", SKUCode: strPtr("HA125A1"), Priority: intPtr(1), MatchConfidence: 70},
		{ID: "m3", ProductDescription: "Compute platform services", ProductCategory: "Server", ServiceType: "Migration", SKUCode: strPtr("HA126A1"), Priority: intPtr(2), MatchConfidence: 60},
		{ID: "m4", ProductDescription: "Generic install offering", ProductCategory: "Infrastructure", ServiceType: "Installation & Startup", SKUCode: strPtr("HA127A1"), Priority: intPtr(1), MatchConfidence: 50},
	}
}

func TestRecommendLayeredWithUrgencyBoost(t *testing.T) {
	r := NewRecommender(testCatalog())
	days := -500
	recs := r.Recommend(RecommendRequest{
		ProductName:   "DL360",
		Platform:      "Compute",
		SupportStatus: "Expired Flex Support",
		DaysToEOL:     &days,
		TopN:          5,
	})

	if len(recs) == 0 || len(recs) > 5 {
		t.Fatalf("expected 1..5 recommendations, got %d", len(recs))
	}

	for i := 1; i < len(recs); i++ {
		prev, cur := recs[i-1], recs[i]
		if prev.Priority > cur.Priority {
			t.Errorf("results not sorted by priority: %d before %d", prev.Priority, cur.Priority)
		}
		if prev.Priority == cur.Priority && prev.Confidence < cur.Confidence {
			t.Errorf("ties not sorted by confidence: %v before %v", prev.Confidence, cur.Confidence)
		}
	}

	criticalBoost := false
	for _, rec := range recs {
		if (rec.ServiceType == "Upgrade" || rec.ServiceType == "Migration" || rec.ServiceType == "Installation & Startup") && rec.Urgency == UrgencyCritical {
			criticalBoost = true
		}
	}
	if !criticalBoost {
		t.Fatalf("expected at least one migration-path service boosted to Critical: %+v", recs)
	}
}

func TestRecommendExactLayerConfidenceSplit(t *testing.T) {
	r := NewRecommender(testCatalog())
	recs := r.Recommend(RecommendRequest{ProductName: "DL360", TopN: 10})

	byType := map[string]models.Recommendation{}
	for _, rec := range recs {
		byType[rec.ServiceType] = rec
	}

	up, ok := byType["Upgrade"]
	if !ok || up.Layer != models.LayerExactProduct {
		t.Fatalf("expected exact-product Upgrade hit, got %+v", recs)
	}
	if up.Confidence != 95 {
		t.Errorf("stored confidence 90 maps to display 95, got %v", up.Confidence)
	}
	hc := byType["Health Check"]
	if hc.Confidence != 80 {
		t.Errorf("stored confidence 70 maps to display 80, got %v", hc.Confidence)
	}
}

func TestRecommendCategoryLayerFillsUnderflow(t *testing.T) {
	r := NewRecommender(testCatalog())
	recs := r.Recommend(RecommendRequest{ProductName: "XP8000", Platform: "Compute", TopN: 5})

	foundCategory := false
	for _, rec := range recs {
		if rec.Layer == models.LayerCategoryMatch {
			foundCategory = true
			if rec.Confidence != 65 {
				t.Errorf("category layer confidence = %v, want 65", rec.Confidence)
			}
		}
	}
	if !foundCategory {
		t.Fatalf("expected category-layer results for unknown product on Compute, got %+v", recs)
	}
}

func TestRecommendNoMatchReturnsEmpty(t *testing.T) {
	r := NewRecommender(nil)
	recs := r.Recommend(RecommendRequest{ProductName: "Unknown Widget", Platform: "Mainframe", TopN: 5})
	if len(recs) != 0 {
		t.Fatalf("no catalog match must yield an empty list, got %+v", recs)
	}
}

func TestRecommendTruncatesToTopN(t *testing.T) {
	r := NewRecommender(testCatalog())
	recs := r.Recommend(RecommendRequest{ProductName: "DL360", Platform: "Compute", TopN: 1})
	if len(recs) != 1 {
		t.Fatalf("expected exactly 1 result, got %d", len(recs))
	}
}
