package service

import (
	"sort"
	"strings"

	"github.com/installsight/backend/internal/models"
)

const (
	UrgencyCritical = "Critical"
	UrgencyHigh     = "High"
	UrgencyMedium   = "Medium"
	UrgencyNormal   = "Normal"
)

const defaultMappingPriority = 3

// eolUrgencyWindowDays: inside this window (or past EOL) expiring hardware
// bumps migration-path services up one priority band.
const eolUrgencyWindowDays = 180

var urgencyBoostTypes = map[string]bool{
	"Upgrade":                true,
	"Migration":              true,
	"Installation & Startup": true,
}

var fallbackServiceTypes = []string{"Installation & Startup", "Health Check", "Upgrade"}

// platformCategories maps a coarse platform label to the catalog categories
// searched by the category layer.
var platformCategories = map[string][]string{
	"compute":        {"compute", "server"},
	"storage":        {"storage"},
	"network":        {"network"},
	"networking":     {"network"},
	"infrastructure": {"infrastructure", "datacenter"},
}

type RecommendRequest struct {
	ProductName   string
	Platform      string
	SupportStatus string
	DaysToEOL     *int
	TopN          int
}

// Recommender ranks catalog services for a product using a three-layer
// fallback: exact product match, category match, then generic services.
// It is pure and read-only over its catalog snapshot, so a single instance
// may serve concurrent callers.
type Recommender struct {
	catalog []models.ServiceSKUMapping
}

func NewRecommender(catalog []models.ServiceSKUMapping) *Recommender {
	return &Recommender{catalog: catalog}
}

// Recommend returns up to TopN ranked suggestions. An empty result is a
// valid "no catalog match; contact support" outcome, never an error.
func (r *Recommender) Recommend(req RecommendRequest) []models.Recommendation {
	if req.TopN <= 0 {
		req.TopN = 5
	}

	seen := map[string]bool{}
	out := r.exactProductLayer(req, seen)
	if len(out) < req.TopN {
		out = append(out, r.categoryLayer(req, seen)...)
	}
	if len(out) < req.TopN {
		out = append(out, r.fallbackLayer(seen)...)
	}

	out = applyUrgency(out, req)

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority == out[j].Priority {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].Priority < out[j].Priority
	})

	if len(out) > req.TopN {
		out = out[:req.TopN]
	}
	return out
}

func (r *Recommender) exactProductLayer(req RecommendRequest, seen map[string]bool) []models.Recommendation {
	product := strings.ToLower(strings.TrimSpace(req.ProductName))
	if product == "" {
		return nil
	}

	var out []models.Recommendation
	for _, m := range r.catalog {
		if !strings.Contains(strings.ToLower(m.ProductDescription), product) {
			continue
		}
		if seen[m.ServiceType] {
			continue
		}
		seen[m.ServiceType] = true

		confidence := 80.0
		if m.MatchConfidence >= 85 {
			confidence = 95.0
		}
		out = append(out, models.Recommendation{
			ServiceType: m.ServiceType,
			SKUCode:     derefOr(m.SKUCode, ""),
			Description: m.ProductDescription,
			Layer:       models.LayerExactProduct,
			Confidence:  confidence,
			Priority:    mappingPriority(m),
		})
	}
	return out
}

func (r *Recommender) categoryLayer(req RecommendRequest, seen map[string]bool) []models.Recommendation {
	categories := platformCategories[strings.ToLower(strings.TrimSpace(req.Platform))]
	if len(categories) == 0 {
		return nil
	}

	var out []models.Recommendation
	for _, m := range r.catalog {
		if !matchesCategory(m.ProductCategory, categories) {
			continue
		}
		if seen[m.ServiceType] {
			continue
		}
		seen[m.ServiceType] = true

		out = append(out, models.Recommendation{
			ServiceType: m.ServiceType,
			SKUCode:     derefOr(m.SKUCode, ""),
			Description: m.ProductDescription,
			Layer:       models.LayerCategoryMatch,
			Confidence:  65,
			Priority:    mappingPriority(m),
		})
	}
	return out
}

func (r *Recommender) fallbackLayer(seen map[string]bool) []models.Recommendation {
	var out []models.Recommendation
	for rank, serviceType := range fallbackServiceTypes {
		if seen[serviceType] {
			continue
		}
		m, ok := r.firstByServiceType(serviceType)
		if !ok {
			continue
		}
		seen[serviceType] = true
		out = append(out, models.Recommendation{
			ServiceType: serviceType,
			SKUCode:     derefOr(m.SKUCode, ""),
			Description: "General " + strings.ToLower(serviceType) + " service",
			Layer:       models.LayerFallback,
			Confidence:  50,
			Priority:    rank + 1,
		})
	}
	return out
}

func (r *Recommender) firstByServiceType(serviceType string) (models.ServiceSKUMapping, bool) {
	for _, m := range r.catalog {
		if strings.EqualFold(m.ServiceType, serviceType) {
			return m, true
		}
	}
	return models.ServiceSKUMapping{}, false
}

func applyUrgency(recs []models.Recommendation, req RecommendRequest) []models.Recommendation {
	urgent := SupportExpired(req.SupportStatus) ||
		(req.DaysToEOL != nil && *req.DaysToEOL < eolUrgencyWindowDays)

	for i := range recs {
		if !urgent {
			if urgencyBoostTypes[recs[i].ServiceType] {
				recs[i].Urgency = UrgencyMedium
			} else {
				recs[i].Urgency = UrgencyNormal
			}
			continue
		}
		if urgencyBoostTypes[recs[i].ServiceType] {
			if recs[i].Priority > 1 {
				recs[i].Priority--
			}
			recs[i].Urgency = UrgencyCritical
		} else {
			recs[i].Urgency = UrgencyHigh
		}
	}
	return recs
}

func matchesCategory(category string, wanted []string) bool {
	c := strings.ToLower(category)
	for _, w := range wanted {
		if strings.Contains(c, w) {
			return true
		}
	}
	return false
}

func mappingPriority(m models.ServiceSKUMapping) int {
	if m.Priority == nil || *m.Priority <= 0 {
		return defaultMappingPriority
	}
	return *m.Priority
}

func derefOr(v *string, def string) string {
	if v == nil {
		return def
	}
	return *v
}
