package models

import (
	"encoding/json"
	"time"
)

type RiskLevel string

const (
	RiskCritical RiskLevel = "CRITICAL"
	RiskHigh     RiskLevel = "HIGH"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskLow      RiskLevel = "LOW"
	RiskUnknown  RiskLevel = "UNKNOWN"
)

type LeadType string

const (
	LeadRenewal         LeadType = "RENEWAL"
	LeadHardwareRefresh LeadType = "HARDWARE_REFRESH"
	LeadServiceAttach   LeadType = "SERVICE_ATTACH"
)

type Priority string

const (
	PriorityCritical Priority = "CRITICAL"
	PriorityHigh     Priority = "HIGH"
	PriorityMedium   Priority = "MEDIUM"
	PriorityLow      Priority = "LOW"
)

type Account struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	NormalizedName string    `json:"normalized_name"`
	TerritoryID    string    `json:"territory_id"`
	CreatedAt      time.Time `json:"created_at"`
}

// InstallBaseItem is one hardware/software asset. The dates are optional
// inputs; DaysSinceEOL, DaysSinceSupportExpiry and RiskLevel are derived
// against the current clock on each pipeline run and default to zero/UNKNOWN
// when the corresponding date is absent.
type InstallBaseItem struct {
	Serial         string     `json:"serial"`
	ProductName    string     `json:"product_name"`
	ProductFamily  string     `json:"product_family"`
	Platform       string     `json:"platform"`
	BusinessArea   string     `json:"business_area"`
	EOLDate        *time.Time `json:"eol_date"`
	EOSDate        *time.Time `json:"eos_date"`
	SupportStatus  string     `json:"support_status"`
	SupportEndDate *time.Time `json:"support_end_date"`
	AccountID      string     `json:"account_id"`
	TerritoryID    string     `json:"territory_id"`

	DaysSinceEOL           int       `json:"days_since_eol"`
	DaysSinceSupportExpiry int       `json:"days_since_support_expiry"`
	RiskLevel              RiskLevel `json:"risk_level"`
}

type HistoricalEngagement struct {
	ID           string     `json:"id"`
	AccountID    string     `json:"account_id"`
	Practice     string     `json:"practice"`
	Description  string     `json:"description"`
	SizeCategory string     `json:"size_category"`
	Status       string     `json:"status"`
	StartDate    *time.Time `json:"start_date"`
	EndDate      *time.Time `json:"end_date"`
}

// ServiceSKUMapping is a static reference row mapping products to services.
type ServiceSKUMapping struct {
	ID                 string  `json:"id"`
	ProductFamily      string  `json:"product_family"`
	ProductDescription string  `json:"product_description"`
	ProductCategory    string  `json:"product_category"`
	ServiceType        string  `json:"service_type"`
	SKUCode            *string `json:"sku_code"`
	Priority           *int    `json:"priority"`
	MatchConfidence    float64 `json:"match_confidence"`
	ValueBand          *string `json:"value_band"`
}

type Lead struct {
	ID                string   `json:"id"`
	Type              LeadType `json:"type"`
	Priority          Priority `json:"priority"`
	UrgencyScore      float64  `json:"urgency_score"`
	ValueScore        float64  `json:"value_score"`
	PropensityScore   float64  `json:"propensity_score"`
	StrategicFitScore float64  `json:"strategic_fit_score"`
	Score             float64  `json:"score"`
	Title             string   `json:"title"`
	Description       string   `json:"description"`
	RecommendedAction string   `json:"recommended_action"`
	RecommendedSKUs   string   `json:"recommended_skus"`
	AccountID         string   `json:"account_id"`
	InstallBaseSerial string   `json:"install_base_id"`

	// Account context captured at generation time.
	EstimatedValue        *float64 `json:"estimated_value,omitempty"`
	TypicalEngagementSize string   `json:"typical_engagement_size"`
	InstallBaseCount      int      `json:"install_base_count"`
	EngagementCount       int      `json:"engagement_count"`
	ServiceCreditBalance  *float64 `json:"service_credit_balance,omitempty"`

	IsActive    bool      `json:"is_active"`
	Status      string    `json:"status"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Recommendation is a ranked service suggestion. Produced per request,
// never persisted.
type Recommendation struct {
	ServiceType string  `json:"service_type"`
	SKUCode     string  `json:"sku_code,omitempty"`
	Description string  `json:"description"`
	Layer       string  `json:"layer"`
	Confidence  float64 `json:"confidence"`
	Priority    int     `json:"priority"`
	Urgency     string  `json:"urgency"`
}

const (
	LayerExactProduct  = "exact_product"
	LayerCategoryMatch = "category_match"
	LayerFallback      = "fallback"
)

type Run struct {
	ID         string          `json:"id"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt *time.Time      `json:"finished_at"`
	Status     string          `json:"status"`
	Summary    json.RawMessage `json:"summary"`
}
