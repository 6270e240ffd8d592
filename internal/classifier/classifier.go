package classifier

import (
	"context"

	"github.com/installsight/backend/internal/models"
)

// Prediction is the output of the external predictive classifier. It is
// advisory only: the rule-based scorer never consults it.
type Prediction struct {
	LeadID       string  `json:"lead_id"`
	Propensity   float64 `json:"propensity"`
	Confidence   float64 `json:"confidence"`
	Label        string  `json:"label"`
	ModelVersion string  `json:"model_version"`
}

type Adapter interface {
	ClassifyLead(ctx context.Context, lead models.Lead) (Prediction, int64, error)
}
