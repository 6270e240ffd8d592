package classifier

import (
	"context"
	"time"

	"github.com/installsight/backend/internal/models"
	"github.com/installsight/backend/internal/utils"
)

// MockAdapter produces deterministic pseudo-predictions keyed off the lead
// id, for local development without a classifier service.
type MockAdapter struct {
	ModelVersion string
}

func (m MockAdapter) ClassifyLead(ctx context.Context, lead models.Lead) (Prediction, int64, error) {
	start := time.Now()
	h := utils.HashStringToUint64(lead.ID)

	labels := []string{"hot", "warm", "cold"}
	propensity := float64(h%60+30) / 100 // 0.30 .. 0.89
	confidence := 0.7
	if h%4 == 0 {
		confidence = 0.55
	}

	p := Prediction{
		LeadID:       lead.ID,
		Propensity:   propensity,
		Confidence:   confidence,
		Label:        labels[int(h/11)%len(labels)],
		ModelVersion: m.ModelVersion,
	}
	return p, time.Since(start).Milliseconds(), nil
}
