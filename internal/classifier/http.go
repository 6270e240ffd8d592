package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/installsight/backend/internal/models"
)

type HTTPAdapter struct {
	BaseURL string
	Client  *http.Client
}

type requestBody struct {
	LeadID            string  `json:"lead_id"`
	Type              string  `json:"type"`
	AccountID         string  `json:"account_id"`
	InstallBaseSerial string  `json:"install_base_id"`
	UrgencyScore      float64 `json:"urgency_score"`
	ValueScore        float64 `json:"value_score"`
	PropensityScore   float64 `json:"propensity_score"`
	StrategicFitScore float64 `json:"strategic_fit_score"`
	InstallBaseCount  int     `json:"install_base_count"`
	EngagementCount   int     `json:"engagement_count"`
}

func (h HTTPAdapter) ClassifyLead(ctx context.Context, lead models.Lead) (Prediction, int64, error) {
	if h.Client == nil {
		h.Client = &http.Client{Timeout: 15 * time.Second}
	}

	payload := requestBody{
		LeadID:            lead.ID,
		Type:              string(lead.Type),
		AccountID:         lead.AccountID,
		InstallBaseSerial: lead.InstallBaseSerial,
		UrgencyScore:      lead.UrgencyScore,
		ValueScore:        lead.ValueScore,
		PropensityScore:   lead.PropensityScore,
		StrategicFitScore: lead.StrategicFitScore,
		InstallBaseCount:  lead.InstallBaseCount,
		EngagementCount:   lead.EngagementCount,
	}
	b, _ := json.Marshal(payload)
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.BaseURL+"/classify", bytes.NewBuffer(b))
	if err != nil {
		return Prediction{}, 0, err
	}

	req.Header.Set("Content-Type", "application/json")
	resp, err := h.Client.Do(req)
	if err != nil {
		return Prediction{}, time.Since(start).Milliseconds(), err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Prediction{}, time.Since(start).Milliseconds(), errors.New("classifier service error")
	}

	var p Prediction
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return Prediction{}, time.Since(start).Milliseconds(), err
	}
	if p.LeadID == "" {
		p.LeadID = lead.ID
	}
	return p, time.Since(start).Milliseconds(), nil
}
