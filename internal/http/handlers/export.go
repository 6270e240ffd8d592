package handlers

import (
	"encoding/csv"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/installsight/backend/internal/models"
)

const exportPageSize = 200

// @Summary Export leads as CSV
// @Tags leads
// @Produce text/csv
// @Param active query bool false "Active leads only (default true)"
// @Router /api/leads/export [get]
func (h *Handler) ExportLeads(c *gin.Context) {
	activeOnly := c.DefaultQuery("active", "true") != "false"

	// page through the full set before streaming so a DB error mid-way
	// never truncates an already-started response
	var leads []models.Lead
	for offset := 0; ; offset += exportPageSize {
		page, err := h.Store.ListLeads(c.Request.Context(), "", "", "", "", activeOnly, exportPageSize, offset)
		if err != nil {
			writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list leads", err.Error())
			return
		}
		leads = append(leads, page...)
		if len(page) < exportPageSize {
			break
		}
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", `attachment; filename="leads.csv"`)

	w := csv.NewWriter(c.Writer)
	_ = w.Write([]string{
		"id", "type", "priority", "score", "urgency_score", "value_score",
		"propensity_score", "strategic_fit_score", "title", "recommended_action",
		"recommended_skus", "account_id", "install_base_id", "status", "generated_at",
	})
	for _, l := range leads {
		_ = w.Write([]string{
			l.ID, string(l.Type), string(l.Priority),
			formatScore(l.Score), formatScore(l.UrgencyScore), formatScore(l.ValueScore),
			formatScore(l.PropensityScore), formatScore(l.StrategicFitScore),
			l.Title, l.RecommendedAction, l.RecommendedSKUs,
			l.AccountID, l.InstallBaseSerial, l.Status,
			l.GeneratedAt.Format("2006-01-02 15:04:05"),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		h.Logger.Error().Err(err).Msg("csv export write failed")
	}
}

func formatScore(v float64) string {
	s := strconv.FormatFloat(v, 'f', 1, 64)
	return strings.TrimSuffix(s, ".0")
}
