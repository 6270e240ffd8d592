package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/installsight/backend/internal/classifier"
	"github.com/installsight/backend/internal/config"
	"github.com/installsight/backend/internal/db"
	"github.com/installsight/backend/internal/identity"
	"github.com/installsight/backend/internal/models"
	"github.com/installsight/backend/internal/service"
)

type Handler struct {
	Store      *db.Store
	Classifier classifier.Adapter
	Validator  *validator.Validate
	Logger     zerolog.Logger
	Config     config.Config
}

func (h *Handler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()
	if err := h.Store.Ping(ctx); err != nil {
		writeError(c, http.StatusServiceUnavailable, "DB_UNAVAILABLE", "Database unavailable", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// @Summary Run the lead pipeline
// @Description Generate, enrich and score leads from the current snapshot
// @Tags process
// @Produce json
// @Success 200 {object} map[string]any
// @Router /api/process [post]
func (h *Handler) Process(c *gin.Context) {
	runID, err := h.Store.CreateRun(c.Request.Context(), "RUNNING")
	if err != nil {
		h.Logger.Error().Err(err).Msg("failed to create run")
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to create run", err.Error())
		return
	}

	pipeline := service.PipelineService{Store: h.Store, Logger: h.Logger, Config: h.Config}
	summary, err := pipeline.Run(c.Request.Context())
	status := "SUCCESS"
	if err != nil {
		status = "FAILED"
	}
	b, _ := json.Marshal(summary)
	if finishErr := h.Store.FinishRun(c.Request.Context(), runID, status, b); finishErr != nil {
		h.Logger.Error().Err(finishErr).Msg("failed to finish run")
	}

	if err != nil {
		h.Logger.Error().Err(err).Msg("pipeline failed")
		writeError(c, http.StatusInternalServerError, "PIPELINE_ERROR", "Pipeline failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, summary)
}

// @Summary Latest run
// @Tags runs
// @Produce json
// @Success 200 {object} map[string]any
// @Router /api/runs/latest [get]
func (h *Handler) RunsLatest(c *gin.Context) {
	result, err := h.Store.GetLatestRun(c.Request.Context())
	if err != nil {
		writeError(c, http.StatusNotFound, "NOT_FOUND", "No runs found", err.Error())
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) LeadsList(c *gin.Context) {
	leadType := strings.ToUpper(strings.TrimSpace(c.Query("type")))
	priority := strings.ToUpper(strings.TrimSpace(c.Query("priority")))
	accountID := c.Query("account_id")
	q := c.Query("q")
	activeOnly := c.DefaultQuery("active", "true") != "false"
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	items, err := h.Store.ListLeads(c.Request.Context(), leadType, priority, accountID, q, activeOnly, limit, offset)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list leads", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "limit": limit, "offset": offset})
}

func (h *Handler) LeadDetails(c *gin.Context) {
	lead, err := h.Store.GetLead(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Lead not found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to get lead", err.Error())
		return
	}
	c.JSON(http.StatusOK, lead)
}

type CloseLeadRequest struct {
	Status string `json:"status" validate:"required,oneof=CLOSED WON LOST DISMISSED"`
}

// @Summary Close a lead
// @Description Soft-close: the lead row is kept with is_active=false
// @Tags leads
// @Accept json
// @Produce json
// @Param id path string true "Lead ID"
// @Router /api/leads/{id}/close [post]
func (h *Handler) LeadClose(c *gin.Context) {
	var req CloseLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}

	if err := h.Store.CloseLead(c.Request.Context(), c.Param("id"), req.Status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Lead not found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to close lead", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) AccountsList(c *gin.Context) {
	items, err := h.Store.ListAccounts(c.Request.Context())
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list accounts", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// @Summary Re-run identity normalization over stored accounts
// @Description Rebuilds canonical names across the whole snapshot, collapsing name variants that arrived in separate imports
// @Tags accounts
// @Produce json
// @Success 200 {object} map[string]any
// @Router /api/accounts/renormalize [post]
func (h *Handler) AccountsRenormalize(c *gin.Context) {
	accounts, err := h.Store.ListAccounts(c.Request.Context())
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list accounts", err.Error())
		return
	}

	normalizer := identity.NewNormalizer(h.Config.MatchThreshold)
	updated := 0
	for _, a := range accounts {
		normalized := normalizer.Normalize(a.Name)
		normalizer.AddAlias(a.Name, normalized)
		if normalized == a.NormalizedName {
			continue
		}
		if err := h.Store.UpdateAccountNormalizedName(c.Request.Context(), a.ID, normalized); err != nil {
			writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to update account", err.Error())
			return
		}
		updated++
	}
	c.JSON(http.StatusOK, gin.H{"accounts": len(accounts), "updated": updated})
}

// @Summary Recommend services for a product
// @Tags recommendations
// @Produce json
// @Param product query string true "Product name"
// @Param platform query string false "Platform (Compute/Storage/Network/Infrastructure)"
// @Param support_status query string false "Current support status"
// @Param days_to_eol query int false "Days until EOL (negative if already past)"
// @Param top_n query int false "Max results"
// @Success 200 {object} map[string]any
// @Router /api/recommendations [get]
func (h *Handler) Recommend(c *gin.Context) {
	product := strings.TrimSpace(c.Query("product"))
	if product == "" {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "product is required", nil)
		return
	}

	req := service.RecommendRequest{
		ProductName:   product,
		Platform:      c.Query("platform"),
		SupportStatus: c.Query("support_status"),
		TopN:          h.Config.RecommendTopN,
	}
	if v := c.Query("days_to_eol"); v != "" {
		if days, err := strconv.Atoi(v); err == nil {
			req.DaysToEOL = &days
		}
	}
	if v := c.Query("top_n"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			req.TopN = n
		}
	}

	catalog, err := h.Store.ListServiceCatalog(c.Request.Context())
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to load service catalog", err.Error())
		return
	}

	recs := service.NewRecommender(catalog).Recommend(req)
	resp := gin.H{"items": recs}
	if len(recs) == 0 {
		resp["message"] = "no catalog match; contact support"
	}
	c.JSON(http.StatusOK, resp)
}

// @Summary Gap analysis for one account
// @Tags recommendations
// @Produce json
// @Param id path string true "Account ID"
// @Success 200 {object} service.GapReport
// @Router /api/accounts/{id}/gap-analysis [get]
func (h *Handler) GapAnalysis(c *gin.Context) {
	accountID := c.Param("id")

	accounts, err := h.Store.ListAccounts(c.Request.Context())
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list accounts", err.Error())
		return
	}

	// the analysis covers the whole entity: every account row sharing the
	// target's normalized name contributes its hardware and history
	identity, accountIDs := entityAccounts(accounts, accountID)

	var items []models.InstallBaseItem
	var engagements []models.HistoricalEngagement
	for _, id := range accountIDs {
		batch, err := h.Store.ListInstallBaseByAccount(c.Request.Context(), id)
		if err != nil {
			writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to load install base", err.Error())
			return
		}
		items = append(items, batch...)

		history, err := h.Store.ListEngagementsByAccount(c.Request.Context(), id)
		if err != nil {
			writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to load engagements", err.Error())
			return
		}
		engagements = append(engagements, history...)
	}
	if len(items) == 0 && len(engagements) == 0 {
		writeError(c, http.StatusNotFound, "NOT_FOUND", "No data for account", nil)
		return
	}

	report := service.AnalyzeGaps(service.GapInput{
		AccountIdentity: identity,
		Items:           items,
		Engagements:     engagements,
	}, h.Config.CreditExpiryWindowDays, time.Now().UTC())
	c.JSON(http.StatusOK, report)
}

// entityAccounts resolves the account rows forming one entity: the target
// plus every account sharing its normalized name. An id with no account row
// (or no normalized name) resolves to itself, keeping the analysis scoped
// to the single id.
func entityAccounts(accounts []models.Account, accountID string) (string, []string) {
	identity := ""
	for _, a := range accounts {
		if a.ID == accountID {
			identity = a.NormalizedName
			break
		}
	}
	if identity == "" {
		return accountID, []string{accountID}
	}

	var ids []string
	for _, a := range accounts {
		if a.NormalizedName == identity {
			ids = append(ids, a.ID)
		}
	}
	return identity, ids
}

// @Summary Score breakdown for one lead
// @Tags debug
// @Produce json
// @Param lead_id query string true "Lead ID"
// @Success 200 {object} map[string]any
// @Router /api/debug/score [get]
func (h *Handler) DebugScore(c *gin.Context) {
	leadID := strings.TrimSpace(c.Query("lead_id"))
	if leadID == "" {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "lead_id is required", nil)
		return
	}

	lead, err := h.Store.GetLead(c.Request.Context(), leadID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Lead not found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to load lead", err.Error())
		return
	}

	items, err := h.Store.ListInstallBaseByAccount(c.Request.Context(), lead.AccountID)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to load install base", err.Error())
		return
	}
	accounts, err := h.Store.ListAccounts(c.Request.Context())
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to load accounts", err.Error())
		return
	}
	engagements, err := h.Store.ListEngagementsByAccount(c.Request.Context(), lead.AccountID)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to load engagements", err.Error())
		return
	}

	now := time.Now().UTC()
	contexts := service.BuildAccountContexts(accounts, items, engagements)
	in := service.ScoringInput{Lead: lead, Context: contexts[lead.AccountID]}
	for _, it := range items {
		if it.Serial == lead.InstallBaseSerial {
			in.Item = service.RefreshDerived(it, now)
			break
		}
	}

	res := service.Score(in)
	c.JSON(http.StatusOK, gin.H{"lead_id": lead.ID, "result": res})
}

// @Summary Classify a lead via the external predictive model
// @Tags debug
// @Produce json
// @Param lead_id query string true "Lead ID"
// @Success 200 {object} map[string]any
// @Router /api/debug/classify [post]
func (h *Handler) DebugClassify(c *gin.Context) {
	leadID := strings.TrimSpace(c.Query("lead_id"))
	if leadID == "" {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "lead_id is required", nil)
		return
	}

	lead, err := h.Store.GetLead(c.Request.Context(), leadID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Lead not found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to load lead", err.Error())
		return
	}

	prediction, latencyMs, err := h.Classifier.ClassifyLead(c.Request.Context(), lead)
	if err != nil {
		writeError(c, http.StatusBadGateway, "CLASSIFIER_ERROR", "Classifier unavailable", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"prediction": prediction, "latency_ms": latencyMs, "rule_score": lead.Score})
}

func writeError(c *gin.Context, status int, code string, message string, details any) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}
