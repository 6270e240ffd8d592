package handlers

import (
	"encoding/csv"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/installsight/backend/internal/identity"
	"github.com/installsight/backend/internal/models"
)

type fileSummary struct {
	Parsed   int `json:"parsed"`
	Inserted int `json:"inserted"`
	Errors   int `json:"errors"`
}

type ImportSummary struct {
	Accounts       fileSummary `json:"accounts"`
	InstallBase    fileSummary `json:"install_base"`
	Engagements    fileSummary `json:"engagements"`
	ServiceCatalog fileSummary `json:"service_catalog"`
	Errors         []string    `json:"errors"`
}

// @Summary Import CSV data
// @Description Upload accounts, install base, engagement and service catalog CSV files. Replaces the current snapshot.
// @Tags import
// @Accept multipart/form-data
// @Produce json
// @Param accounts formData file true "accounts.csv"
// @Param install_base formData file true "install_base.csv"
// @Param engagements formData file true "engagements.csv"
// @Param service_catalog formData file true "service_catalog.csv"
// @Success 200 {object} ImportSummary
// @Failure 400 {object} map[string]any
// @Router /api/import [post]
func (h *Handler) Import(c *gin.Context) {
	files := map[string]*multipart.FileHeader{}
	for _, field := range []string{"accounts", "install_base", "engagements", "service_catalog"} {
		f, err := c.FormFile(field)
		if err != nil {
			writeError(c, http.StatusBadRequest, "INVALID_REQUEST", field+" file required", nil)
			return
		}
		if !strings.EqualFold(filepath.Ext(f.Filename), ".csv") {
			writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "all files must be .csv", nil)
			return
		}
		files[field] = f
	}

	summary := ImportSummary{Errors: []string{}}

	normalizer := identity.NewNormalizer(h.Config.MatchThreshold)
	accounts, errs := parseAccountsCSV(files["accounts"], normalizer)
	summary.Accounts.Parsed = len(accounts)
	summary.Accounts.Errors = len(errs)
	summary.Errors = append(summary.Errors, errs...)

	items, errs := parseInstallBaseCSV(files["install_base"])
	summary.InstallBase.Parsed = len(items)
	summary.InstallBase.Errors = len(errs)
	summary.Errors = append(summary.Errors, errs...)

	engagements, errs := parseEngagementsCSV(files["engagements"])
	summary.Engagements.Parsed = len(engagements)
	summary.Engagements.Errors = len(errs)
	summary.Errors = append(summary.Errors, errs...)

	catalog, errs := parseServiceCatalogCSV(files["service_catalog"])
	summary.ServiceCatalog.Parsed = len(catalog)
	summary.ServiceCatalog.Errors = len(errs)
	summary.Errors = append(summary.Errors, errs...)

	ctx := c.Request.Context()
	if err := h.Store.TruncateInputs(ctx); err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to reset tables", err.Error())
		return
	}

	inserted, err := h.Store.InsertAccounts(ctx, accounts)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to insert accounts", err.Error())
		return
	}
	summary.Accounts.Inserted = int(inserted)

	inserted, err = h.Store.InsertInstallBase(ctx, items)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to insert install base", err.Error())
		return
	}
	summary.InstallBase.Inserted = int(inserted)

	inserted, err = h.Store.InsertEngagements(ctx, engagements)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to insert engagements", err.Error())
		return
	}
	summary.Engagements.Inserted = int(inserted)

	inserted, err = h.Store.InsertServiceCatalog(ctx, catalog)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to insert service catalog", err.Error())
		return
	}
	summary.ServiceCatalog.Inserted = int(inserted)

	c.JSON(http.StatusOK, summary)
}

func parseAccountsCSV(file *multipart.FileHeader, normalizer *identity.Normalizer) ([]models.Account, []string) {
	var out []models.Account
	errs := forEachCSVRow(file, func(rec []string, index map[string]int) error {
		id := normalizeTrim(getFieldAny(rec, index, "id", "account_id", "account id"))
		name := normalizeTrim(getFieldAny(rec, index, "name", "account_name", "account name", "customer"))
		territory := normalizeTrim(getFieldAny(rec, index, "territory_id", "territory", "region"))

		if name == "" {
			return fmt.Errorf("account row missing name")
		}
		if id == "" {
			id = uuid.NewString()
		}

		// Learning step: close variants of an already-seen name collapse
		// onto the same canonical identity.
		normalized := normalizer.Normalize(name)
		normalizer.AddAlias(name, normalized)

		out = append(out, models.Account{
			ID:             id,
			Name:           name,
			NormalizedName: normalized,
			TerritoryID:    territory,
			CreatedAt:      time.Now().UTC(),
		})
		return nil
	})
	return out, errs
}

func parseInstallBaseCSV(file *multipart.FileHeader) ([]models.InstallBaseItem, []string) {
	var out []models.InstallBaseItem
	errs := forEachCSVRow(file, func(rec []string, index map[string]int) error {
		serial := normalizeTrim(getFieldAny(rec, index, "serial", "serial_number", "serial number", "serial id"))
		if serial == "" {
			return fmt.Errorf("install base row missing serial")
		}
		accountID := normalizeTrim(getFieldAny(rec, index, "account_id", "account id", "account"))
		if accountID == "" {
			return fmt.Errorf("install base row %s missing account_id", serial)
		}

		eol, err := parseDatePtr(getFieldAny(rec, index, "eol_date", "eol", "end_of_life"))
		if err != nil {
			return fmt.Errorf("row %s: bad eol_date: %w", serial, err)
		}
		eos, err := parseDatePtr(getFieldAny(rec, index, "eos_date", "eos", "end_of_support"))
		if err != nil {
			return fmt.Errorf("row %s: bad eos_date: %w", serial, err)
		}
		supportEnd, err := parseDatePtr(getFieldAny(rec, index, "support_end_date", "support end", "support_end"))
		if err != nil {
			return fmt.Errorf("row %s: bad support_end_date: %w", serial, err)
		}

		out = append(out, models.InstallBaseItem{
			Serial:         serial,
			ProductName:    normalizeTrim(getFieldAny(rec, index, "product_name", "product", "product name")),
			ProductFamily:  normalizeTrim(getFieldAny(rec, index, "product_family", "family", "product family")),
			Platform:       normalizeTrim(getFieldAny(rec, index, "platform")),
			BusinessArea:   normalizeTrim(getFieldAny(rec, index, "business_area", "business area", "ba")),
			EOLDate:        eol,
			EOSDate:        eos,
			SupportStatus:  normalizeTrim(getFieldAny(rec, index, "support_status", "support status", "coverage")),
			SupportEndDate: supportEnd,
			AccountID:      accountID,
			TerritoryID:    normalizeTrim(getFieldAny(rec, index, "territory_id", "territory")),
		})
		return nil
	})
	return out, errs
}

func parseEngagementsCSV(file *multipart.FileHeader) ([]models.HistoricalEngagement, []string) {
	var out []models.HistoricalEngagement
	errs := forEachCSVRow(file, func(rec []string, index map[string]int) error {
		accountID := normalizeTrim(getFieldAny(rec, index, "account_id", "account id", "account"))
		if accountID == "" {
			return fmt.Errorf("engagement row missing account_id")
		}

		start, err := parseDatePtr(getFieldAny(rec, index, "start_date", "start", "started"))
		if err != nil {
			return fmt.Errorf("engagement for %s: bad start_date: %w", accountID, err)
		}
		end, err := parseDatePtr(getFieldAny(rec, index, "end_date", "end", "finished"))
		if err != nil {
			return fmt.Errorf("engagement for %s: bad end_date: %w", accountID, err)
		}

		id := normalizeTrim(getFieldAny(rec, index, "id", "engagement_id", "project_id"))
		if id == "" {
			id = uuid.NewString()
		}

		out = append(out, models.HistoricalEngagement{
			ID:           id,
			AccountID:    accountID,
			Practice:     normalizeTrim(getFieldAny(rec, index, "practice", "category")),
			Description:  normalizeTrim(getFieldAny(rec, index, "description", "summary", "text")),
			SizeCategory: normalizeTrim(getFieldAny(rec, index, "size_category", "size", "size category")),
			Status:       normalizeTrim(getFieldAny(rec, index, "status")),
			StartDate:    start,
			EndDate:      end,
		})
		return nil
	})
	return out, errs
}

func parseServiceCatalogCSV(file *multipart.FileHeader) ([]models.ServiceSKUMapping, []string) {
	var out []models.ServiceSKUMapping
	errs := forEachCSVRow(file, func(rec []string, index map[string]int) error {
		serviceType := normalizeTrim(getFieldAny(rec, index, "service_type", "service", "service type"))
		if serviceType == "" {
			return fmt.Errorf("catalog row missing service_type")
		}

		m := models.ServiceSKUMapping{
			ProductFamily:      normalizeTrim(getFieldAny(rec, index, "product_family", "family")),
			ProductDescription: normalizeTrim(getFieldAny(rec, index, "product_description", "description", "product")),
			ProductCategory:    normalizeTrim(getFieldAny(rec, index, "product_category", "category")),
			ServiceType:        serviceType,
		}
		m.ID = normalizeTrim(getFieldAny(rec, index, "id"))
		if m.ID == "" {
			m.ID = uuid.NewString()
		}
		if sku := normalizeTrim(getFieldAny(rec, index, "sku_code", "sku")); sku != "" {
			m.SKUCode = &sku
		}
		if p := normalizeTrim(getFieldAny(rec, index, "priority", "rank")); p != "" {
			v, err := strconv.Atoi(p)
			if err != nil {
				return fmt.Errorf("catalog row %s: bad priority %q", serviceType, p)
			}
			m.Priority = &v
		}
		if conf := normalizeTrim(getFieldAny(rec, index, "match_confidence", "confidence")); conf != "" {
			v, err := strconv.ParseFloat(conf, 64)
			if err != nil {
				return fmt.Errorf("catalog row %s: bad match_confidence %q", serviceType, conf)
			}
			m.MatchConfidence = v
		}
		if band := normalizeTrim(getFieldAny(rec, index, "value_band", "value range", "value_range")); band != "" {
			m.ValueBand = &band
		}
		out = append(out, m)
		return nil
	})
	return out, errs
}

// forEachCSVRow reads a multipart CSV and calls fn per data row. A failing
// row is recorded and skipped; parsing always continues.
func forEachCSVRow(file *multipart.FileHeader, fn func(rec []string, index map[string]int) error) []string {
	f, err := file.Open()
	if err != nil {
		return []string{err.Error()}
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true
	headers, err := reader.Read()
	if err != nil {
		return []string{"failed to read header"}
	}
	index := headerIndex(headers)

	var errs []string
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			errs = append(errs, err.Error())
			continue
		}
		if err := fn(rec, index); err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

func headerIndex(headers []string) map[string]int {
	index := make(map[string]int, len(headers))
	for i, head := range headers {
		index[strings.ToLower(strings.TrimSpace(head))] = i
	}
	return index
}

func getFieldAny(rec []string, index map[string]int, names ...string) string {
	for _, name := range names {
		if i, ok := index[name]; ok && i < len(rec) {
			return rec[i]
		}
	}
	return ""
}

func normalizeTrim(s string) string {
	return strings.TrimSpace(s)
}

var dateLayouts = []string{"2006-01-02", time.RFC3339, "01/02/2006", "2006/01/02"}

func parseDatePtr(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "n/a") {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unparseable date %q", raw)
}
