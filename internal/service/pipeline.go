package service

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/installsight/backend/internal/config"
	"github.com/installsight/backend/internal/db"
	"github.com/installsight/backend/internal/models"
)

// PipelineService runs the lead pipeline end to end: generate, enrich with
// recommended SKUs, score. Stages run sequentially; each stage commits in a
// single transaction so a failed run never leaves a half-written stage.
type PipelineService struct {
	Store  *db.Store
	Logger zerolog.Logger
	Config config.Config
}

type RunSummary struct {
	Events []map[string]any `json:"events"`
	Counts map[string]any   `json:"counts"`
}

func (s *PipelineService) Run(ctx context.Context) (RunSummary, error) {
	summary := RunSummary{Counts: map[string]any{}}
	start := time.Now()

	generated, genResult, err := s.GenerateAllLeads(ctx)
	if err != nil {
		return summary, err
	}
	summary.Events = append(summary.Events, map[string]any{
		"type":               "lead_generation",
		"message":            "Lead generation complete",
		"created":            generated,
		"skipped_existing":   genResult.SkippedExisting,
		"skipped_no_account": genResult.SkippedNoAccount,
		"time":               time.Now().UTC(),
	})

	scored, bands, err := s.ScoreAllLeads(ctx)
	if err != nil {
		return summary, err
	}
	summary.Events = append(summary.Events, map[string]any{
		"type":    "lead_scoring",
		"message": "Lead scoring complete",
		"scored":  scored,
		"bands":   bands,
		"time":    time.Now().UTC(),
	})

	summary.Events = append(summary.Events, map[string]any{
		"type":       "db_save",
		"message":    "Pipeline saved",
		"elapsed_ms": time.Since(start).Milliseconds(),
		"time":       time.Now().UTC(),
	})

	summary.Counts["leads_created"] = generated
	summary.Counts["leads_scored"] = scored
	summary.Counts["skipped_existing"] = genResult.SkippedExisting
	summary.Counts["skipped_no_account"] = genResult.SkippedNoAccount
	summary.Counts["priority_bands"] = bands
	return summary, nil
}

// GenerateAllLeads scans the install base, emits deduplicated leads and
// attaches recommended SKUs, committing all inserts in one transaction.
func (s *PipelineService) GenerateAllLeads(ctx context.Context) (int, GenerationResult, error) {
	now := time.Now().UTC()

	items, err := s.Store.ListInstallBase(ctx)
	if err != nil {
		return 0, GenerationResult{}, err
	}
	contexts, err := s.loadAccountContexts(ctx, items)
	if err != nil {
		return 0, GenerationResult{}, err
	}
	existing, err := s.Store.ActiveLeadKeys(ctx)
	if err != nil {
		return 0, GenerationResult{}, err
	}
	catalog, err := s.Store.ListServiceCatalog(ctx)
	if err != nil {
		return 0, GenerationResult{}, err
	}

	result := GenerateLeads(items, contexts, existing, s.Config.RefreshCriticalDays, now)
	if result.SkippedNoAccount > 0 {
		s.Logger.Warn().Int("count", result.SkippedNoAccount).Msg("install base items skipped: unknown account")
	}

	recommender := NewRecommender(catalog)
	itemsBySerial := indexItems(items, now)
	for i := range result.Leads {
		result.Leads[i].RecommendedSKUs = recommendedSKUs(recommender, itemsBySerial[result.Leads[i].InstallBaseSerial], now)
	}

	err = s.Store.WithTx(ctx, func(tx pgx.Tx) error {
		for _, lead := range result.Leads {
			if err := s.Store.InsertLead(ctx, tx, lead); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, result, err
	}
	return len(result.Leads), result, nil
}

// ScoreAllLeads rescores every active lead; fully idempotent.
func (s *PipelineService) ScoreAllLeads(ctx context.Context) (int, map[string]int, error) {
	now := time.Now().UTC()

	leads, err := s.Store.ListActiveLeads(ctx)
	if err != nil {
		return 0, nil, err
	}
	items, err := s.Store.ListInstallBase(ctx)
	if err != nil {
		return 0, nil, err
	}
	contexts, err := s.loadAccountContexts(ctx, items)
	if err != nil {
		return 0, nil, err
	}
	itemsBySerial := indexItems(items, now)

	bands := map[string]int{}
	err = s.Store.WithTx(ctx, func(tx pgx.Tx) error {
		for _, lead := range leads {
			res := Score(ScoringInput{
				Lead:    lead,
				Item:    itemsBySerial[lead.InstallBaseSerial],
				Context: contexts[lead.AccountID],
			})
			lead.UrgencyScore = res.Urgency
			lead.ValueScore = res.Value
			lead.PropensityScore = res.Propensity
			lead.StrategicFitScore = res.StrategicFit
			lead.Score = res.Overall
			lead.Priority = res.Priority
			if err := s.Store.UpdateLeadScores(ctx, tx, lead); err != nil {
				return err
			}
			bands[string(res.Priority)]++
		}
		return nil
	})
	if err != nil {
		return 0, nil, err
	}
	return len(leads), bands, nil
}

func (s *PipelineService) loadAccountContexts(ctx context.Context, items []models.InstallBaseItem) (map[string]AccountContext, error) {
	accounts, err := s.Store.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	engagements, err := s.Store.ListEngagements(ctx)
	if err != nil {
		return nil, err
	}
	return BuildAccountContexts(accounts, items, engagements), nil
}

// BuildAccountContexts aggregates per-account stats the generator and
// scorer read from. Accounts sharing a normalized name are one entity:
// install-base counts and engagement history merge across all of the
// entity's rows, so a company ingested under two name variants scores
// like the single customer it is.
func BuildAccountContexts(accounts []models.Account, items []models.InstallBaseItem, engagements []models.HistoricalEngagement) map[string]AccountContext {
	identityOf := make(map[string]string, len(accounts))
	for _, a := range accounts {
		identity := a.NormalizedName
		if identity == "" {
			identity = a.ID
		}
		identityOf[a.ID] = identity
	}

	engagementsByIdentity := map[string][]models.HistoricalEngagement{}
	for _, e := range engagements {
		identity, ok := identityOf[e.AccountID]
		if !ok {
			continue
		}
		engagementsByIdentity[identity] = append(engagementsByIdentity[identity], e)
	}
	itemCounts := map[string]int{}
	for _, it := range items {
		if identity, ok := identityOf[it.AccountID]; ok {
			itemCounts[identity]++
		}
	}

	out := make(map[string]AccountContext, len(accounts))
	for _, a := range accounts {
		identity := identityOf[a.ID]
		entityEngagements := engagementsByIdentity[identity]
		open, closed := 0, 0
		for _, e := range entityEngagements {
			if engagementOpen(e.Status) {
				open++
			} else if engagementClosed(e.Status) {
				closed++
			}
		}
		out[a.ID] = AccountContext{
			Account:               a,
			InstallBaseCount:      itemCounts[identity],
			EngagementCount:       len(entityEngagements),
			OpenOpportunities:     open,
			ClosedEngagements:     closed,
			TypicalEngagementSize: ModeSizeCategory(entityEngagements),
		}
	}
	return out
}

func engagementOpen(status string) bool {
	s := strings.ToLower(status)
	return strings.Contains(s, "open") || strings.Contains(s, "active") || strings.Contains(s, "in progress")
}

func engagementClosed(status string) bool {
	s := strings.ToLower(status)
	return strings.Contains(s, "closed") || strings.Contains(s, "complete") || strings.Contains(s, "won") || strings.Contains(s, "delivered")
}

func indexItems(items []models.InstallBaseItem, now time.Time) map[string]models.InstallBaseItem {
	out := make(map[string]models.InstallBaseItem, len(items))
	for _, it := range items {
		out[it.Serial] = RefreshDerived(it, now)
	}
	return out
}

func recommendedSKUs(r *Recommender, item models.InstallBaseItem, now time.Time) string {
	if item.Serial == "" {
		return ""
	}
	var daysToEOL *int
	if item.EOLDate != nil {
		d := int(item.EOLDate.Sub(now).Hours() / 24)
		daysToEOL = &d
	}
	recs := r.Recommend(RecommendRequest{
		ProductName:   item.ProductName,
		Platform:      item.Platform,
		SupportStatus: item.SupportStatus,
		DaysToEOL:     daysToEOL,
		TopN:          3,
	})
	var skus []string
	for _, rec := range recs {
		if rec.SKUCode != "" {
			skus = append(skus, rec.SKUCode)
		}
	}
	return strings.Join(skus, ",")
}
