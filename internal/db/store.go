package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/installsight/backend/internal/models"
)

type Store struct {
	Pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{Pool: pool}, nil
}

func (s *Store) Close() {
	s.Pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.Pool.Ping(ctx)
}

func (s *Store) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// --- bulk inserts (import path) ---

func (s *Store) InsertAccounts(ctx context.Context, accounts []models.Account) (int64, error) {
	rows := make([][]any, 0, len(accounts))
	for _, a := range accounts {
		rows = append(rows, []any{a.ID, a.Name, a.NormalizedName, a.TerritoryID, a.CreatedAt})
	}
	return s.Pool.CopyFrom(ctx, pgx.Identifier{"accounts"},
		[]string{"id", "name", "normalized_name", "territory_id", "created_at"},
		pgx.CopyFromRows(rows))
}

func (s *Store) InsertInstallBase(ctx context.Context, items []models.InstallBaseItem) (int64, error) {
	rows := make([][]any, 0, len(items))
	for _, it := range items {
		rows = append(rows, []any{
			it.Serial, it.ProductName, it.ProductFamily, it.Platform, it.BusinessArea,
			it.EOLDate, it.EOSDate, it.SupportStatus, it.SupportEndDate,
			it.AccountID, it.TerritoryID,
		})
	}
	return s.Pool.CopyFrom(ctx, pgx.Identifier{"install_base"},
		[]string{"serial", "product_name", "product_family", "platform", "business_area",
			"eol_date", "eos_date", "support_status", "support_end_date",
			"account_id", "territory_id"},
		pgx.CopyFromRows(rows))
}

func (s *Store) InsertEngagements(ctx context.Context, engagements []models.HistoricalEngagement) (int64, error) {
	rows := make([][]any, 0, len(engagements))
	for _, e := range engagements {
		rows = append(rows, []any{e.ID, e.AccountID, e.Practice, e.Description, e.SizeCategory, e.Status, e.StartDate, e.EndDate})
	}
	return s.Pool.CopyFrom(ctx, pgx.Identifier{"engagements"},
		[]string{"id", "account_id", "practice", "description", "size_category", "status", "start_date", "end_date"},
		pgx.CopyFromRows(rows))
}

func (s *Store) InsertServiceCatalog(ctx context.Context, mappings []models.ServiceSKUMapping) (int64, error) {
	rows := make([][]any, 0, len(mappings))
	for _, m := range mappings {
		rows = append(rows, []any{m.ID, m.ProductFamily, m.ProductDescription, m.ProductCategory, m.ServiceType, m.SKUCode, m.Priority, m.MatchConfidence, m.ValueBand})
	}
	return s.Pool.CopyFrom(ctx, pgx.Identifier{"service_catalog"},
		[]string{"id", "product_family", "product_description", "product_category", "service_type", "sku_code", "priority", "match_confidence", "value_band"},
		pgx.CopyFromRows(rows))
}

func (s *Store) TruncateInputs(ctx context.Context) error {
	return s.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `TRUNCATE accounts, install_base, engagements, service_catalog, leads, runs RESTART IDENTITY`)
		return err
	})
}

// --- reads ---

func (s *Store) ListAccounts(ctx context.Context) ([]models.Account, error) {
	rows, err := s.Pool.Query(ctx, `SELECT id, name, normalized_name, territory_id, created_at FROM accounts ORDER BY normalized_name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Account
	for rows.Next() {
		var a models.Account
		if err := rows.Scan(&a.ID, &a.Name, &a.NormalizedName, &a.TerritoryID, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) UpdateAccountNormalizedName(ctx context.Context, accountID, normalized string) error {
	_, err := s.Pool.Exec(ctx, `UPDATE accounts SET normalized_name = $1 WHERE id = $2`, normalized, accountID)
	return err
}

func (s *Store) ListInstallBase(ctx context.Context) ([]models.InstallBaseItem, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT serial, product_name, product_family, platform, business_area,
			eol_date, eos_date, support_status, support_end_date, account_id, territory_id
		FROM install_base
		ORDER BY serial ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanInstallBase(rows)
}

func (s *Store) ListInstallBaseByAccount(ctx context.Context, accountID string) ([]models.InstallBaseItem, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT serial, product_name, product_family, platform, business_area,
			eol_date, eos_date, support_status, support_end_date, account_id, territory_id
		FROM install_base
		WHERE account_id = $1
		ORDER BY serial ASC
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanInstallBase(rows)
}

func scanInstallBase(rows pgx.Rows) ([]models.InstallBaseItem, error) {
	var out []models.InstallBaseItem
	for rows.Next() {
		var it models.InstallBaseItem
		if err := rows.Scan(&it.Serial, &it.ProductName, &it.ProductFamily, &it.Platform, &it.BusinessArea,
			&it.EOLDate, &it.EOSDate, &it.SupportStatus, &it.SupportEndDate, &it.AccountID, &it.TerritoryID); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (s *Store) ListEngagements(ctx context.Context) ([]models.HistoricalEngagement, error) {
	return s.listEngagements(ctx, "")
}

func (s *Store) ListEngagementsByAccount(ctx context.Context, accountID string) ([]models.HistoricalEngagement, error) {
	return s.listEngagements(ctx, accountID)
}

func (s *Store) listEngagements(ctx context.Context, accountID string) ([]models.HistoricalEngagement, error) {
	query := `SELECT id, account_id, practice, description, size_category, status, start_date, end_date FROM engagements`
	var args []any
	if accountID != "" {
		query += ` WHERE account_id = $1`
		args = append(args, accountID)
	}
	query += ` ORDER BY start_date ASC NULLS FIRST`

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.HistoricalEngagement
	for rows.Next() {
		var e models.HistoricalEngagement
		if err := rows.Scan(&e.ID, &e.AccountID, &e.Practice, &e.Description, &e.SizeCategory, &e.Status, &e.StartDate, &e.EndDate); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) ListServiceCatalog(ctx context.Context) ([]models.ServiceSKUMapping, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, product_family, product_description, product_category, service_type,
			sku_code, priority, match_confidence, value_band
		FROM service_catalog
		ORDER BY priority ASC NULLS LAST, service_type ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ServiceSKUMapping
	for rows.Next() {
		var m models.ServiceSKUMapping
		if err := rows.Scan(&m.ID, &m.ProductFamily, &m.ProductDescription, &m.ProductCategory, &m.ServiceType,
			&m.SKUCode, &m.Priority, &m.MatchConfidence, &m.ValueBand); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// --- leads ---

const leadColumns = `id, type, priority, urgency_score, value_score, propensity_score, strategic_fit_score, score,
	title, description, recommended_action, recommended_skus, account_id, install_base_id,
	estimated_value, typical_engagement_size, install_base_count, engagement_count, service_credit_balance,
	is_active, status, generated_at`

func scanLead(row pgx.Row) (models.Lead, error) {
	var l models.Lead
	err := row.Scan(&l.ID, &l.Type, &l.Priority, &l.UrgencyScore, &l.ValueScore, &l.PropensityScore, &l.StrategicFitScore, &l.Score,
		&l.Title, &l.Description, &l.RecommendedAction, &l.RecommendedSKUs, &l.AccountID, &l.InstallBaseSerial,
		&l.EstimatedValue, &l.TypicalEngagementSize, &l.InstallBaseCount, &l.EngagementCount, &l.ServiceCreditBalance,
		&l.IsActive, &l.Status, &l.GeneratedAt)
	return l, err
}

// ActiveLeadKeys returns the (install_base_id, type) pairs that already have
// an active lead. The generator checks against this set before inserting.
func (s *Store) ActiveLeadKeys(ctx context.Context) (map[string]bool, error) {
	rows, err := s.Pool.Query(ctx, `SELECT install_base_id, type FROM leads WHERE is_active`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]bool{}
	for rows.Next() {
		var serial, leadType string
		if err := rows.Scan(&serial, &leadType); err != nil {
			return nil, err
		}
		out[serial+"|"+leadType] = true
	}
	return out, rows.Err()
}

func (s *Store) InsertLead(ctx context.Context, tx pgx.Tx, l models.Lead) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO leads (`+leadColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)
	`, l.ID, l.Type, l.Priority, l.UrgencyScore, l.ValueScore, l.PropensityScore, l.StrategicFitScore, l.Score,
		l.Title, l.Description, l.RecommendedAction, l.RecommendedSKUs, l.AccountID, l.InstallBaseSerial,
		l.EstimatedValue, l.TypicalEngagementSize, l.InstallBaseCount, l.EngagementCount, l.ServiceCreditBalance,
		l.IsActive, l.Status, l.GeneratedAt)
	return err
}

func (s *Store) UpdateLeadScores(ctx context.Context, tx pgx.Tx, l models.Lead) error {
	_, err := tx.Exec(ctx, `
		UPDATE leads
		SET urgency_score = $1, value_score = $2, propensity_score = $3, strategic_fit_score = $4,
			score = $5, priority = $6
		WHERE id = $7
	`, l.UrgencyScore, l.ValueScore, l.PropensityScore, l.StrategicFitScore, l.Score, l.Priority, l.ID)
	return err
}

func (s *Store) ListActiveLeads(ctx context.Context) ([]models.Lead, error) {
	rows, err := s.Pool.Query(ctx, `SELECT `+leadColumns+` FROM leads WHERE is_active ORDER BY generated_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *Store) GetLead(ctx context.Context, id string) (models.Lead, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id)
	return scanLead(row)
}

func (s *Store) ListLeads(ctx context.Context, leadType, priority, accountID, q string, activeOnly bool, limit, offset int) ([]models.Lead, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	query := `SELECT ` + leadColumns + ` FROM leads`
	var args []any
	var wheres []string
	if leadType != "" {
		args = append(args, leadType)
		wheres = append(wheres, fmt.Sprintf("type = $%d", len(args)))
	}
	if priority != "" {
		args = append(args, priority)
		wheres = append(wheres, fmt.Sprintf("priority = $%d", len(args)))
	}
	if accountID != "" {
		args = append(args, accountID)
		wheres = append(wheres, fmt.Sprintf("account_id = $%d", len(args)))
	}
	if q != "" {
		args = append(args, "%"+q+"%")
		wheres = append(wheres, fmt.Sprintf("(title ILIKE $%d OR description ILIKE $%d)", len(args), len(args)))
	}
	if activeOnly {
		wheres = append(wheres, "is_active")
	}
	if len(wheres) > 0 {
		query += " WHERE " + strings.Join(wheres, " AND ")
	}
	// id breaks score/timestamp ties so offset paging never skips or repeats rows
	query += " ORDER BY score DESC, generated_at DESC, id ASC LIMIT $" + fmt.Sprint(len(args)+1) + " OFFSET $" + fmt.Sprint(len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// CloseLead soft-deletes: the row stays, is_active flips off.
func (s *Store) CloseLead(ctx context.Context, id, status string) error {
	tag, err := s.Pool.Exec(ctx, `UPDATE leads SET is_active = FALSE, status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// --- runs ---

func (s *Store) CreateRun(ctx context.Context, status string) (string, error) {
	var id string
	err := s.Pool.QueryRow(ctx, `INSERT INTO runs (status, started_at) VALUES ($1, NOW()) RETURNING id`, status).Scan(&id)
	return id, err
}

func (s *Store) FinishRun(ctx context.Context, runID string, status string, summary []byte) error {
	_, err := s.Pool.Exec(ctx, `UPDATE runs SET status = $1, summary = $2, finished_at = NOW() WHERE id = $3`, status, summary, runID)
	return err
}

func (s *Store) GetLatestRun(ctx context.Context) (models.Run, error) {
	row := s.Pool.QueryRow(ctx, `SELECT id, started_at, finished_at, status, summary FROM runs ORDER BY started_at DESC LIMIT 1`)
	var r models.Run
	var summary []byte
	if err := row.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Status, &summary); err != nil {
		return models.Run{}, err
	}
	r.Summary = summary
	return r, nil
}
