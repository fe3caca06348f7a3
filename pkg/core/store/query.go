package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"xbrl_lookup/pkg/core/concept"
	"xbrl_lookup/pkg/models"
)

// =============================================================================
// READS
// =============================================================================

const factColumns = `f.cik, c.name, c.ticker, f.tag, f.label, f.description, f.value, f.unit,
	f.period_end, f.period_start, f.form_type, f.filed_date, f.fiscal_year, f.accession_number, f.sec_url`

type rowScanner interface {
	Scan(dest ...any) error
}

// scanFact scans factColumns, optionally followed by extra destinations.
func scanFact(r rowScanner, extra ...any) (models.ScoredFact, error) {
	var (
		sf                        models.ScoredFact
		tag                       string
		ticker, desc, periodStart sql.NullString
		fiscalYear                sql.NullInt64
	)
	dest := []any{
		&sf.CompanyKey, &sf.CompanyName, &ticker, &tag, &sf.Label, &desc, &sf.Value, &sf.Unit,
		&sf.PeriodEnd, &periodStart, &sf.FormType, &sf.FiledDate, &fiscalYear, &sf.Accession, &sf.SourceURL,
	}
	if err := r.Scan(append(dest, extra...)...); err != nil {
		return sf, err
	}
	sf.Tag = concept.Tag(tag)
	sf.Ticker = ticker.String
	sf.Description = desc.String
	sf.PeriodStart = periodStart.String
	sf.FiscalYear = intPtr(fiscalYear)
	return sf, nil
}

// likePattern builds a case-insensitive substring pattern escaped with '!'.
func likePattern(q string) string {
	r := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
	return "%" + r.Replace(strings.ToLower(q)) + "%"
}

// matchClause is the search predicate: substring on label, tag, description or
// company name, or a tag whose dictionary aliases match.
func matchClause(term string, aliasTags []concept.Tag) (string, []any) {
	p := likePattern(term)
	clause := `(LOWER(f.label) LIKE ? ESCAPE '!'
		OR LOWER(f.tag) LIKE ? ESCAPE '!'
		OR LOWER(COALESCE(f.description, '')) LIKE ? ESCAPE '!'
		OR LOWER(c.name) LIKE ? ESCAPE '!'`
	args := []any{p, p, p, p}
	if len(aliasTags) > 0 {
		clause += ` OR f.tag IN (` + placeholders(len(aliasTags)) + `)`
		for _, t := range aliasTags {
			args = append(args, string(t))
		}
	}
	return clause + ")", args
}

// Search scores matching facts in SQL and returns the best limit rows.
// Scores: exact label 100, label substring 80, tag 60, description 40, other 20.
func (s *Store) Search(ctx context.Context, q string, limit int) ([]models.ScoredFact, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}

	where, whereArgs := matchClause(q, concept.MatchAlias(q))
	p := likePattern(q)
	query := `
		SELECT ` + factColumns + `,
			CASE
				WHEN LOWER(f.label) = ? THEN 100
				WHEN LOWER(f.label) LIKE ? ESCAPE '!' THEN 80
				WHEN LOWER(f.tag) LIKE ? ESCAPE '!' THEN 60
				WHEN LOWER(COALESCE(f.description, '')) LIKE ? ESCAPE '!' THEN 40
				ELSE 20
			END AS score
		FROM financial_facts f
		JOIN companies c ON c.cik = f.cik
		WHERE ` + where + `
		ORDER BY score DESC, COALESCE(f.fiscal_year, 0) DESC, c.name ASC, f.tag ASC, f.period_end DESC
		LIMIT ?`

	args := []any{strings.ToLower(q), p, p, p}
	args = append(args, whereArgs...)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("search query failed: %w", err)
	}
	defer rows.Close()

	var out []models.ScoredFact
	for rows.Next() {
		var score int
		sf, err := scanFact(rows, &score)
		if err != nil {
			return nil, fmt.Errorf("failed to scan search row: %w", err)
		}
		sf.Score = score
		out = append(out, sf)
	}
	return out, rows.Err()
}

// MatchFacts returns every fact matching term (or carrying one of aliasTags),
// unscored and unordered.
func (s *Store) MatchFacts(ctx context.Context, term string, aliasTags []concept.Tag) ([]models.ScoredFact, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, nil
	}
	where, args := matchClause(term, aliasTags)
	query := `SELECT ` + factColumns + `
		FROM financial_facts f
		JOIN companies c ON c.cik = f.cik
		WHERE ` + where

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("match query failed: %w", err)
	}
	defer rows.Close()

	var out []models.ScoredFact
	for rows.Next() {
		sf, err := scanFact(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", err)
		}
		out = append(out, sf)
	}
	return out, rows.Err()
}

// TrendQuery selects a trend series.
type TrendQuery struct {
	Tag       concept.Tag
	Companies []string // tickers or CIKs; empty means all companies
	FormTypes []string // empty means 10-K only
	Periods   int      // most recent fiscal years per company; <= 0 means all
}

// Trend returns one row per (company, fiscal year) with the value averaged over
// duplicate entries, ordered by fiscal year then company name.
func (s *Store) Trend(ctx context.Context, tq TrendQuery) ([]models.TrendPoint, error) {
	if tq.Tag == "" {
		return nil, fmt.Errorf("trend requires a tag")
	}
	forms := tq.FormTypes
	if len(forms) == 0 {
		forms = []string{models.FormAnnual}
	}

	where := []string{"f.tag = ?", "f.fiscal_year IS NOT NULL", "f.form_type IN (" + placeholders(len(forms)) + ")"}
	args := []any{string(tq.Tag)}
	for _, f := range forms {
		args = append(args, f)
	}

	if len(tq.Companies) > 0 {
		tickers := make([]any, 0, len(tq.Companies))
		ciks := make([]any, 0, len(tq.Companies))
		for _, c := range tq.Companies {
			c = strings.TrimSpace(c)
			tickers = append(tickers, strings.ToUpper(c))
			ciks = append(ciks, models.PadCIK(c))
		}
		where = append(where, "(UPPER(COALESCE(c.ticker, '')) IN ("+placeholders(len(tickers))+") OR f.cik IN ("+placeholders(len(ciks))+"))")
		args = append(args, tickers...)
		args = append(args, ciks...)
	}

	query := `
		WITH grouped AS (
			SELECT f.cik, c.name AS company_name, c.ticker, f.fiscal_year,
				MIN(f.label) AS label, MIN(f.unit) AS unit, AVG(f.value) AS avg_value
			FROM financial_facts f
			JOIN companies c ON c.cik = f.cik
			WHERE ` + strings.Join(where, " AND ") + `
			GROUP BY f.cik, c.name, c.ticker, f.fiscal_year
		), ranked AS (
			SELECT cik, company_name, ticker, fiscal_year, label, unit, avg_value,
				ROW_NUMBER() OVER (PARTITION BY cik ORDER BY fiscal_year DESC) AS rn
			FROM grouped
		)
		SELECT cik, company_name, ticker, fiscal_year, label, unit, avg_value
		FROM ranked`
	if tq.Periods > 0 {
		query += ` WHERE rn <= ?`
		args = append(args, tq.Periods)
	}
	query += ` ORDER BY fiscal_year ASC, company_name ASC`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("trend query failed: %w", err)
	}
	defer rows.Close()

	var out []models.TrendPoint
	for rows.Next() {
		var (
			p      models.TrendPoint
			ticker sql.NullString
		)
		if err := rows.Scan(&p.CompanyKey, &p.CompanyName, &ticker, &p.FiscalYear, &p.Label, &p.Unit, &p.Value); err != nil {
			return nil, fmt.Errorf("failed to scan trend row: %w", err)
		}
		p.Tag = tq.Tag
		p.Ticker = ticker.String
		out = append(out, p)
	}
	return out, rows.Err()
}

// CompanyOverviews reads the company_overview view, ordered by name.
func (s *Store) CompanyOverviews(ctx context.Context) ([]models.CompanyOverview, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT cik, name, ticker, industry, updated_at, total_filings, latest_filing_date, unique_metrics, latest_fiscal_year
		FROM company_overview
		ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("company overview query failed: %w", err)
	}
	defer rows.Close()

	var out []models.CompanyOverview
	for rows.Next() {
		var (
			o                              models.CompanyOverview
			ticker, industry, latestFiling sql.NullString
			updated                        string
			latestYear                     sql.NullInt64
		)
		if err := rows.Scan(&o.Key, &o.Name, &ticker, &industry, &updated, &o.TotalFilings,
			&latestFiling, &o.UniqueMetrics, &latestYear); err != nil {
			return nil, fmt.Errorf("failed to scan company overview: %w", err)
		}
		o.Ticker = ticker.String
		o.Industry = industry.String
		o.UpdatedAt = parseTime(updated)
		o.LatestFilingDate = latestFiling.String
		o.LatestFiscalYear = intPtr(latestYear)
		out = append(out, o)
	}
	return out, rows.Err()
}

// QuarterlyTrend returns the most recent 10-Q facts of a company and tag, newest first.
func (s *Store) QuarterlyTrend(ctx context.Context, cik string, tag concept.Tag, periods int) ([]models.QuarterlyPoint, error) {
	query := `
		SELECT cik, company_name, ticker, tag, label, NULL, value, unit, period_end, period_start,
			'10-Q', filed_date, fiscal_year, accession_number, sec_url, period_rank
		FROM quarterly_trends f
		WHERE cik = ? AND tag = ?`
	args := []any{models.PadCIK(cik), string(tag)}
	if periods > 0 {
		query += ` AND period_rank <= ?`
		args = append(args, periods)
	}
	query += ` ORDER BY period_rank`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("quarterly trend query failed: %w", err)
	}
	defer rows.Close()

	var out []models.QuarterlyPoint
	for rows.Next() {
		var rank int
		sf, err := scanFact(rows, &rank)
		if err != nil {
			return nil, fmt.Errorf("failed to scan quarterly row: %w", err)
		}
		out = append(out, models.QuarterlyPoint{Fact: sf.Fact, PeriodRank: rank})
	}
	return out, rows.Err()
}

// LatestAnnualMetrics returns the latest 10-K fact per tag of a company, ordered by tag.
func (s *Store) LatestAnnualMetrics(ctx context.Context, cik string) ([]models.Fact, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT cik, company_name, ticker, tag, label, description, value, unit, period_end, period_start,
			'10-K', filed_date, fiscal_year, accession_number, sec_url
		FROM latest_annual_metrics
		WHERE cik = ?
		ORDER BY tag`), models.PadCIK(cik))
	if err != nil {
		return nil, fmt.Errorf("latest annual metrics query failed: %w", err)
	}
	defer rows.Close()

	var out []models.Fact
	for rows.Next() {
		sf, err := scanFact(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan latest annual row: %w", err)
		}
		out = append(out, sf.Fact)
	}
	return out, rows.Err()
}

// Filings returns the filings of a company, newest first.
func (s *Store) Filings(ctx context.Context, cik string) ([]models.Filing, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT accession_number, cik, form_type, filing_date, period_end_date, fiscal_year, fact_count
		FROM filings
		WHERE cik = ?
		ORDER BY filing_date DESC, accession_number DESC`), models.PadCIK(cik))
	if err != nil {
		return nil, fmt.Errorf("filings query failed: %w", err)
	}
	defer rows.Close()

	var out []models.Filing
	for rows.Next() {
		var (
			f  models.Filing
			fy sql.NullInt64
		)
		if err := rows.Scan(&f.Accession, &f.CompanyKey, &f.FormType, &f.FilingDate, &f.PeriodEnd, &fy, &f.FactCount); err != nil {
			return nil, fmt.Errorf("failed to scan filing: %w", err)
		}
		f.FiscalYear = intPtr(fy)
		out = append(out, f)
	}
	return out, rows.Err()
}

// LegacyLineItems reads the financial_line_items compatibility view.
// An empty cik selects all companies.
func (s *Store) LegacyLineItems(ctx context.Context, cik string, limit int) ([]models.LineItem, error) {
	query := `
		SELECT company_name, ticker_symbol, cik, line_item_label, xbrl_tag, value, filing_date,
			period_end_date, form_type, accession_number, sec_url, filing_year
		FROM financial_line_items`
	var args []any
	if cik != "" {
		query += ` WHERE cik = ?`
		args = append(args, models.PadCIK(cik))
	}
	query += ` ORDER BY filing_date DESC, line_item_label ASC, xbrl_tag ASC, period_end_date DESC, accession_number ASC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("line items query failed: %w", err)
	}
	defer rows.Close()

	var out []models.LineItem
	for rows.Next() {
		var (
			li     models.LineItem
			ticker sql.NullString
			year   sql.NullInt64
		)
		if err := rows.Scan(&li.CompanyName, &ticker, &li.CIK, &li.LineItemLabel, &li.XBRLTag, &li.Value,
			&li.FilingDate, &li.PeriodEndDate, &li.FormType, &li.Accession, &li.SECURL, &year); err != nil {
			return nil, fmt.Errorf("failed to scan line item: %w", err)
		}
		li.Ticker = ticker.String
		li.FilingYear = intPtr(year)
		out = append(out, li)
	}
	return out, rows.Err()
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
