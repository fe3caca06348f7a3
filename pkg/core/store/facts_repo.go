package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sort"
	"strings"

	"xbrl_lookup/pkg/models"
)

// =============================================================================
// WRITES
// =============================================================================

const upsertCompanySQL = `
INSERT INTO companies (cik, name, updated_at)
VALUES (?, ?, ?)
ON CONFLICT (cik) DO UPDATE SET
	name = excluded.name,
	updated_at = excluded.updated_at`

const upsertFactSQL = `
INSERT INTO financial_facts (
	cik, tag, label, description, value, unit, period_end, period_start,
	form_type, filed_date, fiscal_year, accession_number, sec_url, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (cik, tag, period_end, form_type, accession_number) DO UPDATE SET
	label = excluded.label,
	description = excluded.description,
	value = excluded.value,
	unit = excluded.unit,
	period_start = excluded.period_start,
	filed_date = excluded.filed_date,
	fiscal_year = excluded.fiscal_year,
	sec_url = excluded.sec_url,
	updated_at = excluded.updated_at`

const upsertFilingSQL = `
INSERT INTO filings (accession_number, cik, form_type, filing_date, period_end_date, fiscal_year, fact_count)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (accession_number) DO UPDATE SET
	cik = excluded.cik,
	form_type = excluded.form_type,
	filing_date = excluded.filing_date,
	period_end_date = excluded.period_end_date,
	fiscal_year = excluded.fiscal_year,
	fact_count = excluded.fact_count`

// UpsertFacts writes a batch of facts in one transaction and returns how many
// were written. Companies are created or refreshed before their facts, and the
// filings touched by the batch are recomputed from the stored facts. Any error
// rolls back the whole batch.
func (s *Store) UpsertFacts(ctx context.Context, facts []models.Fact) (int, error) {
	if len(facts) == 0 {
		return 0, nil
	}

	byCompany := make(map[string][]models.Fact)
	var order []string
	for _, f := range facts {
		if f.CompanyKey == "" {
			return 0, fmt.Errorf("fact %s has no company key", f.Tag)
		}
		if _, ok := byCompany[f.CompanyKey]; !ok {
			order = append(order, f.CompanyKey)
		}
		byCompany[f.CompanyKey] = append(byCompany[f.CompanyKey], f)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	companyStmt, err := tx.PrepareContext(ctx, s.rebind(upsertCompanySQL))
	if err != nil {
		return 0, fmt.Errorf("failed to prepare company upsert: %w", err)
	}
	defer companyStmt.Close()

	factStmt, err := tx.PrepareContext(ctx, s.rebind(upsertFactSQL))
	if err != nil {
		return 0, fmt.Errorf("failed to prepare fact upsert: %w", err)
	}
	defer factStmt.Close()

	now := s.now()
	written := 0
	accessions := make(map[string]struct{})

	for _, key := range order {
		group := byCompany[key]
		if _, err := companyStmt.ExecContext(ctx, key, companyName(group), now); err != nil {
			return 0, fmt.Errorf("failed to upsert company %s: %w", key, err)
		}

		for _, f := range group {
			_, err := factStmt.ExecContext(ctx,
				f.CompanyKey, string(f.Tag), f.Label, nullString(f.Description), f.Value, f.Unit,
				f.PeriodEnd, nullString(f.PeriodStart), f.FormType, f.FiledDate,
				nullInt(models.FiscalYearOf(f.PeriodEnd)), f.Accession, f.SourceURL, now,
			)
			if err != nil {
				return 0, fmt.Errorf("failed to upsert fact %s %s %s: %w", key, f.Tag, f.PeriodEnd, err)
			}
			accessions[f.Accession] = struct{}{}
			written++
		}
	}

	if err := s.refreshFilings(ctx, tx, accessions); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit facts: %w", err)
	}

	log.Printf("[STORE] Upserted %d facts for %d companies (%d filings)", written, len(order), len(accessions))
	return written, nil
}

// refreshFilings recomputes the filings rows of the given accessions from the stored facts.
func (s *Store) refreshFilings(ctx context.Context, tx *sql.Tx, accessions map[string]struct{}) error {
	if len(accessions) == 0 {
		return nil
	}
	keys := make([]string, 0, len(accessions))
	for a := range accessions {
		keys = append(keys, a)
	}
	sort.Strings(keys)

	type filingRow struct {
		accession, cik, form, filed, periodEnd string
		count                                  int
	}
	var rows []filingRow

	// Chunked to stay under driver parameter limits
	const chunk = 500
	for start := 0; start < len(keys); start += chunk {
		end := start + chunk
		if end > len(keys) {
			end = len(keys)
		}
		part := keys[start:end]
		args := make([]any, len(part))
		for i, k := range part {
			args[i] = k
		}

		query := s.rebind(`
			SELECT accession_number, MIN(cik), MIN(form_type), MAX(filed_date), MAX(period_end), COUNT(*)
			FROM financial_facts
			WHERE accession_number IN (` + placeholders(len(part)) + `)
			GROUP BY accession_number`)
		r, err := tx.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to aggregate filings: %w", err)
		}
		for r.Next() {
			var row filingRow
			if err := r.Scan(&row.accession, &row.cik, &row.form, &row.filed, &row.periodEnd, &row.count); err != nil {
				r.Close()
				return fmt.Errorf("failed to scan filing aggregate: %w", err)
			}
			rows = append(rows, row)
		}
		if err := r.Err(); err != nil {
			r.Close()
			return fmt.Errorf("failed to read filing aggregates: %w", err)
		}
		r.Close()
	}

	stmt, err := tx.PrepareContext(ctx, s.rebind(upsertFilingSQL))
	if err != nil {
		return fmt.Errorf("failed to prepare filing upsert: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		_, err := stmt.ExecContext(ctx, row.accession, row.cik, row.form, row.filed, row.periodEnd,
			nullInt(models.FiscalYearOf(row.periodEnd)), row.count)
		if err != nil {
			return fmt.Errorf("failed to upsert filing %s: %w", row.accession, err)
		}
	}
	return nil
}

// SetCompanyProfile attaches a ticker and industry to an existing company.
// Empty values leave the stored ones unchanged.
func (s *Store) SetCompanyProfile(ctx context.Context, cik, ticker, industry string) error {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	res, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE companies SET
			ticker = COALESCE(?, ticker),
			industry = COALESCE(?, industry),
			updated_at = ?
		WHERE cik = ?`),
		nullString(ticker), nullString(industry), s.now(), cik)
	if err != nil {
		return fmt.Errorf("failed to update company %s: %w", cik, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("company %s not found", cik)
	}
	return nil
}

// Company returns one stored company.
func (s *Store) Company(ctx context.Context, cik string) (*models.Company, error) {
	var (
		c                models.Company
		ticker, industry sql.NullString
		updated          string
	)
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT cik, name, ticker, industry, updated_at FROM companies WHERE cik = ?`), cik).
		Scan(&c.Key, &c.Name, &ticker, &industry, &updated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load company %s: %w", cik, err)
	}
	c.Ticker = ticker.String
	c.Industry = industry.String
	c.UpdatedAt = parseTime(updated)
	return &c, nil
}

// companyName picks the first non-empty display name of a group.
func companyName(group []models.Fact) string {
	for _, f := range group {
		if strings.TrimSpace(f.CompanyName) != "" {
			return f.CompanyName
		}
	}
	return group[0].CompanyKey
}
