package store

import (
	"context"
	"database/sql"
	"fmt"

	"xbrl_lookup/pkg/core/concept"
	"xbrl_lookup/pkg/models"
)

// Summary reports the contents of the store.
func (s *Store) Summary(ctx context.Context, topN int) (*models.Summary, error) {
	sum := &models.Summary{FormTypes: make(map[string]int)}

	var (
		minYear, maxYear sql.NullInt64
		lastUpdated      sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM companies),
			COUNT(*),
			COUNT(DISTINCT tag),
			COUNT(DISTINCT accession_number),
			MIN(fiscal_year),
			MAX(fiscal_year),
			MAX(updated_at)
		FROM financial_facts`).
		Scan(&sum.TotalCompanies, &sum.TotalFacts, &sum.UniqueTags, &sum.TotalFilings, &minYear, &maxYear, &lastUpdated)
	if err != nil {
		return nil, fmt.Errorf("summary query failed: %w", err)
	}
	sum.MinFiscalYear = intPtr(minYear)
	sum.MaxFiscalYear = intPtr(maxYear)
	sum.LastUpdated = lastUpdated.String

	rows, err := s.db.QueryContext(ctx, `
		SELECT form_type, COUNT(*) FROM financial_facts GROUP BY form_type ORDER BY form_type`)
	if err != nil {
		return nil, fmt.Errorf("form type breakdown failed: %w", err)
	}
	for rows.Next() {
		var (
			form  string
			count int
		)
		if err := rows.Scan(&form, &count); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan form type count: %w", err)
		}
		sum.FormTypes[form] = count
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if topN <= 0 {
		topN = 5
	}
	rows, err = s.db.QueryContext(ctx, s.rebind(`
		SELECT c.name, c.ticker, COUNT(f.id) AS fact_count
		FROM companies c
		LEFT JOIN financial_facts f ON f.cik = c.cik
		GROUP BY c.cik, c.name, c.ticker
		ORDER BY fact_count DESC, c.name ASC
		LIMIT ?`), topN)
	if err != nil {
		return nil, fmt.Errorf("top companies query failed: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			cf     models.CompanyFactCount
			ticker sql.NullString
		)
		if err := rows.Scan(&cf.Name, &ticker, &cf.FactCount); err != nil {
			return nil, fmt.Errorf("failed to scan top company: %w", err)
		}
		cf.Ticker = ticker.String
		sum.TopCompanies = append(sum.TopCompanies, cf)
	}
	return sum, rows.Err()
}

var ratioTags = []concept.Tag{
	concept.Revenues,
	concept.RevenueFromContractWithCustomer,
	concept.SalesRevenueNet,
	concept.NetIncomeLoss,
	concept.GrossProfit,
	concept.Assets,
	concept.AssetsCurrent,
	concept.Liabilities,
	concept.LiabilitiesCurrent,
	concept.StockholdersEquity,
	concept.CashAndCashEquivalents,
}

// FinancialRatios derives ratios from a company's 10-K facts of one fiscal year.
// fiscalYear 0 selects the latest year with 10-K data. It returns nil when the
// company has no 10-K facts for that year.
func (s *Store) FinancialRatios(ctx context.Context, cik string, fiscalYear int) (*models.Ratios, error) {
	cik = models.PadCIK(cik)

	if fiscalYear == 0 {
		var latest sql.NullInt64
		err := s.db.QueryRowContext(ctx, s.rebind(`
			SELECT MAX(fiscal_year) FROM financial_facts WHERE cik = ? AND form_type = '10-K'`), cik).Scan(&latest)
		if err != nil {
			return nil, fmt.Errorf("failed to find latest fiscal year for %s: %w", cik, err)
		}
		if !latest.Valid {
			return nil, nil
		}
		fiscalYear = int(latest.Int64)
	}

	args := []any{cik, fiscalYear}
	for _, t := range ratioTags {
		args = append(args, string(t))
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT f.tag, f.value, c.name
		FROM financial_facts f
		JOIN companies c ON c.cik = f.cik
		WHERE f.cik = ? AND f.fiscal_year = ? AND f.form_type = '10-K'
			AND f.tag IN (`+placeholders(len(ratioTags))+`)
		ORDER BY f.filed_date ASC, f.id ASC`), args...)
	if err != nil {
		return nil, fmt.Errorf("ratio metrics query failed: %w", err)
	}
	defer rows.Close()

	// Later filings overwrite earlier ones
	metrics := make(map[concept.Tag]float64)
	var name string
	for rows.Next() {
		var (
			tag   string
			value float64
		)
		if err := rows.Scan(&tag, &value, &name); err != nil {
			return nil, fmt.Errorf("failed to scan ratio metric: %w", err)
		}
		metrics[concept.Tag(tag)] = value
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(metrics) == 0 {
		return nil, nil
	}

	return ComputeRatios(cik, name, fiscalYear, metrics), nil
}

// ComputeRatios derives ratios from a tag -> value map. Margins, returns and
// debt-to-assets are percentages; the others are plain multiples.
func ComputeRatios(cik, name string, fiscalYear int, m map[concept.Tag]float64) *models.Ratios {
	get := func(tags ...concept.Tag) (float64, bool) {
		for _, t := range tags {
			if v, ok := m[t]; ok {
				return v, true
			}
		}
		return 0, false
	}
	div := func(num, den float64, okNum, okDen bool, scale float64) *float64 {
		if !okNum || !okDen || den == 0 {
			return nil
		}
		v := num / den * scale
		return &v
	}

	revenue, okRev := get(concept.Revenues, concept.RevenueFromContractWithCustomer, concept.SalesRevenueNet)
	netIncome, okNI := get(concept.NetIncomeLoss)
	gross, okGross := get(concept.GrossProfit)
	assets, okAssets := get(concept.Assets)
	currentAssets, okCA := get(concept.AssetsCurrent)
	liabilities, okLiab := get(concept.Liabilities)
	currentLiab, okCL := get(concept.LiabilitiesCurrent)
	equity, okEq := get(concept.StockholdersEquity)
	cash, okCash := get(concept.CashAndCashEquivalents)

	return &models.Ratios{
		CompanyKey:    cik,
		CompanyName:   name,
		FiscalYear:    fiscalYear,
		NetMargin:     div(netIncome, revenue, okNI, okRev, 100),
		GrossMargin:   div(gross, revenue, okGross, okRev, 100),
		ROA:           div(netIncome, assets, okNI, okAssets, 100),
		ROE:           div(netIncome, equity, okNI, okEq, 100),
		CurrentRatio:  div(currentAssets, currentLiab, okCA, okCL, 1),
		CashRatio:     div(cash, currentLiab, okCash, okCL, 1),
		DebtToAssets:  div(liabilities, assets, okLiab, okAssets, 100),
		DebtToEquity:  div(liabilities, equity, okLiab, okEq, 1),
		AssetTurnover: div(revenue, assets, okRev, okAssets, 1),
	}
}
