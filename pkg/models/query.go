package models

import (
	"strconv"
	"time"

	"xbrl_lookup/pkg/core/concept"
)

// ScoredFact is a search hit with its relevance score.
type ScoredFact struct {
	Fact
	Ticker string `json:"ticker,omitempty"`
	Score  int    `json:"relevance_score"`
}

// TrendPoint is one (company, fiscal year) row of a trend series.
type TrendPoint struct {
	CompanyKey  string      `json:"cik"`
	CompanyName string      `json:"company_name"`
	Ticker      string      `json:"ticker,omitempty"`
	Tag         concept.Tag `json:"tag"`
	Label       string      `json:"label"`
	Unit        string      `json:"unit"`
	FiscalYear  int         `json:"fiscal_year"`
	Value       float64     `json:"avg_value"`
}

// CompanyOverview is a row of the company_overview view.
type CompanyOverview struct {
	Company
	TotalFilings     int    `json:"total_filings"`
	LatestFilingDate string `json:"latest_filing_date,omitempty"`
	UniqueMetrics    int    `json:"unique_metrics"`
	LatestFiscalYear *int   `json:"latest_fiscal_year,omitempty"`
}

// QuarterlyPoint is a row of the quarterly_trends view.
type QuarterlyPoint struct {
	Fact
	PeriodRank int `json:"period_rank"`
}

// LineItem is the legacy flat row shape kept for older consumers.
type LineItem struct {
	CompanyName   string  `json:"company_name"`
	Ticker        string  `json:"ticker_symbol,omitempty"`
	CIK           string  `json:"cik"`
	LineItemLabel string  `json:"line_item_label"`
	XBRLTag       string  `json:"xbrl_tag"`
	Value         float64 `json:"value"`
	FilingDate    string  `json:"filing_date"`
	PeriodEndDate string  `json:"period_end_date"`
	FormType      string  `json:"form_type"`
	Accession     string  `json:"accession_number"`
	SECURL        string  `json:"sec_url"`
	FilingYear    *int    `json:"filing_year,omitempty"`
}

// CompanyFactCount is one entry of the store summary's top companies.
type CompanyFactCount struct {
	Name      string `json:"name"`
	Ticker    string `json:"ticker,omitempty"`
	FactCount int    `json:"fact_count"`
}

// Summary describes the contents of the store.
type Summary struct {
	TotalCompanies int                `json:"total_companies"`
	TotalFacts     int                `json:"total_facts"`
	UniqueTags     int                `json:"unique_tags"`
	TotalFilings   int                `json:"total_filings"`
	MinFiscalYear  *int               `json:"min_fiscal_year,omitempty"`
	MaxFiscalYear  *int               `json:"max_fiscal_year,omitempty"`
	FormTypes      map[string]int     `json:"form_types"`
	LastUpdated    string             `json:"last_updated,omitempty"`
	TopCompanies   []CompanyFactCount `json:"top_companies"`
}

// YearRange renders the fiscal year span, or "N/A" for an empty store.
func (s Summary) YearRange() string {
	if s.MinFiscalYear == nil || s.MaxFiscalYear == nil {
		return "N/A"
	}
	return strconv.Itoa(*s.MinFiscalYear) + "-" + strconv.Itoa(*s.MaxFiscalYear)
}

// Run records one integration attempt.
type Run struct {
	ID         string    `json:"id"`
	Identifier string    `json:"identifier"`
	CIK        string    `json:"cik,omitempty"`
	Status     string    `json:"status"` // "success" or "failure"
	Stage      string    `json:"stage,omitempty"`
	Message    string    `json:"message,omitempty"`
	FactCount  int       `json:"fact_count"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Ratios are derived from one company's 10-K facts of one fiscal year.
// A ratio is nil when an input is missing or its denominator is zero.
type Ratios struct {
	CompanyKey    string   `json:"cik"`
	CompanyName   string   `json:"company_name"`
	FiscalYear    int      `json:"fiscal_year"`
	NetMargin     *float64 `json:"net_margin,omitempty"`
	GrossMargin   *float64 `json:"gross_margin,omitempty"`
	ROA           *float64 `json:"roa,omitempty"`
	ROE           *float64 `json:"roe,omitempty"`
	CurrentRatio  *float64 `json:"current_ratio,omitempty"`
	CashRatio     *float64 `json:"cash_ratio,omitempty"`
	DebtToAssets  *float64 `json:"debt_to_assets,omitempty"`
	DebtToEquity  *float64 `json:"debt_to_equity,omitempty"`
	AssetTurnover *float64 `json:"asset_turnover,omitempty"`
}
