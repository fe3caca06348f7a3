package models

import (
	"strconv"
	"time"

	"xbrl_lookup/pkg/core/concept"
)

// Form types accepted by the pipeline.
const (
	FormAnnual    = "10-K"
	FormQuarterly = "10-Q"
)

// Fact is one reported value for one concept, period and filing.
type Fact struct {
	CompanyKey  string      `json:"cik"` // 10-digit zero-padded CIK
	CompanyName string      `json:"company_name"`
	Tag         concept.Tag `json:"tag"`
	Label       string      `json:"label"`
	Description string      `json:"description,omitempty"`
	Value       float64     `json:"value"`
	Unit        string      `json:"unit"`
	PeriodEnd   string      `json:"period_end"`             // YYYY-MM-DD
	PeriodStart string      `json:"period_start,omitempty"` // empty for instant facts
	FormType    string      `json:"form_type"`
	FiledDate   string      `json:"filed_date"`
	FiscalYear  *int        `json:"fiscal_year,omitempty"`
	Accession   string      `json:"accession_number"`
	SourceURL   string      `json:"sec_url"`
}

// FactKey is the natural key of a stored fact.
type FactKey struct {
	CompanyKey string
	Tag        concept.Tag
	PeriodEnd  string
	FormType   string
	Accession  string
}

func (f Fact) Key() FactKey {
	return FactKey{f.CompanyKey, f.Tag, f.PeriodEnd, f.FormType, f.Accession}
}

// FiscalYearOf derives the fiscal year from the first four characters of a period end date.
// It returns nil when they do not form a year.
func FiscalYearOf(periodEnd string) *int {
	if len(periodEnd) < 4 {
		return nil
	}
	year, err := strconv.Atoi(periodEnd[:4])
	if err != nil || year <= 0 {
		return nil
	}
	return &year
}

// Company is a filer known to the store.
type Company struct {
	Key       string    `json:"cik"`
	Name      string    `json:"name"`
	Ticker    string    `json:"ticker,omitempty"`
	Industry  string    `json:"industry,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Filing aggregates the facts one accession contributed.
type Filing struct {
	Accession  string `json:"accession_number"`
	CompanyKey string `json:"cik"`
	FormType   string `json:"form_type"`
	FilingDate string `json:"filing_date"`
	PeriodEnd  string `json:"period_end_date"`
	FiscalYear *int   `json:"fiscal_year,omitempty"`
	FactCount  int    `json:"fact_count"`
}
