package ingest

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v2"

	"xbrl_lookup/pkg/models"
)

// CompanyInfo is one entry of the ticker lookup table.
type CompanyInfo struct {
	Ticker   string `yaml:"ticker" json:"ticker"`
	Name     string `yaml:"name" json:"name"`
	CIK      string `yaml:"cik" json:"cik"`
	Industry string `yaml:"industry" json:"industry,omitempty"`
}

// MajorCompanies is the built-in lookup table, in batch processing order.
var MajorCompanies = []CompanyInfo{
	{"AAPL", "Apple Inc.", "0000320193", "Technology"},
	{"MSFT", "Microsoft Corporation", "0000789019", "Technology"},
	{"GOOGL", "Alphabet Inc.", "0001652044", "Technology"},
	{"AMZN", "Amazon.com Inc.", "0001018724", "Technology"},
	{"TSLA", "Tesla Inc.", "0001318605", "Technology"},
	{"META", "Meta Platforms Inc.", "0001326801", "Technology"},
	{"NVDA", "NVIDIA Corporation", "0001045810", "Technology"},
	{"NFLX", "Netflix Inc.", "0001065280", "Communication Services"},
}

// Registry resolves ticker symbols to registry keys without any network call.
type Registry struct {
	companies []CompanyInfo
	byTicker  map[string]int
}

// NewRegistry builds a registry. Later entries replace earlier ones with the same ticker.
func NewRegistry(companies []CompanyInfo) *Registry {
	r := &Registry{byTicker: make(map[string]int)}
	for _, c := range companies {
		c.Ticker = normalizeTicker(c.Ticker)
		if c.Ticker == "" || strings.TrimSpace(c.CIK) == "" {
			continue
		}
		c.CIK = models.PadCIK(c.CIK)
		if i, ok := r.byTicker[c.Ticker]; ok {
			r.companies[i] = c
			continue
		}
		r.byTicker[c.Ticker] = len(r.companies)
		r.companies = append(r.companies, c)
	}
	return r
}

// DefaultRegistry returns the built-in major companies.
func DefaultRegistry() *Registry {
	return NewRegistry(MajorCompanies)
}

type registryFile struct {
	Companies []CompanyInfo `yaml:"companies"`
}

// LoadRegistry extends the built-in table with the companies listed in a YAML file:
//
//	companies:
//	  - ticker: ADBE
//	    name: Adobe Inc.
//	    cik: "0000796343"
//	    industry: Technology
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry file: %w", err)
	}
	var f registryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse registry file %s: %w", path, err)
	}
	all := make([]CompanyInfo, 0, len(MajorCompanies)+len(f.Companies))
	all = append(all, MajorCompanies...)
	all = append(all, f.Companies...)
	return NewRegistry(all), nil
}

// Resolve looks up a ticker (case-insensitive).
func (r *Registry) Resolve(ticker string) (CompanyInfo, bool) {
	i, ok := r.byTicker[normalizeTicker(ticker)]
	if !ok {
		return CompanyInfo{}, false
	}
	return r.companies[i], true
}

// Companies returns all entries in registration order.
func (r *Registry) Companies() []CompanyInfo {
	out := make([]CompanyInfo, len(r.companies))
	copy(out, r.companies)
	return out
}

// Tickers returns all tickers in registration order.
func (r *Registry) Tickers() []string {
	out := make([]string, 0, len(r.companies))
	for _, c := range r.companies {
		out = append(out, c.Ticker)
	}
	return out
}

func normalizeTicker(t string) string {
	return strings.ToUpper(strings.TrimSpace(t))
}
