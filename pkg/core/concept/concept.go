// Package concept holds the fixed dictionary of XBRL concepts this system tracks.
//
// Every concept extracted, stored or searched is one of the Tag constants below.
// The dictionary is read-only at runtime.
package concept

import (
	"sort"
	"strings"
)

// Namespace is an XBRL taxonomy namespace as it appears in the companyfacts document.
type Namespace string

const (
	USGAAP Namespace = "us-gaap"
	DEI    Namespace = "dei"
)

// Tag is an XBRL concept name, e.g. "Revenues".
type Tag string

// =============================================================================
// TRACKED CONCEPTS
// =============================================================================

const (
	// Revenue
	Revenues                        Tag = "Revenues"
	SalesRevenueNet                 Tag = "SalesRevenueNet"
	RevenueFromContractWithCustomer Tag = "RevenueFromContractWithCustomerExcludingAssessedTax"

	// Assets
	Assets                 Tag = "Assets"
	AssetsCurrent          Tag = "AssetsCurrent"
	AssetsNoncurrent       Tag = "AssetsNoncurrent"
	CashAndCashEquivalents Tag = "CashAndCashEquivalentsAtCarryingValue"

	// Liabilities and equity
	Liabilities        Tag = "Liabilities"
	LiabilitiesCurrent Tag = "LiabilitiesCurrent"
	StockholdersEquity Tag = "StockholdersEquity"

	// Income statement
	CostOfGoodsAndServicesSold Tag = "CostOfGoodsAndServicesSold"
	GrossProfit                Tag = "GrossProfit"
	OperatingIncomeLoss        Tag = "OperatingIncomeLoss"
	NetIncomeLoss              Tag = "NetIncomeLoss"
	EarningsPerShareBasic      Tag = "EarningsPerShareBasic"
	EarningsPerShareDiluted    Tag = "EarningsPerShareDiluted"

	// Cash flow
	OperatingCashFlow Tag = "NetCashProvidedByUsedInOperatingActivities"
	InvestingCashFlow Tag = "NetCashProvidedByUsedInInvestingActivities"
	FinancingCashFlow Tag = "NetCashProvidedByUsedInFinancingActivities"

	// Document and entity information
	EntityCommonStockSharesOutstanding Tag = "EntityCommonStockSharesOutstanding"
	EntityPublicFloat                  Tag = "EntityPublicFloat"
)

// Entry describes one tracked concept.
type Entry struct {
	Tag       Tag
	Namespace Namespace
	Label     string   // preferred human label
	Aliases   []string // alternative names users search for
}

var dictionary = map[Tag]Entry{
	Revenues:                        {Revenues, USGAAP, "Total Revenue", []string{"Revenue", "Net Sales", "Total Revenue", "Sales"}},
	SalesRevenueNet:                 {SalesRevenueNet, USGAAP, "Net Sales", []string{"Net Sales", "Sales", "Revenue"}},
	RevenueFromContractWithCustomer: {RevenueFromContractWithCustomer, USGAAP, "Revenue from Contracts", []string{"Revenue", "Contract Revenue", "Sales"}},

	Assets:                 {Assets, USGAAP, "Total Assets", []string{"Total Assets"}},
	AssetsCurrent:          {AssetsCurrent, USGAAP, "Current Assets", []string{"Current Assets"}},
	AssetsNoncurrent:       {AssetsNoncurrent, USGAAP, "Non-current Assets", []string{"Long-term Assets", "Noncurrent Assets"}},
	CashAndCashEquivalents: {CashAndCashEquivalents, USGAAP, "Cash and Cash Equivalents", []string{"Cash", "Cash Equivalents"}},

	Liabilities:        {Liabilities, USGAAP, "Total Liabilities", []string{"Total Liabilities", "Debt"}},
	LiabilitiesCurrent: {LiabilitiesCurrent, USGAAP, "Current Liabilities", []string{"Current Liabilities", "Short-term Liabilities"}},
	StockholdersEquity: {StockholdersEquity, USGAAP, "Stockholders Equity", []string{"Shareholders Equity", "Book Value", "Equity"}},

	CostOfGoodsAndServicesSold: {CostOfGoodsAndServicesSold, USGAAP, "Cost of Goods Sold", []string{"Cost of Sales", "COGS", "Cost of Revenue"}},
	GrossProfit:                {GrossProfit, USGAAP, "Gross Profit", []string{"Gross Margin"}},
	OperatingIncomeLoss:        {OperatingIncomeLoss, USGAAP, "Operating Income", []string{"Operating Profit", "EBIT"}},
	NetIncomeLoss:              {NetIncomeLoss, USGAAP, "Net Income", []string{"Net Income", "Net Earnings", "Profit"}},
	EarningsPerShareBasic:      {EarningsPerShareBasic, USGAAP, "Basic EPS", []string{"EPS", "Earnings Per Share"}},
	EarningsPerShareDiluted:    {EarningsPerShareDiluted, USGAAP, "Diluted EPS", []string{"EPS", "Diluted Earnings Per Share"}},

	OperatingCashFlow: {OperatingCashFlow, USGAAP, "Operating Cash Flow", []string{"Cash from Operations", "CFO"}},
	InvestingCashFlow: {InvestingCashFlow, USGAAP, "Investing Cash Flow", []string{"Cash from Investing", "Capex"}},
	FinancingCashFlow: {FinancingCashFlow, USGAAP, "Financing Cash Flow", []string{"Cash from Financing"}},

	EntityCommonStockSharesOutstanding: {EntityCommonStockSharesOutstanding, DEI, "Shares Outstanding", []string{"Shares Outstanding", "Share Count"}},
	EntityPublicFloat:                  {EntityPublicFloat, DEI, "Public Float", []string{"Public Float", "Market Value"}},
}

// Lookup returns the dictionary entry for a tag.
func Lookup(tag Tag) (Entry, bool) {
	e, ok := dictionary[tag]
	return e, ok
}

// Parse converts a raw tag string into a tracked Tag.
// The second return value is false for concepts outside the allow-list.
func Parse(raw string) (Tag, bool) {
	if _, ok := dictionary[Tag(raw)]; !ok {
		return "", false
	}
	return Tag(raw), true
}

// Allowed reports whether tag is tracked under the given namespace.
func Allowed(ns Namespace, raw string) bool {
	e, ok := dictionary[Tag(raw)]
	return ok && e.Namespace == ns
}

// Label returns the preferred label for a tag, or the raw tag when it is not tracked.
func Label(tag Tag) string {
	if e, ok := dictionary[tag]; ok {
		return e.Label
	}
	return string(tag)
}

// Aliases returns the known alternative names of a tag.
func Aliases(tag Tag) []string {
	return dictionary[tag].Aliases
}

// All returns every tracked tag in a stable order.
func All() []Tag {
	tags := make([]Tag, 0, len(dictionary))
	for t := range dictionary {
		tags = append(tags, t)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	return tags
}

// Entries returns every dictionary entry in the order of All.
func Entries() []Entry {
	tags := All()
	out := make([]Entry, 0, len(tags))
	for _, t := range tags {
		out = append(out, dictionary[t])
	}
	return out
}

// MatchAlias returns the tags having an alias or preferred label that contains
// query (case-insensitive). An empty query matches nothing.
func MatchAlias(query string) []Tag {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	var tags []Tag
	for _, t := range All() {
		e := dictionary[t]
		if strings.Contains(strings.ToLower(e.Label), q) {
			tags = append(tags, t)
			continue
		}
		for _, a := range e.Aliases {
			if strings.Contains(strings.ToLower(a), q) {
				tags = append(tags, t)
				break
			}
		}
	}
	return tags
}

// HasAliasMatch reports whether query matches one of tag's aliases or its preferred label.
func HasAliasMatch(tag Tag, query string) bool {
	for _, t := range MatchAlias(query) {
		if t == tag {
			return true
		}
	}
	return false
}
