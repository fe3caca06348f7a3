package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// =============================================================================
// SEC COMPANYFACTS DOCUMENT
// https://data.sec.gov/api/xbrl/companyfacts/CIK##########.json
// =============================================================================

// CompanyFactsDocument is the raw companyfacts response.
//
// Period entries are kept as raw JSON so a single malformed entry can be
// skipped without failing the whole document.
type CompanyFactsDocument struct {
	CIK        CIK                                `json:"cik"`
	EntityName string                             `json:"entityName"`
	Facts      map[string]map[string]ConceptFacts `json:"facts"` // namespace -> tag -> facts
}

// ConceptFacts holds every reported value of one concept, keyed by unit.
type ConceptFacts struct {
	Label       string                       `json:"label"`
	Description string                       `json:"description"`
	Units       map[string][]json.RawMessage `json:"units"`
}

// FactEntry is one decoded period entry.
type FactEntry struct {
	Val   json.RawMessage `json:"val"`
	End   string          `json:"end"`
	Start string          `json:"start,omitempty"`
	Form  string          `json:"form"`
	Filed string          `json:"filed"`
	Accn  string          `json:"accn"`
	FY    json.RawMessage `json:"fy,omitempty"`
	FP    string          `json:"fp,omitempty"`
	Frame string          `json:"frame,omitempty"`
}

// CIK is a Central Index Key. The API sends it as a JSON number; cached and
// hand-written documents sometimes carry a string.
type CIK string

func (c *CIK) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*c = ""
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = CIK(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("cik: %w", err)
	}
	if _, err := n.Int64(); err != nil {
		return fmt.Errorf("cik %s is not an integer", raw)
	}
	*c = CIK(n.String())
	return nil
}

// Padded returns the CIK zero-padded to 10 digits.
func (c CIK) Padded() string {
	return PadCIK(string(c))
}

// PadCIK zero-pads a CIK to the 10 digits used in API paths and as store key.
func PadCIK(cik string) string {
	cik = strings.TrimSpace(cik)
	if len(cik) >= 10 {
		return cik
	}
	return strings.Repeat("0", 10-len(cik)) + cik
}
