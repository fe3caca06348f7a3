// Package xbrl flattens SEC companyfacts documents into fact records.
package xbrl

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"strconv"
	"strings"

	"xbrl_lookup/pkg/core/concept"
	"xbrl_lookup/pkg/core/fault"
	"xbrl_lookup/pkg/models"
)

// Stats counts what an extraction kept and skipped.
type Stats struct {
	Extracted       int
	SkippedConcepts int // concepts outside the allow-list
	SkippedForms    int // entries with a form other than 10-K / 10-Q
	Malformed       int // entries with a bad value or a missing field
}

// Extractor converts companyfacts documents into facts.
type Extractor struct {
	Verbose bool
	stats   Stats
}

func NewExtractor(verbose bool) *Extractor {
	return &Extractor{Verbose: verbose}
}

// Stats returns the counters of the last Extract call.
func (e *Extractor) Stats() Stats {
	return e.stats
}

// ExtractFacts extracts the tracked concepts of a document. Output order is unspecified.
func ExtractFacts(doc *models.CompanyFactsDocument) []models.Fact {
	return NewExtractor(false).Extract(doc)
}

// Extract walks facts -> namespace -> tag -> unit -> entries and emits one fact per
// valid 10-K / 10-Q entry of an allow-listed concept. Bad entries are skipped one by one.
func (e *Extractor) Extract(doc *models.CompanyFactsDocument) []models.Fact {
	e.stats = Stats{}
	if doc == nil {
		return nil
	}

	companyKey := doc.CIK.Padded()
	var facts []models.Fact

	for ns, tags := range doc.Facts {
		for rawTag, cf := range tags {
			if !concept.Allowed(concept.Namespace(ns), rawTag) {
				e.stats.SkippedConcepts++
				continue
			}
			tag := concept.Tag(rawTag)
			label := strings.TrimSpace(cf.Label)
			if label == "" {
				label = concept.Label(tag)
			}

			for unit, entries := range cf.Units {
				for _, raw := range entries {
					entry, value, err := decodeEntry(raw)
					if err != nil {
						e.stats.Malformed++
						if e.Verbose {
							log.Printf("[INGEST] Skipping %s entry for %s: %v", rawTag, companyKey,
								fault.New(fault.Malformed, fault.StageExtract, companyKey, err))
						}
						continue
					}
					if entry.Form != models.FormAnnual && entry.Form != models.FormQuarterly {
						e.stats.SkippedForms++
						continue
					}

					facts = append(facts, models.Fact{
						CompanyKey:  companyKey,
						CompanyName: doc.EntityName,
						Tag:         tag,
						Label:       label,
						Description: cf.Description,
						Value:       value,
						Unit:        unit,
						PeriodEnd:   entry.End,
						PeriodStart: entry.Start,
						FormType:    entry.Form,
						FiledDate:   entry.Filed,
						FiscalYear:  models.FiscalYearOf(entry.End),
						Accession:   entry.Accn,
						SourceURL:   FilingURL(companyKey, entry.Accn),
					})
				}
			}
		}
	}

	e.stats.Extracted = len(facts)
	if e.Verbose {
		log.Printf("[INGEST] Extracted %d facts for %s (skipped: %d concepts, %d forms, %d malformed)",
			e.stats.Extracted, companyKey, e.stats.SkippedConcepts, e.stats.SkippedForms, e.stats.Malformed)
	}
	return facts
}

// decodeEntry decodes and validates a single period entry.
func decodeEntry(raw json.RawMessage) (models.FactEntry, float64, error) {
	var entry models.FactEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return entry, 0, fmt.Errorf("invalid entry: %w", err)
	}

	switch {
	case entry.End == "":
		return entry, 0, fmt.Errorf("missing end date")
	case entry.Form == "":
		return entry, 0, fmt.Errorf("missing form")
	case entry.Filed == "":
		return entry, 0, fmt.Errorf("missing filed date")
	case entry.Accn == "":
		return entry, 0, fmt.Errorf("missing accession")
	}

	value, err := parseValue(entry.Val)
	if err != nil {
		return entry, 0, err
	}
	return entry, value, nil
}

// parseValue accepts a JSON number or a string holding one.
func parseValue(raw json.RawMessage) (float64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, fmt.Errorf("missing value")
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, fmt.Errorf("invalid value %s", raw)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("non-numeric value %q", s)
		}
		return v, nil
	}

	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, fmt.Errorf("non-numeric value %s", raw)
	}
	return v, nil
}
