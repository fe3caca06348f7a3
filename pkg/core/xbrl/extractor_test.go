package xbrl

import (
	"encoding/json"
	"testing"

	"xbrl_lookup/pkg/core/concept"
	"xbrl_lookup/pkg/models"
)

const sampleDoc = `{
  "cik": 320193,
  "entityName": "Apple Inc.",
  "facts": {
    "dei": {
      "EntityCommonStockSharesOutstanding": {
        "label": "Entity Common Stock, Shares Outstanding",
        "units": {"shares": [
          {"val": 15550061000, "end": "2023-10-20", "form": "10-K", "filed": "2023-11-03", "accn": "0000320193-23-000106"}
        ]}
      },
      "Revenues": {
        "label": "Wrong namespace",
        "units": {"USD": [
          {"val": 1, "end": "2023-09-30", "form": "10-K", "filed": "2023-11-03", "accn": "0000320193-23-000106"}
        ]}
      }
    },
    "us-gaap": {
      "Revenues": {
        "label": "Revenues",
        "description": "Amount of revenue recognized.",
        "units": {"USD": [
          {"val": 365817000000, "end": "2022-09-24", "start": "2021-09-26", "form": "10-K", "filed": "2022-10-28", "accn": "0000320193-22-000108"},
          {"val": "not-a-number", "end": "2023-06-30", "form": "10-Q", "filed": "2023-08-04", "accn": "0000320193-23-000077"},
          {"val": 394328000000, "end": "2023-09-30", "start": "2022-09-25", "form": "10-K", "filed": "2023-11-03", "accn": "0000320193-23-000106"},
          {"val": 81797000000, "end": "2023-07-01", "start": "2023-04-02", "form": "10-Q", "filed": "2023-08-04", "accn": "0000320193-23-000077"},
          {"val": 1, "end": "2023-09-30", "form": "8-K", "filed": "2023-11-03", "accn": "0000320193-23-000107"},
          {"val": 1, "end": "2023-09-30", "form": "10-K/A", "filed": "2023-11-03", "accn": "0000320193-23-000108"},
          {"val": "1234.5", "end": "2023-04-01", "form": "10-Q", "filed": "2023-05-05", "accn": "0000320193-23-000064"},
          {"val": 5, "form": "10-Q", "filed": "2023-05-05", "accn": "0000320193-23-000064"},
          {"val": 5, "end": "2023-04-01", "form": "10-Q", "filed": "2023-05-05"}
        ]}
      },
      "NetIncomeLoss": {
        "label": "",
        "units": {"USD": [
          {"val": 96995000000, "end": "2023-09-30", "form": "10-K", "filed": "2023-11-03", "accn": "0000320193-23-000106"}
        ]}
      },
      "ResearchAndDevelopmentExpense": {
        "label": "Research and Development Expense",
        "units": {"USD": [
          {"val": 29915000000, "end": "2023-09-30", "form": "10-K", "filed": "2023-11-03", "accn": "0000320193-23-000106"}
        ]}
      }
    }
  }
}`

func loadSample(t *testing.T) *models.CompanyFactsDocument {
	t.Helper()
	var doc models.CompanyFactsDocument
	if err := json.Unmarshal([]byte(sampleDoc), &doc); err != nil {
		t.Fatalf("failed to parse sample: %v", err)
	}
	return &doc
}

func TestExtractFacts_AllowListAndForms(t *testing.T) {
	facts := ExtractFacts(loadSample(t))
	if len(facts) == 0 {
		t.Fatal("expected facts")
	}
	for _, f := range facts {
		if _, ok := concept.Lookup(f.Tag); !ok {
			t.Errorf("tag %s is not in the allow-list", f.Tag)
		}
		if f.FormType != models.FormAnnual && f.FormType != models.FormQuarterly {
			t.Errorf("unexpected form type %s", f.FormType)
		}
		if f.Tag == concept.Revenues && f.Value == 1 {
			t.Errorf("dei Revenues or non-periodic form leaked: %+v", f)
		}
		if f.CompanyKey != "0000320193" {
			t.Errorf("company key = %q", f.CompanyKey)
		}
	}
}

func TestExtractFacts_MalformedEntrySkipped(t *testing.T) {
	e := NewExtractor(false)
	facts := e.Extract(loadSample(t))

	var revenues []models.Fact
	for _, f := range facts {
		if f.Tag == concept.Revenues {
			revenues = append(revenues, f)
		}
	}
	// two 10-K, one numeric 10-Q, one numeric-string 10-Q
	if len(revenues) != 4 {
		t.Fatalf("Revenues facts = %d, want 4", len(revenues))
	}

	found := false
	for _, f := range revenues {
		if f.PeriodEnd == "2023-04-01" {
			found = true
			if f.Value != 1234.5 {
				t.Errorf("numeric string value = %v, want 1234.5", f.Value)
			}
		}
	}
	if !found {
		t.Error("numeric string value was not extracted")
	}

	stats := e.Stats()
	if stats.Malformed != 3 {
		t.Errorf("Malformed = %d, want 3", stats.Malformed)
	}
	if stats.SkippedForms != 2 {
		t.Errorf("SkippedForms = %d, want 2", stats.SkippedForms)
	}
	if stats.SkippedConcepts != 2 {
		t.Errorf("SkippedConcepts = %d, want 2", stats.SkippedConcepts)
	}
	if stats.Extracted != len(facts) {
		t.Errorf("Extracted = %d, want %d", stats.Extracted, len(facts))
	}
}

func TestExtractFacts_Fields(t *testing.T) {
	facts := ExtractFacts(loadSample(t))

	var fy23 *models.Fact
	for i := range facts {
		if facts[i].Tag == concept.Revenues && facts[i].PeriodEnd == "2023-09-30" {
			fy23 = &facts[i]
		}
	}
	if fy23 == nil {
		t.Fatal("FY2023 revenue not found")
	}
	if fy23.Value != 394328000000 || fy23.Unit != "USD" || fy23.PeriodStart != "2022-09-25" {
		t.Errorf("unexpected fact %+v", fy23)
	}
	if fy23.FiscalYear == nil || *fy23.FiscalYear != 2023 {
		t.Errorf("fiscal year = %v", fy23.FiscalYear)
	}
	if fy23.CompanyName != "Apple Inc." || fy23.Description != "Amount of revenue recognized." {
		t.Errorf("unexpected metadata %+v", fy23)
	}
	want := "https://www.sec.gov/ix?doc=/Archives/edgar/data/320193/000032019323000106/0000320193-23-000106.htm"
	if fy23.SourceURL != want {
		t.Errorf("SourceURL = %q", fy23.SourceURL)
	}
}

func TestExtractFacts_LabelFallback(t *testing.T) {
	facts := ExtractFacts(loadSample(t))
	labels := map[concept.Tag]string{}
	for _, f := range facts {
		labels[f.Tag] = f.Label
	}

	if labels[concept.Revenues] != "Revenues" {
		t.Errorf("document label should win, got %q", labels[concept.Revenues])
	}
	if labels[concept.NetIncomeLoss] != "Net Income" {
		t.Errorf("empty document label should fall back to dictionary, got %q", labels[concept.NetIncomeLoss])
	}
	if labels[concept.EntityCommonStockSharesOutstanding] != "Entity Common Stock, Shares Outstanding" {
		t.Errorf("dei label = %q", labels[concept.EntityCommonStockSharesOutstanding])
	}
}

func TestExtractFacts_EmptyDocument(t *testing.T) {
	if facts := ExtractFacts(nil); len(facts) != 0 {
		t.Errorf("nil document gave %d facts", len(facts))
	}
	if facts := ExtractFacts(&models.CompanyFactsDocument{CIK: "1"}); len(facts) != 0 {
		t.Errorf("empty document gave %d facts", len(facts))
	}
}

func TestExtractFacts_NonFiniteValueSkipped(t *testing.T) {
	doc := &models.CompanyFactsDocument{
		CIK:        "320193",
		EntityName: "Apple Inc.",
		Facts: map[string]map[string]models.ConceptFacts{
			"us-gaap": {
				"Revenues": {
					Label: "Revenues",
					Units: map[string][]json.RawMessage{
						"USD": {
							json.RawMessage(`{"val":"NaN","end":"2022-09-24","form":"10-K","filed":"2022-10-28","accn":"0000320193-22-000108"}`),
							json.RawMessage(`{"val":"Infinity","end":"2021-09-25","form":"10-K","filed":"2021-10-29","accn":"0000320193-21-000105"}`),
							json.RawMessage(`{"val":394328000000,"end":"2023-09-30","form":"10-K","filed":"2023-11-03","accn":"0000320193-23-000106"}`),
						},
					},
				},
			},
		},
	}

	e := NewExtractor(false)
	facts := e.Extract(doc)
	if len(facts) != 1 || facts[0].PeriodEnd != "2023-09-30" {
		t.Fatalf("facts = %+v, want only the finite 2023 entry", facts)
	}
	if got := e.Stats().Malformed; got != 2 {
		t.Errorf("Malformed = %d, want 2", got)
	}
	if _, err := json.Marshal(facts); err != nil {
		t.Errorf("extracted facts must encode as JSON: %v", err)
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		raw     string
		want    float64
		wantErr bool
	}{
		{`42`, 42, false},
		{`-1.5e3`, -1500, false},
		{`"17.25"`, 17.25, false},
		{`"abc"`, 0, true},
		{`null`, 0, true},
		{`true`, 0, true},
		{`{}`, 0, true},
		{`"NaN"`, 0, true},
		{`"Inf"`, 0, true},
		{`"-Infinity"`, 0, true},
		{`1e999`, 0, true},
	}
	for _, tt := range tests {
		got, err := parseValue(json.RawMessage(tt.raw))
		if (err != nil) != tt.wantErr {
			t.Errorf("parseValue(%s) err = %v, wantErr %v", tt.raw, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("parseValue(%s) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}
