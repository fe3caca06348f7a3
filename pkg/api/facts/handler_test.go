package facts

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"xbrl_lookup/pkg/core/concept"
	"xbrl_lookup/pkg/core/search"
	"xbrl_lookup/pkg/core/store"
	"xbrl_lookup/pkg/models"
)

func fact(tag concept.Tag, label string, value float64, end, form, accn string) models.Fact {
	return models.Fact{
		CompanyKey:  "0000320193",
		CompanyName: "Apple Inc.",
		Tag:         tag,
		Label:       label,
		Value:       value,
		Unit:        "USD",
		PeriodEnd:   end,
		FormType:    form,
		FiledDate:   end,
		Accession:   accn,
		SourceURL:   "https://www.sec.gov/ix?doc=/" + accn,
	}
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	ctx := context.Background()
	st, err := store.Open(ctx, store.Options{Dialect: store.DialectSQLite, Path: filepath.Join(t.TempDir(), "api.db")})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	_, err = st.UpsertFacts(ctx, []models.Fact{
		fact(concept.Revenues, "Revenues", 365817000000, "2022-09-24", models.FormAnnual, "0000320193-22-000108"),
		fact(concept.Revenues, "Revenues", 394328000000, "2023-09-30", models.FormAnnual, "0000320193-23-000106"),
		fact(concept.Revenues, "Revenues", 81797000000, "2023-07-01", models.FormQuarterly, "0000320193-23-000077"),
		fact(concept.NetIncomeLoss, "Net Income", 96995000000, "2023-09-30", models.FormAnnual, "0000320193-23-000106"),
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := st.SetCompanyProfile(ctx, "0000320193", "AAPL", "Technology"); err != nil {
		t.Fatalf("profile: %v", err)
	}

	mux := http.NewServeMux()
	NewHandler(search.NewEngine(st), st).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, srv *httptest.Server, path string, out any) int {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
	return resp.StatusCode
}

func TestHandleSearch(t *testing.T) {
	srv := newTestServer(t)

	var resp SearchResponse
	if code := getJSON(t, srv, "/api/search?q=Net+Income&limit=5", &resp); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if resp.Count == 0 || resp.Results[0].Label != "Net Income" || resp.Results[0].Score != search.ScoreExactLabel {
		t.Errorf("unexpected results %+v", resp)
	}
	if resp.Results[0].Ticker != "AAPL" {
		t.Errorf("ticker = %q", resp.Results[0].Ticker)
	}

	var empty SearchResponse
	getJSON(t, srv, "/api/search?q=zz-nonexistent-zz", &empty)
	if empty.Count != 0 || empty.Results == nil {
		t.Errorf("no-match response = %+v", empty)
	}

	if code := getJSON(t, srv, "/api/search?q=x&limit=abc", nil); code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d", code)
	}
}

func TestHandleTrend(t *testing.T) {
	srv := newTestServer(t)

	var points []models.TrendPoint
	if code := getJSON(t, srv, "/api/trend?tag=Revenues&company=AAPL&form=10-K&periods=10", &points); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if len(points) != 2 || points[0].FiscalYear != 2022 || points[1].FiscalYear != 2023 {
		t.Errorf("points = %+v", points)
	}
	if points[1].Value != 394328000000 {
		t.Errorf("2023 value = %v", points[1].Value)
	}

	if code := getJSON(t, srv, "/api/trend", nil); code != http.StatusBadRequest {
		t.Errorf("missing tag status = %d", code)
	}
	if code := getJSON(t, srv, "/api/trend?tag=NotATag", nil); code != http.StatusBadRequest {
		t.Errorf("unknown tag status = %d", code)
	}
}

func TestHandleCompaniesAndStats(t *testing.T) {
	srv := newTestServer(t)

	var companies []models.CompanyOverview
	getJSON(t, srv, "/api/companies", &companies)
	if len(companies) != 1 || companies[0].Ticker != "AAPL" || companies[0].UniqueMetrics != 2 {
		t.Errorf("companies = %+v", companies)
	}

	var stats map[string]any
	getJSON(t, srv, "/api/stats", &stats)
	if stats["total_facts"] != float64(4) || stats["year_range"] != "2022-2023" {
		t.Errorf("stats = %v", stats)
	}
}

func TestHandleConcepts(t *testing.T) {
	srv := newTestServer(t)
	var concepts []ConceptResponse
	getJSON(t, srv, "/api/concepts", &concepts)
	if len(concepts) != len(concept.All()) {
		t.Errorf("concepts = %d, want %d", len(concepts), len(concept.All()))
	}
}

func TestHandleCompanyViews(t *testing.T) {
	srv := newTestServer(t)

	var ratios models.Ratios
	if code := getJSON(t, srv, "/api/ratios?cik=320193", &ratios); code != http.StatusOK {
		t.Fatalf("ratios status = %d", code)
	}
	if ratios.FiscalYear != 2023 || ratios.NetMargin == nil {
		t.Errorf("ratios = %+v", ratios)
	}
	if code := getJSON(t, srv, "/api/ratios?cik=1", nil); code != http.StatusNotFound {
		t.Errorf("unknown company ratios status = %d", code)
	}
	if code := getJSON(t, srv, "/api/ratios", nil); code != http.StatusBadRequest {
		t.Errorf("missing cik status = %d", code)
	}

	var quarters []models.QuarterlyPoint
	getJSON(t, srv, "/api/quarterly?cik=320193&tag=Revenues", &quarters)
	if len(quarters) != 1 || quarters[0].PeriodRank != 1 {
		t.Errorf("quarterly = %+v", quarters)
	}

	var latest []models.Fact
	getJSON(t, srv, "/api/latest?cik=0000320193", &latest)
	if len(latest) != 2 {
		t.Errorf("latest = %+v", latest)
	}

	var filings []models.Filing
	getJSON(t, srv, "/api/filings?cik=0000320193", &filings)
	if len(filings) != 3 {
		t.Errorf("filings = %+v", filings)
	}

	var items []models.LineItem
	getJSON(t, srv, "/api/line-items?limit=2", &items)
	if len(items) != 2 {
		t.Errorf("line items = %d", len(items))
	}

	var runs []models.Run
	if code := getJSON(t, srv, "/api/runs", &runs); code != http.StatusOK || runs == nil {
		t.Errorf("runs status = %d, runs = %v", code, runs)
	}
}

func TestHandleMethodsAndCORS(t *testing.T) {
	srv := newTestServer(t)

	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/api/search", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("OPTIONS status = %d, CORS = %q", resp.StatusCode, resp.Header.Get("Access-Control-Allow-Origin"))
	}

	resp, err = http.Post(srv.URL+"/api/search", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("POST status = %d", resp.StatusCode)
	}
}

type failingSearcher struct{}

func (failingSearcher) RankedSearch(ctx context.Context, q string, limit int) ([]models.ScoredFact, error) {
	return nil, errors.New("db down")
}

func (failingSearcher) Trend(ctx context.Context, tag concept.Tag, companies, formTypes []string, periods int) ([]models.TrendPoint, error) {
	return nil, errors.New("db down")
}

func TestHandleSearch_Error(t *testing.T) {
	h := NewHandler(failingSearcher{}, nil)
	rec := httptest.NewRecorder()
	h.HandleSearch(rec, httptest.NewRequest(http.MethodGet, "/api/search?q=revenue", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d", rec.Code)
	}
}
