package facts

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"

	"xbrl_lookup/pkg/core/concept"
	"xbrl_lookup/pkg/models"
)

// Searcher answers ranked search and trend queries.
type Searcher interface {
	RankedSearch(ctx context.Context, q string, limit int) ([]models.ScoredFact, error)
	Trend(ctx context.Context, tag concept.Tag, companies, formTypes []string, periods int) ([]models.TrendPoint, error)
}

// Reader exposes the store's dashboard queries.
type Reader interface {
	CompanyOverviews(ctx context.Context) ([]models.CompanyOverview, error)
	Summary(ctx context.Context, topN int) (*models.Summary, error)
	FinancialRatios(ctx context.Context, cik string, fiscalYear int) (*models.Ratios, error)
	QuarterlyTrend(ctx context.Context, cik string, tag concept.Tag, periods int) ([]models.QuarterlyPoint, error)
	LatestAnnualMetrics(ctx context.Context, cik string) ([]models.Fact, error)
	Filings(ctx context.Context, cik string) ([]models.Filing, error)
	LegacyLineItems(ctx context.Context, cik string, limit int) ([]models.LineItem, error)
	RecentRuns(ctx context.Context, limit int) ([]models.Run, error)
}

// Handler holds dependencies for the dashboard data endpoints
type Handler struct {
	Search Searcher
	Store  Reader
}

// NewHandler creates a new facts handler
func NewHandler(search Searcher, store Reader) *Handler {
	return &Handler{Search: search, Store: store}
}

// Register mounts every endpoint on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/search", h.HandleSearch)
	mux.HandleFunc("/api/trend", h.HandleTrend)
	mux.HandleFunc("/api/companies", h.HandleCompanies)
	mux.HandleFunc("/api/stats", h.HandleStats)
	mux.HandleFunc("/api/concepts", h.HandleConcepts)
	mux.HandleFunc("/api/ratios", h.HandleRatios)
	mux.HandleFunc("/api/quarterly", h.HandleQuarterly)
	mux.HandleFunc("/api/latest", h.HandleLatest)
	mux.HandleFunc("/api/filings", h.HandleFilings)
	mux.HandleFunc("/api/line-items", h.HandleLineItems)
	mux.HandleFunc("/api/runs", h.HandleRuns)
}

// SearchResponse is the body of /api/search.
type SearchResponse struct {
	Query   string              `json:"query"`
	Count   int                 `json:"count"`
	Results []models.ScoredFact `json:"results"`
}

// GET /api/search?q=revenue&limit=20
func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	if !preflight(w, r) {
		return
	}
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	limit, ok := intParam(w, r, "limit", 20)
	if !ok {
		return
	}

	results, err := h.Search.RankedSearch(r.Context(), q, limit)
	if err != nil {
		serverError(w, "search", err)
		return
	}
	if results == nil {
		results = []models.ScoredFact{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Query: q, Count: len(results), Results: results})
}

// GET /api/trend?tag=Revenues&company=AAPL&company=MSFT&form=10-K&periods=10
func (h *Handler) HandleTrend(w http.ResponseWriter, r *http.Request) {
	if !preflight(w, r) {
		return
	}
	tag, ok := tagParam(w, r)
	if !ok {
		return
	}
	periods, ok := intParam(w, r, "periods", 0)
	if !ok {
		return
	}

	points, err := h.Search.Trend(r.Context(), tag, listParam(r, "company"), listParam(r, "form"), periods)
	if err != nil {
		serverError(w, "trend", err)
		return
	}
	if points == nil {
		points = []models.TrendPoint{}
	}
	writeJSON(w, http.StatusOK, points)
}

// GET /api/companies
func (h *Handler) HandleCompanies(w http.ResponseWriter, r *http.Request) {
	if !preflight(w, r) {
		return
	}
	companies, err := h.Store.CompanyOverviews(r.Context())
	if err != nil {
		serverError(w, "companies", err)
		return
	}
	if companies == nil {
		companies = []models.CompanyOverview{}
	}
	writeJSON(w, http.StatusOK, companies)
}

// StatsResponse is the body of /api/stats.
type StatsResponse struct {
	*models.Summary
	YearRange string `json:"year_range"`
}

// GET /api/stats
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if !preflight(w, r) {
		return
	}
	top, ok := intParam(w, r, "top", 5)
	if !ok {
		return
	}
	sum, err := h.Store.Summary(r.Context(), top)
	if err != nil {
		serverError(w, "stats", err)
		return
	}
	writeJSON(w, http.StatusOK, StatsResponse{Summary: sum, YearRange: sum.YearRange()})
}

// ConceptResponse is one entry of /api/concepts.
type ConceptResponse struct {
	Tag       concept.Tag       `json:"tag"`
	Namespace concept.Namespace `json:"namespace"`
	Label     string            `json:"label"`
	Aliases   []string          `json:"aliases"`
}

// GET /api/concepts
func (h *Handler) HandleConcepts(w http.ResponseWriter, r *http.Request) {
	if !preflight(w, r) {
		return
	}
	entries := concept.Entries()
	out := make([]ConceptResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, ConceptResponse{Tag: e.Tag, Namespace: e.Namespace, Label: e.Label, Aliases: e.Aliases})
	}
	writeJSON(w, http.StatusOK, out)
}

// GET /api/ratios?cik=0000320193&year=2023
func (h *Handler) HandleRatios(w http.ResponseWriter, r *http.Request) {
	if !preflight(w, r) {
		return
	}
	cik, ok := cikParam(w, r)
	if !ok {
		return
	}
	year, ok := intParam(w, r, "year", 0)
	if !ok {
		return
	}
	ratios, err := h.Store.FinancialRatios(r.Context(), cik, year)
	if err != nil {
		serverError(w, "ratios", err)
		return
	}
	if ratios == nil {
		writeError(w, http.StatusNotFound, "no annual data for "+cik)
		return
	}
	writeJSON(w, http.StatusOK, ratios)
}

// GET /api/quarterly?cik=0000320193&tag=Revenues&periods=8
func (h *Handler) HandleQuarterly(w http.ResponseWriter, r *http.Request) {
	if !preflight(w, r) {
		return
	}
	cik, ok := cikParam(w, r)
	if !ok {
		return
	}
	tag, ok := tagParam(w, r)
	if !ok {
		return
	}
	periods, ok := intParam(w, r, "periods", 8)
	if !ok {
		return
	}
	points, err := h.Store.QuarterlyTrend(r.Context(), cik, tag, periods)
	if err != nil {
		serverError(w, "quarterly", err)
		return
	}
	if points == nil {
		points = []models.QuarterlyPoint{}
	}
	writeJSON(w, http.StatusOK, points)
}

// GET /api/latest?cik=0000320193
func (h *Handler) HandleLatest(w http.ResponseWriter, r *http.Request) {
	if !preflight(w, r) {
		return
	}
	cik, ok := cikParam(w, r)
	if !ok {
		return
	}
	facts, err := h.Store.LatestAnnualMetrics(r.Context(), cik)
	if err != nil {
		serverError(w, "latest", err)
		return
	}
	if facts == nil {
		facts = []models.Fact{}
	}
	writeJSON(w, http.StatusOK, facts)
}

// GET /api/filings?cik=0000320193
func (h *Handler) HandleFilings(w http.ResponseWriter, r *http.Request) {
	if !preflight(w, r) {
		return
	}
	cik, ok := cikParam(w, r)
	if !ok {
		return
	}
	filings, err := h.Store.Filings(r.Context(), cik)
	if err != nil {
		serverError(w, "filings", err)
		return
	}
	if filings == nil {
		filings = []models.Filing{}
	}
	writeJSON(w, http.StatusOK, filings)
}

// GET /api/line-items?cik=&limit=100
func (h *Handler) HandleLineItems(w http.ResponseWriter, r *http.Request) {
	if !preflight(w, r) {
		return
	}
	limit, ok := intParam(w, r, "limit", 100)
	if !ok {
		return
	}
	items, err := h.Store.LegacyLineItems(r.Context(), strings.TrimSpace(r.URL.Query().Get("cik")), limit)
	if err != nil {
		serverError(w, "line items", err)
		return
	}
	if items == nil {
		items = []models.LineItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

// GET /api/runs?limit=20
func (h *Handler) HandleRuns(w http.ResponseWriter, r *http.Request) {
	if !preflight(w, r) {
		return
	}
	limit, ok := intParam(w, r, "limit", 20)
	if !ok {
		return
	}
	runs, err := h.Store.RecentRuns(r.Context(), limit)
	if err != nil {
		serverError(w, "runs", err)
		return
	}
	if runs == nil {
		runs = []models.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// --- helpers ---

// preflight sets CORS headers and rejects anything but GET.
// It returns false when the request has been answered.
func preflight(w http.ResponseWriter, r *http.Request) bool {
	// Add CORS headers for local dev
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
		return false
	case http.MethodGet:
		return true
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[API] Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func serverError(w http.ResponseWriter, op string, err error) {
	log.Printf("[API] %s failed: %v", op, err)
	writeError(w, http.StatusInternalServerError, op+" failed")
}

func intParam(w http.ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid "+name+": "+raw)
		return 0, false
	}
	return n, true
}

func tagParam(w http.ResponseWriter, r *http.Request) (concept.Tag, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("tag"))
	if raw == "" {
		writeError(w, http.StatusBadRequest, "tag is required")
		return "", false
	}
	tag, ok := concept.Parse(raw)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown tag: "+raw)
		return "", false
	}
	return tag, true
}

func cikParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	cik := strings.TrimSpace(r.URL.Query().Get("cik"))
	if cik == "" {
		writeError(w, http.StatusBadRequest, "cik is required")
		return "", false
	}
	return models.PadCIK(cik), true
}

// listParam accepts repeated and comma-separated values.
func listParam(r *http.Request, name string) []string {
	var out []string
	for _, v := range r.URL.Query()[name] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
