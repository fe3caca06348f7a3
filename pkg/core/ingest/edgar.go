// Package ingest provides the SEC EDGAR XBRL API client and the company lookup table.
// API Documentation: https://www.sec.gov/edgar/sec-api-documentation
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	gocache "github.com/patrickmn/go-cache"
	"github.com/sethvargo/go-retry"

	"xbrl_lookup/pkg/core/fault"
	"xbrl_lookup/pkg/models"
)

const (
	// SEC EDGAR XBRL API
	DefaultBaseURL   = "https://data.sec.gov/api/xbrl"
	companyFactsPath = "/companyfacts/CIK%s.json"

	// SEC requires a User-Agent identifying the caller
	DefaultUserAgent = "XBRL Financial Lookup contact@example.com"

	// SEC fair access: no more than 10 requests per second
	DefaultMinInterval      = 100 * time.Millisecond
	DefaultRateLimitBackoff = time.Second
	DefaultTimeout          = 30 * time.Second
)

// ErrRateLimited is returned (wrapped) when SEC answers 429 twice in a row.
var ErrRateLimited = errors.New("SEC rate limit exceeded")

// ErrNotFound is returned (wrapped) when SEC has no XBRL data for a CIK.
var ErrNotFound = errors.New("no SEC data for CIK")

// =============================================================================
// SEC EDGAR CLIENT
// =============================================================================

// ClientOptions configures an EDGARClient. Zero values select the defaults.
type ClientOptions struct {
	BaseURL          string
	UserAgent        string
	MinInterval      time.Duration
	RateLimitBackoff time.Duration
	Timeout          time.Duration
	CacheTTL         time.Duration // 0 disables the document cache
	Clock            clockwork.Clock
	HTTPClient       *http.Client
}

// EDGARClient fetches companyfacts documents from SEC EDGAR.
type EDGARClient struct {
	httpClient *http.Client
	baseURL    string
	host       string
	userAgent  string
	backoff    time.Duration
	throttle   *Throttle
	cache      *gocache.Cache
}

// NewEDGARClient creates a new SEC EDGAR API client.
func NewEDGARClient(opts ClientOptions) *EDGARClient {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.MinInterval <= 0 {
		opts.MinInterval = DefaultMinInterval
	}
	if opts.RateLimitBackoff <= 0 {
		opts.RateLimitBackoff = DefaultRateLimitBackoff
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	c := &EDGARClient{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		userAgent:  opts.UserAgent,
		backoff:    opts.RateLimitBackoff,
		throttle:   NewThrottle(opts.MinInterval, opts.Clock),
	}
	if u, err := url.Parse(c.baseURL); err == nil {
		c.host = u.Host
	}
	if opts.CacheTTL > 0 {
		c.cache = gocache.New(opts.CacheTTL, 2*opts.CacheTTL)
	}
	return c
}

// CompanyFactsURL returns the request URL for a CIK, zero-padding it to 10 digits.
func (c *EDGARClient) CompanyFactsURL(cik string) string {
	return c.baseURL + fmt.Sprintf(companyFactsPath, models.PadCIK(strings.TrimSpace(cik)))
}

// FetchCompanyFacts retrieves all XBRL facts reported by a company.
//
// Outcomes: the parsed document; a fault.NotFound error when SEC has no data
// for the CIK; a fault.Transient error for timeouts, unexpected statuses,
// unreadable bodies and a second consecutive 429.
func (c *EDGARClient) FetchCompanyFacts(ctx context.Context, cik string) (*models.CompanyFactsDocument, error) {
	padded := models.PadCIK(strings.TrimSpace(cik))

	if c.cache != nil {
		if cached, ok := c.cache.Get(padded); ok {
			return cached.(*models.CompanyFactsDocument), nil
		}
	}

	requestURL := c.CompanyFactsURL(padded)
	log.Printf("[INGEST] Fetching SEC data for CIK %s", padded)

	// One retry after a fixed backoff, only for 429
	backoff := retry.WithMaxRetries(1, retry.NewConstant(c.backoff))

	var doc *models.CompanyFactsDocument
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := c.throttle.Do(ctx, func(ctx context.Context) error {
			var fetchErr error
			doc, fetchErr = c.fetchOnce(ctx, requestURL, padded)
			return fetchErr
		})
		if errors.Is(err, ErrRateLimited) {
			log.Printf("[INGEST] Rate limit exceeded for CIK %s, waiting %v", padded, c.backoff)
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[INGEST] Retrieved data for %s", doc.EntityName)
	if c.cache != nil {
		c.cache.SetDefault(padded, doc)
	}
	return doc, nil
}

// fetchOnce performs a single request. Callers hold the throttle.
func (c *EDGARClient) fetchOnce(ctx context.Context, requestURL, cik string) (*models.CompanyFactsDocument, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fault.New(fault.Fatal, fault.StageFetch, cik, fmt.Errorf("failed to create request: %w", err))
	}

	// SEC requires User-Agent header
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if c.host != "" {
		req.Host = c.host
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fault.New(fault.Transient, fault.StageFetch, cik, fmt.Errorf("SEC API request failed: %w", err))
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		io.Copy(io.Discard, resp.Body)
		return nil, fault.New(fault.NotFound, fault.StageFetch, cik, ErrNotFound)
	case http.StatusTooManyRequests:
		io.Copy(io.Discard, resp.Body)
		return nil, fault.New(fault.Transient, fault.StageFetch, cik, ErrRateLimited)
	default:
		io.Copy(io.Discard, resp.Body)
		return nil, fault.Errorf(fault.Transient, fault.StageFetch, cik, "SEC API returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fault.New(fault.Transient, fault.StageFetch, cik, fmt.Errorf("failed to read response: %w", err))
	}

	var doc models.CompanyFactsDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fault.New(fault.Transient, fault.StageFetch, cik, fmt.Errorf("failed to parse SEC response: %w", err))
	}
	return &doc, nil
}
