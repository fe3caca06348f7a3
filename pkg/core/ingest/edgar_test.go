package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"xbrl_lookup/pkg/core/fault"
)

const appleFacts = `{
  "cik": 320193,
  "entityName": "Apple Inc.",
  "facts": {
    "us-gaap": {
      "Revenues": {
        "label": "Revenues",
        "description": "Amount of revenue recognized.",
        "units": {"USD": [{"val": 394328000000, "end": "2023-09-30", "start": "2022-10-01", "form": "10-K", "filed": "2023-11-03", "accn": "0000320193-23-000106", "fy": 2023, "fp": "FY"}]}
      }
    }
  }
}`

func newTestClient(srv *httptest.Server) *EDGARClient {
	return NewEDGARClient(ClientOptions{
		BaseURL:          srv.URL,
		MinInterval:      time.Millisecond,
		RateLimitBackoff: time.Millisecond,
		Timeout:          5 * time.Second,
	})
}

func TestFetchCompanyFacts_Success(t *testing.T) {
	var gotPath, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUA = r.Header.Get("User-Agent")
		fmt.Fprint(w, appleFacts)
	}))
	defer srv.Close()

	doc, err := newTestClient(srv).FetchCompanyFacts(context.Background(), "320193")
	if err != nil {
		t.Fatalf("FetchCompanyFacts failed: %v", err)
	}
	if gotPath != "/companyfacts/CIK0000320193.json" {
		t.Errorf("path = %q, want zero-padded CIK", gotPath)
	}
	if gotUA != DefaultUserAgent {
		t.Errorf("User-Agent = %q", gotUA)
	}
	if doc.EntityName != "Apple Inc." {
		t.Errorf("EntityName = %q", doc.EntityName)
	}
	if doc.CIK.Padded() != "0000320193" {
		t.Errorf("CIK = %q", doc.CIK)
	}
	if len(doc.Facts["us-gaap"]["Revenues"].Units["USD"]) != 1 {
		t.Errorf("expected one USD entry for Revenues")
	}
}

func TestFetchCompanyFacts_StatusHandling(t *testing.T) {
	tests := []struct {
		name     string
		statuses []int
		body     string
		wantKind fault.Kind
		wantErr  bool
		wantHits int32
	}{
		{"not found", []int{http.StatusNotFound}, "", fault.NotFound, true, 1},
		{"rate limited then ok", []int{http.StatusTooManyRequests, http.StatusOK}, appleFacts, 0, false, 2},
		{"rate limited twice", []int{http.StatusTooManyRequests, http.StatusTooManyRequests}, "", fault.Transient, true, 2},
		{"server error", []int{http.StatusInternalServerError}, "", fault.Transient, true, 1},
		{"bad json", []int{http.StatusOK}, "{not json", fault.Transient, true, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := atomic.AddInt32(&hits, 1)
				status := tt.statuses[len(tt.statuses)-1]
				if int(n) <= len(tt.statuses) {
					status = tt.statuses[n-1]
				}
				w.WriteHeader(status)
				if status == http.StatusOK {
					fmt.Fprint(w, tt.body)
				}
			}))
			defer srv.Close()

			doc, err := newTestClient(srv).FetchCompanyFacts(context.Background(), "0000320193")
			if got := atomic.LoadInt32(&hits); got != tt.wantHits {
				t.Errorf("requests = %d, want %d", got, tt.wantHits)
			}
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if doc == nil || doc.EntityName != "Apple Inc." {
					t.Errorf("unexpected document: %+v", doc)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error")
			}
			if k := fault.KindOf(err); k != tt.wantKind {
				t.Errorf("kind = %v, want %v (err: %v)", k, tt.wantKind, err)
			}
			if fault.StageOf(err) != fault.StageFetch {
				t.Errorf("stage = %q, want fetch", fault.StageOf(err))
			}
		})
	}
}

func TestFetchCompanyFacts_RateLimitedTwiceIsIdentifiable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).FetchCompanyFacts(context.Background(), "1")
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("expected ErrRateLimited in chain, got %v", err)
	}
}

func TestFetchCompanyFacts_Cache(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		fmt.Fprint(w, appleFacts)
	}))
	defer srv.Close()

	client := NewEDGARClient(ClientOptions{BaseURL: srv.URL, MinInterval: time.Millisecond, CacheTTL: time.Minute})
	for i := 0; i < 3; i++ {
		if _, err := client.FetchCompanyFacts(context.Background(), "320193"); err != nil {
			t.Fatalf("fetch %d: %v", i, err)
		}
	}
	if hits != 1 {
		t.Errorf("requests = %d, want 1 with cache enabled", hits)
	}
}

func TestFetchCompanyFacts_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, appleFacts)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := newTestClient(srv).FetchCompanyFacts(ctx, "320193"); err == nil {
		t.Error("expected error for canceled context")
	}
}

func TestCompanyFactsURL(t *testing.T) {
	c := NewEDGARClient(ClientOptions{})
	want := "https://data.sec.gov/api/xbrl/companyfacts/CIK0000789019.json"
	if got := c.CompanyFactsURL("789019"); got != want {
		t.Errorf("CompanyFactsURL = %q, want %q", got, want)
	}
}
