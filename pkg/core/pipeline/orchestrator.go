// Package pipeline drives the fetch -> extract -> store flow per company.
package pipeline

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"xbrl_lookup/pkg/core/fault"
	"xbrl_lookup/pkg/core/ingest"
	"xbrl_lookup/pkg/core/xbrl"
	"xbrl_lookup/pkg/models"
)

// CompanyResolver maps tickers to registry entries without network access.
type CompanyResolver interface {
	Resolve(ticker string) (ingest.CompanyInfo, bool)
	Tickers() []string
}

// FactsFetcher retrieves the companyfacts document of a CIK.
type FactsFetcher interface {
	FetchCompanyFacts(ctx context.Context, cik string) (*models.CompanyFactsDocument, error)
}

// FactExtractor flattens a companyfacts document.
type FactExtractor interface {
	Extract(doc *models.CompanyFactsDocument) []models.Fact
}

// FactWriter persists facts and registry metadata.
type FactWriter interface {
	UpsertFacts(ctx context.Context, facts []models.Fact) (int, error)
	SetCompanyProfile(ctx context.Context, cik, ticker, industry string) error
}

// RunRecorder keeps the history of integration attempts.
type RunRecorder interface {
	RecordRun(ctx context.Context, run models.Run) error
}

// Integrator manages the end-to-end data flow for one or many companies:
// Resolve -> Fetch -> Extract -> Store.
type Integrator struct {
	registry  CompanyResolver
	fetcher   FactsFetcher
	extractor FactExtractor
	writer    FactWriter
	runs      RunRecorder
	clock     clockwork.Clock
}

// NewIntegrator creates an integrator. If writer also implements RunRecorder,
// every attempt is recorded through it.
func NewIntegrator(registry CompanyResolver, fetcher FactsFetcher, writer FactWriter) *Integrator {
	in := &Integrator{
		registry:  registry,
		fetcher:   fetcher,
		extractor: xbrl.NewExtractor(false),
		writer:    writer,
		clock:     clockwork.NewRealClock(),
	}
	if rr, ok := writer.(RunRecorder); ok {
		in.runs = rr
	}
	return in
}

// SetExtractor allows injecting a custom extractor (e.g., a verbose one, or a mock).
func (in *Integrator) SetExtractor(e FactExtractor) {
	in.extractor = e
}

// SetRunRecorder replaces the run log. nil disables recording.
func (in *Integrator) SetRunRecorder(r RunRecorder) {
	in.runs = r
}

// SetClock replaces the clock used for run timestamps.
func (in *Integrator) SetClock(c clockwork.Clock) {
	in.clock = c
}

// Integrate runs the pipeline for one ticker. The returned error is a
// *fault.Error naming the stage that failed.
func (in *Integrator) Integrate(ctx context.Context, ticker string) error {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	run := models.Run{ID: uuid.NewString(), Identifier: ticker, StartedAt: in.clock.Now()}

	factCount, err := in.safeIntegrate(ctx, ticker, &run)

	run.FinishedAt = in.clock.Now()
	run.FactCount = factCount
	if err != nil {
		run.Status = "failure"
		run.Stage = fault.StageOf(err)
		run.Message = err.Error()
	} else {
		run.Status = "success"
	}
	in.record(ctx, run)
	return err
}

// safeIntegrate converts a panic in any stage into a Fatal error.
func (in *Integrator) safeIntegrate(ctx context.Context, ticker string, run *models.Run) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[PIPELINE] Recovered from panic while integrating %s: %v", ticker, r)
			n, err = 0, fault.Errorf(fault.Fatal, "", ticker, "panic: %v", r)
		}
	}()
	return in.integrate(ctx, ticker, run)
}

func (in *Integrator) integrate(ctx context.Context, ticker string, run *models.Run) (int, error) {
	// 1. Resolve
	info, ok := in.registry.Resolve(ticker)
	if !ok {
		log.Printf("[PIPELINE] Company %s not found in registry", ticker)
		return 0, fault.Errorf(fault.Fatal, fault.StageResolve, ticker, "company %q not found in registry", ticker)
	}
	run.CIK = info.CIK
	log.Printf("[PIPELINE] Starting integration for %s (%s, CIK %s)", ticker, info.Name, info.CIK)

	// 2. Fetch
	doc, err := in.fetcher.FetchCompanyFacts(ctx, info.CIK)
	if err != nil {
		if fault.IsNotFound(err) {
			log.Printf("[PIPELINE] Warning: no SEC data for %s", ticker)
		} else {
			log.Printf("[PIPELINE] Error fetching %s: %v", ticker, err)
		}
		return 0, wrapStage(err, fault.StageFetch, ticker)
	}
	if doc == nil {
		return 0, fault.Errorf(fault.NotFound, fault.StageFetch, ticker, "no SEC data for CIK %s", info.CIK)
	}

	// 3. Extract
	facts := in.extractor.Extract(doc)
	if len(facts) == 0 {
		log.Printf("[PIPELINE] Warning: no tracked facts in SEC data for %s", ticker)
		return 0, fault.Errorf(fault.Fatal, fault.StageExtract, ticker, "no facts extracted for CIK %s", info.CIK)
	}
	log.Printf("[PIPELINE] Extracted %d facts for %s", len(facts), ticker)

	// 4. Store
	n, err := in.writer.UpsertFacts(ctx, facts)
	if err != nil {
		log.Printf("[PIPELINE] Error storing facts for %s: %v", ticker, err)
		return 0, fault.New(fault.Fatal, fault.StageStore, ticker, err)
	}
	if err := in.writer.SetCompanyProfile(ctx, info.CIK, info.Ticker, info.Industry); err != nil {
		log.Printf("[PIPELINE] Error updating company profile for %s: %v", ticker, err)
		return n, fault.New(fault.Fatal, fault.StageStore, ticker, err)
	}

	log.Printf("[PIPELINE] Stored %d facts for %s", n, ticker)
	return n, nil
}

// wrapStage keeps classified errors as they are and classifies the rest.
func wrapStage(err error, stage, id string) error {
	if fault.StageOf(err) != "" {
		return err
	}
	return fault.New(fault.KindOf(err), stage, id, err)
}

func (in *Integrator) record(ctx context.Context, run models.Run) {
	if in.runs == nil {
		return
	}
	// Failures to log a run never change the outcome
	if err := in.runs.RecordRun(context.WithoutCancel(ctx), run); err != nil {
		log.Printf("[PIPELINE] Warning: failed to record run for %s: %v", run.Identifier, err)
	}
}

// =============================================================================
// BATCH
// =============================================================================

// BatchResult is the outcome of a batch integration.
type BatchResult struct {
	Order     []string         // identifiers in processing order
	Status    map[string]bool  // identifier -> success
	Errors    map[string]error // identifier -> failure cause
	Succeeded int
	Failed    int
	Duration  time.Duration
}

// AllFailed reports whether at least one identifier was attempted and none succeeded.
func (r BatchResult) AllFailed() bool {
	return len(r.Order) > 0 && r.Succeeded == 0
}

// IntegrateBatch integrates identifiers one after another. A limit > 0 caps
// how many are attempted. Repeated identifiers are attempted once. One
// identifier's failure, or panic, never stops the batch.
func (in *Integrator) IntegrateBatch(ctx context.Context, identifiers []string, limit int) BatchResult {
	if limit > 0 && limit < len(identifiers) {
		identifiers = identifiers[:limit]
	}

	start := in.clock.Now()
	res := BatchResult{
		Status: make(map[string]bool, len(identifiers)),
		Errors: make(map[string]error),
	}

	log.Printf("[PIPELINE] Starting batch integration for %d companies", len(identifiers))
	for i, id := range identifiers {
		id = strings.ToUpper(strings.TrimSpace(id))
		if _, seen := res.Status[id]; seen {
			log.Printf("[PIPELINE] Skipping duplicate %s (%d/%d)", id, i+1, len(identifiers))
			continue
		}
		log.Printf("[PIPELINE] Processing %s (%d/%d)", id, i+1, len(identifiers))

		var err error
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fault.New(fault.Fatal, "", id, ctxErr)
		} else {
			err = in.Integrate(ctx, id)
		}

		res.Order = append(res.Order, id)
		if err != nil {
			res.Status[id] = false
			res.Errors[id] = err
			res.Failed++
			continue
		}
		res.Status[id] = true
		res.Succeeded++
	}
	res.Duration = in.clock.Since(start)

	log.Printf("[PIPELINE] Batch complete: %d/%d successful in %v", res.Succeeded, len(identifiers), res.Duration)
	for _, id := range res.Order {
		if err := res.Errors[id]; err != nil {
			log.Printf("[PIPELINE]   %s: failed (%v)", id, err)
		} else {
			log.Printf("[PIPELINE]   %s: ok", id)
		}
	}
	return res
}

// IntegrateAll integrates every registered company in registry order.
func (in *Integrator) IntegrateAll(ctx context.Context, limit int) BatchResult {
	return in.IntegrateBatch(ctx, in.registry.Tickers(), limit)
}
