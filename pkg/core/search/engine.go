// Package search ranks stored facts against free-text queries and serves trend series.
package search

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"xbrl_lookup/pkg/core/concept"
	"xbrl_lookup/pkg/core/store"
	"xbrl_lookup/pkg/models"
)

const (
	DefaultLimit   = 20
	DefaultPeriods = 10
	minWordLength  = 3
)

// Relevance scores, highest first.
const (
	ScoreExactLabel   = 100
	ScoreLabel        = 80
	ScoreTag          = 60
	ScoreDescription  = 40
	ScoreOtherMatches = 20
)

// FactSource is the subset of the store the engine reads from.
type FactSource interface {
	MatchFacts(ctx context.Context, term string, aliasTags []concept.Tag) ([]models.ScoredFact, error)
	Trend(ctx context.Context, q store.TrendQuery) ([]models.TrendPoint, error)
}

// Engine answers ranked search and trend queries.
type Engine struct {
	source FactSource
}

func NewEngine(source FactSource) *Engine {
	return &Engine{source: source}
}

// RankedSearch returns facts matching q, best first, at most limit rows.
//
// When the whole query matches nothing, each word longer than two characters is
// searched on its own and the union is ranked against the original query.
// Rows are deduplicated by (company, tag, fiscal year) keeping the best ranked one,
// and the limit is applied last.
func (e *Engine) RankedSearch(ctx context.Context, q string, limit int) ([]models.ScoredFact, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	results, err := e.source.MatchFacts(ctx, q, concept.MatchAlias(q))
	if err != nil {
		return nil, fmt.Errorf("search %q failed: %w", q, err)
	}

	if len(results) == 0 {
		for _, word := range splitWords(q) {
			wordResults, err := e.source.MatchFacts(ctx, word, concept.MatchAlias(word))
			if err != nil {
				return nil, fmt.Errorf("search word %q failed: %w", word, err)
			}
			results = append(results, wordResults...)
		}
	}
	if len(results) == 0 {
		return nil, nil
	}

	for i := range results {
		results[i].Score = Score(results[i].Fact, q)
	}
	sortResults(results)
	results = dedupe(results)

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Score rates how well a fact matches q. The caller guarantees the fact matched
// in the first place, so anything that is not a label, tag or description hit
// (company name or dictionary alias) gets the base score.
func Score(f models.Fact, q string) int {
	q = strings.ToLower(strings.TrimSpace(q))
	label := strings.ToLower(f.Label)
	switch {
	case label == q:
		return ScoreExactLabel
	case strings.Contains(label, q):
		return ScoreLabel
	case strings.Contains(strings.ToLower(string(f.Tag)), q):
		return ScoreTag
	case strings.Contains(strings.ToLower(f.Description), q):
		return ScoreDescription
	default:
		return ScoreOtherMatches
	}
}

// Trend returns a trend series. A zero period count means DefaultPeriods and a
// negative one means every fiscal year; no form types means 10-K only.
func (e *Engine) Trend(ctx context.Context, tag concept.Tag, companies, formTypes []string, periods int) ([]models.TrendPoint, error) {
	if tag == "" {
		return nil, fmt.Errorf("trend requires a tag")
	}
	if len(formTypes) == 0 {
		formTypes = []string{models.FormAnnual}
	}
	switch {
	case periods == 0:
		periods = DefaultPeriods
	case periods < 0:
		periods = 0
	}
	return e.source.Trend(ctx, store.TrendQuery{
		Tag:       tag,
		Companies: companies,
		FormTypes: formTypes,
		Periods:   periods,
	})
}

func splitWords(q string) []string {
	var words []string
	seen := make(map[string]bool)
	for _, w := range strings.Fields(q) {
		lw := strings.ToLower(w)
		if len([]rune(w)) < minWordLength || seen[lw] {
			continue
		}
		seen[lw] = true
		words = append(words, w)
	}
	return words
}

func fiscalYear(f models.ScoredFact) int {
	if f.FiscalYear == nil {
		return 0
	}
	return *f.FiscalYear
}

// sortResults orders by score, then most recent fiscal year, then company name.
func sortResults(results []models.ScoredFact) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if fa, fb := fiscalYear(a), fiscalYear(b); fa != fb {
			return fa > fb
		}
		if a.CompanyName != b.CompanyName {
			return a.CompanyName < b.CompanyName
		}
		if a.Tag != b.Tag {
			return a.Tag < b.Tag
		}
		if a.PeriodEnd != b.PeriodEnd {
			return a.PeriodEnd > b.PeriodEnd
		}
		return a.Accession < b.Accession
	})
}

type dedupeKey struct {
	company    string
	tag        concept.Tag
	fiscalYear int
	hasYear    bool
}

// dedupe keeps the first row of each (company, tag, fiscal year).
func dedupe(results []models.ScoredFact) []models.ScoredFact {
	seen := make(map[dedupeKey]bool, len(results))
	out := results[:0]
	for _, r := range results {
		k := dedupeKey{company: r.CompanyKey, tag: r.Tag, fiscalYear: fiscalYear(r), hasYear: r.FiscalYear != nil}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, r)
	}
	return out
}
