package xbrl

import (
	"sort"

	"xbrl_lookup/pkg/core/concept"
	"xbrl_lookup/pkg/models"
)

// LatestAnnual returns, per tag, the 10-K fact with the latest period end.
// When two facts share that period end the one appearing later in facts wins.
func LatestAnnual(facts []models.Fact) map[concept.Tag]models.Fact {
	latest := make(map[concept.Tag]models.Fact)
	for _, f := range facts {
		if f.FormType != models.FormAnnual {
			continue
		}
		cur, ok := latest[f.Tag]
		if !ok || f.PeriodEnd >= cur.PeriodEnd {
			latest[f.Tag] = f
		}
	}
	return latest
}

// RecentQuarterly returns the n most recent 10-Q facts of a tag, newest first.
// A non-positive n returns all of them.
func RecentQuarterly(facts []models.Fact, tag concept.Tag, n int) []models.Fact {
	var out []models.Fact
	for _, f := range facts {
		if f.Tag == tag && f.FormType == models.FormQuarterly {
			out = append(out, f)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PeriodEnd > out[j].PeriodEnd
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
