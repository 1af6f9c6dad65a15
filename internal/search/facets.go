package search

import (
	"sort"
	"strings"

	"github.com/kensaku-io/kensaku/internal/models"
	"github.com/kensaku-io/kensaku/internal/ranking"
)

// DefaultFacetFields are the dimensions aggregated when the caller does not
// ask for specific ones.
var DefaultFacetFields = []string{"filetype", "category", "mood", "tags"}

// AggregateFacets counts facet values across the full candidate set, before
// pagination, so counts describe the whole result rather than one page.
// Each field's buckets are ordered by descending count, ties alphabetical,
// capped at topN.
func AggregateFacets(candidates []ranking.Candidate, fields []string, topN int) map[string][]models.FacetCount {
	if len(fields) == 0 {
		fields = DefaultFacetFields
	}
	out := make(map[string][]models.FacetCount, len(fields))
	for _, field := range fields {
		counts := make(map[string]int)
		for _, c := range candidates {
			for _, v := range facetValues(c.Record, field) {
				if v != "" {
					counts[v]++
				}
			}
		}
		out[field] = topCounts(counts, topN)
	}
	return out
}

func facetValues(rec *models.MediaRecord, field string) []string {
	switch field {
	case "filetype", "type":
		return []string{strings.ToLower(rec.FileType)}
	case "category":
		return []string{strings.ToLower(rec.Category)}
	case "mood":
		return []string{strings.ToLower(rec.Mood)}
	case "tags":
		vals := make([]string, len(rec.Tags))
		for i, t := range rec.Tags {
			vals[i] = strings.ToLower(t)
		}
		return vals
	case "keywords":
		vals := make([]string, len(rec.Keywords))
		for i, k := range rec.Keywords {
			vals[i] = strings.ToLower(k)
		}
		return vals
	default:
		if v, ok := rec.TechnicalAttrs[field]; ok {
			return []string{strings.ToLower(v)}
		}
		return nil
	}
}

func topCounts(counts map[string]int, topN int) []models.FacetCount {
	buckets := make([]models.FacetCount, 0, len(counts))
	for v, n := range counts {
		buckets = append(buckets, models.FacetCount{Value: v, Count: n})
	}
	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].Count != buckets[j].Count {
			return buckets[i].Count > buckets[j].Count
		}
		return buckets[i].Value < buckets[j].Value
	})
	if topN > 0 && len(buckets) > topN {
		buckets = buckets[:topN]
	}
	return buckets
}
