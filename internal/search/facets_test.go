package search

import (
	"reflect"
	"testing"

	"github.com/kensaku-io/kensaku/internal/models"
	"github.com/kensaku-io/kensaku/internal/ranking"
)

func facetCandidates(recs []*models.MediaRecord) []ranking.Candidate {
	out := make([]ranking.Candidate, len(recs))
	for i, rec := range recs {
		out[i] = ranking.Candidate{Record: rec}
	}
	return out
}

func TestAggregateFacetsCounts(t *testing.T) {
	cands := facetCandidates(testRecords())
	facets := AggregateFacets(cands, []string{"filetype", "mood"}, 10)

	wantTypes := []models.FacetCount{
		{Value: "image", Count: 2},
		{Value: "audio", Count: 1},
		{Value: "video", Count: 1},
	}
	if !reflect.DeepEqual(facets["filetype"], wantTypes) {
		t.Errorf("filetype facets = %v, want %v", facets["filetype"], wantTypes)
	}

	wantMoods := []models.FacetCount{
		{Value: "calm", Count: 2},
		{Value: "happy", Count: 1},
		{Value: "sad", Count: 1},
	}
	if !reflect.DeepEqual(facets["mood"], wantMoods) {
		t.Errorf("mood facets = %v, want %v", facets["mood"], wantMoods)
	}
}

func TestAggregateFacetsMultiValueTags(t *testing.T) {
	cands := facetCandidates(testRecords())
	facets := AggregateFacets(cands, []string{"tags"}, 10)

	total := 0
	for _, b := range facets["tags"] {
		total += b.Count
	}
	// Every tag occurrence counts once; r1 and r2 share "taipei".
	if total != 7 {
		t.Errorf("tag occurrences = %d, want 7", total)
	}
	if facets["tags"][0].Value != "rain" && facets["tags"][0].Value != "taipei" {
		t.Errorf("top tag = %q, want a count-2 tag", facets["tags"][0].Value)
	}
}

func TestAggregateFacetsTopNCap(t *testing.T) {
	cands := facetCandidates(testRecords())
	facets := AggregateFacets(cands, []string{"tags"}, 2)
	if len(facets["tags"]) != 2 {
		t.Fatalf("got %d buckets, want 2", len(facets["tags"]))
	}
	// Ties at count 2 break alphabetically.
	want := []models.FacetCount{
		{Value: "rain", Count: 2},
		{Value: "taipei", Count: 2},
	}
	if !reflect.DeepEqual(facets["tags"], want) {
		t.Errorf("capped tags = %v, want %v", facets["tags"], want)
	}
}

func TestAggregateFacetsDefaultFields(t *testing.T) {
	cands := facetCandidates(testRecords())
	facets := AggregateFacets(cands, nil, 10)
	for _, f := range DefaultFacetFields {
		if _, ok := facets[f]; !ok {
			t.Errorf("default aggregation missing field %q", f)
		}
	}
}
