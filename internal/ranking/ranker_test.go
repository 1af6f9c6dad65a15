package ranking

import (
	"reflect"
	"testing"
	"time"

	"github.com/kensaku-io/kensaku/internal/models"
)

func fixedRanker() *Ranker {
	r := NewRanker(nil)
	r.now = func() time.Time {
		return time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	}
	return r
}

func candidate(id string, ev Evidence) Candidate {
	return Candidate{
		Record: &models.MediaRecord{
			ID:         id,
			Title:      "clip " + id,
			FileType:   "video",
			ModifiedAt: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		},
		Evidence: ev,
	}
}

func ids(results []*models.SearchResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.RecordID
	}
	return out
}

func TestTitleHitsOutrankDescriptionHits(t *testing.T) {
	r := fixedRanker()

	titleHit := candidate("a", Evidence{TermHits: map[string]int{"title": 1}})
	descHit := candidate("b", Evidence{TermHits: map[string]int{"description": 1}})

	if r.Score(titleHit) <= r.Score(descHit) {
		t.Errorf("title score %v <= description score %v",
			r.Score(titleHit), r.Score(descHit))
	}
}

func TestPhraseAndFieldMatchBonuses(t *testing.T) {
	r := fixedRanker()

	base := candidate("a", Evidence{TermHits: map[string]int{"title": 1}})
	withPhrase := candidate("a", Evidence{TermHits: map[string]int{"title": 1}, PhraseHits: 1})
	withField := candidate("a", Evidence{TermHits: map[string]int{"title": 1}, FieldMatches: 1})

	if r.Score(withPhrase) <= r.Score(base) {
		t.Error("phrase bonus not applied")
	}
	if r.Score(withField) <= r.Score(base) {
		t.Error("field-match bonus not applied")
	}
}

func TestRecencyDecay(t *testing.T) {
	r := fixedRanker()

	fresh := candidate("a", Evidence{})
	stale := candidate("b", Evidence{})
	stale.Record.ModifiedAt = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	if r.Score(fresh) <= r.Score(stale) {
		t.Errorf("fresh score %v <= stale score %v", r.Score(fresh), r.Score(stale))
	}
}

func TestRankTieBreaksByRecordID(t *testing.T) {
	r := fixedRanker()
	ev := Evidence{TermHits: map[string]int{"title": 1}}
	cands := []Candidate{candidate("b", ev), candidate("a", ev), candidate("c", ev)}

	got := ids(r.Rank(cands, "relevance", "desc"))
	if !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("tie order = %v", got)
	}
}

func TestRankIsDeterministic(t *testing.T) {
	r := fixedRanker()
	ev := Evidence{TermHits: map[string]int{"title": 2, "description": 1}}
	cands := []Candidate{candidate("x", ev), candidate("y", Evidence{}), candidate("z", ev)}

	first := ids(r.Rank(cands, "", ""))
	for i := 0; i < 5; i++ {
		if got := ids(r.Rank(cands, "", "")); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d order = %v, want %v", i, got, first)
		}
	}
}

func TestExplicitSortOverridesRelevance(t *testing.T) {
	r := fixedRanker()

	big := candidate("a", Evidence{TermHits: map[string]int{"title": 5}})
	big.Record.FileSizeBytes = 2000000
	small := candidate("b", Evidence{})
	small.Record.FileSizeBytes = 500000

	got := ids(r.Rank([]Candidate{big, small}, "size", "asc"))
	if !reflect.DeepEqual(got, []string{"b", "a"}) {
		t.Errorf("size asc order = %v", got)
	}

	got = ids(r.Rank([]Candidate{big, small}, "size", "desc"))
	if !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("size desc order = %v", got)
	}
}

func TestRankAssignsSequentialRanks(t *testing.T) {
	r := fixedRanker()
	cands := []Candidate{
		candidate("a", Evidence{TermHits: map[string]int{"title": 2}}),
		candidate("b", Evidence{TermHits: map[string]int{"title": 1}}),
	}
	results := r.Rank(cands, "relevance", "desc")
	for i, res := range results {
		if res.Rank != i+1 {
			t.Errorf("rank[%d] = %d", i, res.Rank)
		}
	}
}

func TestPaginate(t *testing.T) {
	results := []*models.SearchResult{
		{RecordID: "a"}, {RecordID: "b"}, {RecordID: "c"}, {RecordID: "d"},
	}

	if got := ids(Paginate(results, 1, 2)); !reflect.DeepEqual(got, []string{"b", "c"}) {
		t.Errorf("offset 1 limit 2 = %v", got)
	}
	if got := Paginate(results, 10, 2); got != nil {
		t.Errorf("past-end page = %v", got)
	}
	if got := ids(Paginate(results, 2, 0)); !reflect.DeepEqual(got, []string{"c", "d"}) {
		t.Errorf("zero limit = %v", got)
	}
}
